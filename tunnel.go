package mimic

import (
	"github.com/klaralund/go-mimic/internal/tunnel"
)

// Tunnels obtain the transport stream a request is written to. They
// hold connection-related config only, never live connection state, so
// swapping one on a [Client] between exchanges is painless.
type Tunnel = tunnel.Tunnel

type Direct = tunnel.Direct
type HTTPConnect = tunnel.HTTPConnect
type SOCKS4 = tunnel.SOCKS4
type SOCKS5 = tunnel.SOCKS5

type ProxyAuth = tunnel.Auth
type ConnectError = tunnel.ConnectError
type ResolveConfig = tunnel.ResolveConfig
