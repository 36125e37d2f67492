// Package tunnel provides the connection sources a transport stream can
// be obtained from: a direct TCP dial, an HTTP CONNECT proxy, or a
// SOCKS4/SOCKS5 proxy. Every source yields a plain byte stream to the
// target host and port, TLS is layered on top by the caller.
package tunnel

import (
	"context"
	"fmt"
	"net"
)

// Tunnel obtains a transport stream to host:port. Implementations must
// honor ctx cancellation for the whole handshake, not just the dial.
type Tunnel interface {
	Connect(ctx context.Context, host, port string) (net.Conn, error)
}

// Auth carries proxy credentials. A nil *Auth means anonymous.
type Auth struct {
	Username string
	Password string
}

// ConnectError reports that a tunnel could not establish a transport
// stream. It wraps the underlying fault unmodified.
type ConnectError struct {
	Via string // "direct", "http", "socks4", "socks5"
	Err error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("tunnel: %s connect failed: %v", e.Via, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }
