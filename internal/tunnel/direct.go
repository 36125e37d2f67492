package tunnel

import (
	"context"
	"net"
)

// ResolveConfig overrides name resolution for a [Direct] tunnel.
//
// The standard library provides no intuitive way of pointing a lookup
// at a specific DNS server since it only follows the system
// configuration (e.g. /etc/resolv.conf), leaving only the
// [net.Resolver.Dial] hook with a Go resolver. CustomDNSServer rides on
// that hook.
type ResolveConfig struct {
	CustomDNSServer string
	Network         string            // one of "ip4", "ip6", default is "ip"
	StaticHosts     map[string]string // resembles /etc/hosts
}

func (c *ResolveConfig) Clone() *ResolveConfig {
	if c == nil {
		return nil
	}
	return &ResolveConfig{
		CustomDNSServer: c.CustomDNSServer,
		Network:         c.Network,
		StaticHosts:     c.StaticHosts,
	}
}

// this type should not be used outside this file.
// prevents non-custom DNS server contexts to iterate through all keys
type dnsServerCtx struct {
	context.Context
	server string
}

var dnsServerCtxKey = &dnsServerCtx{nil, "dns-server"} // non-nil pointer to any object, definitely unique

func (c dnsServerCtx) Value(key interface{}) interface{} {
	if key == dnsServerCtxKey {
		return c.server
	}
	return c.Context.Value(key)
}

var zeroDialer net.Dialer

var customServerResolver = net.Resolver{
	PreferGo: true,
	Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
		if v, ok := ctx.Value(dnsServerCtxKey).(string); ok && v != "" {
			return zeroDialer.DialContext(ctx, network, v)
		}
		return zeroDialer.DialContext(ctx, network, address)
	},
}

var customDNSDialer = net.Dialer{
	Resolver: &customServerResolver,
}

// Direct dials the target itself, no proxy involved. The zero value is
// ready to use.
type Direct struct {
	Resolve *ResolveConfig
}

func (d *Direct) Connect(ctx context.Context, host, port string) (net.Conn, error) {
	network, dialer, dialctx := "tcp", &zeroDialer, ctx
	dst := net.JoinHostPort(host, port)

	if d.Resolve != nil {
		if d.Resolve.Network == "ip4" {
			network = "tcp4"
		} else if d.Resolve.Network == "ip6" {
			network = "tcp6"
		}
		if static, ok := d.Resolve.StaticHosts[host]; ok {
			dst = net.JoinHostPort(static, port)
		}
		if dns := d.Resolve.CustomDNSServer; dns != "" {
			dialctx = dnsServerCtx{dialctx, dns}
			dialer = &customDNSDialer
		}
	}

	conn, err := dialer.DialContext(dialctx, network, dst)
	if err != nil {
		return nil, &ConnectError{Via: "direct", Err: err}
	}
	return conn, nil
}

// LookupIPServer performs a DNS lookup for host on a specific dns
// server, calling [net.Resolver.LookupIP] with a Go resolver behind the
// scenes. Useful when a remote address must be resolved locally before
// handing it to a proxy.
func LookupIPServer(ctx context.Context, network, host, dns string) ([]net.IP, error) {
	if network == "" {
		network = "ip"
	}
	return customServerResolver.LookupIP(dnsServerCtx{ctx, dns}, network, host)
}
