package tunnel

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"golang.org/x/net/proxy"
)

// SOCKS5 relays the stream through a SOCKS5 proxy, delegating the
// protocol to golang.org/x/net/proxy. Hostnames are passed to the proxy
// for remote resolution.
type SOCKS5 struct {
	Addr string // proxy host:port
	Auth *Auth
}

func (t *SOCKS5) Connect(ctx context.Context, host, port string) (net.Conn, error) {
	var auth *proxy.Auth
	if t.Auth != nil {
		auth = &proxy.Auth{User: t.Auth.Username, Password: t.Auth.Password}
	}
	d, err := proxy.SOCKS5("tcp", t.Addr, auth, &zeroDialer)
	if err != nil {
		return nil, &ConnectError{Via: "socks5", Err: err}
	}
	conn, err := d.(proxy.ContextDialer).DialContext(ctx, "tcp", net.JoinHostPort(host, port))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ConnectError{Via: "socks5", Err: err}
	}
	return conn, nil
}

// SOCKS4 relays the stream through a SOCKS4 proxy. The protocol only
// carries IPv4 addresses, so the target host is resolved locally first
// (optionally on a custom DNS server).
type SOCKS4 struct {
	Addr   string // proxy host:port
	UserID string
	DNS    string // custom DNS server for local resolution, optional
}

const (
	socks4Version = 0x04
	socks4Connect = 0x01
	socks4Granted = 0x5a
)

func (t *SOCKS4) Connect(ctx context.Context, host, port string) (net.Conn, error) {
	ip4, err := t.resolve(ctx, host)
	if err != nil {
		return nil, &ConnectError{Via: "socks4", Err: err}
	}
	var portNum uint16
	if _, err := fmt.Sscanf(port, "%d", &portNum); err != nil {
		return nil, &ConnectError{Via: "socks4", Err: fmt.Errorf("bad port %q", port)}
	}

	conn, err := zeroDialer.DialContext(ctx, "tcp", t.Addr)
	if err != nil {
		return nil, &ConnectError{Via: "socks4", Err: err}
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	fail := func(err error) (net.Conn, error) {
		conn.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ConnectError{Via: "socks4", Err: err}
	}

	req := make([]byte, 0, 9+len(t.UserID))
	req = append(req, socks4Version, socks4Connect)
	req = binary.BigEndian.AppendUint16(req, portNum)
	req = append(req, ip4...)
	req = append(req, t.UserID...)
	req = append(req, 0x00)
	if _, err := conn.Write(req); err != nil {
		return fail(err)
	}

	var reply [8]byte
	if _, err := io.ReadFull(conn, reply[:]); err != nil {
		return fail(err)
	}
	if reply[1] != socks4Granted {
		return fail(fmt.Errorf("request rejected, code %#02x", reply[1]))
	}
	return conn, nil
}

func (t *SOCKS4) resolve(ctx context.Context, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		if ip4 := ip.To4(); ip4 != nil {
			return ip4, nil
		}
		return nil, fmt.Errorf("socks4 cannot carry non-IPv4 address %s", host)
	}
	ips, err := LookupIPServer(ctx, "ip4", host, t.DNS)
	if err != nil {
		return nil, err
	}
	for _, ip := range ips {
		if ip4 := ip.To4(); ip4 != nil {
			return ip4, nil
		}
	}
	return nil, fmt.Errorf("no IPv4 address for %s", host)
}
