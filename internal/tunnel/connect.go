package tunnel

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net"
	"strings"
)

// HTTPConnect relays the stream through an HTTP proxy using the CONNECT
// method. When TLS is non-nil the hop to the proxy itself is encrypted
// first (an "https" proxy).
type HTTPConnect struct {
	Addr string // proxy host:port
	TLS  *tls.Config
	Auth *Auth
}

func (t *HTTPConnect) Connect(ctx context.Context, host, port string) (net.Conn, error) {
	conn, err := zeroDialer.DialContext(ctx, "tcp", t.Addr)
	if err != nil {
		return nil, &ConnectError{Via: "http", Err: err}
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	fail := func(err error) (net.Conn, error) {
		conn.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ConnectError{Via: "http", Err: err}
	}

	if t.TLS != nil {
		tc := tls.Client(conn, t.TLS)
		if err := tc.HandshakeContext(ctx); err != nil {
			return fail(err)
		}
		conn = tc
	}

	target := net.JoinHostPort(host, port)
	var req strings.Builder
	fmt.Fprintf(&req, "CONNECT %s HTTP/1.1\r\nHost: %s\r\n", target, target)
	if t.Auth != nil {
		cred := base64.StdEncoding.EncodeToString([]byte(t.Auth.Username + ":" + t.Auth.Password))
		fmt.Fprintf(&req, "Proxy-Authorization: Basic %s\r\n", cred)
	}
	req.WriteString("\r\n")
	if _, err := conn.Write([]byte(req.String())); err != nil {
		return fail(err)
	}

	br := bufio.NewReader(conn)
	line, err := br.ReadString('\n')
	if err != nil {
		return fail(err)
	}
	_, status, ok := strings.Cut(strings.TrimRight(line, "\r\n"), " ")
	if !ok || !strings.HasPrefix(status, "200") {
		return fail(fmt.Errorf("proxy refused CONNECT: %q", strings.TrimRight(line, "\r\n")))
	}
	// discard the remaining response headers
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return fail(err)
		}
		if line == "\r\n" || line == "\n" {
			break
		}
	}
	if br.Buffered() > 0 {
		// the proxy must not speak before the tunnel is handed over
		return fail(fmt.Errorf("proxy sent %d unexpected bytes after CONNECT", br.Buffered()))
	}
	return conn, nil
}
