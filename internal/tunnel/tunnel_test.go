package tunnel_test

import (
	"bufio"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/klaralund/go-mimic/internal/tunnel"
)

func listen(t *testing.T, serve func(c net.Conn)) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Close() })
	go func() {
		for {
			c, err := l.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				serve(c)
			}(c)
		}
	}()
	return l.Addr().String()
}

func readConnectRequest(c net.Conn) ([]string, error) {
	br := bufio.NewReader(c)
	var lines []string
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, err
		}
		if line == "\r\n" {
			return lines, nil
		}
		lines = append(lines, strings.TrimRight(line, "\r\n"))
	}
}

func TestHTTPConnect(t *testing.T) {
	var mu sync.Mutex
	var request []string
	addr := listen(t, func(c net.Conn) {
		lines, err := readConnectRequest(c)
		if err != nil {
			return
		}
		mu.Lock()
		request = lines
		mu.Unlock()
		c.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n"))
		c.Write([]byte("tunneled"))
	})

	conn, err := (&tunnel.HTTPConnect{Addr: addr}).Connect(context.Background(), "a.test", "80")
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	payload := make([]byte, 8)
	if _, err := io.ReadFull(conn, payload); err != nil || string(payload) != "tunneled" {
		t.Fatalf("payload %q err %v", payload, err)
	}
	mu.Lock()
	defer mu.Unlock()
	if request[0] != "CONNECT a.test:80 HTTP/1.1" {
		t.Errorf("request line %q", request[0])
	}
}

func TestHTTPConnectAuth(t *testing.T) {
	var mu sync.Mutex
	var request []string
	addr := listen(t, func(c net.Conn) {
		lines, err := readConnectRequest(c)
		if err != nil {
			return
		}
		mu.Lock()
		request = lines
		mu.Unlock()
		c.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n"))
	})

	hc := &tunnel.HTTPConnect{Addr: addr, Auth: &tunnel.Auth{Username: "u", Password: "p"}}
	conn, err := hc.Connect(context.Background(), "a.test", "443")
	if err != nil {
		t.Fatal(err)
	}
	conn.Close()

	want := "Proxy-Authorization: Basic " + base64.StdEncoding.EncodeToString([]byte("u:p"))
	mu.Lock()
	defer mu.Unlock()
	found := false
	for _, l := range request {
		if l == want {
			found = true
		}
	}
	if !found {
		t.Errorf("missing %q in %q", want, request)
	}
}

func TestHTTPConnectRefused(t *testing.T) {
	addr := listen(t, func(c net.Conn) {
		if _, err := readConnectRequest(c); err != nil {
			return
		}
		c.Write([]byte("HTTP/1.1 403 Forbidden\r\n\r\n"))
	})

	_, err := (&tunnel.HTTPConnect{Addr: addr}).Connect(context.Background(), "a.test", "80")
	var connErr *tunnel.ConnectError
	if !errors.As(err, &connErr) {
		t.Fatalf("want ConnectError, got %v", err)
	}
	if connErr.Via != "http" {
		t.Errorf("via %q", connErr.Via)
	}
}

func TestSOCKS5(t *testing.T) {
	addr := listen(t, func(c net.Conn) {
		greeting := make([]byte, 3)
		if _, err := io.ReadFull(c, greeting); err != nil {
			return
		}
		c.Write([]byte{0x05, 0x00}) // no auth required

		header := make([]byte, 4)
		if _, err := io.ReadFull(c, header); err != nil {
			return
		}
		switch header[3] {
		case 0x01: // ipv4
			io.ReadFull(c, make([]byte, 4+2))
		case 0x03: // domain
			l := make([]byte, 1)
			io.ReadFull(c, l)
			io.ReadFull(c, make([]byte, int(l[0])+2))
		}
		c.Write([]byte{0x05, 0x00, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
		c.Write([]byte("hello"))
	})

	conn, err := (&tunnel.SOCKS5{Addr: addr}).Connect(context.Background(), "a.test", "80")
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	payload := make([]byte, 5)
	if _, err := io.ReadFull(conn, payload); err != nil || string(payload) != "hello" {
		t.Fatalf("payload %q err %v", payload, err)
	}
}

func TestSOCKS4(t *testing.T) {
	var mu sync.Mutex
	var request []byte
	addr := listen(t, func(c net.Conn) {
		header := make([]byte, 8)
		if _, err := io.ReadFull(c, header); err != nil {
			return
		}
		br := bufio.NewReader(c)
		userID, err := br.ReadBytes(0x00)
		if err != nil {
			return
		}
		mu.Lock()
		request = append(append([]byte(nil), header...), userID...)
		mu.Unlock()
		c.Write([]byte{0x00, 0x5a, 0, 0, 0, 0, 0, 0})
		c.Write([]byte("hi"))
	})

	conn, err := (&tunnel.SOCKS4{Addr: addr, UserID: "mimic"}).Connect(context.Background(), "1.2.3.4", "80")
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	payload := make([]byte, 2)
	if _, err := io.ReadFull(conn, payload); err != nil || string(payload) != "hi" {
		t.Fatalf("payload %q err %v", payload, err)
	}
	mu.Lock()
	defer mu.Unlock()
	want := append([]byte{0x04, 0x01, 0x00, 0x50, 1, 2, 3, 4}, append([]byte("mimic"), 0x00)...)
	if string(request) != string(want) {
		t.Errorf("request % x, want % x", request, want)
	}
}

func TestSOCKS4Rejected(t *testing.T) {
	addr := listen(t, func(c net.Conn) {
		header := make([]byte, 8)
		if _, err := io.ReadFull(c, header); err != nil {
			return
		}
		br := bufio.NewReader(c)
		if _, err := br.ReadBytes(0x00); err != nil {
			return
		}
		c.Write([]byte{0x00, 0x5b, 0, 0, 0, 0, 0, 0})
	})

	_, err := (&tunnel.SOCKS4{Addr: addr}).Connect(context.Background(), "1.2.3.4", "80")
	var connErr *tunnel.ConnectError
	if !errors.As(err, &connErr) {
		t.Fatalf("want ConnectError, got %v", err)
	}
}

func TestDirectConnectFailure(t *testing.T) {
	// a listener that is immediately closed leaves a port nothing accepts on
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	l.Close()

	host, port, _ := net.SplitHostPort(addr)
	_, err = (&tunnel.Direct{}).Connect(context.Background(), host, port)
	var connErr *tunnel.ConnectError
	if !errors.As(err, &connErr) {
		t.Fatalf("want ConnectError, got %v", err)
	}
	if connErr.Via != "direct" {
		t.Errorf("via %q", connErr.Via)
	}
}
