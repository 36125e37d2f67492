package internal

import (
	"context"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/klaralund/go-mimic/internal/cookie"
	"github.com/klaralund/go-mimic/internal/http"
	"github.com/klaralund/go-mimic/internal/transport"
	"github.com/klaralund/go-mimic/internal/tunnel"
)

type Handler = func(ctx context.Context, req *http.PreparedRequest) (*http.Response, error)
type Middleware func(next Handler) Handler

// Client holds the configuration shared by exchanges. Fields are plain
// mutable state, configure them before the first exchange. The zero
// value dials directly, follows up to ten redirects and handles no
// cookies.
type Client struct {
	// Tunnel obtains transport streams. nil means a direct dial.
	Tunnel tunnel.Tunnel

	TLS TLSOptions

	// DisableRedirects turns the 3xx state machine off, responses are
	// returned to the caller unchanged.
	DisableRedirects bool
	// MaxRedirects caps a redirect chain. Zero means the default of 10.
	MaxRedirects int

	// CookiesEnabled turns cookie handling on. Cookies must then be a
	// caller-owned store, it is read while building headers and written
	// while parsing responses and when a redirect crosses hosts.
	CookiesEnabled bool
	Cookies        cookie.Store

	// ReadBufferSize bounds the parser's initial read buffer.
	ReadBufferSize int
	// Decompress enables transparent response content decoding.
	Decompress bool

	// Serializer and Parser default to the built-in HTTP/1.1 codec.
	Serializer transport.Serializer
	Parser     transport.Parser

	// Logger receives hop and handshake detail at V(1). Unset means no
	// logging.
	Logger logr.Logger

	middlewares []Middleware
}

const defaultMaxRedirects = 10

// Use appends mw to the end of the chain. The last "Use"d mw executes first
func (c *Client) Use(mws ...Middleware) {
	c.middlewares = append(c.middlewares, mws...)
}

// Exchange creates the owned handle for one logical request. The handle
// must not be shared across concurrent calls.
func (c *Client) Exchange() *Exchange {
	id := uuid.New()
	return &Exchange{
		client: c,
		id:     id,
		log:    c.logger().WithValues("exchange", id.String()),
	}
}

// CtxDo is the one-shot convenience wrapper: it runs a fresh exchange
// and leaves stream release to the response body's Close. Use
// [Client.Exchange] directly when the transcript is needed.
func (c *Client) CtxDo(ctx context.Context, req *http.Request) (*http.Response, error) {
	return c.Exchange().Do(ctx, req)
}

func (c *Client) wire() transport.HTTP1 {
	return transport.HTTP1{ReadBufferSize: c.ReadBufferSize, Decompress: c.Decompress}
}

func (c *Client) serializer() transport.Serializer {
	if c.Serializer != nil {
		return c.Serializer
	}
	return c.wire()
}

func (c *Client) parser() transport.Parser {
	if c.Parser != nil {
		return c.Parser
	}
	return c.wire()
}

func (c *Client) cookieStore() cookie.Store {
	if c.CookiesEnabled {
		return c.Cookies
	}
	return nil
}

func (c *Client) tunnel() tunnel.Tunnel {
	if c.Tunnel != nil {
		return c.Tunnel
	}
	return &tunnel.Direct{}
}

func (c *Client) maxRedirects() int {
	if c.MaxRedirects > 0 {
		return c.MaxRedirects
	}
	return defaultMaxRedirects
}

func (c *Client) logger() logr.Logger {
	if c.Logger.GetSink() == nil {
		return logr.Discard()
	}
	return c.Logger
}
