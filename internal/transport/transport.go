// Package transport implements the HTTP/1.1 wire codec: a serializer
// that renders the request line and header block as exact bytes, and a
// parser that consumes a response from a stream. Both are expressed as
// capability interfaces so alternative builders (different header
// ordering, different protocol minor versions) can be substituted
// without touching the exchange state machine.
package transport

import (
	"context"
	"io"

	"github.com/klaralund/go-mimic/internal/cookie"
	"github.com/klaralund/go-mimic/internal/http"
)

// Serializer renders request segments. Implementations perform no I/O
// and are deterministic for equal inputs.
type Serializer interface {
	// FirstLine renders the request line, terminated by CRLF.
	FirstLine(r *http.PreparedRequest) ([]byte, error)
	// Headers renders the header block including the blank separator
	// line. When cookies is non-nil, cookies scoped to the request URL
	// are folded into a Cookie header.
	Headers(r *http.PreparedRequest, cookies cookie.Store) ([]byte, error)
}

// Parser consumes one response from the stream. Set-Cookie headers are
// applied to cookies scoped to the request URL before the parser
// returns. The response body is not buffered, it reads lazily from the
// stream until its framing is exhausted.
type Parser interface {
	Receive(ctx context.Context, conn io.Reader, r *http.PreparedRequest, cookies cookie.Store) (*http.Response, error)
}

type bodyCloser struct {
	io.Reader
	close func() error
}

func (b bodyCloser) Close() error { return b.close() }
