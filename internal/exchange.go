package internal

import (
	"context"
	"net"
	"sync/atomic"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/klaralund/go-mimic/internal/cookie"
	"github.com/klaralund/go-mimic/internal/http"
)

// Exchange owns the per-request mutable state: the transport streams
// and the transcript. One Exchange serves one logical request at a
// time; redirect hops run sequentially inside a single Do call.
// Overlapping Do calls on the same handle are rejected, and nothing
// here is otherwise locked.
type Exchange struct {
	client *Client
	id     uuid.UUID
	log    logr.Logger

	inflight atomic.Bool

	// raw is the tunnel stream, conn the negotiated (possibly
	// TLS-wrapped) stream written to and read from. At most one pair is
	// live at a time, re-created on every redirect hop.
	raw  net.Conn
	conn net.Conn

	transcript [][]byte
}

// Do submits the request and runs the connect → transmit → receive →
// redirect cycle until a terminal response or a failure. The returned
// response body reads lazily from the live stream, close it (or the
// Exchange) when done.
func (ex *Exchange) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, ErrNilRequest
	}
	c := ex.client
	if c.CookiesEnabled && c.Cookies == nil {
		return nil, ErrNoCookieStore
	}
	if !ex.inflight.CompareAndSwap(false, true) {
		return nil, ErrExchangeBusy
	}
	defer ex.inflight.Store(false)

	pr, err := req.Prepare()
	if err != nil {
		return nil, err
	}

	handler := Handler(ex.roundTrip)
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		handler = c.middlewares[i](handler)
	}

	max := c.maxRedirects()
	for hop := 0; ; hop++ {
		resp, err := handler(ctx, pr)
		if err != nil {
			ex.release()
			return nil, err
		}
		if c.DisableRedirects || resp.StatusCode < 300 || resp.StatusCode > 399 {
			return resp, nil
		}
		location := resp.Header.Get("Location")
		if location == "" {
			return resp, nil
		}
		target, err := pr.U.Parse(location)
		if err != nil {
			resp.Body.Close()
			ex.release()
			return nil, err
		}
		if hop+1 > max {
			resp.Body.Close()
			ex.release()
			return nil, &RedirectLimitError{Limit: max}
		}
		ex.log.V(1).Info("following redirect",
			"status", resp.StatusCode, "location", target.String(), "hop", hop+1)

		if store := c.cookieStore(); store != nil && target.Hostname() != pr.U.Hostname() {
			cookie.Port(store, pr.U, target)
		}
		// the hop is over: its stream is torn down before the next
		// connection is attempted
		resp.Body.Close()
		ex.release()
		pr.Redirect(resp.StatusCode, target)
	}
}

func (ex *Exchange) roundTrip(ctx context.Context, r *http.PreparedRequest) (*http.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ex.establish(ctx, r); err != nil {
		return nil, err
	}
	if ctx.Done() != nil {
		conn := ex.conn
		stop := context.AfterFunc(ctx, func() { conn.Close() })
		defer stop()
	}
	if err := ex.transmit(ctx, r); err != nil {
		return nil, err
	}
	resp, err := ex.client.parser().Receive(ctx, ex.conn, r, ex.client.cookieStore())
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return nil, cerr
		}
		return nil, err
	}
	return resp, nil
}

// transmit writes the request line, header block and body to the
// negotiated stream, in that order. The exact bytes of all three
// segments are recorded as one transcript entry per physical attempt,
// appended before the first write so failed attempts are captured too.
func (ex *Exchange) transmit(ctx context.Context, r *http.PreparedRequest) error {
	s := ex.client.serializer()
	line, err := s.FirstLine(r)
	if err != nil {
		return err
	}
	headers, err := s.Headers(r, ex.client.cookieStore())
	if err != nil {
		return err
	}

	attempt := make([]byte, 0, len(line)+len(headers)+len(r.Body))
	attempt = append(attempt, line...)
	attempt = append(attempt, headers...)
	attempt = append(attempt, r.Body...)
	ex.transcript = append(ex.transcript, attempt)

	for _, segment := range [][]byte{line, headers, r.Body} {
		if len(segment) == 0 {
			continue
		}
		if _, err := ex.conn.Write(segment); err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}
			return err
		}
	}
	return nil
}

// Transcript returns the raw exchange log: one byte buffer per physical
// attempt, in attempt order, including every redirect hop. Valid after
// Do returns, successfully or not, for whatever attempts occurred.
func (ex *Exchange) Transcript() [][]byte {
	return ex.transcript
}

// Close releases the transport and TLS streams. It is idempotent and
// safe when neither stream was ever created, e.g. after a failed
// connect or a cancelled handshake.
func (ex *Exchange) Close() error {
	ex.release()
	return nil
}

func (ex *Exchange) release() {
	if ex.conn != nil && ex.conn != ex.raw {
		ex.conn.Close()
	}
	if ex.raw != nil {
		ex.raw.Close()
	}
	ex.conn, ex.raw = nil, nil
}
