package internal

import (
	"errors"
	"fmt"
)

var (
	// ErrNilRequest is returned by Do before any I/O when the request is nil.
	ErrNilRequest = errors.New("mimic: nil request")
	// ErrNoCookieStore is returned before any I/O when cookie handling
	// is enabled but no store was supplied.
	ErrNoCookieStore = errors.New("mimic: cookie handling enabled but no store supplied")
	// ErrExchangeBusy is returned when a second Do overlaps a pending
	// one on the same Exchange.
	ErrExchangeBusy = errors.New("mimic: exchange already has a request in flight")
)

// RedirectLimitError terminates a redirect chain longer than the
// configured cap.
type RedirectLimitError struct {
	Limit int
}

func (e *RedirectLimitError) Error() string {
	return fmt.Sprintf("mimic: stopped after %d redirects", e.Limit)
}

// HandshakeKind tags the two TLS handshake failure classes that get
// translated. Faults that are neither transport I/O nor certificate
// rejection propagate in their original form instead.
type HandshakeKind int

const (
	HandshakeIO HandshakeKind = iota
	HandshakeAuth
)

func (k HandshakeKind) String() string {
	if k == HandshakeAuth {
		return "authentication"
	}
	return "i/o"
}

// HandshakeError is the single handshake-failure signal. Its message is
// fixed, the underlying fault stays reachable through Unwrap.
type HandshakeError struct {
	Kind HandshakeKind
	Host string
	Err  error
}

func (e *HandshakeError) Error() string {
	return "mimic: tls handshake with " + e.Host + " failed"
}

func (e *HandshakeError) Unwrap() error { return e.Err }
