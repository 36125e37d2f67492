// Package mimic is an HTTP/1.1 client transport that speaks the wire
// protocol itself: requests go out over a stream obtained from a
// pluggable proxy tunnel, optionally upgraded to TLS with
// caller-controlled cipher-suite ordering, with a hand-rolled 3xx
// redirect state machine, cross-host cookie transfer and a byte-exact
// per-attempt transcript.
package mimic

import (
	"net/http"

	"github.com/klaralund/go-mimic/internal"
	imodel "github.com/klaralund/go-mimic/internal/http"
)

type Header = http.Header

type Client = internal.Client
type Exchange = internal.Exchange
type Request = imodel.Request
type PreparedRequest = imodel.PreparedRequest
type Response = imodel.Response

type Handler = internal.Handler
type Middleware = internal.Middleware

// TLS policy surface.
type TLSOptions = internal.TLSOptions
type CipherPolicy = internal.CipherPolicy
type PlatformCiphers = internal.PlatformCiphers
type ExplicitCiphers = internal.ExplicitCiphers
type RevocationMode = internal.RevocationMode

const (
	RevocationOff           = internal.RevocationOff
	RevocationRequireStaple = internal.RevocationRequireStaple
)

// Error taxonomy.
type HandshakeError = internal.HandshakeError
type HandshakeKind = internal.HandshakeKind
type RedirectLimitError = internal.RedirectLimitError

const (
	HandshakeIO   = internal.HandshakeIO
	HandshakeAuth = internal.HandshakeAuth
)

var (
	ErrNilRequest    = internal.ErrNilRequest
	ErrNoCookieStore = internal.ErrNoCookieStore
	ErrExchangeBusy  = internal.ErrExchangeBusy
)
