package internal

import (
	"crypto/tls"
	"crypto/x509"
)

// TLSOptions is the handshake policy applied when the target scheme is
// https. The zero value negotiates TLS 1.2 through 1.3 with the platform
// default cipher suites and standard chain verification.
type TLSOptions struct {
	MinVersion uint16 // defaults to tls.VersionTLS12
	MaxVersion uint16 // defaults to tls.VersionTLS13

	// Ciphers selects between the platform default negotiation and an
	// explicit ordered suite list. nil means [PlatformCiphers].
	Ciphers CipherPolicy

	// VerifyPeer, when set, replaces chain verification entirely. It
	// receives the raw peer certificates; returning nil accepts the
	// connection. Same contract as [tls.Config.VerifyPeerCertificate].
	VerifyPeer func(rawCerts [][]byte, verifiedChains [][]*x509.Certificate) error

	Revocation RevocationMode
}

// CipherPolicy is a closed choice: either [PlatformCiphers] or
// [ExplicitCiphers]. The two are distinguishable at the type level so a
// configured-but-disabled suite list cannot exist.
type CipherPolicy interface {
	cipherPolicy()
}

// PlatformCiphers offers whatever the runtime's TLS stack negotiates by
// default.
type PlatformCiphers struct{}

func (PlatformCiphers) cipherPolicy() {}

// ExplicitCiphers offers exactly Suites, in order, during the
// handshake. Used to mimic a specific client's negotiation fingerprint.
type ExplicitCiphers struct {
	Suites []uint16
}

func (ExplicitCiphers) cipherPolicy() {}

// RevocationMode controls certificate revocation checking. The Go TLS
// stack performs no online CRL or OCSP fetch, so the strict mode
// requires a stapled OCSP response instead.
type RevocationMode int

const (
	RevocationOff RevocationMode = iota
	RevocationRequireStaple
)

func (o TLSOptions) minVersion() uint16 {
	if o.MinVersion == 0 {
		return tls.VersionTLS12
	}
	return o.MinVersion
}

func (o TLSOptions) maxVersion() uint16 {
	if o.MaxVersion == 0 {
		return tls.VersionTLS13
	}
	return o.MaxVersion
}

// supportedVersions lists the enabled protocol versions, newest first,
// as they appear in a supported_versions extension.
func (o TLSOptions) supportedVersions() []uint16 {
	min, max := o.minVersion(), o.maxVersion()
	var vs []uint16
	for v := max; v >= min; v-- {
		vs = append(vs, v)
	}
	return vs
}
