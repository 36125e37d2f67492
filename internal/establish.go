package internal

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"

	utls "github.com/refraction-networking/utls"

	"github.com/klaralund/go-mimic/internal/http"
)

var schemePorts = map[string]string{
	"http": "80", "https": "443",
}

// establish obtains the transport stream for the current hop via the
// tunnel and, for https targets, negotiates TLS on top of it. Both the
// raw and the negotiated stream are retained on the exchange for
// transmit/receive and for later release.
func (ex *Exchange) establish(ctx context.Context, r *http.PreparedRequest) error {
	host := r.U.Hostname()
	port := r.U.Port()
	if port == "" {
		port = schemePorts[r.U.Scheme]
	}
	ex.log.V(1).Info("connecting", "host", host, "port", port, "scheme", r.U.Scheme)

	raw, err := ex.client.tunnel().Connect(ctx, host, port)
	if err != nil {
		return err
	}
	ex.raw, ex.conn = raw, raw
	if r.U.Scheme != "https" {
		return nil
	}

	conn, err := ex.client.handshake(ctx, raw, host)
	if err != nil {
		return err
	}
	ex.conn = conn
	return nil
}

// handshake negotiates TLS on raw according to the configured policy.
// On I/O or certificate failure the error is translated to a
// [HandshakeError]; cancellation and unrelated faults propagate in
// their original form.
func (c *Client) handshake(ctx context.Context, raw net.Conn, serverName string) (net.Conn, error) {
	switch policy := c.TLS.Ciphers.(type) {
	case ExplicitCiphers:
		return c.handshakeExplicit(ctx, raw, serverName, policy)
	default: // nil or PlatformCiphers
		return c.handshakePlatform(ctx, raw, serverName)
	}
}

func (c *Client) handshakePlatform(ctx context.Context, raw net.Conn, serverName string) (net.Conn, error) {
	config := &tls.Config{
		ServerName: serverName,
		MinVersion: c.TLS.minVersion(),
		MaxVersion: c.TLS.maxVersion(),
	}
	if c.TLS.VerifyPeer != nil {
		config.InsecureSkipVerify = true
		config.VerifyPeerCertificate = c.TLS.VerifyPeer
	}
	conn := tls.Client(raw, config)
	if err := conn.HandshakeContext(ctx); err != nil {
		return nil, translateHandshake(ctx, serverName, err)
	}
	state := conn.ConnectionState()
	if err := c.checkRevocation(serverName, state.OCSPResponse); err != nil {
		return nil, err
	}
	c.logger().V(1).Info("tls negotiated",
		"version", tls.VersionName(state.Version), "suite", tls.CipherSuiteName(state.CipherSuite))
	return conn, nil
}

func (c *Client) handshakeExplicit(ctx context.Context, raw net.Conn, serverName string, policy ExplicitCiphers) (net.Conn, error) {
	config := &utls.Config{
		ServerName: serverName,
		MinVersion: c.TLS.minVersion(),
		MaxVersion: c.TLS.maxVersion(),
	}
	if c.TLS.VerifyPeer != nil {
		config.InsecureSkipVerify = true
		config.VerifyPeerCertificate = c.TLS.VerifyPeer
	}
	conn := utls.UClient(raw, config, utls.HelloCustom)
	if err := conn.ApplyPreset(c.helloSpec(policy)); err != nil {
		return nil, err
	}
	if err := conn.HandshakeContext(ctx); err != nil {
		return nil, translateHandshake(ctx, serverName, err)
	}
	state := conn.ConnectionState()
	if err := c.checkRevocation(serverName, state.OCSPResponse); err != nil {
		return nil, err
	}
	c.logger().V(1).Info("tls negotiated",
		"version", tls.VersionName(state.Version), "suite", tls.CipherSuiteName(state.CipherSuite), "explicitSuites", len(policy.Suites))
	return conn, nil
}

// helloSpec renders the explicit cipher policy as a ClientHello that
// offers exactly the configured suites in their configured order. The
// extension set is a plain modern client's; the suite list is the part
// the fingerprint rides on.
func (c *Client) helloSpec(policy ExplicitCiphers) *utls.ClientHelloSpec {
	return &utls.ClientHelloSpec{
		TLSVersMin:         c.TLS.minVersion(),
		TLSVersMax:         c.TLS.maxVersion(),
		CipherSuites:       policy.Suites,
		CompressionMethods: []uint8{0x00},
		Extensions: []utls.TLSExtension{
			&utls.SNIExtension{},
			&utls.RenegotiationInfoExtension{Renegotiation: utls.RenegotiateOnceAsClient},
			&utls.SupportedCurvesExtension{Curves: []utls.CurveID{
				utls.X25519, utls.CurveP256, utls.CurveP384,
			}},
			&utls.SupportedPointsExtension{SupportedPoints: []uint8{0x00}},
			&utls.SessionTicketExtension{},
			&utls.ALPNExtension{AlpnProtocols: []string{"http/1.1"}},
			&utls.StatusRequestExtension{},
			&utls.SignatureAlgorithmsExtension{SupportedSignatureAlgorithms: []utls.SignatureScheme{
				utls.ECDSAWithP256AndSHA256,
				utls.PSSWithSHA256,
				utls.PKCS1WithSHA256,
				utls.ECDSAWithP384AndSHA384,
				utls.PSSWithSHA384,
				utls.PKCS1WithSHA384,
				utls.PSSWithSHA512,
				utls.PKCS1WithSHA512,
			}},
			&utls.KeyShareExtension{KeyShares: []utls.KeyShare{
				{Group: utls.X25519},
			}},
			&utls.PSKKeyExchangeModesExtension{Modes: []uint8{utls.PskModeDHE}},
			&utls.SupportedVersionsExtension{Versions: c.TLS.supportedVersions()},
		},
	}
}

func (c *Client) checkRevocation(serverName string, staple []byte) error {
	if c.TLS.Revocation == RevocationRequireStaple && len(staple) == 0 {
		return &HandshakeError{
			Kind: HandshakeAuth,
			Host: serverName,
			Err:  errors.New("no stapled OCSP response"),
		}
	}
	return nil
}

// translateHandshake folds transport I/O faults and certificate
// rejections into the single handshake-failure signal. Cancellation
// surfaces as the context's own error, and anything else (including a
// rejection produced by the caller's VerifyPeer callback) keeps its
// original form.
func translateHandshake(ctx context.Context, host string, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}

	var (
		verifyErr   *tls.CertificateVerificationError
		uVerifyErr  *utls.CertificateVerificationError
		unknownAuth x509.UnknownAuthorityError
		hostnameErr x509.HostnameError
		invalidErr  x509.CertificateInvalidError
		recordErr   tls.RecordHeaderError
		uRecordErr  utls.RecordHeaderError
		netErr      net.Error
	)
	switch {
	case errors.As(err, &verifyErr), errors.As(err, &uVerifyErr),
		errors.As(err, &unknownAuth), errors.As(err, &hostnameErr), errors.As(err, &invalidErr):
		return &HandshakeError{Kind: HandshakeAuth, Host: host, Err: err}
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF),
		errors.As(err, &recordErr), errors.As(err, &uRecordErr), errors.As(err, &netErr):
		return &HandshakeError{Kind: HandshakeIO, Host: host, Err: err}
	}
	return err
}
