package transport

import (
	"compress/flate"
	"compress/gzip"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"

	"github.com/klaralund/go-mimic/internal/http"
)

// decodeBody swaps the response body for a decoding reader when the
// Content-Encoding is one we understand. The decoder is constructed on
// first read so that Receive stays non-blocking with respect to body
// bytes. Unknown encodings are left untouched for the caller.
func decodeBody(resp *http.Response) {
	var open func(io.Reader) (io.ReadCloser, error)
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "gzip":
		open = func(r io.Reader) (io.ReadCloser, error) { return gzip.NewReader(r) }
	case "deflate":
		open = func(r io.Reader) (io.ReadCloser, error) { return flate.NewReader(r), nil }
	case "br":
		open = func(r io.Reader) (io.ReadCloser, error) { return io.NopCloser(brotli.NewReader(r)), nil }
	case "zstd":
		open = func(r io.Reader) (io.ReadCloser, error) {
			d, err := zstd.NewReader(r)
			if err != nil {
				return nil, err
			}
			return d.IOReadCloser(), nil
		}
	default:
		return
	}
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Body = &decodedBody{src: resp.Body, open: open}
}

type decodedBody struct {
	src  io.ReadCloser
	open func(io.Reader) (io.ReadCloser, error)
	dec  io.ReadCloser
	err  error
}

func (b *decodedBody) Read(p []byte) (int, error) {
	if b.err != nil {
		return 0, b.err
	}
	if b.dec == nil {
		b.dec, b.err = b.open(b.src)
		if b.err != nil {
			return 0, b.err
		}
	}
	return b.dec.Read(p)
}

func (b *decodedBody) Close() error {
	if b.dec != nil {
		b.dec.Close()
	}
	return b.src.Close()
}
