package transport

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"net/textproto"
	"sort"
	"strconv"
	"strings"

	"github.com/klaralund/go-mimic/internal/cookie"
	"github.com/klaralund/go-mimic/internal/http"
	"github.com/klaralund/go-mimic/internal/transport/chunked"
)

const defaultReadBufferSize = 4096

// HTTP1 is the default [Serializer] and [Parser] pair.
type HTTP1 struct {
	// ReadBufferSize bounds the initial buffered read used while
	// parsing the status line and headers. Defaults to 4096.
	ReadBufferSize int

	// Decompress enables transparent decoding of gzip, deflate, br and
	// zstd response bodies.
	Decompress bool
}

func (t HTTP1) FirstLine(r *http.PreparedRequest) ([]byte, error) {
	var line bytes.Buffer
	line.WriteString(r.Method)
	line.WriteByte(' ')
	line.WriteString(r.U.RequestURI())
	line.WriteString(" HTTP/1.1\r\n")
	return line.Bytes(), nil
}

// Headers writes the header block in a fixed order: Host first, then
// Content-Length, caller headers sorted by name, the Cookie line, and
// the blank terminator. e.g.:
//
//	Host: www.example.com\r\n
//	X-Xx-Yy: cccccc\r\n
//	\r\n
func (t HTTP1) Headers(r *http.PreparedRequest, cookies cookie.Store) ([]byte, error) {
	var block bytes.Buffer
	block.WriteString("Host: ")
	block.WriteString(r.HeaderHost)
	block.WriteString("\r\n")
	if r.ContentLength != -1 {
		block.WriteString("Content-Length: ")
		block.WriteString(strconv.FormatInt(r.ContentLength, 10))
		block.WriteString("\r\n")
	}

	keys := make([]string, 0, len(r.Header))
	for k := range r.Header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range r.Header[k] {
			block.WriteString(k)
			block.WriteString(": ")
			block.WriteString(v)
			block.WriteString("\r\n")
		}
	}

	if cookies != nil {
		if cs := cookies.Cookies(r.U); len(cs) > 0 {
			block.WriteString("Cookie: ")
			for i, c := range cs {
				if i > 0 {
					block.WriteString("; ")
				}
				block.WriteString(c.Name)
				block.WriteByte('=')
				block.WriteString(c.Value)
			}
			block.WriteString("\r\n")
		}
	}

	block.WriteString("\r\n")
	return block.Bytes(), nil
}

func (t HTTP1) Receive(ctx context.Context, conn io.Reader, r *http.PreparedRequest, cookies cookie.Store) (*http.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	size := t.ReadBufferSize
	if size <= 0 {
		size = defaultReadBufferSize
	}
	closer := io.NopCloser
	if cr, ok := conn.(io.Closer); ok {
		closer = func(r io.Reader) io.ReadCloser { return bodyCloser{r, cr.Close} }
	}
	tp := textproto.NewReader(bufio.NewReaderSize(conn, size))

	line, err := tp.ReadLine()
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	resp := &http.Response{URL: r.U}
	proto, status, ok := strings.Cut(line, " ")
	if !ok {
		return nil, errors.New("malformed HTTP response")
	}
	resp.Proto = proto
	resp.Status = strings.TrimLeft(status, " ")

	statusCode, _, _ := strings.Cut(resp.Status, " ")
	if len(statusCode) != 3 {
		return nil, errors.New("malformed HTTP status code " + statusCode)
	}
	resp.StatusCode, err = strconv.Atoi(statusCode)
	if err != nil || resp.StatusCode < 0 {
		return nil, errors.New("malformed HTTP status code")
	}

	mimeHeader, err := tp.ReadMIMEHeader()
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	if hp, ok := mimeHeader["Pragma"]; ok && len(hp) > 0 && hp[0] == "no-cache" {
		if _, presentcc := mimeHeader["Cache-Control"]; !presentcc {
			mimeHeader["Cache-Control"] = []string{"no-cache"}
		}
	}
	resp.Header = nethttp.Header(mimeHeader)

	if cookies != nil {
		if sc := (&nethttp.Response{Header: resp.Header}).Cookies(); len(sc) > 0 {
			cookies.SetCookies(r.U, sc)
		}
	}

	if err := t.readTransfer(tp.R, r, resp, closer); err != nil {
		return nil, err
	}
	if t.Decompress {
		decodeBody(resp)
	}
	return resp, nil
}

func (t HTTP1) readTransfer(r *bufio.Reader, req *http.PreparedRequest, resp *http.Response, closer func(io.Reader) io.ReadCloser) error {
	if req.Method == nethttp.MethodHead || resp.StatusCode == 204 || resp.StatusCode == 304 || resp.StatusCode/100 == 1 {
		resp.Body = nethttp.NoBody
		return nil
	}

	contentLens := resp.Header["Content-Length"]

	// Hardening against HTTP request smuggling, taken from standard library
	if len(contentLens) > 1 {
		// Per RFC 7230 Section 3.3.2
		first := textproto.TrimString(contentLens[0])
		for _, ct := range contentLens[1:] {
			if first != textproto.TrimString(ct) {
				return fmt.Errorf("http: message cannot contain multiple Content-Length headers; got %q", contentLens)
			}
		}

		// deduplicate Content-Length
		resp.Header.Del("Content-Length")
		resp.Header.Add("Content-Length", first)

		contentLens = resp.Header["Content-Length"]
	}

	cl := int64(-1)
	if len(contentLens) > 0 {
		if n, err := strconv.ParseUint(contentLens[0], 10, 63); err == nil {
			cl = int64(n)
		}
	}

	if resp.Header.Get("Transfer-Encoding") == "chunked" {
		resp.Header.Del("Content-Length")
		resp.ContentLength = -1
		resp.Body = closer(chunked.NewReader(r))
		return nil
	}

	resp.ContentLength = cl
	switch {
	case cl > 0:
		resp.Body = closer(io.LimitReader(r, cl))
	case cl == 0:
		closer(nil).Close()
		resp.Body = nethttp.NoBody
	default:
		// no framing, the body runs until the peer closes
		resp.Body = closer(r)
	}
	return nil
}
