package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// PreparedRequest is the owned, mutable per-exchange value derived from a
// [Request]. Its Method, U and Body may be rewritten across redirect hops
// without touching the caller's Request.
type PreparedRequest struct {
	*Request

	Method     string
	U          *url.URL
	Header     http.Header
	HeaderHost string

	// Body holds the full request body. Bodies are materialized into
	// memory at Prepare time, there is no streaming upload.
	Body          []byte
	ContentLength int64
}

func (r *Request) Prepare() (*PreparedRequest, error) {
	u, err := url.Parse(r.URL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.New("unsupported scheme: " + u.Scheme)
	}

	headers := r.Header.Clone()
	host := u.Host
	cl := int64(-1)
	// user defined headers has higher priority
	for k, v := range headers {
		switch strings.ToLower(k) {
		case "host":
			if len(v) != 0 {
				host = v[0]
			}
			delete(headers, k)
		case "content-length":
			if len(v) != 0 {
				if v, err := strconv.ParseInt(v[0], 10, 64); err == nil {
					cl = v
				}
			}
			delete(headers, k)
		default:
			if !httpguts.ValidHeaderFieldName(k) {
				return nil, fmt.Errorf("invalid header name %q", k)
			}
			for _, v := range v {
				if !httpguts.ValidHeaderFieldValue(v) {
					return nil, fmt.Errorf("invalid value for header %q", k)
				}
			}
		}
	}
	if host == "" {
		return nil, url.InvalidHostError("empty host")
	}

	method := r.Method
	if method == "" {
		method = "GET"
	}

	pr := &PreparedRequest{
		Request: r, U: u,
		Method: method,
		Header: headers, HeaderHost: host,
		ContentLength: -1,
	}
	if err := pr.materializeBody(); err != nil {
		return nil, err
	}
	if cl != -1 && pr.ContentLength != cl {
		return nil, errors.New("conflicting value between body size and content-length request header")
	}
	return pr, nil
}

// should only be called once at [Prepare]
func (r *PreparedRequest) materializeBody() error {
	if r.Request.Body == nil {
		return nil
	}
	switch b := r.Request.Body.(type) {
	case string:
		r.Body = []byte(b)
	case []byte:
		r.Body = b
	case *bytes.Buffer:
		r.Body = b.Bytes()
	case *bytes.Reader:
		snapshot := *b
		buf, err := io.ReadAll(&snapshot)
		if err != nil {
			return err
		}
		r.Body = buf
	case *strings.Reader:
		snapshot := *b
		buf, err := io.ReadAll(&snapshot)
		if err != nil {
			return err
		}
		r.Body = buf
	case io.Reader:
		buf, err := io.ReadAll(b)
		if err != nil {
			return err
		}
		if c, ok := b.(io.Closer); ok {
			c.Close()
		}
		r.Body = buf
	default:
		return fmt.Errorf("unsupported body type: %T", r.Request.Body)
	}
	r.ContentLength = int64(len(r.Body))
	return nil
}

// Redirect rewrites the request in place for the next hop. Every 3xx
// status except 307 demotes the method to GET and drops the body.
func (r *PreparedRequest) Redirect(status int, target *url.URL) {
	if status != http.StatusTemporaryRedirect {
		r.Method = http.MethodGet
		r.Body = nil
		r.ContentLength = -1
	}
	r.U = target
	r.HeaderHost = target.Host
}
