package http

import (
	"io"
	"net/http"
	"net/url"
)

type Request struct {
	Method string
	URL    string
	Body   interface{}
	Header http.Header
}

type Response struct {
	Proto      string
	Status     string
	StatusCode int
	Header     http.Header

	ContentLength int64
	Body          io.ReadCloser

	// URL is the request URL this response was produced for. On a
	// followed redirect chain it names the final hop, not the URL the
	// caller originally submitted.
	URL *url.URL
}
