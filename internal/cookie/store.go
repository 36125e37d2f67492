// Package cookie defines the shared cookie store consumed by header
// construction, response parsing and cross-host redirect transfer.
//
// The store is externally owned. Nothing in this module synchronizes
// access to it, concurrent exchanges sharing one store need locking on
// the caller's side.
package cookie

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"golang.org/x/net/publicsuffix"
)

// Store is the capability the transport needs from a cookie container.
// It is intentionally the same shape as [net/http.CookieJar] so any jar
// implementation drops in.
type Store interface {
	Cookies(u *url.URL) []*http.Cookie
	SetCookies(u *url.URL, cookies []*http.Cookie)
}

// Jar is the default Store, a [net/http/cookiejar.Jar] with the public
// suffix list wired in so domain cookies scope correctly.
type Jar struct {
	jar *cookiejar.Jar
}

func NewJar() *Jar {
	// cookiejar.New only fails on a nil-derived option misuse and the
	// public suffix list is statically valid here.
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return &Jar{jar: jar}
}

func (j *Jar) Cookies(u *url.URL) []*http.Cookie { return j.jar.Cookies(u) }

func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) { j.jar.SetCookies(u, cookies) }

// Port copies every cookie currently scoped to the URL from into the
// store under the URL to. Only name and value carry over, the scope is
// reset to the target's host and path defaults. Used when a redirect
// crosses a host boundary.
func Port(s Store, from, to *url.URL) {
	cookies := s.Cookies(from)
	if len(cookies) == 0 {
		return
	}
	ported := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		ported = append(ported, &http.Cookie{Name: c.Name, Value: c.Value})
	}
	s.SetCookies(to, ported)
}
