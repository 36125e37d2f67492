package mimic

import (
	"net/url"

	"github.com/klaralund/go-mimic/internal/cookie"
)

// CookieStore is the externally owned (host, path) → cookie mapping
// read during header construction and written during response parsing
// and cross-host redirect transfer. Synchronization across concurrent
// exchanges sharing one store is the owner's problem.
type CookieStore = cookie.Store

// CookieJar is the default store, backed by net/http/cookiejar with the
// public suffix list.
type CookieJar = cookie.Jar

func NewCookieJar() *CookieJar { return cookie.NewJar() }

// PortCookies copies the cookies scoped to from into the store under
// to, name and value preserved, scope reset to the target's defaults.
func PortCookies(s CookieStore, from, to *url.URL) { cookie.Port(s, from, to) }
