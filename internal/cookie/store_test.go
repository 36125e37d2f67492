package cookie_test

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/klaralund/go-mimic/internal/cookie"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func TestJarScopesByHost(t *testing.T) {
	jar := cookie.NewJar()
	a := mustParse(t, "http://a.test/")
	b := mustParse(t, "http://b.test/")
	jar.SetCookies(a, []*http.Cookie{{Name: "sid", Value: "123"}})

	if cs := jar.Cookies(a); len(cs) != 1 || cs[0].Value != "123" {
		t.Fatalf("cookies for a.test = %v", cs)
	}
	if cs := jar.Cookies(b); len(cs) != 0 {
		t.Fatalf("cookie leaked to b.test: %v", cs)
	}
}

func TestPortMovesCookiesAcrossHosts(t *testing.T) {
	jar := cookie.NewJar()
	a := mustParse(t, "http://a.test/")
	b := mustParse(t, "http://b.test/")
	jar.SetCookies(a, []*http.Cookie{
		{Name: "sid", Value: "123"},
		{Name: "theme", Value: "dark"},
	})

	cookie.Port(jar, a, b)

	got := map[string]string{}
	for _, c := range jar.Cookies(b) {
		got[c.Name] = c.Value
	}
	if got["sid"] != "123" || got["theme"] != "dark" {
		t.Errorf("ported cookies = %v", got)
	}
	// the originals stay behind
	if cs := jar.Cookies(a); len(cs) != 2 {
		t.Errorf("source cookies = %v", cs)
	}
}

func TestPortEmptyScopeIsNoop(t *testing.T) {
	jar := cookie.NewJar()
	cookie.Port(jar, mustParse(t, "http://a.test/"), mustParse(t, "http://b.test/"))
	if cs := jar.Cookies(mustParse(t, "http://b.test/")); len(cs) != 0 {
		t.Errorf("unexpected cookies %v", cs)
	}
}
