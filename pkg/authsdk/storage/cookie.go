package storage

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/aussiebroadwan/fintrack/pkg/httpx"
)

// CookieTTL is how long a persistent cookie lives.
const CookieTTL = 30 * 24 * time.Hour

// CookieBackend keeps values as cookies in a jar scoped to the API's URL.
// Sharing the jar with the HTTP client lets the server read the same
// cookies it sets after login.
type CookieBackend struct {
	Jar http.CookieJar
	URL *url.URL

	// Secure marks cookies HTTPS-only. NewCookieBackend turns it on for
	// https URLs.
	Secure bool
	Now    func() time.Time
}

func NewCookieBackend(jar http.CookieJar, rawURL string) (*CookieBackend, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse cookie url: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("cookie url %q has no host", rawURL)
	}
	return &CookieBackend{
		Jar:    jar,
		URL:    &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"},
		Secure: u.Scheme == "https",
		Now:    time.Now,
	}, nil
}

func (c *CookieBackend) Get(_ context.Context, key string) (string, bool, error) {
	for _, ck := range c.Jar.Cookies(c.URL) {
		if ck.Name != key {
			continue
		}
		v, err := httpx.DecodeCookieValue(ck.Value)
		if err != nil {
			return "", false, fmt.Errorf("cookie %s: %w", key, err)
		}
		return v, true, nil
	}
	return "", false, nil
}

// Set writes a SameSite=Strict cookie on path /. Persistent cookies expire
// after CookieTTL; the rest are session cookies.
func (c *CookieBackend) Set(_ context.Context, key, value string, persistent bool) error {
	ck := &http.Cookie{
		Name:     key,
		Value:    httpx.EncodeCookieValue(value),
		Path:     "/",
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	}
	if persistent {
		ck.Expires = c.Now().Add(CookieTTL).UTC()
	}
	c.Jar.SetCookies(c.URL, []*http.Cookie{ck})
	return nil
}

func (c *CookieBackend) Delete(_ context.Context, key string) error {
	c.Jar.SetCookies(c.URL, []*http.Cookie{{
		Name:   key,
		Path:   "/",
		Secure: c.Secure,
		MaxAge: -1,
	}})
	return nil
}
