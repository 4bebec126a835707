package httpx

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// CookiePolicy holds the attributes shared by every auth cookie.
type CookiePolicy struct {
	// Secure is off only in local development over plain HTTP.
	Secure bool
	// PersistFor is the lifetime of "remember me" cookies.
	PersistFor time.Duration
}

// Set writes a cookie scoped to the whole site with SameSite=Strict. When
// persistent is false the cookie lives for the browser session only.
func (p CookiePolicy) Set(w http.ResponseWriter, name, value string, persistent, httpOnly bool) {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Secure:   p.Secure,
		HttpOnly: httpOnly,
		SameSite: http.SameSiteStrictMode,
	}
	if persistent {
		c.Expires = time.Now().Add(p.PersistFor).UTC()
		c.MaxAge = int(p.PersistFor.Seconds())
	}
	http.SetCookie(w, c)
}

// Clear expires a cookie previously written with Set.
func (p CookiePolicy) Clear(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Secure:   p.Secure,
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

// SetJSON writes v as a cookie value using EncodeCookieValue.
func (p CookiePolicy) SetJSON(w http.ResponseWriter, name string, v any, persistent, httpOnly bool) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cookie %s: %w", name, err)
	}
	p.Set(w, name, EncodeCookieValue(string(raw)), persistent, httpOnly)
	return nil
}

// EncodeCookieValue makes raw safe to store in a cookie. Cookie values
// cannot hold quotes, commas or spaces, so JSON goes in base64url form.
func EncodeCookieValue(raw string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCookieValue reverses EncodeCookieValue.
func DecodeCookieValue(v string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(v)
	if err != nil {
		return "", fmt.Errorf("decode cookie value: %w", err)
	}
	return string(b), nil
}

// CookieJSON decodes a cookie written with SetJSON into dst.
func CookieJSON(r *http.Request, name string, dst any) error {
	c, err := r.Cookie(name)
	if err != nil {
		return err
	}
	raw, err := DecodeCookieValue(c.Value)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(raw), dst)
}
