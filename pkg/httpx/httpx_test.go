package httpx_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/fintrack/pkg/httpx"
	"github.com/aussiebroadwan/fintrack/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpx.Chain(okHandler(), mw("outer"), mw("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, []string{"outer", "inner"}, order)
}

func TestAuthnMiddleware(t *testing.T) {
	km, err := jwtx.NewKeyManager(jwtx.KeyManagerOptions{Issuer: "fintrack-test"})
	require.NoError(t, err)

	tok, err := km.Signer().Sign(jwtx.NewAccessClaims(jwtx.AccessParams{Subject: "user-1", Issuer: "fintrack-test"}))
	require.NoError(t, err)

	var gotUser string
	h := httpx.AuthnMiddleware(km.Verifier, "fintrack_token")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = httpx.UserID(r.Context())
		_, ok := httpx.ClaimsFrom(r.Context())
		require.True(t, ok)
	}))

	t.Run("bearer header", func(t *testing.T) {
		gotUser = ""
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "user-1", gotUser)
	})

	t.Run("cookie", func(t *testing.T) {
		gotUser = ""
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "fintrack_token", Value: httpx.EncodeCookieValue(`"` + tok + `"`)})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "user-1", gotUser)
	})

	t.Run("missing", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Header().Get("WWW-Authenticate"), "invalid_token")
	})

	t.Run("tampered", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tok+"x")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Email string `json:"email"`
	}

	var b body
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.c"}`))
	require.NoError(t, httpx.DecodeJSON(req, &b))
	require.Equal(t, "a@b.c", b.Email)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"emial":"typo"}`))
	require.Error(t, httpx.DecodeJSON(req, &b))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{} {}`))
	require.Error(t, httpx.DecodeJSON(req, &b))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(``))
	require.NoError(t, httpx.DecodeJSON(req, &b))
}

func TestCookiePolicy(t *testing.T) {
	p := httpx.CookiePolicy{Secure: true, PersistFor: 30 * 24 * time.Hour}

	rec := httptest.NewRecorder()
	p.Set(rec, "remembered", "v", true, true)
	p.Set(rec, "session", "v", false, false)
	p.Clear(rec, "gone")

	cookies := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		cookies[c.Name] = c
	}

	r := cookies["remembered"]
	require.Equal(t, "/", r.Path)
	require.True(t, r.Secure)
	require.True(t, r.HttpOnly)
	require.Equal(t, http.SameSiteStrictMode, r.SameSite)
	require.WithinDuration(t, time.Now().Add(30*24*time.Hour), r.Expires, time.Minute)

	s := cookies["session"]
	require.True(t, s.Expires.IsZero())
	require.Zero(t, s.MaxAge)

	require.Equal(t, -1, cookies["gone"].MaxAge)
}

func TestCookieJSONRoundTrip(t *testing.T) {
	type user struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}

	rec := httptest.NewRecorder()
	p := httpx.CookiePolicy{PersistFor: time.Hour}
	require.NoError(t, p.SetJSON(rec, "fintrack_user", user{Name: "Jane, \"JD\" Doe", Email: "jane@example.com"}, false, false))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.NotContains(t, cookies[0].Value, `"`)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])

	var got user
	require.NoError(t, httpx.CookieJSON(req, "fintrack_user", &got))
	require.Equal(t, `Jane, "JD" Doe`, got.Name)

	_, err := httpx.DecodeCookieValue("%%%")
	require.Error(t, err)
}
