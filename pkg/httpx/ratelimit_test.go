package httpx_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/fintrack/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
}

func requestFrom(ip string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = ip + ":12345"
	return req
}

func TestIPKeyExtractor(t *testing.T) {
	t.Run("remote addr", func(t *testing.T) {
		require.Equal(t, "192.168.1.1", httpx.IPKeyExtractor(requestFrom("192.168.1.1")))
	})

	t.Run("prefers X-Forwarded-For", func(t *testing.T) {
		req := requestFrom("192.168.1.1")
		req.Header.Set("X-Forwarded-For", "203.0.113.1, 192.168.1.1")
		require.Equal(t, "203.0.113.1", httpx.IPKeyExtractor(req))
	})

	t.Run("falls back to X-Real-IP", func(t *testing.T) {
		req := requestFrom("192.168.1.1")
		req.Header.Set("X-Real-IP", "203.0.113.2")
		require.Equal(t, "203.0.113.2", httpx.IPKeyExtractor(req))
	})
}

func TestJSONFieldKeyExtractorRestoresBody(t *testing.T) {
	body := `{"email":" Jane@Example.com ","password":"x"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))

	require.Equal(t, "jane@example.com", httpx.JSONFieldKeyExtractor("email")(req))

	rest, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	require.JSONEq(t, body, string(rest))
}

func TestJSONFieldKeyExtractorIgnoresJunk(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("not json"))
	require.Equal(t, "", httpx.JSONFieldKeyExtractor("email")(req))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":42}`))
	require.Equal(t, "", httpx.JSONFieldKeyExtractor("email")(req))
}

func TestCompositeKeyExtractorSkipsEmpty(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	req.RemoteAddr = "10.0.0.1:1"

	key := httpx.CompositeKeyExtractor(":", httpx.IPKeyExtractor, httpx.JSONFieldKeyExtractor("email"))(req)
	require.Equal(t, "10.0.0.1", key)
}

func TestRateLimitMiddleware(t *testing.T) {
	cfg := httpx.RateLimitConfig{RequestsPerWindow: 3, Window: time.Minute, Burst: 3}

	t.Run("blocks over the limit", func(t *testing.T) {
		h := httpx.RateLimitByIP(cfg)(okHandler())

		for i := range 3 {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, requestFrom("192.168.1.1"))
			require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
		}

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestFrom("192.168.1.1"))
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		require.NotEmpty(t, rec.Header().Get("Retry-After"))
		require.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))

		var body httpx.ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, "rate_limit_exceeded", body.Error)
	})

	t.Run("tracks keys separately", func(t *testing.T) {
		h := httpx.RateLimitByIP(cfg)(okHandler())
		for range 3 {
			h.ServeHTTP(httptest.NewRecorder(), requestFrom("10.0.0.1"))
		}

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestFrom("10.0.0.2"))
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("lets unkeyed requests through", func(t *testing.T) {
		h := httpx.RateLimitMiddleware(cfg, func(*http.Request) string { return "" })(okHandler())
		for range 10 {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, requestFrom("10.0.0.3"))
			require.Equal(t, http.StatusOK, rec.Code)
		}
	})
}

func TestRateLimitByIPAndJSONField(t *testing.T) {
	cfg := httpx.RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute, Burst: 1}
	h := httpx.RateLimitByIPAndJSONField(cfg, "email")(okHandler())

	post := func(email string) int {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"`+email+`"}`))
		req.RemoteAddr = "10.1.1.1:1"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusOK, post("a@example.com"))
	require.Equal(t, http.StatusTooManyRequests, post("a@example.com"))
	require.Equal(t, http.StatusOK, post("b@example.com"))
}

func TestParseRateLimitFromEnv(t *testing.T) {
	def := httpx.RateLimitConfig{RequestsPerWindow: 10, Window: time.Minute, Burst: 5}

	t.Run("defaults without env", func(t *testing.T) {
		require.Equal(t, def, httpx.ParseRateLimitFromEnv("FT_NONE", def))
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("RATELIMIT_FT_ALL_REQUESTS", "50")
		t.Setenv("RATELIMIT_FT_ALL_WINDOW_SEC", "30")
		t.Setenv("RATELIMIT_FT_ALL_BURST", "7")

		got := httpx.ParseRateLimitFromEnv("FT_ALL", def)
		require.Equal(t, httpx.RateLimitConfig{RequestsPerWindow: 50, Window: 30 * time.Second, Burst: 7}, got)
	})

	t.Run("ignores invalid and zero values", func(t *testing.T) {
		t.Setenv("RATELIMIT_FT_BAD_REQUESTS", "lots")
		t.Setenv("RATELIMIT_FT_BAD_WINDOW_SEC", "0")
		t.Setenv("RATELIMIT_FT_BAD_BURST", "-1")

		require.Equal(t, def, httpx.ParseRateLimitFromEnv("FT_BAD", def))
	})
}
