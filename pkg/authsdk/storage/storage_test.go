package storage

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/fintrack/pkg/authsdk"
	"github.com/aussiebroadwan/fintrack/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newCookieBackend(t *testing.T, rawURL string) *CookieBackend {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	c, err := NewCookieBackend(jar, rawURL)
	require.NoError(t, err)
	return c
}

func newAdapter(t *testing.T) (*Adapter, *CookieBackend, *SQLiteBackend, *MemoryBackend) {
	t.Helper()
	cookies := newCookieBackend(t, "http://127.0.0.1:8080")
	disk, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = disk.Close() })
	mem := NewMemoryBackend()
	return NewAdapter(cookies, disk, mem, quietLogger()), cookies, disk, mem
}

func TestMemoryBackend(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemoryBackend()

	_, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, m.Set(ctx, "k", "v", false))
	v, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", v)

	require.NoError(t, m.Delete(ctx, "k"))
	_, ok, _ = m.Get(ctx, "k")
	require.False(t, ok)
}

func TestSQLiteBackend(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.db")

	db, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, db.Set(ctx, "k", `"first"`, true))
	require.NoError(t, db.Set(ctx, "k", `"second"`, true))
	require.NoError(t, db.Close())

	t.Run("survives reopen", func(t *testing.T) {
		db, err := OpenSQLite(ctx, path)
		require.NoError(t, err)
		defer db.Close()

		v, ok, err := db.Get(ctx, "k")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, `"second"`, v)

		require.NoError(t, db.Delete(ctx, "k"))
		_, ok, err = db.Get(ctx, "k")
		require.NoError(t, err)
		require.False(t, ok)
	})
}

func TestCookieBackend(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		c := newCookieBackend(t, "http://127.0.0.1:8080/app")
		require.False(t, c.Secure)

		require.NoError(t, c.Set(ctx, KeyUser, `{"id":"u1","name":"Jane Doe"}`, false))
		v, ok, err := c.Get(ctx, KeyUser)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, `{"id":"u1","name":"Jane Doe"}`, v)

		require.NoError(t, c.Delete(ctx, KeyUser))
		_, ok, err = c.Get(ctx, KeyUser)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("https is secure", func(t *testing.T) {
		c := newCookieBackend(t, "https://fintrack.example.com")
		require.True(t, c.Secure)
	})

	t.Run("persistent cookie expires after thirty days", func(t *testing.T) {
		c := newCookieBackend(t, "http://127.0.0.1:8080")
		c.Now = func() time.Time { return time.Now().Add(-CookieTTL - time.Hour) }

		require.NoError(t, c.Set(ctx, KeyToken, `"tok"`, true))
		_, ok, err := c.Get(ctx, KeyToken)
		require.NoError(t, err)
		require.False(t, ok)

		c.Now = time.Now
		require.NoError(t, c.Set(ctx, KeyToken, `"tok"`, true))
		_, ok, err = c.Get(ctx, KeyToken)
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("requires a host", func(t *testing.T) {
		jar, _ := cookiejar.New(nil)
		_, err := NewCookieBackend(jar, "/relative")
		require.Error(t, err)
	})

	t.Run("reads cookies set by the server", func(t *testing.T) {
		policy := httpx.CookiePolicy{PersistFor: CookieTTL}
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, policy.SetJSON(w, KeyToken, "server-token", true, true))
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		jar, err := cookiejar.New(nil)
		require.NoError(t, err)
		resp, err := (&http.Client{Jar: jar}).Get(srv.URL)
		require.NoError(t, err)
		resp.Body.Close()

		c, err := NewCookieBackend(jar, srv.URL)
		require.NoError(t, err)
		a := NewAdapter(c, nil, nil, quietLogger())
		require.Equal(t, "server-token", a.GetToken(ctx))
	})
}

func TestAdapterSetItem(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("session write goes to memory and cookie", func(t *testing.T) {
		a, cookies, disk, mem := newAdapter(t)
		a.SetItem(ctx, KeyToken, "abc", false)

		_, ok, _ := mem.Get(ctx, KeyToken)
		require.True(t, ok)
		_, ok, _ = disk.Get(ctx, KeyToken)
		require.False(t, ok)
		v, ok, _ := cookies.Get(ctx, KeyToken)
		require.True(t, ok)
		require.Equal(t, `"abc"`, v)
	})

	t.Run("persistent write clears the session copy", func(t *testing.T) {
		a, _, disk, mem := newAdapter(t)
		a.SetItem(ctx, KeyToken, "old", false)
		a.SetItem(ctx, KeyToken, "new", true)

		_, ok, _ := mem.Get(ctx, KeyToken)
		require.False(t, ok)
		v, ok, _ := disk.Get(ctx, KeyToken)
		require.True(t, ok)
		require.Equal(t, `"new"`, v)
		require.Equal(t, "new", a.GetToken(ctx))
	})

	t.Run("unencodable value is dropped", func(t *testing.T) {
		a, _, _, mem := newAdapter(t)
		a.SetItem(ctx, "bad", make(chan int), false)
		_, ok, _ := mem.Get(ctx, "bad")
		require.False(t, ok)
	})
}

func TestAdapterGetItemPrecedence(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	a, cookies, disk, mem := newAdapter(t)

	require.NoError(t, cookies.Set(ctx, KeyToken, `"from-cookie"`, false))
	require.Equal(t, "from-cookie", a.GetToken(ctx))

	require.NoError(t, disk.Set(ctx, KeyToken, `"from-disk"`, true))
	require.Equal(t, "from-disk", a.GetToken(ctx))

	require.NoError(t, mem.Set(ctx, KeyToken, `"from-memory"`, false))
	require.Equal(t, "from-memory", a.GetToken(ctx))

	t.Run("undecodable value reads as missing", func(t *testing.T) {
		require.NoError(t, mem.Set(ctx, KeyUser, `{not json`, false))
		_, ok := a.GetCurrentUser(ctx)
		require.False(t, ok)
	})

	t.Run("nil backends are skipped", func(t *testing.T) {
		only := NewAdapter(nil, nil, mem, quietLogger())
		require.Equal(t, "from-memory", only.GetToken(ctx))
		only.RemoveItem(ctx, KeyToken)
		require.Empty(t, only.GetToken(ctx))
	})
}

func TestAdapterAuthHelpers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	user := authsdk.User{ID: "u1", Email: "jane@example.com", Name: "Jane Doe", Provider: "password"}

	for _, remember := range []bool{true, false} {
		a, cookies, disk, mem := newAdapter(t)
		a.SaveAuth(ctx, user, "access", "refresh", remember)

		got, ok := a.GetCurrentUser(ctx)
		require.True(t, ok)
		require.Equal(t, user.Email, got.Email)
		require.Equal(t, "access", a.GetToken(ctx))
		require.Equal(t, "refresh", a.GetRefreshToken(ctx))
		require.Equal(t, remember, a.IsRemembered(ctx))

		a.ClearAuth(ctx)
		for _, b := range []Backend{cookies, disk, mem} {
			for _, k := range AuthKeys {
				_, ok, err := b.Get(ctx, k)
				require.NoError(t, err)
				require.False(t, ok, "key %s left behind", k)
			}
		}
		_, ok = a.GetCurrentUser(ctx)
		require.False(t, ok)
		require.False(t, a.IsRemembered(ctx))
	}

	t.Run("empty refresh token removes the stored one", func(t *testing.T) {
		a, _, _, _ := newAdapter(t)
		a.SaveAuth(ctx, user, "access", "refresh", true)
		a.SaveAuth(ctx, user, "access2", "", true)
		require.Empty(t, a.GetRefreshToken(ctx))
		require.Equal(t, "access2", a.GetToken(ctx))
	})
}
