package storage

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/aussiebroadwan/fintrack/pkg/authsdk"
)

// Adapter spreads values over the cookie, persistent and session backends.
// A nil backend is skipped. Backend failures are logged and otherwise
// ignored: losing a copy of the session must not fail a login.
type Adapter struct {
	Cookies    Backend
	Persistent Backend
	Session    Backend
	Logger     *slog.Logger
}

func NewAdapter(cookies, persistent, session Backend, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{Cookies: cookies, Persistent: persistent, Session: session, Logger: logger}
}

var _ authsdk.Storage = (*Adapter)(nil)

// SetItem stores value as JSON in the cookie backend and in either the
// persistent or the session backend. The copy in the other one is removed
// so it cannot shadow the new value.
func (a *Adapter) SetItem(ctx context.Context, key string, value any, persistent bool) {
	raw, err := json.Marshal(value)
	if err != nil {
		a.Logger.WarnContext(ctx, "storage encode failed", "key", key, "error", err)
		return
	}

	a.set(ctx, "cookie", a.Cookies, key, string(raw), persistent)
	if persistent {
		a.set(ctx, "persistent", a.Persistent, key, string(raw), true)
		a.delete(ctx, "session", a.Session, key)
	} else {
		a.set(ctx, "session", a.Session, key, string(raw), false)
		a.delete(ctx, "persistent", a.Persistent, key)
	}
}

// GetItem decodes the first copy of key found, checking session, then
// persistent, then cookies. It reports false when no backend holds the key
// or the value does not decode into dst.
func (a *Adapter) GetItem(ctx context.Context, key string, dst any) bool {
	for _, b := range []struct {
		name string
		b    Backend
	}{{"session", a.Session}, {"persistent", a.Persistent}, {"cookie", a.Cookies}} {
		if b.b == nil {
			continue
		}
		raw, ok, err := b.b.Get(ctx, key)
		if err != nil {
			a.Logger.WarnContext(ctx, "storage read failed", "backend", b.name, "key", key, "error", err)
			continue
		}
		if !ok {
			continue
		}
		if err := json.Unmarshal([]byte(raw), dst); err != nil {
			a.Logger.WarnContext(ctx, "storage decode failed", "backend", b.name, "key", key, "error", err)
			return false
		}
		return true
	}
	return false
}

// RemoveItem deletes key from every backend.
func (a *Adapter) RemoveItem(ctx context.Context, key string) {
	a.delete(ctx, "cookie", a.Cookies, key)
	a.delete(ctx, "persistent", a.Persistent, key)
	a.delete(ctx, "session", a.Session, key)
}

func (a *Adapter) GetCurrentUser(ctx context.Context) (authsdk.User, bool) {
	var u authsdk.User
	if !a.GetItem(ctx, KeyUser, &u) || u.ID == "" {
		return authsdk.User{}, false
	}
	return u, true
}

func (a *Adapter) GetToken(ctx context.Context) string {
	var tok string
	a.GetItem(ctx, KeyToken, &tok)
	return tok
}

func (a *Adapter) GetRefreshToken(ctx context.Context) string {
	var tok string
	a.GetItem(ctx, KeyRefreshToken, &tok)
	return tok
}

func (a *Adapter) IsRemembered(ctx context.Context) bool {
	var remember bool
	a.GetItem(ctx, KeyRemember, &remember)
	return remember
}

// SaveAuth stores a signed-in session. rememberMe picks the persistent
// backend and a long-lived cookie.
func (a *Adapter) SaveAuth(ctx context.Context, user authsdk.User, token, refreshToken string, rememberMe bool) {
	a.SetItem(ctx, KeyUser, user, rememberMe)
	a.SetItem(ctx, KeyToken, token, rememberMe)
	if refreshToken != "" {
		a.SetItem(ctx, KeyRefreshToken, refreshToken, rememberMe)
	} else {
		a.RemoveItem(ctx, KeyRefreshToken)
	}
	a.SetItem(ctx, KeyRemember, rememberMe, rememberMe)
}

func (a *Adapter) ClearAuth(ctx context.Context) {
	for _, k := range AuthKeys {
		a.RemoveItem(ctx, k)
	}
}

func (a *Adapter) set(ctx context.Context, name string, b Backend, key, value string, persistent bool) {
	if b == nil {
		return
	}
	if err := b.Set(ctx, key, value, persistent); err != nil {
		a.Logger.WarnContext(ctx, "storage write failed", "backend", name, "key", key, "error", err)
	}
}

func (a *Adapter) delete(ctx context.Context, name string, b Backend, key string) {
	if b == nil {
		return
	}
	if err := b.Delete(ctx, key); err != nil {
		a.Logger.WarnContext(ctx, "storage delete failed", "backend", name, "key", key, "error", err)
	}
}
