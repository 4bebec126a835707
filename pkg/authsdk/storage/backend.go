// Package storage keeps a client's session across three backends, the same
// way a browser spreads it over cookies, localStorage and sessionStorage.
//
// Every value is JSON. Reads always try the session backend first, then the
// persistent backend, then cookies.
package storage

import "context"

// Keys under which the auth session is kept.
const (
	KeyUser         = "fintrack_user"
	KeyToken        = "fintrack_token"
	KeyRefreshToken = "fintrack_refresh_token"
	KeyRemember     = "fintrack_remember"
)

// AuthKeys lists every key ClearAuth removes.
var AuthKeys = []string{KeyUser, KeyToken, KeyRefreshToken, KeyRemember}

// Backend is one place a value can live. Get reports ok=false for a missing
// key. persistent tells backends that distinguish session from long-lived
// entries (cookies) which kind to write; the others ignore it.
type Backend interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string, persistent bool) error
	Delete(ctx context.Context, key string) error
}
