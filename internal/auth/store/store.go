package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/fintrack/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Drivers expose sub-repositories
// rather than flat methods so a transaction hands out the same repos bound
// to the transaction, and nested transactions are impossible to express.
type Store interface {
	Users() Users
	RefreshTokens() RefreshTokens
	PendingLogins() PendingLogins
	RecoveryCodes() RecoveryCodes

	ApplyMigrations() error

	// Tx starts a transaction. The caller MUST Commit or Rollback.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
	Ping(ctx context.Context) error
}

type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// CreateUser inserts u. A duplicate email yields ErrAlreadyExists.
	CreateUser(ctx context.Context, u domain.User) error

	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail matches case-insensitively.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// UpdateProfile writes name and profile fields and bumps updated_at.
	UpdateProfile(ctx context.Context, u domain.User) error

	UpdatePasswordHash(ctx context.Context, userID, hash string) error

	// SetTwoFactorSecret stores a secret from setup without enabling 2FA.
	SetTwoFactorSecret(ctx context.Context, userID, secret string) error

	// EnableTwoFactor stamps two_factor_at.
	EnableTwoFactor(ctx context.Context, userID string, at time.Time) error

	// DisableTwoFactor clears both the timestamp and the secret.
	DisableTwoFactor(ctx context.Context, userID string) error

	DeleteUser(ctx context.Context, userID string) error
	CountUsers(ctx context.Context) (int, error)
}

type RefreshTokens interface {
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// GetRefreshTokenByHash returns the record regardless of revocation or
	// expiry; callers decide.
	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	RevokeRefreshToken(ctx context.Context, hash string) error

	// RevokeSession revokes every token rotated from one login.
	RevokeSession(ctx context.Context, sessionID string) error

	RevokeAllUserRefreshTokens(ctx context.Context, userID string) error

	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

type PendingLogins interface {
	// UpsertPendingLogin stores p, replacing any pending login the same user
	// already had.
	UpsertPendingLogin(ctx context.Context, p domain.PendingLogin) error

	// GetPendingLogin returns the record only while it has not expired.
	GetPendingLogin(ctx context.Context, id string, now time.Time) (domain.PendingLogin, error)

	// ReservePendingLoginAttempt counts one verification attempt against a
	// live pending login and returns the updated record. ErrNotFound means
	// no unexpired record with fewer than maxAttempts attempts exists.
	ReservePendingLoginAttempt(ctx context.Context, id string, maxAttempts int, now time.Time) (domain.PendingLogin, error)

	// DeletePendingLogin returns ErrNotFound when nothing was deleted.
	DeletePendingLogin(ctx context.Context, id string) error
	DeleteExpiredPendingLogins(ctx context.Context, now time.Time) (int64, error)
}

type RecoveryCodes interface {
	CreateRecoveryCode(ctx context.Context, userID, codeHash string) error

	// ConsumeRecoveryCode deletes a matching code, reporting whether one
	// existed.
	ConsumeRecoveryCode(ctx context.Context, userID, codeHash string) (bool, error)

	DeleteAllRecoveryCodes(ctx context.Context, userID string) error
	CountRecoveryCodes(ctx context.Context, userID string) (int, error)
}
