package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/fintrack/internal/auth/domain"
)

type refreshTokensRepo struct {
	db dbtx
}

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	now := time.Now()
	_, err := r.db.ExecContext(ctx, `INSERT INTO refresh_tokens
		(id, user_id, token_hash, session_id, amr, remember_me, expires_at, revoked, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		t.ID, t.UserID, t.TokenHash, t.SessionID, joinFields(t.AMR), boolInt(t.RememberMe),
		toMillis(t.ExpiresAt), toMillis(now), toMillis(now),
	)
	return mapConstraint(err)
}

func (r *refreshTokensRepo) GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error) {
	var (
		t                              domain.RefreshToken
		amr                            string
		remember, revoked              int
		expiresAt, createdAt, updateAt int64
	)
	err := r.db.QueryRowContext(ctx, `SELECT
		id, user_id, token_hash, session_id, amr, remember_me, expires_at, revoked, created_at, updated_at
		FROM refresh_tokens WHERE token_hash = ?`, hash,
	).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.SessionID, &amr, &remember, &expiresAt, &revoked, &createdAt, &updateAt)
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}

	t.AMR = splitFields(amr)
	t.RememberMe = remember != 0
	t.Revoked = revoked != 0
	t.ExpiresAt = fromMillis(expiresAt)
	t.CreatedAt = fromMillis(createdAt)
	t.UpdatedAt = fromMillis(updateAt)
	return t, nil
}

func (r *refreshTokensRepo) RevokeRefreshToken(ctx context.Context, hash string) error {
	return requireRow(r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = 1, updated_at = ? WHERE token_hash = ?`,
		toMillis(time.Now()), hash,
	))
}

func (r *refreshTokensRepo) RevokeSession(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = 1, updated_at = ? WHERE session_id = ? AND revoked = 0`,
		toMillis(time.Now()), sessionID,
	)
	return err
}

func (r *refreshTokensRepo) RevokeAllUserRefreshTokens(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = 1, updated_at = ? WHERE user_id = ? AND revoked = 0`,
		toMillis(time.Now()), userID,
	)
	return err
}

func (r *refreshTokensRepo) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
