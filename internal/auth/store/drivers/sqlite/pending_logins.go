package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/fintrack/internal/auth/domain"
)

type pendingLoginsRepo struct {
	db dbtx
}

const pendingColumns = `id, user_id, provider, remember_me, amr, attempts, created_at, expires_at`

func scanPending(row rowScanner) (domain.PendingLogin, error) {
	var (
		p                    domain.PendingLogin
		provider, amr        string
		remember             int
		createdAt, expiresAt int64
	)
	if err := row.Scan(&p.ID, &p.UserID, &provider, &remember, &amr, &p.Attempts, &createdAt, &expiresAt); err != nil {
		return domain.PendingLogin{}, mapNotFound(err)
	}
	p.Provider = domain.Provider(provider)
	p.RememberMe = remember != 0
	p.AMR = splitFields(amr)
	p.CreatedAt = fromMillis(createdAt)
	p.ExpiresAt = fromMillis(expiresAt)
	return p, nil
}

func (r *pendingLoginsRepo) UpsertPendingLogin(ctx context.Context, p domain.PendingLogin) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO pending_logins (`+pendingColumns+`)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			id = excluded.id,
			provider = excluded.provider,
			remember_me = excluded.remember_me,
			amr = excluded.amr,
			attempts = 0,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at`,
		p.ID, p.UserID, string(p.Provider), boolInt(p.RememberMe), joinFields(p.AMR),
		toMillis(p.CreatedAt), toMillis(p.ExpiresAt),
	)
	return mapConstraint(err)
}

func (r *pendingLoginsRepo) GetPendingLogin(ctx context.Context, id string, now time.Time) (domain.PendingLogin, error) {
	return scanPending(r.db.QueryRowContext(ctx,
		`SELECT `+pendingColumns+` FROM pending_logins WHERE id = ? AND expires_at > ?`,
		id, toMillis(now),
	))
}

func (r *pendingLoginsRepo) ReservePendingLoginAttempt(ctx context.Context, id string, maxAttempts int, now time.Time) (domain.PendingLogin, error) {
	return scanPending(r.db.QueryRowContext(ctx,
		`UPDATE pending_logins SET attempts = attempts + 1
		WHERE id = ? AND attempts < ? AND expires_at > ?
		RETURNING `+pendingColumns,
		id, maxAttempts, toMillis(now),
	))
}

func (r *pendingLoginsRepo) DeletePendingLogin(ctx context.Context, id string) error {
	return requireRow(r.db.ExecContext(ctx, `DELETE FROM pending_logins WHERE id = ?`, id))
}

func (r *pendingLoginsRepo) DeleteExpiredPendingLogins(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM pending_logins WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
