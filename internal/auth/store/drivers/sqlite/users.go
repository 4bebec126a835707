package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/fintrack/internal/auth/domain"
)

type usersRepo struct {
	db dbtx
}

const userColumns = `id, email, name, provider, provider_subject, password_hash,
	two_factor_at, two_factor_secret,
	job_title, company, bio, location, phone, currency, timezone,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.User, error) {
	var (
		u                   domain.User
		provider            string
		subject             sql.NullString
		twoFactorAt         sql.NullInt64
		secret              sql.NullString
		createdAt, updateAt int64
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.Name, &provider, &subject, &u.PasswordHash,
		&twoFactorAt, &secret,
		&u.Profile.JobTitle, &u.Profile.Company, &u.Profile.Bio, &u.Profile.Location,
		&u.Profile.Phone, &u.Profile.Currency, &u.Profile.Timezone,
		&createdAt, &updateAt,
	)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}

	u.Provider = domain.Provider(provider)
	u.ProviderSubject = subject.String
	u.TwoFactorAt = fromNullMillis(twoFactorAt)
	u.TwoFactorSecret = fromNullString(secret)
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updateAt)
	return u, nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}

	var subject *string
	if u.ProviderSubject != "" {
		subject = &u.ProviderSubject
	}
	var twoFactorAt sql.NullInt64
	if u.TwoFactorAt != nil {
		twoFactorAt = sql.NullInt64{Int64: toMillis(*u.TwoFactorAt), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, string(u.Provider), nullString(subject), u.PasswordHash,
		twoFactorAt, nullString(u.TwoFactorSecret),
		u.Profile.JobTitle, u.Profile.Company, u.Profile.Bio, u.Profile.Location,
		u.Profile.Phone, u.Profile.Currency, u.Profile.Timezone,
		toMillis(u.CreatedAt), toMillis(u.CreatedAt),
	)
	return mapConstraint(err)
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
}

func (r *usersRepo) UpdateProfile(ctx context.Context, u domain.User) error {
	return requireRow(r.db.ExecContext(ctx, `UPDATE users SET
		name = ?, job_title = ?, company = ?, bio = ?, location = ?, phone = ?,
		currency = ?, timezone = ?, updated_at = ?
		WHERE id = ?`,
		u.Name, u.Profile.JobTitle, u.Profile.Company, u.Profile.Bio, u.Profile.Location,
		u.Profile.Phone, u.Profile.Currency, u.Profile.Timezone, toMillis(time.Now()),
		u.ID,
	))
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	return requireRow(r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		hash, toMillis(time.Now()), userID,
	))
}

func (r *usersRepo) SetTwoFactorSecret(ctx context.Context, userID, secret string) error {
	return requireRow(r.db.ExecContext(ctx,
		`UPDATE users SET two_factor_secret = ?, updated_at = ? WHERE id = ?`,
		secret, toMillis(time.Now()), userID,
	))
}

func (r *usersRepo) EnableTwoFactor(ctx context.Context, userID string, at time.Time) error {
	return requireRow(r.db.ExecContext(ctx,
		`UPDATE users SET two_factor_at = ?, updated_at = ? WHERE id = ? AND two_factor_secret IS NOT NULL`,
		toMillis(at), toMillis(time.Now()), userID,
	))
}

func (r *usersRepo) DisableTwoFactor(ctx context.Context, userID string) error {
	return requireRow(r.db.ExecContext(ctx,
		`UPDATE users SET two_factor_at = NULL, two_factor_secret = NULL, updated_at = ? WHERE id = ?`,
		toMillis(time.Now()), userID,
	))
}

func (r *usersRepo) DeleteUser(ctx context.Context, userID string) error {
	return requireRow(r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID))
}

func (r *usersRepo) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}
