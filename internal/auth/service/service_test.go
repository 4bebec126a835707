package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/fintrack/internal/auth/domain"
	"github.com/aussiebroadwan/fintrack/internal/auth/service"
	"github.com/aussiebroadwan/fintrack/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/fintrack/pkg/jwtx"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

const testIssuer = "fintrack-test"

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock { return &clock{t: time.Now().UTC()} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type env struct {
	store     *sqlite.Store
	keys      *jwtx.KeyManager
	twoFactor *service.TwoFactorService
	login     *service.LoginService
	users     *service.UserService
	clock     *clock
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return newEnvAt(t, ":memory:")
}

// newEnvAt is newEnv backed by the database at dsn. File databases get a
// real connection pool, so concurrent calls are not serialised.
func newEnvAt(t *testing.T, dsn string) *env {
	t.Helper()

	st, err := sqlite.NewStore(dsn)
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	km, err := jwtx.NewKeyManager(jwtx.KeyManagerOptions{Issuer: testIssuer})
	require.NoError(t, err)

	c := newClock()
	tf := &service.TwoFactorService{
		Store:      st,
		Issuer:     "FinTrack",
		QRCodePath: "/v1/2fa/qr.png",
		Now:        c.Now,
	}

	return &env{
		store:     st,
		keys:      km,
		twoFactor: tf,
		login: &service.LoginService{
			Store:     st,
			Keys:      km,
			TwoFactor: tf,
			Issuer:    testIssuer,
			Now:       c.Now,
		},
		users: &service.UserService{Store: st, Now: c.Now},
		clock: c,
	}
}

func (e *env) register(t *testing.T, email, password string) domain.User {
	t.Helper()

	u, err := e.login.Register(context.Background(), service.RegisterInput{
		Email:           email,
		Name:            "Jane Doe",
		Password:        password,
		ConfirmPassword: password,
	})
	require.NoError(t, err)
	return u
}

// enableTwoFactor enrolls u with a real TOTP secret and returns the secret
// and the issued recovery codes.
func (e *env) enableTwoFactor(t *testing.T, u domain.User) (string, []string) {
	t.Helper()
	ctx := context.Background()

	setup, err := e.twoFactor.GenerateSecret(ctx, u.ID, "")
	require.NoError(t, err)

	code, err := totp.GenerateCode(setup.Secret, e.clock.Now())
	require.NoError(t, err)

	codes, err := e.twoFactor.SetStatus(ctx, u.ID, true, code)
	require.NoError(t, err)
	return setup.Secret, codes
}

func (e *env) totpCode(t *testing.T, secret string) string {
	t.Helper()
	code, err := totp.GenerateCode(secret, e.clock.Now())
	require.NoError(t, err)
	return code
}
