package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/mail"
	"slices"
	"strings"
	"time"

	"github.com/aussiebroadwan/fintrack/internal/auth/domain"
	"github.com/aussiebroadwan/fintrack/internal/auth/store"
	"github.com/aussiebroadwan/fintrack/pkg/cryptox"
	"github.com/aussiebroadwan/fintrack/pkg/idx"
	"github.com/aussiebroadwan/fintrack/pkg/jwtx"
	"github.com/aussiebroadwan/fintrack/pkg/slogx"
	"github.com/google/uuid"
)

const (
	// MaxTwoFactorAttempts is how many wrong codes a pending login survives.
	MaxTwoFactorAttempts = 5

	MinPasswordLength = 8

	DefaultSessionTTL  = 12 * time.Hour
	DefaultRememberTTL = 30 * 24 * time.Hour
	DefaultPendingTTL  = 10 * time.Minute
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrUnknownProvider    = errors.New("unknown_provider")
	ErrNoPendingLogin     = errors.New("no_pending_login")
	ErrTooManyAttempts    = errors.New("too_many_attempts")
	ErrUserNotFound       = errors.New("user_not_found")
)

// ValidationError reports per-field input problems.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return "validation_failed: " + strings.Join(slices.Sorted(maps.Keys(e.Fields)), ", ")
}

// mockProviderNames is the display name given to each simulated provider
// account on first sign-in.
var mockProviderNames = map[domain.Provider]string{
	domain.ProviderGoogle:    "Alex Morgan",
	domain.ProviderGitHub:    "Sam Rivera",
	domain.ProviderApple:     "Jordan Lee",
	domain.ProviderMicrosoft: "Taylor Kim",
	domain.ProviderPasskey:   "Passkey User",
	domain.ProviderWallet:    "Wallet User",
}

// ProviderEmail is the address a simulated provider account signs in with.
func ProviderEmail(p domain.Provider) string {
	return fmt.Sprintf("%s.demo@fintrack.local", p)
}

type LoginService struct {
	Store     store.Store
	Keys      *jwtx.KeyManager
	TwoFactor *TwoFactorService
	Issuer    string
	Audience  []string

	AccessTTL   time.Duration
	SessionTTL  time.Duration // refresh lifetime without remember me
	RememberTTL time.Duration // refresh lifetime with remember me
	PendingTTL  time.Duration

	Now func() time.Time
}

func (s *LoginService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

type RegisterInput struct {
	Email           string `json:"email"`
	Name            string `json:"name"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Register creates a password user. Input problems come back as a
// *ValidationError so callers can show them next to each field.
func (s *LoginService) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)

	fields := map[string]string{}
	if in.Email == "" {
		fields["email"] = "email is required"
	} else if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
		fields["email"] = "email is invalid"
	}
	if in.Name == "" {
		fields["name"] = "name is required"
	}
	if len(in.Password) < MinPasswordLength {
		fields["password"] = fmt.Sprintf("password must be at least %d characters", MinPasswordLength)
	}
	if in.Password != in.ConfirmPassword {
		fields["confirm_password"] = "passwords do not match"
	}
	if len(fields) > 0 {
		return domain.User{}, &ValidationError{Fields: fields}
	}

	hash, err := cryptox.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	u := domain.User{
		ID:           idx.New().String(),
		Email:        in.Email,
		Name:         in.Name,
		Provider:     domain.ProviderPassword,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.Users().CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, &ValidationError{Fields: map[string]string{"email": "email is already registered"}}
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}

	slogx.FromContext(ctx).Info("user registered", "user_id", u.ID)
	return u, nil
}

// LoginWithPassword checks the first factor for a password user.
func (s *LoginService) LoginWithPassword(ctx context.Context, email, password string, rememberMe bool) (domain.LoginResult, error) {
	l := slogx.FromContext(ctx)

	u, err := s.Store.Users().GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			l.Info("login for unknown email")
			return domain.LoginResult{}, ErrInvalidCredentials
		}
		return domain.LoginResult{}, fmt.Errorf("load user: %w", err)
	}
	if u.PasswordHash == "" {
		return domain.LoginResult{}, ErrInvalidCredentials
	}

	if err := cryptox.VerifyPassword(password, u.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			l.Info("password mismatch", slog.String("user_id", u.ID))
			return domain.LoginResult{}, ErrInvalidCredentials
		}
		return domain.LoginResult{}, fmt.Errorf("verify password: %w", err)
	}

	return s.Login(ctx, u, rememberMe, false)
}

// LoginWithProvider signs in with a simulated third-party provider. The
// first sign-in fabricates the provider's demo account.
func (s *LoginService) LoginWithProvider(ctx context.Context, provider string, rememberMe bool) (domain.LoginResult, error) {
	p := domain.Provider(strings.ToLower(strings.TrimSpace(provider)))
	if !p.IsSocial() {
		return domain.LoginResult{}, ErrUnknownProvider
	}

	u, err := s.providerUser(ctx, p)
	if err != nil {
		return domain.LoginResult{}, err
	}
	return s.Login(ctx, u, rememberMe, false)
}

func (s *LoginService) providerUser(ctx context.Context, p domain.Provider) (domain.User, error) {
	email := ProviderEmail(p)

	u, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.User{}, fmt.Errorf("load provider user: %w", err)
	}

	now := s.now()
	u = domain.User{
		ID:              idx.New().String(),
		Email:           email,
		Name:            mockProviderNames[p],
		Provider:        p,
		ProviderSubject: uuid.NewString(),
		Profile:         domain.Profile{Currency: "USD"},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.Store.Users().CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			// Lost a race with a concurrent first sign-in.
			return s.Store.Users().GetUserByEmail(ctx, email)
		}
		return domain.User{}, fmt.Errorf("create provider user: %w", err)
	}

	slogx.FromContext(ctx).Info("provider user created", "user_id", u.ID, "provider", string(p))
	return u, nil
}

// Login finishes a first-factor sign-in for u. When u has 2FA enabled and
// skipTwoFactor is false no tokens are issued; a pending login replaces any
// the user already had and its token is returned instead.
func (s *LoginService) Login(ctx context.Context, u domain.User, rememberMe, skipTwoFactor bool) (domain.LoginResult, error) {
	l := slogx.FromContext(ctx)
	now := s.now()
	amr := []string{firstFactorAMR(u.Provider)}

	if u.TwoFactorEnabled() && !skipTwoFactor {
		token, err := cryptox.GenerateToken(cryptox.TokenSize256)
		if err != nil {
			return domain.LoginResult{}, fmt.Errorf("generate pending token: %w", err)
		}

		p := domain.PendingLogin{
			ID:         token,
			UserID:     u.ID,
			Provider:   u.Provider,
			RememberMe: rememberMe,
			AMR:        amr,
			CreatedAt:  now,
			ExpiresAt:  now.Add(s.pendingTTL()),
		}
		if err := s.Store.PendingLogins().UpsertPendingLogin(ctx, p); err != nil {
			return domain.LoginResult{}, fmt.Errorf("store pending login: %w", err)
		}

		l.Info("second factor required", "user_id", u.ID, "provider", string(u.Provider))
		return domain.LoginResult{
			User:              u,
			RequiresTwoFactor: true,
			PendingToken:      token,
			Methods:           domain.TwoFactorMethods,
		}, nil
	}

	pair, refresh, err := s.mintTokens(u, idx.New().String(), amr, rememberMe, now)
	if err != nil {
		return domain.LoginResult{}, err
	}
	if err := s.Store.RefreshTokens().CreateRefreshToken(ctx, refresh); err != nil {
		return domain.LoginResult{}, fmt.Errorf("store refresh token: %w", err)
	}

	l.Info("user signed in", "user_id", u.ID, "provider", string(u.Provider), "remember_me", rememberMe)
	return domain.LoginResult{User: u, Tokens: &pair}, nil
}

// CompleteTwoFactor verifies the second factor for a pending login and, on
// success, issues tokens and drops the pending record atomically. Each call
// reserves one of MaxTwoFactorAttempts before the code is checked.
func (s *LoginService) CompleteTwoFactor(ctx context.Context, pendingToken, method, code string) (domain.LoginResult, error) {
	l := slogx.FromContext(ctx)
	now := s.now()

	if method != domain.MethodApp && method != domain.MethodRecovery {
		return domain.LoginResult{}, ErrUnknownMethod
	}

	p, err := s.Store.PendingLogins().ReservePendingLoginAttempt(ctx, pendingToken, MaxTwoFactorAttempts, now)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.LoginResult{}, s.rejectPendingLogin(ctx, pendingToken, now)
		}
		return domain.LoginResult{}, fmt.Errorf("reserve two-factor attempt: %w", err)
	}

	u, err := s.Store.Users().GetUserByID(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = s.Store.PendingLogins().DeletePendingLogin(ctx, p.ID)
			return domain.LoginResult{}, ErrUserNotFound
		}
		return domain.LoginResult{}, fmt.Errorf("load user: %w", err)
	}

	amr := append(slices.Clone(p.AMR), jwtx.AMRMFA)
	if method == domain.MethodApp {
		amr = append(amr, jwtx.AMROTP)
	}

	var pair domain.TokenPair
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := s.TwoFactor.verifySecondFactor(ctx, tx.RecoveryCodes(), u, method, code); err != nil {
			return err
		}
		if err := tx.PendingLogins().DeletePendingLogin(ctx, p.ID); err != nil {
			return err
		}

		tokens, refresh, err := s.mintTokens(u, idx.New().String(), amr, p.RememberMe, now)
		if err != nil {
			return err
		}
		pair = tokens
		return tx.RefreshTokens().CreateRefreshToken(ctx, refresh)
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidCode):
		l.Warn("two-factor verification failed", "user_id", u.ID, "method", method, "attempts", p.Attempts)
		return domain.LoginResult{}, ErrInvalidCode
	case errors.Is(err, store.ErrNotFound):
		return domain.LoginResult{}, ErrNoPendingLogin
	default:
		return domain.LoginResult{}, fmt.Errorf("finish pending login: %w", err)
	}

	l.Info("two-factor sign-in completed", "user_id", u.ID, "method", method)
	return domain.LoginResult{User: u, Tokens: &pair}, nil
}

// rejectPendingLogin explains a failed attempt reservation. A record that
// is still live has used up its attempts and is dropped.
func (s *LoginService) rejectPendingLogin(ctx context.Context, pendingToken string, now time.Time) error {
	p, err := s.Store.PendingLogins().GetPendingLogin(ctx, pendingToken, now)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNoPendingLogin
	}
	if err != nil {
		return fmt.Errorf("load pending login: %w", err)
	}

	_ = s.Store.PendingLogins().DeletePendingLogin(ctx, p.ID)
	slogx.FromContext(ctx).Warn("pending login exceeded max attempts", "user_id", p.UserID, "attempts", p.Attempts)
	return ErrTooManyAttempts
}

// CancelTwoFactor drops a pending login. Unknown tokens are not an error.
func (s *LoginService) CancelTwoFactor(ctx context.Context, pendingToken string) error {
	if pendingToken == "" {
		return nil
	}
	err := s.Store.PendingLogins().DeletePendingLogin(ctx, pendingToken)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("delete pending login: %w", err)
	}
	return nil
}

func (s *LoginService) pendingTTL() time.Duration {
	if s.PendingTTL > 0 {
		return s.PendingTTL
	}
	return DefaultPendingTTL
}

func firstFactorAMR(p domain.Provider) string {
	if p == domain.ProviderPassword {
		return jwtx.AMRPassword
	}
	return jwtx.AMRProvider
}
