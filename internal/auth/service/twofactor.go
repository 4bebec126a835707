package service

import (
	"bytes"
	"context"
	"encoding/base32"
	"errors"
	"fmt"
	"image/png"
	"strings"
	"time"

	"github.com/aussiebroadwan/fintrack/internal/auth/domain"
	"github.com/aussiebroadwan/fintrack/internal/auth/store"
	"github.com/aussiebroadwan/fintrack/pkg/cryptox"
	"github.com/aussiebroadwan/fintrack/pkg/slogx"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// RecoveryCodeCount is how many recovery codes a user is issued.
	RecoveryCodeCount = 10

	totpPeriod = 30
	totpSkew   = 1 // accept the previous and next 30s window
	codeDigits = 6
)

var (
	ErrInvalidCode             = errors.New("invalid_code")
	ErrTwoFactorNotEnabled     = errors.New("two_factor_not_enabled")
	ErrTwoFactorAlreadyEnabled = errors.New("two_factor_already_enabled")
	ErrTwoFactorNotSetup       = errors.New("two_factor_not_setup")
	ErrUnknownMethod           = errors.New("unknown_two_factor_method")
)

// CodeVerifier decides whether a one-time code is valid for a secret.
type CodeVerifier interface {
	Verify(code, secret string, at time.Time) bool
}

// TOTPVerifier checks RFC 6238 codes (SHA1, 6 digits, 30s).
type TOTPVerifier struct{}

func (TOTPVerifier) Verify(code, secret string, at time.Time) bool {
	if secret == "" || !ValidCodeFormat(code) {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, at.UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// DemoVerifier accepts any well-formed code and ignores the secret. It
// exists for demo deployments where nobody has an authenticator app.
type DemoVerifier struct{}

func (DemoVerifier) Verify(code, _ string, _ time.Time) bool {
	return ValidCodeFormat(code)
}

// ValidCodeFormat reports whether code is exactly six ASCII digits.
func ValidCodeFormat(code string) bool {
	if len(code) != codeDigits {
		return false
	}
	for i := range len(code) {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// NormalizeRecoveryCode trims and upper-cases user input.
func NormalizeRecoveryCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidRecoveryCodeFormat reports whether code is shaped XXXX-XXXX-XXXX
// (alphanumeric, case-insensitive).
func ValidRecoveryCodeFormat(code string) bool {
	code = NormalizeRecoveryCode(code)
	if len(code) != 14 {
		return false
	}
	for i := range len(code) {
		c := code[i]
		if i == 4 || i == 9 {
			if c != '-' {
				return false
			}
			continue
		}
		if !strings.ContainsRune(cryptox.RecoveryCodeAlphabet, rune(c)) {
			return false
		}
	}
	return true
}

// TwoFactorService manages authenticator enrollment and recovery codes.
type TwoFactorService struct {
	Store  store.Store
	Issuer string

	// Verifier defaults to TOTPVerifier.
	Verifier CodeVerifier

	// AcceptAnyRecoveryCode skips the issued-code lookup so any well-formed
	// recovery code passes. Only for demo mode.
	AcceptAnyRecoveryCode bool

	// QRCodePath is the endpoint clients fetch the enrollment QR image from.
	QRCodePath string

	Now func() time.Time
}

func (s *TwoFactorService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *TwoFactorService) verifier() CodeVerifier {
	if s.Verifier != nil {
		return s.Verifier
	}
	return TOTPVerifier{}
}

// GenerateSecret creates and stores a new TOTP secret for the user without
// enabling 2FA. Calling it again before enabling replaces the secret.
func (s *TwoFactorService) GenerateSecret(ctx context.Context, userID, account string) (domain.TwoFactorSetup, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return domain.TwoFactorSetup{}, fmt.Errorf("load user: %w", err)
	}
	if u.TwoFactorEnabled() {
		return domain.TwoFactorSetup{}, ErrTwoFactorAlreadyEnabled
	}
	if account == "" {
		account = u.Email
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: account,
		Period:      totpPeriod,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return domain.TwoFactorSetup{}, fmt.Errorf("generate totp key: %w", err)
	}

	preview, err := cryptox.GenerateRecoveryCode()
	if err != nil {
		return domain.TwoFactorSetup{}, err
	}

	if err := s.Store.Users().SetTwoFactorSecret(ctx, userID, key.Secret()); err != nil {
		return domain.TwoFactorSetup{}, fmt.Errorf("store totp secret: %w", err)
	}

	slogx.FromContext(ctx).Info("two-factor secret generated", "user_id", userID)

	return domain.TwoFactorSetup{
		Secret:       key.Secret(),
		OTPAuthURL:   key.URL(),
		QRCodeURL:    s.QRCodePath,
		RecoveryCode: preview,
		Issuer:       s.Issuer,
		Account:      account,
	}, nil
}

// QRCode renders the user's pending or active secret as a PNG.
func (s *TwoFactorService) QRCode(ctx context.Context, userID string, size int) ([]byte, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if u.TwoFactorSecret == nil {
		return nil, ErrTwoFactorNotSetup
	}

	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(*u.TwoFactorSecret)
	if err != nil {
		return nil, fmt.Errorf("decode totp secret: %w", err)
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: u.Email,
		Period:      totpPeriod,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
		Secret:      raw,
	})
	if err != nil {
		return nil, fmt.Errorf("rebuild totp key: %w", err)
	}

	img, err := key.Image(size, size)
	if err != nil {
		return nil, fmt.Errorf("render qr: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return buf.Bytes(), nil
}

// VerifyCode checks an authenticator code against secret.
func (s *TwoFactorService) VerifyCode(code, secret string) bool {
	return s.verifier().Verify(strings.TrimSpace(code), secret, s.now())
}

func (s *TwoFactorService) IsEnabled(u domain.User) bool {
	return u.TwoFactorEnabled()
}

// SetStatus enables or disables 2FA after checking a current authenticator
// code. Enabling returns a fresh set of recovery codes.
func (s *TwoFactorService) SetStatus(ctx context.Context, userID string, enabled bool, code string) ([]string, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	if !enabled {
		if !u.TwoFactorEnabled() {
			return nil, ErrTwoFactorNotEnabled
		}
		if !s.VerifyCode(code, *u.TwoFactorSecret) {
			return nil, ErrInvalidCode
		}
		err := s.Store.WithTx(ctx, func(tx store.Tx) error {
			if err := tx.RecoveryCodes().DeleteAllRecoveryCodes(ctx, userID); err != nil {
				return err
			}
			return tx.Users().DisableTwoFactor(ctx, userID)
		})
		if err != nil {
			return nil, fmt.Errorf("disable two-factor: %w", err)
		}
		slogx.FromContext(ctx).Info("two-factor disabled", "user_id", userID)
		return nil, nil
	}

	if u.TwoFactorEnabled() {
		return nil, ErrTwoFactorAlreadyEnabled
	}
	if u.TwoFactorSecret == nil {
		return nil, ErrTwoFactorNotSetup
	}
	if !s.VerifyCode(code, *u.TwoFactorSecret) {
		return nil, ErrInvalidCode
	}

	codes, err := newRecoveryCodes(RecoveryCodeCount)
	if err != nil {
		return nil, err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := replaceRecoveryCodes(ctx, tx, userID, codes); err != nil {
			return err
		}
		return tx.Users().EnableTwoFactor(ctx, userID, s.now())
	})
	if err != nil {
		return nil, fmt.Errorf("enable two-factor: %w", err)
	}

	slogx.FromContext(ctx).Info("two-factor enabled", "user_id", userID)
	return codes, nil
}

// GenerateRecoveryCodes issues count new codes, replacing any the user had.
// A non-positive count means RecoveryCodeCount.
func (s *TwoFactorService) GenerateRecoveryCodes(ctx context.Context, userID string, count int) ([]string, error) {
	if count <= 0 {
		count = RecoveryCodeCount
	}
	codes, err := newRecoveryCodes(count)
	if err != nil {
		return nil, err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		return replaceRecoveryCodes(ctx, tx, userID, codes)
	})
	if err != nil {
		return nil, fmt.Errorf("store recovery codes: %w", err)
	}
	return codes, nil
}

// RegenerateRecoveryCodes is GenerateRecoveryCodes gated on a current
// authenticator code.
func (s *TwoFactorService) RegenerateRecoveryCodes(ctx context.Context, userID, code string) ([]string, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !u.TwoFactorEnabled() {
		return nil, ErrTwoFactorNotEnabled
	}
	if !s.VerifyCode(code, *u.TwoFactorSecret) {
		return nil, ErrInvalidCode
	}
	return s.GenerateRecoveryCodes(ctx, userID, RecoveryCodeCount)
}

// VerifyRecoveryCode checks and consumes a recovery code. Malformed input
// is rejected before touching the store.
func (s *TwoFactorService) VerifyRecoveryCode(ctx context.Context, userID, code string) (bool, error) {
	return s.consumeRecoveryCode(ctx, s.Store.RecoveryCodes(), userID, code)
}

func (s *TwoFactorService) consumeRecoveryCode(ctx context.Context, codes store.RecoveryCodes, userID, code string) (bool, error) {
	if !ValidRecoveryCodeFormat(code) {
		return false, nil
	}
	if s.AcceptAnyRecoveryCode {
		return true, nil
	}
	return codes.ConsumeRecoveryCode(ctx, userID, cryptox.FingerprintToken(NormalizeRecoveryCode(code)))
}

// RemainingRecoveryCodes reports how many unused codes the user has.
func (s *TwoFactorService) RemainingRecoveryCodes(ctx context.Context, userID string) (int, error) {
	return s.Store.RecoveryCodes().CountRecoveryCodes(ctx, userID)
}

// VerifySecondFactor checks a code for u with the given method.
func (s *TwoFactorService) VerifySecondFactor(ctx context.Context, u domain.User, method, code string) error {
	return s.verifySecondFactor(ctx, s.Store.RecoveryCodes(), u, method, code)
}

// verifySecondFactor is VerifySecondFactor with recovery codes consumed
// through codes, which may be bound to a transaction.
func (s *TwoFactorService) verifySecondFactor(ctx context.Context, codes store.RecoveryCodes, u domain.User, method, code string) error {
	switch method {
	case domain.MethodApp:
		if u.TwoFactorSecret == nil || !s.VerifyCode(code, *u.TwoFactorSecret) {
			return ErrInvalidCode
		}
		return nil

	case domain.MethodRecovery:
		ok, err := s.consumeRecoveryCode(ctx, codes, u.ID, code)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidCode
		}
		return nil
	}
	return ErrUnknownMethod
}

func newRecoveryCodes(n int) ([]string, error) {
	codes := make([]string, 0, n)
	seen := make(map[string]struct{}, n)
	for len(codes) < n {
		c, err := cryptox.GenerateRecoveryCode()
		if err != nil {
			return nil, err
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		codes = append(codes, c)
	}
	return codes, nil
}

func replaceRecoveryCodes(ctx context.Context, tx store.Tx, userID string, codes []string) error {
	if err := tx.RecoveryCodes().DeleteAllRecoveryCodes(ctx, userID); err != nil {
		return err
	}
	for _, c := range codes {
		if err := tx.RecoveryCodes().CreateRecoveryCode(ctx, userID, cryptox.FingerprintToken(c)); err != nil {
			return err
		}
	}
	return nil
}
