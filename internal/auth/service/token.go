package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/aussiebroadwan/fintrack/internal/auth/domain"
	"github.com/aussiebroadwan/fintrack/internal/auth/store"
	"github.com/aussiebroadwan/fintrack/pkg/cryptox"
	"github.com/aussiebroadwan/fintrack/pkg/idx"
	"github.com/aussiebroadwan/fintrack/pkg/jwtx"
	"github.com/aussiebroadwan/fintrack/pkg/slogx"
)

var (
	ErrInvalidRefresh = errors.New("invalid_refresh_token")
	ErrNoSigningKey   = errors.New("no_signing_key")
)

// Refresh rotates a refresh token. The session ID, AMR and remember-me
// choice carry over; the new token gets a fresh lifetime. Presenting a
// token that was already rotated revokes the whole session.
func (s *LoginService) Refresh(ctx context.Context, refreshToken string) (domain.LoginResult, error) {
	l := slogx.FromContext(ctx)
	now := s.now()

	if refreshToken == "" {
		return domain.LoginResult{}, ErrInvalidRefresh
	}

	old, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, cryptox.FingerprintToken(refreshToken))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.LoginResult{}, ErrInvalidRefresh
		}
		return domain.LoginResult{}, fmt.Errorf("load refresh token: %w", err)
	}

	if old.Revoked {
		if err := s.Store.RefreshTokens().RevokeSession(ctx, old.SessionID); err != nil {
			l.Error("failed to revoke session after refresh token reuse", "error", err)
		}
		l.Warn("revoked refresh token presented", "user_id", old.UserID, "session_id", old.SessionID)
		return domain.LoginResult{}, ErrInvalidRefresh
	}
	if !now.Before(old.ExpiresAt) {
		return domain.LoginResult{}, ErrInvalidRefresh
	}

	u, err := s.Store.Users().GetUserByID(ctx, old.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.LoginResult{}, ErrInvalidRefresh
		}
		return domain.LoginResult{}, fmt.Errorf("load user: %w", err)
	}

	pair, next, err := s.mintTokens(u, old.SessionID, old.AMR, old.RememberMe, now)
	if err != nil {
		return domain.LoginResult{}, err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RefreshTokens().RevokeRefreshToken(ctx, old.TokenHash); err != nil {
			return err
		}
		return tx.RefreshTokens().CreateRefreshToken(ctx, next)
	})
	if err != nil {
		return domain.LoginResult{}, fmt.Errorf("rotate refresh token: %w", err)
	}

	l.Debug("refresh token rotated", "user_id", u.ID, "session_id", old.SessionID)
	return domain.LoginResult{User: u, Tokens: &pair}, nil
}

// Logout revokes every refresh token of the session refreshToken belongs
// to. Unknown or empty tokens are ignored so logging out twice is fine.
func (s *LoginService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}

	rt, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, cryptox.FingerprintToken(refreshToken))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load refresh token: %w", err)
	}

	if err := s.Store.RefreshTokens().RevokeSession(ctx, rt.SessionID); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}

	slogx.FromContext(ctx).Info("user signed out", "user_id", rt.UserID, "session_id", rt.SessionID)
	return nil
}

// mintTokens signs an access token and builds the matching refresh record.
// Persisting the record is left to the caller so it can share a transaction.
func (s *LoginService) mintTokens(u domain.User, sessionID string, amr []string, rememberMe bool, now time.Time) (domain.TokenPair, domain.RefreshToken, error) {
	signer := s.Keys.Signer()
	if signer == nil {
		return domain.TokenPair{}, domain.RefreshToken{}, ErrNoSigningKey
	}

	accessTTL := s.AccessTTL
	if accessTTL <= 0 {
		accessTTL = jwtx.DefaultAccessTokenTTL
	}

	claims := jwtx.NewAccessClaims(jwtx.AccessParams{
		Subject:   u.ID,
		SessionID: sessionID,
		Issuer:    s.Issuer,
		Audience:  s.Audience,
		Email:     u.Email,
		Name:      u.Name,
		Provider:  string(u.Provider),
		AMR:       amr,
		TTL:       accessTTL,
		Now:       now,
	})
	access, err := signer.Sign(claims)
	if err != nil {
		return domain.TokenPair{}, domain.RefreshToken{}, fmt.Errorf("sign access token: %w", err)
	}

	opaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.TokenPair{}, domain.RefreshToken{}, fmt.Errorf("generate refresh token: %w", err)
	}

	refresh := domain.RefreshToken{
		ID:         idx.New().String(),
		UserID:     u.ID,
		TokenHash:  cryptox.FingerprintToken(opaque),
		SessionID:  sessionID,
		AMR:        slices.Clone(amr),
		RememberMe: rememberMe,
		ExpiresAt:  now.Add(s.refreshTTL(rememberMe)),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	return domain.TokenPair{
		AccessToken:  access,
		RefreshToken: opaque,
		TokenType:    "Bearer",
		ExpiresIn:    int64(accessTTL.Seconds()),
		RememberMe:   rememberMe,
	}, refresh, nil
}

func (s *LoginService) refreshTTL(rememberMe bool) time.Duration {
	if rememberMe {
		if s.RememberTTL > 0 {
			return s.RememberTTL
		}
		return DefaultRememberTTL
	}
	if s.SessionTTL > 0 {
		return s.SessionTTL
	}
	return DefaultSessionTTL
}
