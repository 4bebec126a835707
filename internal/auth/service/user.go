package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/fintrack/internal/auth/domain"
	"github.com/aussiebroadwan/fintrack/internal/auth/store"
	"github.com/aussiebroadwan/fintrack/pkg/cryptox"
	"github.com/aussiebroadwan/fintrack/pkg/idx"
	"github.com/aussiebroadwan/fintrack/pkg/slogx"
)

type UserService struct {
	Store store.Store
	Now   func() time.Time
}

// GetUser fetches a user by id. Malformed ids are reported as not found
// without a store round trip.
func (s *UserService) GetUser(ctx context.Context, userID string) (domain.User, error) {
	if _, err := idx.Parse(userID); err != nil {
		return domain.User{}, ErrUserNotFound
	}
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrUserNotFound
	}
	return u, err
}

// UpdateUser merges patch into the user's name and profile. Fields left nil
// in the patch keep their current value.
func (s *UserService) UpdateUser(ctx context.Context, userID string, patch domain.ProfilePatch) (domain.User, error) {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	if patch.IsEmpty() {
		return u, nil
	}

	patch.Apply(&u)
	if s.Now != nil {
		u.UpdatedAt = s.Now().UTC()
	} else {
		u.UpdatedAt = time.Now().UTC()
	}

	if err := s.Store.Users().UpdateProfile(ctx, u); err != nil {
		return domain.User{}, fmt.Errorf("update profile: %w", err)
	}

	slogx.FromContext(ctx).Info("profile updated", "user_id", u.ID)
	return u, nil
}

// ChangePassword replaces a password user's password after checking the
// current one. All of the user's sessions are revoked.
func (s *UserService) ChangePassword(ctx context.Context, userID, current, next string) error {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if u.PasswordHash == "" {
		return ErrInvalidCredentials
	}
	if err := cryptox.VerifyPassword(current, u.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("verify password: %w", err)
	}
	if len(next) < MinPasswordLength {
		return &ValidationError{Fields: map[string]string{
			"new_password": fmt.Sprintf("password must be at least %d characters", MinPasswordLength),
		}}
	}

	hash, err := cryptox.HashPassword(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().UpdatePasswordHash(ctx, userID, hash); err != nil {
			return err
		}
		return tx.RefreshTokens().RevokeAllUserRefreshTokens(ctx, userID)
	})
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}

	slogx.FromContext(ctx).Info("password changed", "user_id", userID)
	return nil
}
