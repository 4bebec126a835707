package auth_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/aussiebroadwan/fintrack/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

// TestLoginRateLimit runs with the production limits: five login attempts
// per minute for one address and email.
func TestLoginRateLimit(t *testing.T) {
	client := setupAuthContainer(t, containerEnv{})
	ctx := t.Context()

	for i := range 5 {
		_, err := client.Login(ctx, "limited@example.com", "wrong-password", false)
		require.ErrorIs(t, err, authsdk.ErrInvalidCredentials, "attempt %d", i+1)
	}

	_, err := client.Login(ctx, "limited@example.com", "wrong-password", false)
	var apiErr *authsdk.APIError
	require.True(t, errors.As(err, &apiErr), "got %v", err)
	require.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	require.Equal(t, authsdk.ErrorCodeRateLimited, apiErr.Code)

	// Another account from the same address has its own budget.
	_, err = client.Login(ctx, "other@example.com", "wrong-password", false)
	require.ErrorIs(t, err, authsdk.ErrInvalidCredentials)
}
