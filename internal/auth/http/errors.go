package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/fintrack/internal/auth/domain"
	"github.com/aussiebroadwan/fintrack/internal/auth/service"
	"github.com/aussiebroadwan/fintrack/internal/finance"
	"github.com/aussiebroadwan/fintrack/pkg/authsdk"
	"github.com/aussiebroadwan/fintrack/pkg/slogx"
)

// serviceErrors maps service sentinels to their wire form.
var serviceErrors = []struct {
	err  error
	wire *authsdk.APIError
}{
	{service.ErrInvalidCredentials, authsdk.ErrInvalidCredentials},
	{service.ErrUnknownProvider, authsdk.ErrUnknownProvider},
	{service.ErrNoPendingLogin, authsdk.ErrNoPendingLogin},
	{service.ErrTooManyAttempts, authsdk.ErrTooManyAttempts},
	{service.ErrInvalidCode, authsdk.ErrInvalidCode},
	{service.ErrUnknownMethod, authsdk.ErrUnknownMethod},
	{service.ErrInvalidRefresh, authsdk.ErrInvalidRefresh},
	{service.ErrTwoFactorNotEnabled, authsdk.ErrTwoFactorNotEnabled},
	{service.ErrTwoFactorAlreadyEnabled, authsdk.ErrTwoFactorAlreadyEnabled},
	{service.ErrTwoFactorNotSetup, authsdk.ErrTwoFactorNotSetup},
	{service.ErrUserNotFound, authsdk.ErrNotFound},
}

// writeServiceError writes the wire error for err. Anything unexpected is
// logged and reported as a server error.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		authsdk.NewValidationError(ve.Fields).WriteError(w)
		return
	}

	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			m.wire.WriteError(w)
			return
		}
	}

	switch {
	case errors.Is(err, finance.ErrInvalidSort):
		authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest, "unsupported sort order").WriteError(w)
	case errors.Is(err, finance.ErrInvalidType):
		authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest, "type must be income or expense").WriteError(w)
	default:
		slogx.FromContext(r.Context()).Error("request failed", "err", err)
		authsdk.ErrServerError.WriteError(w)
	}
}

func invalidRequest(w http.ResponseWriter, desc string) {
	authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest, desc).WriteError(w)
}

// toWireUser converts a stored user to the public shape. Secrets and
// hashes never leave the service.
func toWireUser(u domain.User) authsdk.User {
	return authsdk.User{
		ID:               u.ID,
		Email:            u.Email,
		Name:             u.Name,
		Provider:         string(u.Provider),
		TwoFactorEnabled: u.TwoFactorEnabled(),
		Profile:          authsdk.Profile(u.Profile),
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
}
