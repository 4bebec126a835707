package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/fintrack/pkg/httpx"
)

// Error codes carried in the "error" field of API error responses.
const (
	ErrorCodeInvalidRequest          = "invalid_request"
	ErrorCodeInvalidCredentials      = "invalid_credentials"
	ErrorCodeUnauthorized            = "unauthorized"
	ErrorCodeValidationFailed        = "validation_failed"
	ErrorCodeTwoFactorRequired       = "two_factor_required"
	ErrorCodeInvalidCode             = "invalid_code"
	ErrorCodeNoPendingLogin          = "no_pending_login"
	ErrorCodeTooManyAttempts         = "too_many_attempts"
	ErrorCodeUnknownProvider         = "unknown_provider"
	ErrorCodeUnknownMethod           = "unknown_two_factor_method"
	ErrorCodeInvalidRefresh          = "invalid_refresh_token"
	ErrorCodeTwoFactorNotEnabled     = "two_factor_not_enabled"
	ErrorCodeTwoFactorAlreadyEnabled = "two_factor_already_enabled"
	ErrorCodeTwoFactorNotSetup       = "two_factor_not_setup"
	ErrorCodeNotFound                = "not_found"
	ErrorCodeRateLimited             = "rate_limit_exceeded"
	ErrorCodeServerError             = "server_error"
)

// APIError is an error response from the FinTrack API. Handlers write it
// with WriteError; the client returns it from every failed call.
type APIError struct {
	StatusCode  int               `json:"-"`
	Code        string            `json:"error"`
	Description string            `json:"error_description,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"`
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Is matches on Code so errors.Is(err, authsdk.ErrInvalidCode) works for
// errors decoded from a response.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	return ok && t.Code == e.Code
}

func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.WriteJSON(w, e.StatusCode, httpx.ErrorResponse{
		Error:            e.Code,
		ErrorDescription: e.Description,
		Fields:           e.Fields,
	})
}

func NewAPIError(statusCode int, code, description string) *APIError {
	return &APIError{StatusCode: statusCode, Code: code, Description: description}
}

var (
	ErrInvalidRequest = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request is malformed or missing required fields",
	}
	ErrInvalidCredentials = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidCredentials,
		Description: "email or password is incorrect",
	}
	ErrUnauthorized = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeUnauthorized,
		Description: "the access token is missing, invalid or expired",
	}
	ErrInvalidCode = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidCode,
		Description: "the verification code is incorrect",
	}
	ErrNoPendingLogin = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeNoPendingLogin,
		Description: "no sign-in is waiting for a second factor",
	}
	ErrTooManyAttempts = &APIError{
		StatusCode:  http.StatusTooManyRequests,
		Code:        ErrorCodeTooManyAttempts,
		Description: "too many incorrect codes, sign in again",
	}
	ErrUnknownProvider = &APIError{
		StatusCode:  http.StatusNotFound,
		Code:        ErrorCodeUnknownProvider,
		Description: "sign-in provider is not supported",
	}
	ErrUnknownMethod = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeUnknownMethod,
		Description: "method must be app or recovery",
	}
	ErrInvalidRefresh = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidRefresh,
		Description: "the refresh token is invalid, expired or revoked",
	}
	ErrTwoFactorNotEnabled = &APIError{
		StatusCode:  http.StatusConflict,
		Code:        ErrorCodeTwoFactorNotEnabled,
		Description: "two-factor authentication is not enabled",
	}
	ErrTwoFactorAlreadyEnabled = &APIError{
		StatusCode:  http.StatusConflict,
		Code:        ErrorCodeTwoFactorAlreadyEnabled,
		Description: "two-factor authentication is already enabled",
	}
	ErrTwoFactorNotSetup = &APIError{
		StatusCode:  http.StatusConflict,
		Code:        ErrorCodeTwoFactorNotSetup,
		Description: "start two-factor setup first",
	}
	ErrNotFound = &APIError{
		StatusCode:  http.StatusNotFound,
		Code:        ErrorCodeNotFound,
		Description: "not found",
	}
	ErrServerError = &APIError{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "internal server error",
	}
)

// NewValidationError reports per-field problems with a 422.
func NewValidationError(fields map[string]string) *APIError {
	return &APIError{
		StatusCode:  http.StatusUnprocessableEntity,
		Code:        ErrorCodeValidationFailed,
		Description: "one or more fields are invalid",
		Fields:      fields,
	}
}

// TwoFactorRequiredError is returned with 409 Conflict when the first factor
// succeeded but the account needs a second one. PendingToken goes back to
// the server with the code.
type TwoFactorRequiredError struct {
	PendingToken string   `json:"pending_token"`
	Methods      []string `json:"methods"`
	Provider     string   `json:"provider"`
	RememberMe   bool     `json:"remember_me"`
	User         User     `json:"user"`
	RedirectTo   string   `json:"redirect_to,omitempty"`
}

func (e *TwoFactorRequiredError) Error() string {
	return fmt.Sprintf("two-factor authentication required: methods=%v", e.Methods)
}

func (e *TwoFactorRequiredError) WriteError(w http.ResponseWriter) {
	httpx.WriteJSON(w, http.StatusConflict, twoFactorRequiredBody{
		Error:                  ErrorCodeTwoFactorRequired,
		ErrorDescription:       "a second factor is required to finish signing in",
		TwoFactorRequiredError: *e,
	})
}

type twoFactorRequiredBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	TwoFactorRequiredError
}

// parseErrorResponse turns a non-2xx response into *TwoFactorRequiredError
// or *APIError.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	if resp.StatusCode == http.StatusConflict {
		var tf twoFactorRequiredBody
		if err := json.Unmarshal(body, &tf); err == nil &&
			tf.Error == ErrorCodeTwoFactorRequired && tf.PendingToken != "" {
			e := tf.TwoFactorRequiredError
			return &e
		}
	}

	var er httpx.ErrorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error != "" {
		return &APIError{
			StatusCode:  resp.StatusCode,
			Code:        er.Error,
			Description: er.ErrorDescription,
			Fields:      er.Fields,
		}
	}

	return &APIError{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeServerError,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
