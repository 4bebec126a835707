package authsdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/aussiebroadwan/fintrack/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL + "/")
}

func TestClientLogin(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		switch req.Email {
		case "jane@example.com":
			httpx.WriteJSON(w, http.StatusOK, AuthResponse{
				AccessToken:  "access",
				RefreshToken: "refresh",
				TokenType:    "Bearer",
				ExpiresIn:    900,
				RememberMe:   req.RememberMe,
				User:         User{ID: "u1", Email: req.Email},
				RedirectTo:   RedirectDashboard,
			})
		case "mfa@example.com":
			(&TwoFactorRequiredError{
				PendingToken: "pending-1",
				Methods:      []string{MethodApp, MethodRecovery},
				Provider:     "password",
				User:         User{ID: "u2", Email: req.Email, TwoFactorEnabled: true},
			}).WriteError(w)
		default:
			ErrInvalidCredentials.WriteError(w)
		}
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		resp, err := c.Login(ctx, "jane@example.com", "pw", true)
		require.NoError(t, err)
		require.Equal(t, "access", resp.AccessToken)
		require.True(t, resp.RememberMe)
		require.Equal(t, "u1", resp.User.ID)
	})

	t.Run("two factor required", func(t *testing.T) {
		_, err := c.Login(ctx, "mfa@example.com", "pw", false)
		var tfErr *TwoFactorRequiredError
		require.ErrorAs(t, err, &tfErr)
		require.Equal(t, "pending-1", tfErr.PendingToken)
		require.Equal(t, []string{MethodApp, MethodRecovery}, tfErr.Methods)
		require.True(t, tfErr.User.TwoFactorEnabled)
	})

	t.Run("invalid credentials", func(t *testing.T) {
		_, err := c.Login(ctx, "nobody@example.com", "pw", false)
		require.ErrorIs(t, err, ErrInvalidCredentials)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	})
}

func TestClientRegisterValidation(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/auth/register", func(w http.ResponseWriter, r *http.Request) {
		NewValidationError(map[string]string{"email": "email is already registered"}).WriteError(w)
	})
	c := newTestClient(t, mux)

	_, err := c.Register(context.Background(), RegisterRequest{Email: "jane@example.com"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	require.Equal(t, ErrorCodeValidationFailed, apiErr.Code)
	require.Equal(t, "email is already registered", apiErr.Fields["email"])
}

func TestClientBearerAndView(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			ErrUnauthorized.WriteError(w)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, User{ID: "u1"})
	})
	mux.HandleFunc("GET /v1/portfolio", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"sort": r.URL.Query().Get("sort")})
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	u, err := c.Me(ctx, "good")
	require.NoError(t, err)
	require.Equal(t, "u1", u.ID)

	_, err = c.Me(ctx, "bad")
	require.ErrorIs(t, err, ErrUnauthorized)

	raw, err := c.View(ctx, "good", ViewPortfolio, url.Values{"sort": {"value"}})
	require.NoError(t, err)
	require.JSONEq(t, `{"sort":"value"}`, string(raw))
}

func TestParseErrorResponseFallback(t *testing.T) {
	t.Parallel()

	resp := &http.Response{StatusCode: http.StatusBadGateway}
	err := parseErrorResponse(resp, []byte("<html>bad gateway</html>"))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, ErrorCodeServerError, apiErr.Code)
	require.Contains(t, apiErr.Description, "502")
}

func TestProfilePatchApply(t *testing.T) {
	t.Parallel()

	name, city := "Jane Roe", "Sydney"
	u := User{Name: "Jane Doe", Profile: Profile{Company: "Acme"}}
	ProfilePatch{Name: &name, Location: &city}.Apply(&u)

	require.Equal(t, "Jane Roe", u.Name)
	require.Equal(t, "Sydney", u.Profile.Location)
	require.Equal(t, "Acme", u.Profile.Company)
}
