package http

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/aussiebroadwan/fintrack/internal/auth/domain"
	"github.com/aussiebroadwan/fintrack/internal/auth/service"
	"github.com/aussiebroadwan/fintrack/pkg/authsdk"
	"github.com/aussiebroadwan/fintrack/pkg/authsdk/storage"
	"github.com/aussiebroadwan/fintrack/pkg/httpx"
	"github.com/aussiebroadwan/fintrack/pkg/slogx"
)

// AuthHandler serves sign-in, two-factor completion, refresh and logout.
type AuthHandler struct {
	LoginService *service.LoginService
	Cookies      httpx.CookiePolicy
}

// HandleRegister handles POST /v1/auth/register
//
//	@Summary		Register
//	@Description	Creates a password account. Field problems are reported per field.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RegisterRequest	true	"New account"
//	@Success		201		{object}	authsdk.User			"Created user"
//	@Failure		400		{object}	httpx.ErrorResponse		"Malformed request"
//	@Failure		422		{object}	httpx.ErrorResponse		"Validation failed"
//	@Failure		500		{object}	httpx.ErrorResponse		"Internal server error"
//	@Router			/v1/auth/register [post].
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RegisterRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		invalidRequest(w, err.Error())
		return
	}

	u, err := h.LoginService.Register(r.Context(), service.RegisterInput(req))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toWireUser(u))
}

// HandleLogin handles POST /v1/auth/login
//
//	@Summary		Sign in with a password
//	@Description	Checks email and password. Accounts with 2FA get 409 and a pending token to use with /v1/auth/2fa/verify.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.LoginRequest			true	"Credentials"
//	@Success		200		{object}	authsdk.AuthResponse			"Signed in"
//	@Failure		401		{object}	httpx.ErrorResponse				"Invalid credentials"
//	@Failure		409		{object}	authsdk.TwoFactorRequiredError	"Second factor required"
//	@Failure		429		{object}	httpx.ErrorResponse				"Rate limited"
//	@Router			/v1/auth/login [post].
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		invalidRequest(w, err.Error())
		return
	}
	if req.Email == "" || req.Password == "" {
		invalidRequest(w, "email and password are required")
		return
	}

	res, err := h.LoginService.LoginWithPassword(r.Context(), req.Email, req.Password, req.RememberMe)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.writeLoginResult(w, r, res, req.RememberMe)
}

// HandleProviderLogin handles POST /v1/auth/providers/{provider}
//
//	@Summary		Sign in with a provider
//	@Description	Simulated third-party sign-in (google, github, apple, microsoft, passkey, wallet). The first sign-in creates the provider's demo account.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			provider	path		string							true	"Provider name"
//	@Param			request		body		authsdk.ProviderLoginRequest	false	"Options"
//	@Success		200			{object}	authsdk.AuthResponse			"Signed in"
//	@Failure		404			{object}	httpx.ErrorResponse				"Unknown provider"
//	@Failure		409			{object}	authsdk.TwoFactorRequiredError	"Second factor required"
//	@Router			/v1/auth/providers/{provider} [post].
func (h *AuthHandler) HandleProviderLogin(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ProviderLoginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		invalidRequest(w, err.Error())
		return
	}

	res, err := h.LoginService.LoginWithProvider(r.Context(), r.PathValue("provider"), req.RememberMe)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.writeLoginResult(w, r, res, req.RememberMe)
}

// HandleProviderRedirect handles GET /v1/auth/providers/{provider}
//
//	@Summary		Sign in with a provider (browser)
//	@Description	Browser form of provider sign-in. Sets the session cookies and redirects to the dashboard, or to the two-factor page.
//	@Tags			Auth
//	@Param			provider	path	string	true	"Provider name"
//	@Param			remember_me	query	bool	false	"Keep the session for 30 days"
//	@Success		303
//	@Failure		404	{object}	httpx.ErrorResponse	"Unknown provider"
//	@Router			/v1/auth/providers/{provider} [get].
func (h *AuthHandler) HandleProviderRedirect(w http.ResponseWriter, r *http.Request) {
	remember, _ := strconv.ParseBool(r.URL.Query().Get("remember_me"))

	res, err := h.LoginService.LoginWithProvider(r.Context(), r.PathValue("provider"), remember)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if res.RequiresTwoFactor {
		http.Redirect(w, r, twoFactorRedirect(res), http.StatusSeeOther)
		return
	}
	if err := h.setSessionCookies(w, res); err != nil {
		writeServiceError(w, r, err)
		return
	}
	http.Redirect(w, r, authsdk.RedirectDashboard, http.StatusSeeOther)
}

// HandleVerifyTwoFactor handles POST /v1/auth/2fa/verify
//
//	@Summary		Complete a two-factor sign-in
//	@Description	Checks an authenticator code (method "app") or recovery code (method "recovery") for a pending sign-in. The pending sign-in is dropped after 5 wrong codes.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.TwoFactorVerifyRequest	true	"Pending token and code"
//	@Success		200		{object}	authsdk.AuthResponse			"Signed in"
//	@Failure		400		{object}	httpx.ErrorResponse				"Unknown method"
//	@Failure		401		{object}	httpx.ErrorResponse				"Wrong code or no pending sign-in"
//	@Failure		429		{object}	httpx.ErrorResponse				"Too many attempts"
//	@Router			/v1/auth/2fa/verify [post].
func (h *AuthHandler) HandleVerifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req authsdk.TwoFactorVerifyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		invalidRequest(w, err.Error())
		return
	}
	if req.PendingToken == "" {
		authsdk.ErrNoPendingLogin.WriteError(w)
		return
	}
	if req.Method == "" {
		req.Method = domain.MethodApp
	}

	res, err := h.LoginService.CompleteTwoFactor(r.Context(), req.PendingToken, req.Method, req.Code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.writeLoginResult(w, r, res, res.Tokens.RememberMe)
}

// HandleCancelTwoFactor handles POST /v1/auth/2fa/cancel
//
//	@Summary		Cancel a two-factor sign-in
//	@Tags			Auth
//	@Accept			json
//	@Param			request	body	authsdk.PendingLoginRequest	true	"Pending token"
//	@Success		204
//	@Router			/v1/auth/2fa/cancel [post].
func (h *AuthHandler) HandleCancelTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req authsdk.PendingLoginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		invalidRequest(w, err.Error())
		return
	}
	if err := h.LoginService.CancelTwoFactor(r.Context(), req.PendingToken); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRefresh handles POST /v1/auth/refresh
//
//	@Summary		Refresh tokens
//	@Description	Rotates a refresh token taken from the body or the fintrack_refresh_token cookie. Reusing a rotated token ends the session.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RefreshRequest	false	"Refresh token"
//	@Success		200		{object}	authsdk.AuthResponse	"New tokens"
//	@Failure		401		{object}	httpx.ErrorResponse		"Invalid refresh token"
//	@Router			/v1/auth/refresh [post].
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	token, ok := refreshTokenFrom(w, r)
	if !ok {
		return
	}

	res, err := h.LoginService.Refresh(r.Context(), token)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.writeLoginResult(w, r, res, res.Tokens.RememberMe)
}

// HandleLogout handles POST /v1/auth/logout
//
//	@Summary		Sign out
//	@Description	Revokes the session of the refresh token (body or cookie) and clears the session cookies. Always succeeds.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RefreshRequest	false	"Refresh token"
//	@Success		200		{object}	authsdk.LogoutResponse	"Where to go next"
//	@Router			/v1/auth/logout [post].
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	token, ok := refreshTokenFrom(w, r)
	if !ok {
		return
	}

	if err := h.LoginService.Logout(r.Context(), token); err != nil {
		// The client is signed out either way.
		slogx.FromContext(r.Context()).Error("failed to revoke session", "err", err)
	}

	h.clearSessionCookies(w)
	httpx.WriteJSON(w, http.StatusOK, authsdk.LogoutResponse{RedirectTo: authsdk.RedirectLogin})
}

// writeLoginResult writes 200 with tokens, or 409 when a second factor is
// still needed.
func (h *AuthHandler) writeLoginResult(w http.ResponseWriter, r *http.Request, res domain.LoginResult, rememberMe bool) {
	if res.RequiresTwoFactor {
		(&authsdk.TwoFactorRequiredError{
			PendingToken: res.PendingToken,
			Methods:      res.Methods,
			Provider:     string(res.User.Provider),
			RememberMe:   rememberMe,
			User:         toWireUser(res.User),
			RedirectTo:   twoFactorRedirect(res),
		}).WriteError(w)
		return
	}

	if err := h.setSessionCookies(w, res); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.AuthResponse{
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
		TokenType:    res.Tokens.TokenType,
		ExpiresIn:    res.Tokens.ExpiresIn,
		RememberMe:   res.Tokens.RememberMe,
		User:         toWireUser(res.User),
		RedirectTo:   authsdk.RedirectDashboard,
	})
}

// setSessionCookies writes the token, refresh token and user cookies.
// Remember-me sessions get persistent cookies; tokens are HttpOnly.
func (h *AuthHandler) setSessionCookies(w http.ResponseWriter, res domain.LoginResult) error {
	persistent := res.Tokens.RememberMe
	if err := h.Cookies.SetJSON(w, storage.KeyToken, res.Tokens.AccessToken, persistent, true); err != nil {
		return err
	}
	if err := h.Cookies.SetJSON(w, storage.KeyRefreshToken, res.Tokens.RefreshToken, persistent, true); err != nil {
		return err
	}
	if err := h.Cookies.SetJSON(w, storage.KeyUser, toWireUser(res.User), persistent, false); err != nil {
		return err
	}
	return h.Cookies.SetJSON(w, storage.KeyRemember, persistent, persistent, false)
}

func (h *AuthHandler) clearSessionCookies(w http.ResponseWriter) {
	for _, k := range storage.AuthKeys {
		h.Cookies.Clear(w, k)
	}
}

// refreshTokenFrom reads the refresh token from the body, falling back to
// the refresh cookie. It writes the error response itself when ok is false.
func refreshTokenFrom(w http.ResponseWriter, r *http.Request) (token string, ok bool) {
	var req authsdk.RefreshRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		invalidRequest(w, err.Error())
		return "", false
	}
	if req.RefreshToken != "" {
		return req.RefreshToken, true
	}
	_ = httpx.CookieJSON(r, storage.KeyRefreshToken, &token)
	return token, true
}

func twoFactorRedirect(res domain.LoginResult) string {
	q := url.Values{}
	q.Set("provider", string(res.User.Provider))
	q.Set("pending", res.PendingToken)
	return authsdk.RedirectTwoFactor + "?" + q.Encode()
}
