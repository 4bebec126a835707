package authsdk

import (
	"context"
	"net/http"
	"net/url"
)

// Register creates a password account. Field problems come back as an
// *APIError with Code validation_failed and Fields set.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	var u User
	if err := c.call(ctx, http.MethodPost, "/v1/auth/register", "", req, &u, http.StatusCreated); err != nil {
		return nil, err
	}
	return &u, nil
}

// Login signs in with email and password. When the account has 2FA
// enabled the error is a *TwoFactorRequiredError.
func (c *Client) Login(ctx context.Context, email, password string, rememberMe bool) (*AuthResponse, error) {
	var out AuthResponse
	req := LoginRequest{Email: email, Password: password, RememberMe: rememberMe}
	if err := c.call(ctx, http.MethodPost, "/v1/auth/login", "", req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// LoginWithProvider signs in through a simulated provider such as google
// or github. It fails like Login when 2FA is needed.
func (c *Client) LoginWithProvider(ctx context.Context, provider string, rememberMe bool) (*AuthResponse, error) {
	var out AuthResponse
	path := "/v1/auth/providers/" + url.PathEscape(provider)
	if err := c.call(ctx, http.MethodPost, path, "", ProviderLoginRequest{RememberMe: rememberMe}, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyTwoFactor completes a pending sign-in with an authenticator code
// (MethodApp) or a recovery code (MethodRecovery).
func (c *Client) VerifyTwoFactor(ctx context.Context, pendingToken, method, code string) (*AuthResponse, error) {
	var out AuthResponse
	req := TwoFactorVerifyRequest{PendingToken: pendingToken, Method: method, Code: code}
	if err := c.call(ctx, http.MethodPost, "/v1/auth/2fa/verify", "", req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CancelTwoFactor(ctx context.Context, pendingToken string) error {
	return c.call(ctx, http.MethodPost, "/v1/auth/2fa/cancel", "", PendingLoginRequest{PendingToken: pendingToken}, nil, http.StatusNoContent)
}

// Refresh rotates refreshToken. The old token stops working.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.call(ctx, http.MethodPost, "/v1/auth/refresh", "", RefreshRequest{RefreshToken: refreshToken}, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout revokes the session refreshToken belongs to.
func (c *Client) Logout(ctx context.Context, refreshToken string) (*LogoutResponse, error) {
	var out LogoutResponse
	if err := c.call(ctx, http.MethodPost, "/v1/auth/logout", "", RefreshRequest{RefreshToken: refreshToken}, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}
