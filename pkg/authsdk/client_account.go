package authsdk

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

func (c *Client) Me(ctx context.Context, token string) (*User, error) {
	var u User
	if err := c.call(ctx, http.MethodGet, "/v1/me", token, nil, &u, http.StatusOK); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateMe applies a profile patch and returns the updated user.
func (c *Client) UpdateMe(ctx context.Context, token string, patch ProfilePatch) (*User, error) {
	var u User
	if err := c.call(ctx, http.MethodPatch, "/v1/me", token, patch, &u, http.StatusOK); err != nil {
		return nil, err
	}
	return &u, nil
}

// ChangePassword revokes every session of the user, including the
// caller's, on success.
func (c *Client) ChangePassword(ctx context.Context, token, current, next string) error {
	req := ChangePasswordRequest{CurrentPassword: current, NewPassword: next}
	return c.call(ctx, http.MethodPost, "/v1/me/password", token, req, nil, http.StatusNoContent)
}

// SetupTwoFactor starts authenticator enrollment.
func (c *Client) SetupTwoFactor(ctx context.Context, token string) (*TwoFactorSetupResponse, error) {
	var out TwoFactorSetupResponse
	if err := c.call(ctx, http.MethodPost, "/v1/2fa/setup", token, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// TwoFactorQRCode fetches the enrollment QR code as PNG bytes.
func (c *Client) TwoFactorQRCode(ctx context.Context, token string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, "/v1/2fa/qr.png", token, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, parseErrorResponse(resp, body)
	}
	return body, nil
}

// TwoFactorStatus reports whether 2FA is on and how many recovery codes
// are unused.
func (c *Client) TwoFactorStatus(ctx context.Context, token string) (*TwoFactorStatusResponse, error) {
	var out TwoFactorStatusResponse
	if err := c.call(ctx, http.MethodGet, "/v1/2fa", token, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// EnableTwoFactor confirms enrollment with a current code and returns the
// recovery codes. They are not shown again.
func (c *Client) EnableTwoFactor(ctx context.Context, token, code string) (*TwoFactorStatusResponse, error) {
	var out TwoFactorStatusResponse
	if err := c.call(ctx, http.MethodPost, "/v1/2fa/enable", token, TwoFactorCodeRequest{Code: code}, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DisableTwoFactor(ctx context.Context, token, code string) (*TwoFactorStatusResponse, error) {
	var out TwoFactorStatusResponse
	if err := c.call(ctx, http.MethodPost, "/v1/2fa/disable", token, TwoFactorCodeRequest{Code: code}, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RegenerateRecoveryCodes(ctx context.Context, token, code string) (*RecoveryCodesResponse, error) {
	var out RecoveryCodesResponse
	if err := c.call(ctx, http.MethodPost, "/v1/2fa/recovery-codes", token, TwoFactorCodeRequest{Code: code}, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}
