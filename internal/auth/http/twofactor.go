package http

import (
	"net/http"
	"strconv"

	"github.com/aussiebroadwan/fintrack/internal/auth/service"
	"github.com/aussiebroadwan/fintrack/pkg/authsdk"
	"github.com/aussiebroadwan/fintrack/pkg/httpx"
)

const (
	defaultQRSize = 256
	maxQRSize     = 1024
)

// TwoFactorHandler serves authenticator enrollment and recovery codes.
type TwoFactorHandler struct {
	TwoFactorService *service.TwoFactorService
	UserService      *service.UserService
}

// HandleStatus handles GET /v1/2fa
//
//	@Summary		Two-factor status
//	@Tags			Two-factor
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.TwoFactorStatusResponse	"Enabled flag and unused recovery codes"
//	@Failure		401	{object}	httpx.ErrorResponse				"Invalid or missing access token"
//	@Router			/v1/2fa [get].
func (h *TwoFactorHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := httpx.UserID(ctx)
	if !ok {
		authsdk.ErrUnauthorized.WriteError(w)
		return
	}

	u, err := h.UserService.GetUser(ctx, userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	left, err := h.TwoFactorService.RemainingRecoveryCodes(ctx, userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.TwoFactorStatusResponse{
		Enabled:           h.TwoFactorService.IsEnabled(u),
		RecoveryCodesLeft: left,
	})
}

// HandleSetup handles POST /v1/2fa/setup
//
//	@Summary		Start two-factor setup
//	@Description	Generates a new TOTP secret. 2FA stays off until /v1/2fa/enable confirms a code from the authenticator.
//	@Tags			Two-factor
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.TwoFactorSetupResponse	"Secret and QR code location"
//	@Failure		401	{object}	httpx.ErrorResponse				"Invalid or missing access token"
//	@Failure		409	{object}	httpx.ErrorResponse				"Already enabled"
//	@Router			/v1/2fa/setup [post].
func (h *TwoFactorHandler) HandleSetup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := httpx.UserID(ctx)
	if !ok {
		authsdk.ErrUnauthorized.WriteError(w)
		return
	}

	setup, err := h.TwoFactorService.GenerateSecret(ctx, userID, "")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.TwoFactorSetupResponse(setup))
}

// HandleQRCode handles GET /v1/2fa/qr.png
//
//	@Summary		Enrollment QR code
//	@Description	PNG QR code of the otpauth URL for the secret from /v1/2fa/setup.
//	@Tags			Two-factor
//	@Security		BearerAuth
//	@Produce		png
//	@Param			size	query	int	false	"Width and height in pixels (default 256, max 1024)"
//	@Success		200
//	@Failure		409	{object}	httpx.ErrorResponse	"Setup not started"
//	@Router			/v1/2fa/qr.png [get].
func (h *TwoFactorHandler) HandleQRCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := httpx.UserID(ctx)
	if !ok {
		authsdk.ErrUnauthorized.WriteError(w)
		return
	}

	size := defaultQRSize
	if v := r.URL.Query().Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 64 || n > maxQRSize {
			invalidRequest(w, "size must be between 64 and 1024")
			return
		}
		size = n
	}

	img, err := h.TwoFactorService.QRCode(ctx, userID, size)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(img)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}

// HandleEnable handles POST /v1/2fa/enable
//
//	@Summary		Enable two-factor
//	@Description	Confirms setup with a current authenticator code and returns 10 recovery codes. They are shown once.
//	@Tags			Two-factor
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.TwoFactorCodeRequest	true	"Authenticator code"
//	@Success		200		{object}	authsdk.TwoFactorStatusResponse	"Recovery codes"
//	@Failure		401		{object}	httpx.ErrorResponse				"Wrong code"
//	@Failure		409		{object}	httpx.ErrorResponse				"Already enabled or not set up"
//	@Router			/v1/2fa/enable [post].
func (h *TwoFactorHandler) HandleEnable(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, true)
}

// HandleDisable handles POST /v1/2fa/disable
//
//	@Summary		Disable two-factor
//	@Description	Turns 2FA off after checking a current authenticator code. The secret and recovery codes are deleted.
//	@Tags			Two-factor
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.TwoFactorCodeRequest	true	"Authenticator code"
//	@Success		200		{object}	authsdk.TwoFactorStatusResponse	"Disabled"
//	@Failure		401		{object}	httpx.ErrorResponse				"Wrong code"
//	@Failure		409		{object}	httpx.ErrorResponse				"Not enabled"
//	@Router			/v1/2fa/disable [post].
func (h *TwoFactorHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, false)
}

func (h *TwoFactorHandler) setStatus(w http.ResponseWriter, r *http.Request, enabled bool) {
	ctx := r.Context()
	userID, ok := httpx.UserID(ctx)
	if !ok {
		authsdk.ErrUnauthorized.WriteError(w)
		return
	}

	var req authsdk.TwoFactorCodeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		invalidRequest(w, err.Error())
		return
	}

	codes, err := h.TwoFactorService.SetStatus(ctx, userID, enabled, req.Code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.TwoFactorStatusResponse{
		Enabled:           enabled,
		RecoveryCodes:     codes,
		RecoveryCodesLeft: len(codes),
	})
}

// HandleRecoveryCodes handles POST /v1/2fa/recovery-codes
//
//	@Summary		Regenerate recovery codes
//	@Description	Replaces every recovery code after checking a current authenticator code.
//	@Tags			Two-factor
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.TwoFactorCodeRequest	true	"Authenticator code"
//	@Success		200		{object}	authsdk.RecoveryCodesResponse	"New recovery codes (shown once)"
//	@Failure		401		{object}	httpx.ErrorResponse				"Wrong code"
//	@Failure		409		{object}	httpx.ErrorResponse				"Not enabled"
//	@Router			/v1/2fa/recovery-codes [post].
func (h *TwoFactorHandler) HandleRecoveryCodes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := httpx.UserID(ctx)
	if !ok {
		authsdk.ErrUnauthorized.WriteError(w)
		return
	}

	var req authsdk.TwoFactorCodeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		invalidRequest(w, err.Error())
		return
	}

	codes, err := h.TwoFactorService.RegenerateRecoveryCodes(ctx, userID, req.Code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.RecoveryCodesResponse{Codes: codes})
}
