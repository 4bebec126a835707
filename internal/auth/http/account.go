package http

import (
	"net/http"

	"github.com/aussiebroadwan/fintrack/internal/auth/domain"
	"github.com/aussiebroadwan/fintrack/internal/auth/service"
	"github.com/aussiebroadwan/fintrack/pkg/authsdk"
	"github.com/aussiebroadwan/fintrack/pkg/authsdk/storage"
	"github.com/aussiebroadwan/fintrack/pkg/httpx"
)

// AccountHandler serves the signed-in user's own account.
type AccountHandler struct {
	UserService *service.UserService
	Cookies     httpx.CookiePolicy
}

// HandleMe handles GET /v1/me
//
//	@Summary		Current user
//	@Tags			Account
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.User		"The signed-in user"
//	@Failure		401	{object}	httpx.ErrorResponse	"Invalid or missing access token"
//	@Router			/v1/me [get].
func (h *AccountHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.UserID(r.Context())
	if !ok {
		authsdk.ErrUnauthorized.WriteError(w)
		return
	}

	u, err := h.UserService.GetUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toWireUser(u))
}

// HandleUpdateMe handles PATCH /v1/me
//
//	@Summary		Update profile
//	@Description	Merges the given fields into the user's name and profile. Omitted fields are unchanged.
//	@Tags			Account
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.ProfilePatch	true	"Fields to change"
//	@Success		200		{object}	authsdk.User			"Updated user"
//	@Failure		400		{object}	httpx.ErrorResponse		"Malformed request"
//	@Failure		401		{object}	httpx.ErrorResponse		"Invalid or missing access token"
//	@Router			/v1/me [patch].
func (h *AccountHandler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.UserID(r.Context())
	if !ok {
		authsdk.ErrUnauthorized.WriteError(w)
		return
	}

	var patch authsdk.ProfilePatch
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		invalidRequest(w, err.Error())
		return
	}

	u, err := h.UserService.UpdateUser(r.Context(), userID, domain.ProfilePatch(patch))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toWireUser(u))
}

// HandleChangePassword handles POST /v1/me/password
//
//	@Summary		Change password
//	@Description	Replaces the password after checking the current one. Every session of the user is revoked.
//	@Tags			Account
//	@Security		BearerAuth
//	@Accept			json
//	@Param			request	body	authsdk.ChangePasswordRequest	true	"Current and new password"
//	@Success		204
//	@Failure		401	{object}	httpx.ErrorResponse	"Wrong current password"
//	@Failure		422	{object}	httpx.ErrorResponse	"New password too short"
//	@Router			/v1/me/password [post].
func (h *AccountHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.UserID(r.Context())
	if !ok {
		authsdk.ErrUnauthorized.WriteError(w)
		return
	}

	var req authsdk.ChangePasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		invalidRequest(w, err.Error())
		return
	}

	if err := h.UserService.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		writeServiceError(w, r, err)
		return
	}

	for _, k := range storage.AuthKeys {
		h.Cookies.Clear(w, k)
	}
	w.WriteHeader(http.StatusNoContent)
}
