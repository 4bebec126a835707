package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/fintrack/internal/auth/store"
	"github.com/aussiebroadwan/fintrack/pkg/authsdk"
	"github.com/aussiebroadwan/fintrack/pkg/httpx"
	"github.com/aussiebroadwan/fintrack/pkg/jwtx"
)

// HealthHandler answers the liveness and readiness probes.
type HealthHandler struct {
	Started time.Time
	Version string
	Store   store.Store
	Keys    *jwtx.KeySet
}

func (h *HealthHandler) base(status string) authsdk.HealthResponse {
	return authsdk.HealthResponse{
		Status:  status,
		Uptime:  time.Since(h.Started).Round(time.Second).String(),
		Version: h.Version,
	}
}

// HandleLivez handles GET /livez
//
//	@Summary		Liveness probe
//	@Description	Returns 200 whenever the process is serving requests.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse
//	@Router			/livez [get].
func (h *HealthHandler) HandleLivez(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, h.base("ok"))
}

// HandleReadyz handles GET /readyz
//
//	@Summary		Readiness probe
//	@Description	Checks the user database and that a signing key is loaded.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse
//	@Failure		503	{object}	authsdk.HealthResponse	"A dependency is down"
//	@Router			/readyz [get].
func (h *HealthHandler) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := authsdk.HealthChecks{Database: "ok", Signer: "ok"}
	if err := h.Store.Ping(r.Context()); err != nil {
		checks.Database = "error: " + err.Error()
	}
	if !h.Keys.IsReady() {
		checks.Signer = "error: no signing key"
	}

	resp, code := h.base("ok"), http.StatusOK
	if checks.Database != "ok" || checks.Signer != "ok" {
		resp.Status, code = "degraded", http.StatusServiceUnavailable
	}
	resp.Checks = &checks
	httpx.WriteJSON(w, code, resp)
}

// HandleJWKS handles GET /.well-known/jwks.json
//
//	@Summary		Token verification keys
//	@Description	Public keys for verifying access tokens offline.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.JWKSResponse
//	@Router			/.well-known/jwks.json [get].
func (h *HealthHandler) HandleJWKS(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, authsdk.JWKSResponse(h.Keys.PublicJWKS()))
}
