package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/fintrack/internal/auth/service"
	"github.com/aussiebroadwan/fintrack/internal/auth/store"
	"github.com/aussiebroadwan/fintrack/internal/finance"
	"github.com/aussiebroadwan/fintrack/pkg/authsdk/storage"
	"github.com/aussiebroadwan/fintrack/pkg/httpx"
	"github.com/aussiebroadwan/fintrack/pkg/jwtx"
	"github.com/aussiebroadwan/fintrack/pkg/slogx"

	_ "github.com/aussiebroadwan/fintrack/api/auth" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store            store.Store
	Cookies          httpx.CookiePolicy
	LoginService     *service.LoginService
	UserService      *service.UserService
	TwoFactorService *service.TwoFactorService
	Book             *finance.Book
}

func NewRouter(
	keys *jwtx.KeySet,
	verifier jwtx.Verifier,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
		Cookies:      httpx.CookiePolicy{Secure: true, PersistFor: storage.CookieTTL},
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerAccount()
	r.registerTwoFactor()
	r.registerFinance()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			FinTrack Auth API
//	@version		0.1.0
//	@description	Sign-in, two-factor authentication and session management for FinTrack, plus the demo finance views.
//	@description
//	@description				Access tokens are JWTs verifiable with the JWKS endpoint. Browser clients get them as HttpOnly cookies as well.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/fintrack
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// authed wraps h with access-token verification and a per-user limit.
func (r *Router) authed(h http.HandlerFunc, limit httpx.RateLimitConfig) http.Handler {
	return httpx.Chain(h,
		httpx.AuthnMiddleware(r.verifier, storage.KeyToken),
		httpx.RateLimitByUser(limit),
	)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{
		LoginService: r.LoginService,
		Cookies:      r.Cookies,
	}

	// Credential and code entry: strict, keyed by IP plus the account.
	r.Mux.Handle("POST /v1/auth/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIPAndJSONField(httpx.StrictLimit, "email"),
		),
	)
	r.Mux.Handle("POST /v1/auth/providers/{provider}",
		httpx.Chain(http.HandlerFunc(h.HandleProviderLogin),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET /v1/auth/providers/{provider}",
		httpx.Chain(http.HandlerFunc(h.HandleProviderRedirect),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/2fa/verify",
		httpx.Chain(http.HandlerFunc(h.HandleVerifyTwoFactor),
			httpx.RateLimitByIPAndJSONField(httpx.StrictLimit, "pending_token"),
		),
	)
	r.Mux.Handle("POST /v1/auth/2fa/cancel",
		httpx.Chain(http.HandlerFunc(h.HandleCancelTwoFactor),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerAccount() {
	h := &AccountHandler{
		UserService: r.UserService,
		Cookies:     r.Cookies,
	}

	r.Mux.Handle("GET /v1/me", r.authed(h.HandleMe, httpx.LenientLimit))
	r.Mux.Handle("PATCH /v1/me", r.authed(h.HandleUpdateMe, httpx.ModerateLimit))
	r.Mux.Handle("POST /v1/me/password", r.authed(h.HandleChangePassword, httpx.StrictLimit))
}

func (r *Router) registerTwoFactor() {
	h := &TwoFactorHandler{
		TwoFactorService: r.TwoFactorService,
		UserService:      r.UserService,
	}

	r.Mux.Handle("GET /v1/2fa", r.authed(h.HandleStatus, httpx.LenientLimit))
	r.Mux.Handle("POST /v1/2fa/setup", r.authed(h.HandleSetup, httpx.ModerateLimit))
	r.Mux.Handle("GET /v1/2fa/qr.png", r.authed(h.HandleQRCode, httpx.ModerateLimit))

	// Each of these checks an authenticator code.
	r.Mux.Handle("POST /v1/2fa/enable", r.authed(h.HandleEnable, httpx.StrictLimit))
	r.Mux.Handle("POST /v1/2fa/disable", r.authed(h.HandleDisable, httpx.StrictLimit))
	r.Mux.Handle("POST /v1/2fa/recovery-codes", r.authed(h.HandleRecoveryCodes, httpx.StrictLimit))
}

func (r *Router) registerFinance() {
	h := &FinanceHandler{Book: r.Book}

	r.Mux.Handle("GET /v1/dashboard", r.authed(h.HandleDashboard, httpx.LenientLimit))
	r.Mux.Handle("GET /v1/cashflow", r.authed(h.HandleCashflow, httpx.LenientLimit))
	r.Mux.Handle("GET /v1/portfolio", r.authed(h.HandlePortfolio, httpx.LenientLimit))
	r.Mux.Handle("GET /v1/budgets", r.authed(h.HandleBudgets, httpx.LenientLimit))
	r.Mux.Handle("GET /v1/insights", r.authed(h.HandleInsights, httpx.LenientLimit))
	r.Mux.Handle("GET /v1/transactions", r.authed(h.HandleTransactions, httpx.LenientLimit))
}

func (r *Router) registerSystem() {
	h := &HealthHandler{
		Started: r.startTime,
		Version: r.buildVersion,
		Store:   r.store,
		Keys:    r.keys,
	}

	// Probes and key discovery are polled often.
	public := httpx.RateLimitByIP(httpx.PublicLimit)
	r.Mux.Handle("GET /livez", httpx.Chain(http.HandlerFunc(h.HandleLivez), public))
	r.Mux.Handle("GET /readyz", httpx.Chain(http.HandlerFunc(h.HandleReadyz), public))
	r.Mux.Handle("GET /.well-known/jwks.json", httpx.Chain(http.HandlerFunc(h.HandleJWKS), public))
}
