package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/fintrack/internal/auth/http"
	"github.com/aussiebroadwan/fintrack/internal/auth/service"
	"github.com/aussiebroadwan/fintrack/internal/auth/store"
	"github.com/aussiebroadwan/fintrack/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/fintrack/internal/finance"
	"github.com/aussiebroadwan/fintrack/pkg/authsdk/storage"
	"github.com/aussiebroadwan/fintrack/pkg/cryptox"
	"github.com/aussiebroadwan/fintrack/pkg/httpx"
	"github.com/aussiebroadwan/fintrack/pkg/jwtx"
	"github.com/aussiebroadwan/fintrack/pkg/slogx"
)

// BuildVersion is overridden at build time with -ldflags "-X".
var BuildVersion = "v0.1.0"

// Application is the auth server with all of its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db         *sqlite.Store
	keyManager *jwtx.KeyManager

	loginService        *service.LoginService
	userService         *service.UserService
	twoFactorService    *service.TwoFactorService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "fintrack-auth",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	cryptox.SetPepperPath(cfg.PepperFile)
	if err := cryptox.LoadPepper(); err != nil {
		return nil, fmt.Errorf("failed to load pepper: %w", err)
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	km, err := InitAuthKeys(cfg, app.logger)
	if err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.keyManager = km

	app.initServices()
	if err := app.seedDemoUser(context.Background()); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Run serves until SIGINT/SIGTERM or a server error.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("auth service starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"two_factor_mode", app.cfg.TwoFactorMode,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		app.housekeepingService.Stop()
		_ = app.db.Close()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

func (app *Application) initDatabase() error {
	db, err := sqlite.NewStore("file:" + app.cfg.DatabaseFile + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied", "file", app.cfg.DatabaseFile)
	return nil
}

func (app *Application) initServices() {
	app.twoFactorService = &service.TwoFactorService{
		Store:      app.db,
		Issuer:     "FinTrack",
		QRCodePath: "/v1/2fa/qr.png",
	}
	if app.cfg.TwoFactorMode == TwoFactorDemo {
		app.twoFactorService.Verifier = service.DemoVerifier{}
		app.twoFactorService.AcceptAnyRecoveryCode = true
		app.logger.Warn("two-factor demo mode: any six-digit code is accepted")
	}

	app.loginService = &service.LoginService{
		Store:       app.db,
		Keys:        app.keyManager,
		TwoFactor:   app.twoFactorService,
		Issuer:      app.cfg.Issuer,
		AccessTTL:   app.cfg.AccessTTL,
		SessionTTL:  app.cfg.SessionTTL,
		RememberTTL: app.cfg.RememberTTL,
		PendingTTL:  app.cfg.PendingTTL,
	}
	app.userService = &service.UserService{Store: app.db}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
	if app.cfg.KeyRotation > 0 {
		app.housekeepingService.Keys = app.keyManager
		app.housekeepingService.RotateEvery = app.cfg.KeyRotation
	}
}

// seedDemoUser registers the configured demo account unless it exists.
func (app *Application) seedDemoUser(ctx context.Context) error {
	if app.cfg.DemoEmail == "" {
		return nil
	}

	_, err := app.db.Users().GetUserByEmail(ctx, strings.ToLower(app.cfg.DemoEmail))
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("look up demo user: %w", err)
	}

	if _, err := app.loginService.Register(ctx, service.RegisterInput{
		Email:           app.cfg.DemoEmail,
		Name:            "Demo User",
		Password:        app.cfg.DemoPassword,
		ConfirmPassword: app.cfg.DemoPassword,
	}); err != nil {
		return fmt.Errorf("seed demo user: %w", err)
	}
	app.logger.Info("demo user created", "email", app.cfg.DemoEmail)
	return nil
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.keyManager.KeySet,
		app.keyManager.Verifier,
		BuildVersion,
		app.db,
		app.logger,
	)

	router.Cookies = httpx.CookiePolicy{Secure: !app.cfg.Dev(), PersistFor: storage.CookieTTL}
	router.LoginService = app.loginService
	router.UserService = app.userService
	router.TwoFactorService = app.twoFactorService
	router.Book = finance.Demo()
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
