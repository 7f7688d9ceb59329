package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aussiebroadwan/taskbridge/internal/auth/domain"
	httpapi "github.com/aussiebroadwan/taskbridge/internal/auth/http"
	"github.com/aussiebroadwan/taskbridge/internal/auth/service"
	"github.com/aussiebroadwan/taskbridge/internal/auth/store"
	"github.com/aussiebroadwan/taskbridge/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/taskbridge/internal/broker"
	"github.com/aussiebroadwan/taskbridge/pkg/cryptox"
	"github.com/aussiebroadwan/taskbridge/pkg/jwtx"
	"github.com/aussiebroadwan/taskbridge/pkg/slogx"
)

// BuildVersion is overridden at build time with -ldflags "-X".
var BuildVersion = "v0.1.0"

// Application encapsulates the server with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db         store.Store
	keyManager *jwtx.KeyManager
	codec      *jwtx.Codec
	passwords  *cryptox.PasswordHasher
	redis      *redis.Client // nil without REDIS_URL

	// Services
	authorizeService    *service.AuthorizeService
	consentService      *service.ConsentService
	loginService        *service.LoginService
	tokenService        *service.TokenService
	userService         *service.UserService
	clientService       *service.ClientService
	mfaService          *service.MFAService
	bearer              *service.BearerAuthenticator
	housekeepingService *service.HousekeepingService
	keyRotationService  *service.KeyRotationService
	broker              *broker.Broker

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "taskbridge",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	pepper, err := loadPepper(cfg, app.logger)
	if err != nil {
		return nil, err
	}
	app.passwords = cryptox.NewPasswordHasher(pepper)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	app.keyManager, err = InitAuthKeys(cfg, app.logger)
	if err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("failed to initialize signing keys: %w", err)
	}
	app.codec = jwtx.NewCodec(app.keyManager, cfg.Issuer)

	if err := app.initBroker(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initServices()

	if err := app.seed(); err != nil {
		_ = app.Close()
		return nil, err
	}

	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("taskbridge starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"issuer", app.cfg.Issuer,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	// SIGHUP rotates the signing key without a restart.
	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	defer signal.Stop(reload)

	for {
		select {
		case err := <-serverErrors:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		case <-reload:
			app.rotateSigningKey()
		case sig := <-shutdown:
			app.logger.Info("shutdown signal received", "signal", sig)
			if err := app.Shutdown(); err != nil {
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}
			return nil
		}
	}
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down taskbridge...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.Close(); err != nil {
		return err
	}

	app.logger.Info("taskbridge stopped")
	return nil
}

// Close releases the key rotation timers, Redis and the database.
func (app *Application) Close() error {
	if app.keyRotationService != nil {
		app.keyRotationService.Stop()
	}
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis client", "error", err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}
	return nil
}

// Handler exposes the router, mainly for tests.
func (app *Application) Handler() http.Handler { return app.router }

// initDatabase opens the database and applies migrations
func (app *Application) initDatabase() error {
	db, err := sqlite.NewStore(app.cfg.DatabaseFile)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "file", app.cfg.DatabaseFile)
	return nil
}

// initBroker configures the enabled platforms and, with REDIS_URL, the
// shared refresh lease.
func (app *Application) initBroker() error {
	cipher, err := loadTokenCipher(app.cfg, app.logger)
	if err != nil {
		return err
	}

	var providers []broker.Provider
	for _, pc := range []struct {
		platform domain.Platform
		cfg      PlatformConfig
	}{
		{domain.PlatformZoom, app.cfg.Zoom},
		{domain.PlatformAsana, app.cfg.Asana},
	} {
		if !pc.cfg.enabled() {
			app.logger.Info("platform disabled, no client credentials", "platform", pc.platform)
			continue
		}
		p := broker.DefaultProvider(pc.platform)
		p.Credentials = broker.Credentials{ClientID: pc.cfg.ClientID, ClientSecret: pc.cfg.ClientSecret}
		p.RedirectURI = pc.cfg.RedirectURI
		providers = append(providers, p)
		app.logger.Info("platform enabled", "platform", pc.platform, "redirect_uri", p.RedirectURI)
	}

	var locker broker.Locker = broker.LocalLocker{}
	if app.cfg.RedisURL != "" {
		opts, err := redis.ParseURL(app.cfg.RedisURL)
		if err != nil {
			return &ConfigurationError{Key: "REDIS_URL", Reason: err.Error()}
		}
		app.redis = redis.NewClient(opts)
		locker = &broker.RedisLocker{
			Client: app.redis,
			Prefix: "taskbridge:",
			TTL:    app.cfg.BrokerTimeout + 5*time.Second,
			Wait:   app.cfg.BrokerTimeout + 10*time.Second,
		}
		app.logger.Info("refresh leases shared through redis", "addr", opts.Addr)
	}

	app.broker, err = broker.New(broker.Options{
		Store:       app.db,
		Cipher:      cipher,
		Providers:   providers,
		HTTPTimeout: app.cfg.BrokerTimeout,
		Locker:      locker,
		RefreshSkew: app.cfg.RefreshSkew,
		// Lease wait plus one token request.
		RefreshTimeout: 2*app.cfg.BrokerTimeout + 10*time.Second,
	})
	if err != nil {
		if app.redis != nil {
			_ = app.redis.Close()
		}
		return err
	}
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.authorizeService = &service.AuthorizeService{
		Store:          app.db,
		TrustedDomains: app.cfg.TrustedDomains,
		AllowPlainPKCE: app.cfg.AllowPlainPKCE,
	}
	app.consentService = &service.ConsentService{
		Store: app.db,
		Codes: &service.CodeIssuer{Store: app.db},
	}
	app.loginService = &service.LoginService{Store: app.db, Passwords: app.passwords}
	app.tokenService = &service.TokenService{
		Store:               app.db,
		Codec:               app.codec,
		Passwords:           app.passwords,
		Audience:            app.cfg.ResourceID,
		AccessTTL:           jwtx.AccessTokenTTL,
		RefreshTTL:          jwtx.RefreshTokenTTL,
		RotateRefreshTokens: app.cfg.RotateRefresh,
		AllowPlainPKCE:      app.cfg.AllowPlainPKCE,
	}
	app.userService = &service.UserService{Store: app.db, Passwords: app.passwords}
	app.clientService = &service.ClientService{Store: app.db, Passwords: app.passwords}
	app.mfaService = &service.MFAService{Store: app.db, Issuer: "TaskBridge"}
	app.bearer = &service.BearerAuthenticator{
		Codec:    app.codec,
		Store:    app.db,
		Audience: app.cfg.ResourceID,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)

	app.keyRotationService = &service.KeyRotationService{
		KeyManager:  app.keyManager,
		Algorithm:   app.cfg.KeyAlgorithm,
		GracePeriod: app.cfg.KeyGracePeriod,
	}
}

// seed applies AUTH_SEED_FILE, if configured.
func (app *Application) seed() error {
	if app.cfg.SeedFile == "" {
		return nil
	}
	data, err := service.LoadSeedFile(app.cfg.SeedFile)
	if err != nil {
		return &ConfigurationError{Key: "AUTH_SEED_FILE", Reason: err.Error()}
	}

	ctx := slogx.WithContext(context.Background(), app.logger)
	seeder := &service.Seeder{Users: app.userService, Clients: app.clientService}
	if err := seeder.Apply(ctx, data); err != nil {
		return fmt.Errorf("failed to apply seed file: %w", err)
	}
	return nil
}

// rotateSigningKey rereads the configured key, or generates one in dev.
func (app *Application) rotateSigningKey() {
	ctx := slogx.WithContext(context.Background(), app.logger)

	var (
		res service.RotateKeyResult
		err error
	)
	if app.cfg.hasKeyMaterial() {
		var pemKey []byte
		if pemKey, err = signingKeyPEM(app.cfg); err == nil {
			res, err = app.keyRotationService.RotateFromPEM(ctx, "", pemKey)
		}
	} else {
		res, err = app.keyRotationService.RotateGenerated(ctx)
	}
	if err != nil {
		app.logger.Error("signing key rotation failed", "error", err)
		return
	}
	app.logger.Info("signing key rotation applied", "active_kid", res.ActiveKID, "retired_kid", res.RetiredKID)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.keyManager.KeySet(),
		app.cfg.Issuer,
		BuildVersion,
		app.db,
		app.logger,
	)

	router.AuthorizeService = app.authorizeService
	router.ConsentService = app.consentService
	router.LoginService = app.loginService
	router.TokenService = app.tokenService
	router.UserService = app.userService
	router.MFAService = app.mfaService
	router.Bearer = app.bearer
	router.Broker = app.broker
	router.AllowPlainPKCE = app.cfg.AllowPlainPKCE
	router.Limits = app.cfg.RateLimits
	if app.redis != nil {
		router.LockCheck = func(ctx context.Context) error { return app.redis.Ping(ctx).Err() }
	}
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
