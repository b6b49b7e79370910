// Package bootstrap wires all dependencies and starts the application.
// Configuration comes from a YAML file plus environment overrides; the
// limiter registry and tier limits stay hot-reloadable through the
// config holder.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/texlify/texlify/adapters/auth"
	"github.com/texlify/texlify/adapters/clock"
	"github.com/texlify/texlify/adapters/gemini"
	"github.com/texlify/texlify/adapters/hasher"
	"github.com/texlify/texlify/adapters/idgen"
	"github.com/texlify/texlify/adapters/memory"
	"github.com/texlify/texlify/adapters/metrics"
	"github.com/texlify/texlify/adapters/payment"
	"github.com/texlify/texlify/adapters/sqlite"
	"github.com/texlify/texlify/app"
	"github.com/texlify/texlify/config"
	"github.com/texlify/texlify/ports"
	"github.com/texlify/texlify/web"
)

// App is the assembled application.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Holder
	HTTPServer *http.Server
	Metrics    *metrics.Collector

	Admission *app.AdmissionController
	Engine    *app.RateLimiterEngine
	Tiers     *app.TierResolver

	db          *sqlite.DB
	converter   ports.Converter
	maintenance *app.MaintenanceService
}

type closer interface{ Close() error }

// New loads configuration and assembles the application.
func New(configPath string) (*App, error) {
	boot, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := setupLogger(boot.Logging)

	holder, err := config.NewHolder(configPath, logger)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg := holder.Get()
	a := &App{
		Logger: logger,
		Config: holder,
	}

	logger.Info().Msg("initializing texlify")

	registry := prometheus.NewRegistry()
	a.Metrics = metrics.NewWithRegistry(registry)

	stores, err := a.initStores(cfg)
	if err != nil {
		return nil, err
	}

	realClock := clock.Real{}
	a.Engine = app.NewRateLimiterEngine(stores.rateLimits, cfg.LimiterConfigs(app.DefaultLimiters()))
	a.Tiers = app.NewTierResolver(stores.subscriptions, realClock, cfg.TierLimits(), logger)
	a.Admission = app.NewAdmissionController(a.Engine, a.Tiers, stores.usage, realClock, a.Metrics, logger)

	converter, err := a.initConverter(cfg)
	if err != nil {
		return nil, err
	}
	a.converter = converter

	idGen := idgen.UUID{}
	conversions := app.NewConversionService(a.Admission, converter, stores.conversions, realClock, idGen, a.Metrics, logger)
	history := app.NewHistoryService(a.Admission, stores.conversions, realClock, idGen, logger)
	billing := app.NewBillingService(a.initPaymentParser(cfg), stores.users, realClock, logger)

	a.maintenance = app.NewMaintenanceService(a.Engine, stores.usage, stores.conversions, realClock, app.MaintenanceConfig{
		LimiterIdle:         cfg.Maintenance.LimiterIdle,
		UsageRetention:      cfg.Maintenance.UsageRetention,
		ConversionRetention: cfg.Maintenance.ConversionRetention,
	}, logger)

	identityProvider := auth.NewJWTProvider(cfg.Auth.JWTSecret, cfg.Auth.TokenLifetime)

	bcrypt := hasher.NewBcrypt(0)
	var adminHash []byte
	if cfg.Auth.AdminToken != "" {
		adminHash, err = bcrypt.Hash(cfg.Auth.AdminToken)
		if err != nil {
			return nil, fmt.Errorf("hash admin token: %w", err)
		}
	}

	handler := web.NewHandler(web.Deps{
		Conversions:    conversions,
		History:        history,
		Admission:      a.Admission,
		Billing:        billing,
		Identity:       identityProvider,
		Metrics:        a.Metrics,
		Logger:         logger,
		AdminTokenHash: adminHash,
		Hasher:         bcrypt,
		Registry:       registry,
	})

	a.HTTPServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	a.wireReload()

	return a, nil
}

// stores groups the storage adapters behind their ports.
type stores struct {
	rateLimits    ports.RateLimitStore
	usage         ports.UsageStore
	conversions   ports.ConversionStore
	users         ports.UserStore
	subscriptions ports.SubscriptionProvider
}

func (a *App) initStores(cfg *config.Config) (stores, error) {
	switch cfg.Database.Driver {
	case "memory":
		users := memory.NewUserStore()
		a.Logger.Info().Msg("using in-memory storage")
		return stores{
			rateLimits:    memory.NewRateLimitStore(8),
			usage:         memory.NewUsageStore(),
			conversions:   memory.NewConversionStore(),
			users:         users,
			subscriptions: users,
		}, nil
	default:
		db, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			return stores{}, fmt.Errorf("open database: %w", err)
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return stores{}, fmt.Errorf("migrate: %w", err)
		}
		a.db = db
		a.Logger.Info().Str("path", cfg.Database.Path).Msg("database initialized")
		users := sqlite.NewUserStore(db)
		return stores{
			rateLimits:    sqlite.NewRateLimitStore(db),
			usage:         sqlite.NewUsageStore(db),
			conversions:   sqlite.NewConversionStore(db),
			users:         users,
			subscriptions: users,
		}, nil
	}
}

func (a *App) initConverter(cfg *config.Config) (ports.Converter, error) {
	conv, err := gemini.New(context.Background(), gemini.Config{
		APIKey:      cfg.Gemini.APIKey,
		Model:       cfg.Gemini.Model,
		MaxTokens:   cfg.Gemini.MaxTokens,
		Temperature: cfg.Gemini.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("init converter: %w", err)
	}
	a.Logger.Info().Str("model", cfg.Gemini.Model).Msg("converter initialized")
	return conv, nil
}

func (a *App) initPaymentParser(cfg *config.Config) ports.PaymentWebhookParser {
	switch cfg.Billing.Mode {
	case "stripe":
		a.Logger.Info().Msg("stripe billing enabled")
		return payment.NewStripeParser(payment.StripeConfig{
			SecretKey:     cfg.Billing.StripeKey,
			WebhookSecret: cfg.Billing.StripeWebhookSecret,
		})
	case "dummy":
		a.Logger.Warn().Msg("dummy billing enabled, webhook signatures are not verified")
		return payment.NewDummyParser()
	default:
		return payment.NewNoopParser()
	}
}

// wireReload pushes config changes into the running engine. Only the
// limiter registry, tier limits and log level apply live; everything
// else needs a restart.
func (a *App) wireReload() {
	a.Config.OnChange(func(cfg *config.Config) {
		a.Engine.UpdateConfigs(cfg.LimiterConfigs(app.DefaultLimiters()))
		a.Tiers.UpdateLimits(cfg.TierLimits())
		if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
			a.Logger = a.Logger.Level(level)
		}
		a.Metrics.ConfigReloads.Inc()
		a.Metrics.ConfigLastReload.SetToCurrentTime()
		a.Logger.Info().Msg("configuration reloaded")
	})
}

// Run starts the server and blocks until a signal or a server error.
func (a *App) Run() error {
	if err := a.maintenance.Start(); err != nil {
		return fmt.Errorf("start maintenance: %w", err)
	}

	if err := a.Config.WatchFile(); err != nil {
		a.Logger.Warn().Err(err).Msg("config file watch unavailable")
	}
	a.Config.WatchSignals()

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", a.HTTPServer.Addr).Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown stops the application gracefully.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	if a.maintenance != nil {
		a.maintenance.Stop()
	}

	a.Config.Stop()

	if c, ok := a.converter.(closer); ok {
		if err := c.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("converter close error")
		}
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}
