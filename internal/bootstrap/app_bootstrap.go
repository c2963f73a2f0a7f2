package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/steveiliop56/tinyprovider/internal/config"
	"github.com/steveiliop56/tinyprovider/internal/metrics"
	"github.com/steveiliop56/tinyprovider/internal/model"
	"github.com/steveiliop56/tinyprovider/internal/utils/tlog"

	"github.com/gin-gonic/gin"
)

type BootstrapApp struct {
	config   config.Config
	database *sql.DB
	metrics  *metrics.Metrics
	provider *model.Provider
	services Services
}

func NewBootstrapApp(config config.Config) *BootstrapApp {
	return &BootstrapApp{
		config: config,
	}
}

// Build prepares the database, services and routes without listening.
func (app *BootstrapApp) Build() (*gin.Engine, error) {
	appURL, err := url.Parse(app.config.AppURL)

	if err != nil || !appURL.IsAbs() {
		return nil, fmt.Errorf("app url must be an absolute url, got %q", app.config.AppURL)
	}

	tlog.App.Trace().Interface("config", app.config).Msg("Config dump")

	// Database
	db, err := app.SetupDatabase(app.config.DatabasePath)

	if err != nil {
		return nil, fmt.Errorf("failed to setup database: %w", err)
	}

	app.database = db

	// Metrics
	if app.config.Metrics.Enabled {
		m, err := metrics.New()

		if err != nil {
			return nil, fmt.Errorf("failed to setup metrics: %w", err)
		}

		app.metrics = m
	}

	// Services
	services, err := app.initServices(db)

	if err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.services = services

	err = app.metrics.RegisterAuthorizationCount(func() (int64, error) {
		return services.authorizationService.Count(context.Background())
	})

	if err != nil {
		return nil, fmt.Errorf("failed to register authorization gauge: %w", err)
	}

	// Provider
	provider, err := services.providerService.Instance(context.Background())

	if err != nil {
		return nil, fmt.Errorf("failed to load provider: %w", err)
	}

	app.provider = provider

	tlog.App.Debug().Str("name", provider.Name).Bool("enforceSsl", provider.EnforceSSL).Msg("Provider loaded")

	// Router
	engine, err := app.setupRouter()

	if err != nil {
		return nil, fmt.Errorf("failed to setup routes: %w", err)
	}

	return engine, nil
}

func (app *BootstrapApp) Setup() error {
	engine, err := app.Build()

	if err != nil {
		return err
	}

	// Start db cleanup routine
	tlog.App.Debug().Msg("Starting expired authorization cleanup routine")
	go app.dbCleanup()

	// If we have an socket path, bind to it
	if app.config.Server.SocketPath != "" {
		if _, err := os.Stat(app.config.Server.SocketPath); err == nil {
			tlog.App.Info().Msgf("Removing existing socket file %s", app.config.Server.SocketPath)
			err := os.Remove(app.config.Server.SocketPath)
			if err != nil {
				return fmt.Errorf("failed to remove existing socket file: %w", err)
			}
		}

		tlog.App.Info().Msgf("Starting server on unix socket %s", app.config.Server.SocketPath)
		if err := engine.RunUnix(app.config.Server.SocketPath); err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}

		return nil
	}

	address := fmt.Sprintf("%s:%d", app.config.Server.Address, app.config.Server.Port)
	tlog.App.Info().Msgf("Starting server on %s", address)
	if err := engine.Run(address); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

func (app *BootstrapApp) dbCleanup() {
	interval := app.config.OAuth.CleanupInterval
	if interval <= 0 {
		interval = 1800
	}

	ticker := time.NewTicker(time.Duration(interval) * time.Second)
	defer ticker.Stop()

	for ; true; <-ticker.C {
		app.cleanupOnce(context.Background())
	}
}

func (app *BootstrapApp) cleanupOnce(ctx context.Context) {
	tlog.App.Debug().Msg("Cleaning up expired authorizations")

	count, err := app.services.authorizationService.CleanupExpired(ctx)

	if err != nil {
		tlog.App.Error().Err(err).Msg("Failed to clean up expired authorizations")
		return
	}

	app.metrics.ExpiredDeleted(count)

	if count > 0 {
		tlog.App.Info().Int64("count", count).Msg("Removed expired authorizations")
	}
}
