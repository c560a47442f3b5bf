// Package app initializes and holds long-lived application services,
// acting as a dependency injection container.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/devcellar/concepts/internal/config"
	"github.com/devcellar/concepts/internal/logging"
	"github.com/devcellar/concepts/internal/metrics"
	"github.com/devcellar/concepts/internal/notify"
	"github.com/devcellar/concepts/internal/storage"
)

// App holds the shared services built from configuration: the logger,
// the optional artifact mirror, and the optional run notifier. It is
// initialized once at startup and handed to the commands that need it.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	mirror   storage.Provider
	notifier notify.Provider
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared zap logger instance.
func (a *App) Logger() *zap.Logger { return a.logger }

// Mirror exposes the configured artifact mirror.
func (a *App) Mirror() storage.Provider { return a.mirror }

// Notifier returns the run-completion publisher.
func (a *App) Notifier() notify.Provider { return a.notifier }

// New loads configuration and initializes the providers it selects.
// It fails fast when any configured service cannot be reached.
func New(ctx context.Context, cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	metrics.Init()

	var mirror storage.Provider
	switch cfg.Mirror.Provider {
	case "gcs":
		logger.Info("using GCS artifact mirror", zap.String("bucket", cfg.Mirror.Bucket))
		mirror, err = storage.NewGCSProvider(ctx, cfg.Mirror.Bucket, cfg.Mirror.Prefix, logger)
		if err != nil {
			return nil, fmt.Errorf("initialize mirror: %w", err)
		}
	case "local":
		logger.Info("using local artifact mirror", zap.String("dir", cfg.Mirror.Bucket))
		mirror, err = storage.NewLocalProvider(cfg.Mirror.Bucket)
		if err != nil {
			return nil, fmt.Errorf("initialize mirror: %w", err)
		}
	case "noop", "":
		mirror = storage.NoOpProvider{}
	default:
		return nil, fmt.Errorf("unknown mirror provider: %s", cfg.Mirror.Provider)
	}

	var notifier notify.Provider
	switch cfg.Notify.Provider {
	case "pubsub":
		logger.Info("using Pub/Sub notifications", zap.String("topic", cfg.Notify.Topic))
		notifier, err = notify.NewPubSub(ctx, cfg.Notify.ProjectID, cfg.Notify.Topic)
		if err != nil {
			return nil, fmt.Errorf("initialize notifier: %w", err)
		}
	case "noop", "":
		notifier = notify.NoOpProvider{}
	default:
		return nil, fmt.Errorf("unknown notify provider: %s", cfg.Notify.Provider)
	}

	return &App{
		cfg:      cfg,
		logger:   logger,
		mirror:   mirror,
		notifier: notifier,
	}, nil
}

// Close gracefully shuts down the app's services.
func (a *App) Close() {
	if err := a.mirror.Close(); err != nil {
		a.logger.Warn("close mirror", zap.Error(err))
	}
	if err := a.notifier.Close(); err != nil {
		a.logger.Warn("close notifier", zap.Error(err))
	}
	// Best effort: stderr sync fails on some platforms.
	_ = a.logger.Sync()
}
