package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sandeepkv93/datetally/internal/config"
	"github.com/sandeepkv93/datetally/internal/observability"
	"github.com/sandeepkv93/datetally/internal/service"
	"github.com/sandeepkv93/datetally/internal/session"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Observability *observability.Runtime
	Sessions      *session.Store
	Auth          *service.AuthService
	Dates         *service.DateService

	cleanup func()
}

func New(cfg *config.Config, logger *slog.Logger, runtime *observability.Runtime, sessions *session.Store, auth *service.AuthService, dates *service.DateService) *App {
	return &App{
		Config:        cfg,
		Logger:        logger,
		Observability: runtime,
		Sessions:      sessions,
		Auth:          auth,
		Dates:         dates,
	}
}

// Build assembles the application from cfg and restores the persisted
// session. Close must be called when done.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	a, cleanup, err := initializeApp(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.cleanup = cleanup
	if err := a.Sessions.Rehydrate(ctx); err != nil {
		a.Logger.WarnContext(ctx, "could not restore saved session, starting signed out", "err", err)
	}
	return a, nil
}

// Close releases stores and flushes telemetry.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	if a.cleanup != nil {
		a.cleanup()
		a.cleanup = nil
	}
	return nil
}

func shutdownRuntime(runtime *observability.Runtime, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := runtime.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("telemetry shutdown failed", "err", err)
	}
}
