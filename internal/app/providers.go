package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/sandeepkv93/datetally/internal/api"
	"github.com/sandeepkv93/datetally/internal/clock"
	"github.com/sandeepkv93/datetally/internal/config"
	"github.com/sandeepkv93/datetally/internal/entrycache"
	"github.com/sandeepkv93/datetally/internal/gate"
	"github.com/sandeepkv93/datetally/internal/observability"
	"github.com/sandeepkv93/datetally/internal/report"
	"github.com/sandeepkv93/datetally/internal/security"
	"github.com/sandeepkv93/datetally/internal/service"
	"github.com/sandeepkv93/datetally/internal/session"
	"github.com/sandeepkv93/datetally/internal/validation"
)

func provideLogging(ctx context.Context, cfg *config.Config) (*observability.Logging, error) {
	return observability.NewLogging(ctx, cfg, os.Stderr)
}

func provideLogger(logging *observability.Logging) *slog.Logger {
	slog.SetDefault(logging.Logger)
	return logging.Logger
}

func provideRuntime(ctx context.Context, cfg *config.Config, logging *observability.Logging) (*observability.Runtime, func(), error) {
	runtime, err := observability.InitRuntime(ctx, cfg, logging)
	if err != nil {
		return nil, nil, err
	}
	return runtime, func() { shutdownRuntime(runtime, logging.Logger) }, nil
}

func provideSealer(cfg *config.Config) *security.Sealer {
	return security.NewSealer(cfg.StateKey)
}

func provideValidator() *validation.Validator {
	return validation.New()
}

func provideMarkerStore(cfg *config.Config) (clock.MarkerStore, func(), error) {
	switch cfg.MarkerStore {
	case "memory":
		return clock.NewInMemoryMarkerStore(), func() {}, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return clock.NewRedisMarkerStore(client, cfg.RedisPrefix), func() { _ = client.Close() }, nil
	case "file", "":
		return clock.NewFileMarkerStore(cfg.StateDir), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown marker store %q", cfg.MarkerStore)
	}
}

func provideClock(cfg *config.Config, store clock.MarkerStore, logger *slog.Logger) *clock.Clock {
	return clock.New(store, cfg.AccessTTL, clock.WithLogger(logger))
}

func provideSessionStore(cfg *config.Config, sealer *security.Sealer, logger *slog.Logger) *session.Store {
	return session.NewStore(session.NewFilePersister(cfg.StateDir, sealer), logger)
}

func provideCookieJar(cfg *config.Config, sealer *security.Sealer, logger *slog.Logger) (*api.PersistentJar, error) {
	return api.NewPersistentJar(cfg.StateDir, cfg.APIBaseURL, sealer, logger)
}

func provideTransport() http.RoundTripper {
	return api.NewTransport(nil)
}

func apiOptions(cfg *config.Config, jar *api.PersistentJar, transport http.RoundTripper, logger *slog.Logger) api.Options {
	return api.Options{
		BaseURL:   cfg.APIBaseURL,
		Timeout:   cfg.RequestTimeout,
		Jar:       jar,
		Transport: transport,
		Logger:    logger,
	}
}

func provideAuthClient(cfg *config.Config, jar *api.PersistentJar, transport http.RoundTripper, logger *slog.Logger, v *validation.Validator) (*api.AuthClient, error) {
	return api.NewAuthClient(apiOptions(cfg, jar, transport, logger), v)
}

func provideGate(cfg *config.Config, sessions *session.Store, clk *clock.Clock, authClient *api.AuthClient, transport http.RoundTripper, logger *slog.Logger) *gate.Gate {
	return gate.New(sessions, clk, authClient,
		gate.WithBase(transport),
		gate.WithLogger(logger),
		gate.WithSingleFlight(cfg.RefreshSingleFlight),
	)
}

func provideDatesClient(cfg *config.Config, jar *api.PersistentJar, g *gate.Gate, logger *slog.Logger, v *validation.Validator) (*api.DatesClient, error) {
	return api.NewDatesClient(apiOptions(cfg, jar, g, logger), v)
}

func provideEntryCache(cfg *config.Config, logger *slog.Logger) (entrycache.Cache, func(), error) {
	if cfg.CacheDSN == "" {
		return entrycache.Nop{}, func() {}, nil
	}
	cache, err := entrycache.Open(cfg.CacheDSN)
	if err != nil {
		return nil, nil, err
	}
	return cache, func() {
		if err := cache.Close(); err != nil {
			logger.Warn("close entry cache", "err", err)
		}
	}, nil
}

func provideReportSink(ctx context.Context, cfg *config.Config) (report.Sink, error) {
	if cfg.ReportSink == "minio" {
		return report.NewMinIOSink(ctx, report.MinIOConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
		})
	}
	return report.NewFileSink(cfg.ReportDir), nil
}

// sessionEnder logs out through the gate and then drops the local refresh
// cookie, whether or not the backend acknowledged the logout.
type sessionEnder struct {
	gate   *gate.Gate
	jar    *api.PersistentJar
	logger *slog.Logger
}

func provideSessionEnder(g *gate.Gate, jar *api.PersistentJar, logger *slog.Logger) service.SessionEnder {
	return &sessionEnder{gate: g, jar: jar, logger: logger}
}

func (e *sessionEnder) Logout(ctx context.Context) {
	e.gate.Logout(ctx)
	if err := e.jar.Clear(); err != nil {
		e.logger.WarnContext(ctx, "could not clear saved cookies", "err", err)
	}
}

func provideAuthService(authClient *api.AuthClient, sessions *session.Store, clk *clock.Clock, ender service.SessionEnder, cache entrycache.Cache, logger *slog.Logger) *service.AuthService {
	return service.NewAuthService(authClient, sessions, clk, ender, cache, logger)
}

func provideDateService(datesClient *api.DatesClient, sessions *session.Store, cache entrycache.Cache, sink report.Sink, logger *slog.Logger) *service.DateService {
	return service.NewDateService(datesClient, sessions, cache, sink, logger)
}
