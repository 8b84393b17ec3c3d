//go:build wireinject
// +build wireinject

package app

import (
	"context"

	"github.com/google/wire"

	"github.com/sandeepkv93/datetally/internal/config"
)

func initializeApp(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	wire.Build(
		provideLogging,
		provideLogger,
		provideRuntime,
		provideSealer,
		provideValidator,
		provideMarkerStore,
		provideClock,
		provideSessionStore,
		provideCookieJar,
		provideTransport,
		provideAuthClient,
		provideGate,
		provideDatesClient,
		provideEntryCache,
		provideReportSink,
		provideSessionEnder,
		provideAuthService,
		provideDateService,
		New,
	)
	return nil, nil, nil
}
