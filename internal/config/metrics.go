package config

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	loadMetricsOnce sync.Once
	loadCounter     metric.Int64Counter
)

// recordConfigValidationEvent counts one Load outcome. Before the meter
// provider is installed the global no-op meter swallows it.
func recordConfigValidationEvent(ctx context.Context, profile, outcome, errorClass string) {
	loadMetricsOnce.Do(func() {
		counter, err := otel.Meter("datetally/config").Int64Counter("config.validation.events")
		if err == nil {
			loadCounter = counter
		}
	})
	if loadCounter == nil {
		return
	}
	loadCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("profile", profileLabel(profile)),
		attribute.String("outcome", outcome),
		attribute.String("error_class", errorClass),
	))
}

func profileLabel(profile string) string {
	if v := strings.ToLower(strings.TrimSpace(profile)); v != "" {
		return v
	}
	return "unknown"
}

func configErrorClass(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrInvalidConfig):
		return "validation"
	case errors.Is(err, ErrConfigFile):
		return "parse"
	default:
		return "load"
	}
}
