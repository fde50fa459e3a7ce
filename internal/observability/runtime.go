package observability

import (
	"context"
	"errors"
	"log/slog"

	"github.com/whitecard/whitecard-backend/internal/config"

	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Runtime owns the three OTel providers of the API process.
type Runtime struct {
	LoggerProvider *sdklog.LoggerProvider
	MeterProvider  *sdkmetric.MeterProvider
	TracerProvider *sdktrace.TracerProvider
}

type shutdowner interface {
	Shutdown(context.Context) error
}

func InitRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	rt := &Runtime{}
	var err error
	if rt.LoggerProvider, err = InitLogs(ctx, cfg, logger); err != nil {
		return nil, err
	}
	if rt.MeterProvider, err = InitMetrics(ctx, cfg, logger); err != nil {
		_ = rt.Shutdown(ctx)
		return nil, err
	}
	if rt.TracerProvider, err = InitTracing(ctx, cfg, logger); err != nil {
		_ = rt.Shutdown(ctx)
		return nil, err
	}
	return rt, nil
}

// Shutdown flushes traces first and logs last, so spans ended during shutdown
// can still be logged.
func (r *Runtime) Shutdown(ctx context.Context) error {
	if r == nil {
		return nil
	}
	var providers []shutdowner
	if r.TracerProvider != nil {
		providers = append(providers, r.TracerProvider)
	}
	if r.MeterProvider != nil {
		providers = append(providers, r.MeterProvider)
	}
	if r.LoggerProvider != nil {
		providers = append(providers, r.LoggerProvider)
	}
	var errs []error
	for _, p := range providers {
		if err := p.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
