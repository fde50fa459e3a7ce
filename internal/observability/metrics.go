package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/whitecard/whitecard-backend/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/exemplar"
)

const meterName = "whitecard-backend"

type AppMetrics struct {
	cardScanCounter             metric.Int64Counter
	pinEventCounter             metric.Int64Counter
	otpEventCounter             metric.Int64Counter
	otpGenerationAttempts       metric.Float64Histogram
	cardAdminCounter            metric.Int64Counter
	cardReqDuration             metric.Float64Histogram
	appTokenValidationCounter   metric.Int64Counter
	qrStorageCounter            metric.Int64Counter
	rateLimitDecisionCounter    metric.Int64Counter
	rateLimitRetryAfter         metric.Float64Histogram
	middlewareValidationCounter metric.Int64Counter
	adminListReqDuration        metric.Float64Histogram
	adminListPageSize           metric.Float64Histogram
	adminListCacheCounter       metric.Int64Counter
	idempotencyCounter          metric.Int64Counter
	healthCheckResultCounter    metric.Int64Counter
	healthCheckDuration         metric.Float64Histogram
	databaseStartupCounter      metric.Int64Counter
	databaseStartupDuration     metric.Float64Histogram
	repositoryOpsCounter        metric.Int64Counter
	toolCommandRuns             metric.Int64Counter
	toolCommandDuration         metric.Float64Histogram
}

var (
	metricsMu  sync.RWMutex
	appMetrics *AppMetrics
)

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELMetricsEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		logger.Info("otel metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := serviceResource(ctx, cfg, "metric")
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
		sdkmetric.WithExemplarFilter(exemplar.TraceBasedFilter),
		sdkmetric.WithView(sdkmetric.NewView(
			sdkmetric.Instrument{Name: "card.request.duration"},
			sdkmetric.Stream{
				Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
					Boundaries: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
				},
			},
		)),
	)
	otel.SetMeterProvider(mp)

	m, err := newAppMetrics(mp.Meter(meterName))
	if err != nil {
		return nil, err
	}
	metricsMu.Lock()
	appMetrics = m
	metricsMu.Unlock()

	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

func newAppMetrics(meter metric.Meter) (*AppMetrics, error) {
	var errs []error
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		errs = append(errs, err)
		return c
	}
	seconds := func(name, desc string) metric.Float64Histogram {
		h, err := meter.Float64Histogram(name, metric.WithUnit("s"), metric.WithDescription(desc))
		errs = append(errs, err)
		return h
	}
	hist := func(name, desc string) metric.Float64Histogram {
		h, err := meter.Float64Histogram(name, metric.WithDescription(desc))
		errs = append(errs, err)
		return h
	}

	m := &AppMetrics{
		cardScanCounter:             counter("card.scan.events", "Card scan outcomes by category"),
		pinEventCounter:             counter("card.pin.events", "First login, PIN verify and PIN reset outcomes"),
		otpEventCounter:             counter("otp.events", "Recovery and redemption OTP lifecycle events"),
		otpGenerationAttempts:       hist("otp.generation.attempts", "Attempts needed to find a free OTP code"),
		cardAdminCounter:            counter("admin.card.mutations", "Admin card create/activate/deactivate/remove outcomes"),
		cardReqDuration:             seconds("card.request.duration", "Duration of card endpoint requests in seconds"),
		appTokenValidationCounter:   counter("card.app_token.validation.events", "App token validation outcomes"),
		qrStorageCounter:            counter("qr.storage.events", "QR image object storage outcomes"),
		rateLimitDecisionCounter:    counter("http.rate_limit.decisions", "Rate limiter decisions"),
		rateLimitRetryAfter:         seconds("http.rate_limit.retry_after", "Retry-after duration in seconds for throttled requests"),
		middlewareValidationCounter: counter("http.middleware.validation.events", "Middleware validation outcomes"),
		adminListReqDuration:        seconds("admin.list.request.duration", "Duration of admin list endpoint requests in seconds"),
		adminListPageSize:           hist("admin.list.page_size", "Requested page size for admin list endpoints"),
		adminListCacheCounter:       counter("admin.list.cache.events", "Admin list cache hits, misses and invalidations"),
		idempotencyCounter:          counter("http.idempotency.events", "Idempotency key outcomes for admin mutations"),
		healthCheckResultCounter:    counter("health.check.results", "Health dependency check outcomes"),
		healthCheckDuration:         seconds("health.check.duration", "Duration of health dependency checks in seconds"),
		databaseStartupCounter:      counter("database.startup.events", "Database connect and migrate outcomes"),
		databaseStartupDuration:     seconds("database.startup.duration", "Database startup step duration in seconds"),
		repositoryOpsCounter:        counter("repository.operations", "Repository operations by entity and outcome"),
		toolCommandRuns:             counter("tool.command.runs", "CLI tool command runs"),
		toolCommandDuration:         seconds("tool.command.duration", "CLI tool command duration in seconds"),
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("create instruments: %w", err)
	}
	return m, nil
}

func current() *AppMetrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return appMetrics
}

// RecordCardScan counts scan outcomes: ok, not_found, invalid, bad_identity.
func RecordCardScan(ctx context.Context, category, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.cardScanCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("category", category),
		attribute.String("outcome", outcome),
	))
}

func RecordPINEvent(ctx context.Context, operation, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.pinEventCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}

func RecordOTPEvent(ctx context.Context, kind, action, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.otpEventCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("action", action),
		attribute.String("outcome", outcome),
	))
}

func RecordOTPGenerationAttempts(ctx context.Context, kind string, attempts int) {
	m := current()
	if m == nil {
		return
	}
	m.otpGenerationAttempts.Record(ctx, float64(attempts), metric.WithAttributes(
		attribute.String("kind", kind),
	))
}

func RecordCardAdminMutation(ctx context.Context, action, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.cardAdminCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("outcome", outcome),
	))
}

func RecordCardRequestDuration(ctx context.Context, endpoint, status string, duration time.Duration) {
	m := current()
	if m == nil {
		return
	}
	m.cardReqDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("status", status),
	))
}

func RecordAppTokenValidation(ctx context.Context, outcome, source string) {
	m := current()
	if m == nil {
		return
	}
	m.appTokenValidationCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("source", source),
	))
}

func RecordQRStorageEvent(ctx context.Context, action, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.qrStorageCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("outcome", outcome),
	))
}

func RecordAdminListCacheEvent(ctx context.Context, list, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.adminListCacheCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("list", list),
		attribute.String("outcome", outcome),
	))
}

func RecordIdempotencyEvent(ctx context.Context, scope, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.idempotencyCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("outcome", outcome),
	))
}

func RecordRateLimitDecision(ctx context.Context, scope, outcome, mode, keyType string) {
	m := current()
	if m == nil {
		return
	}
	m.rateLimitDecisionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("outcome", outcome),
		attribute.String("mode", mode),
		attribute.String("key_type", keyType),
	))
}

func RecordRateLimitRetryAfter(ctx context.Context, scope, reason string, retryAfter time.Duration) {
	m := current()
	if m == nil {
		return
	}
	m.rateLimitRetryAfter.Record(ctx, retryAfter.Seconds(), metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("reason", reason),
	))
}

func RecordMiddlewareValidationEvent(ctx context.Context, middleware, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.middlewareValidationCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("middleware", middleware),
		attribute.String("outcome", outcome),
	))
}

func RecordAdminListRequestDuration(ctx context.Context, endpoint, status string, duration time.Duration) {
	m := current()
	if m == nil {
		return
	}
	m.adminListReqDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("status", status),
	))
}

func RecordAdminListPageSize(ctx context.Context, endpoint string, pageSize int) {
	m := current()
	if m == nil {
		return
	}
	m.adminListPageSize.Record(ctx, float64(pageSize), metric.WithAttributes(
		attribute.String("endpoint", endpoint),
	))
}

func RecordHealthCheckResult(ctx context.Context, check, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.healthCheckResultCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("check", check),
		attribute.String("outcome", outcome),
	))
}

func RecordHealthCheckDuration(ctx context.Context, check string, duration time.Duration) {
	m := current()
	if m == nil {
		return
	}
	m.healthCheckDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("check", check),
	))
}

func RecordDatabaseStartupEvent(ctx context.Context, step, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.databaseStartupCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("step", step),
		attribute.String("outcome", outcome),
	))
}

func RecordDatabaseStartupDuration(ctx context.Context, step string, duration time.Duration) {
	m := current()
	if m == nil {
		return
	}
	m.databaseStartupDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("step", step),
	))
}

func RecordRepositoryOperation(ctx context.Context, entity, operation, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.repositoryOpsCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("entity", entity),
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}

func RecordToolCommandRun(ctx context.Context, tool, command, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.toolCommandRuns.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("command", command),
		attribute.String("outcome", outcome),
	))
}

func RecordToolCommandDuration(ctx context.Context, tool, command, outcome string, duration time.Duration) {
	m := current()
	if m == nil {
		return
	}
	m.toolCommandDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("command", command),
		attribute.String("outcome", outcome),
	))
}
