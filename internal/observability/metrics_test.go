package observability

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/whitecard/whitecard-backend/internal/config"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func recordEveryHelper(ctx context.Context) {
	RecordCardScan(ctx, "A", "ok")
	RecordPINEvent(ctx, "verify", "mismatch")
	RecordOTPEvent(ctx, "redemption", "issue", "created")
	RecordOTPGenerationAttempts(ctx, "recovery", 2)
	RecordCardAdminMutation(ctx, "activate", "success")
	RecordCardRequestDuration(ctx, "scan", "success", 10*time.Millisecond)
	RecordAppTokenValidation(ctx, "ok", "header")
	RecordQRStorageEvent(ctx, "upload", "success")
	RecordRateLimitDecision(ctx, "card", "allow", "distributed", "ip")
	RecordRateLimitRetryAfter(ctx, "card", "window", time.Second)
	RecordMiddlewareValidationEvent(ctx, "admin_guard", "pass")
	RecordAdminListRequestDuration(ctx, "qr_codes", "success", 20*time.Millisecond)
	RecordAdminListPageSize(ctx, "qr_codes", 25)
	RecordAdminListCacheEvent(ctx, "qr_codes", "hit")
	RecordIdempotencyEvent(ctx, "admin.create_card", "replayed")
	RecordHealthCheckResult(ctx, "db", "ready")
	RecordHealthCheckDuration(ctx, "db", 5*time.Millisecond)
	RecordDatabaseStartupEvent(ctx, "connect", "success")
	RecordDatabaseStartupDuration(ctx, "migrate", 15*time.Millisecond)
	RecordRepositoryOperation(ctx, "card", "find_by_id", "success")
	RecordToolCommandRun(ctx, "cardctl", "issue", "success")
	RecordToolCommandDuration(ctx, "migrate", "up", "success", 30*time.Millisecond)
}

func TestRecordMetricHelpersNoPanicWhenUninitialized(t *testing.T) {
	metricsMu.Lock()
	appMetrics = nil
	metricsMu.Unlock()

	recordEveryHelper(context.Background())
}

func TestRecordMetricHelpersEmitExpectedLabelCardinality(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(ctx) }()

	m, err := newAppMetrics(provider.Meter("observability-test"))
	if err != nil {
		t.Fatalf("newAppMetrics: %v", err)
	}
	metricsMu.Lock()
	appMetrics = m
	metricsMu.Unlock()
	defer func() {
		metricsMu.Lock()
		appMetrics = nil
		metricsMu.Unlock()
	}()

	recordEveryHelper(ctx)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect metrics: %v", err)
	}

	expected := map[string]int{
		"card.scan.events":                  2,
		"card.pin.events":                   2,
		"otp.events":                        3,
		"otp.generation.attempts":           1,
		"admin.card.mutations":              2,
		"card.request.duration":             2,
		"card.app_token.validation.events":  2,
		"qr.storage.events":                 2,
		"http.rate_limit.decisions":         4,
		"http.rate_limit.retry_after":       2,
		"http.middleware.validation.events": 2,
		"admin.list.request.duration":       2,
		"admin.list.page_size":              1,
		"admin.list.cache.events":           2,
		"http.idempotency.events":           2,
		"health.check.results":              2,
		"health.check.duration":             1,
		"database.startup.events":           2,
		"database.startup.duration":         1,
		"repository.operations":             3,
		"tool.command.runs":                 3,
		"tool.command.duration":             3,
	}

	observed := collectLabelCardinality(t, rm)
	for metricName, want := range expected {
		got, ok := observed[metricName]
		if !ok {
			t.Fatalf("missing metric datapoint for %s", metricName)
		}
		if got != want {
			t.Fatalf("metric %s label cardinality mismatch: got=%d want=%d", metricName, got, want)
		}
	}
}

func TestInitMetricsDisabledReturnsProvider(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{OTELMetricsEnabled: false}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	mp, err := InitMetrics(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("init metrics disabled: %v", err)
	}
	if mp == nil {
		t.Fatal("expected non-nil meter provider")
	}
	_ = mp.Shutdown(ctx)
}

func collectLabelCardinality(t *testing.T, rm metricdata.ResourceMetrics) map[string]int {
	t.Helper()
	out := map[string]int{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				if len(data.DataPoints) > 0 {
					out[m.Name] = data.DataPoints[0].Attributes.Len()
				}
			case metricdata.Histogram[float64]:
				if len(data.DataPoints) > 0 {
					out[m.Name] = data.DataPoints[0].Attributes.Len()
				}
			}
		}
	}
	return out
}
