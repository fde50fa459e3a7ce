package observability

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/whitecard/whitecard-backend/internal/config"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	otlploggrpc "go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/trace"
)

const redactedValue = "[REDACTED]"

// secretKeys are attribute keys whose values never reach a log sink.
var secretKeys = map[string]struct{}{
	"pin":          {},
	"new_pin":      {},
	"code":         {},
	"otp":          {},
	"reset_token":  {},
	"access_token": {},
	"token":        {},
	"phone":        {},
	"phone_number": {},
}

// fanoutHandler writes every record to stdout and, when enabled, the OTel bridge.
type fanoutHandler []slog.Handler

func (h fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, next := range h {
		if next.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, next := range h {
		if !next.Enabled(ctx, r.Level) {
			continue
		}
		if err := next.Handle(ctx, r.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (h fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanoutHandler, len(h))
	for i, next := range h {
		out[i] = next.WithAttrs(attrs)
	}
	return out
}

func (h fanoutHandler) WithGroup(name string) slog.Handler {
	out := make(fanoutHandler, len(h))
	for i, next := range h {
		out[i] = next.WithGroup(name)
	}
	return out
}

// cardLogHandler masks secret attributes and stamps trace correlation ids.
type cardLogHandler struct {
	next slog.Handler
}

func (h *cardLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *cardLogHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(redactAttr(a))
		return true
	})
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		out.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.next.Handle(ctx, out)
}

func (h *cardLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = redactAttr(a)
	}
	return &cardLogHandler{next: h.next.WithAttrs(masked)}
}

func (h *cardLogHandler) WithGroup(name string) slog.Handler {
	return &cardLogHandler{next: h.next.WithGroup(name)}
}

func redactAttr(a slog.Attr) slog.Attr {
	if _, secret := secretKeys[strings.ToLower(a.Key)]; secret {
		return slog.String(a.Key, redactedValue)
	}
	if a.Value.Kind() != slog.KindGroup {
		return a
	}
	group := a.Value.Group()
	masked := make([]any, len(group))
	for i, g := range group {
		masked[i] = redactAttr(g)
	}
	return slog.Group(a.Key, masked...)
}

var (
	loggerMu     sync.RWMutex
	globalLogger *slog.Logger
)

// NewLogger returns the process logger, or slog.Default before InitLogger ran.
func NewLogger() *slog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	if globalLogger != nil {
		return globalLogger
	}
	return slog.Default()
}

// NewBootstrapLogger is used by tools and during provider startup.
func NewBootstrapLogger(cfg *config.Config) *slog.Logger {
	return slog.New(&cardLogHandler{next: stdoutHandler(cfg)})
}

func InitLogger(cfg *config.Config, lp *sdklog.LoggerProvider) *slog.Logger {
	var sink slog.Handler = stdoutHandler(cfg)
	if cfg.OTELLogsEnabled && lp != nil {
		sink = fanoutHandler{sink, otelslog.NewHandler(cfg.OTELServiceName, otelslog.WithLoggerProvider(lp))}
	}
	l := slog.New(&cardLogHandler{next: sink})

	loggerMu.Lock()
	globalLogger = l
	loggerMu.Unlock()
	slog.SetDefault(l)
	return l
}

func InitLogs(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdklog.LoggerProvider, error) {
	if !cfg.OTELLogsEnabled {
		logger.Info("otel logs disabled")
		return nil, nil
	}

	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	exporter, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp log exporter: %w", err)
	}
	res, err := serviceResource(ctx, cfg, "logs")
	if err != nil {
		return nil, err
	}

	lp := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)
	logger.Info("otel logs initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return lp, nil
}

func stdoutHandler(cfg *config.Config) slog.Handler {
	return slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.OTELLogLevel)})
}

func parseLogLevel(v string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return slog.LevelInfo
	}
	return level
}
