package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	return out
}

func TestCardLogHandlerRedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(&cardLogHandler{next: slog.NewJSONHandler(&buf, nil)})

	l.With("phone", "+4915112345678").Info("otp issued",
		"card_id", "card-1",
		"code", "123456",
		slog.Group("request", "PIN", "1234", "path", "/v1/cards/verify-pin"),
	)

	line := decodeLine(t, &buf)
	if line["card_id"] != "card-1" {
		t.Fatalf("expected card_id to pass through, got %v", line["card_id"])
	}
	for _, key := range []string{"phone", "code"} {
		if line[key] != redactedValue {
			t.Fatalf("expected %s to be redacted, got %v", key, line[key])
		}
	}
	req, ok := line["request"].(map[string]any)
	if !ok {
		t.Fatalf("expected request group, got %T", line["request"])
	}
	if req["PIN"] != redactedValue || req["path"] != "/v1/cards/verify-pin" {
		t.Fatalf("unexpected group redaction: %v", req)
	}
	if _, ok := line["trace_id"]; ok {
		t.Fatal("trace_id must be omitted without a span")
	}
}

func TestCardLogHandlerAddsTraceIDs(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	ctx, span := tp.Tracer("test").Start(context.Background(), "scan")
	defer span.End()

	var buf bytes.Buffer
	slog.New(&cardLogHandler{next: slog.NewJSONHandler(&buf, nil)}).InfoContext(ctx, "card scanned")

	line := decodeLine(t, &buf)
	if line["trace_id"] != span.SpanContext().TraceID().String() {
		t.Fatalf("trace_id mismatch: %v", line["trace_id"])
	}
	if line["span_id"] != span.SpanContext().SpanID().String() {
		t.Fatalf("span_id mismatch: %v", line["span_id"])
	}
}

func TestFanoutHandlerWritesEverySink(t *testing.T) {
	var a, b bytes.Buffer
	h := fanoutHandler{
		slog.NewJSONHandler(&a, nil),
		slog.NewJSONHandler(&b, &slog.HandlerOptions{Level: slog.LevelError}),
	}
	l := slog.New(h)
	l.Info("info only")
	if a.Len() == 0 || b.Len() != 0 {
		t.Fatalf("expected only first sink for info, got a=%q b=%q", a.String(), b.String())
	}
	l.Error("both")
	if b.Len() == 0 {
		t.Fatal("expected error to reach second sink")
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"info":  slog.LevelInfo,
		"bogus": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLogLevel(in); got != want {
			t.Fatalf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
