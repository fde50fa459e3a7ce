package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

type requestLogFieldsKey struct{}

// requestLogFields collects values that inner middleware learns after the
// request logger has already derived its context.
type requestLogFields struct {
	mu     sync.Mutex
	cardID string
}

func annotateCard(ctx context.Context, cardID string) {
	if f, ok := ctx.Value(requestLogFieldsKey{}).(*requestLogFields); ok {
		f.mu.Lock()
		f.cardID = cardID
		f.mu.Unlock()
	}
}

// StructuredRequestLogger emits one structured log line per request using slog.
func StructuredRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		fields := &requestLogFields{}

		next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), requestLogFieldsKey{}, fields)))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		routePattern := ""
		if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
			routePattern = routeCtx.RoutePattern()
		}

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"route", routePattern,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration_ms", float64(time.Since(start).Microseconds()) / 1000.0,
			"request_id", chimiddleware.GetReqID(r.Context()),
			"client_ip", r.RemoteAddr,
			"user_agent", r.UserAgent(),
		}
		if locale := ww.Header().Get("Content-Language"); locale != "" {
			attrs = append(attrs, "locale", locale)
		}
		fields.mu.Lock()
		if fields.cardID != "" {
			attrs = append(attrs, "card_id", fields.cardID)
		}
		fields.mu.Unlock()

		slog.Log(r.Context(), levelForStatus(status), "http.request", attrs...)
	})
}

// levelForStatus keeps client mistakes out of the error stream while still
// surfacing rejected tokens and throttling.
func levelForStatus(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status == http.StatusTooManyRequests, status == http.StatusForbidden:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
