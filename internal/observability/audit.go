package observability

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Audit logs one card or OTP state transition. Trace and span ids are added by
// the logger's handler chain.
func Audit(r *http.Request, event string, attrs ...any) {
	base := []any{
		"event", event,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", requestID(r),
		"client_ip", r.RemoteAddr,
	}
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			base = append(base, "route", pattern)
		}
	}
	base = append(base, attrs...)
	NewLogger().InfoContext(r.Context(), "audit", base...)
}

func requestID(r *http.Request) string {
	if id := middleware.GetReqID(r.Context()); id != "" {
		return id
	}
	return r.Header.Get("X-Request-Id")
}
