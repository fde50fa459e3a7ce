package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/whitecard/whitecard-backend/internal/http/response"
	"github.com/whitecard/whitecard-backend/internal/observability"
)

func RequestID(next http.Handler) http.Handler { return chimiddleware.RequestID(next) }

// Card responses carry app tokens, reset tokens and QR URLs, so nothing is
// cacheable by intermediaries.
var staticSecurityHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Referrer-Policy", "no-referrer"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Permissions-Policy", "camera=(), geolocation=(), microphone=()"},
	{"Cache-Control", "no-store"},
}

func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		for _, kv := range staticSecurityHeaders {
			h.Set(kv[0], kv[1])
		}
		if r.TLS != nil {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

const corsMaxAge = 10 * time.Minute

type corsPolicy struct {
	origins       map[string]struct{}
	allowHeaders  string
	exposeHeaders string
	allowMethods  string
	maxAge        string
}

func newCORSPolicy(allowedOrigins []string) corsPolicy {
	p := corsPolicy{
		origins: make(map[string]struct{}, len(allowedOrigins)),
		allowHeaders: strings.Join([]string{
			"Content-Type", "Authorization", "Accept-Language", "Idempotency-Key", response.TokenHeader,
		}, ", "),
		exposeHeaders: strings.Join([]string{
			response.TokenHeader, "Content-Language", "Retry-After", "X-Request-Id", "X-Idempotency-Replayed",
		}, ", "),
		allowMethods: "GET, POST, PATCH, DELETE, OPTIONS",
		maxAge:       strconv.Itoa(int(corsMaxAge.Seconds())),
	}
	for _, o := range allowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			p.origins[o] = struct{}{}
		}
	}
	return p
}

func (p corsPolicy) apply(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	h := w.Header()
	h.Add("Vary", "Origin")
	if _, ok := p.origins[origin]; !ok {
		observability.RecordMiddlewareValidationEvent(r.Context(), "cors", "rejected_origin")
		return
	}
	observability.RecordMiddlewareValidationEvent(r.Context(), "cors", "allow_origin")
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Access-Control-Allow-Headers", p.allowHeaders)
	h.Set("Access-Control-Expose-Headers", p.exposeHeaders)
	h.Set("Access-Control-Allow-Methods", p.allowMethods)
	if r.Method == http.MethodOptions {
		h.Set("Access-Control-Max-Age", p.maxAge)
	}
}

// CORS answers preflights itself. Tokens travel in headers, never cookies, so
// credentials are not allowed.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	policy := newCORSPolicy(allowedOrigins)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			policy.apply(w, r)
			if r.Method == http.MethodOptions {
				observability.RecordMiddlewareValidationEvent(r.Context(), "cors", "preflight")
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// BodyLimit caps request bodies. Handlers see *http.MaxBytesError from Read
// and map it to 413 themselves.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && r.Body != http.NoBody {
				r.Body = &limitedBody{ReadCloser: http.MaxBytesReader(w, r.Body, maxBytes), ctx: r.Context()}
			}
			next.ServeHTTP(w, r)
		})
	}
}

type limitedBody struct {
	io.ReadCloser
	ctx      context.Context
	reported bool
}

func (b *limitedBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if err != nil && !errors.Is(err, io.EOF) && !b.reported {
		b.reported = true
		outcome := "read_error"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			outcome = "rejected_too_large"
		}
		observability.RecordMiddlewareValidationEvent(b.ctx, "body_limit", outcome)
	}
	return n, err
}
