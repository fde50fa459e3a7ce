package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/whitecard/whitecard-backend/internal/http/response"
	"github.com/whitecard/whitecard-backend/internal/i18n"
	"github.com/whitecard/whitecard-backend/internal/observability"
	"github.com/whitecard/whitecard-backend/internal/service"
)

const (
	idempotencyHeader       = "Idempotency-Key"
	idempotencyReplayHeader = "X-Idempotency-Replayed"
	maxIdempotencyKeyLen    = 128
)

// IdempotencyMiddleware lets admin clients retry a mutation with the same
// Idempotency-Key and get the first response back. Requests without the
// header pass straight through.
type IdempotencyMiddleware struct {
	store service.IdempotencyStore
	ttl   time.Duration
}

func NewIdempotencyMiddleware(store service.IdempotencyStore, ttl time.Duration) *IdempotencyMiddleware {
	return &IdempotencyMiddleware{store: store, ttl: ttl}
}

// idempotentCall is one keyed admin mutation in flight.
type idempotentCall struct {
	scope       string
	key         string
	keyHash     string
	fingerprint string
}

func (m *IdempotencyMiddleware) Middleware(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			switch {
			case key == "":
				observability.RecordIdempotencyEvent(r.Context(), scope, "absent")
				next.ServeHTTP(w, r)
				return
			case len(key) > maxIdempotencyKeyLen:
				observability.RecordIdempotencyEvent(r.Context(), scope, "invalid_key")
				response.Error(w, r, http.StatusBadRequest, "invalid_idempotency_key", response.Msg(i18n.MsgInvalidRequest), nil)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				observability.RecordIdempotencyEvent(r.Context(), scope, "read_error")
				response.Error(w, r, http.StatusBadRequest, "invalid_request", response.Msg(i18n.MsgInvalidRequest), nil)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			call := idempotentCall{
				scope:       scope,
				key:         key,
				keyHash:     shortHash(key),
				fingerprint: fingerprintRequest(r, scope, body),
			}
			if m.begin(w, r, call) {
				m.run(w, r, next, call)
			}
		})
	}
}

// begin claims the key. It reports false when the response was already written.
func (m *IdempotencyMiddleware) begin(w http.ResponseWriter, r *http.Request, call idempotentCall) bool {
	ctx := r.Context()
	res, err := m.store.Begin(ctx, call.scope, call.key, call.fingerprint, m.ttl)
	if err != nil {
		observability.RecordIdempotencyEvent(ctx, call.scope, "store_error")
		slog.ErrorContext(ctx, "idempotency check failed", "scope", call.scope, "key_hash", call.keyHash, "error", err.Error())
		response.Error(w, r, http.StatusInternalServerError, "internal", response.Msg(i18n.MsgInternalError), nil)
		return false
	}

	switch res.State {
	case service.IdempotencyStateConflict:
		observability.RecordIdempotencyEvent(ctx, call.scope, "conflict")
		observability.Audit(r, "idempotency.rejected", "scope", call.scope, "key_hash", call.keyHash, "reason", "fingerprint_conflict")
		response.Error(w, r, http.StatusConflict, "idempotency_conflict", response.Msg(i18n.MsgIdempotencyConflict), nil)
		return false
	case service.IdempotencyStateInProgress:
		observability.RecordIdempotencyEvent(ctx, call.scope, "in_progress")
		response.Error(w, r, http.StatusConflict, "idempotency_in_progress", response.Msg(i18n.MsgIdempotencyInProgress), nil)
		return false
	case service.IdempotencyStateReplay:
		observability.RecordIdempotencyEvent(ctx, call.scope, "replayed")
		observability.Audit(r, "idempotency.replayed", "scope", call.scope, "key_hash", call.keyHash)
		replay(w, res.Cached)
		return false
	}
	return true
}

// run executes the handler and stores its response. Server errors release the
// key so the client can retry.
func (m *IdempotencyMiddleware) run(w http.ResponseWriter, r *http.Request, next http.Handler, call idempotentCall) {
	ctx := r.Context()
	rec := &captureWriter{ResponseWriter: w}
	next.ServeHTTP(rec, r)

	status := rec.status()
	if status >= http.StatusInternalServerError {
		observability.RecordIdempotencyEvent(ctx, call.scope, "abandoned")
		if err := m.store.Abandon(ctx, call.scope, call.key, call.fingerprint); err != nil {
			slog.WarnContext(ctx, "idempotency release failed", "scope", call.scope, "error", err.Error())
		}
		return
	}

	observability.RecordIdempotencyEvent(ctx, call.scope, "created")
	cached := service.CachedHTTPResponse{
		StatusCode:  status,
		ContentType: rec.Header().Get("Content-Type"),
		Body:        rec.body.Bytes(),
	}
	if err := m.store.Complete(ctx, call.scope, call.key, call.fingerprint, cached, m.ttl); err != nil {
		observability.RecordIdempotencyEvent(ctx, call.scope, "store_error")
		slog.WarnContext(ctx, "idempotency complete failed", "scope", call.scope, "error", err.Error())
	}
}

func replay(w http.ResponseWriter, cached *service.CachedHTTPResponse) {
	w.Header().Set(idempotencyReplayHeader, "true")
	if cached == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if cached.ContentType != "" {
		w.Header().Set("Content-Type", cached.ContentType)
	}
	w.WriteHeader(cached.StatusCode)
	if len(cached.Body) > 0 {
		_, _ = w.Write(cached.Body)
	}
}

// fingerprintRequest binds a key to the route, the caller and the exact body,
// so reusing a key for a different admin action is a conflict.
func fingerprintRequest(r *http.Request, scope string, body []byte) string {
	route := r.URL.Path
	if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
		route = rc.RoutePattern()
	}
	bodySum := sha256.Sum256(body)

	h := sha256.New()
	for _, part := range []string{scope, r.Method, route, requestActor(r), hex.EncodeToString(bodySum[:])} {
		_, _ = io.WriteString(h, part)
		_, _ = h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func requestActor(r *http.Request) string {
	if claims, ok := ClaimsFromContext(r.Context()); ok {
		return "card:" + claims.Subject
	}
	key, _ := ClientIPKey(r)
	return key
}

func shortHash(v string) string {
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:6])
}

type captureWriter struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func (w *captureWriter) status() int {
	if w.statusCode == 0 {
		return http.StatusOK
	}
	return w.statusCode
}

func (w *captureWriter) WriteHeader(statusCode int) {
	if w.statusCode == 0 {
		w.statusCode = statusCode
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *captureWriter) Write(p []byte) (int, error) {
	if w.statusCode == 0 {
		w.statusCode = http.StatusOK
	}
	w.body.Write(p)
	return w.ResponseWriter.Write(p)
}
