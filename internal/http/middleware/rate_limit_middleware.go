package middleware

import (
	"context"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/whitecard/whitecard-backend/internal/http/response"
	"github.com/whitecard/whitecard-backend/internal/i18n"
	"github.com/whitecard/whitecard-backend/internal/observability"
)

type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error)
}

// FailureMode decides what happens when the limiter backend errors.
type FailureMode string

const (
	FailOpen   FailureMode = "fail_open"
	FailClosed FailureMode = "fail_closed"
)

// KeyFunc derives the limiter key for a request and names the kind of key
// for metrics.
type KeyFunc func(r *http.Request) (key string, keyType string)

// RateLimiter applies one limit to one scope (api, card, redemption).
type RateLimiter struct {
	limiter Limiter
	limit   int
	window  time.Duration
	mode    FailureMode
	scope   string
	keyFunc KeyFunc
}

func NewRateLimiter(limit int, window time.Duration, scope string) *RateLimiter {
	return NewDistributedRateLimiter(NewLocalFixedWindowLimiter(), limit, window, FailClosed, scope)
}

func NewDistributedRateLimiter(limiter Limiter, limit int, window time.Duration, mode FailureMode, scope string) *RateLimiter {
	if scope == "" {
		scope = "api"
	}
	return &RateLimiter{
		limiter: limiter,
		limit:   limit,
		window:  window,
		mode:    mode,
		scope:   scope,
		keyFunc: ClientIPKey,
	}
}

// WithKeyFunc replaces the default client IP key.
func (rl *RateLimiter) WithKeyFunc(fn KeyFunc) *RateLimiter {
	if fn != nil {
		rl.keyFunc = fn
	}
	return rl
}

type rateDecision struct {
	allow      bool
	outcome    string
	reason     string
	retryAfter time.Duration
}

func (rl *RateLimiter) decide(r *http.Request, key string) rateDecision {
	allowed, retryAfter, err := rl.limiter.Allow(r.Context(), rl.scope+":"+key, rl.limit, rl.window)
	switch {
	case err != nil && rl.mode == FailOpen:
		slog.WarnContext(r.Context(), "rate limiter backend unavailable, allowing request",
			"scope", rl.scope,
			"mode", string(rl.mode),
			"error", err.Error(),
		)
		return rateDecision{allow: true, outcome: "backend_error_allowed"}
	case err != nil:
		return rateDecision{outcome: "backend_error_denied", reason: "backend_error", retryAfter: rl.window}
	case !allowed:
		return rateDecision{outcome: "denied", reason: "limit_exceeded", retryAfter: retryAfter}
	default:
		return rateDecision{allow: true, outcome: "allowed"}
	}
}

func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, keyType := rl.keyFunc(r)
			d := rl.decide(r, key)
			observability.RecordRateLimitDecision(r.Context(), rl.scope, d.outcome, string(rl.mode), keyType)
			if d.allow {
				next.ServeHTTP(w, r)
				return
			}
			observability.RecordRateLimitRetryAfter(r.Context(), rl.scope, d.reason, d.retryAfter)
			w.Header().Set("Retry-After", retryAfterHeader(d.retryAfter))
			response.Error(w, r, http.StatusTooManyRequests, "rate_limited", response.Msg(i18n.MsgRateLimited), nil)
		})
	}
}

// ClientIPKey keys on the remote address, which RealIP has already resolved.
func ClientIPKey(r *http.Request) (string, string) {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return "ip:" + host, "ip"
	}
	return "ip:" + r.RemoteAddr, "ip"
}

// CardKey keys on the authenticated card and falls back to the client IP.
// It must run after AppTokenAuth.
func CardKey(r *http.Request) (string, string) {
	if claims, ok := ClaimsFromContext(r.Context()); ok && claims.Subject != "" {
		return "card:" + claims.Subject, "card"
	}
	return ClientIPKey(r)
}

// retryAfterHeader rounds up to whole seconds, never below one.
func retryAfterHeader(d time.Duration) string {
	return strconv.Itoa(max(int(math.Ceil(d.Seconds())), 1))
}
