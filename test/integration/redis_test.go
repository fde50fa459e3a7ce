package integration

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/whitecard/whitecard-backend/internal/http/middleware"
	"github.com/whitecard/whitecard-backend/internal/otpstore"
)

func TestRedisOTPStoreAgainstRealRedis(t *testing.T) {
	client := newRedisClient(t)
	store := otpstore.NewRedisStore(client, "it:otp", otpstore.TTLs{Recovery: time.Minute, Redemption: time.Minute})
	ctx := context.Background()

	if _, err := store.CreateRecovery(ctx, "card-1", "482913"); err != nil {
		t.Fatalf("CreateRecovery: %v", err)
	}
	if _, err := store.CreateRecovery(ctx, "card-1", "111111"); !errors.Is(err, otpstore.ErrRecordExists) {
		t.Fatalf("expected ErrRecordExists, got %v", err)
	}
	got, err := store.FindRecovery(ctx, "card-1")
	if err != nil || got.Code != "482913" {
		t.Fatalf("FindRecovery: %+v %v", got, err)
	}
	if ttl := client.TTL(ctx, "it:otp:{recovery}:user:card-1").Val(); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("expected record ttl within a minute, got %s", ttl)
	}
	if err := store.DeleteRecovery(ctx, "card-1"); err != nil {
		t.Fatalf("DeleteRecovery: %v", err)
	}
	if _, err := store.FindRecovery(ctx, "card-1"); !errors.Is(err, otpstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	if _, err := store.CreateRedemption(ctx, "card-2", "brand-x", "700001"); err != nil {
		t.Fatalf("CreateRedemption: %v", err)
	}
	if _, err := store.CreateRedemption(ctx, "card-3", "brand-x", "700001"); !errors.Is(err, otpstore.ErrCodeInUse) {
		t.Fatalf("expected ErrCodeInUse for a live code, got %v", err)
	}
	if err := store.MarkRedemptionVerified(ctx, "card-2"); err != nil {
		t.Fatalf("MarkRedemptionVerified: %v", err)
	}
	if _, err := store.CreateRedemption(ctx, "card-2", "brand-y", "700002"); !errors.Is(err, otpstore.ErrRecordExists) {
		t.Fatalf("expected verified redemption to block reissue, got %v", err)
	}
	red, err := store.FindRedemption(ctx, "card-2")
	if err != nil || !red.OTPVerified || red.Brand != "brand-x" {
		t.Fatalf("FindRedemption: %+v %v", red, err)
	}
}

func TestRedisRateLimiterIsSharedAcrossInstances(t *testing.T) {
	client := newRedisClient(t)
	limiter := middleware.NewRedisFixedWindowLimiter(client, "it:rl")
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	// Two API replicas share one redis window.
	replicas := []http.Handler{
		middleware.NewDistributedRateLimiter(limiter, 3, time.Minute, middleware.FailClosed, "card").Middleware()(ok),
		middleware.NewDistributedRateLimiter(limiter, 3, time.Minute, middleware.FailClosed, "card").Middleware()(ok),
	}

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/cards/scan", nil)
		req.RemoteAddr = "198.51.100.4:5000"
		rr := httptest.NewRecorder()
		replicas[i%2].ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rr.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cards/scan", nil)
	req.RemoteAddr = "198.51.100.4:5000"
	rr := httptest.NewRecorder()
	replicas[1].ServeHTTP(rr, req)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected shared window to reject, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
}
