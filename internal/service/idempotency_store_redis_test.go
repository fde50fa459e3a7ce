package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newIdempotencyStoreForTest(t *testing.T) (*miniredis.Miniredis, *RedisIdempotencyStore) {
	t.Helper()
	m := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return m, NewRedisIdempotencyStore(client, "idem_test")
}

func TestRedisIdempotencyStoreLifecycle(t *testing.T) {
	_, store := newIdempotencyStoreForTest(t)
	ctx := context.Background()

	begin, err := store.Begin(ctx, "create_card", "k1", "fp-a", time.Minute)
	if err != nil || begin.State != IdempotencyStateNew {
		t.Fatalf("expected new, got %+v err=%v", begin, err)
	}
	begin, _ = store.Begin(ctx, "create_card", "k1", "fp-a", time.Minute)
	if begin.State != IdempotencyStateInProgress {
		t.Fatalf("expected in_progress, got %+v", begin)
	}
	begin, _ = store.Begin(ctx, "create_card", "k1", "fp-b", time.Minute)
	if begin.State != IdempotencyStateConflict {
		t.Fatalf("expected conflict, got %+v", begin)
	}

	resp := CachedHTTPResponse{StatusCode: 201, ContentType: "application/json", Body: []byte(`{"success":true}`)}
	if err := store.Complete(ctx, "create_card", "k1", "fp-a", resp, time.Minute); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	begin, err = store.Begin(ctx, "create_card", "k1", "fp-a", time.Minute)
	if err != nil || begin.State != IdempotencyStateReplay || begin.Cached == nil {
		t.Fatalf("expected replay, got %+v err=%v", begin, err)
	}
	if begin.Cached.StatusCode != 201 || string(begin.Cached.Body) != `{"success":true}` || begin.Cached.ContentType != "application/json" {
		t.Fatalf("unexpected cached response: %+v", begin.Cached)
	}

	// Scopes do not share keys.
	begin, _ = store.Begin(ctx, "other", "k1", "fp-b", time.Minute)
	if begin.State != IdempotencyStateNew {
		t.Fatalf("expected new in other scope, got %+v", begin)
	}
}

func TestRedisIdempotencyStoreAbandonAndExpiry(t *testing.T) {
	m, store := newIdempotencyStoreForTest(t)
	ctx := context.Background()

	if _, err := store.Begin(ctx, "s", "k", "fp", time.Minute); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := store.Abandon(ctx, "s", "k", "other-fp"); err != nil {
		t.Fatalf("Abandon: %v", err)
	}
	if begin, _ := store.Begin(ctx, "s", "k", "fp", time.Minute); begin.State != IdempotencyStateInProgress {
		t.Fatalf("expected foreign abandon to be ignored, got %+v", begin)
	}
	if err := store.Abandon(ctx, "s", "k", "fp"); err != nil {
		t.Fatalf("Abandon: %v", err)
	}
	if begin, _ := store.Begin(ctx, "s", "k", "fp", time.Minute); begin.State != IdempotencyStateNew {
		t.Fatalf("expected key freed after abandon, got %+v", begin)
	}

	m.FastForward(2 * time.Minute)
	if begin, _ := store.Begin(ctx, "s", "k", "fp-new", time.Minute); begin.State != IdempotencyStateNew {
		t.Fatalf("expected expired reservation to be reusable, got %+v", begin)
	}
}
