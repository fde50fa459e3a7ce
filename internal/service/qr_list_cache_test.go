package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestInMemoryListCacheStoreGetSetInvalidate(t *testing.T) {
	store := NewInMemoryListCacheStore()
	ctx := context.Background()

	if err := store.Set(ctx, qrListNamespace, "k1", []byte(`{"x":1}`), time.Minute); err != nil {
		t.Fatalf("set cache: %v", err)
	}
	got, ok, err := store.Get(ctx, qrListNamespace, "k1")
	if err != nil || !ok {
		t.Fatalf("expected cache hit, ok=%v err=%v", ok, err)
	}
	if string(got) != `{"x":1}` {
		t.Fatalf("unexpected cache payload: %s", got)
	}

	if err := store.InvalidateNamespace(ctx, qrListNamespace); err != nil {
		t.Fatalf("invalidate namespace: %v", err)
	}
	if _, ok, _ := store.Get(ctx, qrListNamespace, "k1"); ok {
		t.Fatal("expected cache miss after invalidation")
	}
}

func TestInMemoryListCacheStoreExpiry(t *testing.T) {
	store := NewInMemoryListCacheStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	if err := store.Set(ctx, qrListNamespace, "k", []byte(`{}`), 30*time.Second); err != nil {
		t.Fatalf("set cache: %v", err)
	}
	now = now.Add(31 * time.Second)
	if _, ok, _ := store.Get(ctx, qrListNamespace, "k"); ok {
		t.Fatal("expected cache entry to expire")
	}
}

func TestRedisListCacheStoreInvalidatesNamespace(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisListCacheStore(client, "test_cache")
	ctx := context.Background()

	for _, key := range []string{qrListCacheKey(1, 20), qrListCacheKey(2, 20)} {
		if err := store.Set(ctx, qrListNamespace, key, []byte(key), time.Minute); err != nil {
			t.Fatalf("set %s: %v", key, err)
		}
	}
	if err := store.Set(ctx, "admin.other", "k", []byte("other"), time.Minute); err != nil {
		t.Fatalf("set other namespace: %v", err)
	}
	got, ok, err := store.Get(ctx, qrListNamespace, qrListCacheKey(2, 20))
	if err != nil || !ok || string(got) != qrListCacheKey(2, 20) {
		t.Fatalf("expected hit, got %q ok=%v err=%v", got, ok, err)
	}

	if err := store.InvalidateNamespace(ctx, qrListNamespace); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, ok, _ := store.Get(ctx, qrListNamespace, qrListCacheKey(1, 20)); ok {
		t.Fatal("expected miss after invalidation")
	}
	if _, ok, _ := store.Get(ctx, "admin.other", "k"); !ok {
		t.Fatal("expected other namespace untouched")
	}

	mr.FastForward(2 * time.Minute)
	if _, ok, _ := store.Get(ctx, "admin.other", "k"); ok {
		t.Fatal("expected entry to expire with its ttl")
	}
}

func TestNoopListCacheStoreAlwaysMisses(t *testing.T) {
	var store NoopListCacheStore
	ctx := context.Background()
	if err := store.Set(ctx, qrListNamespace, "k", []byte(`{}`), time.Minute); err != nil {
		t.Fatalf("set noop cache: %v", err)
	}
	if _, ok, _ := store.Get(ctx, qrListNamespace, "k"); ok {
		t.Fatal("expected noop cache miss")
	}
}
