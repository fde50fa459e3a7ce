package service

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const qrListNamespace = "admin.qr_codes"

// ListCacheStore caches serialized admin list pages per namespace. Any card
// mutation drops the whole namespace.
type ListCacheStore interface {
	Get(ctx context.Context, namespace, key string) ([]byte, bool, error)
	Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error
	InvalidateNamespace(ctx context.Context, namespace string) error
}

type NoopListCacheStore struct{}

func (NoopListCacheStore) Get(context.Context, string, string) ([]byte, bool, error) {
	return nil, false, nil
}

func (NoopListCacheStore) Set(context.Context, string, string, []byte, time.Duration) error {
	return nil
}

func (NoopListCacheStore) InvalidateNamespace(context.Context, string) error { return nil }

type listCacheEntry struct {
	payload   []byte
	expiresAt time.Time
}

// InMemoryListCacheStore backs the list cache in single-instance deployments
// and tests.
type InMemoryListCacheStore struct {
	mu    sync.Mutex
	now   func() time.Time
	store map[string]map[string]listCacheEntry
}

func NewInMemoryListCacheStore() *InMemoryListCacheStore {
	return &InMemoryListCacheStore{
		now:   time.Now,
		store: make(map[string]map[string]listCacheEntry),
	}
}

func (s *InMemoryListCacheStore) Get(_ context.Context, namespace, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ns, ok := s.store[namespace]
	if !ok {
		return nil, false, nil
	}
	entry, ok := ns[key]
	if !ok {
		return nil, false, nil
	}
	if !s.now().Before(entry.expiresAt) {
		delete(ns, key)
		if len(ns) == 0 {
			delete(s.store, namespace)
		}
		return nil, false, nil
	}
	return append([]byte(nil), entry.payload...), true, nil
}

func (s *InMemoryListCacheStore) Set(_ context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ns, ok := s.store[namespace]
	if !ok {
		ns = make(map[string]listCacheEntry)
		s.store[namespace] = ns
	}
	ns[key] = listCacheEntry{
		payload:   append([]byte(nil), value...),
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

func (s *InMemoryListCacheStore) InvalidateNamespace(_ context.Context, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.store, namespace)
	return nil
}

func qrListCacheKey(page, pageSize int) string {
	return fmt.Sprintf("page=%d&size=%d", page, pageSize)
}
