package middleware

import (
	"context"
	"sync"
	"time"
)

type windowCount struct {
	hits    int
	resetAt time.Time
}

// localFixedWindowLimiter keeps counters in process memory. It backs the
// limiters when redis limiting is disabled and in single-replica setups.
type localFixedWindowLimiter struct {
	mu        sync.Mutex
	now       func() time.Time
	windows   map[string]*windowCount
	nextSweep time.Time
}

func NewLocalFixedWindowLimiter() Limiter {
	return newLocalFixedWindowLimiter(time.Now)
}

func newLocalFixedWindowLimiter(now func() time.Time) *localFixedWindowLimiter {
	return &localFixedWindowLimiter{
		now:       now,
		windows:   make(map[string]*windowCount),
		nextSweep: now().Add(time.Minute),
	}
}

func (l *localFixedWindowLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now, window)

	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		l.windows[key] = &windowCount{hits: 1, resetAt: now.Add(window)}
		return true, 0, nil
	}
	if w.hits >= limit {
		return false, max(w.resetAt.Sub(now), 0), nil
	}
	w.hits++
	return true, 0, nil
}

// sweep drops expired windows at most once per window length.
func (l *localFixedWindowLimiter) sweep(now time.Time, window time.Duration) {
	if now.Before(l.nextSweep) {
		return
	}
	for k, w := range l.windows {
		if now.After(w.resetAt) {
			delete(l.windows, k)
		}
	}
	l.nextSweep = now.Add(window)
}
