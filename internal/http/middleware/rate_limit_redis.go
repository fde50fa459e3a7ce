package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var errNoRedisClient = errors.New("rate limit: redis client is nil")

// The window is anchored on the first hit. A counter that lost its TTL (e.g.
// after a PERSIST or restore) is given a fresh one rather than blocking forever.
var windowCounterScript = redis.NewScript(`
local hits = redis.call("INCR", KEYS[1])
local ttl = redis.call("PTTL", KEYS[1])
if hits == 1 or ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {hits, ttl}
`)

// RedisFixedWindowLimiter shares counters across API replicas so the card
// endpoint limits hold for the whole deployment.
type RedisFixedWindowLimiter struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisFixedWindowLimiter(client redis.UniversalClient, prefix string) *RedisFixedWindowLimiter {
	if prefix == "" {
		prefix = "whitecard:rl"
	}
	return &RedisFixedWindowLimiter{client: client, prefix: prefix}
}

func (l *RedisFixedWindowLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	if l.client == nil {
		return false, window, errNoRedisClient
	}
	if key == "" {
		key = "unknown"
	}
	if window < time.Millisecond {
		window = time.Second
	}

	out, err := windowCounterScript.Run(ctx, l.client, []string{l.prefix + ":" + key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return false, window, fmt.Errorf("rate limit counter %q: %w", key, err)
	}
	if len(out) != 2 {
		return false, window, fmt.Errorf("rate limit counter %q: unexpected reply length %d", key, len(out))
	}

	retryAfter := time.Duration(out[1]) * time.Millisecond
	if retryAfter <= 0 {
		retryAfter = window
	}
	return out[0] <= int64(limit), retryAfter, nil
}
