package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type IdempotencyState string

const (
	IdempotencyStateNew        IdempotencyState = "new"
	IdempotencyStateReplay     IdempotencyState = "replay"
	IdempotencyStateInProgress IdempotencyState = "in_progress"
	IdempotencyStateConflict   IdempotencyState = "conflict"
)

type CachedHTTPResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

type IdempotencyBeginResult struct {
	State  IdempotencyState
	Cached *CachedHTTPResponse
}

//go:generate mockgen -destination=gomock/idempotency_store_mock.go -package=gomock . IdempotencyStore

// IdempotencyStore reserves a key for one request fingerprint and later
// stores the response to replay for retries.
type IdempotencyStore interface {
	Begin(ctx context.Context, scope, key, fingerprint string, ttl time.Duration) (IdempotencyBeginResult, error)
	Complete(ctx context.Context, scope, key, fingerprint string, response CachedHTTPResponse, ttl time.Duration) error
	Abandon(ctx context.Context, scope, key, fingerprint string) error
}

var redisIdempotencyBeginScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  redis.call("HSET", KEYS[1], "fp", ARGV[1], "status", "in_progress")
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
  return {"new"}
end
local rec = redis.call("HMGET", KEYS[1], "fp", "status", "code", "ctype", "body")
if rec[1] ~= ARGV[1] then
  return {"conflict"}
end
if rec[2] == "completed" then
  return {"replay", rec[3], rec[4] or "", rec[5] or ""}
end
return {"in_progress"}
`)

var redisIdempotencyCompleteScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], "fp") ~= ARGV[1] then
  return 0
end
redis.call("HSET", KEYS[1], "status", "completed", "code", ARGV[2], "ctype", ARGV[3], "body", ARGV[4])
redis.call("PEXPIRE", KEYS[1], ARGV[5])
return 1
`)

var redisIdempotencyAbandonScript = redis.NewScript(`
local rec = redis.call("HMGET", KEYS[1], "fp", "status")
if rec[1] == ARGV[1] and rec[2] == "in_progress" then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisIdempotencyStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisIdempotencyStore(client redis.UniversalClient, prefix string) *RedisIdempotencyStore {
	if prefix == "" {
		prefix = "idem"
	}
	return &RedisIdempotencyStore{client: client, prefix: prefix}
}

func (s *RedisIdempotencyStore) Begin(ctx context.Context, scope, key, fingerprint string, ttl time.Duration) (IdempotencyBeginResult, error) {
	raw, err := redisIdempotencyBeginScript.Run(ctx, s.client, []string{s.key(scope, key)}, fingerprint, ttlMillis(ttl)).Result()
	if err != nil {
		return IdempotencyBeginResult{}, fmt.Errorf("idempotency begin: %w", err)
	}
	values, ok := raw.([]interface{})
	if !ok || len(values) == 0 {
		return IdempotencyBeginResult{}, errors.New("idempotency begin: unexpected script response")
	}
	state, _ := values[0].(string)
	switch IdempotencyState(state) {
	case IdempotencyStateNew, IdempotencyStateConflict, IdempotencyStateInProgress:
		return IdempotencyBeginResult{State: IdempotencyState(state)}, nil
	case IdempotencyStateReplay:
		if len(values) != 4 {
			return IdempotencyBeginResult{}, errors.New("idempotency begin: malformed replay record")
		}
		codeRaw, _ := values[1].(string)
		code, err := strconv.Atoi(codeRaw)
		if err != nil {
			return IdempotencyBeginResult{}, fmt.Errorf("idempotency begin: status code: %w", err)
		}
		ctype, _ := values[2].(string)
		body, _ := values[3].(string)
		return IdempotencyBeginResult{
			State:  IdempotencyStateReplay,
			Cached: &CachedHTTPResponse{StatusCode: code, ContentType: ctype, Body: []byte(body)},
		}, nil
	default:
		return IdempotencyBeginResult{}, fmt.Errorf("idempotency begin: unknown state %q", state)
	}
}

func (s *RedisIdempotencyStore) Complete(ctx context.Context, scope, key, fingerprint string, response CachedHTTPResponse, ttl time.Duration) error {
	err := redisIdempotencyCompleteScript.Run(ctx, s.client, []string{s.key(scope, key)},
		fingerprint, response.StatusCode, response.ContentType, response.Body, ttlMillis(ttl)).Err()
	if err != nil {
		return fmt.Errorf("idempotency complete: %w", err)
	}
	return nil
}

// Abandon frees a reservation whose request failed so a retry can run.
func (s *RedisIdempotencyStore) Abandon(ctx context.Context, scope, key, fingerprint string) error {
	if err := redisIdempotencyAbandonScript.Run(ctx, s.client, []string{s.key(scope, key)}, fingerprint).Err(); err != nil {
		return fmt.Errorf("idempotency abandon: %w", err)
	}
	return nil
}

func (s *RedisIdempotencyStore) key(scope, key string) string {
	return s.prefix + ":" + scope + ":" + key
}

func ttlMillis(ttl time.Duration) int64 {
	ms := ttl.Milliseconds()
	if ms <= 0 {
		return int64((24 * time.Hour).Milliseconds())
	}
	return ms
}
