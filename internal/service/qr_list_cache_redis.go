package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisListCacheStore shares list pages across API instances. Each namespace
// keeps a set of its data keys so invalidation does not need SCAN.
type RedisListCacheStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisListCacheStore(client redis.UniversalClient, prefix string) *RedisListCacheStore {
	if prefix == "" {
		prefix = "list_cache"
	}
	return &RedisListCacheStore{client: client, prefix: prefix}
}

func (s *RedisListCacheStore) Get(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	value, err := s.client.Get(ctx, s.dataKey(namespace, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (s *RedisListCacheStore) Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	dataKey := s.dataKey(namespace, key)
	indexKey := s.indexKey(namespace)
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, dataKey, value, ttl)
	pipe.SAdd(ctx, indexKey, dataKey)
	pipe.Expire(ctx, indexKey, ttl+time.Minute)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisListCacheStore) InvalidateNamespace(ctx context.Context, namespace string) error {
	indexKey := s.indexKey(namespace)
	keys, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	pipe := s.client.TxPipeline()
	if len(keys) > 0 {
		pipe.Del(ctx, keys...)
	}
	pipe.Del(ctx, indexKey)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisListCacheStore) dataKey(namespace, key string) string {
	sum := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%s:data:%s:%s", s.prefix, namespace, hex.EncodeToString(sum[:]))
}

func (s *RedisListCacheStore) indexKey(namespace string) string {
	return fmt.Sprintf("%s:index:%s", s.prefix, namespace)
}
