package otpstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/whitecard/whitecard-backend/internal/domain"
)

// Keys of one kind share a hash tag so the scripts stay on a single slot.
var redisCreateScript = redis.NewScript(`
local verified = redis.call("HGET", KEYS[1], "otp_verified")
if verified then
  if ARGV[6] == "1" or verified == "0" then
    return 0
  end
  local old = redis.call("HGET", KEYS[1], "code")
  if old then
    local oldKey = ARGV[7] .. old
    if redis.call("GET", oldKey) == ARGV[1] then
      redis.call("DEL", oldKey)
    end
  end
  redis.call("DEL", KEYS[1])
end
if redis.call("EXISTS", KEYS[2]) == 1 then
  return -1
end
redis.call("HSET", KEYS[1], "user_id", ARGV[1], "code", ARGV[2], "brand", ARGV[3], "otp_verified", "0", "created_at_ms", ARGV[4])
redis.call("PEXPIRE", KEYS[1], ARGV[5])
redis.call("SET", KEYS[2], ARGV[1], "PX", ARGV[5])
return 1
`)

var redisMarkVerifiedScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1], "otp_verified", "1")
return 1
`)

var redisDeleteScript = redis.NewScript(`
local code = redis.call("HGET", KEYS[1], "code")
local removed = redis.call("DEL", KEYS[1])
if code then
  local codeKey = ARGV[1] .. code
  if redis.call("GET", codeKey) == ARGV[2] then
    redis.call("DEL", codeKey)
  end
end
return removed
`)

type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttls   TTLs
	now    func() time.Time
}

func NewRedisStore(client redis.UniversalClient, prefix string, ttls TTLs) *RedisStore {
	if prefix == "" {
		prefix = "otp"
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttls:   ttls.normalize(),
		now:    time.Now,
	}
}

func (s *RedisStore) FindRecovery(ctx context.Context, userID string) (*domain.RecoveryOTP, error) {
	fields, err := s.load(ctx, KindRecovery, userID)
	if err != nil {
		return nil, err
	}
	return &domain.RecoveryOTP{
		UserID:      fields["user_id"],
		Code:        fields["code"],
		OTPVerified: fields["otp_verified"] == "1",
		CreatedAt:   parseMillis(fields["created_at_ms"]),
	}, nil
}

func (s *RedisStore) CreateRecovery(ctx context.Context, userID, code string) (*domain.RecoveryOTP, error) {
	createdAt, err := s.create(ctx, KindRecovery, userID, code, "")
	if err != nil {
		return nil, err
	}
	return &domain.RecoveryOTP{UserID: userID, Code: code, CreatedAt: createdAt}, nil
}

func (s *RedisStore) DeleteRecovery(ctx context.Context, userID string) error {
	removed, err := redisDeleteScript.Run(ctx, s.client,
		[]string{s.recordKey(KindRecovery, userID)},
		s.codeKeyPrefix(KindRecovery), userID,
	).Int64()
	if err != nil {
		return fmt.Errorf("delete recovery otp: %w", err)
	}
	if removed == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) ConsumeResetToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}
	first, err := s.client.SetNX(ctx, s.spentTokenKey(tokenID), "1", ttl).Result()
	if err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}
	if !first {
		return ErrTokenUsed
	}
	return nil
}

func (s *RedisStore) FindRedemption(ctx context.Context, userID string) (*domain.RedemptionOTP, error) {
	fields, err := s.load(ctx, KindRedemption, userID)
	if err != nil {
		return nil, err
	}
	return &domain.RedemptionOTP{
		UserID:      fields["user_id"],
		Brand:       fields["brand"],
		Code:        fields["code"],
		OTPVerified: fields["otp_verified"] == "1",
		CreatedAt:   parseMillis(fields["created_at_ms"]),
	}, nil
}

func (s *RedisStore) CreateRedemption(ctx context.Context, userID, brand, code string) (*domain.RedemptionOTP, error) {
	createdAt, err := s.create(ctx, KindRedemption, userID, code, brand)
	if err != nil {
		return nil, err
	}
	return &domain.RedemptionOTP{UserID: userID, Brand: brand, Code: code, CreatedAt: createdAt}, nil
}

func (s *RedisStore) MarkRedemptionVerified(ctx context.Context, userID string) error {
	updated, err := redisMarkVerifiedScript.Run(ctx, s.client,
		[]string{s.recordKey(KindRedemption, userID)},
	).Int64()
	if err != nil {
		return fmt.Errorf("mark redemption otp verified: %w", err)
	}
	if updated == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) create(ctx context.Context, kind Kind, userID, code, brand string) (time.Time, error) {
	createdAt := s.now().UTC()
	ttl := s.ttls.forKind(kind)
	block := "0"
	if blocksVerified(kind) {
		block = "1"
	}
	res, err := redisCreateScript.Run(ctx, s.client,
		[]string{s.recordKey(kind, userID), s.codeKey(kind, code)},
		userID, code, brand, createdAt.UnixMilli(), ttl.Milliseconds(), block, s.codeKeyPrefix(kind),
	).Int64()
	if err != nil {
		return time.Time{}, fmt.Errorf("create %s otp: %w", kind, err)
	}
	switch res {
	case 1:
		return createdAt, nil
	case 0:
		return time.Time{}, ErrRecordExists
	default:
		return time.Time{}, ErrCodeInUse
	}
}

func (s *RedisStore) load(ctx context.Context, kind Kind, userID string) (map[string]string, error) {
	fields, err := s.client.HGetAll(ctx, s.recordKey(kind, userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("load %s otp: %w", kind, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return fields, nil
}

func (s *RedisStore) recordKey(kind Kind, userID string) string {
	return fmt.Sprintf("%s:{%s}:user:%s", s.prefix, kind, userID)
}

func (s *RedisStore) spentTokenKey(tokenID string) string {
	return fmt.Sprintf("%s:{%s}:reset:%s", s.prefix, KindRecovery, tokenID)
}

func (s *RedisStore) codeKeyPrefix(kind Kind) string {
	return fmt.Sprintf("%s:{%s}:code:", s.prefix, kind)
}

func (s *RedisStore) codeKey(kind Kind, code string) string {
	return s.codeKeyPrefix(kind) + code
}

func parseMillis(v string) time.Time {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
