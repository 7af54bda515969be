package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Sets a millisecond expiry only when the key exists without one.
// PTTL answers -1 for "no expiry" and -2 for "missing".
var expireIfUnsetScript = redis.NewScript(`
if redis.call('PTTL', KEYS[1]) == -1 then
	return redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return 0
`)

// RedisStore is the distributed Store backend. Counters are shared by every
// process pointed at the same Redis.
type RedisStore struct {
	redis *RedisClient
}

func NewRedisStore(redis *RedisClient) *RedisStore {
	return &RedisStore{redis: redis}
}

func (s *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	return s.redis.Incr(ctx, key)
}

func (s *RedisStore) ExpireIfUnset(ctx context.Context, key string, ttl time.Duration) error {
	_, err := s.redis.RunScript(ctx, expireIfUnsetScript, []string{key}, ttl.Milliseconds())
	return err
}

func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.redis.PTTL(ctx, key)
	if err != nil {
		return 0, err
	}
	if ttl < 0 {
		return NoTTL, nil
	}
	return ttl, nil
}

func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.redis.Exists(ctx, key)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.redis.Set(ctx, key, value, ttl)
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.redis.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return val, err
}

func (s *RedisStore) Del(ctx context.Context, key string) error {
	return s.redis.Del(ctx, key)
}
