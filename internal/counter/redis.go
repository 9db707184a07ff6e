package counter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrWithTTLScript sets the TTL only when the key is created, so a hot key
// keeps its original window instead of sliding forever.
var incrWithTTLScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 and tonumber(ARGV[1]) > 0 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return count
`)

var appendTrimScript = redis.NewScript(`
redis.call("RPUSH", KEYS[1], ARGV[1])
redis.call("LTRIM", KEYS[1], -tonumber(ARGV[2]), -1)
if tonumber(ARGV[3]) > 0 then
  redis.call("EXPIRE", KEYS[1], ARGV[3])
end
return redis.call("LRANGE", KEYS[1], 0, -1)
`)

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(addr string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return val, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	ttlSec := int(ttl / time.Second)
	count, err := incrWithTTLScript.Run(ctx, s.client, []string{key}, strconv.Itoa(ttlSec)).Int64()
	if err != nil {
		return 0, fmt.Errorf("increment %s: %w", key, err)
	}
	return count, nil
}

func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("expire %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) ListAppendTrim(ctx context.Context, key, value string, maxLen int64, ttl time.Duration) ([]string, error) {
	ttlSec := int(ttl / time.Second)
	res, err := appendTrimScript.Run(ctx, s.client,
		[]string{key},
		value, strconv.FormatInt(maxLen, 10), strconv.Itoa(ttlSec),
	).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("append to %s: %w", key, err)
	}
	return res, nil
}

func (s *RedisStore) CountPrefix(ctx context.Context, prefix string) (int64, error) {
	var count int64
	iter := s.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("scan %s*: %w", prefix, err)
	}
	return count, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
