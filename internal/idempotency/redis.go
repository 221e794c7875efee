package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"storefront-system/internal/commerce"
)

const (
	keyPrefix    = "store:idempotency:"
	pendingValue = "pending"
	DefaultTTL   = 24 * time.Hour
)

// RedisStore keeps checkout results in redis. A key holds "pending" while
// its checkout runs and the JSON result afterwards.
type RedisStore struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{redis: client, ttl: ttl}
}

func (s *RedisStore) Acquire(ctx context.Context, key string) ([]byte, bool, error) {
	// Two attempts cover a key that expires between SETNX and GET.
	for i := 0; i < 2; i++ {
		ok, err := s.redis.SetNX(ctx, keyPrefix+key, pendingValue, s.ttl).Result()
		if err != nil {
			return nil, false, fmt.Errorf("failed to claim idempotency key: %w", err)
		}
		if ok {
			return nil, true, nil
		}

		val, err := s.redis.Get(ctx, keyPrefix+key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, false, fmt.Errorf("failed to read idempotency key: %w", err)
		}
		if string(val) == pendingValue {
			return nil, false, commerce.ErrCheckoutInProgress
		}
		return val, false, nil
	}
	return nil, false, commerce.ErrCheckoutInProgress
}

func (s *RedisStore) Complete(ctx context.Context, key string, payload []byte) error {
	if err := s.redis.Set(ctx, keyPrefix+key, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store idempotent result: %w", err)
	}
	return nil
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.redis.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}
