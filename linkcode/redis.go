package linkcode

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "linkcode:"

// RedisStore keeps codes in Redis, with expiry handled by key TTL. Single-use
// redemption rides on GETDEL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed code store. A non-positive ttl falls
// back to DefaultTTL.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Issue(ctx context.Context, channelID string) (string, error) {
	for {
		code, err := newCode()
		if err != nil {
			return "", err
		}
		ok, err := s.client.SetNX(ctx, keyPrefix+code, channelID, s.ttl).Result()
		if err != nil {
			return "", fmt.Errorf("failed to store link code: %w", err)
		}
		if ok {
			return code, nil
		}
	}
}

func (s *RedisStore) Redeem(ctx context.Context, code string) (string, error) {
	channelID, err := s.client.GetDel(ctx, keyPrefix+code).Result()
	if err == redis.Nil {
		return "", ErrCodeNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to redeem link code: %w", err)
	}
	return channelID, nil
}
