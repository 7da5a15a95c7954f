package dedupe

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "dealbill:dedupe:"
	redisKeyTTL    = 10 * time.Minute
)

type redisStore struct {
	client *redis.Client
}

// NewRedisStore returns a Store backed by redis, shared across
// process replicas. Keys expire after a short TTL.
func NewRedisStore(client *redis.Client) Store {
	return &redisStore{client: client}
}

func (s *redisStore) Seen(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *redisStore) Mark(ctx context.Context, key string) error {
	return s.client.Set(ctx, redisKeyPrefix+key, "1", redisKeyTTL).Err()
}
