package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oksasatya/anaqa-user-service/pkg/helpers"
)

// RedisTokenStore maps a token digest to a user id until it expires or is taken.
type RedisTokenStore struct {
	rdb redis.Cmdable
}

func NewRedisTokenStore(rdb redis.Cmdable) *RedisTokenStore {
	return &RedisTokenStore{rdb: rdb}
}

func (s *RedisTokenStore) Put(ctx context.Context, digest, userID string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, helpers.KeyEmailVerify(digest), userID, ttl).Err(); err != nil {
		return fmt.Errorf("store verification token: %w", err)
	}
	return nil
}

// Take returns and deletes the user id for digest. Tokens are single use.
func (s *RedisTokenStore) Take(ctx context.Context, digest string) (string, bool, error) {
	uid, err := s.rdb.GetDel(ctx, helpers.KeyEmailVerify(digest)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("take verification token: %w", err)
	}
	return uid, true, nil
}
