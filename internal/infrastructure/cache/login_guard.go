// Package cache holds the short-lived auth state: login lockouts and
// email verification tokens. Redis backs both in deployment; the in-memory
// variants serve single-instance runs when REDIS_URL is not configured.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oksasatya/anaqa-user-service/pkg/helpers"
)

// failScript counts a failed login. When the count reaches ARGV[2] the email
// is locked for ARGV[3] ms and the counter reset. Returns 1 when locked.
var failScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
if current >= tonumber(ARGV[2]) then
  redis.call("SET", KEYS[2], "1", "PX", ARGV[3])
  redis.call("DEL", KEYS[1])
  return 1
end
return 0
`)

// RedisLoginGuard locks an email after too many consecutive failed logins.
type RedisLoginGuard struct {
	rdb         redis.Cmdable
	maxAttempts int
	lockFor     time.Duration
}

func NewRedisLoginGuard(rdb redis.Cmdable, maxAttempts int, lockFor time.Duration) *RedisLoginGuard {
	return &RedisLoginGuard{rdb: rdb, maxAttempts: maxAttempts, lockFor: lockFor}
}

// Locked returns the remaining lock time, zero when the email is not locked.
func (g *RedisLoginGuard) Locked(ctx context.Context, email string) (time.Duration, error) {
	ttl, err := g.rdb.PTTL(ctx, helpers.KeyLoginLock(email)).Result()
	if err != nil {
		return 0, fmt.Errorf("login lock ttl: %w", err)
	}
	if ttl <= 0 {
		return 0, nil
	}
	return ttl, nil
}

func (g *RedisLoginGuard) Fail(ctx context.Context, email string) (bool, error) {
	res, err := failScript.Run(ctx, g.rdb,
		[]string{helpers.KeyLoginAttempts(email), helpers.KeyLoginLock(email)},
		g.lockFor.Milliseconds(), g.maxAttempts, g.lockFor.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("record failed login: %w", err)
	}
	return res == 1, nil
}

func (g *RedisLoginGuard) Reset(ctx context.Context, email string) error {
	return g.rdb.Del(ctx, helpers.KeyLoginAttempts(email), helpers.KeyLoginLock(email)).Err()
}
