package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/oksasatya/anaqa-user-service/pkg/apperror"
)

const rateLimitMessage = "Too many requests from this IP, please try again later."

// Decision is the outcome of one limiter hit.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Duration
}

// Limiter counts hits per key.
type Limiter interface {
	Hit(ctx context.Context, key string) (Decision, error)
}

// KeyFunc builds a rate-limit key from the request.
type KeyFunc func(c *gin.Context) string

// KeyByIP limits by client IP only.
func KeyByIP() KeyFunc {
	return func(c *gin.Context) string { return "rl:ip:" + ClientIP(c) }
}

// KeyByIPAndPath limits by client IP and route.
func KeyByIPAndPath() KeyFunc {
	return func(c *gin.Context) string {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		return "rl:path:" + path + ":ip:" + ClientIP(c)
	}
}

// KeyByUserID limits authenticated callers by id and anonymous ones by IP.
func KeyByUserID() KeyFunc {
	return func(c *gin.Context) string {
		if uid := UserID(c); uid != "" {
			return "rl:user:" + uid
		}
		return "rl:user:anon:ip:" + ClientIP(c)
	}
}

// AllowFunc returns true to bypass the limit.
type AllowFunc func(*gin.Context) bool

// RateLimit rejects requests over the limiter's budget with 429 and sets the
// X-RateLimit-* headers. OPTIONS requests and allow-listed requests pass
// untouched. Limiter errors fail open.
func RateLimit(l Limiter, keyFn KeyFunc, allow AllowFunc) gin.HandlerFunc {
	if l == nil || keyFn == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		if allow != nil && allow(c) {
			c.Next()
			return
		}
		if strings.EqualFold(c.Request.Method, http.MethodOptions) {
			c.Next()
			return
		}

		d, err := l.Hit(c.Request.Context(), keyFn(c))
		if err != nil {
			c.Next()
			return
		}

		resetSec := int(math.Ceil(d.Reset.Seconds()))
		c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(max(d.Remaining, 0)))
		c.Header("X-RateLimit-Reset", strconv.Itoa(resetSec))

		if !d.Allowed {
			if resetSec > 0 {
				c.Header("Retry-After", strconv.Itoa(resetSec))
			}
			Fail(c, apperror.RateLimited(rateLimitMessage, resetSec))
			return
		}
		c.Next()
	}
}

// Atomic INCR with the window set on the first hit; returns count and PTTL.
var incrExpireScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {current, redis.call("PTTL", KEYS[1])}
`)

// RedisLimiter is a fixed-window counter shared by every instance.
type RedisLimiter struct {
	rdb    redis.Scripter
	max    int
	window time.Duration
}

func NewRedisLimiter(rdb redis.Scripter, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, max: limit, window: window}
}

func (l *RedisLimiter) Hit(ctx context.Context, key string) (Decision, error) {
	res, err := incrExpireScript.Run(ctx, l.rdb, []string{key}, l.window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, err
	}
	count, pttl := int(res[0]), res[1]
	reset := l.window
	if pttl > 0 {
		reset = time.Duration(pttl) * time.Millisecond
	}
	return Decision{
		Allowed:   count <= l.max,
		Limit:     l.max,
		Remaining: l.max - count,
		Reset:     reset,
	}, nil
}

// LocalLimiter keeps a token bucket per key in process memory. Used when
// Redis is not configured; limits are per instance.
type LocalLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	max     int
	every   rate.Limit
	idle    time.Duration
	now     func() time.Time
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

func NewLocalLimiter(limit int, window time.Duration) *LocalLimiter {
	return &LocalLimiter{
		buckets: make(map[string]*bucket),
		max:     limit,
		every:   rate.Limit(float64(limit) / window.Seconds()),
		idle:    window,
		now:     time.Now,
	}
}

func (l *LocalLimiter) Hit(_ context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		l.sweep(now)
		b = &bucket{lim: rate.NewLimiter(l.every, l.max)}
		l.buckets[key] = b
	}
	b.seen = now

	allowed := b.lim.AllowN(now, 1)
	tokens := b.lim.TokensAt(now)
	d := Decision{Allowed: allowed, Limit: l.max, Remaining: int(tokens)}
	if !allowed {
		d.Reset = l.wait(1 - tokens)
	} else {
		d.Reset = l.wait(float64(l.max) - tokens)
	}
	return d, nil
}

func (l *LocalLimiter) wait(tokens float64) time.Duration {
	if tokens <= 0 || l.every <= 0 {
		return 0
	}
	return time.Duration(tokens / float64(l.every) * float64(time.Second))
}

// sweep drops buckets untouched for a full window; they would be full anyway.
func (l *LocalLimiter) sweep(now time.Time) {
	for k, b := range l.buckets {
		if now.Sub(b.seen) > l.idle {
			delete(l.buckets, k)
		}
	}
}

// LimiterFactory builds a limiter for one route budget.
type LimiterFactory func(limit int, window time.Duration) Limiter

// Limiters shares budgets through Redis when rdb is set and keeps them in
// process memory otherwise.
func Limiters(rdb *redis.Client) LimiterFactory {
	return func(limit int, window time.Duration) Limiter {
		if rdb == nil {
			return NewLocalLimiter(limit, window)
		}
		return NewRedisLimiter(rdb, limit, window)
	}
}
