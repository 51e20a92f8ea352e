// Package ratelimit counts login attempts per key in a fixed window.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Result describes one counted attempt.
type Result struct {
	Allowed    bool
	Limit      int
	Current    int
	RetryAfter time.Duration
}

// Limiter counts attempts. Hit records one attempt; Reset clears the key,
// typically after a successful login.
type Limiter interface {
	Hit(ctx context.Context, key string) (Result, error)
	Reset(ctx context.Context, key string) error
}

// hitScript increments the counter and starts the window on first use.
var hitScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {n, redis.call("PTTL", KEYS[1])}
`)

type redisClient interface {
	redis.Scripter
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisLimiter shares attempt counters between API instances
type RedisLimiter struct {
	client redisClient
	limit  int
	window time.Duration
	prefix string
}

func NewRedisLimiter(client redisClient, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, window: window, prefix: "login_attempts:"}
}

func (l *RedisLimiter) Hit(ctx context.Context, key string) (Result, error) {
	vals, err := hitScript.Run(ctx, l.client, []string{l.prefix + key}, l.window.Milliseconds()).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("failed to count attempt: %w", err)
	}
	current := int(vals[0])
	ttl := time.Duration(vals[1]) * time.Millisecond
	if ttl < 0 {
		ttl = l.window
	}
	return result(current, l.limit, ttl), nil
}

func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to reset attempts: %w", err)
	}
	return nil
}

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter keeps counters in process. Used when Redis is not configured.
type MemoryLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	entries map[string]*window
	now     func() time.Time
}

func NewMemoryLimiter(limit int, w time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		window:  w,
		entries: map[string]*window{},
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Hit(_ context.Context, key string) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[key]
	if !ok || !now.Before(e.resetAt) {
		e = &window{resetAt: now.Add(l.window)}
		l.entries[key] = e
	}
	e.count++
	return result(e.count, l.limit, e.resetAt.Sub(now)), nil
}

func (l *MemoryLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
	return nil
}

func result(current, limit int, remaining time.Duration) Result {
	r := Result{Allowed: current <= limit, Limit: limit, Current: current}
	if !r.Allowed {
		r.RetryAfter = remaining
	}
	return r
}

// RetryAfterSeconds rounds a wait up to whole seconds, never below one.
func RetryAfterSeconds(d time.Duration) int {
	s := int((d + time.Second - 1) / time.Second)
	if s < 1 {
		s = 1
	}
	return s
}
