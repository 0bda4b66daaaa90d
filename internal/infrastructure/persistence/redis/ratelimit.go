package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITER
// ══════════════════════════════════════════════════════════════════════════════

// RateLimiter counts requests per identifier in fixed windows shared by all instances.
type RateLimiter struct {
	client *Client
	limit  int64
	window time.Duration
	now    func() time.Time
}

// NewRateLimiter allows limit requests per window.
func NewRateLimiter(client *Client, limit int, window time.Duration) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		client: client,
		limit:  int64(limit),
		window: window,
		now:    time.Now,
	}
}

// Allow increments the caller's counter and reports whether it is within the limit.
func (l *RateLimiter) Allow(ctx context.Context, identifier string) (bool, error) {
	bucket := l.now().UnixNano() / int64(l.window)
	key := RateLimitKey(identifier, bucket)

	pipe := l.client.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis: rate limit: %w", err)
	}

	return incr.Val() <= l.limit, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LOCK
// ══════════════════════════════════════════════════════════════════════════════

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock is a best-effort mutual exclusion over SETNX.
type Lock struct {
	client *Client
	key    string
	token  string
}

// TryLock acquires resource for ttl. It returns nil, nil when someone else holds it.
func (c *Client) TryLock(ctx context.Context, resource string, ttl time.Duration) (*Lock, error) {
	token := uuid.NewString()
	key := LockKey(resource)

	ok, err := c.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", resource, err)
	}
	if !ok {
		return nil, nil
	}

	return &Lock{client: c, key: key, token: token}, nil
}

// Release frees the lock if it is still ours.
func (l *Lock) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, l.client.rdb, []string{l.key}, l.token).Int()
	if err != nil {
		return fmt.Errorf("redis: release lock: %w", err)
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// Acquire adapts TryLock to callers that only need a release function.
// ok is false when another instance holds the lock.
func (c *Client) Acquire(ctx context.Context, resource string, ttl time.Duration) (func(context.Context) error, bool, error) {
	lock, err := c.TryLock(ctx, resource, ttl)
	if err != nil || lock == nil {
		return nil, false, err
	}
	return lock.Release, true, nil
}
