package handlers

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/fitbuddy/fitbuddy-hub/pkg/circuitbreaker"
)

// RateLimiter decides whether a client may make another request.
// The Redis fixed-window limiter and LocalRateLimiter both satisfy it.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// LocalRateLimiter keeps one token bucket per client in process memory.
// It is the fallback when Redis is disabled; limits are per instance.
type LocalRateLimiter struct {
	limit rate.Limit
	burst int
	idle  time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLocalRateLimiter allows requests per window with bursts up to requests.
func NewLocalRateLimiter(requests int, window time.Duration) *LocalRateLimiter {
	if requests < 1 {
		requests = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &LocalRateLimiter{
		limit:   rate.Limit(float64(requests) / window.Seconds()),
		burst:   requests,
		idle:    2 * window,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Allow takes a token for key.
func (l *LocalRateLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := l.now()

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	return b.limiter.AllowN(now, 1), nil
}

// Run evicts idle buckets until ctx is done.
func (l *LocalRateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(l.idle)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.evictIdle()
		}
	}
}

func (l *LocalRateLimiter) evictIdle() int {
	cutoff := l.now().Add(-l.idle)

	l.mu.Lock()
	defer l.mu.Unlock()

	evicted := 0
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
			evicted++
		}
	}
	return evicted
}

// FallbackRateLimiter asks primary through a circuit breaker and answers
// from fallback while primary is failing or the circuit is open.
type FallbackRateLimiter struct {
	primary  RateLimiter
	fallback RateLimiter
	breaker  *circuitbreaker.CircuitBreaker
}

// NewFallbackRateLimiter combines a shared limiter with a local one.
func NewFallbackRateLimiter(primary, fallback RateLimiter, breaker *circuitbreaker.CircuitBreaker) *FallbackRateLimiter {
	return &FallbackRateLimiter{primary: primary, fallback: fallback, breaker: breaker}
}

// Allow implements RateLimiter.
func (l *FallbackRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	var allowed bool
	err := l.breaker.ExecuteWithFallback(ctx,
		func(ctx context.Context) error {
			var err error
			allowed, err = l.primary.Allow(ctx, key)
			return err
		},
		func(error) error {
			var err error
			allowed, err = l.fallback.Allow(ctx, key)
			return err
		},
	)
	return allowed, err
}
