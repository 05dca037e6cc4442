// Package ratelimit throttles write-heavy endpoints per caller.
//
// Two backends implement Limiter: RedisLimiter keeps a fixed-window counter
// in Redis so every replica shares the same budget, MemoryLimiter keeps a
// token bucket per key in process for single-instance deployments and tests.
package ratelimit

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/time/rate"
)

// Limiter reports whether one more request for key fits in the budget.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// ============================================================================
// Redis
// ============================================================================

type counter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
}

// RedisLimiter allows limit requests per window for each key.
type RedisLimiter struct {
	client counter
	prefix string
	limit  int
	window time.Duration
}

func NewRedisLimiter(client *redis.Client, prefix string, limit int, window time.Duration) *RedisLimiter {
	return newRedisLimiter(client, prefix, limit, window)
}

func newRedisLimiter(client counter, prefix string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: prefix, limit: limit, window: window}
}

// NewRedisClient parses a redis:// URL and checks the connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := l.prefix + key

	n, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return false, err
	}
	// First hit opens the window. A counter left without a TTL (the first
	// EXPIRE failed) gets one on the next hit instead of living forever.
	expire := n == 1
	if !expire {
		ttl, err := l.client.TTL(ctx, k).Result()
		if err != nil {
			return false, err
		}
		expire = ttl == -1
	}
	if expire {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return false, err
		}
	}
	return n <= int64(l.limit), nil
}

// ============================================================================
// In memory
// ============================================================================

// MemoryLimiter is a token bucket per key: limit tokens refilled evenly over
// window, with a burst of limit.
//
// At most once per window, buckets that have refilled completely are dropped.
// A full bucket behaves exactly like a new one, so the map only holds keys
// seen within roughly the last window.
type MemoryLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	every     rate.Limit
	burst     int
	window    time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limiters: make(map[string]*rate.Limiter),
		every:    rate.Limit(float64(limit) / window.Seconds()),
		burst:    limit,
		window:   window,
		now:      time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := l.now()

	l.mu.Lock()
	l.sweep(now)
	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(l.every, l.burst)
		l.limiters[key] = limiter
	}
	l.mu.Unlock()

	return limiter.AllowN(now, 1), nil
}

// sweep drops full buckets. Callers hold l.mu.
func (l *MemoryLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	l.lastSweep = now
	for k, lim := range l.limiters {
		if lim.TokensAt(now) >= float64(l.burst) {
			delete(l.limiters, k)
		}
	}
}

// ============================================================================
// Middleware
// ============================================================================

// KeyFunc extracts the throttling key from a request. Returning false skips
// the limiter for that request.
type KeyFunc func(r *http.Request) (string, bool)

// Middleware rejects requests over budget with 429. A backend error is
// logged and the request is let through.
func Middleware(limiter Limiter, key KeyFunc, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k, ok := key(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			allowed, err := limiter.Allow(r.Context(), k)
			if err != nil {
				logger.Warn("rate limiter unavailable",
					slog.String("key", k),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{
					"error":   "rate_limited",
					"message": "Too many requests. Try again later.",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// UserKey builds a KeyFunc from a function that returns the caller's id.
func UserKey(userID func(r *http.Request) (int64, bool)) KeyFunc {
	return func(r *http.Request) (string, bool) {
		id, ok := userID(r)
		if !ok {
			return "", false
		}
		return strconv.FormatInt(id, 10), true
	}
}
