// internal/pkg/ratelimit/limiter.go
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limit is the number of attempts allowed per window.
type Limit struct {
	Attempts int64
	Window   time.Duration
}

// RedisLimiter counts attempts in fixed windows shared by every instance.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	limit  Limit
}

func NewRedisLimiter(client *redis.Client, prefix string, limit Limit) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: prefix, limit: limit}
}

func (r *RedisLimiter) key(key string) string {
	return fmt.Sprintf("ratelimit:%s:%s", r.prefix, key)
}

// Allow records one attempt for key and reports whether it is within the
// limit. The counter and its expiry are written in one MULTI so a counter
// can never outlive its window.
func (r *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := r.key(key)

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireNX(ctx, redisKey, r.limit.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to record attempt: %w", err)
	}

	return incr.Val() <= r.limit.Attempts, nil
}

// Reset clears the counter for key.
func (r *RedisLimiter) Reset(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to reset attempts: %w", err)
	}
	return nil
}

// MemoryLimiter is the single-node fallback used when Redis is disabled.
type MemoryLimiter struct {
	mu      sync.Mutex
	limit   Limit
	now     func() time.Time
	windows map[string]window
}

type window struct {
	count   int64
	expires time.Time
}

func NewMemoryLimiter(limit Limit) *MemoryLimiter {
	return &MemoryLimiter{limit: limit, now: time.Now, windows: make(map[string]window)}
}

func (m *MemoryLimiter) Allow(ctx context.Context, key string) (bool, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	w, ok := m.windows[key]
	if !ok || !now.Before(w.expires) {
		w = window{expires: now.Add(m.limit.Window)}
	}
	w.count++
	m.windows[key] = w

	// drop stale windows so idle keys do not accumulate
	if len(m.windows) > 10000 {
		for k, v := range m.windows {
			if !now.Before(v.expires) {
				delete(m.windows, k)
			}
		}
	}

	return w.count <= m.limit.Attempts, nil
}

func (m *MemoryLimiter) Reset(ctx context.Context, key string) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.windows, key)
	return nil
}
