package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	client.FlushDB(ctx)

	t.Cleanup(func() {
		client.FlushDB(ctx)
		client.Close()
	})

	return client
}

func TestRedisLimiterAllow(t *testing.T) {
	ctx := context.Background()
	client := setupTestRedis(t)
	limiter := NewRedisLimiter(client, "redeem", Limit{Attempts: 3, Window: time.Minute})

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, allowed, "attempt %d should be allowed", i+1)
	}

	allowed, err := limiter.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, allowed, "4th attempt should be denied")

	ttl, err := client.TTL(ctx, "ratelimit:redeem:u1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0), "the counter always carries an expiry")
	assert.LessOrEqual(t, ttl, time.Minute)

	allowed, err = limiter.Allow(ctx, "u2")
	require.NoError(t, err)
	assert.True(t, allowed)

	require.NoError(t, limiter.Reset(ctx, "u1"))
	allowed, err = limiter.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, allowed, "reset starts a fresh window")
}

func TestRedisLimiterReportsErrors(t *testing.T) {
	client := setupTestRedis(t)
	limiter := NewRedisLimiter(client, "redeem", Limit{Attempts: 3, Window: time.Minute})
	require.NoError(t, client.Close())

	allowed, err := limiter.Allow(context.Background(), "u1")
	assert.Error(t, err)
	assert.False(t, allowed)
}

func TestMemoryLimiterWindow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewMemoryLimiter(Limit{Attempts: 2, Window: time.Minute})
	limiter.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		allowed, err := limiter.Allow(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	allowed, _ := limiter.Allow(ctx, "u1")
	assert.False(t, allowed)

	now = now.Add(time.Minute)
	allowed, _ = limiter.Allow(ctx, "u1")
	assert.True(t, allowed, "a new window starts after expiry")

	allowed, _ = limiter.Allow(ctx, "u1")
	assert.True(t, allowed)
	allowed, _ = limiter.Allow(ctx, "u1")
	assert.False(t, allowed)
	require.NoError(t, limiter.Reset(ctx, "u1"))
	allowed, _ = limiter.Allow(ctx, "u1")
	assert.True(t, allowed, "reset clears the window")
}
