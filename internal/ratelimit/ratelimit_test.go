package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 9, 15, 12, 0, 10, 0, time.UTC)

func fixedClock(t *time.Time) func() time.Time {
	return func() time.Time { return *t }
}

func TestFixedWindow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	now := base
	fw := NewFixedWindow(ctx, time.Minute)
	fw.now = fixedClock(&now)

	for i := 0; i < 3; i++ {
		res, err := fw.Allow(ctx, "key-1", 3)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i+1)
		assert.Equal(t, 2-i, res.Remaining)
	}

	res, err := fw.Allow(ctx, "key-1", 3)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, 50*time.Second, res.RetryAfter)
	assert.Equal(t, 50, res.RetryAfterSeconds())
	assert.Equal(t, time.Date(2025, 9, 15, 12, 1, 0, 0, time.UTC), res.Reset)

	// other keys are independent
	res, err = fw.Allow(ctx, "key-2", 3)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	// next window starts fresh
	now = base.Add(time.Minute)
	res, err = fw.Allow(ctx, "key-1", 3)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 2, res.Remaining)
}

func TestFixedWindowEvictsIdleKeys(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	now := base
	fw := NewFixedWindow(ctx, time.Minute)
	fw.now = fixedClock(&now)

	_, err := fw.Allow(ctx, "idle", 5)
	require.NoError(t, err)

	now = base.Add(11 * time.Minute)
	fw.evictIdle()

	_, ok := fw.store.Load("idle")
	assert.False(t, ok)
}

func TestTokenBucket(t *testing.T) {
	now := base
	tb := NewTokenBucket(time.Minute)
	tb.now = fixedClock(&now)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := tb.Allow(ctx, "key-1", 3)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 2-i, res.Remaining)
	}

	res, err := tb.Allow(ctx, "key-1", 3)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 20*time.Second, res.RetryAfter)

	// one token refills after window/limit
	now = base.Add(20 * time.Second)
	res, err = tb.Allow(ctx, "key-1", 3)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
}

func TestTokenBucketLimitChangeResetsBucket(t *testing.T) {
	now := base
	tb := NewTokenBucket(time.Minute)
	tb.now = fixedClock(&now)
	ctx := context.Background()

	res, err := tb.Allow(ctx, "key-1", 1)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = tb.Allow(ctx, "key-1", 1)
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	res, err = tb.Allow(ctx, "key-1", 5)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 4, res.Remaining)
}

func TestRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	now := base
	rl := NewRedisWithClient(client, time.Minute)
	rl.now = fixedClock(&now)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := rl.Allow(ctx, "key-1", 2)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 1-i, res.Remaining)
	}

	res, err := rl.Allow(ctx, "key-1", 2)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 50*time.Second, res.RetryAfter)

	counterKey := fmt.Sprintf("ratelimit:key-1:%d", base.Truncate(time.Minute).Unix())
	assert.True(t, mr.Exists(counterKey))
	assert.Equal(t, 2*time.Minute, mr.TTL(counterKey))

	// a second limiter sharing the same redis sees the same counter
	other := NewRedisWithClient(client, time.Minute)
	other.now = fixedClock(&now)
	res, err = other.Allow(ctx, "key-1", 2)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
}

func TestRedisFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()

	rl := NewRedisWithClient(client, time.Minute)
	mr.Close()

	res, err := rl.Allow(context.Background(), "key-1", 1)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestResultRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 1, Result{}.RetryAfterSeconds())
	assert.Equal(t, 2, Result{RetryAfter: 1500 * time.Millisecond}.RetryAfterSeconds())
	assert.Equal(t, 60, Result{RetryAfter: time.Minute}.RetryAfterSeconds())
}
