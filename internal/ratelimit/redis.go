package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Redis is a fixed window limiter whose counters live in Redis, so that
// several server instances share a single budget per key.
type Redis struct {
	client  *redis.Client
	window  time.Duration
	baseKey string
	now     func() time.Time
}

// NewRedis connects to redisURL and verifies the connection.
func NewRedis(ctx context.Context, redisURL string, window time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisWithClient(client, window), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, window time.Duration) *Redis {
	return &Redis{
		client:  client,
		window:  window,
		baseKey: "ratelimit",
		now:     time.Now,
	}
}

// Allow implements Limiter. Redis failures let the request through.
func (r *Redis) Allow(ctx context.Context, key string, limit int) (Result, error) {
	now := r.now()
	start := windowStart(now, r.window)
	reset := start.Add(r.window)
	counterKey := fmt.Sprintf("%s:%s:%d", r.baseKey, key, start.Unix())

	res := Result{Limit: limit, Reset: reset}

	count, err := r.client.Incr(ctx, counterKey).Result()
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Rate limiter: redis unavailable, allowing request")
		res.Allowed = true
		res.Remaining = limit
		return res, nil
	}

	if count == 1 {
		if err := r.client.Expire(ctx, counterKey, 2*r.window).Err(); err != nil {
			log.Warn().Err(err).Str("key", counterKey).Msg("Rate limiter: failed to set expiry")
		}
	}

	if count > int64(limit) {
		res.RetryAfter = reset.Sub(now)
		return res, nil
	}

	res.Allowed = true
	res.Remaining = remaining(limit, int(count))
	return res, nil
}

// Close closes the Redis client.
func (r *Redis) Close() error {
	return r.client.Close()
}
