package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type bucket struct {
	limiter *rate.Limiter
	limit   int
}

// TokenBucket keeps one rate.Limiter per key. Each bucket holds up to
// limit tokens and refills limit tokens per window.
type TokenBucket struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	window  time.Duration
	now     func() time.Time
}

// NewTokenBucket creates an in-process token bucket limiter.
func NewTokenBucket(window time.Duration) *TokenBucket {
	return &TokenBucket{
		buckets: make(map[string]*bucket),
		window:  window,
		now:     time.Now,
	}
}

func (tb *TokenBucket) bucketFor(key string, limit int) *rate.Limiter {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if limit < 1 {
		limit = 1
	}
	b, ok := tb.buckets[key]
	if !ok || b.limit != limit {
		every := tb.window / time.Duration(limit)
		b = &bucket{limiter: rate.NewLimiter(rate.Every(every), limit), limit: limit}
		tb.buckets[key] = b
	}
	return b.limiter
}

// Allow implements Limiter.
func (tb *TokenBucket) Allow(_ context.Context, key string, limit int) (Result, error) {
	now := tb.now()
	lim := tb.bucketFor(key, limit)

	res := Result{Limit: limit}
	reservation := lim.ReserveN(now, 1)
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		res.RetryAfter = delay
		res.Reset = now.Add(delay)
		return res, nil
	}

	tokens := lim.TokensAt(now)
	res.Allowed = true
	res.Remaining = int(tokens)
	// Time until the bucket is full again.
	missing := float64(limit) - tokens
	res.Reset = now.Add(time.Duration(missing * float64(tb.window) / float64(limit)))
	return res, nil
}
