// Package ratelimit provides per-key request limiters for the Agent API.
package ratelimit

import (
	"context"
	"time"
)

// Result describes the outcome of a single Allow call.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	Reset      time.Time
	RetryAfter time.Duration
}

// Limiter decides whether a request identified by key may proceed.
// limit is the number of requests permitted per window.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int) (Result, error)
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, with a minimum of 1.
func (r Result) RetryAfterSeconds() int {
	secs := int((r.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

func windowStart(now time.Time, window time.Duration) time.Time {
	return now.Truncate(window)
}

func remaining(limit, used int) int {
	if used >= limit {
		return 0
	}
	return limit - used
}
