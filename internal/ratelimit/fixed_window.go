package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	mu         sync.Mutex
	start      time.Time
	count      int
	lastAccess time.Time
}

// FixedWindow counts requests per key in aligned windows held in memory.
// Counters are not shared between processes.
type FixedWindow struct {
	store  sync.Map // map[string]*window
	window time.Duration
	idle   time.Duration
	now    func() time.Time
}

// NewFixedWindow creates an in-process fixed window limiter. The janitor
// evicting idle keys runs until ctx is cancelled.
func NewFixedWindow(ctx context.Context, window time.Duration) *FixedWindow {
	fw := &FixedWindow{
		window: window,
		idle:   10 * window,
		now:    time.Now,
	}
	go fw.cleanupLoop(ctx)
	return fw
}

func (fw *FixedWindow) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(fw.idle)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fw.evictIdle()
		}
	}
}

func (fw *FixedWindow) evictIdle() {
	now := fw.now()
	fw.store.Range(func(key, value any) bool {
		w := value.(*window)
		w.mu.Lock()
		if now.Sub(w.lastAccess) > fw.idle {
			fw.store.Delete(key)
		}
		w.mu.Unlock()
		return true
	})
}

// Allow implements Limiter.
func (fw *FixedWindow) Allow(_ context.Context, key string, limit int) (Result, error) {
	now := fw.now()
	start := windowStart(now, fw.window)

	val, _ := fw.store.LoadOrStore(key, &window{start: start, lastAccess: now})
	w := val.(*window)

	w.mu.Lock()
	defer w.mu.Unlock()

	w.lastAccess = now
	if w.start.Before(start) {
		w.start = start
		w.count = 0
	}

	reset := w.start.Add(fw.window)
	res := Result{Limit: limit, Reset: reset}

	if w.count >= limit {
		res.RetryAfter = reset.Sub(now)
		return res, nil
	}

	w.count++
	res.Allowed = true
	res.Remaining = remaining(limit, w.count)
	return res, nil
}
