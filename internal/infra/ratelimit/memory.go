package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter keeps windows in process memory. Counts are local to one
// instance and are lost on restart.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	max     int
	period  time.Duration
	now     func() time.Time
}

func NewMemoryLimiter(max int, period time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		windows: make(map[string]*window),
		max:     max,
		period:  period,
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, identity, route string) error {
	now := l.now()
	k := key(identity, route)

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[k]
	if !ok || !now.Before(w.resetAt) {
		l.windows[k] = &window{count: 1, resetAt: now.Add(l.period)}
		return nil
	}
	if w.count >= l.max {
		return &LimitedError{RetryAfter: w.resetAt.Sub(now)}
	}
	w.count++
	return nil
}

// Cleanup drops windows that have already expired.
func (l *MemoryLimiter) Cleanup() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for k, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, k)
			removed++
		}
	}
	return removed
}

// StartCleanup sweeps expired windows every interval until ctx is done.
func (l *MemoryLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.Cleanup()
			}
		}
	}()
}
