package services

import (
	"context"
	"sync"
	"time"
)

// Limiter bounds request frequency per client key using a fixed window.
// Bursts at window boundaries are possible.
type Limiter interface {
	// Allow reports whether the request may proceed. At or above the limit it
	// returns false without counting the rejected request.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	// Remaining returns how much of the quota is left in the current window.
	Remaining(ctx context.Context, key string, limit int) int
	// ResetAt returns when the current window for key ends, or the zero time
	// when no window is open.
	ResetAt(ctx context.Context, key string) time.Time
}

type fixedWindow struct {
	count   int
	resetAt time.Time
}

// FixedWindowLimiter keeps per-key counters in process memory. State does not
// survive restarts and is not shared across instances; use RedisLimiter when
// multiple instances must share quotas.
type FixedWindowLimiter struct {
	mu      sync.Mutex
	windows map[string]*fixedWindow
	now     func() time.Time
}

func NewFixedWindowLimiter() *FixedWindowLimiter {
	return &FixedWindowLimiter{
		windows: map[string]*fixedWindow{},
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (l *FixedWindowLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		l.windows[key] = &fixedWindow{count: 1, resetAt: now.Add(window)}
		return true, nil
	}
	if w.count >= limit {
		return false, nil
	}
	w.count++
	return true, nil
}

func (l *FixedWindowLimiter) Remaining(_ context.Context, key string, limit int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.windows[key]
	if !ok || !l.now().Before(w.resetAt) {
		return limit
	}
	if w.count >= limit {
		return 0
	}
	return limit - w.count
}

func (l *FixedWindowLimiter) ResetAt(_ context.Context, key string) time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.windows[key]
	if !ok || !l.now().Before(w.resetAt) {
		return time.Time{}
	}
	return w.resetAt
}
