package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is an in-process sliding-window limiter. Each key holds its
// request timestamp history; history older than the window is pruned on every
// admission check, and keys idle for longer than the window are swept
// periodically so the map stays bounded.
type MemoryLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	history map[string][]time.Time

	now  func() time.Time
	stop chan struct{}
	once sync.Once
}

// NewMemoryLimiter creates a limiter allowing limit requests per key per window.
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	l := &MemoryLimiter{
		limit:   limit,
		window:  window,
		history: make(map[string][]time.Time),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go l.sweep()
	return l
}

// Allow records the request and returns true when the key has made fewer
// than limit requests within the window.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.history[key][:0]
	for _, t := range l.history[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= l.limit {
		l.history[key] = kept
		return false, nil
	}

	l.history[key] = append(kept, now)
	return true, nil
}

// Close stops the background sweeper.
func (l *MemoryLimiter) Close() {
	l.once.Do(func() { close(l.stop) })
}

// sweep periodically drops keys whose entire history has aged out.
func (l *MemoryLimiter) sweep() {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			cutoff := l.now().Add(-l.window)
			l.mu.Lock()
			for key, times := range l.history {
				idle := true
				for _, t := range times {
					if t.After(cutoff) {
						idle = false
						break
					}
				}
				if idle {
					delete(l.history, key)
				}
			}
			l.mu.Unlock()
		}
	}
}
