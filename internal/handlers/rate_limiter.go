package handlers

import (
	"strings"
	"sync"
	"time"
)

// rateLimiter throttles repeated attempts per key within a fixed window.
type rateLimiter interface {
	Allow(key string) bool
}

type windowLimiter struct {
	limit     int
	window    time.Duration
	clock     func() time.Time
	mu        sync.Mutex
	attempts  map[string]attemptWindow
	lastSweep time.Time
}

type attemptWindow struct {
	count     int
	expiresAt time.Time
}

func newSimpleRateLimiter(limit int, window time.Duration, clock func() time.Time) rateLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	return &windowLimiter{
		limit:    limit,
		window:   window,
		clock:    clock,
		attempts: make(map[string]attemptWindow),
	}
}

func (l *windowLimiter) Allow(key string) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		key = "-"
	}
	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.window {
		for k, w := range l.attempts {
			if !now.Before(w.expiresAt) {
				delete(l.attempts, k)
			}
		}
		l.lastSweep = now
	}

	current, ok := l.attempts[key]
	if !ok || !now.Before(current.expiresAt) {
		current = attemptWindow{expiresAt: now.Add(l.window)}
	}
	if current.count >= l.limit {
		return false
	}
	current.count++
	l.attempts[key] = current
	return true
}
