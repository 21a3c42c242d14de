package internal

import (
	"sync"
	"time"
)

// RateLimiter is a sliding-window counter keyed by caller, used to slow down
// abusive user-create and sign-in requests.
type RateLimiter struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	limit  int
	window time.Duration
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		hits:   make(map[string][]time.Time),
		limit:  limit,
		window: window,
	}
}

// Allow records a hit for the key and reports whether it stays within the
// window limit.
func (r *RateLimiter) Allow(key string) bool {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	windowStart := now.Add(-r.window)
	recent := r.hits[key]
	idx := 0
	for _, ts := range recent {
		if ts.After(windowStart) {
			recent[idx] = ts
			idx++
		}
	}
	recent = recent[:idx]
	if len(recent) >= r.limit {
		r.hits[key] = recent
		return false
	}
	r.hits[key] = append(recent, now)
	return true
}
