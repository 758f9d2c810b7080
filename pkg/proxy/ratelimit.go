package proxy

import (
	"sync"
	"time"
)

// RateLimiter caps requests per client in fixed one-minute windows.
type RateLimiter struct {
	mu            sync.Mutex
	requestCounts map[string]int
	lastReset     time.Time
	limit         int
}

// NewRateLimiter creates a limiter allowing requestsPerMinute per
// client. A non-positive limit allows everything.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	return &RateLimiter{
		requestCounts: make(map[string]int),
		lastReset:     time.Now(),
		limit:         requestsPerMinute,
	}
}

// Allow reports whether the client may issue another request in the
// current window.
func (rl *RateLimiter) Allow(clientID string) bool {
	if rl.limit <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastReset) >= time.Minute {
		rl.requestCounts = make(map[string]int)
		rl.lastReset = now
	}

	count := rl.requestCounts[clientID]
	if count >= rl.limit {
		return false
	}
	rl.requestCounts[clientID] = count + 1
	return true
}
