package guard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/attaboy/payouts/internal/domain"
)

// RateLimiter implements a sliding window rate limiter keyed by caller.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	limit   int
	window  time.Duration
	now     func() time.Time
}

// NewRateLimiter creates a rate limiter with the given limit per window. A
// limit below 1 disables limiting.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		windows: make(map[string][]time.Time),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// Check records a hit for key and reports whether it is within the limit.
func (rl *RateLimiter) Check(_ context.Context, key string) domain.GuardResult {
	if rl.limit < 1 {
		return domain.GuardResult{Allowed: true}
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	valid := prune(rl.windows[key], now.Add(-rl.window))

	if len(valid) >= rl.limit {
		rl.windows[key] = valid
		return domain.GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("rate limit exceeded: %d requests per %s", rl.limit, rl.window),
			Guard:   "rate_limiter",
		}
	}

	rl.windows[key] = append(valid, now)
	return domain.GuardResult{Allowed: true}
}

// Sweep drops keys with no hits inside the window.
func (rl *RateLimiter) Sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.window)
	for key, entries := range rl.windows {
		if valid := prune(entries, cutoff); len(valid) == 0 {
			delete(rl.windows, key)
		} else {
			rl.windows[key] = valid
		}
	}
}

func prune(entries []time.Time, cutoff time.Time) []time.Time {
	valid := entries[:0]
	for _, t := range entries {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	return valid
}
