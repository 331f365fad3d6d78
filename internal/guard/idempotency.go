package guard

import (
	"context"
	"sync"
	"time"

	"github.com/attaboy/payouts/internal/domain"
)

// IdempotencyGuard rejects a second concurrent run of the same operation key,
// such as processing one batch twice at once. A key is held until Release or
// until ttl passes, so a crashed holder cannot block the key forever.
type IdempotencyGuard struct {
	mu   sync.Mutex
	held map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

// NewIdempotencyGuard creates an in-memory guard. A zero ttl defaults to 10m.
func NewIdempotencyGuard(ttl time.Duration) *IdempotencyGuard {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &IdempotencyGuard{
		held: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Acquire claims key. An empty key is always allowed.
func (ig *IdempotencyGuard) Acquire(_ context.Context, key string) domain.GuardResult {
	if key == "" {
		return domain.GuardResult{Allowed: true}
	}

	ig.mu.Lock()
	defer ig.mu.Unlock()

	now := ig.now()
	if since, ok := ig.held[key]; ok && now.Sub(since) < ig.ttl {
		return domain.GuardResult{
			Allowed: false,
			Reason:  "operation already in progress for " + key,
			Guard:   "idempotency",
		}
	}
	ig.held[key] = now
	return domain.GuardResult{Allowed: true}
}

// Release frees key.
func (ig *IdempotencyGuard) Release(key string) {
	ig.mu.Lock()
	defer ig.mu.Unlock()
	delete(ig.held, key)
}
