package guard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/attaboy/payouts/internal/domain"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// CircuitBreaker trips per downstream key (e.g. "xendit") after consecutive
// failures. While open, calls are rejected without reaching the provider;
// after resetTimeout a single probe is let through.
type CircuitBreaker struct {
	mu            sync.Mutex
	circuits      map[string]*circuit
	failThreshold int
	resetTimeout  time.Duration
	now           func() time.Time
}

type circuit struct {
	state       CircuitState
	failures    int
	probing     bool
	lastFailure time.Time
}

// NewCircuitBreaker creates a breaker. A threshold below 1 is treated as 1.
func NewCircuitBreaker(failThreshold int, resetTimeout time.Duration) *CircuitBreaker {
	if failThreshold < 1 {
		failThreshold = 1
	}
	return &CircuitBreaker{
		circuits:      make(map[string]*circuit),
		failThreshold: failThreshold,
		resetTimeout:  resetTimeout,
		now:           time.Now,
	}
}

func (cb *CircuitBreaker) get(key string) *circuit {
	c, ok := cb.circuits[key]
	if !ok {
		c = &circuit{state: CircuitClosed}
		cb.circuits[key] = c
	}
	return c
}

// Check reports whether a call to key may proceed.
func (cb *CircuitBreaker) Check(_ context.Context, key string) domain.GuardResult {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c := cb.get(key)
	switch c.state {
	case CircuitOpen:
		elapsed := cb.now().Sub(c.lastFailure)
		if elapsed < cb.resetTimeout {
			return domain.GuardResult{
				Allowed: false,
				Reason:  fmt.Sprintf("%s circuit open, retry in %s", key, (cb.resetTimeout - elapsed).Round(time.Second)),
				Guard:   "circuit_breaker",
			}
		}
		c.state = CircuitHalfOpen
		c.probing = true
		return domain.GuardResult{Allowed: true}
	case CircuitHalfOpen:
		if c.probing {
			return domain.GuardResult{
				Allowed: false,
				Reason:  fmt.Sprintf("%s circuit half-open, probe in flight", key),
				Guard:   "circuit_breaker",
			}
		}
		c.probing = true
		return domain.GuardResult{Allowed: true}
	default:
		return domain.GuardResult{Allowed: true}
	}
}

// RecordSuccess closes the circuit for key.
func (cb *CircuitBreaker) RecordSuccess(key string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c := cb.get(key)
	c.state = CircuitClosed
	c.failures = 0
	c.probing = false
}

// RecordFailure counts a failure; a failed probe reopens the circuit at once.
func (cb *CircuitBreaker) RecordFailure(key string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c := cb.get(key)
	c.failures++
	c.lastFailure = cb.now()
	c.probing = false
	if c.state == CircuitHalfOpen || c.failures >= cb.failThreshold {
		c.state = CircuitOpen
	}
}

// State returns the current state for key.
func (cb *CircuitBreaker) State(key string) CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if c, ok := cb.circuits[key]; ok {
		return c.state
	}
	return CircuitClosed
}
