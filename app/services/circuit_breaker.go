// Package services provides external service integrations and technical concerns like advisory scoring and tokens
package services

import (
	"sync"
	"time"

	"github.com/amirphl/Kusanagi/utils"
)

// Circuit breaker defaults
const (
	DefaultBreakerFailureThreshold = 5
	DefaultBreakerOpenDuration     = 30 * time.Second
)

// CircuitBreaker gates calls to a degraded external dependency. After a fixed
// number of consecutive failures it opens for a cooldown period. The first
// IsOpen read after the cooldown elapses closes the breaker again and resets
// the failure counter; there is no trial-call state in between.
type CircuitBreaker struct {
	mu           sync.Mutex
	failures     int
	openedAt     *time.Time
	threshold    int
	openDuration time.Duration
	clock        utils.Clock
}

// NewCircuitBreaker creates a breaker with the given threshold and cooldown.
// A nil clock falls back to UTC wall time.
func NewCircuitBreaker(threshold int, openDuration time.Duration, clock utils.Clock) *CircuitBreaker {
	if threshold <= 0 {
		threshold = DefaultBreakerFailureThreshold
	}
	if openDuration <= 0 {
		openDuration = DefaultBreakerOpenDuration
	}
	if clock == nil {
		clock = utils.UTCNow
	}
	return &CircuitBreaker{
		threshold:    threshold,
		openDuration: openDuration,
		clock:        clock,
	}
}

// IsOpen reports whether calls should currently be skipped. Reading it after
// the cooldown has elapsed closes the breaker and zeroes the failure counter.
func (b *CircuitBreaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.openedAt == nil {
		return false
	}
	if b.clock().Sub(*b.openedAt) >= b.openDuration {
		b.openedAt = nil
		b.failures = 0
		return false
	}
	return true
}

// RecordFailure counts one failed call. Reaching the threshold opens the breaker.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	if b.failures >= b.threshold && b.openedAt == nil {
		now := b.clock()
		b.openedAt = &now
	}
}

// RecordSuccess resets the consecutive failure counter and closes the breaker.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.openedAt = nil
}

// FailureCount returns the current consecutive failure count.
func (b *CircuitBreaker) FailureCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}
