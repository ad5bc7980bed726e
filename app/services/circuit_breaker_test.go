package services

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock is a controllable clock shared by the tests in this package.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	clock := newFakeClock()
	breaker := NewCircuitBreaker(5, 30*time.Second, clock.Now)

	for i := 0; i < 4; i++ {
		breaker.RecordFailure()
		assert.False(t, breaker.IsOpen(), "breaker must stay closed below the threshold")
	}

	breaker.RecordFailure()
	assert.True(t, breaker.IsOpen(), "fifth consecutive failure must open the breaker")
	assert.Equal(t, 5, breaker.FailureCount())
}

func TestCircuitBreakerClosesAfterCooldown(t *testing.T) {
	clock := newFakeClock()
	breaker := NewCircuitBreaker(5, 30*time.Second, clock.Now)

	for i := 0; i < 5; i++ {
		breaker.RecordFailure()
	}
	assert.True(t, breaker.IsOpen())

	clock.Advance(29 * time.Second)
	assert.True(t, breaker.IsOpen(), "breaker must stay open before the cooldown elapses")

	clock.Advance(1 * time.Second)
	assert.False(t, breaker.IsOpen(), "breaker must close once the cooldown elapses")
	assert.Equal(t, 0, breaker.FailureCount(), "closing must reset the failure counter")
}

func TestCircuitBreakerSuccessResetsFailures(t *testing.T) {
	clock := newFakeClock()
	breaker := NewCircuitBreaker(5, 30*time.Second, clock.Now)

	for i := 0; i < 4; i++ {
		breaker.RecordFailure()
	}
	breaker.RecordSuccess()
	assert.Equal(t, 0, breaker.FailureCount())

	// Four more failures after the reset must not open the breaker.
	for i := 0; i < 4; i++ {
		breaker.RecordFailure()
	}
	assert.False(t, breaker.IsOpen())

	breaker.RecordFailure()
	assert.True(t, breaker.IsOpen())
}

func TestCircuitBreakerDefaults(t *testing.T) {
	breaker := NewCircuitBreaker(0, 0, nil)

	for i := 0; i < DefaultBreakerFailureThreshold-1; i++ {
		breaker.RecordFailure()
	}
	assert.False(t, breaker.IsOpen())

	breaker.RecordFailure()
	assert.True(t, breaker.IsOpen())
}
