package retrieval

import (
	"errors"
	"sync"
	"time"
)

// ErrBreakerOpen is returned when the retrieval backend is considered down
// and calls are being shed.
var ErrBreakerOpen = errors.New("retrieval circuit breaker open")

// BreakerState represents the state of the circuit breaker
type BreakerState string

const (
	// BreakerClosed allows requests to pass through
	BreakerClosed BreakerState = "closed"
	// BreakerOpen blocks all requests
	BreakerOpen BreakerState = "open"
	// BreakerHalfOpen allows limited requests for testing
	BreakerHalfOpen BreakerState = "half-open"
)

// Breaker implements the circuit breaker pattern for the search backend.
type Breaker struct {
	mu           sync.RWMutex
	failures     int
	lastFailure  time.Time
	state        BreakerState
	successCount int

	// Configuration
	failureThreshold  int
	successThreshold  int
	openStateDuration time.Duration
}

// NewBreaker creates a circuit breaker with the given thresholds. Zero values
// fall back to sensible defaults.
func NewBreaker(failureThreshold, successThreshold int, openDuration time.Duration) *Breaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if successThreshold <= 0 {
		successThreshold = 2
	}
	if openDuration <= 0 {
		openDuration = 30 * time.Second
	}

	return &Breaker{
		state:             BreakerClosed,
		failureThreshold:  failureThreshold,
		successThreshold:  successThreshold,
		openStateDuration: openDuration,
	}
}

// RecordSuccess records a successful search call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerHalfOpen {
		b.successCount++
		if b.successCount >= b.successThreshold {
			b.state = BreakerClosed
			b.failures = 0
			b.successCount = 0
		}
	} else if b.state == BreakerClosed {
		b.failures = 0
	}
}

// RecordFailure records a failed search call.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = time.Now()

	if b.state == BreakerHalfOpen {
		// Failure while probing, go back to open
		b.state = BreakerOpen
		b.successCount = 0
		return
	}

	if b.failures >= b.failureThreshold {
		b.state = BreakerOpen
	}
}

// CanExecute checks if a search call may proceed.
func (b *Breaker) CanExecute() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerClosed || b.state == BreakerHalfOpen {
		return true
	}

	// Open state: probe after the cooldown elapses
	if time.Since(b.lastFailure) > b.openStateDuration {
		b.state = BreakerHalfOpen
		b.successCount = 0
		return true
	}

	return false
}

// GetState returns the current state of the circuit breaker.
func (b *Breaker) GetState() BreakerState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Reset resets the circuit breaker to closed state.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = BreakerClosed
	b.failures = 0
	b.successCount = 0
	b.lastFailure = time.Time{}
}
