package provider

import (
	"log/slog"
	"sync"
	"time"

	"github.com/Fantasim/solfan/internal/config"
)

// CircuitBreaker stops traffic to an endpoint that keeps failing.
//
// State machine:
//   - Closed: requests pass; failures count up, threshold trips to Open.
//   - Open: requests are refused until the cooldown elapses, then Half-Open.
//   - Half-Open: a limited number of probes pass. Success closes, failure reopens.
type CircuitBreaker struct {
	mu               sync.Mutex
	name             string
	state            string
	consecutiveFails int
	threshold        int
	cooldown         time.Duration
	lastFailure      time.Time
	halfOpenAllowed  int
	halfOpenCount    int
	now              func() time.Time
}

// NewCircuitBreaker creates a breaker for the named endpoint.
func NewCircuitBreaker(name string, threshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		name:            name,
		state:           config.CircuitClosed,
		threshold:       threshold,
		cooldown:        cooldown,
		halfOpenAllowed: config.CircuitBreakerHalfOpenMax,
		now:             time.Now,
	}
}

// Allow returns true if a request should be allowed through the circuit breaker.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case config.CircuitClosed:
		return true

	case config.CircuitOpen:
		if cb.now().Sub(cb.lastFailure) < cb.cooldown {
			return false
		}
		slog.Debug("circuit breaker half-open",
			"endpoint", cb.name,
			"consecutiveFails", cb.consecutiveFails,
		)
		cb.state = config.CircuitHalfOpen
		cb.halfOpenCount = 1
		return true

	case config.CircuitHalfOpen:
		if cb.halfOpenCount < cb.halfOpenAllowed {
			cb.halfOpenCount++
			return true
		}
		return false

	default:
		return false
	}
}

// RecordSuccess closes the breaker and resets the failure count.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != config.CircuitClosed {
		slog.Info("circuit breaker closed", "endpoint", cb.name, "previousState", cb.state)
	}
	cb.consecutiveFails = 0
	cb.state = config.CircuitClosed
	cb.halfOpenCount = 0
}

// RecordFailure counts a failure and may trip the breaker open.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails++
	cb.lastFailure = cb.now()

	switch {
	case cb.state == config.CircuitHalfOpen:
		slog.Warn("circuit breaker reopened", "endpoint", cb.name, "consecutiveFails", cb.consecutiveFails)
	case cb.state == config.CircuitClosed && cb.consecutiveFails >= cb.threshold:
		slog.Warn("circuit breaker tripped",
			"endpoint", cb.name,
			"consecutiveFails", cb.consecutiveFails,
			"threshold", cb.threshold,
		)
	default:
		return
	}
	cb.state = config.CircuitOpen
	cb.halfOpenCount = 0
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// ConsecutiveFailures returns the current failure count.
func (cb *CircuitBreaker) ConsecutiveFailures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.consecutiveFails
}
