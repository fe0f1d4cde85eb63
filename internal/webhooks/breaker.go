package webhooks

import (
	"sync"
	"time"
)

// CircuitState is one of the three circuit breaker states.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

// BreakerConfig tunes a CircuitBreaker's transition thresholds.
type BreakerConfig struct {
	FailureThreshold int           // Ft: consecutive failures to trip open
	SuccessThreshold int           // St: consecutive half-open successes to close
	OpenTimeout      time.Duration // T: how long the breaker stays open before probing
	MaxHalfOpenCalls int           // M: concurrent probe calls allowed while half-open
}

// DefaultBreakerConfig matches the reference implementation's defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 5, SuccessThreshold: 2, OpenTimeout: 30 * time.Second, MaxHalfOpenCalls: 1}
}

// CircuitBreaker protects a downstream endpoint from being hammered while
// it is failing, per the Closed -> Open -> HalfOpen -> Closed state
// machine.
type CircuitBreaker struct {
	mu              sync.Mutex
	config          BreakerConfig
	state           CircuitState
	failures        int
	successes       int
	openedAt        time.Time
	halfOpenInFlight int
}

func NewCircuitBreaker(config BreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{config: config, state: CircuitClosed}
}

// Allow reports whether a call may proceed right now, transitioning Open
// -> HalfOpen once the timeout has elapsed.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		if time.Since(b.openedAt) >= b.config.OpenTimeout {
			b.state = CircuitHalfOpen
			b.successes = 0
			b.halfOpenInFlight = 0
		} else {
			return false
		}
		fallthrough
	case CircuitHalfOpen:
		if b.halfOpenInFlight >= b.config.MaxHalfOpenCalls {
			return false
		}
		b.halfOpenInFlight++
		return true
	default:
		return false
	}
}

// RecordSuccess reports a successful call, closing the circuit once the
// success threshold is met in the half-open state.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case CircuitHalfOpen:
		b.halfOpenInFlight--
		b.successes++
		if b.successes >= b.config.SuccessThreshold {
			b.state = CircuitClosed
			b.failures = 0
			b.successes = 0
		}
	case CircuitClosed:
		b.failures = 0
	}
}

// RecordFailure reports a failed call, tripping the breaker open once the
// failure threshold is met, or immediately reopening from half-open.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case CircuitHalfOpen:
		b.halfOpenInFlight--
		b.trip()
	case CircuitClosed:
		b.failures++
		if b.failures >= b.config.FailureThreshold {
			b.trip()
		}
	}
}

func (b *CircuitBreaker) trip() {
	b.state = CircuitOpen
	b.openedAt = time.Now()
	b.failures = 0
	b.successes = 0
}

// State returns the breaker's current state.
func (b *CircuitBreaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
