package webhooks

import (
	"math"
	"math/rand"
	"time"
)

// RetryStrategy computes the delay before a given retry attempt (1-based)
// and whether the delivery should be retried at all, given the engine's
// configured attempt ceiling.
type RetryStrategy interface {
	// NextDelay returns the delay before attempt, and false if attempt
	// exceeds the strategy's retry budget.
	NextDelay(attempt int) (time.Duration, bool)
	MaxAttempts() int
}

// ExponentialBackoff doubles the delay each attempt, capped at Cap, with
// optional jitter to avoid thundering-herd retries.
type ExponentialBackoff struct {
	Base        time.Duration
	Cap         time.Duration
	Attempts    int
	JitterFrac  float64
}

// NewExponentialBackoff returns the reference defaults: base 1s, cap 1h,
// 5 attempts, 10% jitter.
func NewExponentialBackoff() ExponentialBackoff {
	return ExponentialBackoff{Base: time.Second, Cap: time.Hour, Attempts: 5, JitterFrac: 0.1}
}

func (b ExponentialBackoff) NextDelay(attempt int) (time.Duration, bool) {
	if attempt > b.Attempts {
		return 0, false
	}
	delay := float64(b.Base) * math.Pow(2, float64(attempt-1))
	if cap := float64(b.Cap); delay > cap {
		delay = cap
	}
	return applyJitter(time.Duration(delay), b.JitterFrac), true
}

func (b ExponentialBackoff) MaxAttempts() int { return b.Attempts }

// LinearBackoff increases the delay by a fixed increment each attempt.
type LinearBackoff struct {
	Base      time.Duration
	Increment time.Duration
	Attempts  int
}

func (l LinearBackoff) NextDelay(attempt int) (time.Duration, bool) {
	if attempt > l.Attempts {
		return 0, false
	}
	return l.Base + l.Increment*time.Duration(attempt-1), true
}

func (l LinearBackoff) MaxAttempts() int { return l.Attempts }

// FixedDelay retries a fixed number of times with a constant delay.
type FixedDelay struct {
	Delay    time.Duration
	Attempts int
}

func (f FixedDelay) NextDelay(attempt int) (time.Duration, bool) {
	if attempt > f.Attempts {
		return 0, false
	}
	return f.Delay, true
}

func (f FixedDelay) MaxAttempts() int { return f.Attempts }

// NoRetry never retries a failed delivery.
type NoRetry struct{}

func (NoRetry) NextDelay(int) (time.Duration, bool) { return 0, false }
func (NoRetry) MaxAttempts() int                    { return 0 }

// applyJitter adds a one-sided random offset of up to frac*d on top of d,
// never shortening the capped delay.
func applyJitter(d time.Duration, frac float64) time.Duration {
	if frac <= 0 {
		return d
	}
	delta := float64(d) * frac
	offset := rand.Float64() * delta
	return d + time.Duration(offset)
}
