package webhooks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExponentialBackoff_DoublesDelayEachAttempt(t *testing.T) {
	b := ExponentialBackoff{Base: time.Second, Cap: time.Hour, Attempts: 5, JitterFrac: 0}
	d1, ok := b.NextDelay(1)
	assert.True(t, ok)
	assert.Equal(t, time.Second, d1)

	d2, ok := b.NextDelay(2)
	assert.True(t, ok)
	assert.Equal(t, 2*time.Second, d2)

	d3, ok := b.NextDelay(3)
	assert.True(t, ok)
	assert.Equal(t, 4*time.Second, d3)
}

func TestExponentialBackoff_ExceedsAttempts(t *testing.T) {
	b := NewExponentialBackoff()
	_, ok := b.NextDelay(b.Attempts + 1)
	assert.False(t, ok)
}

func TestExponentialBackoff_RespectsCap(t *testing.T) {
	b := ExponentialBackoff{Base: time.Hour, Cap: 90 * time.Minute, Attempts: 10, JitterFrac: 0}
	d, ok := b.NextDelay(5)
	assert.True(t, ok)
	assert.Equal(t, 90*time.Minute, d)
}

func TestLinearBackoff_IncreasesByIncrement(t *testing.T) {
	l := LinearBackoff{Base: time.Second, Increment: 2 * time.Second, Attempts: 3}
	d1, ok := l.NextDelay(1)
	assert.True(t, ok)
	assert.Equal(t, time.Second, d1)

	d2, ok := l.NextDelay(2)
	assert.True(t, ok)
	assert.Equal(t, 3*time.Second, d2)
}

func TestFixedDelay_ConstantAcrossAttempts(t *testing.T) {
	f := FixedDelay{Delay: 5 * time.Second, Attempts: 3}
	d1, _ := f.NextDelay(1)
	d2, _ := f.NextDelay(2)
	assert.Equal(t, d1, d2)

	_, ok := f.NextDelay(4)
	assert.False(t, ok)
}

func TestApplyJitter_NeverShortensTheDelay(t *testing.T) {
	base := 10 * time.Second
	for i := 0; i < 100; i++ {
		d := applyJitter(base, 0.2)
		assert.GreaterOrEqual(t, d, base)
		assert.LessOrEqual(t, d, base+2*time.Second)
	}
}

func TestApplyJitter_ZeroFractionIsNoop(t *testing.T) {
	base := 10 * time.Second
	assert.Equal(t, base, applyJitter(base, 0))
}

func TestNoRetry_NeverRetries(t *testing.T) {
	n := NoRetry{}
	_, ok := n.NextDelay(1)
	assert.False(t, ok)
	assert.Equal(t, 0, n.MaxAttempts())
}
