package events

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_Subscribe_ExactPatternReceivesMatchingEvent(t *testing.T) {
	b := NewBus()
	var received int32
	b.Subscribe("auth.signin", func(e Event) error {
		atomic.AddInt32(&received, 1)
		return nil
	})

	e, err := NewEvent(NewEventType("auth", "signin", 1), nil)
	require.NoError(t, err)
	require.NoError(t, b.Emit(e))

	// Emit is fire-and-forget: it returns before the dispatched handler
	// goroutine necessarily finishes, so wait rather than assert immediately.
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&received) == 1
	}, time.Second, time.Millisecond)
}

func TestBus_Subscribe_NonMatchingPatternNotInvoked(t *testing.T) {
	b := NewBus()
	var received int32
	b.Subscribe("webhook.delivered", func(e Event) error {
		atomic.AddInt32(&received, 1)
		return nil
	})

	e, err := NewEvent(NewEventType("auth", "signin", 1), nil)
	require.NoError(t, err)
	require.NoError(t, b.Emit(e))

	assert.Equal(t, int32(0), atomic.LoadInt32(&received))
}

func TestBus_Unsubscribe_StopsDelivery(t *testing.T) {
	b := NewBus()
	var received int32
	sub := b.Subscribe("*", func(e Event) error {
		atomic.AddInt32(&received, 1)
		return nil
	})
	b.Unsubscribe(sub)

	e, err := NewEvent(NewEventType("auth", "signin", 1), nil)
	require.NoError(t, err)
	require.NoError(t, b.Emit(e))

	assert.Equal(t, int32(0), atomic.LoadInt32(&received))
}

func TestBus_EmitSync_AggregatesHandlerResults(t *testing.T) {
	b := NewBus()
	b.Subscribe("*", func(e Event) error { return nil })
	b.Subscribe("*", func(e Event) error { return errors.New("boom") })

	results, err := b.EmitSync(mustEvent(t))
	require.NoError(t, err)
	require.Len(t, results, 2)

	var failures int
	for _, r := range results {
		if r.Err != nil {
			failures++
		}
	}
	assert.Equal(t, 1, failures)
}

func TestBus_EmitChecked_ReturnsFirstFailure(t *testing.T) {
	b := NewBus()
	b.Subscribe("*", func(e Event) error { return errors.New("handler failed") })

	err := b.EmitChecked(mustEvent(t))
	assert.Error(t, err)
}

func TestBus_EmitSync_HandlerPanicIsIsolated(t *testing.T) {
	b := NewBus()
	var otherCalled int32
	b.Subscribe("*", func(e Event) error { panic("boom") })
	b.Subscribe("*", func(e Event) error {
		atomic.AddInt32(&otherCalled, 1)
		return nil
	})

	results, err := b.EmitSync(mustEvent(t))
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&otherCalled))

	var sawPanic bool
	for _, r := range results {
		if r.Err != nil {
			sawPanic = true
		}
	}
	assert.True(t, sawPanic)
}

func TestBus_EmitSequential_RunsInSubscriptionOrder(t *testing.T) {
	b := NewBus()
	var order []int
	var mu sync.Mutex
	b.Subscribe("*", func(e Event) error {
		mu.Lock()
		order = append(order, 1)
		mu.Unlock()
		return nil
	})
	b.Subscribe("*", func(e Event) error {
		mu.Lock()
		order = append(order, 2)
		mu.Unlock()
		return nil
	})

	_, err := b.EmitSequential(mustEvent(t))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, order)
}

func TestBus_History_BoundedRing(t *testing.T) {
	b := NewBusWithHistory(2)
	for i := 0; i < 5; i++ {
		require.NoError(t, b.Emit(mustEvent(t)))
	}
	assert.Len(t, b.History(), 2)
}

func TestBus_History_DisabledWhenCapacityZero(t *testing.T) {
	b := NewBusWithHistory(0)
	require.NoError(t, b.Emit(mustEvent(t)))
	assert.Empty(t, b.History())
}

func TestBus_Use_MiddlewareCanRejectEvent(t *testing.T) {
	b := NewBus()
	b.Use(rejectingMiddleware{})
	var called bool
	b.Subscribe("*", func(e Event) error {
		called = true
		return nil
	})

	err := b.Emit(mustEvent(t))
	assert.Error(t, err)
	assert.False(t, called)
}

type rejectingMiddleware struct{}

func (rejectingMiddleware) BeforeEmit(e Event) (Event, error) {
	return e, errors.New("rejected")
}
func (rejectingMiddleware) AfterEmit(Event, []HandlerResult) {}

func mustEvent(t *testing.T) Event {
	t.Helper()
	e, err := NewEvent(NewEventType("auth", "signin", 1), nil)
	require.NoError(t, err)
	return e
}
