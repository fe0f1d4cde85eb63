package events

import (
	"fmt"
	"sync"
	"time"

	"github.com/authcore/runtime/internal/logger"
)

// Middleware intercepts events flowing through a Bus. BeforeEmit may
// mutate the event (returning the modified copy) or reject it by returning
// an error, which aborts the emit before any handler runs. AfterEmit is
// purely informational and cannot affect delivery.
type Middleware interface {
	BeforeEmit(e Event) (Event, error)
	AfterEmit(e Event, results []HandlerResult)
}

// LoggingMiddleware logs every event that passes through the bus.
type LoggingMiddleware struct{}

func (LoggingMiddleware) BeforeEmit(e Event) (Event, error) {
	logger.Events().Debug().Str("event_type", e.Type.String()).Str("event_id", e.ID).Msg("emitting event")
	return e, nil
}

func (LoggingMiddleware) AfterEmit(e Event, results []HandlerResult) {
	failures := 0
	for _, r := range results {
		if r.Err != nil {
			failures++
		}
	}
	logger.Events().Debug().
		Str("event_type", e.Type.String()).
		Int("handlers", len(results)).
		Int("failures", failures).
		Msg("event emitted")
}

// MetricsMiddleware accumulates simple emit/failure counters per event
// type. Safe for concurrent use: the bus runs middleware outside its own
// lock (and Emit runs AfterEmit on a detached goroutine), so the counters
// are guarded by the middleware's own mutex.
type MetricsMiddleware struct {
	mu        sync.Mutex
	counts    map[string]int
	failures  map[string]int
}

func NewMetricsMiddleware() *MetricsMiddleware {
	return &MetricsMiddleware{counts: map[string]int{}, failures: map[string]int{}}
}

func (m *MetricsMiddleware) BeforeEmit(e Event) (Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[e.Type.String()]++
	return e, nil
}

func (m *MetricsMiddleware) AfterEmit(e Event, results []HandlerResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range results {
		if r.Err != nil {
			m.failures[e.Type.String()]++
		}
	}
}

func (m *MetricsMiddleware) Count(t EventType) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[t.String()]
}

func (m *MetricsMiddleware) Failures(t EventType) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures[t.String()]
}

// ValidationMiddleware rejects events whose payload fails the registered
// EventSchema, if one exists for the event's type.
type ValidationMiddleware struct {
	Registry *SchemaRegistry
}

func NewValidationMiddleware(r *SchemaRegistry) *ValidationMiddleware {
	return &ValidationMiddleware{Registry: r}
}

func (v *ValidationMiddleware) BeforeEmit(e Event) (Event, error) {
	if v.Registry == nil {
		return e, nil
	}
	if err := v.Registry.ValidateEvent(e); err != nil {
		return e, fmt.Errorf("events: schema validation failed for %s: %w", e.Type, err)
	}
	return e, nil
}

func (v *ValidationMiddleware) AfterEmit(Event, []HandlerResult) {}

// CorrelationMiddleware ensures every event carries a correlation id,
// assigning the event's own id when one is missing.
type CorrelationMiddleware struct{}

func (CorrelationMiddleware) BeforeEmit(e Event) (Event, error) {
	if e.Metadata.CorrelationID == "" {
		e.Metadata.CorrelationID = e.ID
	}
	return e, nil
}

func (CorrelationMiddleware) AfterEmit(Event, []HandlerResult) {}

// runBefore applies each middleware's BeforeEmit in order, short-circuiting
// on the first rejection.
func runBefore(chain []Middleware, e Event) (Event, error) {
	var err error
	for _, mw := range chain {
		e, err = mw.BeforeEmit(e)
		if err != nil {
			return e, err
		}
	}
	return e, nil
}

func runAfter(chain []Middleware, e Event, results []HandlerResult) {
	for _, mw := range chain {
		mw.AfterEmit(e, results)
	}
}

// elapsedMillis is a small helper shared by handlers that want to report
// HandlerResult.Duration.
func elapsedMillis(start time.Time) time.Duration { return time.Since(start) }
