package events

import (
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// StoredEvent wraps an Event with its store-assigned stream position.
type StoredEvent struct {
	Event
	Stream  string
	Version int
}

// EventOrdering controls the order EventStore.Query returns results in.
type EventOrdering int

const (
	OrderAscending EventOrdering = iota
	OrderDescending
)

// EventQuery filters EventStore.Query results. Zero-valued fields are
// unconstrained (Limit of 0 means unbounded).
type EventQuery struct {
	Stream        string
	Type          *EventType
	CorrelationID string
	Since         int // stream version, exclusive
	Limit         int
	Ordering      EventOrdering
}

// Snapshot is a point-in-time reduction of a stream, used to avoid
// replaying a stream's entire history.
type Snapshot struct {
	Stream  string
	Version int
	State   []byte
}

// EventStore is an append-only log of events, partitioned into named
// streams with per-stream monotonically increasing versions starting at 1.
type EventStore interface {
	Append(stream string, e Event) (StoredEvent, error)
	AppendBatch(stream string, events []Event) ([]StoredEvent, error)
	GetByID(id string) (StoredEvent, bool)
	Query(q EventQuery) ([]StoredEvent, error)
	StreamVersion(stream string) int
	Subscribe(stream string) (<-chan StoredEvent, func())
	SaveSnapshot(s Snapshot) error
	LatestSnapshot(stream string) (Snapshot, bool)
	TruncateStream(stream string, beforeVersion int) error
}

// MemoryEventStore is an in-process EventStore backed by per-stream
// slices. Safe for concurrent use.
type MemoryEventStore struct {
	mu        sync.RWMutex
	streams   map[string][]StoredEvent
	byID      map[string]StoredEvent
	snapshots map[string]Snapshot
	subs      map[string][]chan StoredEvent

	// snapshotLimiter caps how often SaveSnapshot is allowed to run across
	// all streams, so a caller that snapshots in a tight loop cannot starve
	// the write lock that Append also needs.
	snapshotLimiter *rate.Limiter
}

// DefaultSnapshotRate caps snapshot creation to this many per second across
// the whole store.
const DefaultSnapshotRate = 50

func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{
		streams:         map[string][]StoredEvent{},
		byID:            map[string]StoredEvent{},
		snapshots:       map[string]Snapshot{},
		subs:            map[string][]chan StoredEvent{},
		snapshotLimiter: rate.NewLimiter(rate.Limit(DefaultSnapshotRate), DefaultSnapshotRate),
	}
}

func (s *MemoryEventStore) Append(stream string, e Event) (StoredEvent, error) {
	return s.appendLocked(stream, e)
}

func (s *MemoryEventStore) AppendBatch(stream string, events []Event) ([]StoredEvent, error) {
	out := make([]StoredEvent, 0, len(events))
	for _, e := range events {
		se, err := s.appendLocked(stream, e)
		if err != nil {
			return out, err
		}
		out = append(out, se)
	}
	return out, nil
}

func (s *MemoryEventStore) appendLocked(stream string, e Event) (StoredEvent, error) {
	s.mu.Lock()
	version := len(s.streams[stream]) + 1
	se := StoredEvent{Event: e, Stream: stream, Version: version}
	s.streams[stream] = append(s.streams[stream], se)
	s.byID[e.ID] = se
	subs := append([]chan StoredEvent(nil), s.subs[stream]...)
	s.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- se:
		default:
			// best-effort: a slow subscriber never blocks the append path
		}
	}
	return se, nil
}

func (s *MemoryEventStore) GetByID(id string) (StoredEvent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	se, ok := s.byID[id]
	return se, ok
}

func (s *MemoryEventStore) StreamVersion(stream string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.streams[stream])
}

// Query filters and returns stored events. When q.Stream is empty, every
// stream is searched.
func (s *MemoryEventStore) Query(q EventQuery) ([]StoredEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []StoredEvent
	if q.Stream != "" {
		candidates = s.streams[q.Stream]
	} else {
		for _, events := range s.streams {
			candidates = append(candidates, events...)
		}
	}

	var out []StoredEvent
	for _, se := range candidates {
		if se.Version <= q.Since {
			continue
		}
		if q.Type != nil && se.Type != *q.Type {
			continue
		}
		if q.CorrelationID != "" && se.Metadata.CorrelationID != q.CorrelationID {
			continue
		}
		out = append(out, se)
	}

	if q.Ordering == OrderDescending {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Subscribe returns a channel of future appends to stream and an
// unsubscribe function. Delivery is best-effort: a full channel drops the
// event rather than blocking the appender.
func (s *MemoryEventStore) Subscribe(stream string) (<-chan StoredEvent, func()) {
	ch := make(chan StoredEvent, 64)
	s.mu.Lock()
	s.subs[stream] = append(s.subs[stream], ch)
	s.mu.Unlock()

	unsubscribe := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		subs := s.subs[stream]
		for i, c := range subs {
			if c == ch {
				s.subs[stream] = append(subs[:i], subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, unsubscribe
}

// SaveSnapshot records snap, subject to the store's global snapshot rate
// limit. A caller that exceeds the limit gets an error rather than blocking,
// since snapshotting is always a best-effort optimization the caller can
// retry later.
func (s *MemoryEventStore) SaveSnapshot(snap Snapshot) error {
	if !s.snapshotLimiter.Allow() {
		return fmt.Errorf("events: snapshot rate exceeded for stream %q", snap.Stream)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.Stream] = snap
	return nil
}

func (s *MemoryEventStore) LatestSnapshot(stream string) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[stream]
	return snap, ok
}

// TruncateStream discards events with version <= beforeVersion. A
// snapshot covering the truncated range should be saved first; truncation
// does not validate this.
func (s *MemoryEventStore) TruncateStream(stream string, beforeVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	events, ok := s.streams[stream]
	if !ok {
		return fmt.Errorf("events: unknown stream %q", stream)
	}
	var kept []StoredEvent
	for _, se := range events {
		if se.Version > beforeVersion {
			kept = append(kept, se)
		} else {
			delete(s.byID, se.ID)
		}
	}
	s.streams[stream] = kept
	return nil
}
