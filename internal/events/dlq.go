package events

import (
	"fmt"
	"sync"
	"time"

	"github.com/authcore/runtime/internal/logger"
)

// DLQConfig tunes dead letter queue retry behavior.
type DLQConfig struct {
	MaxRetries      int
	AutoRetry       bool
	RetryDelaySecs  int
}

// DefaultDLQConfig matches the reference implementation's defaults.
func DefaultDLQConfig() DLQConfig {
	return DLQConfig{MaxRetries: 3, AutoRetry: false, RetryDelaySecs: 60}
}

// DeadLetter is an event that failed delivery, along with its failure
// history.
type DeadLetter struct {
	ID         string
	Event      Event
	Reason     string
	Retries    int
	FirstSeen  time.Time
	LastSeen   time.Time
}

// DLQStorage persists dead letters. InMemoryDLQStorage is the reference
// implementation; a durable backend can satisfy the same contract.
type DLQStorage interface {
	Save(d DeadLetter) error
	Get(id string) (DeadLetter, bool)
	List() []DeadLetter
	Delete(id string) error
}

// InMemoryDLQStorage is a map-backed DLQStorage.
type InMemoryDLQStorage struct {
	mu    sync.RWMutex
	items map[string]DeadLetter
}

func NewInMemoryDLQStorage() *InMemoryDLQStorage {
	return &InMemoryDLQStorage{items: map[string]DeadLetter{}}
}

func (s *InMemoryDLQStorage) Save(d DeadLetter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[d.ID] = d
	return nil
}

func (s *InMemoryDLQStorage) Get(id string) (DeadLetter, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.items[id]
	return d, ok
}

func (s *InMemoryDLQStorage) List() []DeadLetter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]DeadLetter, 0, len(s.items))
	for _, d := range s.items {
		out = append(out, d)
	}
	return out
}

func (s *InMemoryDLQStorage) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

// DLQStats summarizes the queue's current contents.
type DLQStats struct {
	Total        int
	ByReason     map[string]int
	OldestSeen   time.Time
	RetryExhausted int
}

// DeadLetterQueue holds events that failed delivery so they can be
// inspected, retried, or purged.
type DeadLetterQueue struct {
	storage DLQStorage
	config  DLQConfig
}

func NewDeadLetterQueue(storage DLQStorage, config DLQConfig) *DeadLetterQueue {
	return &DeadLetterQueue{storage: storage, config: config}
}

// Send records e as dead-lettered with reason, merging into any existing
// entry for the same event id.
func (q *DeadLetterQueue) Send(e Event, reason string) error {
	now := time.Now().UTC()
	if existing, ok := q.storage.Get(e.ID); ok {
		existing.Reason = reason
		existing.LastSeen = now
		return q.storage.Save(existing)
	}
	logger.Events().Warn().Str("event_id", e.ID).Str("reason", reason).Msg("event sent to dead letter queue")
	return q.storage.Save(DeadLetter{
		ID: e.ID, Event: e, Reason: reason, FirstSeen: now, LastSeen: now,
	})
}

// Retry re-delivers a single dead letter through handler. On success, the
// entry is removed. On failure, its retry count is incremented; once
// Retries reaches MaxRetries the entry is retained but rejected outright,
// without invoking handler again.
func (q *DeadLetterQueue) Retry(id string, handler Handler) error {
	d, ok := q.storage.Get(id)
	if !ok {
		return fmt.Errorf("events: no dead letter with id %q", id)
	}
	if d.Retries >= q.config.MaxRetries {
		return fmt.Errorf("events: dead letter %q exhausted its retry budget (%d/%d)", id, d.Retries, q.config.MaxRetries)
	}
	if err := handler(d.Event); err != nil {
		d.Retries++
		d.LastSeen = time.Now().UTC()
		d.Reason = err.Error()
		return q.storage.Save(d)
	}
	return q.storage.Delete(id)
}

// RetryHandler retries every dead letter whose Retries is below
// MaxRetries through handler, returning the ids that still failed.
func (q *DeadLetterQueue) RetryHandler(handler Handler) []string {
	var stillFailed []string
	for _, d := range q.storage.List() {
		if d.Retries >= q.config.MaxRetries {
			stillFailed = append(stillFailed, d.ID)
			continue
		}
		if err := q.Retry(d.ID, handler); err != nil {
			stillFailed = append(stillFailed, d.ID)
			continue
		}
		// Retry records a handler failure and returns nil; the entry is
		// still stored in that case.
		if _, ok := q.storage.Get(d.ID); ok {
			stillFailed = append(stillFailed, d.ID)
		}
	}
	return stillFailed
}

// PurgeOlderThan deletes every entry whose LastSeen precedes cutoff,
// returning the count removed.
func (q *DeadLetterQueue) PurgeOlderThan(cutoff time.Time) int {
	removed := 0
	for _, d := range q.storage.List() {
		if d.LastSeen.Before(cutoff) {
			if err := q.storage.Delete(d.ID); err == nil {
				removed++
			}
		}
	}
	return removed
}

// Stats summarizes the queue's current contents.
func (q *DeadLetterQueue) Stats() DLQStats {
	items := q.storage.List()
	stats := DLQStats{ByReason: map[string]int{}}
	for _, d := range items {
		stats.Total++
		stats.ByReason[d.Reason]++
		if stats.OldestSeen.IsZero() || d.FirstSeen.Before(stats.OldestSeen) {
			stats.OldestSeen = d.FirstSeen
		}
		if d.Retries >= q.config.MaxRetries {
			stats.RetryExhausted++
		}
	}
	return stats
}
