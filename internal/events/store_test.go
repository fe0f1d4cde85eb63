package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryEventStore_Append_AssignsIncrementingVersions(t *testing.T) {
	s := NewMemoryEventStore()
	e1, _ := NewEvent(NewEventType("auth", "signin", 1), nil)
	e2, _ := NewEvent(NewEventType("auth", "signin", 1), nil)

	se1, err := s.Append("user-1", e1)
	require.NoError(t, err)
	se2, err := s.Append("user-1", e2)
	require.NoError(t, err)

	assert.Equal(t, 1, se1.Version)
	assert.Equal(t, 2, se2.Version)
	assert.Equal(t, 2, s.StreamVersion("user-1"))
}

func TestMemoryEventStore_AppendBatch(t *testing.T) {
	s := NewMemoryEventStore()
	e1, _ := NewEvent(NewEventType("auth", "signin", 1), nil)
	e2, _ := NewEvent(NewEventType("auth", "signin", 1), nil)

	out, err := s.AppendBatch("user-1", []Event{e1, e2})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 1, out[0].Version)
	assert.Equal(t, 2, out[1].Version)
}

func TestMemoryEventStore_GetByID(t *testing.T) {
	s := NewMemoryEventStore()
	e, _ := NewEvent(NewEventType("auth", "signin", 1), nil)
	se, err := s.Append("user-1", e)
	require.NoError(t, err)

	found, ok := s.GetByID(se.ID)
	assert.True(t, ok)
	assert.Equal(t, se.Version, found.Version)

	_, ok = s.GetByID("unknown")
	assert.False(t, ok)
}

func TestMemoryEventStore_Query_FiltersBySinceAndType(t *testing.T) {
	s := NewMemoryEventStore()
	signinType := NewEventType("auth", "signin", 1)
	signoutType := NewEventType("auth", "signout", 1)

	e1, _ := NewEvent(signinType, nil)
	e2, _ := NewEvent(signoutType, nil)
	e3, _ := NewEvent(signinType, nil)
	_, _ = s.Append("user-1", e1)
	_, _ = s.Append("user-1", e2)
	_, _ = s.Append("user-1", e3)

	results, err := s.Query(EventQuery{Stream: "user-1", Type: &signinType})
	require.NoError(t, err)
	require.Len(t, results, 2)

	results, err = s.Query(EventQuery{Stream: "user-1", Since: 1})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestMemoryEventStore_Query_DescendingOrderAndLimit(t *testing.T) {
	s := NewMemoryEventStore()
	for i := 0; i < 3; i++ {
		e, _ := NewEvent(NewEventType("auth", "signin", 1), nil)
		_, _ = s.Append("user-1", e)
	}

	results, err := s.Query(EventQuery{Stream: "user-1", Ordering: OrderDescending, Limit: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 3, results[0].Version)
	assert.Equal(t, 2, results[1].Version)
}

func TestMemoryEventStore_Subscribe_ReceivesFutureAppends(t *testing.T) {
	s := NewMemoryEventStore()
	ch, unsubscribe := s.Subscribe("user-1")
	defer unsubscribe()

	e, _ := NewEvent(NewEventType("auth", "signin", 1), nil)
	_, err := s.Append("user-1", e)
	require.NoError(t, err)

	select {
	case se := <-ch:
		assert.Equal(t, e.ID, se.ID)
	default:
		t.Fatal("expected an event on the subscription channel")
	}
}

func TestMemoryEventStore_SaveAndLatestSnapshot(t *testing.T) {
	s := NewMemoryEventStore()
	require.NoError(t, s.SaveSnapshot(Snapshot{Stream: "user-1", Version: 5, State: []byte("state")}))

	snap, ok := s.LatestSnapshot("user-1")
	require.True(t, ok)
	assert.Equal(t, 5, snap.Version)
}

func TestMemoryEventStore_SaveSnapshot_RateLimited(t *testing.T) {
	s := NewMemoryEventStore()
	for i := 0; i < DefaultSnapshotRate; i++ {
		require.NoError(t, s.SaveSnapshot(Snapshot{Stream: "user-1", Version: i}))
	}
	// The burst allowance is exhausted; the next call in the same instant fails.
	err := s.SaveSnapshot(Snapshot{Stream: "user-1", Version: DefaultSnapshotRate})
	assert.Error(t, err)
}

func TestMemoryEventStore_TruncateStream_DropsOldVersions(t *testing.T) {
	s := NewMemoryEventStore()
	for i := 0; i < 3; i++ {
		e, _ := NewEvent(NewEventType("auth", "signin", 1), nil)
		_, _ = s.Append("user-1", e)
	}

	require.NoError(t, s.TruncateStream("user-1", 2))
	results, err := s.Query(EventQuery{Stream: "user-1"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 3, results[0].Version)
}

func TestMemoryEventStore_TruncateStream_UnknownStream(t *testing.T) {
	s := NewMemoryEventStore()
	err := s.TruncateStream("missing", 0)
	assert.Error(t, err)
}
