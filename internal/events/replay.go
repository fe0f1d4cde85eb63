package events

import (
	"context"
	"time"
)

// ReplaySpeed controls the pacing of a replay relative to the events'
// original timestamps.
type ReplaySpeed struct {
	mode       replayMode
	multiplier float64
}

type replayMode int

const (
	replayFast replayMode = iota
	replayRealTime
	replayCustom
)

// Fast replays every event back to back with no delay.
func Fast() ReplaySpeed { return ReplaySpeed{mode: replayFast} }

// RealTime replays events spaced exactly as they originally occurred.
func RealTime() ReplaySpeed { return ReplaySpeed{mode: replayRealTime} }

// Custom replays events at multiplier times real-time speed (2.0 is
// twice as fast, 0.5 is half speed).
func Custom(multiplier float64) ReplaySpeed { return ReplaySpeed{mode: replayCustom, multiplier: multiplier} }

// ReplayEngine re-emits previously stored events onto a Bus, for
// debugging, testing, or rebuilding projections.
type ReplayEngine struct {
	store EventStore
	bus   *Bus
}

func NewReplayEngine(store EventStore, bus *Bus) *ReplayEngine {
	return &ReplayEngine{store: store, bus: bus}
}

// Replay re-emits every event matching q, paced according to speed.
func (r *ReplayEngine) Replay(ctx context.Context, q EventQuery, speed ReplaySpeed) (int, error) {
	events, err := r.store.Query(q)
	if err != nil {
		return 0, err
	}
	return r.emitPaced(ctx, events, speed)
}

// ReplayStream re-emits an entire stream's history, paced according to
// speed.
func (r *ReplayEngine) ReplayStream(ctx context.Context, stream string, speed ReplaySpeed) (int, error) {
	return r.Replay(ctx, EventQuery{Stream: stream}, speed)
}

// ReplayUntil re-emits a stream's events up to and including the given
// stream version.
func (r *ReplayEngine) ReplayUntil(ctx context.Context, stream string, untilVersion int, speed ReplaySpeed) (int, error) {
	events, err := r.store.Query(EventQuery{Stream: stream})
	if err != nil {
		return 0, err
	}
	var filtered []StoredEvent
	for _, se := range events {
		if se.Version <= untilVersion {
			filtered = append(filtered, se)
		}
	}
	return r.emitPaced(ctx, filtered, speed)
}

func (r *ReplayEngine) emitPaced(ctx context.Context, events []StoredEvent, speed ReplaySpeed) (int, error) {
	count := 0
	for i, se := range events {
		select {
		case <-ctx.Done():
			return count, ctx.Err()
		default:
		}
		if i > 0 {
			if delay := pacingDelay(events[i-1].Timestamp, se.Timestamp, speed); delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return count, ctx.Err()
				}
			}
		}
		if err := r.bus.EmitChecked(se.Event); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func pacingDelay(prev, cur time.Time, speed ReplaySpeed) time.Duration {
	switch speed.mode {
	case replayFast:
		return 0
	case replayRealTime:
		return cur.Sub(prev)
	case replayCustom:
		if speed.multiplier <= 0 {
			return 0
		}
		return time.Duration(float64(cur.Sub(prev)) / speed.multiplier)
	default:
		return 0
	}
}
