// Package events implements the Event Subsystem (C5-C10): typed event
// routing, an in-process bus with middleware, an append-only event store,
// a schema registry, a dead letter queue, and a replay engine. Grounded in
// the reference events/{bus,event,middleware}.rs design, adapted to Go's
// goroutine+channel concurrency model in place of tokio tasks.
package events

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventType identifies an event's namespace, name, and schema version. The
// canonical string form is "namespace.name.vN"; a bare "name" (no
// namespace, no version) is accepted as shorthand and defaults namespace to
// "unknown" and version to 1. An empty string is accepted too, parsing to
// ("unknown", "unknown", 1).
type EventType struct {
	Namespace string
	Name      string
	Version   int
}

// NewEventType constructs an EventType directly.
func NewEventType(namespace, name string, version int) EventType {
	return EventType{Namespace: namespace, Name: name, Version: version}
}

var versionSegment = regexp.MustCompile(`^v(\d+)$`)

// ParseEventType parses the canonical string form. Accepted forms:
//
//	""            -> {"unknown", "unknown", 1}
//	"name"        -> {"unknown", name, 1}
//	"ns.name"     -> {ns, name, 1}
//	"ns.name.v2"  -> {ns, name, 2}
//
// A dotted name with three or more segments is resolved by checking whether
// the trailing segment is a version marker ("vN"): if so, every segment
// between the first and last is joined back into the name and the trailing
// segment supplies the version; otherwise everything after the first
// segment is joined into the name and the version defaults to 1. This keeps
// String() round-trippable for names that themselves contain dots.
func ParseEventType(s string) (EventType, error) {
	if s == "" {
		return EventType{Namespace: "unknown", Name: "unknown", Version: 1}, nil
	}
	parts := strings.Split(s, ".")
	switch {
	case len(parts) == 1:
		return EventType{Namespace: "unknown", Name: parts[0], Version: 1}, nil
	case len(parts) == 2:
		return EventType{Namespace: parts[0], Name: parts[1], Version: 1}, nil
	default:
		last := parts[len(parts)-1]
		if m := versionSegment.FindStringSubmatch(last); m != nil {
			version, err := strconv.Atoi(m[1])
			if err != nil {
				return EventType{}, fmt.Errorf("events: invalid version segment %q: %w", last, err)
			}
			return EventType{
				Namespace: parts[0],
				Name:      strings.Join(parts[1:len(parts)-1], "."),
				Version:   version,
			}, nil
		}
		return EventType{
			Namespace: parts[0],
			Name:      strings.Join(parts[1:], "."),
			Version:   1,
		}, nil
	}
}

// String renders the canonical "namespace.name.vN" form.
func (t EventType) String() string {
	return fmt.Sprintf("%s.%s.v%d", t.Namespace, t.Name, t.Version)
}

// Simple renders the version-less "namespace.name" form, used for webhook
// filtering and the webhook envelope's "type" field.
func (t EventType) Simple() string {
	return fmt.Sprintf("%s.%s", t.Namespace, t.Name)
}

// Matches reports whether t satisfies a subscription pattern. Patterns:
//
//	"*"         matches every event type regardless of namespace/name/version
//	"ns.*"      matches every event type in namespace ns, any name/version
//	"ns.name"   matches ns.name at any version
//	"ns.name.vN" matches exactly
func (t EventType) Matches(pattern string) bool {
	if pattern == "*" {
		return true
	}
	parts := strings.Split(pattern, ".")
	if len(parts) == 2 && parts[1] == "*" {
		return t.Namespace == parts[0]
	}
	parsed, err := ParseEventType(pattern)
	if err != nil {
		return false
	}
	if strings.Count(pattern, ".") < 2 {
		// no explicit version in the pattern: match any version
		return t.Namespace == parsed.Namespace && t.Name == parsed.Name
	}
	return t == parsed
}

// EventMetadata carries tracing and routing information alongside an
// event's payload.
type EventMetadata struct {
	CorrelationID string            `json:"correlation_id"`
	CausationID   string            `json:"causation_id,omitempty"`
	Source        string            `json:"source,omitempty"`
	Tags          map[string]string `json:"tags,omitempty"`
}

// Event is a single immutable occurrence flowing through the bus and store.
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Metadata  EventMetadata   `json:"metadata"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEvent constructs an Event with a fresh ID, timestamp, and a new
// correlation id (use WithCorrelation/WithCausation to chain events).
func NewEvent(t EventType, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("events: marshal payload: %w", err)
	}
	id := uuid.NewString()
	return Event{
		ID:        id,
		Type:      t,
		Payload:   raw,
		Timestamp: time.Now().UTC(),
		Metadata:  EventMetadata{CorrelationID: id},
	}, nil
}

// WithCorrelation returns a copy of e carrying the given correlation id.
func (e Event) WithCorrelation(correlationID string) Event {
	e.Metadata.CorrelationID = correlationID
	return e
}

// CausedBy returns a copy of e recording parent as its causation id,
// inheriting parent's correlation id.
func (e Event) CausedBy(parent Event) Event {
	e.Metadata.CorrelationID = parent.Metadata.CorrelationID
	e.Metadata.CausationID = parent.ID
	return e
}

// Unmarshal decodes the event's payload into out.
func (e Event) Unmarshal(out interface{}) error {
	return json.Unmarshal(e.Payload, out)
}
