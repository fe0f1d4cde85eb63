package webhooks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/authcore/runtime/internal/events"
)

// Envelope is the wire body POSTed to a webhook endpoint: a stable wrapper
// around an event that is independent of the internal bus representation.
// Type always carries the version-less "namespace.name" form; callers that
// need the schema version can still find it in CorrelationID-linked store
// lookups or the original event.
type Envelope struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Data          json.RawMessage `json:"data"`
	Timestamp     string          `json:"timestamp"`
	CorrelationID *string         `json:"correlation_id"`
}

// NewEnvelope builds the delivery envelope for e. CorrelationID is nil
// (JSON null) when e carries no correlation id.
func NewEnvelope(e events.Event) Envelope {
	var correlationID *string
	if e.Metadata.CorrelationID != "" {
		id := e.Metadata.CorrelationID
		correlationID = &id
	}
	return Envelope{
		ID:            e.ID,
		Type:          e.Type.Simple(),
		Data:          e.Payload,
		Timestamp:     e.Timestamp.Format(time.RFC3339),
		CorrelationID: correlationID,
	}
}

// Marshal encodes the envelope as the exact JSON body delivered to
// endpoints.
func (env Envelope) Marshal() (json.RawMessage, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("webhooks: marshal envelope: %w", err)
	}
	return data, nil
}
