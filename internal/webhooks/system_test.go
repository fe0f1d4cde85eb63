package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/authcore/runtime/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSystem(t *testing.T, client *http.Client) (*WebhookSystem, WebhookStorage) {
	t.Helper()
	storage := NewInMemoryWebhookStorage()
	queue := NewInMemoryQueue()
	sys := NewWebhookSystem(storage, queue, nil, SystemConfig{
		Retry:      NoRetry{},
		RateLimit:  RateLimitConfig{Capacity: 10, RefillPerSec: 10, MaxConcurrent: 10},
		Breaker:    DefaultBreakerConfig(),
		Workers:    1,
		HTTPClient: client,
	})
	return sys, storage
}

func TestWebhookSystem_OnEvent_EnqueuesJobForMatchingEndpoint(t *testing.T) {
	sys, storage := newTestSystem(t, http.DefaultClient)
	ctx := context.Background()
	require.NoError(t, storage.SaveEndpoint(ctx, NewEndpoint("ep-1", "https://example.com", "secret", AllEvents())))

	e, err := events.NewEvent(events.NewEventType("auth", "signin", 1), nil)
	require.NoError(t, err)
	require.NoError(t, sys.OnEvent(e))

	n, err := sys.queue.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestWebhookSystem_OnEvent_SkipsInactiveEndpoint(t *testing.T) {
	sys, storage := newTestSystem(t, http.DefaultClient)
	ctx := context.Background()
	ep := NewEndpoint("ep-1", "https://example.com", "secret", AllEvents())
	ep.Active = false
	require.NoError(t, storage.SaveEndpoint(ctx, ep))

	e, err := events.NewEvent(events.NewEventType("auth", "signin", 1), nil)
	require.NoError(t, err)
	require.NoError(t, sys.OnEvent(e))

	n, _ := sys.queue.Len(ctx)
	assert.Equal(t, 0, n)
}

func TestWebhookSystem_OnEvent_SkipsNonMatchingFilter(t *testing.T) {
	sys, storage := newTestSystem(t, http.DefaultClient)
	ctx := context.Background()
	require.NoError(t, storage.SaveEndpoint(ctx, NewEndpoint("ep-1", "https://example.com", "secret", SpecificEvents("webhook.delivered.v1"))))

	e, err := events.NewEvent(events.NewEventType("auth", "signin", 1), nil)
	require.NoError(t, err)
	require.NoError(t, sys.OnEvent(e))

	n, _ := sys.queue.Len(ctx)
	assert.Equal(t, 0, n)
}

func TestWebhookSystem_ProcessOne_SuccessfulDeliveryRecordsCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get(SignatureHeader))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sys, storage := newTestSystem(t, server.Client())
	ctx := context.Background()
	require.NoError(t, storage.SaveEndpoint(ctx, NewEndpoint("ep-1", server.URL, "secret", AllEvents())))

	e, err := events.NewEvent(events.NewEventType("auth", "signin", 1), nil)
	require.NoError(t, err)
	require.NoError(t, sys.OnEvent(e))

	sys.processOne(ctx)

	deliveries, err := storage.ListDeliveries(ctx, "ep-1")
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.Equal(t, http.StatusOK, deliveries[0].StatusCode)
	assert.Empty(t, deliveries[0].Err)
}

func TestWebhookSystem_ProcessOne_FailureWithNoRetryMarksFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	sys, storage := newTestSystem(t, server.Client())
	ctx := context.Background()
	require.NoError(t, storage.SaveEndpoint(ctx, NewEndpoint("ep-1", server.URL, "secret", AllEvents())))

	e, err := events.NewEvent(events.NewEventType("auth", "signin", 1), nil)
	require.NoError(t, err)
	require.NoError(t, sys.OnEvent(e))

	sys.processOne(ctx)

	deliveries, err := storage.ListDeliveries(ctx, "ep-1")
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.NotEmpty(t, deliveries[0].Err)

	// NoRetry means the job is marked failed rather than rescheduled.
	job, ok, err := sys.queue.GetJob(ctx, deliveries[0].JobID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, JobFailed, job.Status)
}

func TestWebhookSystem_OnEvent_FiltersAndEnvelopesBySimpleType(t *testing.T) {
	sys, storage := newTestSystem(t, http.DefaultClient)
	ctx := context.Background()
	require.NoError(t, storage.SaveEndpoint(ctx, NewEndpoint("ep-1", "https://example.com", "secret", SpecificEvents("auth.signin"))))

	e, err := events.NewEvent(events.NewEventType("auth", "signin", 1), map[string]string{"user_id": "u1"})
	require.NoError(t, err)
	require.NoError(t, sys.OnEvent(e))

	n, err := sys.queue.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "filter on simple type must match a versioned event type")
}

func TestWebhookSystem_ProcessOne_PostsEnvelopeNotRawPayload(t *testing.T) {
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		body, err = io.ReadAll(r.Body)
		assert.NoError(t, err)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sys, storage := newTestSystem(t, server.Client())
	ctx := context.Background()
	require.NoError(t, storage.SaveEndpoint(ctx, NewEndpoint("ep-1", server.URL, "secret", AllEvents())))

	e, err := events.NewEvent(events.NewEventType("user", "created", 1), map[string]string{"user_id": "u1"})
	require.NoError(t, err)
	require.NoError(t, sys.OnEvent(e))

	sys.processOne(ctx)

	var envelope Envelope
	require.NoError(t, json.Unmarshal(body, &envelope))
	assert.Equal(t, e.ID, envelope.ID)
	assert.Equal(t, "user.created", envelope.Type)
	assert.JSONEq(t, `{"user_id":"u1"}`, string(envelope.Data))
	assert.NotEmpty(t, envelope.Timestamp)
	require.NotNil(t, envelope.CorrelationID)
	assert.Equal(t, e.Metadata.CorrelationID, *envelope.CorrelationID)
}

func TestWebhookSystem_RegisterEndpoint_Persists(t *testing.T) {
	sys, storage := newTestSystem(t, http.DefaultClient)
	ctx := context.Background()
	ep := NewEndpoint("ep-1", "https://example.com", "secret", AllEvents())
	require.NoError(t, sys.RegisterEndpoint(ctx, ep))

	got, err := storage.GetEndpoint(ctx, "ep-1")
	require.NoError(t, err)
	assert.Equal(t, ep.URL, got.URL)
}
