package webhooks

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/authcore/runtime/internal/autherr"
	"github.com/authcore/runtime/internal/events"
	"github.com/authcore/runtime/internal/logger"
)

// SystemConfig tunes a WebhookSystem's delivery engine.
type SystemConfig struct {
	Retry         RetryStrategy
	RateLimit     RateLimitConfig
	Breaker       BreakerConfig
	Workers       int
	HTTPClient    *http.Client
}

// RateLimitConfig configures the per-system token bucket.
type RateLimitConfig struct {
	Capacity      float64
	RefillPerSec  float64
	MaxConcurrent int
}

// DefaultRateLimitConfig allows a modest steady-state throughput.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{Capacity: 10, RefillPerSec: 5, MaxConcurrent: 10}
}

// DefaultSystemConfig wires the reference exponential backoff, default
// rate limit, and default circuit breaker thresholds.
func DefaultSystemConfig() SystemConfig {
	backoff := NewExponentialBackoff()
	return SystemConfig{
		Retry:      backoff,
		RateLimit:  DefaultRateLimitConfig(),
		Breaker:    DefaultBreakerConfig(),
		Workers:    4,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// WebhookSystem wires endpoint storage, a delivery queue, per-endpoint
// signers/breakers, a shared rate limiter, and a worker pool into a single
// component that subscribes to an events.Bus and delivers matching events
// to every registered, filter-matching endpoint.
type WebhookSystem struct {
	storage WebhookStorage
	queue   WebhookQueue
	dlq     *events.DeadLetterQueue
	config  SystemConfig
	limiter *RateLimiter

	mu       sync.Mutex
	breakers map[string]*CircuitBreaker

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewWebhookSystem constructs a WebhookSystem. dlq may be nil, in which
// case exhausted deliveries are only logged.
func NewWebhookSystem(storage WebhookStorage, queue WebhookQueue, dlq *events.DeadLetterQueue, config SystemConfig) *WebhookSystem {
	return &WebhookSystem{
		storage:  storage,
		queue:    queue,
		dlq:      dlq,
		config:   config,
		limiter:  NewRateLimiter(config.RateLimit.Capacity, config.RateLimit.RefillPerSec, config.RateLimit.MaxConcurrent),
		breakers: map[string]*CircuitBreaker{},
		stopCh:   make(chan struct{}),
	}
}

// RegisterEndpoint saves e and returns nothing further to wire: future
// matching events are picked up by OnEvent.
func (s *WebhookSystem) RegisterEndpoint(ctx context.Context, e WebhookEndpoint) error {
	return s.storage.SaveEndpoint(ctx, e)
}

// OnEvent is an events.Handler: it fans e out to every active endpoint
// whose filter matches, enqueuing one WebhookJob per match. Register via
// bus.Subscribe("*", system.OnEvent).
func (s *WebhookSystem) OnEvent(e events.Event) error {
	ctx := context.Background()
	endpoints, err := s.storage.ListEndpoints(ctx)
	if err != nil {
		return err
	}
	simpleType := e.Type.Simple()
	envelope, err := NewEnvelope(e).Marshal()
	if err != nil {
		return err
	}
	for _, ep := range endpoints {
		if !ep.Active || !ep.Filter.Matches(simpleType) {
			continue
		}
		job := NewWebhookJob(ep.ID, simpleType, envelope)
		if err := s.queue.Enqueue(ctx, job); err != nil {
			logger.Webhooks().Error().Err(err).Str("endpoint_id", ep.ID).Msg("failed to enqueue webhook job")
		}
	}
	return nil
}

func (s *WebhookSystem) breakerFor(endpointID string) *CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.breakers[endpointID]
	if !ok {
		b = NewCircuitBreaker(s.config.Breaker)
		s.breakers[endpointID] = b
	}
	return b
}

// Start launches the configured number of delivery workers. Stop via
// Shutdown.
func (s *WebhookSystem) Start(ctx context.Context) {
	for i := 0; i < s.config.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}
}

// Shutdown signals every worker to stop and waits for in-flight jobs to
// finish.
func (s *WebhookSystem) Shutdown() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *WebhookSystem) worker(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.processOne(ctx)
		}
	}
}

func (s *WebhookSystem) processOne(ctx context.Context) {
	job, ok, err := s.queue.Dequeue(ctx)
	if err != nil || !ok {
		return
	}

	endpoint, err := s.storage.GetEndpoint(ctx, job.EndpointID)
	if err != nil {
		_ = s.queue.MarkFailed(ctx, job.ID, "endpoint not found")
		return
	}

	breaker := s.breakerFor(endpoint.ID)
	if !breaker.Allow() {
		s.reschedule(ctx, job, fmt.Errorf("circuit open for endpoint %s", endpoint.ID))
		return
	}

	permit, ok := s.limiter.TryAcquire()
	if !ok {
		s.reschedule(ctx, job, fmt.Errorf("rate limited"))
		return
	}
	defer permit.Release()

	statusCode, deliverErr := s.deliver(ctx, endpoint, job)
	if deliverErr == nil {
		breaker.RecordSuccess()
		_ = s.queue.MarkComplete(ctx, job.ID)
		_ = s.storage.RecordDelivery(ctx, WebhookDelivery{
			JobID: job.ID, EndpointID: endpoint.ID, Attempt: job.Attempt,
			StatusCode: statusCode, DeliveredAt: time.Now().UTC(),
		})
		return
	}

	breaker.RecordFailure()
	_ = s.storage.RecordDelivery(ctx, WebhookDelivery{
		JobID: job.ID, EndpointID: endpoint.ID, Attempt: job.Attempt,
		StatusCode: statusCode, Err: deliverErr.Error(), DeliveredAt: time.Now().UTC(),
	})
	s.reschedule(ctx, job, deliverErr)
}

func (s *WebhookSystem) reschedule(ctx context.Context, job WebhookJob, cause error) {
	delay, retry := s.config.Retry.NextDelay(job.Attempt + 1)
	if !retry {
		_ = s.queue.MarkFailed(ctx, job.ID, cause.Error())
		logger.Webhooks().Warn().Str("job_id", job.ID).Err(cause).Msg("webhook delivery exhausted retries")
		if s.dlq != nil {
			dead, err := events.NewEvent(events.NewEventType("webhooks", "delivery_failed", 1), job)
			if err == nil {
				_ = s.dlq.Send(dead, cause.Error())
			}
		}
		return
	}
	if err := s.queue.ScheduleRetry(ctx, job, time.Now().UTC().Add(delay)); err != nil {
		logger.Webhooks().Error().Err(err).Str("job_id", job.ID).Msg("failed to schedule webhook retry")
	}
}

func (s *WebhookSystem) deliver(ctx context.Context, endpoint WebhookEndpoint, job WebhookJob) (int, error) {
	deliverCtx, cancel := context.WithTimeout(ctx, endpoint.Metadata.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(deliverCtx, http.MethodPost, endpoint.URL, bytes.NewReader(job.Payload))
	if err != nil {
		return 0, autherr.HTTPError(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Webhook-Event-Type", job.EventType)
	req.Header.Set(SignatureHeader, NewSigner(endpoint.Secret).SignHeader(job.Payload))
	for k, v := range endpoint.Metadata.Headers {
		req.Header.Set(k, v)
	}

	client := s.config.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		if deliverCtx.Err() != nil {
			return 0, autherr.RequestTimeout()
		}
		return 0, autherr.HTTPError(err.Error())
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return resp.StatusCode, autherr.HTTPError(fmt.Sprintf("endpoint returned %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return resp.StatusCode, autherr.HTTPError(fmt.Sprintf("endpoint rejected delivery with %d", resp.StatusCode))
	}
	return resp.StatusCode, nil
}
