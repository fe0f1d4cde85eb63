package webhooks

import (
	"context"
	"fmt"
	"sync"

	"github.com/authcore/runtime/internal/autherr"
)

// WebhookStorage persists registered endpoints and delivery history.
type WebhookStorage interface {
	SaveEndpoint(ctx context.Context, e WebhookEndpoint) error
	GetEndpoint(ctx context.Context, id string) (WebhookEndpoint, error)
	ListEndpoints(ctx context.Context) ([]WebhookEndpoint, error)
	DeleteEndpoint(ctx context.Context, id string) error
	RecordDelivery(ctx context.Context, d WebhookDelivery) error
	ListDeliveries(ctx context.Context, endpointID string) ([]WebhookDelivery, error)
}

// InMemoryWebhookStorage is a map-backed WebhookStorage.
type InMemoryWebhookStorage struct {
	mu         sync.RWMutex
	endpoints  map[string]WebhookEndpoint
	deliveries map[string][]WebhookDelivery // endpointID -> log
}

func NewInMemoryWebhookStorage() *InMemoryWebhookStorage {
	return &InMemoryWebhookStorage{
		endpoints:  map[string]WebhookEndpoint{},
		deliveries: map[string][]WebhookDelivery{},
	}
}

func (s *InMemoryWebhookStorage) SaveEndpoint(ctx context.Context, e WebhookEndpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endpoints[e.ID] = e
	return nil
}

func (s *InMemoryWebhookStorage) GetEndpoint(ctx context.Context, id string) (WebhookEndpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.endpoints[id]
	if !ok {
		return WebhookEndpoint{}, autherr.EndpointNotFound(id)
	}
	return e, nil
}

func (s *InMemoryWebhookStorage) ListEndpoints(ctx context.Context) ([]WebhookEndpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]WebhookEndpoint, 0, len(s.endpoints))
	for _, e := range s.endpoints {
		out = append(out, e)
	}
	return out, nil
}

func (s *InMemoryWebhookStorage) DeleteEndpoint(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.endpoints[id]; !ok {
		return autherr.EndpointNotFound(id)
	}
	delete(s.endpoints, id)
	delete(s.deliveries, id)
	return nil
}

func (s *InMemoryWebhookStorage) RecordDelivery(ctx context.Context, d WebhookDelivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.endpoints[d.EndpointID]; !ok {
		return fmt.Errorf("webhooks: record delivery for unknown endpoint %q", d.EndpointID)
	}
	s.deliveries[d.EndpointID] = append(s.deliveries[d.EndpointID], d)
	return nil
}

func (s *InMemoryWebhookStorage) ListDeliveries(ctx context.Context, endpointID string) ([]WebhookDelivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]WebhookDelivery(nil), s.deliveries[endpointID]...), nil
}
