package webhooks

import (
	"container/list"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// WebhookJobStatus is the lifecycle state of a single delivery attempt.
type WebhookJobStatus int

const (
	JobPending WebhookJobStatus = iota
	JobProcessing
	JobCompleted
	JobFailed
)

// WebhookJob is one delivery unit: an event destined for one endpoint.
type WebhookJob struct {
	ID          string
	EndpointID  string
	EventType   string
	Payload     json.RawMessage
	Status      WebhookJobStatus
	Attempt     int
	EnqueuedAt  time.Time
	NotBefore   time.Time // scheduled retry time; zero means immediately eligible
}

// NewWebhookJob constructs a pending job ready for immediate delivery.
func NewWebhookJob(endpointID, eventType string, payload json.RawMessage) WebhookJob {
	now := time.Now().UTC()
	return WebhookJob{
		ID: uuid.NewString(), EndpointID: endpointID, EventType: eventType,
		Payload: payload, Status: JobPending, EnqueuedAt: now, NotBefore: now,
	}
}

// WebhookDelivery is a completed (successful or exhausted) delivery log
// entry.
type WebhookDelivery struct {
	JobID        string
	EndpointID   string
	Attempt      int
	StatusCode   int
	Err          string
	DeliveredAt  time.Time
}

// WebhookQueue is the durable contract for pending/in-flight delivery
// jobs. InMemoryQueue and RedisQueue both satisfy it.
type WebhookQueue interface {
	Enqueue(ctx context.Context, job WebhookJob) error
	Dequeue(ctx context.Context) (WebhookJob, bool, error)
	MarkComplete(ctx context.Context, jobID string) error
	MarkFailed(ctx context.Context, jobID string, reason string) error
	ScheduleRetry(ctx context.Context, job WebhookJob, notBefore time.Time) error
	GetJob(ctx context.Context, jobID string) (WebhookJob, bool, error)
	PendingJobs(ctx context.Context) ([]WebhookJob, error)
	Len(ctx context.Context) (int, error)
	IsEmpty(ctx context.Context) (bool, error)
	Clear(ctx context.Context) error
}

// InMemoryQueue is a FIFO WebhookQueue backed by a doubly linked list,
// mirroring the reference implementation's VecDeque.
type InMemoryQueue struct {
	mu      sync.Mutex
	pending *list.List // *WebhookJob, ready (NotBefore <= now)
	delayed []*WebhookJob
	jobs    map[string]*WebhookJob
}

func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{pending: list.New(), jobs: map[string]*WebhookJob{}}
}

func (q *InMemoryQueue) Enqueue(ctx context.Context, job WebhookJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	j := job
	q.jobs[j.ID] = &j
	q.pending.PushBack(&j)
	return nil
}

func (q *InMemoryQueue) promoteReadyLocked() {
	now := time.Now().UTC()
	var stillDelayed []*WebhookJob
	for _, j := range q.delayed {
		if !j.NotBefore.After(now) {
			q.pending.PushBack(j)
		} else {
			stillDelayed = append(stillDelayed, j)
		}
	}
	q.delayed = stillDelayed
}

func (q *InMemoryQueue) Dequeue(ctx context.Context) (WebhookJob, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.promoteReadyLocked()
	front := q.pending.Front()
	if front == nil {
		return WebhookJob{}, false, nil
	}
	q.pending.Remove(front)
	job := front.Value.(*WebhookJob)
	job.Status = JobProcessing
	return *job, true, nil
}

func (q *InMemoryQueue) MarkComplete(ctx context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[jobID]
	if !ok {
		return fmt.Errorf("webhooks: unknown job %q", jobID)
	}
	job.Status = JobCompleted
	return nil
}

func (q *InMemoryQueue) MarkFailed(ctx context.Context, jobID string, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[jobID]
	if !ok {
		return fmt.Errorf("webhooks: unknown job %q", jobID)
	}
	job.Status = JobFailed
	return nil
}

func (q *InMemoryQueue) ScheduleRetry(ctx context.Context, job WebhookJob, notBefore time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	j := job
	j.Status = JobPending
	j.Attempt++
	j.NotBefore = notBefore
	q.jobs[j.ID] = &j
	q.delayed = append(q.delayed, &j)
	return nil
}

func (q *InMemoryQueue) GetJob(ctx context.Context, jobID string) (WebhookJob, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[jobID]
	if !ok {
		return WebhookJob{}, false, nil
	}
	return *job, true, nil
}

func (q *InMemoryQueue) PendingJobs(ctx context.Context) ([]WebhookJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []WebhookJob
	for e := q.pending.Front(); e != nil; e = e.Next() {
		out = append(out, *e.Value.(*WebhookJob))
	}
	for _, j := range q.delayed {
		out = append(out, *j)
	}
	return out, nil
}

func (q *InMemoryQueue) Len(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending.Len() + len(q.delayed), nil
}

func (q *InMemoryQueue) IsEmpty(ctx context.Context) (bool, error) {
	n, _ := q.Len(ctx)
	return n == 0, nil
}

func (q *InMemoryQueue) Clear(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending.Init()
	q.delayed = nil
	q.jobs = map[string]*WebhookJob{}
	return nil
}

// RedisQueue is a durable WebhookQueue backed by a Redis sorted set keyed
// by NotBefore (as a unix-nano score), so Dequeue naturally yields the
// earliest-eligible job first. Job bodies are stored in a companion hash.
type RedisQueue struct {
	client  *redis.Client
	zsetKey string
	hashKey string
}

func NewRedisQueue(client *redis.Client, namespace string) *RedisQueue {
	return &RedisQueue{
		client:  client,
		zsetKey: namespace + ":webhooks:queue",
		hashKey: namespace + ":webhooks:jobs",
	}
}

func (q *RedisQueue) Enqueue(ctx context.Context, job WebhookJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("webhooks: marshal job: %w", err)
	}
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, q.hashKey, job.ID, data)
	pipe.ZAdd(ctx, q.zsetKey, redis.Z{Score: float64(job.NotBefore.UnixNano()), Member: job.ID})
	_, err = pipe.Exec(ctx)
	return err
}

func (q *RedisQueue) Dequeue(ctx context.Context) (WebhookJob, bool, error) {
	now := float64(time.Now().UTC().UnixNano())
	ids, err := q.client.ZRangeByScore(ctx, q.zsetKey, &redis.ZRangeBy{Min: "-inf", Max: fmt.Sprintf("%f", now), Count: 1}).Result()
	if err != nil {
		return WebhookJob{}, false, err
	}
	if len(ids) == 0 {
		return WebhookJob{}, false, nil
	}
	id := ids[0]
	if removed, err := q.client.ZRem(ctx, q.zsetKey, id).Result(); err != nil || removed == 0 {
		// another worker claimed it first
		return WebhookJob{}, false, nil
	}
	job, ok, err := q.GetJob(ctx, id)
	if err != nil || !ok {
		return WebhookJob{}, false, err
	}
	job.Status = JobProcessing
	if err := q.saveJob(ctx, job); err != nil {
		return WebhookJob{}, false, err
	}
	return job, true, nil
}

func (q *RedisQueue) saveJob(ctx context.Context, job WebhookJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.client.HSet(ctx, q.hashKey, job.ID, data).Err()
}

func (q *RedisQueue) MarkComplete(ctx context.Context, jobID string) error {
	job, ok, err := q.GetJob(ctx, jobID)
	if err != nil || !ok {
		return err
	}
	job.Status = JobCompleted
	return q.saveJob(ctx, job)
}

func (q *RedisQueue) MarkFailed(ctx context.Context, jobID string, reason string) error {
	job, ok, err := q.GetJob(ctx, jobID)
	if err != nil || !ok {
		return err
	}
	job.Status = JobFailed
	return q.saveJob(ctx, job)
}

func (q *RedisQueue) ScheduleRetry(ctx context.Context, job WebhookJob, notBefore time.Time) error {
	job.Status = JobPending
	job.Attempt++
	job.NotBefore = notBefore
	if err := q.saveJob(ctx, job); err != nil {
		return err
	}
	return q.client.ZAdd(ctx, q.zsetKey, redis.Z{Score: float64(notBefore.UnixNano()), Member: job.ID}).Err()
}

func (q *RedisQueue) GetJob(ctx context.Context, jobID string) (WebhookJob, bool, error) {
	data, err := q.client.HGet(ctx, q.hashKey, jobID).Result()
	if err == redis.Nil {
		return WebhookJob{}, false, nil
	}
	if err != nil {
		return WebhookJob{}, false, err
	}
	var job WebhookJob
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return WebhookJob{}, false, fmt.Errorf("webhooks: unmarshal job: %w", err)
	}
	return job, true, nil
}

func (q *RedisQueue) PendingJobs(ctx context.Context) ([]WebhookJob, error) {
	ids, err := q.client.ZRange(ctx, q.zsetKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	var out []WebhookJob
	for _, id := range ids {
		job, ok, err := q.GetJob(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, job)
		}
	}
	return out, nil
}

func (q *RedisQueue) Len(ctx context.Context) (int, error) {
	n, err := q.client.ZCard(ctx, q.zsetKey).Result()
	return int(n), err
}

func (q *RedisQueue) IsEmpty(ctx context.Context) (bool, error) {
	n, err := q.Len(ctx)
	return n == 0, err
}

func (q *RedisQueue) Clear(ctx context.Context) error {
	pipe := q.client.TxPipeline()
	pipe.Del(ctx, q.zsetKey)
	pipe.Del(ctx, q.hashKey)
	_, err := pipe.Exec(ctx)
	return err
}
