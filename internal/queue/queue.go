package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	// TopicJobs carries dispatch and result-sync requests to cmd/worker.
	TopicJobs = "coupon_jobs"

	JobDispatch    = "dispatch"
	JobSyncResults = "sync_results"
)

// Job is a unit of background work.
type Job struct {
	Type        string    `json:"type"`
	CampaignID  int64     `json:"campaign_id"`
	Period      string    `json:"period,omitempty"`
	RequestedBy string    `json:"requested_by,omitempty"`
	RequestID   string    `json:"request_id"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}

type Handler func(ctx context.Context, job Job) error

// Queue interface
type Queue interface {
	Publish(ctx context.Context, topic string, job Job) error
	// Subscribe registers handler and returns immediately. Handlers run until
	// ctx is cancelled or the queue is closed.
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}

// InMemoryQueue delivers jobs to in-process subscribers with retry.
type InMemoryQueue struct {
	mu         sync.Mutex
	handlers   map[string][]subscriber
	wg         sync.WaitGroup
	log        *slog.Logger
	MaxRetries int
	Backoff    func(attempt int) time.Duration
}

type subscriber struct {
	ctx     context.Context
	handler Handler
}

// NewInMemoryQueue creates a new queue
func NewInMemoryQueue(log *slog.Logger) *InMemoryQueue {
	return &InMemoryQueue{
		handlers:   make(map[string][]subscriber),
		log:        log,
		MaxRetries: 3,
		Backoff: func(attempt int) time.Duration {
			return time.Duration(attempt*500) * time.Millisecond
		},
	}
}

// Publish sends a job to all subscribers of topic.
func (q *InMemoryQueue) Publish(_ context.Context, topic string, job Job) error {
	q.mu.Lock()
	handlers := q.handlers[topic]
	q.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}

	for _, sub := range handlers {
		q.wg.Add(1)
		go q.processJob(sub, job)
	}
	return nil
}

// processJob handles retries and errors
func (q *InMemoryQueue) processJob(sub subscriber, job Job) {
	defer q.wg.Done()
	log := q.log.With(slog.String("job_type", job.Type), slog.String("request_id", job.RequestID))

	for attempt := 0; ; attempt++ {
		err := sub.handler(sub.ctx, job)
		if err == nil {
			log.Debug("job processed")
			return
		}
		if attempt >= q.MaxRetries {
			log.Error("job permanently failed", slog.Int("attempts", attempt+1), slog.Any("error", err))
			return
		}
		log.Warn("job failed, retrying", slog.Int("attempt", attempt+1), slog.Any("error", err))

		select {
		case <-time.After(q.Backoff(attempt + 1)):
		case <-sub.ctx.Done():
			return
		}
	}
}

// Subscribe adds a handler for a topic
func (q *InMemoryQueue) Subscribe(ctx context.Context, topic string, handler Handler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], subscriber{ctx: ctx, handler: handler})
	return nil
}

// Close waits for in-flight jobs.
func (q *InMemoryQueue) Close() error {
	q.wg.Wait()
	return nil
}
