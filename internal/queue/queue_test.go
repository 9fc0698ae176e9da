package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/coupon-dispatch/internal/logger"
)

func fastQueue() *InMemoryQueue {
	q := NewInMemoryQueue(logger.Discard())
	q.Backoff = func(int) time.Duration { return time.Millisecond }
	return q
}

func TestInMemoryQueue_Delivers(t *testing.T) {
	q := fastQueue()
	var mu sync.Mutex
	var got []Job
	require.NoError(t, q.Subscribe(context.Background(), TopicJobs, func(_ context.Context, job Job) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, job)
		return nil
	}))

	require.NoError(t, q.Publish(context.Background(), TopicJobs, Job{Type: JobDispatch, CampaignID: 7}))
	require.NoError(t, q.Close())

	require.Len(t, got, 1)
	assert.Equal(t, int64(7), got[0].CampaignID)
	assert.False(t, got[0].EnqueuedAt.IsZero())
}

func TestInMemoryQueue_RetriesThenGivesUp(t *testing.T) {
	q := fastQueue()
	q.MaxRetries = 2
	var calls atomic.Int32
	require.NoError(t, q.Subscribe(context.Background(), TopicJobs, func(context.Context, Job) error {
		calls.Add(1)
		return errors.New("boom")
	}))

	require.NoError(t, q.Publish(context.Background(), TopicJobs, Job{Type: JobSyncResults}))
	require.NoError(t, q.Close())
	assert.Equal(t, int32(3), calls.Load())
}

func TestInMemoryQueue_SucceedsOnRetry(t *testing.T) {
	q := fastQueue()
	var calls atomic.Int32
	require.NoError(t, q.Subscribe(context.Background(), TopicJobs, func(context.Context, Job) error {
		if calls.Add(1) < 2 {
			return errors.New("transient")
		}
		return nil
	}))

	require.NoError(t, q.Publish(context.Background(), TopicJobs, Job{Type: JobDispatch}))
	require.NoError(t, q.Close())
	assert.Equal(t, int32(2), calls.Load())
}

func TestInMemoryQueue_NoSubscribers(t *testing.T) {
	q := fastQueue()
	err := q.Publish(context.Background(), "nobody", Job{})
	assert.Error(t, err)
}

func TestRetryCount(t *testing.T) {
	tests := []struct {
		name string
		h    amqp.Table
		want int
	}{
		{"missing", amqp.Table{}, 0},
		{"nil table", nil, 0},
		{"int32", amqp.Table{retryHeader: int32(2)}, 2},
		{"int64", amqp.Table{retryHeader: int64(3)}, 3},
		{"int", amqp.Table{retryHeader: 1}, 1},
		{"wrong type", amqp.Table{retryHeader: "2"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retryCount(tt.h))
		})
	}
}
