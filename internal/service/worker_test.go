package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	appErrors "github.com/unclebandit/coupon-dispatch/internal/errors"
	"github.com/unclebandit/coupon-dispatch/internal/logger"
	"github.com/unclebandit/coupon-dispatch/internal/queue"
	"github.com/unclebandit/coupon-dispatch/internal/service"
)

type mockDispatcher struct{ mock.Mock }

func (m *mockDispatcher) Dispatch(ctx context.Context, campaignID int64) (*service.DispatchSummary, error) {
	args := m.Called(ctx, campaignID)
	sum, _ := args.Get(0).(*service.DispatchSummary)
	return sum, args.Error(1)
}

type mockSyncer struct{ mock.Mock }

func (m *mockSyncer) SyncDispatchResults(ctx context.Context, campaignID int64, period string) (service.SyncSummary, error) {
	args := m.Called(ctx, campaignID, period)
	return args.Get(0).(service.SyncSummary), args.Error(1)
}

func TestWorker_Handle(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		job       queue.Job
		setup     func(d *mockDispatcher, s *mockSyncer)
		wantRetry bool
	}{
		{
			name: "dispatch ok",
			job:  queue.Job{Type: queue.JobDispatch, CampaignID: 1},
			setup: func(d *mockDispatcher, _ *mockSyncer) {
				d.On("Dispatch", ctx, int64(1)).Return(&service.DispatchSummary{Enqueued: 3}, nil)
			},
		},
		{
			name: "all recipients failed is retried",
			job:  queue.Job{Type: queue.JobDispatch, CampaignID: 2},
			setup: func(d *mockDispatcher, _ *mockSyncer) {
				d.On("Dispatch", ctx, int64(2)).Return(&service.DispatchSummary{Failed: 2}, appErrors.ErrAllRecipientsFailed)
			},
			wantRetry: true,
		},
		{
			name: "missing campaign is dropped",
			job:  queue.Job{Type: queue.JobDispatch, CampaignID: 3},
			setup: func(d *mockDispatcher, _ *mockSyncer) {
				d.On("Dispatch", ctx, int64(3)).Return(nil, appErrors.NewCampaignNotFound(3))
			},
		},
		{
			name: "sync passes the period",
			job:  queue.Job{Type: queue.JobSyncResults, CampaignID: 4, Period: "202603"},
			setup: func(_ *mockDispatcher, s *mockSyncer) {
				s.On("SyncDispatchResults", ctx, int64(4), "202603").Return(service.SyncSummary{Updated: 1}, nil)
			},
		},
		{
			name: "sync infrastructure error is retried",
			job:  queue.Job{Type: queue.JobSyncResults, CampaignID: 5},
			setup: func(_ *mockDispatcher, s *mockSyncer) {
				s.On("SyncDispatchResults", ctx, int64(5), "").Return(service.SyncSummary{}, errors.New("db down"))
			},
			wantRetry: true,
		},
		{
			name:  "unknown job type is dropped",
			job:   queue.Job{Type: "reindex"},
			setup: func(*mockDispatcher, *mockSyncer) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, s := &mockDispatcher{}, &mockSyncer{}
			tt.setup(d, s)
			w := service.NewWorker(d, s, logger.Discard())

			err := w.Handle(ctx, tt.job)
			if tt.wantRetry {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			d.AssertExpectations(t)
			s.AssertExpectations(t)
		})
	}
}

func TestWorker_ConsumesFromQueue(t *testing.T) {
	ctx := context.Background()
	d := &mockDispatcher{}
	d.On("Dispatch", mock.Anything, int64(9)).Return(&service.DispatchSummary{Enqueued: 1}, nil).Once()

	q := queue.NewInMemoryQueue(logger.Discard())
	w := service.NewWorker(d, &mockSyncer{}, logger.Discard())
	assert.NoError(t, w.Start(ctx, q))
	assert.NoError(t, q.Publish(ctx, queue.TopicJobs, queue.Job{Type: queue.JobDispatch, CampaignID: 9}))
	assert.NoError(t, q.Close())

	d.AssertExpectations(t)
}
