package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	appErrors "github.com/unclebandit/coupon-dispatch/internal/errors"
	"github.com/unclebandit/coupon-dispatch/internal/queue"
)

// Dispatcher is the slice of DispatchService the worker needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, campaignID int64) (*DispatchSummary, error)
}

// ResultSyncer is the slice of ReconcileService the worker needs.
type ResultSyncer interface {
	SyncDispatchResults(ctx context.Context, campaignID int64, period string) (SyncSummary, error)
}

// Worker processes background jobs from the queue
type Worker struct {
	Dispatcher Dispatcher
	Syncer     ResultSyncer
	Logger     *slog.Logger
}

// Constructor
func NewWorker(dispatcher Dispatcher, syncer ResultSyncer, log *slog.Logger) *Worker {
	return &Worker{Dispatcher: dispatcher, Syncer: syncer, Logger: log}
}

// Start subscribes the worker to the job topic.
func (w *Worker) Start(ctx context.Context, q queue.Queue) error {
	return q.Subscribe(ctx, queue.TopicJobs, w.Handle)
}

// Handle runs one job. Only failures worth retrying are returned; caller
// mistakes are logged and acknowledged.
func (w *Worker) Handle(ctx context.Context, job queue.Job) error {
	log := w.Logger.With(
		slog.String("job_type", job.Type),
		slog.Int64("campaign_id", job.CampaignID),
		slog.String("request_id", job.RequestID))

	var err error
	switch job.Type {
	case queue.JobDispatch:
		var sum *DispatchSummary
		sum, err = w.Dispatcher.Dispatch(ctx, job.CampaignID)
		if sum != nil {
			log.Info("dispatch job done", slog.Int("enqueued", sum.Enqueued), slog.Int("failed", sum.Failed))
		}
	case queue.JobSyncResults:
		var sum SyncSummary
		sum, err = w.Syncer.SyncDispatchResults(ctx, job.CampaignID, job.Period)
		log.Info("result sync job done", slog.Int("updated", sum.Updated), slog.Int("failed", sum.Failed))
	default:
		log.Error("unknown job type")
		return nil
	}

	if err == nil {
		return nil
	}
	if appErrors.IsValidation(err) || appErrors.IsNotFound(err) {
		log.Warn("job rejected", slog.Any("error", err))
		return nil
	}
	if errors.Is(err, appErrors.ErrAllRecipientsFailed) {
		return fmt.Errorf("dispatch campaign %d: %w", job.CampaignID, err)
	}
	return err
}
