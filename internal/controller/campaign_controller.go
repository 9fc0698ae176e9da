// internal/controller/campaign_controller.go
package controller

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/coupon-dispatch/internal/errors"
	"github.com/unclebandit/coupon-dispatch/internal/handler"
	"github.com/unclebandit/coupon-dispatch/internal/middleware"
	"github.com/unclebandit/coupon-dispatch/internal/queue"
	"github.com/unclebandit/coupon-dispatch/internal/service"
)

type CampaignController struct {
	Dispatcher service.Dispatcher
	Syncer     service.ResultSyncer
	Queue      queue.Queue
	Logger     *slog.Logger
	Now        func() time.Time
}

func (c *CampaignController) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now().UTC()
}

// Dispatch runs a campaign dispatch inline, or hands it to the worker when
// called with ?async=true.
func (c *CampaignController) Dispatch(w http.ResponseWriter, r *http.Request) {
	id, err := handler.IDParam(r, "id")
	if err != nil {
		handler.WriteError(w, err)
		return
	}

	if r.URL.Query().Get("async") == "true" {
		c.enqueue(w, r, queue.Job{Type: queue.JobDispatch, CampaignID: id})
		return
	}

	summary, err := c.Dispatcher.Dispatch(r.Context(), id)
	if errors.Is(err, appErrors.ErrAllRecipientsFailed) && summary != nil {
		// every recipient is reported individually in the summary
		handler.WriteJSON(w, http.StatusUnprocessableEntity, summary)
		return
	}
	if err != nil {
		c.Logger.Error("dispatch failed", slog.Int64("campaign_id", id), slog.Any("error", err))
		handler.WriteError(w, err)
		return
	}

	c.Logger.Info("dispatch finished",
		slog.Int64("campaign_id", id),
		slog.Int("enqueued", summary.Enqueued),
		slog.Int("skipped", summary.Skipped),
		slog.Int("failed", summary.Failed))
	handler.WriteJSON(w, http.StatusOK, summary)
}

// SyncResults pulls carrier delivery results; ?period=YYYYMM pins the log table.
func (c *CampaignController) SyncResults(w http.ResponseWriter, r *http.Request) {
	id, err := handler.IDParam(r, "id")
	if err != nil {
		handler.WriteError(w, err)
		return
	}
	period := r.URL.Query().Get("period")

	if r.URL.Query().Get("async") == "true" {
		c.enqueue(w, r, queue.Job{Type: queue.JobSyncResults, CampaignID: id, Period: period})
		return
	}

	summary, err := c.Syncer.SyncDispatchResults(r.Context(), id, period)
	if err != nil {
		handler.WriteError(w, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, summary)
}

func (c *CampaignController) enqueue(w http.ResponseWriter, r *http.Request, job queue.Job) {
	job.RequestID = uuid.NewString()
	job.RequestedBy = middleware.ActorID(r.Context())
	job.EnqueuedAt = c.now()

	if err := c.Queue.Publish(r.Context(), queue.TopicJobs, job); err != nil {
		c.Logger.Error("failed to publish job", slog.String("type", job.Type), slog.Any("error", err))
		handler.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "failed to queue job"})
		return
	}

	handler.WriteJSON(w, http.StatusAccepted, map[string]any{
		"campaign_id": job.CampaignID,
		"request_id":  job.RequestID,
		"status":      "queued",
	})
}
