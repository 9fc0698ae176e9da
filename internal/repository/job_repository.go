package repository

import (
	"context"
	"database/sql"
	"errors"

	appErrors "github.com/unclebandit/coupon-dispatch/internal/errors"
	"github.com/unclebandit/coupon-dispatch/internal/model"
)

type JobRepositoryInterface interface {
	CreateJob(ctx context.Context, job *model.MmsJob) error
	// JobExists reports whether a job already carries the client key.
	JobExists(ctx context.Context, clientKey string) (bool, error)
	ListJobsByCampaign(ctx context.Context, campaignID int64) ([]model.MmsJob, error)
	ListJobsByRecipient(ctx context.Context, recipientID int64) ([]model.MmsJob, error)
	UpdateJobStatus(ctx context.Context, id int64, status string, retryCount int) error
	// GetDispatchResult returns nil when the job has no result yet.
	GetDispatchResult(ctx context.Context, jobID int64) (*model.DispatchResult, error)
	// UpsertDispatchResult keeps one row per job; a re-poll overwrites it.
	UpsertDispatchResult(ctx context.Context, r *model.DispatchResult) error
}

const jobColumns = `id, campaign_id, recipient_id, client_key, req_date, status, retry_count, created_at, updated_at`

func (s *SQLStore) CreateJob(ctx context.Context, job *model.MmsJob) error {
	now := s.now()
	job.CreatedAt, job.UpdatedAt = now, now
	if job.Status == "" {
		job.Status = model.JobReady
	}
	if job.ReqDate == nil {
		job.ReqDate = &now
	}
	id, err := s.insert(ctx, `
        INSERT INTO mms_jobs (campaign_id, recipient_id, client_key, req_date, status, retry_count, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		job.CampaignID, job.RecipientID, job.ClientKey, job.ReqDate, job.Status, job.RetryCount,
		job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return err
	}
	job.ID = id
	return nil
}

func (s *SQLStore) JobExists(ctx context.Context, clientKey string) (bool, error) {
	var n int
	if err := s.get(ctx, &n, `SELECT COUNT(*) FROM mms_jobs WHERE client_key = ?`, clientKey); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLStore) ListJobsByCampaign(ctx context.Context, campaignID int64) ([]model.MmsJob, error) {
	var out []model.MmsJob
	err := s.selectAll(ctx, &out, `SELECT `+jobColumns+` FROM mms_jobs WHERE campaign_id = ? ORDER BY id`, campaignID)
	return out, err
}

func (s *SQLStore) ListJobsByRecipient(ctx context.Context, recipientID int64) ([]model.MmsJob, error) {
	var out []model.MmsJob
	err := s.selectAll(ctx, &out, `SELECT `+jobColumns+` FROM mms_jobs WHERE recipient_id = ? ORDER BY id`, recipientID)
	return out, err
}

func (s *SQLStore) UpdateJobStatus(ctx context.Context, id int64, status string, retryCount int) error {
	err := s.execOne(ctx, `UPDATE mms_jobs SET status = ?, retry_count = ?, updated_at = ? WHERE id = ?`,
		status, retryCount, s.now(), id)
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.NewNotFound("mms job", id)
	}
	return err
}

func (s *SQLStore) GetDispatchResult(ctx context.Context, jobID int64) (*model.DispatchResult, error) {
	var r model.DispatchResult
	err := s.get(ctx, &r, `
        SELECT id, mms_job_id, done_code, done_desc, telco, sent_at, completed_at, created_at, updated_at
        FROM dispatch_results WHERE mms_job_id = ?`, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *SQLStore) UpsertDispatchResult(ctx context.Context, r *model.DispatchResult) error {
	now := s.now()
	r.UpdatedAt = now
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	id, err := s.insert(ctx, `
        INSERT INTO dispatch_results (mms_job_id, done_code, done_desc, telco, sent_at, completed_at, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (mms_job_id) DO UPDATE
        SET done_code = excluded.done_code,
            done_desc = excluded.done_desc,
            telco = excluded.telco,
            sent_at = excluded.sent_at,
            completed_at = excluded.completed_at,
            updated_at = excluded.updated_at`,
		r.MmsJobID, r.DoneCode, r.DoneDesc, r.Telco, r.SentAt, r.CompletedAt, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return err
	}
	r.ID = id
	return nil
}
