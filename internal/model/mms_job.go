// internal/model/mms_job.go
package model

import "time"

const (
	JobReady     = "READY"
	JobCompleted = "COMPLETED"
	JobFailed    = "FAILED"
)

// MmsJob is one enqueue attempt; ClientKey is the carrier correlation id.
type MmsJob struct {
	ID          int64      `db:"id" json:"id"`
	CampaignID  int64      `db:"campaign_id" json:"campaign_id"`
	RecipientID int64      `db:"recipient_id" json:"recipient_id"`
	ClientKey   string     `db:"client_key" json:"client_key"`
	ReqDate     *time.Time `db:"req_date" json:"req_date,omitempty"`
	Status      string     `db:"status" json:"status"`
	RetryCount  int        `db:"retry_count" json:"retry_count"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

type DispatchResult struct {
	ID          int64      `db:"id" json:"id"`
	MmsJobID    int64      `db:"mms_job_id" json:"mms_job_id"`
	DoneCode    *string    `db:"done_code" json:"done_code,omitempty"`
	DoneDesc    *string    `db:"done_desc" json:"done_desc,omitempty"`
	Telco       *string    `db:"telco" json:"telco,omitempty"`
	SentAt      *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}
