// internal/model/recipient.go
package model

import "time"

const (
	RecipientPending   = "PENDING"
	RecipientValidated = "VALIDATED"
	RecipientSent      = "SENT"
)

// Recipient PII is only ever stored encrypted; PhoneHash backs lookups.
type Recipient struct {
	ID         int64     `db:"id" json:"id"`
	CampaignID int64     `db:"campaign_id" json:"campaign_id"`
	EncPhone   []byte    `db:"enc_phone" json:"-"`
	PhoneHash  []byte    `db:"phone_hash" json:"-"`
	EncName    []byte    `db:"enc_name" json:"-"`
	Status     string    `db:"status" json:"status"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// RecipientHistory records PII changes with masked values only.
type RecipientHistory struct {
	ID          int64     `db:"id" json:"id"`
	RecipientID int64     `db:"recipient_id" json:"recipient_id"`
	Action      string    `db:"action" json:"action"`
	OldValue    *string   `db:"old_value" json:"old_value,omitempty"`
	NewValue    *string   `db:"new_value" json:"new_value,omitempty"`
	CreatedBy   string    `db:"created_by" json:"created_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
