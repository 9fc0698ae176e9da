// internal/model/cs_action.go
package model

import "time"

const (
	ActionResend      = "RESEND"
	ActionChangePhone = "CHANGE_PHONE"
	ActionNote        = "NOTE"

	ActionSucceeded = "SUCCESS"
	ActionFailed    = "FAILED"
)

type CsAction struct {
	ID            int64     `db:"id" json:"id"`
	RequestID     string    `db:"request_id" json:"request_id"`
	CouponIssueID int64     `db:"coupon_issue_id" json:"coupon_issue_id"`
	RecipientID   int64     `db:"recipient_id" json:"recipient_id"`
	ActionType    string    `db:"action_type" json:"action_type"`
	Reason        *string   `db:"reason" json:"reason,omitempty"`
	PerformedBy   string    `db:"performed_by" json:"performed_by"`
	PerformedAt   time.Time `db:"performed_at" json:"performed_at"`
	ResultStatus  string    `db:"result_status" json:"result_status"`
}
