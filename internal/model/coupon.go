// internal/model/coupon.go
package model

import "time"

// Status sources recorded on CouponStatusHistory.
const (
	SourceDispatch   = "DISPATCH"
	SourceCoufun     = "COUFUN"
	SourceCoufunSync = "COUFUN_SYNC"
	SourceSnap       = "SNAP"
	SourceCS         = "CS"
)

// CouponIssue is the single current voucher of a recipient. A reissue
// rewrites OrderID and BarcodeEnc in place.
type CouponIssue struct {
	ID            int64      `db:"id" json:"id"`
	CampaignID    int64      `db:"campaign_id" json:"campaign_id"`
	RecipientID   int64      `db:"recipient_id" json:"recipient_id"`
	OrderID       string     `db:"order_id" json:"order_id"`
	BarcodeEnc    []byte     `db:"barcode_enc" json:"-"`
	ValidEndDate  *time.Time `db:"valid_end_date" json:"valid_end_date,omitempty"`
	Status        string     `db:"status" json:"status"`
	VendorPayload *string    `db:"vendor_payload" json:"-"`
	IssuedAt      *time.Time `db:"issued_at" json:"issued_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

type CouponStatusHistory struct {
	ID            int64     `db:"id" json:"id"`
	CouponIssueID int64     `db:"coupon_issue_id" json:"coupon_issue_id"`
	Status        string    `db:"status" json:"status"`
	StatusSource  string    `db:"status_source" json:"status_source"`
	StatusAt      time.Time `db:"status_at" json:"status_at"`
	Memo          *string   `db:"memo" json:"memo,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
