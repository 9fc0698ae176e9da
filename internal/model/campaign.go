// internal/model/campaign.go
package model

import "time"

type Campaign struct {
	ID            int64      `db:"id" json:"id"`
	CampaignKey   string     `db:"campaign_key" json:"campaign_key"`
	EventName     string     `db:"event_name" json:"event_name"`
	SenderNumber  string     `db:"sender_number" json:"sender_number"`
	MessageTitle  string     `db:"message_title" json:"message_title"`
	MessageBody   string     `db:"message_body" json:"message_body"`
	BannerAssetID *int64     `db:"banner_asset_id" json:"banner_asset_id,omitempty"`
	Status        string     `db:"status" json:"status"`
	ScheduledAt   *time.Time `db:"scheduled_at" json:"scheduled_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// CouponProduct is a vendor catalogue entry kept in sync by the product job.
type CouponProduct struct {
	ID            int64      `db:"id" json:"id"`
	GoodsID       string     `db:"goods_id" json:"goods_id"`
	Name          string     `db:"name" json:"name"`
	FaceValue     float64    `db:"face_value" json:"face_value"`
	PurchasePrice float64    `db:"purchase_price" json:"purchase_price"`
	ValidDays     *int       `db:"valid_days" json:"valid_days,omitempty"`
	VendorStatus  string     `db:"vendor_status" json:"vendor_status"`
	LastSyncedAt  *time.Time `db:"last_synced_at" json:"last_synced_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

type ProductSyncLog struct {
	ID           int64     `db:"id" json:"id"`
	SyncType     string    `db:"sync_type" json:"sync_type"`
	ResponseCode *string   `db:"response_code" json:"response_code,omitempty"`
	SyncedCount  int       `db:"synced_count" json:"synced_count"`
	Status       string    `db:"status" json:"status"`
	ErrorDetail  *string   `db:"error_detail" json:"error_detail,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
