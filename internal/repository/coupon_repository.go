package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	appErrors "github.com/unclebandit/coupon-dispatch/internal/errors"
	"github.com/unclebandit/coupon-dispatch/internal/model"
)

type CouponRepositoryInterface interface {
	GetIssue(ctx context.Context, id int64) (*model.CouponIssue, error)
	// GetIssueByRecipient returns nil when the recipient has no voucher yet.
	GetIssueByRecipient(ctx context.Context, recipientID int64) (*model.CouponIssue, error)
	GetIssueByOrderID(ctx context.Context, orderID string) (*model.CouponIssue, error)
	CreateIssue(ctx context.Context, issue *model.CouponIssue) error
	// ReplaceVoucher rewrites order id, barcode, expiry, status and payload in place.
	ReplaceVoucher(ctx context.Context, issue *model.CouponIssue) error
	UpdateIssueStatus(ctx context.Context, id int64, status string, validEnd *time.Time) error
	// ListIssuesForSync returns issues in the given statuses, least recently updated first.
	ListIssuesForSync(ctx context.Context, statuses []string, limit int) ([]model.CouponIssue, error)
	AddStatusHistory(ctx context.Context, h *model.CouponStatusHistory) error
	ListStatusHistory(ctx context.Context, issueID int64) ([]model.CouponStatusHistory, error)
	// LatestStatus is the authoritative status: the most recent history row.
	LatestStatus(ctx context.Context, issueID int64) (*model.CouponStatusHistory, error)
}

const issueColumns = `id, campaign_id, recipient_id, order_id, barcode_enc, valid_end_date, status,
               vendor_payload, issued_at, created_at, updated_at`

func (s *SQLStore) getIssue(ctx context.Context, where string, arg any) (*model.CouponIssue, error) {
	var issue model.CouponIssue
	err := s.get(ctx, &issue, `SELECT `+issueColumns+` FROM coupon_issues WHERE `+where, arg)
	if err != nil {
		return nil, err
	}
	return &issue, nil
}

func (s *SQLStore) GetIssue(ctx context.Context, id int64) (*model.CouponIssue, error) {
	issue, err := s.getIssue(ctx, "id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.NewNotFound("coupon issue", id)
	}
	return issue, err
}

func (s *SQLStore) GetIssueByRecipient(ctx context.Context, recipientID int64) (*model.CouponIssue, error) {
	issue, err := s.getIssue(ctx, "recipient_id = ?", recipientID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return issue, err
}

func (s *SQLStore) GetIssueByOrderID(ctx context.Context, orderID string) (*model.CouponIssue, error) {
	issue, err := s.getIssue(ctx, "order_id = ?", orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.NewNotFound("coupon issue", orderID)
	}
	return issue, err
}

func (s *SQLStore) CreateIssue(ctx context.Context, issue *model.CouponIssue) error {
	now := s.now()
	issue.CreatedAt, issue.UpdatedAt = now, now
	id, err := s.insert(ctx, `
        INSERT INTO coupon_issues (campaign_id, recipient_id, order_id, barcode_enc, valid_end_date, status,
                                   vendor_payload, issued_at, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		issue.CampaignID, issue.RecipientID, issue.OrderID, issue.BarcodeEnc, issue.ValidEndDate,
		issue.Status, issue.VendorPayload, issue.IssuedAt, issue.CreatedAt, issue.UpdatedAt)
	if err != nil {
		return err
	}
	issue.ID = id
	return nil
}

func (s *SQLStore) ReplaceVoucher(ctx context.Context, issue *model.CouponIssue) error {
	issue.UpdatedAt = s.now()
	err := s.execOne(ctx, `
        UPDATE coupon_issues
        SET order_id = ?, barcode_enc = ?, valid_end_date = ?, status = ?, vendor_payload = ?,
            issued_at = ?, updated_at = ?
        WHERE id = ?`,
		issue.OrderID, issue.BarcodeEnc, issue.ValidEndDate, issue.Status, issue.VendorPayload,
		issue.IssuedAt, issue.UpdatedAt, issue.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.NewNotFound("coupon issue", issue.ID)
	}
	return err
}

func (s *SQLStore) UpdateIssueStatus(ctx context.Context, id int64, status string, validEnd *time.Time) error {
	err := s.execOne(ctx, `
        UPDATE coupon_issues
        SET status = ?, valid_end_date = COALESCE(?, valid_end_date), updated_at = ?
        WHERE id = ?`, status, validEnd, s.now(), id)
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.NewNotFound("coupon issue", id)
	}
	return err
}

func (s *SQLStore) ListIssuesForSync(ctx context.Context, statuses []string, limit int) ([]model.CouponIssue, error) {
	if len(statuses) == 0 || limit <= 0 {
		return nil, nil
	}
	q, args, err := sqlx.In(`
        SELECT `+issueColumns+` FROM coupon_issues
        WHERE status IN (?) AND barcode_enc IS NOT NULL
        ORDER BY updated_at ASC, id ASC
        LIMIT ?`, statuses, limit)
	if err != nil {
		return nil, err
	}
	var out []model.CouponIssue
	err = s.selectAll(ctx, &out, q, args...)
	return out, err
}

// ====================== History ======================

func (s *SQLStore) AddStatusHistory(ctx context.Context, h *model.CouponStatusHistory) error {
	h.CreatedAt = s.now()
	if h.StatusAt.IsZero() {
		h.StatusAt = h.CreatedAt
	}
	id, err := s.insert(ctx, `
        INSERT INTO coupon_status_history (coupon_issue_id, status, status_source, status_at, memo, created_at)
        VALUES (?, ?, ?, ?, ?, ?)`,
		h.CouponIssueID, h.Status, h.StatusSource, h.StatusAt, h.Memo, h.CreatedAt)
	if err != nil {
		return err
	}
	h.ID = id
	return nil
}

func (s *SQLStore) ListStatusHistory(ctx context.Context, issueID int64) ([]model.CouponStatusHistory, error) {
	var out []model.CouponStatusHistory
	err := s.selectAll(ctx, &out, `
        SELECT id, coupon_issue_id, status, status_source, status_at, memo, created_at
        FROM coupon_status_history WHERE coupon_issue_id = ?
        ORDER BY status_at, id`, issueID)
	return out, err
}

func (s *SQLStore) LatestStatus(ctx context.Context, issueID int64) (*model.CouponStatusHistory, error) {
	var h model.CouponStatusHistory
	err := s.get(ctx, &h, `
        SELECT id, coupon_issue_id, status, status_source, status_at, memo, created_at
        FROM coupon_status_history WHERE coupon_issue_id = ?
        ORDER BY status_at DESC, id DESC LIMIT 1`, issueID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.NewNotFound("coupon status history", issueID)
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}
