package repository

import (
	"context"

	"github.com/unclebandit/coupon-dispatch/internal/model"
)

type CSRepositoryInterface interface {
	AddCsAction(ctx context.Context, a *model.CsAction) error
	ListCsActions(ctx context.Context, issueID int64) ([]model.CsAction, error)
}

func (s *SQLStore) AddCsAction(ctx context.Context, a *model.CsAction) error {
	if a.PerformedAt.IsZero() {
		a.PerformedAt = s.now()
	}
	id, err := s.insert(ctx, `
        INSERT INTO cs_actions (request_id, coupon_issue_id, recipient_id, action_type, reason,
                                performed_by, performed_at, result_status)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.RequestID, a.CouponIssueID, a.RecipientID, a.ActionType, a.Reason,
		a.PerformedBy, a.PerformedAt, a.ResultStatus)
	if err != nil {
		return err
	}
	a.ID = id
	return nil
}

func (s *SQLStore) ListCsActions(ctx context.Context, issueID int64) ([]model.CsAction, error) {
	var out []model.CsAction
	err := s.selectAll(ctx, &out, `
        SELECT id, request_id, coupon_issue_id, recipient_id, action_type, reason,
               performed_by, performed_at, result_status
        FROM cs_actions WHERE coupon_issue_id = ? ORDER BY id`, issueID)
	return out, err
}
