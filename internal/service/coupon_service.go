// internal/service/coupon_service.go
package service

import (
	"context"
	"fmt"
	"strings"

	appErrors "github.com/unclebandit/coupon-dispatch/internal/errors"
	"github.com/unclebandit/coupon-dispatch/internal/model"
	"github.com/unclebandit/coupon-dispatch/internal/repository"
	"github.com/unclebandit/coupon-dispatch/internal/vendor"
)

// CouponDetail is a coupon with its status trail.
type CouponDetail struct {
	Issue   *model.CouponIssue          `json:"issue"`
	Latest  *model.CouponStatusHistory  `json:"latest,omitempty"`
	History []model.CouponStatusHistory `json:"history"`
}

type CouponService struct {
	deps Deps
}

func NewCouponService(deps Deps) *CouponService {
	deps.defaults()
	return &CouponService{deps: deps}
}

func (s *CouponService) Get(ctx context.Context, issueID int64) (*CouponDetail, error) {
	issue, err := s.deps.Store.GetIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}
	history, err := s.deps.Store.ListStatusHistory(ctx, issueID)
	if err != nil {
		return nil, err
	}
	detail := &CouponDetail{Issue: issue, History: history}
	if len(history) > 0 {
		detail.Latest, err = s.deps.Store.LatestStatus(ctx, issueID)
		if err != nil {
			return nil, err
		}
	}
	return detail, nil
}

// RefreshStatus pulls the live vendor status of one coupon.
func (s *CouponService) RefreshStatus(ctx context.Context, issueID int64) (*model.CouponIssue, error) {
	issue, unlock, err := s.lockIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	goodsID, err := s.deps.Store.GoodsIDForCampaign(ctx, issue.CampaignID)
	if err != nil {
		return nil, err
	}

	if _, err := refreshIssue(ctx, s.deps, issue, goodsID, model.SourceCoufun); err != nil {
		return nil, err
	}
	return issue, nil
}

// Cancel voids the coupon at the vendor and records the cancellation.
func (s *CouponService) Cancel(ctx context.Context, issueID int64, reason string) (*model.CouponIssue, error) {
	issue, unlock, err := s.lockIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if !vendor.Cancellable(issue.Status) {
		return nil, appErrors.NewConflict("coupon %d is %s", issue.ID, issue.Status)
	}
	if len(issue.BarcodeEnc) == 0 {
		return nil, errNoBarcode
	}
	goodsID, err := s.deps.Store.GoodsIDForCampaign(ctx, issue.CampaignID)
	if err != nil {
		return nil, err
	}

	barcode, err := s.deps.Cipher.Decrypt(issue.BarcodeEnc)
	if err != nil {
		return nil, fmt.Errorf("decrypt barcode: %w", err)
	}
	res, err := s.deps.Vendor.Cancel(ctx, goodsID, barcode, reason)
	if err != nil {
		return nil, err
	}

	from := issue.Status
	memo := "cancelled"
	if r := strings.TrimSpace(reason); r != "" {
		memo += ": " + r
	}
	err = s.deps.Store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.UpdateIssueStatus(ctx, issue.ID, res.Status, nil); err != nil {
			return err
		}
		return tx.AddStatusHistory(ctx, &model.CouponStatusHistory{
			CouponIssueID: issue.ID,
			Status:        res.Status,
			StatusSource:  model.SourceCoufun,
			Memo:          &memo,
		})
	})
	if err != nil {
		return nil, err
	}

	issue.Status = res.Status
	s.deps.publish(ctx, issue, from, res.Status, model.SourceCoufun)
	return issue, nil
}

// lockIssue locks the coupon's recipient and reads the issue under the lock.
func (s *CouponService) lockIssue(ctx context.Context, issueID int64) (*model.CouponIssue, func(), error) {
	issue, err := s.deps.Store.GetIssue(ctx, issueID)
	if err != nil {
		return nil, nil, err
	}
	unlock := s.deps.Locks.Lock(issue.RecipientID)
	issue, err = s.deps.Store.GetIssue(ctx, issueID)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	return issue, unlock, nil
}
