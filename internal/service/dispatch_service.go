// internal/service/dispatch_service.go
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/unclebandit/coupon-dispatch/internal/carrier"
	appErrors "github.com/unclebandit/coupon-dispatch/internal/errors"
	"github.com/unclebandit/coupon-dispatch/internal/metrics"
	"github.com/unclebandit/coupon-dispatch/internal/model"
	"github.com/unclebandit/coupon-dispatch/internal/phone"
	"github.com/unclebandit/coupon-dispatch/internal/repository"
	"github.com/unclebandit/coupon-dispatch/internal/vendor"
)

type RecipientError struct {
	RecipientID int64  `json:"recipient_id"`
	Reason      string `json:"reason"`
}

type DispatchSummary struct {
	CampaignID int64            `json:"campaign_id"`
	Enqueued   int              `json:"enqueued"`
	Skipped    int              `json:"skipped"`
	Failed     int              `json:"failed"`
	Errors     []RecipientError `json:"errors,omitempty"`
}

type DispatchService struct {
	deps    Deps
	workers int
}

func NewDispatchService(deps Deps, workers int) *DispatchService {
	deps.defaults()
	if workers < 1 {
		workers = 1
	}
	return &DispatchService{deps: deps, workers: workers}
}

// campaignRun is the per-campaign state shared by the workers.
type campaignRun struct {
	campaign *model.Campaign

	goodsOnce sync.Once
	goodsID   string
	goodsErr  error
}

// Dispatch issues vouchers and enqueues messages for every VALIDATED recipient
// of the campaign. Recipients fail independently; the summary is returned
// even when every recipient failed.
func (s *DispatchService) Dispatch(ctx context.Context, campaignID int64) (*DispatchSummary, error) {
	log := s.deps.Logger.With(slog.Int64("campaign_id", campaignID))

	campaign, err := s.deps.Store.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	recipients, err := s.deps.Store.ListRecipientsByStatus(ctx, campaignID, model.RecipientValidated)
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}
	if len(recipients) == 0 {
		return nil, appErrors.ErrNoValidatedRecipients
	}

	run := &campaignRun{campaign: campaign}
	summary := &DispatchSummary{CampaignID: campaignID}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(s.workers)
	for i := range recipients {
		r := recipients[i]
		g.Go(func() error {
			enqueued, err := s.dispatchOne(ctx, run, &r)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				summary.Failed++
				summary.Errors = append(summary.Errors, RecipientError{RecipientID: r.ID, Reason: err.Error()})
				metrics.DispatchRecipients.WithLabelValues("failed").Inc()
				log.Warn("recipient dispatch failed", slog.Int64("recipient_id", r.ID), slog.Any("error", err))
			case enqueued:
				summary.Enqueued++
				metrics.DispatchRecipients.WithLabelValues("enqueued").Inc()
			default:
				summary.Skipped++
				metrics.DispatchRecipients.WithLabelValues("skipped").Inc()
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(summary.Errors, func(i, j int) bool {
		return summary.Errors[i].RecipientID < summary.Errors[j].RecipientID
	})

	log.Info("campaign dispatched",
		slog.Int("enqueued", summary.Enqueued),
		slog.Int("skipped", summary.Skipped),
		slog.Int("failed", summary.Failed))

	if summary.Failed > 0 && summary.Enqueued == 0 && summary.Skipped == 0 {
		return summary, appErrors.ErrAllRecipientsFailed
	}
	return summary, nil
}

// dispatchOne reports false without error when the client key was already
// enqueued by an earlier run.
func (s *DispatchService) dispatchOne(ctx context.Context, run *campaignRun, r *model.Recipient) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	unlock := s.deps.Locks.Lock(r.ID)
	defer unlock()

	plain, err := s.deps.Cipher.Decrypt(r.EncPhone)
	if err != nil {
		return false, fmt.Errorf("decrypt phone: %w", err)
	}
	to := phone.Normalize(plain)
	if !phone.IsValid(to) {
		return false, appErrors.ErrInvalidPhone
	}
	name, err := s.deps.Cipher.Decrypt(r.EncName)
	if err != nil {
		return false, fmt.Errorf("decrypt name: %w", err)
	}

	clientKey := carrier.BuildClientKey(run.campaign.CampaignKey, r.ID)

	exists, err := s.deps.Store.JobExists(ctx, clientKey)
	if err != nil {
		return false, fmt.Errorf("check job: %w", err)
	}
	if exists {
		if err := s.deps.Store.UpdateRecipientStatus(ctx, r.ID, model.RecipientSent); err != nil {
			return false, err
		}
		return false, nil
	}

	issue, err := s.deps.Store.GetIssueByRecipient(ctx, r.ID)
	if err != nil {
		return false, fmt.Errorf("load coupon: %w", err)
	}
	if issue == nil || len(issue.BarcodeEnc) == 0 || !vendor.Cancellable(issue.Status) {
		issue, err = s.ensureVoucher(ctx, run, r, issue, clientKey)
		if err != nil {
			return false, err
		}
	}

	barcode, err := s.deps.Cipher.Decrypt(issue.BarcodeEnc)
	if err != nil {
		return false, fmt.Errorf("decrypt barcode: %w", err)
	}
	media, err := s.deps.Store.ResolveMediaPath(ctx, run.campaign.ID, r.ID)
	if err != nil {
		return false, fmt.Errorf("resolve media: %w", err)
	}

	msg := carrier.Message{
		ClientKey:      clientKey,
		Phone:          to,
		CallbackNumber: run.campaign.SenderNumber,
		Title:          run.campaign.MessageTitle,
		Body:           RenderTemplate(run.campaign.MessageBody, messageData(name, barcode, issue.ValidEndDate)),
		MediaPath:      media,
	}

	from := issue.Status
	err = s.deps.Store.WithTx(ctx, func(tx repository.Store) error {
		job := &model.MmsJob{CampaignID: run.campaign.ID, RecipientID: r.ID, ClientKey: clientKey}
		if err := tx.CreateJob(ctx, job); err != nil {
			return fmt.Errorf("create job: %w", err)
		}
		if err := tx.UpdateIssueStatus(ctx, issue.ID, vendor.StatusSent, nil); err != nil {
			return err
		}
		if err := tx.AddStatusHistory(ctx, &model.CouponStatusHistory{
			CouponIssueID: issue.ID,
			Status:        vendor.StatusSent,
			StatusSource:  model.SourceDispatch,
			Memo:          strPtr("client_key=" + clientKey),
		}); err != nil {
			return err
		}
		if err := tx.UpdateRecipientStatus(ctx, r.ID, model.RecipientSent); err != nil {
			return err
		}
		return s.deps.carrierIn(tx).Enqueue(ctx, msg)
	})
	if err != nil {
		return false, err
	}

	s.deps.publish(ctx, issue, from, vendor.StatusSent, model.SourceDispatch)
	return true, nil
}

// ensureVoucher issues a voucher and records it. The first voucher of a
// recipient is issued under clientKey, so a rerun after a lost response gets
// the same voucher back. A used, cancelled or expired voucher is replaced in
// place under a fresh transaction id.
func (s *DispatchService) ensureVoucher(ctx context.Context, run *campaignRun, r *model.Recipient, existing *model.CouponIssue, clientKey string) (*model.CouponIssue, error) {
	run.goodsOnce.Do(func() {
		run.goodsID, run.goodsErr = s.deps.Store.GoodsIDForCampaign(ctx, run.campaign.ID)
	})
	if run.goodsErr != nil {
		return nil, run.goodsErr
	}

	trID := clientKey
	if existing != nil && existing.OrderID != "" {
		trID = reissueTrID(run.campaign.CampaignKey, r.ID, s.deps.Now())
	}
	v, err := newVoucher(ctx, s.deps, run.goodsID, trID)
	if err != nil {
		return nil, err
	}

	issue := existing
	from := ""
	err = s.deps.Store.WithTx(ctx, func(tx repository.Store) error {
		if issue == nil {
			issue = &model.CouponIssue{CampaignID: run.campaign.ID, RecipientID: r.ID}
			v.applyTo(issue)
			if err := tx.CreateIssue(ctx, issue); err != nil {
				return fmt.Errorf("create coupon: %w", err)
			}
		} else {
			from = issue.Status
			v.applyTo(issue)
			if err := tx.ReplaceVoucher(ctx, issue); err != nil {
				return fmt.Errorf("replace coupon: %w", err)
			}
		}
		return tx.AddStatusHistory(ctx, &model.CouponStatusHistory{
			CouponIssueID: issue.ID,
			Status:        vendor.StatusIssued,
			StatusSource:  model.SourceCoufun,
			Memo:          strPtr("order_id=" + v.result.OrderID),
		})
	})
	if err != nil {
		v.compensate(ctx, s.deps, run.goodsID, "local write failed")
		return nil, err
	}

	s.deps.publish(ctx, issue, from, vendor.StatusIssued, model.SourceCoufun)
	return issue, nil
}

// reissueTrID is the vendor transaction id for replacing a spent voucher.
func reissueTrID(campaignKey string, recipientID int64, now time.Time) string {
	return carrier.BuildClientKey(fmt.Sprintf("%s-RI%s", campaignKey, now.Format("150405")), recipientID)
}
