// internal/service/reconcile_service.go
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/unclebandit/coupon-dispatch/internal/carrier"
	"github.com/unclebandit/coupon-dispatch/internal/donecode"
	"github.com/unclebandit/coupon-dispatch/internal/metrics"
	"github.com/unclebandit/coupon-dispatch/internal/model"
	"github.com/unclebandit/coupon-dispatch/internal/repository"
	"github.com/unclebandit/coupon-dispatch/internal/vendor"
)

// SyncSummary counts the outcome of a carrier result pass.
type SyncSummary struct {
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

func (s *SyncSummary) add(o SyncSummary) {
	s.Updated += o.Updated
	s.Skipped += o.Skipped
	s.Failed += o.Failed
}

// CouponSyncSummary counts the outcome of a vendor status pass.
type CouponSyncSummary struct {
	Checked int `json:"checked"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

// syncableStatuses are the coupon states the vendor can still move.
var syncableStatuses = []string{
	vendor.StatusIssued,
	vendor.StatusSent,
	vendor.StatusDelivered,
	vendor.StatusReusable,
}

type ReconcileService struct {
	deps Deps
}

func NewReconcileService(deps Deps) *ReconcileService {
	deps.defaults()
	return &ReconcileService{deps: deps}
}

// ==========================
// Carrier pass
// ==========================

// SyncDispatchResults pulls delivery results for every job of the campaign.
// An empty period reads the month each job was requested in, falling back
// to the current month.
func (s *ReconcileService) SyncDispatchResults(ctx context.Context, campaignID int64, period string) (SyncSummary, error) {
	var summary SyncSummary
	if period != "" {
		if err := carrier.ValidatePeriod(period); err != nil {
			return summary, err
		}
	}
	if _, err := s.deps.Store.GetCampaign(ctx, campaignID); err != nil {
		return summary, err
	}
	jobs, err := s.deps.Store.ListJobsByCampaign(ctx, campaignID)
	if err != nil {
		return summary, fmt.Errorf("list jobs: %w", err)
	}

	log := s.deps.Logger.With(slog.Int64("campaign_id", campaignID))
	for i := range jobs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		job := &jobs[i]
		updated, err := s.syncJob(ctx, job, period)
		switch {
		case err != nil:
			summary.Failed++
			metrics.ReconcileUpdates.WithLabelValues("carrier", "failed").Inc()
			log.Warn("result sync failed", slog.String("client_key", job.ClientKey), slog.Any("error", err))
		case updated:
			summary.Updated++
			metrics.ReconcileUpdates.WithLabelValues("carrier", "updated").Inc()
		default:
			summary.Skipped++
			metrics.ReconcileUpdates.WithLabelValues("carrier", "skipped").Inc()
		}
	}

	log.Info("dispatch results synced",
		slog.Int("updated", summary.Updated),
		slog.Int("skipped", summary.Skipped),
		slog.Int("failed", summary.Failed))
	return summary, nil
}

func (s *ReconcileService) fetchResult(ctx context.Context, job *model.MmsJob, period string) (*carrier.Result, error) {
	if period != "" {
		return s.deps.Carrier.FetchResult(ctx, job.ClientKey, period)
	}

	current := carrier.CurrentPeriod(s.deps.Now())
	if job.ReqDate != nil {
		requested := carrier.CurrentPeriod(*job.ReqDate)
		res, err := s.deps.Carrier.FetchResult(ctx, job.ClientKey, requested)
		if err != nil || res != nil || requested == current {
			return res, err
		}
	}
	return s.deps.Carrier.FetchResult(ctx, job.ClientKey, current)
}

func (s *ReconcileService) syncJob(ctx context.Context, job *model.MmsJob, period string) (bool, error) {
	res, err := s.fetchResult(ctx, job, period)
	if err != nil {
		return false, err
	}
	if res == nil {
		return false, nil
	}

	stored, err := s.deps.Store.GetDispatchResult(ctx, job.ID)
	if err != nil {
		return false, err
	}
	if sameResult(stored, res) {
		return false, nil
	}

	cls := donecode.Classify(res.DoneCode)
	retries := job.RetryCount
	if !cls.Delivered() && cls.Retryable {
		retries++
	}

	var issue *model.CouponIssue
	from := ""
	err = s.deps.Store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.UpsertDispatchResult(ctx, &model.DispatchResult{
			MmsJobID:    job.ID,
			DoneCode:    strPtr(res.DoneCode),
			DoneDesc:    strPtr(res.DoneDesc),
			SentAt:      job.ReqDate,
			CompletedAt: res.DoneAt,
		}); err != nil {
			return fmt.Errorf("upsert result: %w", err)
		}
		if err := tx.UpdateJobStatus(ctx, job.ID, cls.JobStatus, retries); err != nil {
			return err
		}

		var err error
		issue, err = tx.GetIssueByRecipient(ctx, job.RecipientID)
		if err != nil || issue == nil {
			return err
		}
		from = issue.Status
		if err := tx.UpdateIssueStatus(ctx, issue.ID, cls.CouponStatus, nil); err != nil {
			return err
		}
		return tx.AddStatusHistory(ctx, &model.CouponStatusHistory{
			CouponIssueID: issue.ID,
			Status:        cls.CouponStatus,
			StatusSource:  model.SourceSnap,
			Memo:          strPtr(fmt.Sprintf("client_key=%s done_code=%s label=%s", job.ClientKey, res.DoneCode, cls.Label)),
		})
	})
	if err != nil {
		return false, err
	}

	if issue != nil {
		s.deps.publish(ctx, issue, from, cls.CouponStatus, model.SourceSnap)
	}
	return true, nil
}

func sameResult(stored *model.DispatchResult, res *carrier.Result) bool {
	if stored == nil {
		return false
	}
	if deref(stored.DoneCode) != res.DoneCode || deref(stored.DoneDesc) != res.DoneDesc {
		return false
	}
	return sameTime(stored.CompletedAt, res.DoneAt)
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// SyncActiveCampaigns runs the carrier pass for campaigns with unfinished
// jobs or jobs touched within lookback.
func (s *ReconcileService) SyncActiveCampaigns(ctx context.Context, lookback time.Duration) (SyncSummary, error) {
	var total SyncSummary
	ids, err := s.deps.Store.CampaignsNeedingResultSync(ctx, s.deps.Now().Add(-lookback))
	if err != nil {
		return total, fmt.Errorf("list active campaigns: %w", err)
	}
	for _, id := range ids {
		sum, err := s.SyncDispatchResults(ctx, id, "")
		total.add(sum)
		if err != nil {
			if ctx.Err() != nil {
				return total, err
			}
			s.deps.Logger.Error("campaign result sync failed", slog.Int64("campaign_id", id), slog.Any("error", err))
		}
	}
	return total, nil
}

// ==========================
// Vendor pass
// ==========================

// SyncCouponStatuses asks the vendor for the state of up to batchSize
// still-movable coupons, least recently updated first.
func (s *ReconcileService) SyncCouponStatuses(ctx context.Context, batchSize int) (CouponSyncSummary, error) {
	var summary CouponSyncSummary
	issues, err := s.deps.Store.ListIssuesForSync(ctx, syncableStatuses, batchSize)
	if err != nil {
		return summary, fmt.Errorf("list coupons: %w", err)
	}

	goods := make(map[int64]string)
	for i := range issues {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		issue := &issues[i]
		summary.Checked++

		goodsID, ok := goods[issue.CampaignID]
		if !ok {
			goodsID, err = s.deps.Store.GoodsIDForCampaign(ctx, issue.CampaignID)
			if err != nil {
				summary.Failed++
				s.logSyncError(issue, err)
				continue
			}
			goods[issue.CampaignID] = goodsID
		}

		changed, err := s.refreshLocked(ctx, issue, goodsID)
		if err != nil {
			summary.Failed++
			metrics.ReconcileUpdates.WithLabelValues("vendor", "failed").Inc()
			s.logSyncError(issue, err)
			continue
		}
		if changed {
			summary.Updated++
			metrics.ReconcileUpdates.WithLabelValues("vendor", "updated").Inc()
		} else {
			metrics.ReconcileUpdates.WithLabelValues("vendor", "skipped").Inc()
		}
	}

	s.deps.Logger.Info("coupon statuses synced",
		slog.Int("checked", summary.Checked),
		slog.Int("updated", summary.Updated),
		slog.Int("failed", summary.Failed))
	return summary, nil
}

// refreshLocked re-reads the coupon under its recipient lock, since a CS
// action may have replaced the voucher after the batch was listed.
func (s *ReconcileService) refreshLocked(ctx context.Context, listed *model.CouponIssue, goodsID string) (bool, error) {
	unlock := s.deps.Locks.Lock(listed.RecipientID)
	defer unlock()

	issue, err := s.deps.Store.GetIssue(ctx, listed.ID)
	if err != nil {
		return false, err
	}
	return refreshIssue(ctx, s.deps, issue, goodsID, model.SourceCoufunSync)
}

func (s *ReconcileService) logSyncError(issue *model.CouponIssue, err error) {
	s.deps.Logger.Warn("coupon status sync failed",
		slog.Int64("coupon_issue_id", issue.ID),
		slog.Any("error", err))
}

// refreshIssue queries the vendor and records any status change with the
// given source. An unchanged status only bumps updated_at so the batch
// rotates.
func refreshIssue(ctx context.Context, d Deps, issue *model.CouponIssue, goodsID, source string) (bool, error) {
	if len(issue.BarcodeEnc) == 0 {
		return false, errNoBarcode
	}
	barcode, err := d.Cipher.Decrypt(issue.BarcodeEnc)
	if err != nil {
		return false, fmt.Errorf("decrypt barcode: %w", err)
	}

	st, err := d.Vendor.QueryStatus(ctx, goodsID, barcode)
	if err != nil {
		return false, err
	}
	if st.Status == "" {
		d.Logger.Warn("unknown vendor status",
			slog.Int64("coupon_issue_id", issue.ID),
			slog.String("status_code", st.StatusCode))
		return false, nil
	}

	from := issue.Status
	to := mergeStatus(from, st.Status)
	changed := to != from
	err = d.Store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.UpdateIssueStatus(ctx, issue.ID, to, st.ValidUntil); err != nil {
			return err
		}
		if !changed {
			return nil
		}
		return tx.AddStatusHistory(ctx, &model.CouponStatusHistory{
			CouponIssueID: issue.ID,
			Status:        to,
			StatusSource:  source,
			Memo:          strPtr("vendor_status=" + st.StatusCode),
		})
	})
	if err != nil {
		return false, err
	}

	issue.Status = to
	if st.ValidUntil != nil {
		issue.ValidEndDate = st.ValidUntil
	}
	if changed {
		d.publish(ctx, issue, from, to, source)
	}
	return changed, nil
}

// mergeStatus applies a vendor status to the local one. The vendor only
// knows a voucher is unused, so ISSUED never overrides local delivery state.
func mergeStatus(local, remote string) string {
	if remote == vendor.StatusIssued {
		switch local {
		case vendor.StatusSent, vendor.StatusDelivered, vendor.StatusFailed:
			return local
		}
	}
	return remote
}
