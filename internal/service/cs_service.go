// internal/service/cs_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/unclebandit/coupon-dispatch/internal/carrier"
	appErrors "github.com/unclebandit/coupon-dispatch/internal/errors"
	"github.com/unclebandit/coupon-dispatch/internal/model"
	"github.com/unclebandit/coupon-dispatch/internal/phone"
	"github.com/unclebandit/coupon-dispatch/internal/repository"
	"github.com/unclebandit/coupon-dispatch/internal/vendor"
)

// CsResult is what an agent sees after a resend or phone change.
type CsResult struct {
	RequestID     string `json:"request_id"`
	CouponIssueID int64  `json:"coupon_issue_id"`
	ClientKey     string `json:"client_key"`
	OrderID       string `json:"order_id"`
	Reissued      bool   `json:"reissued"`
	Status        string `json:"status"`
}

// SearchResult never carries plaintext PII.
type SearchResult struct {
	CouponIssueID int64      `json:"coupon_issue_id"`
	CampaignID    int64      `json:"campaign_id"`
	RecipientID   int64      `json:"recipient_id"`
	MaskedPhone   string     `json:"masked_phone"`
	MaskedBarcode string     `json:"masked_barcode"`
	OrderID       string     `json:"order_id"`
	Status        string     `json:"status"`
	ValidEndDate  *time.Time `json:"valid_end_date,omitempty"`
}

type CSService struct {
	deps Deps
}

func NewCSService(deps Deps) *CSService {
	deps.defaults()
	return &CSService{deps: deps}
}

// csTarget is everything loaded up front for one coupon.
type csTarget struct {
	issue     *model.CouponIssue
	recipient *model.Recipient
	campaign  *model.Campaign
	goodsID   string
}

// lockTarget takes the recipient lock and only then loads the target, so a
// caller queued behind another action sees what that action committed.
func (s *CSService) lockTarget(ctx context.Context, issueID int64) (*csTarget, func(), error) {
	issue, err := s.deps.Store.GetIssue(ctx, issueID)
	if err != nil {
		return nil, nil, err
	}
	unlock := s.deps.Locks.Lock(issue.RecipientID)
	t, err := s.load(ctx, issueID)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	return t, unlock, nil
}

func (s *CSService) load(ctx context.Context, issueID int64) (*csTarget, error) {
	issue, err := s.deps.Store.GetIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}
	recipient, err := s.deps.Store.GetRecipient(ctx, issue.RecipientID)
	if err != nil {
		return nil, err
	}
	campaign, err := s.deps.Store.GetCampaign(ctx, issue.CampaignID)
	if err != nil {
		return nil, err
	}
	goodsID, err := s.deps.Store.GoodsIDForCampaign(ctx, campaign.ID)
	if err != nil {
		return nil, err
	}
	return &csTarget{issue: issue, recipient: recipient, campaign: campaign, goodsID: goodsID}, nil
}

// vendorStatus asks the vendor for the live status, falling back to the
// stored one when the vendor does not recognise the answer.
func (s *CSService) vendorStatus(ctx context.Context, t *csTarget) (string, string, error) {
	if len(t.issue.BarcodeEnc) == 0 {
		return "", "", nil
	}
	barcode, err := s.deps.Cipher.Decrypt(t.issue.BarcodeEnc)
	if err != nil {
		return "", "", fmt.Errorf("decrypt barcode: %w", err)
	}
	st, err := s.deps.Vendor.QueryStatus(ctx, t.goodsID, barcode)
	if err != nil {
		return "", "", fmt.Errorf("query coupon status: %w", err)
	}
	if st.Status == "" {
		return barcode, t.issue.Status, nil
	}
	return barcode, st.Status, nil
}

// freshClientKey derives a key that has never been enqueued.
func (s *CSService) freshClientKey(ctx context.Context, t *csTarget, tag string) (string, error) {
	seed := fmt.Sprintf("%s-%s%s", t.campaign.CampaignKey, tag, s.deps.Now().Format("150405"))
	key := carrier.BuildClientKey(seed, t.recipient.ID)
	exists, err := s.deps.Store.JobExists(ctx, key)
	if err != nil {
		return "", err
	}
	if exists {
		return "", appErrors.NewConflict("client key %s already used, retry in a second", key)
	}
	return key, nil
}

// replaceVoucher issues a new voucher under key, then cancels the old one if
// the vendor would still accept it. A failed cancel rolls the new voucher back.
func (s *CSService) replaceVoucher(ctx context.Context, t *csTarget, oldBarcode, oldStatus, key, reason string) (*voucher, error) {
	v, err := newVoucher(ctx, s.deps, t.goodsID, key)
	if err != nil {
		return nil, err
	}
	if oldBarcode != "" && vendor.Cancellable(oldStatus) {
		if _, err := s.deps.Vendor.Cancel(ctx, t.goodsID, oldBarcode, reason); err != nil {
			v.compensate(ctx, s.deps, t.goodsID, "old voucher cancel failed")
			return nil, fmt.Errorf("cancel previous coupon: %w", err)
		}
	}
	return v, nil
}

// csPlan is the local half of a CS action: everything written in one
// transaction ending with the carrier enqueue.
type csPlan struct {
	action     string
	actorID    string
	reason     string
	requestID  string
	clientKey  string
	phone      string
	oldStatus  string
	newVoucher *voucher
	// before runs first inside the transaction.
	before func(tx repository.Store) error
}

func (s *CSService) commit(ctx context.Context, t *csTarget, p *csPlan) (*CsResult, error) {
	name, err := s.deps.Cipher.Decrypt(t.recipient.EncName)
	if err != nil {
		return nil, fmt.Errorf("decrypt name: %w", err)
	}
	issue := *t.issue
	if p.newVoucher != nil {
		p.newVoucher.applyTo(&issue)
	}
	barcode, err := s.deps.Cipher.Decrypt(issue.BarcodeEnc)
	if err != nil {
		return nil, fmt.Errorf("decrypt barcode: %w", err)
	}
	media, err := s.deps.Store.ResolveMediaPath(ctx, t.campaign.ID, t.recipient.ID)
	if err != nil {
		return nil, fmt.Errorf("resolve media: %w", err)
	}
	msg := carrier.Message{
		ClientKey:      p.clientKey,
		Phone:          p.phone,
		CallbackNumber: t.campaign.SenderNumber,
		Title:          t.campaign.MessageTitle,
		Body:           RenderTemplate(t.campaign.MessageBody, messageData(name, barcode, issue.ValidEndDate)),
		MediaPath:      media,
	}

	err = s.deps.Store.WithTx(ctx, func(tx repository.Store) error {
		if p.before != nil {
			if err := p.before(tx); err != nil {
				return err
			}
		}
		if p.newVoucher != nil {
			if p.oldStatus != "" && vendor.Cancellable(p.oldStatus) {
				if err := tx.AddStatusHistory(ctx, &model.CouponStatusHistory{
					CouponIssueID: issue.ID,
					Status:        vendor.StatusCancelled,
					StatusSource:  model.SourceCS,
					Memo:          strPtr("replaced order_id=" + t.issue.OrderID),
				}); err != nil {
					return err
				}
			}
			if err := tx.ReplaceVoucher(ctx, &issue); err != nil {
				return fmt.Errorf("replace coupon: %w", err)
			}
			if err := tx.AddStatusHistory(ctx, &model.CouponStatusHistory{
				CouponIssueID: issue.ID,
				Status:        vendor.StatusIssued,
				StatusSource:  model.SourceCS,
				Memo:          strPtr("order_id=" + issue.OrderID),
			}); err != nil {
				return err
			}
		}

		job := &model.MmsJob{CampaignID: t.campaign.ID, RecipientID: t.recipient.ID, ClientKey: p.clientKey}
		if err := tx.CreateJob(ctx, job); err != nil {
			return fmt.Errorf("create job: %w", err)
		}
		if err := tx.UpdateIssueStatus(ctx, issue.ID, vendor.StatusSent, nil); err != nil {
			return err
		}
		if err := tx.AddStatusHistory(ctx, &model.CouponStatusHistory{
			CouponIssueID: issue.ID,
			Status:        vendor.StatusSent,
			StatusSource:  model.SourceCS,
			Memo:          strPtr(strings.ToLower(p.action) + " client_key=" + p.clientKey),
		}); err != nil {
			return err
		}
		if err := tx.AddCsAction(ctx, &model.CsAction{
			RequestID:     p.requestID,
			CouponIssueID: issue.ID,
			RecipientID:   t.recipient.ID,
			ActionType:    p.action,
			Reason:        strPtr(p.reason),
			PerformedBy:   p.actorID,
			ResultStatus:  model.ActionSucceeded,
		}); err != nil {
			return err
		}
		return s.deps.carrierIn(tx).Enqueue(ctx, msg)
	})
	if err != nil {
		if p.newVoucher != nil {
			p.newVoucher.compensate(ctx, s.deps, t.goodsID, "local write failed")
		}
		return nil, err
	}

	s.deps.publish(ctx, &issue, t.issue.Status, vendor.StatusSent, model.SourceCS)
	return &CsResult{
		RequestID:     p.requestID,
		CouponIssueID: issue.ID,
		ClientKey:     p.clientKey,
		OrderID:       issue.OrderID,
		Reissued:      p.newVoucher != nil,
		Status:        vendor.StatusSent,
	}, nil
}

// recordFailure writes a FAILED audit row outside any transaction.
func (s *CSService) recordFailure(ctx context.Context, t *csTarget, action, actorID, reason, requestID string, cause error) {
	if t == nil {
		return
	}
	err := s.deps.Store.AddCsAction(context.WithoutCancel(ctx), &model.CsAction{
		RequestID:     requestID,
		CouponIssueID: t.issue.ID,
		RecipientID:   t.recipient.ID,
		ActionType:    action,
		Reason:        strPtr(reason),
		PerformedBy:   actorID,
		ResultStatus:  model.ActionFailed,
	})
	if err != nil {
		s.deps.Logger.Error("cs failure not recorded", slog.Any("error", err))
	}
	s.deps.Logger.Warn("cs action failed",
		slog.String("action", action),
		slog.String("request_id", requestID),
		slog.Int64("coupon_issue_id", t.issue.ID),
		slog.Any("error", cause))
}

// Resend re-delivers the coupon. A voucher that can no longer be redeemed
// is cancelled where possible and reissued first.
func (s *CSService) Resend(ctx context.Context, issueID int64, actorID, reason string) (*CsResult, error) {
	if strings.TrimSpace(actorID) == "" {
		return nil, appErrors.NewValidation("actor_id", "required")
	}
	requestID := uuid.NewString()

	t, unlock, err := s.lockTarget(ctx, issueID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	result, err := s.resend(ctx, t, actorID, reason, requestID)
	if err != nil && !isCallerError(err) {
		s.recordFailure(ctx, t, model.ActionResend, actorID, reason, requestID, err)
	}
	return result, err
}

func (s *CSService) resend(ctx context.Context, t *csTarget, actorID, reason, requestID string) (*CsResult, error) {
	plain, err := s.deps.Cipher.Decrypt(t.recipient.EncPhone)
	if err != nil {
		return nil, fmt.Errorf("decrypt phone: %w", err)
	}
	to := phone.Normalize(plain)
	if !phone.IsValid(to) {
		return nil, appErrors.ErrInvalidPhone
	}

	barcode, status, err := s.vendorStatus(ctx, t)
	if err != nil {
		return nil, err
	}
	key, err := s.freshClientKey(ctx, t, "CS")
	if err != nil {
		return nil, err
	}

	plan := &csPlan{
		action:    model.ActionResend,
		actorID:   actorID,
		reason:    reason,
		requestID: requestID,
		clientKey: key,
		phone:     to,
		oldStatus: status,
	}
	if barcode == "" || vendor.Unusable(status) {
		plan.newVoucher, err = s.replaceVoucher(ctx, t, barcode, status, key, "cs resend")
		if err != nil {
			return nil, err
		}
	}
	return s.commit(ctx, t, plan)
}

// ChangePhone moves the coupon to a new number: the old voucher is
// cancelled, a new one is issued and sent to the new phone.
func (s *CSService) ChangePhone(ctx context.Context, issueID int64, newPhone, actorID, reason string) (*CsResult, error) {
	if strings.TrimSpace(actorID) == "" {
		return nil, appErrors.NewValidation("actor_id", "required")
	}
	to := phone.Normalize(newPhone)
	if !phone.IsValid(to) {
		return nil, &appErrors.ValidationError{Field: "phone", Message: "must be 010 followed by 8 digits", Err: appErrors.ErrInvalidPhone}
	}
	requestID := uuid.NewString()

	t, unlock, err := s.lockTarget(ctx, issueID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	result, err := s.changePhone(ctx, t, to, actorID, reason, requestID)
	if err != nil && !isCallerError(err) {
		s.recordFailure(ctx, t, model.ActionChangePhone, actorID, reason, requestID, err)
	}
	return result, err
}

func (s *CSService) changePhone(ctx context.Context, t *csTarget, to, actorID, reason, requestID string) (*CsResult, error) {
	hash := s.deps.Cipher.Hash(to)
	dup, err := s.deps.Store.FindRecipientByPhoneHash(ctx, t.campaign.ID, hash)
	if err != nil {
		return nil, err
	}
	if dup != nil {
		if dup.ID == t.recipient.ID {
			return nil, appErrors.NewValidation("phone", "same as the current number")
		}
		return nil, appErrors.NewConflict("phone already belongs to recipient %d of this campaign", dup.ID)
	}

	oldPlain, err := s.deps.Cipher.Decrypt(t.recipient.EncPhone)
	if err != nil {
		return nil, fmt.Errorf("decrypt phone: %w", err)
	}
	encPhone, err := s.deps.Cipher.Encrypt(to)
	if err != nil {
		return nil, fmt.Errorf("encrypt phone: %w", err)
	}

	barcode, status, err := s.vendorStatus(ctx, t)
	if err != nil {
		return nil, err
	}
	key, err := s.freshClientKey(ctx, t, "PH")
	if err != nil {
		return nil, err
	}
	v, err := s.replaceVoucher(ctx, t, barcode, status, key, "cs phone change")
	if err != nil {
		return nil, err
	}

	oldMasked := phone.Mask(phone.Normalize(oldPlain))
	newMasked := phone.Mask(to)
	return s.commit(ctx, t, &csPlan{
		action:     model.ActionChangePhone,
		actorID:    actorID,
		reason:     reason,
		requestID:  requestID,
		clientKey:  key,
		phone:      to,
		oldStatus:  status,
		newVoucher: v,
		before: func(tx repository.Store) error {
			if err := tx.UpdateRecipientPhone(ctx, t.recipient.ID, encPhone, hash); err != nil {
				return err
			}
			return tx.AddRecipientHistory(ctx, &model.RecipientHistory{
				RecipientID: t.recipient.ID,
				Action:      model.ActionChangePhone,
				OldValue:    &oldMasked,
				NewValue:    &newMasked,
				CreatedBy:   actorID,
			})
		},
	})
}

// AddNote appends an audit entry and touches nothing else.
func (s *CSService) AddNote(ctx context.Context, issueID int64, actorID, memo string) (*model.CsAction, error) {
	if strings.TrimSpace(memo) == "" {
		return nil, appErrors.NewValidation("memo", "required")
	}
	if strings.TrimSpace(actorID) == "" {
		return nil, appErrors.NewValidation("actor_id", "required")
	}
	issue, err := s.deps.Store.GetIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}
	action := &model.CsAction{
		RequestID:     uuid.NewString(),
		CouponIssueID: issue.ID,
		RecipientID:   issue.RecipientID,
		ActionType:    model.ActionNote,
		Reason:        &memo,
		PerformedBy:   actorID,
		ResultStatus:  model.ActionSucceeded,
	}
	if err := s.deps.Store.AddCsAction(ctx, action); err != nil {
		return nil, err
	}
	return action, nil
}

func (s *CSService) Actions(ctx context.Context, issueID int64) ([]model.CsAction, error) {
	if _, err := s.deps.Store.GetIssue(ctx, issueID); err != nil {
		return nil, err
	}
	return s.deps.Store.ListCsActions(ctx, issueID)
}

// Search finds coupons by phone, order id or both.
func (s *CSService) Search(ctx context.Context, rawPhone, orderID string) ([]SearchResult, error) {
	rawPhone, orderID = strings.TrimSpace(rawPhone), strings.TrimSpace(orderID)
	if rawPhone == "" && orderID == "" {
		return nil, appErrors.NewValidation("query", "phone or order_id is required")
	}

	var issues []*model.CouponIssue
	if rawPhone != "" {
		p := phone.Normalize(rawPhone)
		if !phone.IsValid(p) {
			return nil, &appErrors.ValidationError{Field: "phone", Message: "must be 010 followed by 8 digits", Err: appErrors.ErrInvalidPhone}
		}
		recipients, err := s.deps.Store.SearchRecipientsByPhoneHash(ctx, s.deps.Cipher.Hash(p))
		if err != nil {
			return nil, err
		}
		for _, r := range recipients {
			issue, err := s.deps.Store.GetIssueByRecipient(ctx, r.ID)
			if err != nil {
				return nil, err
			}
			if issue != nil && (orderID == "" || issue.OrderID == orderID) {
				issues = append(issues, issue)
			}
		}
	} else {
		issue, err := s.deps.Store.GetIssueByOrderID(ctx, orderID)
		if appErrors.IsNotFound(err) {
			return []SearchResult{}, nil
		}
		if err != nil {
			return nil, err
		}
		issues = append(issues, issue)
	}

	out := make([]SearchResult, 0, len(issues))
	for _, issue := range issues {
		r, err := s.deps.Store.GetRecipient(ctx, issue.RecipientID)
		if err != nil {
			return nil, err
		}
		res := SearchResult{
			CouponIssueID: issue.ID,
			CampaignID:    issue.CampaignID,
			RecipientID:   issue.RecipientID,
			OrderID:       issue.OrderID,
			Status:        issue.Status,
			ValidEndDate:  issue.ValidEndDate,
		}
		if p, err := s.deps.Cipher.Decrypt(r.EncPhone); err == nil {
			res.MaskedPhone = phone.Mask(phone.Normalize(p))
		}
		if b, err := s.deps.Cipher.Decrypt(issue.BarcodeEnc); err == nil {
			res.MaskedBarcode = phone.MaskBarcode(b)
		}
		out = append(out, res)
	}
	return out, nil
}

// isCallerError marks failures that are not worth an audit row.
func isCallerError(err error) bool {
	return appErrors.IsValidation(err) || appErrors.IsConflict(err) || appErrors.IsNotFound(err) ||
		errors.Is(err, context.Canceled)
}
