// internal/service/voucher.go
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/unclebandit/coupon-dispatch/internal/model"
	"github.com/unclebandit/coupon-dispatch/internal/phone"
	"github.com/unclebandit/coupon-dispatch/internal/vendor"
)

// voucher is a freshly issued vendor coupon not yet committed locally.
type voucher struct {
	result     *vendor.IssueResult
	barcodeEnc []byte
	payload    *string
	issuedAt   time.Time
}

func newVoucher(ctx context.Context, d Deps, goodsID, trID string) (*voucher, error) {
	res, err := d.Vendor.Issue(ctx, goodsID, trID, 1)
	if err != nil {
		return nil, fmt.Errorf("issue coupon: %w", err)
	}
	v := &voucher{result: res, issuedAt: d.Now()}
	v.barcodeEnc, err = d.Cipher.Encrypt(res.Barcode)
	if err != nil {
		v.compensate(ctx, d, goodsID, "encrypt failed")
		return nil, fmt.Errorf("encrypt barcode: %w", err)
	}
	if raw, err := json.Marshal(res.Raw); err == nil {
		p := string(raw)
		v.payload = &p
	}
	return v, nil
}

func (v *voucher) applyTo(issue *model.CouponIssue) {
	issue.OrderID = v.result.OrderID
	issue.BarcodeEnc = v.barcodeEnc
	issue.ValidEndDate = v.result.ValidUntil
	issue.Status = vendor.StatusIssued
	issue.VendorPayload = v.payload
	issuedAt := v.issuedAt
	issue.IssuedAt = &issuedAt
}

// compensate cancels the vendor coupon after a later step failed. A failed
// cancel is logged; the voucher then only lives at the vendor.
func (v *voucher) compensate(ctx context.Context, d Deps, goodsID, reason string) {
	_, err := d.Vendor.Cancel(context.WithoutCancel(ctx), goodsID, v.result.Barcode, reason)
	if err != nil {
		d.Logger.Error("compensating cancel failed",
			slog.String("order_id", v.result.OrderID),
			slog.String("barcode", phone.MaskBarcode(v.result.Barcode)),
			slog.Any("error", err))
		return
	}
	d.Logger.Warn("issued coupon cancelled after failure",
		slog.String("order_id", v.result.OrderID),
		slog.String("reason", reason))
}

var errNoBarcode = errors.New("coupon has no barcode")
