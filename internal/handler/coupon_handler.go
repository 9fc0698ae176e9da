// internal/handler/coupon_handler.go
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/unclebandit/coupon-dispatch/internal/model"
	"github.com/unclebandit/coupon-dispatch/internal/service"
)

// Coupons is implemented by service.CouponService.
type Coupons interface {
	Get(ctx context.Context, issueID int64) (*service.CouponDetail, error)
	RefreshStatus(ctx context.Context, issueID int64) (*model.CouponIssue, error)
	Cancel(ctx context.Context, issueID int64, reason string) (*model.CouponIssue, error)
}

type CouponHandler struct {
	svc    Coupons
	logger *slog.Logger
}

func NewCouponHandler(svc Coupons, logger *slog.Logger) *CouponHandler {
	return &CouponHandler{svc: svc, logger: logger}
}

func (h *CouponHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := IDParam(r, "id")
	if err != nil {
		WriteError(w, err)
		return
	}
	detail, err := h.svc.Get(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, detail)
}

func (h *CouponHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	id, err := IDParam(r, "id")
	if err != nil {
		WriteError(w, err)
		return
	}
	issue, err := h.svc.RefreshStatus(r.Context(), id)
	if err != nil {
		h.logger.Warn("coupon refresh failed", slog.Int64("coupon_issue_id", id), slog.Any("error", err))
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, issue)
}

func (h *CouponHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := IDParam(r, "id")
	if err != nil {
		WriteError(w, err)
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := decode(r, &body); err != nil {
		WriteError(w, err)
		return
	}

	issue, err := h.svc.Cancel(r.Context(), id, body.Reason)
	if err != nil {
		h.logger.Warn("coupon cancel failed", slog.Int64("coupon_issue_id", id), slog.Any("error", err))
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, issue)
}
