// internal/service/product_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/unclebandit/coupon-dispatch/internal/model"
	"github.com/unclebandit/coupon-dispatch/internal/vendor"
)

const (
	syncTypeGoods = "GOODS"

	syncSucceeded = "SUCCESS"
	syncFailed    = "FAILED"
)

type ProductService struct {
	deps Deps
}

func NewProductService(deps Deps) *ProductService {
	deps.defaults()
	return &ProductService{deps: deps}
}

// SyncProducts refreshes the local catalogue from the vendor. A sync log row
// is written whatever the outcome.
func (s *ProductService) SyncProducts(ctx context.Context) (int, error) {
	products, err := s.deps.Vendor.ListGoods(ctx)
	if err != nil {
		s.writeLog(ctx, 0, err)
		return 0, fmt.Errorf("list goods: %w", err)
	}

	now := s.deps.Now()
	synced := 0
	var errs []error
	for _, p := range products {
		err := s.deps.Store.UpsertProduct(ctx, &model.CouponProduct{
			GoodsID:       p.GoodsID,
			Name:          p.Name,
			FaceValue:     p.FaceValue,
			PurchasePrice: p.PurchasePrice,
			ValidDays:     p.ValidDays,
			VendorStatus:  p.Status,
			LastSyncedAt:  &now,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("goods %s: %w", p.GoodsID, err))
			continue
		}
		synced++
	}

	err = errors.Join(errs...)
	s.writeLog(ctx, synced, err)
	s.deps.Logger.Info("products synced", slog.Int("synced", synced), slog.Int("failed", len(errs)))
	return synced, err
}

func (s *ProductService) writeLog(ctx context.Context, synced int, cause error) {
	entry := &model.ProductSyncLog{
		SyncType:    syncTypeGoods,
		SyncedCount: synced,
		Status:      syncSucceeded,
	}
	if cause != nil {
		entry.Status = syncFailed
		detail := cause.Error()
		entry.ErrorDetail = &detail
		if ve, ok := vendor.AsError(cause); ok {
			entry.ResponseCode = strPtr(ve.Code)
		}
	} else {
		entry.ResponseCode = strPtr("0000")
	}
	if err := s.deps.Store.AddProductSyncLog(context.WithoutCancel(ctx), entry); err != nil {
		s.deps.Logger.Error("product sync log not written", slog.Any("error", err))
	}
}

func (s *ProductService) Products(ctx context.Context) ([]model.CouponProduct, error) {
	return s.deps.Store.ListProducts(ctx)
}

func (s *ProductService) Logs(ctx context.Context, limit int) ([]model.ProductSyncLog, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.deps.Store.ListProductSyncLogs(ctx, limit)
}
