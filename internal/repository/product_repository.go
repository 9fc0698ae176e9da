package repository

import (
	"context"

	"github.com/unclebandit/coupon-dispatch/internal/model"
)

type ProductRepositoryInterface interface {
	// UpsertProduct inserts or refreshes a product keyed by goods id.
	UpsertProduct(ctx context.Context, p *model.CouponProduct) error
	ListProducts(ctx context.Context) ([]model.CouponProduct, error)
	AddProductSyncLog(ctx context.Context, l *model.ProductSyncLog) error
	ListProductSyncLogs(ctx context.Context, limit int) ([]model.ProductSyncLog, error)
}

func (s *SQLStore) UpsertProduct(ctx context.Context, p *model.CouponProduct) error {
	now := s.now()
	p.UpdatedAt = now
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	id, err := s.insert(ctx, `
        INSERT INTO coupon_products (goods_id, name, face_value, purchase_price, valid_days, vendor_status,
                                     last_synced_at, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (goods_id) DO UPDATE
        SET name = excluded.name,
            face_value = excluded.face_value,
            purchase_price = excluded.purchase_price,
            valid_days = excluded.valid_days,
            vendor_status = excluded.vendor_status,
            last_synced_at = excluded.last_synced_at,
            updated_at = excluded.updated_at`,
		p.GoodsID, p.Name, p.FaceValue, p.PurchasePrice, p.ValidDays, p.VendorStatus,
		p.LastSyncedAt, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return err
	}
	p.ID = id
	return nil
}

func (s *SQLStore) ListProducts(ctx context.Context) ([]model.CouponProduct, error) {
	var out []model.CouponProduct
	err := s.selectAll(ctx, &out, `
        SELECT id, goods_id, name, face_value, purchase_price, valid_days, vendor_status,
               last_synced_at, created_at, updated_at
        FROM coupon_products ORDER BY goods_id`)
	return out, err
}

func (s *SQLStore) AddProductSyncLog(ctx context.Context, l *model.ProductSyncLog) error {
	l.CreatedAt = s.now()
	id, err := s.insert(ctx, `
        INSERT INTO product_sync_logs (sync_type, response_code, synced_count, status, error_detail, created_at)
        VALUES (?, ?, ?, ?, ?, ?)`,
		l.SyncType, l.ResponseCode, l.SyncedCount, l.Status, l.ErrorDetail, l.CreatedAt)
	if err != nil {
		return err
	}
	l.ID = id
	return nil
}

func (s *SQLStore) ListProductSyncLogs(ctx context.Context, limit int) ([]model.ProductSyncLog, error) {
	var out []model.ProductSyncLog
	err := s.selectAll(ctx, &out, `
        SELECT id, sync_type, response_code, synced_count, status, error_detail, created_at
        FROM product_sync_logs ORDER BY id DESC LIMIT ?`, limit)
	return out, err
}
