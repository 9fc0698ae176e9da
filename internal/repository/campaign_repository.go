package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	appErrors "github.com/unclebandit/coupon-dispatch/internal/errors"
	"github.com/unclebandit/coupon-dispatch/internal/model"
)

type CampaignRepositoryInterface interface {
	GetCampaign(ctx context.Context, id int64) (*model.Campaign, error)
	CreateCampaign(ctx context.Context, c *model.Campaign) error
	// GoodsIDForCampaign returns the vendor goods id of the linked product.
	GoodsIDForCampaign(ctx context.Context, campaignID int64) (string, error)
	LinkCampaignProduct(ctx context.Context, campaignID, productID int64, unitPrice float64) error
	// ResolveMediaPath prefers a per-recipient rendered asset, then the
	// campaign banner; "" means text only.
	ResolveMediaPath(ctx context.Context, campaignID, recipientID int64) (string, error)
	AddRenderedAsset(ctx context.Context, campaignID, recipientID int64, filePath string) error
	CreateMediaAsset(ctx context.Context, fileName, storagePath string) (int64, error)
	// CampaignsNeedingResultSync lists campaigns with unfinished jobs or jobs
	// touched since the cutoff.
	CampaignsNeedingResultSync(ctx context.Context, since time.Time) ([]int64, error)
}

// ====================== Campaigns ======================

func (s *SQLStore) GetCampaign(ctx context.Context, id int64) (*model.Campaign, error) {
	var c model.Campaign
	err := s.get(ctx, &c, `
        SELECT id, campaign_key, event_name, sender_number, message_title, message_body,
               banner_asset_id, status, scheduled_at, created_at, updated_at
        FROM campaigns WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *SQLStore) CreateCampaign(ctx context.Context, c *model.Campaign) error {
	now := s.now()
	c.CreatedAt, c.UpdatedAt = now, now
	if c.Status == "" {
		c.Status = "DRAFT"
	}
	id, err := s.insert(ctx, `
        INSERT INTO campaigns (campaign_key, event_name, sender_number, message_title, message_body,
                               banner_asset_id, status, scheduled_at, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.CampaignKey, c.EventName, c.SenderNumber, c.MessageTitle, c.MessageBody,
		c.BannerAssetID, c.Status, c.ScheduledAt, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}

func (s *SQLStore) GoodsIDForCampaign(ctx context.Context, campaignID int64) (string, error) {
	var goodsID string
	err := s.get(ctx, &goodsID, `
        SELECT p.goods_id
        FROM campaign_products cp
        JOIN coupon_products p ON p.id = cp.coupon_product_id
        WHERE cp.campaign_id = ?`, campaignID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", appErrors.ErrProductNotLinked
	}
	return goodsID, err
}

func (s *SQLStore) LinkCampaignProduct(ctx context.Context, campaignID, productID int64, unitPrice float64) error {
	_, err := s.exec(ctx, `
        INSERT INTO campaign_products (campaign_id, coupon_product_id, unit_price, created_at)
        VALUES (?, ?, ?, ?)
        ON CONFLICT (campaign_id) DO UPDATE
        SET coupon_product_id = excluded.coupon_product_id, unit_price = excluded.unit_price`,
		campaignID, productID, unitPrice, s.now())
	return err
}

// ====================== Media ======================

func (s *SQLStore) ResolveMediaPath(ctx context.Context, campaignID, recipientID int64) (string, error) {
	var path string
	err := s.get(ctx, &path, `
        SELECT file_path FROM rendered_mms_assets
        WHERE campaign_id = ? AND recipient_id = ?`, campaignID, recipientID)
	if err == nil {
		return path, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}

	err = s.get(ctx, &path, `
        SELECT m.storage_path
        FROM campaigns c
        JOIN media_assets m ON m.id = c.banner_asset_id
        WHERE c.id = ?`, campaignID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return path, err
}

func (s *SQLStore) AddRenderedAsset(ctx context.Context, campaignID, recipientID int64, filePath string) error {
	_, err := s.exec(ctx, `
        INSERT INTO rendered_mms_assets (campaign_id, recipient_id, file_path, created_at)
        VALUES (?, ?, ?, ?)
        ON CONFLICT (campaign_id, recipient_id) DO UPDATE SET file_path = excluded.file_path`,
		campaignID, recipientID, filePath, s.now())
	return err
}

func (s *SQLStore) CreateMediaAsset(ctx context.Context, fileName, storagePath string) (int64, error) {
	return s.insert(ctx, `
        INSERT INTO media_assets (file_name, storage_path, created_at) VALUES (?, ?, ?)`,
		fileName, storagePath, s.now())
}

func (s *SQLStore) CampaignsNeedingResultSync(ctx context.Context, since time.Time) ([]int64, error) {
	var ids []int64
	err := s.selectAll(ctx, &ids, `
        SELECT DISTINCT campaign_id FROM mms_jobs
        WHERE status NOT IN ('COMPLETED', 'FAILED') OR updated_at >= ?
        ORDER BY campaign_id`, since)
	return ids, err
}
