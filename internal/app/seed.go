package app

import (
	"context"
	"fmt"

	appErrors "github.com/unclebandit/coupon-dispatch/internal/errors"
	"github.com/unclebandit/coupon-dispatch/internal/model"
	"github.com/unclebandit/coupon-dispatch/internal/phone"
	"github.com/unclebandit/coupon-dispatch/internal/repository"
)

type SeedRecipient struct {
	Phone string
	Name  string
}

// SeedOptions describes a demo campaign for sandbox runs.
type SeedOptions struct {
	CampaignKey string
	GoodsID     string
	Recipients  []SeedRecipient
}

// DefaultSeed is the campaign cmd/seeder writes when given no arguments.
func DefaultSeed(goodsID string) SeedOptions {
	if goodsID == "" {
		goodsID = "0000006937"
	}
	return SeedOptions{
		CampaignKey: "DEMO-SPRING",
		GoodsID:     goodsID,
		Recipients: []SeedRecipient{
			{Phone: "010-1111-2222", Name: "Kim"},
			{Phone: "010-3333-4444", Name: "Lee"},
			{Phone: "010-5555-6666", Name: "Park"},
		},
	}
}

// Seed writes a campaign with a linked product and VALIDATED recipients in
// one transaction.
func (a *App) Seed(ctx context.Context, opts SeedOptions) (*model.Campaign, error) {
	if opts.CampaignKey == "" || opts.GoodsID == "" {
		return nil, appErrors.NewValidation("seed", "campaign key and goods id are required")
	}

	c := &model.Campaign{
		CampaignKey:  opts.CampaignKey,
		EventName:    "Sandbox coupon event",
		SenderNumber: "0212345678",
		MessageTitle: "Your coupon has arrived",
		MessageBody:  "Hi {name}, your coupon code is {barcode}. Valid until {valid_until}.",
		Status:       "READY",
	}

	err := a.Store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.CreateCampaign(ctx, c); err != nil {
			return err
		}
		p := &model.CouponProduct{GoodsID: opts.GoodsID, Name: "Sandbox voucher", FaceValue: 5000, VendorStatus: "ON_SALE"}
		if err := tx.UpsertProduct(ctx, p); err != nil {
			return err
		}
		if err := tx.LinkCampaignProduct(ctx, c.ID, p.ID, p.FaceValue); err != nil {
			return err
		}

		for _, sr := range opts.Recipients {
			num := phone.Normalize(sr.Phone)
			if !phone.IsValid(num) {
				return fmt.Errorf("recipient %q: %w", sr.Phone, appErrors.ErrInvalidPhone)
			}
			encPhone, err := a.Envelope.Encrypt(num)
			if err != nil {
				return err
			}
			encName, err := a.Envelope.Encrypt(sr.Name)
			if err != nil {
				return err
			}
			r := &model.Recipient{
				CampaignID: c.ID,
				EncPhone:   encPhone,
				PhoneHash:  a.Envelope.Hash(num),
				EncName:    encName,
				Status:     model.RecipientValidated,
			}
			if err := tx.CreateRecipient(ctx, r); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("seed campaign %s: %w", opts.CampaignKey, err)
	}
	return c, nil
}
