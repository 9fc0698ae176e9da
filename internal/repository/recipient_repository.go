package repository

import (
	"context"
	"database/sql"
	"errors"

	appErrors "github.com/unclebandit/coupon-dispatch/internal/errors"
	"github.com/unclebandit/coupon-dispatch/internal/model"
)

type RecipientRepositoryInterface interface {
	CreateRecipient(ctx context.Context, r *model.Recipient) error
	GetRecipient(ctx context.Context, id int64) (*model.Recipient, error)
	ListRecipientsByStatus(ctx context.Context, campaignID int64, status string) ([]model.Recipient, error)
	// FindRecipientByPhoneHash returns nil when no recipient of the campaign has the hash.
	FindRecipientByPhoneHash(ctx context.Context, campaignID int64, hash []byte) (*model.Recipient, error)
	SearchRecipientsByPhoneHash(ctx context.Context, hash []byte) ([]model.Recipient, error)
	UpdateRecipientStatus(ctx context.Context, id int64, status string) error
	UpdateRecipientPhone(ctx context.Context, id int64, encPhone, phoneHash []byte) error
	AddRecipientHistory(ctx context.Context, h *model.RecipientHistory) error
	ListRecipientHistory(ctx context.Context, recipientID int64) ([]model.RecipientHistory, error)
}

const recipientColumns = `id, campaign_id, enc_phone, phone_hash, enc_name, status, created_at, updated_at`

func (s *SQLStore) CreateRecipient(ctx context.Context, r *model.Recipient) error {
	now := s.now()
	r.CreatedAt, r.UpdatedAt = now, now
	if r.Status == "" {
		r.Status = model.RecipientPending
	}
	id, err := s.insert(ctx, `
        INSERT INTO campaign_recipients (campaign_id, enc_phone, phone_hash, enc_name, status, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.CampaignID, r.EncPhone, r.PhoneHash, r.EncName, r.Status, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return err
	}
	r.ID = id
	return nil
}

func (s *SQLStore) GetRecipient(ctx context.Context, id int64) (*model.Recipient, error) {
	var r model.Recipient
	err := s.get(ctx, &r, `SELECT `+recipientColumns+` FROM campaign_recipients WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.NewNotFound("recipient", id)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *SQLStore) ListRecipientsByStatus(ctx context.Context, campaignID int64, status string) ([]model.Recipient, error) {
	var out []model.Recipient
	err := s.selectAll(ctx, &out, `
        SELECT `+recipientColumns+` FROM campaign_recipients
        WHERE campaign_id = ? AND status = ?
        ORDER BY id`, campaignID, status)
	return out, err
}

func (s *SQLStore) FindRecipientByPhoneHash(ctx context.Context, campaignID int64, hash []byte) (*model.Recipient, error) {
	var r model.Recipient
	err := s.get(ctx, &r, `
        SELECT `+recipientColumns+` FROM campaign_recipients
        WHERE campaign_id = ? AND phone_hash = ?`, campaignID, hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *SQLStore) SearchRecipientsByPhoneHash(ctx context.Context, hash []byte) ([]model.Recipient, error) {
	var out []model.Recipient
	err := s.selectAll(ctx, &out, `
        SELECT `+recipientColumns+` FROM campaign_recipients
        WHERE phone_hash = ? ORDER BY id DESC`, hash)
	return out, err
}

func (s *SQLStore) UpdateRecipientStatus(ctx context.Context, id int64, status string) error {
	err := s.execOne(ctx, `UPDATE campaign_recipients SET status = ?, updated_at = ? WHERE id = ?`,
		status, s.now(), id)
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.NewNotFound("recipient", id)
	}
	return err
}

func (s *SQLStore) UpdateRecipientPhone(ctx context.Context, id int64, encPhone, phoneHash []byte) error {
	err := s.execOne(ctx, `
        UPDATE campaign_recipients SET enc_phone = ?, phone_hash = ?, updated_at = ? WHERE id = ?`,
		encPhone, phoneHash, s.now(), id)
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.NewNotFound("recipient", id)
	}
	return err
}

func (s *SQLStore) AddRecipientHistory(ctx context.Context, h *model.RecipientHistory) error {
	h.CreatedAt = s.now()
	id, err := s.insert(ctx, `
        INSERT INTO recipient_histories (recipient_id, action, old_value, new_value, created_by, created_at)
        VALUES (?, ?, ?, ?, ?, ?)`,
		h.RecipientID, h.Action, h.OldValue, h.NewValue, h.CreatedBy, h.CreatedAt)
	if err != nil {
		return err
	}
	h.ID = id
	return nil
}

func (s *SQLStore) ListRecipientHistory(ctx context.Context, recipientID int64) ([]model.RecipientHistory, error) {
	var out []model.RecipientHistory
	err := s.selectAll(ctx, &out, `
        SELECT id, recipient_id, action, old_value, new_value, created_by, created_at
        FROM recipient_histories WHERE recipient_id = ? ORDER BY id`, recipientID)
	return out, err
}
