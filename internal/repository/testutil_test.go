package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/coupon-dispatch/internal/db"
	"github.com/unclebandit/coupon-dispatch/internal/model"
	"github.com/unclebandit/coupon-dispatch/internal/repository"
)

// setupTestDB loads the authoritative schema into an in-memory sqlite database.
func setupTestDB(t *testing.T) (*repository.SQLStore, *sqlx.DB) {
	t.Helper()

	conn, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })

	_, err = conn.Exec(db.Schema("sqlite3"))
	require.NoError(t, err)

	return repository.NewSQLStore(conn), conn
}

// steppingClock advances one second per call so ordering by timestamp is stable.
func steppingClock(start time.Time) func() time.Time {
	cur := start
	return func() time.Time {
		cur = cur.Add(time.Second)
		return cur
	}
}

func seedCampaign(t *testing.T, s *repository.SQLStore, key string) *model.Campaign {
	t.Helper()
	c := &model.Campaign{
		CampaignKey:  key,
		EventName:    "Spring event",
		SenderNumber: "0212345678",
		MessageTitle: "Your coupon",
		MessageBody:  "Hello {name}",
		Status:       "READY",
	}
	require.NoError(t, s.CreateCampaign(context.Background(), c))
	return c
}

func seedRecipient(t *testing.T, s *repository.SQLStore, campaignID int64, hash string, status string) *model.Recipient {
	t.Helper()
	r := &model.Recipient{
		CampaignID: campaignID,
		EncPhone:   []byte("enc-" + hash),
		PhoneHash:  []byte(hash),
		Status:     status,
	}
	require.NoError(t, s.CreateRecipient(context.Background(), r))
	return r
}

func seedIssue(t *testing.T, s *repository.SQLStore, r *model.Recipient, orderID, status string) *model.CouponIssue {
	t.Helper()
	issue := &model.CouponIssue{
		CampaignID:  r.CampaignID,
		RecipientID: r.ID,
		OrderID:     orderID,
		BarcodeEnc:  []byte("bc-" + orderID),
		Status:      status,
	}
	require.NoError(t, s.CreateIssue(context.Background(), issue))
	return issue
}
