package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/coupon-dispatch/internal/carrier"
	"github.com/unclebandit/coupon-dispatch/internal/crypto"
	"github.com/unclebandit/coupon-dispatch/internal/db"
	"github.com/unclebandit/coupon-dispatch/internal/logger"
	"github.com/unclebandit/coupon-dispatch/internal/model"
	"github.com/unclebandit/coupon-dispatch/internal/repository"
	"github.com/unclebandit/coupon-dispatch/internal/service"
	"github.com/unclebandit/coupon-dispatch/internal/vendor"
)

const (
	testKey   = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
	testGoods = "0000006937"
)

// clock steps one second per reading and is safe for the dispatch workers.
type clock struct {
	mu  sync.Mutex
	cur time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(time.Second)
	return c.cur
}

// recordingVendor remembers which barcodes were cancelled.
type recordingVendor struct {
	vendor.Gateway
	mu      sync.Mutex
	cancels []string
}

func (r *recordingVendor) Cancel(ctx context.Context, goodsID, barcode, reason string) (*vendor.CancelResult, error) {
	res, err := r.Gateway.Cancel(ctx, goodsID, barcode, reason)
	if err == nil {
		r.mu.Lock()
		r.cancels = append(r.cancels, barcode)
		r.mu.Unlock()
	}
	return res, err
}

func (r *recordingVendor) Cancelled() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.cancels...)
}

// failingCarrier rejects every enqueue.
type failingCarrier struct {
	carrier.Gateway
}

func (failingCarrier) Enqueue(context.Context, carrier.Message) error {
	return errors.New("agent database unavailable")
}

type harness struct {
	db      *sqlx.DB
	store   *repository.SQLStore
	sandbox *vendor.SandboxTransport
	vendor  *recordingVendor
	agent   *carrier.AgentStore
	env     *crypto.Envelope
	clock   *clock
	deps    service.Deps
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	conn, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })
	_, err = conn.Exec(db.Schema("sqlite3"))
	require.NoError(t, err)

	clk := &clock{cur: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}

	store := repository.NewSQLStore(conn)
	store.SetClock(clk.Now)

	agent := carrier.NewAgentStore(conn, carrier.Options{
		RequestChannel: "MMS",
		TrafficType:    "AD",
		DeptCode:       "MKT",
		UserID:         "svc",
	}, logger.Discard())
	agent.SetClock(clk.Now)
	require.NoError(t, agent.EnsureSchema(context.Background(), "202603", "202602"))

	env, err := crypto.NewEnvelope(testKey)
	require.NoError(t, err)

	sandbox := vendor.NewSandboxTransport()
	rv := &recordingVendor{Gateway: vendor.NewClient(sandbox, vendor.DefaultRetryPolicy(), logger.Discard())}

	h := &harness{
		db:      conn,
		store:   store,
		sandbox: sandbox,
		vendor:  rv,
		agent:   agent,
		env:     env,
		clock:   clk,
	}
	h.deps = service.Deps{
		Store:         store,
		Vendor:        rv,
		Carrier:       agent,
		Cipher:        env,
		Logger:        logger.Discard(),
		SharedAgentDB: true,
		Now:           clk.Now,
	}
	return h
}

func (h *harness) seedCampaign(t *testing.T, key string, linked bool) *model.Campaign {
	t.Helper()
	ctx := context.Background()
	c := &model.Campaign{
		CampaignKey:  key,
		EventName:    "Spring event",
		SenderNumber: "0212345678",
		MessageTitle: "Your coupon",
		MessageBody:  "Hi {name}, your code is {barcode} (until {valid_until})",
		Status:       "READY",
	}
	require.NoError(t, h.store.CreateCampaign(ctx, c))

	if linked {
		p := &model.CouponProduct{GoodsID: testGoods, Name: "Coffee", FaceValue: 4500, VendorStatus: "ON_SALE"}
		require.NoError(t, h.store.UpsertProduct(ctx, p))
		require.NoError(t, h.store.LinkCampaignProduct(ctx, c.ID, p.ID, 4000))
	}
	return c
}

func (h *harness) seedRecipient(t *testing.T, campaignID int64, phone, name string) *model.Recipient {
	t.Helper()
	encPhone, err := h.env.Encrypt(phone)
	require.NoError(t, err)
	encName, err := h.env.Encrypt(name)
	require.NoError(t, err)

	r := &model.Recipient{
		CampaignID: campaignID,
		EncPhone:   encPhone,
		PhoneHash:  h.env.Hash(phone),
		EncName:    encName,
		Status:     model.RecipientValidated,
	}
	require.NoError(t, h.store.CreateRecipient(context.Background(), r))
	return r
}

// seedBroken stores a recipient whose phone cannot be decrypted.
func (h *harness) seedBroken(t *testing.T, campaignID int64, hash string) *model.Recipient {
	t.Helper()
	r := &model.Recipient{
		CampaignID: campaignID,
		EncPhone:   []byte("not-a-ciphertext-at-all"),
		PhoneHash:  []byte(hash),
		Status:     model.RecipientValidated,
	}
	require.NoError(t, h.store.CreateRecipient(context.Background(), r))
	return r
}

func (h *harness) barcode(t *testing.T, issue *model.CouponIssue) string {
	t.Helper()
	b, err := h.env.Decrypt(issue.BarcodeEnc)
	require.NoError(t, err)
	return b
}

func (h *harness) issueOf(t *testing.T, recipientID int64) *model.CouponIssue {
	t.Helper()
	issue, err := h.store.GetIssueByRecipient(context.Background(), recipientID)
	require.NoError(t, err)
	require.NotNil(t, issue)
	return issue
}

type agentRow struct {
	ClientKey string `db:"client_key"`
	Phone     string `db:"phone"`
	Body      string `db:"body"`
	Status    string `db:"status"`
}

func (h *harness) agentRows(t *testing.T) []agentRow {
	t.Helper()
	var rows []agentRow
	require.NoError(t, h.db.Select(&rows,
		`SELECT CLIENT_KEY AS client_key, PHONE AS phone, MSG AS body, MSG_STATUS AS status FROM UMS_MSG ORDER BY REQ_DATE`))
	return rows
}
