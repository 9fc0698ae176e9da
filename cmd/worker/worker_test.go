package main

import (
	"context"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/coupon-dispatch/internal/app"
	"github.com/unclebandit/coupon-dispatch/internal/config"
	"github.com/unclebandit/coupon-dispatch/internal/logger"
	"github.com/unclebandit/coupon-dispatch/internal/model"
	"github.com/unclebandit/coupon-dispatch/internal/queue"
)

func TestWorker(t *testing.T) {
	cfg := config.FromEnv()
	cfg.DB.Driver = "sqlite3"
	cfg.DB.URL = ":memory:"
	cfg.EncryptionKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
	cfg.Vendor.MockMode = true
	cfg.Agent.Sandbox = true
	cfg.Agent.URL = ""
	cfg.Kafka.Brokers = nil
	cfg.Scheduler.CarrierSync.Enabled = false
	cfg.Scheduler.CouponSync.Enabled = false
	cfg.Scheduler.ProductSync.Enabled = false

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, logger.Discard())
	require.NoError(t, err)
	defer a.Close(context.Background())

	c, err := a.Seed(ctx, app.DefaultSeed(""))
	require.NoError(t, err)

	q := queue.NewInMemoryQueue(logger.Discard())
	sched, err := start(ctx, a, q)
	require.NoError(t, err)
	defer sched.Stop()

	require.NoError(t, q.Publish(ctx, queue.TopicJobs, queue.Job{Type: queue.JobDispatch, CampaignID: c.ID}))

	// Wait until worker processes the job
	assert.Eventually(t, func() bool {
		sent, err := a.Store.ListRecipientsByStatus(ctx, c.ID, model.RecipientSent)
		return err == nil && len(sent) == 3
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, q.Close())
}
