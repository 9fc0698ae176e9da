package router_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/coupon-dispatch/internal/app"
	"github.com/unclebandit/coupon-dispatch/internal/config"
	"github.com/unclebandit/coupon-dispatch/internal/controller"
	"github.com/unclebandit/coupon-dispatch/internal/handler"
	"github.com/unclebandit/coupon-dispatch/internal/logger"
	"github.com/unclebandit/coupon-dispatch/internal/metrics"
	"github.com/unclebandit/coupon-dispatch/internal/queue"
	"github.com/unclebandit/coupon-dispatch/internal/router"
	"github.com/unclebandit/coupon-dispatch/internal/service"
)

func newServer(t *testing.T) (*httptest.Server, *app.App) {
	t.Helper()
	metrics.Init()

	cfg := config.FromEnv()
	cfg.DB.Driver = "sqlite3"
	cfg.DB.URL = ":memory:"
	cfg.EncryptionKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
	cfg.Vendor.MockMode = true
	cfg.Agent.Sandbox = true
	cfg.Agent.URL = ""
	cfg.Kafka.Brokers = nil
	cfg.Queue.AMQPURL = ""

	log := logger.Discard()
	a, err := app.New(context.Background(), cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close(context.Background()) })

	h := router.NewRouter(router.Handlers{
		Campaigns: &controller.CampaignController{
			Dispatcher: a.Dispatch,
			Syncer:     a.Reconcile,
			Queue:      queue.NewInMemoryQueue(log),
			Logger:     log,
		},
		CS:       handler.NewCSHandler(a.CS, log),
		Coupons:  handler.NewCouponHandler(a.Coupons, log),
		Products: handler.NewProductHandler(a.Products),
		Health:   handler.NewHealthHandler(a.DB, log),
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, a
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-ID", "agent-7")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	srv, _ := newServer(t)

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestRouter_DispatchThenResend(t *testing.T) {
	srv, a := newServer(t)
	ctx := context.Background()

	c, err := a.Seed(ctx, app.DefaultSeed(""))
	require.NoError(t, err)

	resp := post(t, fmt.Sprintf("%s/campaigns/%d/dispatch", srv.URL, c.ID), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sum service.DispatchSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sum))
	assert.Equal(t, 3, sum.Enqueued)

	search, err := http.Get(srv.URL + "/cs/search?phone=010-1111-2222")
	require.NoError(t, err)
	defer search.Body.Close()
	require.Equal(t, http.StatusOK, search.StatusCode)
	var found struct {
		Data []service.SearchResult `json:"data"`
	}
	require.NoError(t, json.NewDecoder(search.Body).Decode(&found))
	require.Len(t, found.Data, 1)
	issueID := found.Data[0].CouponIssueID

	resp = post(t, fmt.Sprintf("%s/cs/coupons/%d/resend", srv.URL, issueID), `{"reason":"customer lost the message"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var res service.CsResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, issueID, res.CouponIssueID)

	actions, err := a.CS.Actions(ctx, issueID)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "agent-7", actions[0].PerformedBy)

	resp = post(t, fmt.Sprintf("%s/cs/coupons/%d/phone", srv.URL, issueID), `{"phone":"010-3333-4444"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = post(t, fmt.Sprintf("%s/campaigns/%d/sync?period=2026-03", srv.URL, c.ID), "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRouter_NotFound(t *testing.T) {
	srv, _ := newServer(t)

	resp, err := http.Get(srv.URL + "/coupons/999")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = post(t, srv.URL+"/campaigns/999/dispatch", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
