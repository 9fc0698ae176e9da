package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/coupon-dispatch/internal/errors"
	"github.com/unclebandit/coupon-dispatch/internal/model"
	"github.com/unclebandit/coupon-dispatch/internal/service"
	"github.com/unclebandit/coupon-dispatch/internal/vendor"
)

func TestCouponService_RefreshStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, a, _ := dispatched(t, h)
	issue := h.issueOf(t, a.ID)
	h.sandbox.SetStatus(h.barcode(t, issue), "PART_USED")

	svc := service.NewCouponService(h.deps)
	got, err := svc.RefreshStatus(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, vendor.StatusReusable, got.Status)

	detail, err := svc.Get(ctx, issue.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.Latest)
	assert.Equal(t, vendor.StatusReusable, detail.Latest.Status)
	assert.Equal(t, model.SourceCoufun, detail.Latest.StatusSource)
	assert.Len(t, detail.History, 3)
}

func TestCouponService_Cancel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, a, _ := dispatched(t, h)
	issue := h.issueOf(t, a.ID)

	svc := service.NewCouponService(h.deps)
	got, err := svc.Cancel(ctx, issue.ID, "campaign withdrawn")
	require.NoError(t, err)
	assert.Equal(t, vendor.StatusCancelled, got.Status)
	assert.Equal(t, []string{h.barcode(t, issue)}, h.vendor.Cancelled())

	latest, err := h.store.LatestStatus(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, vendor.StatusCancelled, latest.Status)
	assert.Equal(t, "cancelled: campaign withdrawn", *latest.Memo)

	_, err = svc.Cancel(ctx, issue.ID, "")
	assert.True(t, appErrors.IsConflict(err))
}

func TestCouponService_VendorRefusalLeavesStateAlone(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, a, _ := dispatched(t, h)
	issue := h.issueOf(t, a.ID)
	h.sandbox.FailNext("cancel", "3002")

	_, err := service.NewCouponService(h.deps).Cancel(ctx, issue.ID, "")
	require.Error(t, err)
	ve, ok := vendor.AsError(err)
	require.True(t, ok)
	assert.Equal(t, "3002", ve.Code)
	assert.Equal(t, vendor.StatusSent, h.issueOf(t, a.ID).Status)
}
