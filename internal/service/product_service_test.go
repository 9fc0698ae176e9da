package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/coupon-dispatch/internal/service"
)

func TestProductService_SyncProducts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	svc := service.NewProductService(h.deps)

	n, err := svc.SyncProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// a second sync refreshes the same row
	_, err = svc.SyncProducts(ctx)
	require.NoError(t, err)

	products, err := svc.Products(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, testGoods, products[0].GoodsID)
	assert.Equal(t, "ON_SALE", products[0].VendorStatus)
	require.NotNil(t, products[0].ValidDays)
	assert.Equal(t, 60, *products[0].ValidDays)

	logs, err := svc.Logs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "SUCCESS", logs[0].Status)
	assert.Equal(t, 1, logs[0].SyncedCount)
}

func TestProductService_FailureIsLogged(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.sandbox.FailNext("goods", "1002")
	svc := service.NewProductService(h.deps)

	_, err := svc.SyncProducts(ctx)
	require.Error(t, err)

	logs, err := svc.Logs(ctx, 5)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "FAILED", logs[0].Status)
	require.NotNil(t, logs[0].ResponseCode)
	assert.Equal(t, "1002", *logs[0].ResponseCode)
	require.NotNil(t, logs[0].ErrorDetail)
}
