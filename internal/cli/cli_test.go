package cli_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/fatih/color"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/coupon-dispatch/internal/app"
	"github.com/unclebandit/coupon-dispatch/internal/carrier"
	"github.com/unclebandit/coupon-dispatch/internal/cli"
	"github.com/unclebandit/coupon-dispatch/internal/config"
	"github.com/unclebandit/coupon-dispatch/internal/logger"
)

// sandbox opens one shared in-memory application for every command of a test.
func sandbox(t *testing.T) (cli.Opener, *app.App) {
	t.Helper()
	cfg := config.FromEnv()
	cfg.DB.Driver = "sqlite3"
	cfg.DB.URL = ":memory:"
	cfg.EncryptionKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
	cfg.Vendor.MockMode = true
	cfg.Agent.Sandbox = true
	cfg.Agent.URL = ""
	cfg.Kafka.Brokers = nil

	a, err := app.New(context.Background(), cfg, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close(context.Background()) })

	// commands close what they open, so hand out a wrapper that keeps the db alive
	open := func(context.Context) (*app.App, error) {
		cp := *a
		cp.DB, cp.AgentDB = nil, nil
		return &cp, nil
	}
	return open, a
}

func run(t *testing.T, open cli.Opener, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	var out bytes.Buffer
	root := cli.RootCmd(open)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestClientKeyAndClassify(t *testing.T) {
	noApp := func(context.Context) (*app.App, error) {
		t.Fatal("offline commands must not open the application")
		return nil, nil
	}

	out, err := run(t, noApp, "client-key", "SPRING26", "42")
	require.NoError(t, err)
	assert.Equal(t, carrier.BuildClientKey("SPRING26", 42)+"\n", out)

	out, err = run(t, noApp, "classify", "23001")
	require.NoError(t, err)
	assert.Contains(t, out, "GATEWAY_ERROR")
	assert.Contains(t, out, "retryable: true")

	_, err = run(t, noApp, "client-key", "SPRING26", "zero")
	assert.Error(t, err)
}

func TestSeedDispatchAndSync(t *testing.T) {
	open, a := sandbox(t)

	out, err := run(t, open, "seed", "--campaign", "CLI-DEMO")
	require.NoError(t, err)
	assert.Contains(t, out, "CLI-DEMO")

	out, err = run(t, open, "dispatch", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "enqueued: 3")

	_, err = a.Agent.SimulateDeliveries(context.Background(), carrier.AlwaysDelivered)
	require.NoError(t, err)

	out, err = run(t, open, "sync-results", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "updated:  3")

	out, err = run(t, open, "sync-coupons", "--batch", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "checked:  3")

	out, err = run(t, open, "coupon", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "DELIVERED")
	assert.Contains(t, out, "SNAP")

	_, err = run(t, open, "sync-results", "1", "--period", "03-2026")
	assert.Error(t, err)
}
