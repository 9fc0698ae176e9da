package db

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchema_DialectTokensReplaced(t *testing.T) {
	for _, driver := range []string{"postgres", "sqlite3"} {
		s := Schema(driver)
		assert.NotContains(t, s, "{{", driver)
	}
	assert.Contains(t, Schema("postgres"), "BYTEA")
	assert.Contains(t, Schema("sqlite3"), "AUTOINCREMENT")
}

func TestMigrate_SqliteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	conn, err := Connect(ctx, "sqlite3", ":memory:", 0, 0, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, Migrate(ctx, conn))
	require.NoError(t, Migrate(ctx, conn))

	var tables []string
	require.NoError(t, conn.Select(&tables, `SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name`))
	joined := strings.Join(tables, ",")
	for _, want := range []string{"campaigns", "campaign_recipients", "coupon_issues", "coupon_status_history", "mms_jobs", "dispatch_results", "cs_actions", "encryption_keys"} {
		assert.Contains(t, joined, want)
	}
}
