package carrier

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/coupon-dispatch/internal/errors"
)

func setupAgentDB(t *testing.T) (*AgentStore, *sqlx.DB) {
	t.Helper()

	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store := NewAgentStore(db, Options{
		RequestChannel: "MMS",
		TrafficType:    "AD",
		DeptCode:       "MKT",
		UserID:         "svc",
	}, nil)
	store.now = func() time.Time { return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC) }

	require.NoError(t, store.EnsureSchema(context.Background(), "202603", "202602"))
	return store, db
}

func TestEnqueue_InsertsReadyRow(t *testing.T) {
	store, db := setupAgentDB(t)
	ctx := context.Background()

	err := store.Enqueue(ctx, Message{
		ClientKey:      "CMP-1",
		Phone:          "01012345678",
		CallbackNumber: "0212345678",
		Title:          "Coupon",
		Body:           "Your coupon",
	})
	require.NoError(t, err)

	var row struct {
		Status string  `db:"status"`
		Phone  string  `db:"phone"`
		Dept   string  `db:"dept"`
		Media  *string `db:"media"`
	}
	require.NoError(t, db.Get(&row,
		`SELECT MSG_STATUS AS status, PHONE AS phone, REQ_DEPT_CODE AS dept, MMS_FILE_LIST AS media FROM UMS_MSG WHERE CLIENT_KEY = ?`, "CMP-1"))
	assert.Equal(t, "ready", row.Status)
	assert.Equal(t, "01012345678", row.Phone)
	assert.Equal(t, "MKT", row.Dept)
	assert.Nil(t, row.Media)
}

func TestEnqueue_RejectsOversizedKey(t *testing.T) {
	store, _ := setupAgentDB(t)

	err := store.Enqueue(context.Background(), Message{ClientKey: "0123456789012345678901234567890", Phone: "01012345678"})
	assert.True(t, appErrors.IsValidation(err))
}

func TestFetchResult_NoneYet(t *testing.T) {
	store, _ := setupAgentDB(t)

	res, err := store.FetchResult(context.Background(), "CMP-1", "")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestFetchResult_LatestWins(t *testing.T) {
	store, db := setupAgentDB(t)
	first := time.Date(2026, 3, 14, 9, 1, 0, 0, time.UTC)

	db.MustExec(`INSERT INTO UMS_LOG_202603 (CLIENT_KEY, DONE_CODE, DONE_DESC, DONE_RECEIVE_DATE) VALUES (?, ?, ?, ?)`,
		"CMP-1", "90001", "agent busy", first)
	db.MustExec(`INSERT INTO UMS_LOG_202603 (CLIENT_KEY, DONE_CODE, DONE_DESC, DONE_RECEIVE_DATE) VALUES (?, ?, ?, ?)`,
		"CMP-1", "00000", "ok", first.Add(time.Minute))

	res, err := store.FetchResult(context.Background(), "CMP-1", "202603")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "00000", res.DoneCode)
	assert.Equal(t, "ok", res.DoneDesc)
	require.NotNil(t, res.DoneAt)
	assert.True(t, res.DoneAt.Equal(first.Add(time.Minute)))
}

func TestFetchResult_OtherPeriod(t *testing.T) {
	store, db := setupAgentDB(t)
	db.MustExec(`INSERT INTO UMS_LOG_202602 (CLIENT_KEY, DONE_CODE, DONE_DESC, DONE_RECEIVE_DATE) VALUES (?, ?, ?, ?)`,
		"CMP-1", "30001", "no subscriber", time.Date(2026, 2, 28, 23, 0, 0, 0, time.UTC))

	res, err := store.FetchResult(context.Background(), "CMP-1", "202602")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "30001", res.DoneCode)

	res, err = store.FetchResult(context.Background(), "CMP-1", "202603")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestFetchResult_InvalidPeriod(t *testing.T) {
	store, _ := setupAgentDB(t)

	for _, p := range []string{"2026-3", "20263", "abcdef", "2026031"} {
		_, err := store.FetchResult(context.Background(), "CMP-1", p)
		assert.True(t, appErrors.IsValidation(err), p)
	}
}

func TestSimulateDeliveries(t *testing.T) {
	store, _ := setupAgentDB(t)
	ctx := context.Background()

	require.NoError(t, store.Enqueue(ctx, Message{ClientKey: "A-1", Phone: "01011112222"}))
	require.NoError(t, store.Enqueue(ctx, Message{ClientKey: "A-2", Phone: "01033334444"}))

	n, err := store.SimulateDeliveries(ctx, func(key, _ string) (string, string) {
		if key == "A-2" {
			return "22001", "gateway timeout"
		}
		return "00000", "ok"
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	res, err := store.FetchResult(ctx, "A-2", "")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "22001", res.DoneCode)

	n, err = store.SimulateDeliveries(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSimulateDeliveries_MonthRollover(t *testing.T) {
	store, _ := setupAgentDB(t)
	ctx := context.Background()

	require.NoError(t, store.Enqueue(ctx, Message{ClientKey: "MAR-1", Phone: "01011112222"}))

	// the process keeps running into a month with no log table yet
	store.now = func() time.Time { return time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC) }
	require.NoError(t, store.Enqueue(ctx, Message{ClientKey: "APR-1", Phone: "01033334444"}))

	n, err := store.SimulateDeliveries(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	res, err := store.FetchResult(ctx, "MAR-1", "202603")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "00000", res.DoneCode)

	res, err = store.FetchResult(ctx, "APR-1", "")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "00000", res.DoneCode)
}

func TestFetchResult_SandboxCreatesLogTable(t *testing.T) {
	store, _ := setupAgentDB(t)
	store.opts.Sandbox = true

	res, err := store.FetchResult(context.Background(), "MAY-1", "202605")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestBind_UsesTransaction(t *testing.T) {
	store, db := setupAgentDB(t)
	ctx := context.Background()

	tx, err := db.Beginx()
	require.NoError(t, err)
	require.NoError(t, store.Bind(tx).Enqueue(ctx, Message{ClientKey: "TX-1", Phone: "01012345678"}))
	require.NoError(t, tx.Rollback())

	var count int
	require.NoError(t, db.Get(&count, `SELECT COUNT(*) FROM UMS_MSG`))
	assert.Zero(t, count)
}

func TestParseDoneTime(t *testing.T) {
	want := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	for _, v := range []any{"20260314093000", "2026-03-14 09:30:00", []byte("20260314093000"), want} {
		got := parseDoneTime(v)
		require.NotNil(t, got)
		assert.True(t, got.Equal(want))
	}
	assert.Nil(t, parseDoneTime(nil))
	assert.Nil(t, parseDoneTime("garbage"))
	assert.Nil(t, parseDoneTime(time.Time{}))
}
