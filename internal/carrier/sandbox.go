package carrier

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const messageTableDDL = `
CREATE TABLE IF NOT EXISTS UMS_MSG (
    CLIENT_KEY      VARCHAR(40) NOT NULL,
    REQ_CH          VARCHAR(10),
    TRAFFIC_TYPE    VARCHAR(10),
    MSG_STATUS      VARCHAR(10) NOT NULL,
    REQ_DATE        TIMESTAMP NOT NULL,
    CALLBACK_NUMBER VARCHAR(20),
    PHONE           VARCHAR(20) NOT NULL,
    MSG             TEXT,
    TITLE           VARCHAR(120),
    MMS_FILE_LIST   VARCHAR(255),
    REQ_DEPT_CODE   VARCHAR(20),
    REQ_USER_ID     VARCHAR(20)
)`

const logTableDDL = `
CREATE TABLE IF NOT EXISTS %s (
    CLIENT_KEY        VARCHAR(40) NOT NULL,
    DONE_CODE         VARCHAR(10),
    DONE_DESC         VARCHAR(255),
    DONE_RECEIVE_DATE TIMESTAMP
)`

// EnsureSchema creates the agent tables for sandbox and test databases.
// Live agents own their schema; this is never called against them.
func (s *AgentStore) EnsureSchema(ctx context.Context, periods ...string) error {
	if _, err := s.db.ExecContext(ctx, messageTableDDL); err != nil {
		return fmt.Errorf("carrier: create UMS_MSG: %w", err)
	}
	if len(periods) == 0 {
		periods = []string{CurrentPeriod(s.now())}
	}
	for _, p := range periods {
		table, err := s.logTable(p)
		if err != nil {
			return err
		}
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf(logTableDDL, table)); err != nil {
			return fmt.Errorf("carrier: create %s: %w", table, err)
		}
	}
	return nil
}

// Outcome decides the done code a sandbox delivery ends with.
type Outcome func(clientKey, phone string) (code, desc string)

// AlwaysDelivered is the default sandbox outcome.
func AlwaysDelivered(string, string) (string, string) {
	return "00000", "delivered"
}

// SimulateDeliveries plays the carrier: every ready row is logged with the
// outcome's done code into the log table of its request month, creating that
// table when missing, and marked done. It returns the number of rows moved.
func (s *AgentStore) SimulateDeliveries(ctx context.Context, outcome Outcome) (int, error) {
	if outcome == nil {
		outcome = AlwaysDelivered
	}
	now := s.now()

	type pending struct {
		ClientKey string `db:"client_key"`
		Phone     string `db:"phone"`
		ReqDate   any    `db:"req_date"`
	}
	var rows []pending
	err := sqlx.SelectContext(ctx, s.db, &rows,
		`SELECT CLIENT_KEY AS client_key, PHONE AS phone, REQ_DATE AS req_date FROM UMS_MSG WHERE MSG_STATUS = 'ready' ORDER BY REQ_DATE`)
	if err != nil {
		return 0, fmt.Errorf("carrier: load ready messages: %w", err)
	}

	mark := s.db.Rebind(`UPDATE UMS_MSG SET MSG_STATUS = 'done' WHERE CLIENT_KEY = ? AND MSG_STATUS = 'ready'`)
	ensured := make(map[string]bool)

	for i, r := range rows {
		period := CurrentPeriod(now)
		if req := parseDoneTime(r.ReqDate); req != nil {
			period = CurrentPeriod(*req)
		}
		if !ensured[period] {
			if err := s.EnsureSchema(ctx, period); err != nil {
				return i, err
			}
			ensured[period] = true
		}
		table, err := s.logTable(period)
		if err != nil {
			return i, err
		}
		insert := s.db.Rebind(fmt.Sprintf(
			`INSERT INTO %s (CLIENT_KEY, DONE_CODE, DONE_DESC, DONE_RECEIVE_DATE) VALUES (?, ?, ?, ?)`, table))

		code, desc := outcome(r.ClientKey, r.Phone)
		at := now.Add(time.Duration(i) * time.Millisecond)
		if _, err := s.db.ExecContext(ctx, insert, r.ClientKey, code, desc, at); err != nil {
			return i, fmt.Errorf("carrier: log %s: %w", r.ClientKey, err)
		}
		if _, err := s.db.ExecContext(ctx, mark, r.ClientKey); err != nil {
			return i, fmt.Errorf("carrier: mark %s: %w", r.ClientKey, err)
		}
	}
	return len(rows), nil
}
