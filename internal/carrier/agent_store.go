package carrier

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	appErrors "github.com/unclebandit/coupon-dispatch/internal/errors"
)

const insertMessageSQL = `
INSERT INTO UMS_MSG (
    CLIENT_KEY, REQ_CH, TRAFFIC_TYPE, MSG_STATUS, REQ_DATE,
    CALLBACK_NUMBER, PHONE, MSG, TITLE, MMS_FILE_LIST,
    REQ_DEPT_CODE, REQ_USER_ID
) VALUES (?, ?, ?, 'ready', ?, ?, ?, ?, ?, ?, ?, ?)`

// Options are fixed per deployment and stamped on every UMS_MSG row.
type Options struct {
	RequestChannel string
	TrafficType    string
	DeptCode       string
	UserID         string
	// CallbackNumber is used when a message carries none of its own.
	CallbackNumber string
	// Sandbox lets FetchResult create a missing monthly log table.
	Sandbox bool
}

// AgentStore talks to the carrier agent tables over SQL.
type AgentStore struct {
	db     sqlx.ExtContext
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

var (
	_ Gateway  = (*AgentStore)(nil)
	_ TxBinder = (*AgentStore)(nil)
)

func NewAgentStore(db sqlx.ExtContext, opts Options, logger *slog.Logger) *AgentStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &AgentStore{
		db:     db,
		opts:   opts,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the REQ_DATE and sandbox log clock.
func (s *AgentStore) SetClock(now func() time.Time) { s.now = now }

// Bind returns a copy that runs on ext, typically an open transaction.
func (s *AgentStore) Bind(ext sqlx.ExtContext) Gateway {
	cp := *s
	cp.db = ext
	return &cp
}

// ==========================
// Enqueue
// ==========================

func (s *AgentStore) Enqueue(ctx context.Context, msg Message) error {
	ctx, span := otel.Tracer("carrier").Start(ctx, "carrier.Enqueue")
	defer span.End()
	span.SetAttributes(attribute.String("client_key", msg.ClientKey))

	if msg.ClientKey == "" || len(msg.ClientKey) > MaxClientKeyLen {
		return appErrors.NewValidation("client_key", fmt.Sprintf("must be 1..%d bytes", MaxClientKeyLen))
	}

	var media any
	if msg.MediaPath != "" {
		media = msg.MediaPath
	}
	callback := msg.CallbackNumber
	if callback == "" {
		callback = s.opts.CallbackNumber
	}

	_, err := s.db.ExecContext(ctx, s.db.Rebind(insertMessageSQL),
		msg.ClientKey,
		s.opts.RequestChannel,
		s.opts.TrafficType,
		s.now(),
		callback,
		msg.Phone,
		msg.Body,
		msg.Title,
		media,
		s.opts.DeptCode,
		s.opts.UserID,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return fmt.Errorf("carrier: enqueue %s: %w", msg.ClientKey, err)
	}

	s.logger.Debug("carrier message enqueued", slog.String("client_key", msg.ClientKey))
	return nil
}

// ==========================
// Results
// ==========================

type logRow struct {
	DoneCode     sql.NullString `db:"done_code"`
	DoneDesc     sql.NullString `db:"done_desc"`
	DoneReceived any            `db:"done_receive_date"`
}

func (s *AgentStore) FetchResult(ctx context.Context, clientKey, period string) (*Result, error) {
	ctx, span := otel.Tracer("carrier").Start(ctx, "carrier.FetchResult")
	defer span.End()

	table, err := s.logTable(period)
	if err != nil {
		return nil, err
	}
	if s.opts.Sandbox {
		if period == "" {
			period = CurrentPeriod(s.now())
		}
		if err := s.EnsureSchema(ctx, period); err != nil {
			return nil, err
		}
	}
	span.SetAttributes(attribute.String("table", table))

	q := fmt.Sprintf(`
SELECT DONE_CODE AS done_code, DONE_DESC AS done_desc, DONE_RECEIVE_DATE AS done_receive_date
FROM %s
WHERE CLIENT_KEY = ?
ORDER BY DONE_RECEIVE_DATE DESC
LIMIT 1`, table)

	var row logRow
	err = sqlx.GetContext(ctx, s.db, &row, s.db.Rebind(q), clientKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, fmt.Errorf("carrier: fetch %s from %s: %w", clientKey, table, err)
	}

	return &Result{
		ClientKey: clientKey,
		DoneCode:  strings.TrimSpace(row.DoneCode.String),
		DoneDesc:  row.DoneDesc.String,
		DoneAt:    parseDoneTime(row.DoneReceived),
	}, nil
}

func (s *AgentStore) logTable(period string) (string, error) {
	if period == "" {
		period = CurrentPeriod(s.now())
	}
	if err := ValidatePeriod(period); err != nil {
		return "", err
	}
	return "UMS_LOG_" + period, nil
}

// CurrentPeriod formats t as YYYYMM in UTC.
func CurrentPeriod(t time.Time) string {
	return t.UTC().Format("200601")
}

// ValidatePeriod accepts exactly six ASCII digits.
func ValidatePeriod(period string) error {
	if len(period) != 6 {
		return appErrors.NewValidation("period", "must be YYYYMM")
	}
	for i := 0; i < len(period); i++ {
		if period[i] < '0' || period[i] > '9' {
			return appErrors.NewValidation("period", "must be YYYYMM")
		}
	}
	return nil
}

var doneTimeLayouts = []string{
	"20060102150405",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
}

// parseDoneTime copes with drivers returning time.Time, []byte or string.
func parseDoneTime(v any) *time.Time {
	var raw string
	switch t := v.(type) {
	case nil:
		return nil
	case time.Time:
		if t.IsZero() {
			return nil
		}
		u := t.UTC()
		return &u
	case []byte:
		raw = string(t)
	case string:
		raw = t
	default:
		return nil
	}

	raw = strings.TrimSpace(raw)
	for _, layout := range doneTimeLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			u := parsed.UTC()
			return &u
		}
	}
	return nil
}
