package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store is every repository plus transactions. Inside WithTx the callback
// receives a Store bound to the transaction.
type Store interface {
	CampaignRepositoryInterface
	RecipientRepositoryInterface
	CouponRepositoryInterface
	JobRepositoryInterface
	CSRepositoryInterface
	ProductRepositoryInterface

	WithTx(ctx context.Context, fn func(tx Store) error) error
	// Executor exposes the underlying handle so gateways sharing the
	// database can join a transaction.
	Executor() sqlx.ExtContext
}

type SQLStore struct {
	db  *sqlx.DB
	ext sqlx.ExtContext
	now func() time.Time
}

var _ Store = (*SQLStore)(nil)

func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{
		db:  db,
		ext: db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// SetClock is used by tests that need stable timestamps.
func (s *SQLStore) SetClock(now func() time.Time) { s.now = now }

func (s *SQLStore) Executor() sqlx.ExtContext { return s.ext }

func (s *SQLStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	if _, inTx := s.ext.(*sqlx.Tx); inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	bound := &SQLStore{db: s.db, ext: tx, now: s.now}
	if err := fn(bound); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *SQLStore) get(ctx context.Context, dest any, q string, args ...any) error {
	return sqlx.GetContext(ctx, s.ext, dest, s.ext.Rebind(q), args...)
}

func (s *SQLStore) selectAll(ctx context.Context, dest any, q string, args ...any) error {
	return sqlx.SelectContext(ctx, s.ext, dest, s.ext.Rebind(q), args...)
}

func (s *SQLStore) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return s.ext.ExecContext(ctx, s.ext.Rebind(q), args...)
}

// insert runs an INSERT ... RETURNING id.
func (s *SQLStore) insert(ctx context.Context, q string, args ...any) (int64, error) {
	var id int64
	if err := s.get(ctx, &id, q+" RETURNING id", args...); err != nil {
		return 0, err
	}
	return id, nil
}

// execOne fails with sql.ErrNoRows when nothing was updated.
func (s *SQLStore) execOne(ctx context.Context, q string, args ...any) error {
	res, err := s.exec(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
