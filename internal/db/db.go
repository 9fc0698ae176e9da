// internal/db/db.go
package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Connect opens and pings a database. sqlite3 is used for sandbox runs.
func Connect(ctx context.Context, driver, url string, maxOpen int, connIdle time.Duration, log *slog.Logger) (*sqlx.DB, error) {
	db, err := sqlx.Open(driver, url)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == "sqlite3" {
		// in-memory databases are per connection
		db.SetMaxOpenConns(1)
	} else {
		if maxOpen > 0 {
			db.SetMaxOpenConns(maxOpen)
		}
		if connIdle > 0 {
			db.SetConnMaxIdleTime(connIdle)
		}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	if log != nil {
		log.Info("connected to database", slog.String("driver", driver))
	}
	return db, nil
}

// Migrate applies the schema; every statement is idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, Schema(db.DriverName())); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
