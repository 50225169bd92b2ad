// Package db provides SQL access for transcript storage on Postgres or SQLite.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "modernc.org/sqlite"             // registers the "sqlite" driver
)

// Supported database/sql driver names.
const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// DB wraps a database/sql pool with a dialect-aware query builder.
type DB struct {
	sql     *sql.DB
	driver  string
	builder sq.StatementBuilderType
}

// Open connects using driver and dsn, applies dialect pragmas and migrates the schema.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if dsn == "" {
		return nil, fmt.Errorf("database DSN is empty")
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{sql: conn, driver: driver, builder: sq.StatementBuilder.PlaceholderFormat(sq.Question)}
	if driver == DriverPostgres {
		db.builder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	} else {
		// A single connection keeps :memory: databases coherent and serializes writers.
		conn.SetMaxOpenConns(1)
		pragmas := []string{"PRAGMA busy_timeout = 5000"}
		if dsn != ":memory:" {
			pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
		}
		for _, pragma := range pragmas {
			if _, err := conn.ExecContext(ctx, pragma); err != nil {
				_ = conn.Close()
				return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
			}
		}
	}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the connection pool
func (db *DB) Close() error {
	if db == nil || db.sql == nil {
		return nil
	}
	return db.sql.Close()
}

// Driver returns the driver name the pool was opened with.
func (db *DB) Driver() string {
	return db.driver
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS transcripts (
		video_id      TEXT PRIMARY KEY,
		channel       TEXT NOT NULL,
		channel_dir   TEXT NOT NULL,
		name          TEXT NOT NULL,
		path          TEXT NOT NULL,
		channel_id    TEXT NOT NULL DEFAULT '',
		title         TEXT NOT NULL,
		published_at  TEXT NOT NULL DEFAULT '',
		downloaded_at TEXT NOT NULL,
		content       TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transcripts_channel_dir ON transcripts (channel_dir)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_transcripts_path ON transcripts (path)`,
}

// Migrate creates the schema if it does not exist.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if err := db.exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
	}
	return nil
}

func (db *DB) exec(ctx context.Context, query string, args ...any) error {
	_, err := db.execResult(ctx, query, args...)
	return err
}

func (db *DB) execResult(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var (
		res     sql.Result
		execErr error
	)
	err := retryOnBusy(ctx, func() error {
		res, execErr = db.sql.ExecContext(ctx, query, args...)
		return execErr
	})
	return res, err
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
