package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hakku-ai/gateway/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements AttemptStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed attempt store.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode for better concurrency. The _pragma form applies the
	// pragmas to every pooled connection, not just the first one.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS prompt_attempts (
		device_key TEXT NOT NULL,
		task_id TEXT NOT NULL,
		day TEXT NOT NULL,
		environment TEXT NOT NULL,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (device_key, task_id, day, environment)
	);
	CREATE INDEX IF NOT EXISTS idx_prompt_attempts_day ON prompt_attempts(day);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Get returns the current attempt count for key.
func (s *SQLiteStore) Get(ctx context.Context, key domain.AttemptKey) (int, error) {
	query := `
		SELECT attempt_count FROM prompt_attempts
		WHERE device_key = ? AND task_id = ? AND day = ? AND environment = ?`

	var count int
	err := s.db.QueryRowContext(ctx, query,
		key.DeviceKey, key.TaskID, key.Day, key.Environment,
	).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("scan attempt count: %w", err)
	}
	return count, nil
}

// Increment atomically bumps the counter for key unless it has reached
// limit. The check and the increment are a single upsert so two
// near-simultaneous requests cannot both slip under the limit.
func (s *SQLiteStore) Increment(ctx context.Context, key domain.AttemptKey, limit int) (int, bool, error) {
	query := `
		INSERT INTO prompt_attempts (device_key, task_id, day, environment, attempt_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(device_key, task_id, day, environment) DO UPDATE SET
			attempt_count = prompt_attempts.attempt_count + 1,
			updated_at = excluded.updated_at
		WHERE prompt_attempts.attempt_count < ?
		RETURNING attempt_count`

	now := time.Now().Unix()

	var count int
	err := withBusyRetry(ctx, func() error {
		return s.db.QueryRowContext(ctx, query,
			key.DeviceKey, key.TaskID, key.Day, key.Environment, now, now, limit,
		).Scan(&count)
	})
	if errors.Is(err, sql.ErrNoRows) {
		// The WHERE clause rejected the update: counter is at the limit.
		current, getErr := s.Get(ctx, key)
		if getErr != nil {
			return 0, false, getErr
		}
		return current, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("increment attempt count: %w", err)
	}
	return count, true, nil
}

// DeleteOlderThan removes counters whose day is before the cutoff date.
func (s *SQLiteStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := withBusyRetry(ctx, func() error {
		result, err := s.db.ExecContext(ctx,
			`DELETE FROM prompt_attempts WHERE day < ?`, domain.Day(cutoff))
		if err != nil {
			return err
		}
		deleted, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("delete stale attempts: %w", err)
	}
	return deleted, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// isSQLiteConflictError reports whether err is a SQLITE_BUSY or
// "database is locked" error. Both warrant a retry.
func isSQLiteConflictError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "SQLITE_BUSY") ||
		strings.Contains(err.Error(), "database is locked")
}

// withBusyRetry runs op, retrying with exponential backoff when SQLite
// reports a lock conflict.
func withBusyRetry(ctx context.Context, op func() error) error {
	const maxRetries = 3
	baseDelay := 100 * time.Millisecond

	var err error
	for i := 0; i < maxRetries; i++ {
		err = op()
		if err == nil || !isSQLiteConflictError(err) {
			return err
		}
		if i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i) // 100ms, 200ms
			slog.Debug("SQLite busy, retrying", "attempt", i+1, "delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return err
}
