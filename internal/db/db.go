// SPDX-License-Identifier: Apache-2.0

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cloudflare/backoff"
	"github.com/lib/pq"
)

const (
	lockNotAvailableErrorCode pq.ErrorCode = "55P03"
	// CREATE DATABASE fails with object_in_use while another session is
	// copying from the same template, which happens when tests run in parallel.
	objectInUseErrorCode pq.ErrorCode = "55006"

	maxBackoffDuration = 1 * time.Minute
	backoffInterval    = 100 * time.Millisecond
)

// RDB wraps a *sql.DB and retries queries using an exponential backoff (with
// jitter) on lock_timeout and object_in_use errors.
type RDB struct {
	DB *sql.DB
}

// ExecContext wraps sql.DB.ExecContext, retrying queries on retryable errors.
func (db *RDB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	b := backoff.New(maxBackoffDuration, backoffInterval)

	for {
		res, err := db.DB.ExecContext(ctx, query, args...)
		if err == nil {
			return res, nil
		}

		if isRetryable(err) {
			if err := sleepCtx(ctx, b.Duration()); err != nil {
				return nil, err
			}
			continue
		}

		return nil, err
	}
}

// QueryContext wraps sql.DB.QueryContext, retrying queries on retryable errors.
func (db *RDB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	b := backoff.New(maxBackoffDuration, backoffInterval)

	for {
		rows, err := db.DB.QueryContext(ctx, query, args...)
		if err == nil {
			return rows, nil
		}

		if isRetryable(err) {
			if err := sleepCtx(ctx, b.Duration()); err != nil {
				return nil, err
			}
			continue
		}

		return nil, err
	}
}

// CreateDatabase creates the named database. The name is quoted, so it may
// contain any character Postgres allows in a quoted identifier.
func (db *RDB) CreateDatabase(ctx context.Context, name string) error {
	_, err := db.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE %s", pq.QuoteIdentifier(name)))
	if err != nil {
		return fmt.Errorf("failed to create database %q: %w", name, err)
	}
	return nil
}

// DropDatabase drops the named database if it exists, terminating any
// remaining connections to it.
func (db *RDB) DropDatabase(ctx context.Context, name string) error {
	_, err := db.ExecContext(ctx, fmt.Sprintf("DROP DATABASE IF EXISTS %s WITH (FORCE)", pq.QuoteIdentifier(name)))
	if err != nil {
		return fmt.Errorf("failed to drop database %q: %w", name, err)
	}
	return nil
}

// DatabaseExists reports whether a database with exactly this name exists.
func (db *RDB) DatabaseExists(ctx context.Context, name string) (bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", name)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	var exists bool
	if err := ScanFirstValue(rows, &exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (db *RDB) Close() error {
	return db.DB.Close()
}

// ScanFirstValue is a helper function to scan the first value with the assumption that Rows contains
// a single row with a single value.
func ScanFirstValue[T any](rows *sql.Rows, dest *T) error {
	if rows.Next() {
		if err := rows.Scan(dest); err != nil {
			return err
		}
	}
	return rows.Err()
}

func isRetryable(err error) bool {
	pqErr := &pq.Error{}
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == lockNotAvailableErrorCode || pqErr.Code == objectInUseErrorCode
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
