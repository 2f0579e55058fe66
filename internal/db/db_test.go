// SPDX-License-Identifier: Apache-2.0

package db_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xataio/testdb/internal/db"
	"github.com/xataio/testdb/internal/testutils"
	"github.com/xataio/testdb/pkg/testdb"
)

func TestMain(m *testing.M) {
	testutils.SharedTestMain(m)
}

func TestCreateAndDropDatabase(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rdb := adminConnection(t)

	name := testdb.New(testdb.WithMaxLength(testutils.MaxIdentifierLength), testdb.WithStrictLength()).
		UniqueName("TestCreateAndDropDatabase/with spaces & symbols")

	require.NoError(t, rdb.CreateDatabase(ctx, name))

	exists, err := rdb.DatabaseExists(ctx, name)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, rdb.DropDatabase(ctx, name))

	exists, err = rdb.DatabaseExists(ctx, name)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDropDatabaseThatDoesNotExist(t *testing.T) {
	t.Parallel()

	rdb := adminConnection(t)

	assert.NoError(t, rdb.DropDatabase(context.Background(), "does_not_exist_"+testdb.NewSuffix()))
}

func TestCreateDatabasesConcurrently(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rdb := adminConnection(t)
	rewriter := testdb.New(testdb.WithMaxLength(testutils.MaxIdentifierLength), testdb.WithStrictLength())

	const count = 10
	names := make([]string, count)
	errs := make([]error, count)

	var wg sync.WaitGroup
	for i := range count {
		names[i] = rewriter.UniqueName(fmt.Sprintf("concurrent_%d_", i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = rdb.CreateDatabase(ctx, names[i])
		}()
	}
	wg.Wait()

	for i := range count {
		require.NoError(t, errs[i])
		require.NoError(t, rdb.DropDatabase(ctx, names[i]))
	}
}

func TestExecContext(t *testing.T) {
	t.Parallel()

	testutils.WithUniqueDatabase(t, func(conn *sql.DB, connStr string) {
		ctx := context.Background()
		// create a table on which an exclusive lock is held for 2 seconds
		setupTableLock(t, connStr, 2*time.Second)

		// set the lock timeout to 100ms
		ensureLockTimeout(t, conn, 100)

		// execute a query that should retry until the lock is released
		rdb := &db.RDB{DB: conn}
		_, err := rdb.ExecContext(ctx, "INSERT INTO test(id) VALUES (1)")
		require.NoError(t, err)
	})
}

func TestExecContextWhenContextCancelled(t *testing.T) {
	t.Parallel()

	testutils.WithUniqueDatabase(t, func(conn *sql.DB, connStr string) {
		ctx := context.Background()
		ctx, cancel := context.WithCancel(ctx)

		// create a table on which an exclusive lock is held for 2 seconds
		setupTableLock(t, connStr, 2*time.Second)

		// set the lock timeout to 100ms
		ensureLockTimeout(t, conn, 100)

		rdb := &db.RDB{DB: conn}

		// Cancel the context before the lock times out
		go time.AfterFunc(500*time.Millisecond, cancel)

		_, err := rdb.ExecContext(ctx, "INSERT INTO test(id) VALUES (1)")
		require.Errorf(t, err, "context canceled")
	})
}

func TestQueryContext(t *testing.T) {
	t.Parallel()

	testutils.WithUniqueDatabase(t, func(conn *sql.DB, connStr string) {
		ctx := context.Background()
		// create a table on which an exclusive lock is held for 2 seconds
		setupTableLock(t, connStr, 2*time.Second)

		// set the lock timeout to 100ms
		ensureLockTimeout(t, conn, 100)

		// execute a query that should retry until the lock is released
		rdb := &db.RDB{DB: conn}
		rows, err := rdb.QueryContext(ctx, "SELECT COUNT(*) FROM test")
		require.NoError(t, err)
		defer rows.Close()

		var count int
		err = db.ScanFirstValue(rows, &count)
		assert.NoError(t, err)
		assert.Equal(t, 0, count)
	})
}

func adminConnection(t *testing.T) *db.RDB {
	t.Helper()

	conn, err := sql.Open("postgres", testutils.ServerConnectionString(t))
	require.NoError(t, err)

	t.Cleanup(func() { conn.Close() })

	return &db.RDB{DB: conn}
}

// setupTableLock:
// * connects to the database
// * creates a table in the database
// * starts a transaction that temporarily locks the table
func setupTableLock(t *testing.T, connStr string, d time.Duration) {
	t.Helper()
	ctx := context.Background()

	// connect to the database
	conn2, err := sql.Open("postgres", connStr)
	require.NoError(t, err)

	// create a table in the database
	_, err = conn2.ExecContext(ctx, "CREATE TABLE test (id INT PRIMARY KEY)")
	require.NoError(t, err)

	// start a transaction that takes a temporary lock on the table
	errCh := make(chan error)
	go func() {
		defer conn2.Close()

		tx, err := conn2.Begin()
		if err != nil {
			errCh <- err
			return
		}

		_, err = tx.ExecContext(ctx, "LOCK TABLE test IN ACCESS EXCLUSIVE MODE")
		if err != nil {
			errCh <- err
			return
		}

		// signal that the lock is obtained
		errCh <- nil

		// temporarily hold the lock
		time.Sleep(d)

		tx.Commit()
	}()

	// wait for the lock to be obtained
	err = <-errCh
	require.NoError(t, err)
}

func ensureLockTimeout(t *testing.T, conn *sql.DB, ms int) {
	t.Helper()

	// Pin the pool to a single connection so the setting applies to the
	// connection used by the query under test.
	conn.SetMaxOpenConns(1)

	query := fmt.Sprintf("SET lock_timeout = '%dms'", ms)
	_, err := conn.ExecContext(context.Background(), query)
	require.NoError(t, err)

	var lockTimeout string
	err = conn.QueryRowContext(context.Background(), "SHOW lock_timeout").Scan(&lockTimeout)
	require.NoError(t, err)
	require.Equal(t, fmt.Sprintf("%dms", ms), lockTimeout)
}
