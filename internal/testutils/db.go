// SPDX-License-Identifier: Apache-2.0

package testutils

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xataio/testdb/internal/connstr"
	"github.com/xataio/testdb/internal/db"
	"github.com/xataio/testdb/pkg/testdb"
)

// The version of postgres against which the tests are run
// if the POSTGRES_VERSION environment variable is not set.
const defaultPostgresVersion = "15.3"

// MaxIdentifierLength is the longest identifier Postgres stores without
// truncation (NAMEDATALEN - 1).
const MaxIdentifierLength = 63

// tConnStr holds the connection string to the test container created in TestMain.
var tConnStr string

// SharedTestMain starts a postgres container to be used by all tests in a package.
// Each test then connects to the container and creates a new database.
// No container is started when tests run with -short.
func SharedTestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()

	waitForLogs := wait.
		ForLog("database system is ready to accept connections").
		WithOccurrence(2).
		WithStartupTimeout(30 * time.Second)

	pgVersion := os.Getenv("POSTGRES_VERSION")
	if pgVersion == "" {
		pgVersion = defaultPostgresVersion
	}

	ctr, err := postgres.Run(ctx, "postgres:"+pgVersion,
		testcontainers.WithWaitStrategy(waitForLogs),
	)
	if err != nil {
		log.Printf("Failed to start postgres container: %v", err)
		os.Exit(1)
	}

	tConnStr, err = ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Printf("Failed to get container connection string: %v", err)
		os.Exit(1)
	}

	exitCode := m.Run()

	if err := testcontainers.TerminateContainer(ctr); err != nil {
		log.Printf("Failed to terminate container: %v", err)
	}

	os.Exit(exitCode)
}

// ServerConnectionString returns the connection string of the shared
// container, pointing at its default database.
func ServerConnectionString(t *testing.T) string {
	t.Helper()

	if tConnStr == "" {
		t.Skip("no postgres container available")
	}
	return tConnStr
}

// WithUniqueDatabase creates a database named after the running test, calls
// fn with a connection to it and drops the database when the test ends.
func WithUniqueDatabase(t *testing.T, fn func(*sql.DB, string)) {
	t.Helper()

	conn, connStr, _ := setupTestDatabase(t)

	fn(conn, connStr)
}

// setupTestDatabase creates a new database in the test container and returns:
// - a connection to the new database
// - the connection string to the new database
// - the name of the new database
func setupTestDatabase(t *testing.T) (*sql.DB, string, string) {
	t.Helper()
	ctx := context.Background()

	serverConnStr := ServerConnectionString(t)

	tDB, err := sql.Open("postgres", serverConnStr)
	if err != nil {
		t.Fatal(err)
	}
	admin := &db.RDB{DB: tDB}

	t.Cleanup(func() {
		if err := admin.Close(); err != nil {
			t.Fatalf("Failed to close database connection: %v", err)
		}
	})

	rewriter := testdb.New(
		testdb.WithMaxLength(MaxIdentifierLength),
		testdb.WithStrictLength(),
		testdb.WithSink(testdb.TestSink(t)),
	)

	connStr, err := rewriter.ForTest(t, serverConnStr)
	if err != nil {
		t.Fatal(err)
	}

	d, err := connstr.Parse(connStr)
	if err != nil {
		t.Fatal(err)
	}
	dbName := d.Database()

	if err := admin.CreateDatabase(ctx, dbName); err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		if err := admin.DropDatabase(context.Background(), dbName); err != nil {
			t.Errorf("Failed to drop test database: %v", err)
		}
	})

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		if err := conn.Close(); err != nil {
			t.Fatalf("Failed to close database connection: %v", err)
		}
	})

	return conn, connStr, dbName
}
