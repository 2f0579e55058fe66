// SPDX-License-Identifier: Apache-2.0

// Package testdb derives connection strings that point each test at its own,
// uniquely named database on a shared database server.
package testdb

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/xataio/testdb/internal/connstr"
)

const (
	// MaxDatabaseNameLength bounds generated database names. SQL Server allows
	// 128 characters, so some headroom is kept.
	MaxDatabaseNameLength = 100

	// SuffixLength is the length of the random hex suffix appended to every
	// database name.
	SuffixLength = 32

	// DiagnosticLabel prefixes the line written to a Sink.
	DiagnosticLabel = "** Database Connection String:"

	separator = "_"
)

var (
	// ErrInvalidConnectionString is returned when the base connection string
	// cannot be parsed.
	ErrInvalidConnectionString = connstr.ErrInvalidConnectionString

	ErrInvalidArgument = errors.New("invalid argument")
)

// TestContext supplies the name of the running test. testing.TB satisfies it.
type TestContext interface {
	Name() string
}

// Rewriter turns a connection string for a database server into one for a
// uniquely named database on that server. A Rewriter is immutable and safe
// for concurrent use.
type Rewriter struct {
	maxLength int
	strict    bool
	sink      Sink
	newSuffix func() string
}

// New creates a Rewriter. Without options it bounds names to
// MaxDatabaseNameLength and writes no diagnostics.
func New(opts ...Option) *Rewriter {
	r := &Rewriter{
		maxLength: MaxDatabaseNameLength,
		newSuffix: NewSuffix,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// CreateDBConnectionString returns base rewritten to target a new database
// named after name, with a random suffix. The resulting connection string is
// written to sink if it is not nil.
func CreateDBConnectionString(base, name string, sink Sink) (string, error) {
	return New(WithSink(sink)).ConnectionString(base, name)
}

// ForTest is CreateDBConnectionString with the database named after the
// running test.
func ForTest(tc TestContext, base string, sink Sink) (string, error) {
	return New(WithSink(sink)).ForTest(tc, base)
}

// MustForTest returns a connection string for a database named after t. The
// connection string is logged to the test output and t fails immediately if
// base cannot be rewritten.
func MustForTest(t testing.TB, base string) string {
	t.Helper()

	connStr, err := New(WithSink(TestSink(t))).ForTest(t, base)
	if err != nil {
		t.Fatalf("failed to create test database connection string: %v", err)
	}
	return connStr
}

// NewSuffix returns a fresh random 128-bit identifier as 32 lowercase hex
// characters.
func NewSuffix() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

// UniqueName appends a fresh suffix to candidate, keeping the result within the
// configured maximum length.
//
// When the name is too long it is cut to leave room for the suffix and the
// full suffix is appended after a separator. Unless WithStrictLength is set
// the cut is applied to candidate+suffix. The cut always falls inside the
// candidate, so the separator is the only extra character and the result is
// one over the maximum (or just the separator and suffix when the maximum is
// shorter than the suffix).
func (r *Rewriter) UniqueName(candidate string) string {
	suffix := r.newSuffix()
	name := candidate + suffix

	if utf8.RuneCountInString(name) <= r.maxLength {
		return name
	}

	suffixLen := utf8.RuneCountInString(suffix)
	if r.strict {
		return truncate(candidate, r.maxLength-suffixLen-len(separator)) + separator + suffix
	}
	return truncate(name, r.maxLength-suffixLen) + separator + suffix
}

// ConnectionString returns base rewritten to target a uniquely named database
// derived from candidate. Every other attribute of base is preserved.
func (r *Rewriter) ConnectionString(base, candidate string) (string, error) {
	if strings.ContainsRune(candidate, 0) {
		return "", fmt.Errorf("%w: database name contains a NUL character", ErrInvalidArgument)
	}

	d, err := connstr.Parse(base)
	if err != nil {
		return "", err
	}

	d.SetDatabase(r.UniqueName(candidate))
	connStr := d.String()

	if r.sink != nil {
		r.sink.WriteLine(DiagnosticLabel + " " + connStr)
	}

	return connStr, nil
}

// ForTest returns base rewritten to target a uniquely named database derived
// from the name of the running test.
func (r *Rewriter) ForTest(tc TestContext, base string) (string, error) {
	if tc == nil {
		return "", fmt.Errorf("%w: nil test context", ErrInvalidArgument)
	}
	return r.ConnectionString(base, tc.Name())
}

// truncate returns the first n characters of s.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	for i := range s {
		if n == 0 {
			return s[:i]
		}
		n--
	}
	return s
}
