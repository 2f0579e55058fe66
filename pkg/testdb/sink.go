// SPDX-License-Identifier: Apache-2.0

package testdb

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/pterm/pterm"
)

// Sink receives diagnostic output. WriteLine is called at most once per
// generated connection string.
type Sink interface {
	WriteLine(line string)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(line string)

func (f SinkFunc) WriteLine(line string) {
	f(line)
}

type nopSink struct{}

func (nopSink) WriteLine(string) {}

// NopSink returns a Sink that discards everything.
func NopSink() Sink {
	return nopSink{}
}

// TestSink writes to the test log of t.
func TestSink(t testing.TB) Sink {
	return SinkFunc(func(line string) {
		t.Helper()
		t.Log(line)
	})
}

type writerSink struct {
	mu sync.Mutex
	w  io.Writer
}

// WriterSink writes each line to w. Writes are serialized so the sink can be
// shared between parallel tests.
func WriterSink(w io.Writer) Sink {
	return &writerSink{w: w}
}

func (s *writerSink) WriteLine(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fmt.Fprintln(s.w, line)
}

type loggerSink struct {
	logger pterm.Logger
}

// LoggerSink writes lines as info messages to a pterm logger. Diagnostic lines
// are logged with the connection string as an argument so that long strings
// are not wrapped.
func LoggerSink(l pterm.Logger) Sink {
	return &loggerSink{logger: l}
}

// NewLoggerSink returns a LoggerSink backed by the default pterm logger,
// writing to w.
func NewLoggerSink(w io.Writer) Sink {
	return LoggerSink(*pterm.DefaultLogger.WithWriter(w))
}

func (s *loggerSink) WriteLine(line string) {
	connStr, ok := strings.CutPrefix(line, DiagnosticLabel+" ")
	if !ok {
		s.logger.Info(line)
		return
	}
	s.logger.Info("created database connection string", s.logger.Args("connection_string", connStr))
}
