// Package testutil provides shared test helpers for sink and CLI tests.
package testutil

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/banshee-data/containerio/internal/monitoring"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// TempSinkPath returns a sink file path inside a per-test temporary
// directory. The file itself is not created.
func TempSinkPath(t testing.TB) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "sink.db")
}

// LogRecorder collects lines written through monitoring.Logf.
type LogRecorder struct {
	mu    sync.Mutex
	lines []string
}

// Lines returns the recorded lines.
func (r *LogRecorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

// Contains reports whether any recorded line contains substr.
func (r *LogRecorder) Contains(substr string) bool {
	for _, l := range r.Lines() {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

// CaptureLogs redirects monitoring.Logf into a recorder until the test
// ends. Tests using it must not run in parallel.
func CaptureLogs(t testing.TB) *LogRecorder {
	t.Helper()
	original := monitoring.Logf
	t.Cleanup(func() { monitoring.SetLogger(original) })

	r := &LogRecorder{}
	monitoring.SetLogger(func(format string, v ...interface{}) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.lines = append(r.lines, fmt.Sprintf(format, v...))
	})
	return r
}
