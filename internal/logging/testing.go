package logging

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger records every entry, Trace included, for assertions.
type TestLogger struct {
	*Logger
	logs *observer.ObservedLogs
}

func NewTestLogger() *TestLogger {
	core, logs := observer.New(TraceLevel)
	return &TestLogger{Logger: &Logger{z: zap.New(core)}, logs: logs}
}

// Entries returns what has been logged so far.
func (t *TestLogger) Entries() []observer.LoggedEntry {
	return t.logs.All()
}

// Find returns the first entry at lvl whose message contains substr.
func (t *TestLogger) Find(lvl zapcore.Level, substr string) (observer.LoggedEntry, bool) {
	for _, e := range t.logs.All() {
		if e.Level == lvl && strings.Contains(e.Message, substr) {
			return e, true
		}
	}
	return observer.LoggedEntry{}, false
}

// AssertLogged fails tb unless an entry at lvl contains substr. The entry is
// returned so callers can inspect its fields with ContextMap.
func (t *TestLogger) AssertLogged(tb testing.TB, lvl zapcore.Level, substr string) observer.LoggedEntry {
	tb.Helper()
	e, ok := t.Find(lvl, substr)
	if !ok {
		msgs := make([]string, 0, t.logs.Len())
		for _, e := range t.logs.All() {
			msgs = append(msgs, e.Level.String()+": "+e.Message)
		}
		tb.Errorf("no %s entry containing %q; have %q", lvl, substr, msgs)
	}
	return e
}

func (t *TestLogger) AssertNotLogged(tb testing.TB, lvl zapcore.Level, substr string) {
	tb.Helper()
	if e, ok := t.Find(lvl, substr); ok {
		tb.Errorf("unexpected %s entry %q", lvl, e.Message)
	}
}
