package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// bufferLogger builds a JSON logger writing to a buffer, unsampled.
func bufferLogger(t *testing.T, lvl zapcore.Level) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	cfg := NewDefaultConfig()
	cfg.Level = lvl
	cfg.Writer = zapcore.AddSync(&buf)
	cfg.Sampling.Enabled = false
	l, err := NewLogger(cfg, nil)
	require.NoError(t, err)
	return l, &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"", zapcore.InfoLevel},
		{"trace", TraceLevel},
		{"TRACE", TraceLevel},
		{"debug", zapcore.DebugLevel},
		{" Warn ", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLevel("loud")
	assert.ErrorContains(t, err, "loud")
}

func TestLogger_LevelFiltering(t *testing.T) {
	l, buf := bufferLogger(t, zapcore.InfoLevel)
	ctx := context.Background()

	l.Trace(ctx, "page scanned")
	l.Debug(ctx, "section assigned")
	l.Info(ctx, "document ingested", zap.Int("chunks", 12))
	l.Warn(ctx, "vertical produced no chunks")
	l.Error(ctx, "indexing vertical failed")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 3)
	assert.Equal(t, "document ingested", lines[0]["msg"])
	assert.Equal(t, "info", lines[0]["level"])
	assert.EqualValues(t, 12, lines[0]["chunks"])
	assert.Equal(t, "verticald", lines[0]["service"])
	assert.Equal(t, "warn", lines[1]["level"])
	assert.Equal(t, "error", lines[2]["level"])

	assert.False(t, l.Enabled(zapcore.DebugLevel))
	assert.True(t, l.Enabled(zapcore.InfoLevel))
}

func TestLogger_TraceLevelName(t *testing.T) {
	l, buf := bufferLogger(t, TraceLevel)
	l.Trace(context.Background(), "chunk boundary")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "trace", lines[0]["level"])
}

func TestLogger_CallerPointsAtCallSite(t *testing.T) {
	l, buf := bufferLogger(t, zapcore.InfoLevel)
	l.Info(context.Background(), "here")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0]["caller"], "logger_test.go")
}

func TestLogger_ContextFields(t *testing.T) {
	l, buf := bufferLogger(t, zapcore.InfoLevel)

	tid, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	sid, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: tid,
		SpanID:  sid,
	}))
	ctx = WithDocumentID(ctx, "fy24-annual")
	ctx = WithAuthorized(ctx, []string{"jio", "retail"})

	l.Info(ctx, "query answered")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, tid.String(), lines[0]["trace_id"])
	assert.Equal(t, sid.String(), lines[0]["span_id"])
	assert.Equal(t, "fy24-annual", lines[0]["document.id"])
	assert.Equal(t, []any{"jio", "retail"}, lines[0]["authorized"])
}

func TestLogger_WithAndNamed(t *testing.T) {
	l, buf := bufferLogger(t, zapcore.InfoLevel)
	child := l.Named("index").With(zap.String("vertical", "jio"))

	child.Info(context.Background(), "upserted")
	l.Info(context.Background(), "parent")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "index", lines[0]["logger"])
	assert.Equal(t, "jio", lines[0]["vertical"])
	assert.NotContains(t, lines[1], "vertical")
	assert.NotContains(t, lines[1], "logger")
}

func TestLogger_Sync(t *testing.T) {
	l, _ := bufferLogger(t, zapcore.InfoLevel)
	assert.NoError(t, l.Sync())
	assert.NoError(t, Nop().Sync())
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Error(context.Background(), "dropped")
	assert.False(t, l.Enabled(zapcore.ErrorLevel))
	assert.NotNil(t, l.Underlying())
}

func TestTestLogger(t *testing.T) {
	tl := NewTestLogger()
	ctx := WithDocumentID(context.Background(), "q3-report")

	tl.Trace(ctx, "page scanned")
	tl.Warn(ctx, "event publish failed", zap.String("subject", "verticald.ingest"))

	e := tl.AssertLogged(t, zapcore.WarnLevel, "publish failed")
	assert.Equal(t, "verticald.ingest", e.ContextMap()["subject"])
	assert.Equal(t, "q3-report", e.ContextMap()["document.id"])
	tl.AssertLogged(t, TraceLevel, "page")
	tl.AssertNotLogged(t, zapcore.ErrorLevel, "publish failed")
	assert.Len(t, tl.Entries(), 2)

	_, ok := tl.Find(zapcore.InfoLevel, "page")
	assert.False(t, ok)
}
