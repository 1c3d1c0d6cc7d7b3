package logging

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/log/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/verticald/internal/config"
)

func TestRedaction_SensitiveKeys(t *testing.T) {
	l, buf := bufferLogger(t, zapcore.InfoLevel)

	l.Info(context.Background(), "embedder configured",
		zap.String("api_key", "sk-live-abcdefgh"),
		zap.String("embeddings.API_KEY", "abc"),
		zap.Any("authorization", map[string]string{"scheme": "Bearer"}),
		zap.String("model", "text-embedding-3-small"),
	)

	out := buf.String()
	assert.NotContains(t, out, "sk-live-abcdefgh")
	assert.NotContains(t, out, `"abc"`)
	assert.NotContains(t, out, "scheme")
	assert.Contains(t, out, `"model":"text-embedding-3-small"`)

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, redacted, lines[0]["api_key"])
	assert.Equal(t, redacted, lines[0]["embeddings.API_KEY"])
	assert.Equal(t, redacted, lines[0]["authorization"])
}

func TestRedaction_Patterns(t *testing.T) {
	l, buf := bufferLogger(t, zapcore.InfoLevel)

	l.Warn(context.Background(), "tei rejected Bearer eyJhbGciOi",
		zap.String("header", "Authorization: Bearer abc.def.ghi"),
		zap.Error(errors.New("openai: invalid key sk-proj-12345678")),
		zap.String("query", "jio subscriber growth"),
	)

	out := buf.String()
	assert.NotContains(t, out, "eyJhbGciOi")
	assert.NotContains(t, out, "abc.def.ghi")
	assert.NotContains(t, out, "sk-proj-12345678")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "tei rejected [REDACTED]", lines[0]["msg"])
	assert.Equal(t, "Authorization: [REDACTED]", lines[0]["header"])
	assert.Equal(t, "openai: invalid key [REDACTED]", lines[0]["error"])
	assert.Equal(t, "jio subscriber growth", lines[0]["query"])
}

func TestRedaction_WithFields(t *testing.T) {
	l, buf := bufferLogger(t, zapcore.InfoLevel)

	l.With(zap.String("token", "s3cr3t")).Info(context.Background(), "connected")

	assert.NotContains(t, buf.String(), "s3cr3t")
	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, redacted, lines[0]["token"])
}

func TestRedaction_SecretStringer(t *testing.T) {
	l, buf := bufferLogger(t, zapcore.InfoLevel)

	l.Info(context.Background(), "qdrant", zap.Stringer("key", config.Secret("hunter2")))

	assert.NotContains(t, buf.String(), "hunter2")
}

func TestRedaction_Disabled(t *testing.T) {
	var buf bytes.Buffer
	cfg := NewDefaultConfig()
	cfg.Writer = zapcore.AddSync(&buf)
	cfg.Redact = Redaction{}

	l, err := NewLogger(cfg, nil)
	require.NoError(t, err)
	l.Info(context.Background(), "raw", zap.String("api_key", "visible"))

	assert.Contains(t, buf.String(), "visible")
}

func TestSampling_ErrorsNeverSampled(t *testing.T) {
	var buf bytes.Buffer
	cfg := NewDefaultConfig()
	cfg.Writer = zapcore.AddSync(&buf)
	cfg.Sampling.Tick = time.Minute
	cfg.Sampling.Rates = map[zapcore.Level]Rate{
		zapcore.InfoLevel:  {Initial: 3},
		zapcore.ErrorLevel: {Initial: 1},
	}
	l, err := NewLogger(cfg, nil)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 20; i++ {
		l.Info(ctx, "chunk written")
		l.Error(ctx, "upsert failed")
		l.Warn(ctx, "slow store")
	}

	var info, errs, warn int
	for _, line := range decodeLines(t, &buf) {
		switch line["msg"] {
		case "chunk written":
			info++
		case "upsert failed":
			errs++
		case "slow store":
			warn++
		}
	}
	assert.Equal(t, 3, info)
	assert.Equal(t, 20, errs)
	assert.Equal(t, 20, warn, "levels without a rate pass through")
}

func TestSampling_LevelsHaveSeparateBudgets(t *testing.T) {
	var buf bytes.Buffer
	cfg := NewDefaultConfig()
	cfg.Level = zapcore.DebugLevel
	cfg.Writer = zapcore.AddSync(&buf)
	cfg.Sampling.Tick = time.Minute
	cfg.Sampling.Rates = map[zapcore.Level]Rate{
		zapcore.DebugLevel: {Initial: 2},
		zapcore.InfoLevel:  {Initial: 2},
	}
	l, err := NewLogger(cfg, nil)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		l.Debug(ctx, "same message")
	}
	l.Info(ctx, "same message")

	var debug, info int
	for _, line := range decodeLines(t, &buf) {
		switch line["level"] {
		case "debug":
			debug++
		case "info":
			info++
		}
	}
	assert.Equal(t, 2, debug)
	assert.Equal(t, 1, info)
}

func TestNewCore_Outputs(t *testing.T) {
	t.Run("otel without provider falls back to console", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.OTEL = true
		_, err := newCore(cfg, nil)
		assert.NoError(t, err)
	})

	t.Run("otel only without provider", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Console = false
		cfg.OTEL = true
		_, err := newCore(cfg, nil)
		assert.ErrorContains(t, err, "no usable output")
	})

	t.Run("console and otel", func(t *testing.T) {
		var buf bytes.Buffer
		cfg := NewDefaultConfig()
		cfg.OTEL = true
		cfg.Writer = zapcore.AddSync(&buf)

		l, err := NewLogger(cfg, noop.NewLoggerProvider())
		require.NoError(t, err)
		l.Debug(context.Background(), "below level")
		l.Info(context.Background(), "both outputs", zap.String("api_key", "k"))

		lines := decodeLines(t, &buf)
		require.Len(t, lines, 1)
		assert.Equal(t, "both outputs", lines[0]["msg"])
		assert.Equal(t, redacted, lines[0]["api_key"])
	})
}
