package logging

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/verticald/internal/config"
	"go.uber.org/zap/zapcore"
)

// Config controls how a Logger encodes entries and where they go.
type Config struct {
	Level  zapcore.Level
	Format string // json or console

	// Console writes encoded entries to Writer, or stderr when Writer is nil.
	Console bool
	Writer  zapcore.WriteSyncer
	// OTEL bridges entries to the telemetry logger provider.
	OTEL bool

	Caller     bool
	Stacktrace bool // attach stacks to Error entries
	Fields     map[string]string

	Sampling Sampling
	Redact   Redaction
}

// Sampling limits repeated messages per level within each Tick. Levels
// missing from Rates are not sampled; Error and above never are.
type Sampling struct {
	Enabled bool
	Tick    time.Duration
	Rates   map[zapcore.Level]Rate
}

// Rate keeps the first Initial entries of a message per tick, then every
// Thereafter-th one. A zero Thereafter drops the rest.
type Rate struct {
	Initial    int
	Thereafter int
}

// Redaction names field keys whose values are never written and patterns
// scrubbed from messages and string values.
type Redaction struct {
	Keys     []string
	Patterns []string
}

// NewDefaultConfig returns JSON output on stderr with sampling and
// redaction on.
func NewDefaultConfig() *Config {
	return &Config{
		Level:   zapcore.InfoLevel,
		Format:  "json",
		Console: true,
		Caller:  true,
		Fields:  map[string]string{"service": "verticald"},
		Sampling: Sampling{
			Enabled: true,
			Tick:    time.Second,
			Rates: map[zapcore.Level]Rate{
				TraceLevel:         {Initial: 1},
				zapcore.DebugLevel: {Initial: 10},
				zapcore.InfoLevel:  {Initial: 100, Thereafter: 10},
				zapcore.WarnLevel:  {Initial: 100, Thereafter: 100},
			},
		},
		Redact: Redaction{
			Keys: []string{
				"api_key", "qdrant_api_key", "authorization", "password",
				"secret", "token", "credential", "private_key",
			},
			Patterns: []string{
				`(?i)bearer\s+\S+`,
				`(?i)api[_-]?key\s*[=:]\s*\S+`,
				`\bsk-[A-Za-z0-9_-]{8,}`,
			},
		},
	}
}

// FromObservability derives a logging config from the observability
// section. OTEL output follows tracing since both need a collector.
func FromObservability(obs config.ObservabilityConfig) (*Config, error) {
	cfg := NewDefaultConfig()

	lvl, err := ParseLevel(obs.LogLevel)
	if err != nil {
		return nil, err
	}
	cfg.Level = lvl
	if obs.LogFormat != "" {
		cfg.Format = obs.LogFormat
	}
	if obs.ServiceName != "" {
		cfg.Fields["service"] = obs.ServiceName
	}
	cfg.OTEL = obs.EnableTracing

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every problem in c at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Format != "json" && c.Format != "console" {
		errs = append(errs, fmt.Errorf("format %q is not json or console", c.Format))
	}
	if !c.Console && !c.OTEL {
		errs = append(errs, errors.New("no output enabled"))
	}
	if c.Sampling.Enabled {
		if c.Sampling.Tick <= 0 {
			errs = append(errs, errors.New("sampling tick must be positive"))
		}
		for lvl, r := range c.Sampling.Rates {
			if r.Initial < 0 || r.Thereafter < 0 {
				errs = append(errs, fmt.Errorf("sampling rate for %s is negative", lvl))
			}
		}
	}
	for k, v := range c.Fields {
		if k == "" || v == "" {
			errs = append(errs, fmt.Errorf("constant field %q needs a key and a value", k))
		}
	}
	if _, err := newRedactor(c.Redact); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
