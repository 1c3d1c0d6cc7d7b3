package logging

import (
	"errors"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// otelScope names the instrumentation scope of bridged log records.
const otelScope = "github.com/fyrsmithlabs/verticald"

// newCore assembles the outputs cfg enables. Each output redacts on its own
// so the tee never writes past an output's level. Sampling wraps the tee.
func newCore(cfg *Config, provider log.LoggerProvider) (zapcore.Core, error) {
	r, err := newRedactor(cfg.Redact)
	if err != nil {
		return nil, err
	}

	var outputs []zapcore.Core
	if cfg.Console {
		w := cfg.Writer
		if w == nil {
			w = zapcore.Lock(os.Stderr)
		}
		outputs = append(outputs, r.wrap(zapcore.NewCore(newEncoder(cfg.Format), w, cfg.Level)))
	}
	if cfg.OTEL && provider != nil {
		bridge := otelzap.NewCore(otelScope, otelzap.WithLoggerProvider(provider))
		outputs = append(outputs, r.wrap(levelBand{Core: bridge, lo: cfg.Level, hi: zapcore.FatalLevel}))
	}

	var core zapcore.Core
	switch len(outputs) {
	case 0:
		return nil, errors.New("logging: no usable output (otel requested without a provider)")
	case 1:
		core = outputs[0]
	default:
		core = zapcore.NewTee(outputs...)
	}
	return sample(core, cfg.Sampling), nil
}

func newEncoder(format string) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "ts"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeLevel = encodeLevel
	if format == "console" {
		return zapcore.NewConsoleEncoder(ec)
	}
	return zapcore.NewJSONEncoder(ec)
}

// encodeLevel names TraceLevel "trace" instead of "Level(-2)".
func encodeLevel(lvl zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if lvl == TraceLevel {
		enc.AppendString("trace")
		return
	}
	zapcore.LowercaseLevelEncoder(lvl, enc)
}

// sample gives every level below Error its own sampler so a noisy level
// cannot starve another's budget.
func sample(core zapcore.Core, s Sampling) zapcore.Core {
	if !s.Enabled {
		return core
	}
	bands := []zapcore.Core{levelBand{Core: core, lo: zapcore.ErrorLevel, hi: zapcore.FatalLevel}}
	for lvl := TraceLevel; lvl < zapcore.ErrorLevel; lvl++ {
		var band zapcore.Core = levelBand{Core: core, lo: lvl, hi: lvl}
		if r, ok := s.Rates[lvl]; ok && r.Initial > 0 {
			band = zapcore.NewSamplerWithOptions(band, s.Tick, r.Initial, r.Thereafter)
		}
		bands = append(bands, band)
	}
	return zapcore.NewTee(bands...)
}

// levelBand admits entries with lo <= level <= hi.
type levelBand struct {
	zapcore.Core
	lo, hi zapcore.Level
}

func (b levelBand) Enabled(lvl zapcore.Level) bool {
	return lvl >= b.lo && lvl <= b.hi && b.Core.Enabled(lvl)
}

func (b levelBand) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if ent.Level < b.lo || ent.Level > b.hi {
		return ce
	}
	return b.Core.Check(ent, ce)
}

func (b levelBand) With(fields []zapcore.Field) zapcore.Core {
	return levelBand{Core: b.Core.With(fields), lo: b.lo, hi: b.hi}
}
