package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
)

// Telemetry states reported by Status.
const (
	StateDisabled  = "disabled"
	StateExporting = "exporting"
	StateDegraded  = "degraded"
	StateStopped   = "stopped"
)

// Telemetry holds the exporting providers installed for one process.
//
// A provider that cannot be built does not fail New. The instance records
// the error, reports itself degraded and leaves that signal on the global
// no-op.
type Telemetry struct {
	config *Config

	mu        sync.Mutex
	shutdowns []func(context.Context) error
	initErr   error
	stopped   bool
}

// New validates cfg and, when enabled, installs OTLP trace and metric
// providers as the otel globals.
func New(ctx context.Context, cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}

	t := &Telemetry{config: cfg}
	if !cfg.Enabled {
		return t, nil
	}

	res := newResource(cfg)

	tp, err := newTracerProvider(ctx, cfg, res)
	if err != nil {
		t.initErr = errors.Join(t.initErr, fmt.Errorf("tracing: %w", err))
	} else {
		otel.SetTracerProvider(tp)
		t.shutdowns = append(t.shutdowns, tp.Shutdown)
	}

	mp, err := newMeterProvider(ctx, cfg, res)
	switch {
	case err != nil:
		t.initErr = errors.Join(t.initErr, fmt.Errorf("metrics: %w", err))
	case mp != nil:
		otel.SetMeterProvider(mp)
		t.shutdowns = append(t.shutdowns, mp.Shutdown)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return t, nil
}

// Enabled reports whether export was requested.
func (t *Telemetry) Enabled() bool {
	return t != nil && t.config != nil && t.config.Enabled
}

// LoggerProvider returns the provider the zap bridge writes to, or nil when
// telemetry is disabled.
func (t *Telemetry) LoggerProvider() log.LoggerProvider {
	if !t.Enabled() {
		return nil
	}
	return global.GetLoggerProvider()
}

// Status returns one of the State constants and the initialization error,
// if any.
func (t *Telemetry) Status() (string, error) {
	if !t.Enabled() {
		return StateDisabled, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case t.stopped:
		return StateStopped, t.initErr
	case t.initErr != nil:
		return StateDegraded, t.initErr
	default:
		return StateExporting, nil
	}
}

// Shutdown flushes and stops every provider once. Without a deadline on ctx
// the configured shutdown timeout applies.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	shutdowns := t.shutdowns
	t.shutdowns = nil
	t.stopped = true
	t.mu.Unlock()

	if len(shutdowns) == 0 {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.ShutdownTimeout)
		defer cancel()
	}

	var errs []error
	for _, fn := range shutdowns {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("telemetry shutdown: %w", err)
	}
	return nil
}
