package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/verticald/internal/events"
)

// Status is the overall health of the engine.
type Status string

// Health states.
const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Per-vertical availability.
const (
	Available   = "available"
	Unavailable = "unavailable"
)

// VerticalHealth is one vertical's state in a HealthReport.
type VerticalHealth struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
	Error  string `json:"error,omitempty"`
}

// HealthReport describes the backend, the embedder and every vertical.
type HealthReport struct {
	Status             Status                    `json:"status"`
	Backend            string                    `json:"backend"`
	BackendError       string                    `json:"backend_error,omitempty"`
	EmbeddingProvider  string                    `json:"embedding_provider"`
	EmbeddingDimension int                       `json:"embedding_dimension"`
	Verticals          map[string]VerticalHealth `json:"verticals"`
	CheckedAt          time.Time                 `json:"checked_at"`
}

// Health checks the backend and counts every vertical. The engine is
// unhealthy when the backend is unreachable and degraded when some vertical
// cannot be counted.
func (e *Engine) Health(ctx context.Context) HealthReport {
	ctx, span := tracer.Start(ctx, "Engine.Health")
	defer span.End()

	report := HealthReport{
		Status:             StatusHealthy,
		Backend:            e.store.Backend(),
		EmbeddingProvider:  e.opts.EmbeddingProvider,
		EmbeddingDimension: e.embedder.Dimension(),
		Verticals:          make(map[string]VerticalHealth),
		CheckedAt:          time.Now().UTC(),
	}

	if err := e.store.Health(ctx); err != nil {
		report.Status = StatusUnhealthy
		report.BackendError = err.Error()
		for _, name := range e.registry.Names() {
			report.Verticals[name] = VerticalHealth{Status: Unavailable, Error: "backend unreachable"}
		}
		e.logger.Error(ctx, "vector store health check failed", zap.Error(err))
		span.SetStatus(codes.Error, err.Error())
		return report
	}

	for _, name := range e.registry.Names() {
		ix, _ := e.registry.Get(name)
		n, err := ix.Count(ctx)
		if err != nil {
			report.Status = StatusDegraded
			report.Verticals[name] = VerticalHealth{Status: Unavailable, Error: err.Error()}
			continue
		}
		report.Verticals[name] = VerticalHealth{Status: Available, Count: n}
	}

	span.SetAttributes(attribute.String("status", string(report.Status)))
	return report
}

// Statistics describes one vertical's index.
type Statistics struct {
	Vertical   string `json:"vertical"`
	Collection string `json:"collection"`
	ChunkCount int    `json:"chunk_count"`
	Status     string `json:"status"`
}

// GetStatistics reports the number of chunks stored for vertical.
func (e *Engine) GetStatistics(ctx context.Context, vertical string) (*Statistics, error) {
	ix, err := e.index(vertical)
	if err != nil {
		return nil, err
	}
	n, err := ix.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting %s: %w", vertical, err)
	}
	return &Statistics{
		Vertical:   vertical,
		Collection: ix.Collection(),
		ChunkCount: n,
		Status:     Available,
	}, nil
}

// ResetVertical deletes every chunk of one vertical. Other verticals are
// untouched.
func (e *Engine) ResetVertical(ctx context.Context, vertical string) error {
	ctx, span := tracer.Start(ctx, "Engine.ResetVertical")
	defer span.End()
	span.SetAttributes(attribute.String("vertical", vertical))

	if err := e.reset(ctx, vertical); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	ev := events.New(events.TypeVerticalReset)
	ev.Verticals = []string{vertical}
	e.publish(ctx, ev)
	span.SetStatus(codes.Ok, "success")
	return nil
}

// ResetAll deletes every vertical's chunks. It attempts every vertical and
// returns the joined errors of those that failed.
func (e *Engine) ResetAll(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Engine.ResetAll")
	defer span.End()

	var errs []error
	var reset []string
	for _, name := range e.registry.Names() {
		if err := e.reset(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		reset = append(reset, name)
	}

	ev := events.New(events.TypeResetAll)
	ev.Verticals = reset
	e.publish(ctx, ev)

	if err := errors.Join(errs...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "success")
	return nil
}

func (e *Engine) reset(ctx context.Context, vertical string) error {
	ix, err := e.index(vertical)
	if err != nil {
		return err
	}
	if err := ix.DeleteAll(ctx); err != nil {
		Resets.WithLabelValues(vertical, "failed").Inc()
		e.logger.Error(ctx, "vertical reset failed", zap.String("vertical", vertical), zap.Error(err))
		return err
	}
	Resets.WithLabelValues(vertical, "reset").Inc()
	e.logger.Info(ctx, "vertical reset", zap.String("vertical", vertical))
	return nil
}
