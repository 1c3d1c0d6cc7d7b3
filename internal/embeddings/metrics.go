package embeddings

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const meterName = "github.com/fyrsmithlabs/verticald/internal/embeddings"

// Operation labels.
const (
	opDocuments = "embed_documents"
	opQuery     = "embed_query"
)

// instruments records latency, batch size and failures for one provider and
// model. Instruments that fail to register are left nil and skipped.
type instruments struct {
	provider string
	model    string

	duration metric.Float64Histogram
	batch    metric.Int64Histogram
	failures metric.Int64Counter
}

func newInstruments(provider, model string, logger *zap.Logger) *instruments {
	return newInstrumentsFrom(otel.Meter(meterName), provider, model, logger)
}

func newInstrumentsFrom(meter metric.Meter, provider, model string, logger *zap.Logger) *instruments {
	if logger == nil {
		logger = zap.NewNop()
	}
	in := &instruments{provider: provider, model: model}

	var err error
	in.duration, err = meter.Float64Histogram("verticald.embedding.duration",
		metric.WithDescription("Time spent producing embeddings for one call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		logger.Warn("embedding duration histogram unavailable", zap.Error(err))
	}
	in.batch, err = meter.Int64Histogram("verticald.embedding.batch_size",
		metric.WithDescription("Texts per embedding call."),
		metric.WithUnit("{text}"),
		metric.WithExplicitBucketBoundaries(1, 4, 16, 64, 256, 1024),
	)
	if err != nil {
		logger.Warn("embedding batch histogram unavailable", zap.Error(err))
	}
	in.failures, err = meter.Int64Counter("verticald.embedding.failures",
		metric.WithDescription("Embedding calls that returned an error."),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		logger.Warn("embedding failure counter unavailable", zap.Error(err))
	}
	return in
}

// observe starts timing a call that embeds n texts. Call the returned func
// with the call's error when it finishes:
//
//	defer p.metrics.observe(ctx, opQuery, 1)(&err)
func (in *instruments) observe(ctx context.Context, op string, n int) func(*error) {
	start := time.Now()
	return func(errp *error) {
		set := metric.WithAttributeSet(attribute.NewSet(
			attribute.String("provider", in.provider),
			attribute.String("model", in.model),
			attribute.String("operation", op),
		))
		if in.duration != nil {
			in.duration.Record(ctx, time.Since(start).Seconds(), set)
		}
		if in.batch != nil && n > 0 {
			in.batch.Record(ctx, int64(n), set)
		}
		if in.failures != nil && errp != nil && *errp != nil {
			in.failures.Add(ctx, 1, set)
		}
	}
}
