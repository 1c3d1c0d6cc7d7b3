package engine

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/verticald/internal/corpus"
	"github.com/fyrsmithlabs/verticald/internal/logging"
	"github.com/fyrsmithlabs/verticald/internal/retriever"
)

// Query retrieves the best chunks from the authorized verticals and renders
// them as a context string of at most MaxContextChars characters. When no
// chunk qualifies the result is the retriever.NoContext sentinel, checked
// with retriever.IsNoContext.
func (e *Engine) Query(ctx context.Context, query string, authorized []string) (string, error) {
	ctx = logging.WithAuthorized(ctx, authorized)
	ctx, span := tracer.Start(ctx, "Engine.Query")
	defer span.End()

	chunks, err := e.Retrieve(ctx, query, authorized)
	if err != nil {
		Queries.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	rendered := retriever.RenderContext(chunks, e.opts.MaxContextChars, authorized)
	result := "context"
	if retriever.IsNoContext(rendered) {
		result = "no_context"
	}
	Queries.WithLabelValues(result).Inc()

	e.logger.Debug(ctx, "query answered",
		zap.Int("chunks", len(chunks)),
		zap.Int("context_chars", len(rendered)),
		zap.String("result", result),
	)
	span.SetAttributes(attribute.String("result", result))
	span.SetStatus(codes.Ok, "success")
	return rendered, nil
}

// Retrieve returns the ranked chunks a Query would render.
func (e *Engine) Retrieve(ctx context.Context, query string, authorized []string) ([]corpus.ScoredChunk, error) {
	if logging.AuthorizedFromContext(ctx) == nil {
		ctx = logging.WithAuthorized(ctx, authorized)
	}
	return e.retriever.Retrieve(ctx, query, authorized, e.opts.TopKPerVertical, e.opts.OverallTopK)
}
