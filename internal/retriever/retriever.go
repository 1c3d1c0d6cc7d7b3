// Package retriever searches the indexes a caller is authorized for, merges
// and ranks the hits, and renders them into a bounded context string.
package retriever

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/verticald/internal/corpus"
)

var tracer = otel.Tracer("verticald.retriever")

// Searcher is one vertical's index. *index.Index satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]corpus.ScoredChunk, error)
}

// Options configures a Retriever.
type Options struct {
	// MinSimilarity drops hits scoring below it. Zero disables the floor.
	MinSimilarity float64
	// MaxParallel bounds concurrent vertical searches. Zero means one
	// goroutine per authorized vertical.
	MaxParallel int
	Logger      *zap.Logger
}

// Retriever is safe for concurrent use.
type Retriever struct {
	indexes map[string]Searcher
	opts    Options
	logger  *zap.Logger
}

// New creates a Retriever over the given per-vertical indexes.
func New(indexes map[string]Searcher, opts Options) *Retriever {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	copied := make(map[string]Searcher, len(indexes))
	for name, s := range indexes {
		copied[name] = s
	}
	return &Retriever{indexes: copied, opts: opts, logger: logger}
}

// Retrieve searches every authorized vertical that has an index, keeps
// topKPerVertical hits from each, and returns the overallTopK best by
// descending score. Equal scores keep the order of the authorization set,
// then each index's own order.
//
// Unknown verticals are skipped and an empty set yields no results. A
// vertical whose search fails contributes nothing; only cancellation of ctx
// fails the whole call.
func (r *Retriever) Retrieve(ctx context.Context, query string, authorized []string, topKPerVertical, overallTopK int) (results []corpus.ScoredChunk, err error) {
	ctx, span := tracer.Start(ctx, "Retriever.Retrieve")
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if topKPerVertical <= 0 || overallTopK <= 0 {
		return nil, fmt.Errorf("%w: top-k values must be positive, got %d and %d", corpus.ErrConfiguration, topKPerVertical, overallTopK)
	}

	allowed := make(map[string]bool, len(authorized))
	var targets []string
	for _, v := range authorized {
		if allowed[v] {
			continue
		}
		allowed[v] = true
		if _, ok := r.indexes[v]; ok {
			targets = append(targets, v)
		}
	}
	span.SetAttributes(
		attribute.StringSlice("authorized", authorized),
		attribute.Int("searched", len(targets)),
	)
	if len(targets) == 0 {
		ResultsReturned.Observe(0)
		return []corpus.ScoredChunk{}, nil
	}

	perVertical := make([][]corpus.ScoredChunk, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	if r.opts.MaxParallel > 0 {
		g.SetLimit(r.opts.MaxParallel)
	}
	for i, vertical := range targets {
		g.Go(func() error {
			hits, err := r.indexes[vertical].Search(gctx, query, topKPerVertical)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				DegradedSearches.WithLabelValues(vertical).Inc()
				r.logger.Warn("vertical search failed, continuing without it",
					zap.String("vertical", vertical),
					zap.Error(err),
				)
				return nil
			}
			perVertical[i] = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", corpus.ErrBackendUnavailable, err)
	}

	var merged []corpus.ScoredChunk
	for _, hits := range perVertical {
		for _, h := range hits {
			if !allowed[h.Vertical] {
				AuthorizationDrops.WithLabelValues(h.Vertical).Inc()
				r.logger.Error("dropping chunk outside authorization set",
					zap.String("vertical", h.Vertical),
					zap.Int("page", h.PageNumber),
					zap.Error(corpus.ErrAuthorizationViolation),
				)
				continue
			}
			if r.opts.MinSimilarity != 0 && h.Score < r.opts.MinSimilarity {
				continue
			}
			merged = append(merged, h)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	if len(merged) > overallTopK {
		merged = merged[:overallTopK]
	}
	if merged == nil {
		merged = []corpus.ScoredChunk{}
	}

	ResultsReturned.Observe(float64(len(merged)))
	span.SetAttributes(attribute.Int("results_count", len(merged)))
	span.SetStatus(codes.Ok, "success")
	return merged, nil
}

// Verticals returns the names of the indexes the retriever can search.
func (r *Retriever) Verticals() []string {
	names := make([]string, 0, len(r.indexes))
	for name := range r.indexes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
