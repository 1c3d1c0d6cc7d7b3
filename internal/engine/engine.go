// Package engine is the single entry point to verticald's retrieval core.
//
// It owns the ingest path (document → sections → chunks → per-vertical
// indexes) and the query path (query → authorized indexes → ranked chunks →
// bounded context string), plus health, statistics and reset operations.
// Every collaborator is constructed by the caller and injected; the engine
// holds no global state.
package engine

import (
	"fmt"

	"go.opentelemetry.io/otel"

	"github.com/fyrsmithlabs/verticald/internal/chunker"
	"github.com/fyrsmithlabs/verticald/internal/classifier"
	"github.com/fyrsmithlabs/verticald/internal/config"
	"github.com/fyrsmithlabs/verticald/internal/corpus"
	"github.com/fyrsmithlabs/verticald/internal/events"
	"github.com/fyrsmithlabs/verticald/internal/index"
	"github.com/fyrsmithlabs/verticald/internal/logging"
	"github.com/fyrsmithlabs/verticald/internal/retriever"
	"github.com/fyrsmithlabs/verticald/internal/segmenter"
	"github.com/fyrsmithlabs/verticald/internal/vectorstore"
)

var tracer = otel.Tracer("verticald.engine")

// Options tunes the query path and names the collaborators the engine does
// not build itself.
type Options struct {
	TopKPerVertical int
	OverallTopK     int
	MaxContextChars int
	MinSimilarity   float64

	// EmbeddingProvider is reported by Health.
	EmbeddingProvider string

	// Publisher receives ingest and reset events. Nil disables events.
	Publisher events.Publisher
	Logger    *logging.Logger
}

// Engine is safe for concurrent use.
type Engine struct {
	segmenter *segmenter.Segmenter
	chunker   *chunker.Chunker
	registry  *index.Registry
	retriever *retriever.Retriever
	store     vectorstore.Store
	embedder  index.Embedder
	publisher events.Publisher
	logger    *logging.Logger
	opts      Options
}

// New assembles an engine from its collaborators.
func New(seg *segmenter.Segmenter, ch *chunker.Chunker, registry *index.Registry, store vectorstore.Store, embedder index.Embedder, opts Options) (*Engine, error) {
	if seg == nil || ch == nil || registry == nil || store == nil || embedder == nil {
		return nil, fmt.Errorf("%w: segmenter, chunker, registry, store and embedder are required", corpus.ErrConfiguration)
	}
	if opts.TopKPerVertical <= 0 || opts.OverallTopK <= 0 {
		return nil, fmt.Errorf("%w: top-k values must be positive", corpus.ErrConfiguration)
	}
	if opts.MaxContextChars < retriever.MinContextChars {
		return nil, fmt.Errorf("%w: max context chars must be at least %d", corpus.ErrConfiguration, retriever.MinContextChars)
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Publisher == nil {
		opts.Publisher = events.Nop{}
	}

	searchers := make(map[string]retriever.Searcher)
	for _, name := range registry.Names() {
		ix, _ := registry.Get(name)
		searchers[name] = ix
	}

	return &Engine{
		segmenter: seg,
		chunker:   ch,
		registry:  registry,
		retriever: retriever.New(searchers, retriever.Options{
			MinSimilarity: opts.MinSimilarity,
			Logger:        opts.Logger.Underlying().Named("retriever"),
		}),
		store:     store,
		embedder:  embedder,
		publisher: opts.Publisher,
		logger:    opts.Logger,
		opts:      opts,
	}, nil
}

// NewFromConfig builds the classifier, segmenter, chunker and index registry
// from cfg and assembles an engine over store and embedder.
func NewFromConfig(cfg *config.Config, store vectorstore.Store, embedder index.Embedder, publisher events.Publisher, logger *logging.Logger) (*Engine, error) {
	if logger == nil {
		logger = logging.Nop()
	}

	cls, err := classifier.New(cfg.Verticals, cfg.Segmenter.Divisor)
	if err != nil {
		return nil, fmt.Errorf("creating classifier: %w", err)
	}
	seg, err := segmenter.New(cls, segmenter.Config{
		Delimiter:        cfg.Segmenter.Delimiter,
		HeaderPattern:    cfg.Segmenter.HeaderPattern,
		Threshold:        cfg.Segmenter.Threshold,
		SingleAssignment: cfg.Segmenter.SingleAssignment,
	})
	if err != nil {
		return nil, fmt.Errorf("creating segmenter: %w", err)
	}
	ch, err := chunker.New(chunker.Config{Size: cfg.Chunking.Size, Overlap: cfg.Chunking.Overlap})
	if err != nil {
		return nil, fmt.Errorf("creating chunker: %w", err)
	}
	registry, err := index.NewRegistry(cfg.Verticals.Names(), store, embedder, index.Options{
		CollectionPrefix: cfg.VectorStore.CollectionPrefix,
		Logger:           logger.Underlying().Named("index"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating index registry: %w", err)
	}

	return New(seg, ch, registry, store, embedder, Options{
		TopKPerVertical:   cfg.Retrieval.TopKPerVertical,
		OverallTopK:       cfg.Retrieval.OverallTopK,
		MaxContextChars:   cfg.Retrieval.MaxContextChars,
		MinSimilarity:     cfg.Retrieval.MinSimilarity,
		EmbeddingProvider: cfg.Embeddings.Provider,
		Publisher:         publisher,
		Logger:            logger,
	})
}

// Verticals returns the configured vertical names in sorted order.
func (e *Engine) Verticals() []string {
	return e.retriever.Verticals()
}

func (e *Engine) index(vertical string) (*index.Index, error) {
	ix, ok := e.registry.Get(vertical)
	if !ok {
		return nil, fmt.Errorf("%w: unknown vertical %q", corpus.ErrConfiguration, vertical)
	}
	return ix, nil
}
