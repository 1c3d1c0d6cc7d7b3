package index

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/verticald/internal/corpus"
	"github.com/fyrsmithlabs/verticald/internal/vectorstore"
)

var tracer = otel.Tracer("verticald.index")

// Embedder is the part of embeddings.Provider an index needs.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Index is the nearest-neighbour index of a single vertical.
type Index struct {
	vertical   string
	collection string
	store      vectorstore.Store
	embedder   Embedder
	logger     *zap.Logger
	seq        *atomic.Int64

	mu sync.RWMutex
}

// Vertical returns the vertical this index serves.
func (ix *Index) Vertical() string { return ix.vertical }

// Collection returns the backend collection name.
func (ix *Index) Collection() string { return ix.collection }

// Upsert embeds every chunk and writes them all, or writes nothing.
//
// Chunks must belong to this index's vertical; an empty Vertical is filled
// in. Entries that already exist keep their original insertion order.
func (ix *Index) Upsert(ctx context.Context, chunks []corpus.Chunk) (err error) {
	ctx, span := tracer.Start(ctx, "Index.Upsert")
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	span.SetAttributes(
		attribute.String("vertical", ix.vertical),
		attribute.Int("chunk_count", len(chunks)),
	)

	if len(chunks) == 0 {
		return nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	prepared := make([]corpus.Chunk, len(chunks))
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		if c.Vertical == "" {
			c.Vertical = ix.vertical
		}
		if c.Vertical != ix.vertical {
			return fmt.Errorf("%w: chunk for %q written to %q index", corpus.ErrConfiguration, c.Vertical, ix.vertical)
		}
		if err := c.Validate(); err != nil {
			return err
		}
		prepared[i] = c
		texts[i] = c.Content
	}

	vectors, err := ix.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("%w: %v", corpus.ErrEmbeddingFailure, err)
	}
	if len(vectors) != len(prepared) {
		return fmt.Errorf("%w: got %d vectors for %d chunks", corpus.ErrEmbeddingFailure, len(vectors), len(prepared))
	}
	dim := ix.embedder.Dimension()
	for i, v := range vectors {
		if !validVector(v, dim) {
			return fmt.Errorf("%w: vector %d is malformed (len %d, want %d)", corpus.ErrEmbeddingFailure, i, len(v), dim)
		}
	}

	// Later chunks with the same position replace earlier ones in the batch.
	order := make([]string, 0, len(prepared))
	byID := make(map[string]int, len(prepared))
	for i, c := range prepared {
		id := EntryID(ix.vertical, c.DocumentID(), c.PageNumber, c.ChunkIndex())
		if _, seen := byID[id]; !seen {
			order = append(order, id)
		}
		byID[id] = i
	}
	if collapsed := len(prepared) - len(order); collapsed > 0 {
		ix.logger.Warn("chunks share a position; later ones replace earlier ones",
			zap.String("vertical", ix.vertical),
			zap.Int("chunks", len(prepared)),
			zap.Int("collapsed", collapsed),
		)
	}

	previous, err := ix.store.Get(ctx, ix.collection, order)
	if err != nil {
		return fmt.Errorf("%w: reading existing entries: %v", corpus.ErrBackendUnavailable, err)
	}
	existing := make(map[string]vectorstore.Document, len(previous))
	for _, d := range previous {
		existing[d.ID] = d
	}

	docs := make([]vectorstore.Document, 0, len(order))
	for _, id := range order {
		i := byID[id]
		var seq int64
		if old, ok := existing[id]; ok {
			seq = seqOf(old.Metadata)
		} else {
			seq = ix.seq.Add(1)
		}
		docs = append(docs, toDocument(id, prepared[i], vectors[i], seq))
	}

	if err := ix.store.Upsert(ctx, ix.collection, docs); err != nil {
		ix.rollback(order, previous)
		return fmt.Errorf("%w: %v", corpus.ErrBackendUnavailable, err)
	}

	ix.logger.Debug("upserted chunks",
		zap.String("vertical", ix.vertical),
		zap.Int("chunks", len(docs)),
		zap.Int("replaced", len(previous)),
	)
	span.SetStatus(codes.Ok, "success")
	return nil
}

// rollback restores the collection to its state before a failed upsert.
// It runs on a fresh context so a cancelled caller does not leave the
// vertical half-written.
func (ix *Index) rollback(ids []string, previous []vectorstore.Document) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	restored := make(map[string]bool, len(previous))
	for _, d := range previous {
		restored[d.ID] = true
	}
	var fresh []string
	for _, id := range ids {
		if !restored[id] {
			fresh = append(fresh, id)
		}
	}

	var errs []error
	if err := ix.store.Delete(ctx, ix.collection, fresh); err != nil {
		errs = append(errs, err)
	}
	if len(previous) > 0 {
		if err := ix.store.Upsert(ctx, ix.collection, previous); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		ix.logger.Error("rollback after failed upsert did not complete",
			zap.String("vertical", ix.vertical),
			zap.Error(err),
		)
	}
}

// Search returns the topK chunks most similar to query, by descending cosine
// similarity with ties broken by insertion order.
func (ix *Index) Search(ctx context.Context, query string, topK int) (results []corpus.ScoredChunk, err error) {
	ctx, span := tracer.Start(ctx, "Index.Search")
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	span.SetAttributes(
		attribute.String("vertical", ix.vertical),
		attribute.Int("top_k", topK),
	)

	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", corpus.ErrConfiguration, topK)
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	count, err := ix.store.Count(ctx, ix.collection)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", corpus.ErrBackendUnavailable, err)
	}
	if count == 0 {
		return []corpus.ScoredChunk{}, nil
	}

	vec, err := ix.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", corpus.ErrEmbeddingFailure, err)
	}
	if !validVector(vec, ix.embedder.Dimension()) {
		return nil, fmt.Errorf("%w: query vector is malformed", corpus.ErrEmbeddingFailure)
	}

	where := map[string]string{MetaVertical: ix.vertical}

	// One extra hit shows whether a tie straddles the cut; if so the whole
	// tied run has to be fetched to order it by insertion.
	n := min(count, topK+1)
	hits, err := ix.store.Query(ctx, ix.collection, vec, n, where)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", corpus.ErrBackendUnavailable, err)
	}
	if len(hits) > topK && n < count && hits[topK].Score == hits[topK-1].Score {
		hits, err = ix.store.Query(ctx, ix.collection, vec, count, where)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", corpus.ErrBackendUnavailable, err)
		}
	}

	ranked := make([]scored, len(hits))
	for i, h := range hits {
		ranked[i] = scored{
			chunk: corpus.ScoredChunk{Chunk: fromMetadata(h.Content, h.Metadata), Score: h.Score},
			seq:   seqOf(h.Metadata),
		}
	}
	rank(ranked)
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	results = make([]corpus.ScoredChunk, len(ranked))
	for i, r := range ranked {
		results[i] = r.chunk
	}
	span.SetAttributes(attribute.Int("results_count", len(results)))
	span.SetStatus(codes.Ok, "success")
	return results, nil
}

// Count returns the number of stored entries.
func (ix *Index) Count(ctx context.Context) (int, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	n, err := ix.store.Count(ctx, ix.collection)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", corpus.ErrBackendUnavailable, err)
	}
	return n, nil
}

// DeleteAll removes every entry of the vertical.
func (ix *Index) DeleteAll(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Index.DeleteAll")
	defer span.End()
	span.SetAttributes(attribute.String("vertical", ix.vertical))

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := ix.store.DeleteCollection(ctx, ix.collection); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: %v", corpus.ErrBackendUnavailable, err)
	}
	ix.logger.Info("deleted all entries", zap.String("vertical", ix.vertical))
	span.SetStatus(codes.Ok, "success")
	return nil
}
