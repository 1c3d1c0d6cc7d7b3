package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const backendChromem = "chromem"

// chromemTracer for OpenTelemetry instrumentation.
var chromemTracer = otel.Tracer("verticald.vectorstore.chromem")

// errPrecomputedOnly is returned if chromem ever tries to embed text itself.
var errPrecomputedOnly = errors.New("chromem store only accepts precomputed embeddings")

// ChromemConfig holds configuration for chromem-go embedded vector database.
type ChromemConfig struct {
	// Path is the directory for persistent storage.
	// Default: "~/.local/share/verticald/vectorstore"
	Path string

	// InMemory disables persistence. Path is ignored.
	InMemory bool

	// Compress enables gzip compression for stored data.
	Compress bool

	// VectorSize is the expected embedding dimension.
	// Must match the embedder's output dimension.
	VectorSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.Path == "" && !c.InMemory {
		c.Path = "~/.local/share/verticald/vectorstore"
	}
}

// Validate validates the configuration.
func (c *ChromemConfig) Validate() error {
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}
	return nil
}

// ChromemStore implements Store using chromem-go.
//
// chromem-go keeps every collection in memory and, unless InMemory is set,
// mirrors writes to gob files under Path.
type ChromemStore struct {
	db     *chromem.DB
	config ChromemConfig
	logger *zap.Logger
}

// NewChromemStore creates a new ChromemStore with the given configuration.
func NewChromemStore(config ChromemConfig, logger *zap.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	var db *chromem.DB
	if config.InMemory {
		db = chromem.NewDB()
	} else {
		expandedPath, err := expandPath(config.Path)
		if err != nil {
			return nil, fmt.Errorf("expanding path: %w", err)
		}
		if err := os.MkdirAll(expandedPath, 0o700); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", expandedPath, err)
		}
		db, err = chromem.NewPersistentDB(expandedPath, config.Compress)
		if err != nil {
			return nil, fmt.Errorf("creating chromem DB: %w", err)
		}
		config.Path = expandedPath
	}

	logger.Info("chromem store initialized",
		zap.String("path", config.Path),
		zap.Bool("in_memory", config.InMemory),
		zap.Bool("compress", config.Compress),
		zap.Int("vector_size", config.VectorSize),
	)

	return &ChromemStore{db: db, config: config, logger: logger}, nil
}

// expandPath expands ~ to home directory.
func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, errPrecomputedOnly
}

// Backend returns "chromem".
func (s *ChromemStore) Backend() string { return backendChromem }

// EnsureCollection creates the collection if it does not exist.
func (s *ChromemStore) EnsureCollection(ctx context.Context, collection string, dimension int) error {
	if err := ValidateCollectionName(collection); err != nil {
		return err
	}
	if dimension != s.config.VectorSize {
		return fmt.Errorf("%w: collection %s wants %d, store holds %d", ErrDimensionMismatch, collection, dimension, s.config.VectorSize)
	}
	if _, err := s.db.GetOrCreateCollection(collection, nil, noEmbedding); err != nil {
		return fmt.Errorf("getting/creating collection %s: %w", collection, err)
	}
	return nil
}

// Upsert inserts or replaces documents.
func (s *ChromemStore) Upsert(ctx context.Context, collection string, docs []Document) (err error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Upsert")
	defer span.End()
	defer track(backendChromem, "upsert")(&err)

	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("document_count", len(docs)),
	)

	if err = ValidateCollectionName(collection); err != nil {
		return err
	}
	if err = validateDocuments(docs, s.config.VectorSize); err != nil {
		return err
	}

	coll, err := s.db.GetOrCreateCollection(collection, nil, noEmbedding)
	if err != nil {
		err = fmt.Errorf("getting/creating collection %s: %w", collection, err)
		return err
	}

	chromemDocs := make([]chromem.Document, len(docs))
	for i, d := range docs {
		chromemDocs[i] = chromem.Document{
			ID:        d.ID,
			Content:   d.Content,
			Metadata:  copyMetadata(d.Metadata),
			Embedding: append([]float32(nil), d.Embedding...),
		}
	}

	if err = coll.AddDocuments(ctx, chromemDocs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		err = fmt.Errorf("adding documents to %s: %w", collection, err)
		return err
	}

	DocumentsWritten.WithLabelValues(backendChromem).Add(float64(len(docs)))
	span.SetStatus(codes.Ok, "success")
	s.logger.Debug("upserted documents",
		zap.String("collection", collection),
		zap.Int("count", len(docs)),
	)
	return nil
}

// Query performs similarity search against a collection.
func (s *ChromemStore) Query(ctx context.Context, collection string, vector []float32, k int, where map[string]string) (results []SearchResult, err error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Query")
	defer span.End()
	defer track(backendChromem, "query")(&err)

	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("k", k),
	)

	if err = ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	if k <= 0 {
		err = fmt.Errorf("%w: k must be positive, got %d", ErrInvalidConfig, k)
		return nil, err
	}
	if len(vector) != s.config.VectorSize {
		err = fmt.Errorf("%w: query has %d, want %d", ErrDimensionMismatch, len(vector), s.config.VectorSize)
		return nil, err
	}

	coll := s.db.GetCollection(collection, noEmbedding)
	if coll == nil {
		return []SearchResult{}, nil
	}

	// chromem requires nResults <= doc count
	docCount := coll.Count()
	if docCount == 0 {
		return []SearchResult{}, nil
	}
	if k > docCount {
		k = docCount
	}

	res, err := coll.QueryEmbedding(ctx, vector, k, where, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		err = fmt.Errorf("querying collection %s: %w", collection, err)
		return nil, err
	}

	results = make([]SearchResult, len(res))
	for i, r := range res {
		results[i] = SearchResult{
			ID:       r.ID,
			Content:  r.Content,
			Score:    float64(r.Similarity),
			Metadata: copyMetadata(r.Metadata),
		}
	}

	span.SetAttributes(attribute.Int("results_count", len(results)))
	span.SetStatus(codes.Ok, "success")
	return results, nil
}

// Get returns documents by ID, skipping unknown IDs.
func (s *ChromemStore) Get(ctx context.Context, collection string, ids []string) (docs []Document, err error) {
	defer track(backendChromem, "get")(&err)

	if err = ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	coll := s.db.GetCollection(collection, noEmbedding)
	if coll == nil || len(ids) == 0 {
		return nil, nil
	}

	for _, id := range ids {
		d, getErr := coll.GetByID(ctx, id)
		if getErr != nil {
			// chromem only fails GetByID for unknown IDs
			continue
		}
		docs = append(docs, Document{
			ID:        d.ID,
			Content:   d.Content,
			Metadata:  copyMetadata(d.Metadata),
			Embedding: append([]float32(nil), d.Embedding...),
		})
	}
	return docs, nil
}

// Delete removes documents by ID.
func (s *ChromemStore) Delete(ctx context.Context, collection string, ids []string) (err error) {
	defer track(backendChromem, "delete")(&err)

	if len(ids) == 0 {
		return nil
	}
	if err = ValidateCollectionName(collection); err != nil {
		return err
	}
	coll := s.db.GetCollection(collection, noEmbedding)
	if coll == nil {
		return nil
	}
	// Only IDs that exist, so persisted stores never try to remove absent files.
	present := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, getErr := coll.GetByID(ctx, id); getErr == nil {
			present = append(present, id)
		}
	}
	if len(present) == 0 {
		return nil
	}
	if err = coll.Delete(ctx, nil, nil, present...); err != nil {
		err = fmt.Errorf("deleting from %s: %w", collection, err)
		return err
	}
	return nil
}

// Count returns the number of documents in the collection.
func (s *ChromemStore) Count(_ context.Context, collection string) (int, error) {
	if err := ValidateCollectionName(collection); err != nil {
		return 0, err
	}
	coll := s.db.GetCollection(collection, noEmbedding)
	if coll == nil {
		return 0, nil
	}
	return coll.Count(), nil
}

// DeleteCollection drops a collection and its persisted files.
func (s *ChromemStore) DeleteCollection(_ context.Context, collection string) error {
	if err := ValidateCollectionName(collection); err != nil {
		return err
	}
	if s.db.GetCollection(collection, noEmbedding) == nil {
		return nil
	}
	if err := s.db.DeleteCollection(collection); err != nil {
		return fmt.Errorf("deleting collection %s: %w", collection, err)
	}
	s.logger.Info("deleted collection", zap.String("collection", collection))
	return nil
}

// ListCollections returns all collection names, sorted.
func (s *ChromemStore) ListCollections(_ context.Context) ([]string, error) {
	colls := s.db.ListCollections()
	names := make([]string, 0, len(colls))
	for name := range colls {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Health always succeeds for the embedded store unless ctx is done.
func (s *ChromemStore) Health(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op; chromem persists on every write.
func (s *ChromemStore) Close() error {
	s.logger.Info("chromem store closed")
	return nil
}

// Ensure ChromemStore implements Store interface.
var _ Store = (*ChromemStore)(nil)
