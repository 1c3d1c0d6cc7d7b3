package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Sentinel errors for vector store operations.
var (
	// ErrCollectionNotFound is returned when a collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyDocuments indicates empty or nil documents.
	ErrEmptyDocuments = errors.New("empty or nil documents")

	// ErrConnectionFailed indicates the backend could not be reached.
	ErrConnectionFailed = errors.New("failed to connect to vector store")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrDimensionMismatch indicates a vector of the wrong length.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Document is a stored entry: text, string metadata and its vector.
type Document struct {
	ID        string
	Content   string
	Metadata  map[string]string
	Embedding []float32
}

// SearchResult is a single nearest-neighbour hit.
type SearchResult struct {
	ID       string
	Content  string
	Score    float64
	Metadata map[string]string
}

// Store is the interface for vector storage operations.
//
// Implementations must be safe for concurrent use. Upsert replaces entries
// with the same ID. Query returns at most k results ordered by descending
// score and only entries whose metadata equals every key in where.
type Store interface {
	// EnsureCollection creates the collection if it does not exist.
	EnsureCollection(ctx context.Context, collection string, dimension int) error

	// Upsert inserts or replaces documents. Every document must carry an embedding.
	Upsert(ctx context.Context, collection string, docs []Document) error

	// Query returns the k nearest documents to vector.
	Query(ctx context.Context, collection string, vector []float32, k int, where map[string]string) ([]SearchResult, error)

	// Get returns the documents with the given IDs. Missing IDs are skipped.
	Get(ctx context.Context, collection string, ids []string) ([]Document, error)

	// Delete removes documents by ID. Missing IDs are ignored.
	Delete(ctx context.Context, collection string, ids []string) error

	// Count returns the number of documents in the collection.
	// A missing collection counts as zero.
	Count(ctx context.Context, collection string) (int, error)

	// DeleteCollection drops the collection. A missing collection is not an error.
	DeleteCollection(ctx context.Context, collection string) error

	// ListCollections returns all collection names.
	ListCollections(ctx context.Context) ([]string, error)

	// Health reports whether the backend is reachable.
	Health(ctx context.Context) error

	// Backend names the implementation, e.g. "chromem".
	Backend() string

	// Close releases resources.
	Close() error
}

// collectionNamePattern validates collection names.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateCollectionName validates a collection name against security rules.
// Rejects: uppercase, special chars, path traversal, spaces.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match pattern ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// CollectionName returns the collection that holds a vertical's chunks.
func CollectionName(prefix, vertical string) (string, error) {
	name := vertical
	if prefix != "" {
		name = prefix + "_" + vertical
	}
	if err := ValidateCollectionName(name); err != nil {
		return "", err
	}
	return name, nil
}

func validateDocuments(docs []Document, dimension int) error {
	if len(docs) == 0 {
		return ErrEmptyDocuments
	}
	for _, d := range docs {
		if d.ID == "" {
			return fmt.Errorf("%w: document id required", ErrInvalidConfig)
		}
		if len(d.Embedding) == 0 {
			return fmt.Errorf("%w: document %s has no embedding", ErrDimensionMismatch, d.ID)
		}
		if dimension > 0 && len(d.Embedding) != dimension {
			return fmt.Errorf("%w: document %s has %d, want %d", ErrDimensionMismatch, d.ID, len(d.Embedding), dimension)
		}
	}
	return nil
}

func copyMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
