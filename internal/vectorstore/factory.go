package vectorstore

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Config selects and configures a backend.
type Config struct {
	// Provider is "chromem" or "qdrant".
	Provider string
	Chromem  ChromemConfig
	Qdrant   QdrantConfig
}

// New creates the Store named by cfg.Provider. dimension is the embedding
// length every collection will hold.
func New(ctx context.Context, cfg Config, dimension int, logger *zap.Logger) (Store, error) {
	switch cfg.Provider {
	case backendChromem:
		cfg.Chromem.VectorSize = dimension
		return NewChromemStore(cfg.Chromem, logger)
	case backendQdrant:
		cfg.Qdrant.VectorSize = dimension
		return NewQdrantStore(ctx, cfg.Qdrant, logger)
	default:
		return nil, fmt.Errorf("%w: unknown vectorstore provider %q", ErrInvalidConfig, cfg.Provider)
	}
}
