package index

import (
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/verticald/internal/corpus"
	"github.com/fyrsmithlabs/verticald/internal/vectorstore"
)

// DefaultCollectionPrefix prefixes every vertical's collection name.
const DefaultCollectionPrefix = "verticald"

// Options configures a Registry.
type Options struct {
	// CollectionPrefix defaults to DefaultCollectionPrefix.
	CollectionPrefix string
	Logger           *zap.Logger
}

// Registry holds the index of every configured vertical.
type Registry struct {
	indexes map[string]*Index
	names   []string
}

// NewRegistry builds one Index per vertical name. Indexes share the store,
// the embedder and the sequence counter; each has its own collection and lock.
func NewRegistry(verticals []string, store vectorstore.Store, embedder Embedder, opts Options) (*Registry, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: vector store is required", corpus.ErrConfiguration)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", corpus.ErrConfiguration)
	}
	if embedder.Dimension() <= 0 {
		return nil, fmt.Errorf("%w: embedder reports dimension %d", corpus.ErrConfiguration, embedder.Dimension())
	}
	if opts.CollectionPrefix == "" {
		opts.CollectionPrefix = DefaultCollectionPrefix
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// Seeding from the clock keeps sequence numbers increasing across restarts
	// against a persistent store.
	seq := new(atomic.Int64)
	seq.Store(time.Now().UnixNano())

	r := &Registry{indexes: make(map[string]*Index, len(verticals))}
	for _, name := range verticals {
		if err := corpus.ValidateVerticalName(name); err != nil {
			return nil, err
		}
		if _, dup := r.indexes[name]; dup {
			return nil, fmt.Errorf("%w: duplicate vertical %q", corpus.ErrConfiguration, name)
		}
		collection, err := vectorstore.CollectionName(opts.CollectionPrefix, name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", corpus.ErrConfiguration, err)
		}
		r.indexes[name] = &Index{
			vertical:   name,
			collection: collection,
			store:      store,
			embedder:   embedder,
			logger:     logger,
			seq:        seq,
		}
		r.names = append(r.names, name)
	}
	return r, nil
}

// Get returns the index for a vertical.
func (r *Registry) Get(vertical string) (*Index, bool) {
	ix, ok := r.indexes[vertical]
	return ix, ok
}

// Names returns vertical names in construction order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}
