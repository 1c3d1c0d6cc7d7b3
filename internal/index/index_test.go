package index

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fyrsmithlabs/verticald/internal/corpus"
	"github.com/fyrsmithlabs/verticald/internal/embeddings"
	"github.com/fyrsmithlabs/verticald/internal/vectorstore"
)

const testDim = 64

func newTestStore(t *testing.T) *vectorstore.ChromemStore {
	t.Helper()
	s, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{InMemory: true, VectorSize: testDim}, nil)
	require.NoError(t, err)
	return s
}

func newTestEmbedder(t *testing.T) *embeddings.HashProvider {
	t.Helper()
	e, err := embeddings.NewHashProvider(testDim)
	require.NoError(t, err)
	return e
}

func newTestRegistry(t *testing.T, store vectorstore.Store, embedder Embedder, verticals ...string) *Registry {
	t.Helper()
	r, err := NewRegistry(verticals, store, embedder, Options{})
	require.NoError(t, err)
	return r
}

func chunk(vertical, content string, page, idx int) corpus.Chunk {
	return corpus.Chunk{
		Content:    content,
		PageNumber: page,
		Span:       corpus.Span{Start: 0, End: 3},
		Vertical:   vertical,
		Confidence: 0.5,
		Extra: map[string]any{
			corpus.ExtraWordCount:  3,
			corpus.ExtraChunkIndex: idx,
		},
	}
}

// failingStore fails writes on demand.
type failingStore struct {
	vectorstore.Store
	mu         sync.Mutex
	failUpsert bool
	failQuery  bool
}

func (f *failingStore) Upsert(ctx context.Context, collection string, docs []vectorstore.Document) error {
	f.mu.Lock()
	fail := f.failUpsert
	f.failUpsert = false
	f.mu.Unlock()
	if fail {
		return errors.New("write refused")
	}
	return f.Store.Upsert(ctx, collection, docs)
}

func (f *failingStore) Query(ctx context.Context, collection string, vector []float32, k int, where map[string]string) ([]vectorstore.SearchResult, error) {
	if f.failQuery {
		return nil, errors.New("query refused")
	}
	return f.Store.Query(ctx, collection, vector, k, where)
}

// brokenEmbedder returns vectors of the wrong length.
type brokenEmbedder struct{ *embeddings.HashProvider }

func (b brokenEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1}
	}
	return out, nil
}

func TestIndex_UpsertAndSearch(t *testing.T) {
	r := newTestRegistry(t, newTestStore(t), newTestEmbedder(t), "retail", "jio")
	ix, ok := r.Get("retail")
	require.True(t, ok)
	ctx := context.Background()

	require.NoError(t, ix.Upsert(ctx, []corpus.Chunk{
		chunk("retail", "store count grew to eighteen thousand", 1, 0),
		chunk("retail", "grocery footfall declined slightly", 2, 0),
		chunk("", "digital commerce orders doubled", 3, 0),
	}))

	n, err := ix.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	res, err := ix.Search(ctx, "how many store count", 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "store count grew to eighteen thousand", res[0].Content)
	assert.Equal(t, 1, res[0].PageNumber)
	assert.Equal(t, "retail", res[0].Vertical)
	assert.Equal(t, 3, res[0].WordCount())
	assert.InDelta(t, 0.5, res[0].Confidence, 1e-9)
	assert.GreaterOrEqual(t, res[0].Score, res[1].Score)

	// other verticals are untouched
	jio, _ := r.Get("jio")
	n, err = jio.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIndex_SearchEmpty(t *testing.T) {
	r := newTestRegistry(t, newTestStore(t), newTestEmbedder(t), "media")
	ix, _ := r.Get("media")

	res, err := ix.Search(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestIndex_SearchInvalidTopK(t *testing.T) {
	r := newTestRegistry(t, newTestStore(t), newTestEmbedder(t), "media")
	ix, _ := r.Get("media")

	for _, k := range []int{0, -1} {
		_, err := ix.Search(context.Background(), "q", k)
		assert.True(t, errors.Is(err, corpus.ErrConfiguration), "k=%d", k)
	}
}

func TestIndex_ReingestIsIdempotent(t *testing.T) {
	r := newTestRegistry(t, newTestStore(t), newTestEmbedder(t), "energy")
	ix, _ := r.Get("energy")
	ctx := context.Background()

	batch := []corpus.Chunk{
		chunk("energy", "solar capacity commissioned", 4, 0),
		chunk("energy", "hydrogen electrolyser order", 4, 1),
	}
	require.NoError(t, ix.Upsert(ctx, batch))
	require.NoError(t, ix.Upsert(ctx, batch))

	n, err := ix.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestIndex_TiesKeepInsertionOrder(t *testing.T) {
	r := newTestRegistry(t, newTestStore(t), newTestEmbedder(t), "media")
	ix, _ := r.Get("media")
	ctx := context.Background()

	// identical content means identical vectors and identical scores
	var batch []corpus.Chunk
	for i := 0; i < 6; i++ {
		batch = append(batch, chunk("media", "subscription revenue", i+1, 0))
	}
	require.NoError(t, ix.Upsert(ctx, batch))

	for _, k := range []int{1, 3, 6} {
		res, err := ix.Search(ctx, "subscription revenue", k)
		require.NoError(t, err)
		require.Len(t, res, k)
		for i, c := range res {
			assert.Equal(t, i+1, c.PageNumber, "k=%d position %d", k, i)
		}
	}
}

func TestIndex_OverwriteKeepsOriginalOrder(t *testing.T) {
	r := newTestRegistry(t, newTestStore(t), newTestEmbedder(t), "media")
	ix, _ := r.Get("media")
	ctx := context.Background()

	require.NoError(t, ix.Upsert(ctx, []corpus.Chunk{chunk("media", "ad revenue", 1, 0)}))
	require.NoError(t, ix.Upsert(ctx, []corpus.Chunk{chunk("media", "ad revenue", 2, 0)}))
	// rewrite page 1 after page 2 was inserted
	require.NoError(t, ix.Upsert(ctx, []corpus.Chunk{chunk("media", "ad revenue", 1, 0)}))

	res, err := ix.Search(ctx, "ad revenue", 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, 1, res[0].PageNumber)
	assert.Equal(t, 2, res[1].PageNumber)
}

func TestIndex_SamePositionInBatchIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	r, err := NewRegistry([]string{"media"}, newTestStore(t), newTestEmbedder(t), Options{Logger: zap.New(core)})
	require.NoError(t, err)
	ix, _ := r.Get("media")
	ctx := context.Background()

	require.NoError(t, ix.Upsert(ctx, []corpus.Chunk{
		chunk("media", "ad revenue", 1, 0),
		chunk("media", "ad revenue restated", 1, 0),
	}))

	n, err := ix.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	entries := logs.FilterMessageSnippet("share a position").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1), entries[0].ContextMap()["collapsed"])

	require.NoError(t, ix.Upsert(ctx, []corpus.Chunk{chunk("media", "ad revenue", 2, 0)}))
	assert.Equal(t, 1, logs.FilterMessageSnippet("share a position").Len())
}

func TestIndex_DocumentIDScopesEntries(t *testing.T) {
	r := newTestRegistry(t, newTestStore(t), newTestEmbedder(t), "financial")
	ix, _ := r.Get("financial")
	ctx := context.Background()

	a := chunk("financial", "net debt reduced", 1, 0)
	a.Extra[corpus.ExtraDocumentID] = "fy23"
	b := chunk("financial", "net debt reduced", 1, 0)
	b.Extra[corpus.ExtraDocumentID] = "fy24"
	require.NoError(t, ix.Upsert(ctx, []corpus.Chunk{a, b}))

	n, err := ix.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	res, err := ix.Search(ctx, "net debt", 2)
	require.NoError(t, err)
	ids := []string{res[0].DocumentID(), res[1].DocumentID()}
	assert.ElementsMatch(t, []string{"fy23", "fy24"}, ids)
}

func TestIndex_EmbeddingFailureWritesNothing(t *testing.T) {
	store := newTestStore(t)
	r := newTestRegistry(t, store, brokenEmbedder{newTestEmbedder(t)}, "chemicals")
	ix, _ := r.Get("chemicals")
	ctx := context.Background()

	err := ix.Upsert(ctx, []corpus.Chunk{chunk("chemicals", "polyester margins", 1, 0)})
	assert.True(t, errors.Is(err, corpus.ErrEmbeddingFailure))

	n, err := ix.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIndex_BackendFailureRollsBack(t *testing.T) {
	store := &failingStore{Store: newTestStore(t)}
	r := newTestRegistry(t, store, newTestEmbedder(t), "jio")
	ix, _ := r.Get("jio")
	ctx := context.Background()

	original := chunk("jio", "subscriber base grew", 1, 0)
	require.NoError(t, ix.Upsert(ctx, []corpus.Chunk{original}))

	store.failUpsert = true
	err := ix.Upsert(ctx, []corpus.Chunk{
		chunk("jio", "arpu increased", 1, 0),
		chunk("jio", "fiber homes connected", 2, 0),
	})
	assert.True(t, errors.Is(err, corpus.ErrBackendUnavailable))

	n, err := ix.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	res, err := ix.Search(ctx, "subscriber", 5)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, original.Content, res[0].Content)
}

func TestIndex_SearchBackendFailure(t *testing.T) {
	store := &failingStore{Store: newTestStore(t)}
	r := newTestRegistry(t, store, newTestEmbedder(t), "jio")
	ix, _ := r.Get("jio")
	ctx := context.Background()

	require.NoError(t, ix.Upsert(ctx, []corpus.Chunk{chunk("jio", "tower count", 1, 0)}))
	store.failQuery = true

	_, err := ix.Search(ctx, "tower", 1)
	assert.True(t, errors.Is(err, corpus.ErrBackendUnavailable))
}

func TestIndex_RejectsForeignVertical(t *testing.T) {
	r := newTestRegistry(t, newTestStore(t), newTestEmbedder(t), "jio")
	ix, _ := r.Get("jio")

	err := ix.Upsert(context.Background(), []corpus.Chunk{chunk("retail", "stores", 1, 0)})
	assert.True(t, errors.Is(err, corpus.ErrConfiguration))
}

func TestIndex_DeleteAll(t *testing.T) {
	r := newTestRegistry(t, newTestStore(t), newTestEmbedder(t), "jio", "retail")
	ctx := context.Background()
	jio, _ := r.Get("jio")
	retail, _ := r.Get("retail")

	require.NoError(t, jio.Upsert(ctx, []corpus.Chunk{chunk("jio", "5g rollout", 1, 0)}))
	require.NoError(t, retail.Upsert(ctx, []corpus.Chunk{chunk("retail", "new stores", 1, 0)}))

	require.NoError(t, jio.DeleteAll(ctx))

	n, err := jio.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	res, err := jio.Search(ctx, "5g", 3)
	require.NoError(t, err)
	assert.Empty(t, res)

	n, err = retail.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// the vertical accepts writes again after a delete
	require.NoError(t, jio.Upsert(ctx, []corpus.Chunk{chunk("jio", "5g rollout", 1, 0)}))
}

func TestIndex_ConcurrentUpsertAndSearch(t *testing.T) {
	r := newTestRegistry(t, newTestStore(t), newTestEmbedder(t), "retail")
	ix, _ := r.Get("retail")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, ix.Upsert(ctx, []corpus.Chunk{chunk("retail", fmt.Sprintf("store batch %d", i), i+1, 0)}))
		}(i)
		go func() {
			defer wg.Done()
			_, err := ix.Search(ctx, "store", 3)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	n, err := ix.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
}

func TestEntryID(t *testing.T) {
	a := EntryID("retail", "", 3, 1)
	assert.Equal(t, a, EntryID("retail", "", 3, 1))
	assert.NotEqual(t, a, EntryID("retail", "", 3, 2))
	assert.NotEqual(t, a, EntryID("jio", "", 3, 1))
	assert.NotEqual(t, a, EntryID("retail", "doc", 3, 1))
}

func TestNewRegistry_Validation(t *testing.T) {
	store := newTestStore(t)
	emb := newTestEmbedder(t)

	_, err := NewRegistry([]string{"retail", "retail"}, store, emb, Options{})
	assert.True(t, errors.Is(err, corpus.ErrConfiguration))

	_, err = NewRegistry([]string{"Retail"}, store, emb, Options{})
	assert.Error(t, err)

	_, err = NewRegistry([]string{"retail"}, nil, emb, Options{})
	assert.True(t, errors.Is(err, corpus.ErrConfiguration))

	r, err := NewRegistry([]string{"retail", "jio"}, store, emb, Options{CollectionPrefix: "test"})
	require.NoError(t, err)
	assert.Equal(t, []string{"retail", "jio"}, r.Names())
	ix, _ := r.Get("jio")
	assert.Equal(t, "test_jio", ix.Collection())
	_, ok := r.Get("media")
	assert.False(t, ok)
}
