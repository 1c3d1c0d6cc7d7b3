package vectorstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChromem(t *testing.T) *ChromemStore {
	t.Helper()
	s, err := NewChromemStore(ChromemConfig{InMemory: true, VectorSize: 3}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func doc(id string, vec []float32, meta map[string]string) Document {
	return Document{ID: id, Content: "content " + id, Metadata: meta, Embedding: vec}
}

func TestChromemStore_UpsertAndQuery(t *testing.T) {
	s := newTestChromem(t)
	ctx := context.Background()

	require.NoError(t, s.EnsureCollection(ctx, "v_retail", 3))
	require.NoError(t, s.Upsert(ctx, "v_retail", []Document{
		doc("a", []float32{1, 0, 0}, map[string]string{"vertical": "retail"}),
		doc("b", []float32{0, 1, 0}, map[string]string{"vertical": "retail"}),
		doc("c", []float32{0.9, 0.1, 0}, map[string]string{"vertical": "retail"}),
	}))

	res, err := s.Query(ctx, "v_retail", []float32{1, 0, 0}, 2, map[string]string{"vertical": "retail"})
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "a", res[0].ID)
	assert.Equal(t, "c", res[1].ID)
	assert.InDelta(t, 1.0, res[0].Score, 1e-5)
	assert.Equal(t, "content a", res[0].Content)
	assert.Equal(t, "retail", res[0].Metadata["vertical"])
}

func TestChromemStore_QueryCapsAtCount(t *testing.T) {
	s := newTestChromem(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, "v_energy", []Document{doc("a", []float32{1, 0, 0}, nil)}))

	res, err := s.Query(ctx, "v_energy", []float32{1, 0, 0}, 10, nil)
	require.NoError(t, err)
	assert.Len(t, res, 1)
}

func TestChromemStore_QueryMissingCollection(t *testing.T) {
	s := newTestChromem(t)

	res, err := s.Query(context.Background(), "v_media", []float32{1, 0, 0}, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestChromemStore_UpsertReplaces(t *testing.T) {
	s := newTestChromem(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, "v_jio", []Document{doc("a", []float32{1, 0, 0}, map[string]string{"rev": "1"})}))
	require.NoError(t, s.Upsert(ctx, "v_jio", []Document{doc("a", []float32{0, 1, 0}, map[string]string{"rev": "2"})}))

	n, err := s.Count(ctx, "v_jio")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	docs, err := s.Get(ctx, "v_jio", []string{"a", "missing"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "2", docs[0].Metadata["rev"])
	assert.Len(t, docs[0].Embedding, 3)
}

func TestChromemStore_Delete(t *testing.T) {
	s := newTestChromem(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, "v_jio", []Document{
		doc("a", []float32{1, 0, 0}, nil),
		doc("b", []float32{0, 1, 0}, nil),
	}))
	require.NoError(t, s.Delete(ctx, "v_jio", []string{"a"}))
	require.NoError(t, s.Delete(ctx, "v_jio", nil))
	require.NoError(t, s.Delete(ctx, "v_unknown", []string{"a"}))

	n, err := s.Count(ctx, "v_jio")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestChromemStore_Collections(t *testing.T) {
	s := newTestChromem(t)
	ctx := context.Background()

	require.NoError(t, s.EnsureCollection(ctx, "v_retail", 3))
	require.NoError(t, s.EnsureCollection(ctx, "v_energy", 3))

	names, err := s.ListCollections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"v_energy", "v_retail"}, names)

	require.NoError(t, s.DeleteCollection(ctx, "v_retail"))
	require.NoError(t, s.DeleteCollection(ctx, "v_retail"))

	n, err := s.Count(ctx, "v_retail")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestChromemStore_Validation(t *testing.T) {
	s := newTestChromem(t)
	ctx := context.Background()

	err := s.Upsert(ctx, "v_retail", []Document{doc("a", []float32{1, 0}, nil)})
	assert.True(t, errors.Is(err, ErrDimensionMismatch))

	err = s.Upsert(ctx, "v_retail", nil)
	assert.True(t, errors.Is(err, ErrEmptyDocuments))

	err = s.Upsert(ctx, "../etc", []Document{doc("a", []float32{1, 0, 0}, nil)})
	assert.True(t, errors.Is(err, ErrInvalidCollectionName))

	_, err = s.Query(ctx, "v_retail", []float32{1, 0, 0}, 0, nil)
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	err = s.EnsureCollection(ctx, "v_retail", 384)
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
}

func TestChromemStore_Persistence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewChromemStore(ChromemConfig{Path: dir, VectorSize: 3}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, "v_media", []Document{doc("a", []float32{1, 0, 0}, map[string]string{"k": "v"})}))
	require.NoError(t, s.Close())

	reopened, err := NewChromemStore(ChromemConfig{Path: dir, VectorSize: 3}, nil)
	require.NoError(t, err)
	n, err := reopened.Count(ctx, "v_media")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNewChromemStore_InvalidConfig(t *testing.T) {
	_, err := NewChromemStore(ChromemConfig{InMemory: true}, nil)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}
