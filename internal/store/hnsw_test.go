package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVectorStore(t *testing.T) *HNSWStore {
	t.Helper()
	s, err := NewHNSWStore(DefaultVectorStoreConfig(4))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestHNSWStoreSearchReturnsNearest(t *testing.T) {
	s := newTestVectorStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx,
		[]string{"A", "B", "C"},
		[][]float32{
			{1, 0, 0, 0},
			{0, 1, 0, 0},
			{0.9, 0.1, 0, 0},
		}))

	results, err := s.Search(ctx, []float32{1, 0, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "A", results[0].ID)
	assert.Equal(t, "C", results[1].ID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestHNSWStoreEmptySearch(t *testing.T) {
	s := newTestVectorStore(t)

	results, err := s.Search(context.Background(), []float32{1, 0, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHNSWStoreDimensionMismatch(t *testing.T) {
	s := newTestVectorStore(t)
	ctx := context.Background()

	err := s.Add(ctx, []string{"A"}, [][]float32{{1, 0}})
	assert.Error(t, err)

	_, err = s.Search(ctx, []float32{1, 0}, 1)
	assert.Error(t, err)
}

func TestHNSWStoreReplaceAndDelete(t *testing.T) {
	s := newTestVectorStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, []string{"A"}, [][]float32{{1, 0, 0, 0}}))
	require.NoError(t, s.Add(ctx, []string{"A"}, [][]float32{{0, 1, 0, 0}}))
	assert.Equal(t, 1, s.Count())

	results, err := s.Search(ctx, []float32{0, 1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "A", results[0].ID)

	require.NoError(t, s.Delete(ctx, []string{"A"}))
	assert.Equal(t, 0, s.Count())
	assert.False(t, s.Contains("A"))

	// Lazy-deleted nodes never surface in results
	results, err = s.Search(ctx, []float32{0, 1, 0, 0}, 1)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHNSWStoreSaveLoad(t *testing.T) {
	s := newTestVectorStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx,
		[]string{"A", "B"},
		[][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}}))

	path := filepath.Join(t.TempDir(), "vectors.hnsw")
	require.NoError(t, s.Save(path))

	loaded, err := NewHNSWStore(DefaultVectorStoreConfig(4))
	require.NoError(t, err)
	defer func() { _ = loaded.Close() }()
	require.NoError(t, loaded.Load(path))

	assert.Equal(t, 2, loaded.Count())
	results, err := loaded.Search(ctx, []float32{1, 0, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "A", results[0].ID)
}
