package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skuseek/skuseek/internal/filter"
)

func testDocs() []Document {
	return []Document{
		{ID: "A", Text: "red chair", Attrs: filter.Attributes{"base_price": 100.0, "categories": []string{"chairs"}}},
		{ID: "B", Text: "blue chair", Attrs: filter.Attributes{"base_price": 200.0, "categories": []string{"chairs"}}},
		{ID: "C", Text: "red sofa", Attrs: filter.Attributes{"base_price": 300.0, "categories": []string{"sofas"}}},
	}
}

func newTestMemIndex(t *testing.T) *MemIndex {
	t.Helper()
	idx := NewMemIndex(DefaultBM25Config())
	require.NoError(t, idx.Rebuild(context.Background(), testDocs()))
	return idx
}

func TestMemIndexRanksMultiTermMatchFirst(t *testing.T) {
	// Given: A="red chair", B="blue chair", C="red sofa"
	idx := newTestMemIndex(t)

	// When: searching "red chair" with k=2
	results, err := idx.Search(context.Background(), "red chair", filter.Filter{}, 2)
	require.NoError(t, err)

	// Then: A matches both terms and ranks first
	require.Len(t, results, 2)
	assert.Equal(t, "A", results[0].ID)
	assert.Equal(t, []string{"chair", "red"}, results[0].MatchedTerms)

	// B and C score identically on one term each; the tie breaks by ID
	assert.Equal(t, "B", results[1].ID)
}

func TestMemIndexScoresDescendTiesByID(t *testing.T) {
	idx := newTestMemIndex(t)

	results, err := idx.Search(context.Background(), "red chair", filter.Filter{}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	for i := 1; i < len(results); i++ {
		if results[i-1].Score == results[i].Score {
			assert.Less(t, results[i-1].ID, results[i].ID)
		} else {
			assert.Greater(t, results[i-1].Score, results[i].Score)
		}
	}
}

func TestMemIndexEmptyIndexReturnsEmpty(t *testing.T) {
	idx := NewMemIndex(DefaultBM25Config())

	results, err := idx.Search(context.Background(), "red chair", filter.Filter{}, 10)
	require.NoError(t, err, "empty index is not an error")
	assert.Empty(t, results)
}

func TestMemIndexNoMatchingTermsReturnsEmpty(t *testing.T) {
	idx := newTestMemIndex(t)

	results, err := idx.Search(context.Background(), "wardrobe", filter.Filter{}, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMemIndexFilterPrunesBeforeScoring(t *testing.T) {
	idx := newTestMemIndex(t)

	f := filter.New().WithRange("base_price", nil, filter.Ptr(150))
	results, err := idx.Search(context.Background(), "red chair", f, 10)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "A", results[0].ID)
}

func TestMemIndexFilterDoesNotChangeScores(t *testing.T) {
	idx := newTestMemIndex(t)
	ctx := context.Background()

	unfiltered, err := idx.Search(ctx, "red chair", filter.Filter{}, 10)
	require.NoError(t, err)

	f := filter.New().WithOneOf("categories", "chairs")
	filtered, err := idx.Search(ctx, "red chair", f, 10)
	require.NoError(t, err)

	scores := map[string]float64{}
	for _, r := range unfiltered {
		scores[r.ID] = r.Score
	}
	for _, r := range filtered {
		assert.InDelta(t, scores[r.ID], r.Score, 1e-12,
			"corpus statistics stay global under filtering")
	}
}

func TestMemIndexUpsertReplacesDocument(t *testing.T) {
	idx := newTestMemIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, Document{
		ID:    "A",
		Text:  "green stool",
		Attrs: filter.Attributes{"base_price": 50.0},
	}))

	assert.Equal(t, 3, idx.Count(), "upsert must not duplicate")

	results, err := idx.Search(ctx, "red", filter.Filter{}, 10)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "A", r.ID, "old postings must be gone")
	}

	results, err = idx.Search(ctx, "stool", filter.Filter{}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "A", results[0].ID)
}

func TestMemIndexUpsertDoesNotDisturbConcurrentSnapshot(t *testing.T) {
	idx := newTestMemIndex(t)
	ctx := context.Background()

	// Grab the pre-upsert snapshot the way Search does
	idx.mu.RLock()
	before := idx.snap
	idx.mu.RUnlock()

	require.NoError(t, idx.Upsert(ctx, Document{ID: "A", Text: "green stool"}))

	// The old generation still holds A's original postings
	assert.Contains(t, before.Postings["red"], "A")
	assert.Equal(t, 2, before.DocLens["A"])
}

func TestMemIndexDeleteAndClear(t *testing.T) {
	idx := newTestMemIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Delete(ctx, []string{"A", "missing"}))
	assert.Equal(t, 2, idx.Count())

	require.NoError(t, idx.Clear(ctx))
	assert.Equal(t, 0, idx.Count())

	results, err := idx.Search(ctx, "chair", filter.Filter{}, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMemIndexRebuildReplacesEverything(t *testing.T) {
	idx := newTestMemIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Rebuild(ctx, []Document{
		{ID: "X", Text: "oak wardrobe"},
	}))

	assert.Equal(t, 1, idx.Count())
	results, err := idx.Search(ctx, "chair", filter.Filter{}, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMemIndexZeroLengthDocumentScoresZero(t *testing.T) {
	idx := NewMemIndex(DefaultBM25Config())
	ctx := context.Background()
	require.NoError(t, idx.Rebuild(ctx, []Document{
		{ID: "A", Text: "red chair"},
		{ID: "E", Text: "!!"},
	}))

	results, err := idx.Search(ctx, "red chair", filter.Filter{}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1, "token-free document never matches")
	assert.Equal(t, "A", results[0].ID)
}

func TestMemIndexSaveLoad(t *testing.T) {
	idx := newTestMemIndex(t)
	path := filepath.Join(t.TempDir(), "keyword.gob")
	require.NoError(t, idx.Save(path))

	loaded := NewMemIndex(DefaultBM25Config())
	require.NoError(t, loaded.Load(path))
	assert.Equal(t, 3, loaded.Count())

	results, err := loaded.Search(context.Background(), "red chair", filter.Filter{}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "A", results[0].ID)

	// Attributes survive the round trip
	f := filter.New().WithOneOf("categories", "sofas")
	results, err = loaded.Search(context.Background(), "red", f, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "C", results[0].ID)
}

func TestMemIndexStats(t *testing.T) {
	idx := newTestMemIndex(t)
	stats := idx.Stats()
	assert.Equal(t, 3, stats.DocumentCount)
	assert.Equal(t, 4, stats.TermCount) // red, chair, blue, sofa
	assert.InDelta(t, 2.0, stats.AvgDocLength, 1e-9)
}
