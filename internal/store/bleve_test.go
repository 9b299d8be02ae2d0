package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skuseek/skuseek/internal/filter"
)

func newTestBleveIndex(t *testing.T) *BleveIndex {
	t.Helper()
	idx, err := NewBleveIndex("", DefaultBM25Config())
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	require.NoError(t, idx.Rebuild(context.Background(), testDocs()))
	return idx
}

func TestBleveIndexSearch(t *testing.T) {
	idx := newTestBleveIndex(t)

	results, err := idx.Search(context.Background(), "red chair", filter.Filter{}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "A", results[0].ID, "document matching both terms ranks first")
}

func TestBleveIndexEmptyQueryAndEmptyIndex(t *testing.T) {
	idx := newTestBleveIndex(t)
	ctx := context.Background()

	results, err := idx.Search(ctx, "   ", filter.Filter{}, 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	require.NoError(t, idx.Clear(ctx))
	results, err = idx.Search(ctx, "chair", filter.Filter{}, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBleveIndexNumericPushdown(t *testing.T) {
	idx := newTestBleveIndex(t)

	f := filter.New().WithRange("base_price", nil, filter.Ptr(150))
	results, err := idx.Search(context.Background(), "red chair", f, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "A", results[0].ID)
}

func TestBleveIndexCategoryPushdown(t *testing.T) {
	idx := newTestBleveIndex(t)

	f := filter.New().WithOneOf("categories", "sofas", "beds")
	results, err := idx.Search(context.Background(), "red", f, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "C", results[0].ID)
}

func TestBleveIndexUpsertAndDelete(t *testing.T) {
	idx := newTestBleveIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, Document{ID: "A", Text: "green stool"}))
	assert.Equal(t, 3, idx.Count())

	results, err := idx.Search(ctx, "stool", filter.Filter{}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "A", results[0].ID)

	require.NoError(t, idx.Delete(ctx, []string{"A"}))
	assert.Equal(t, 2, idx.Count())
}

// Pushdown and post-filter evaluation must select the same documents.
func TestPushdownMatchesPostFilter(t *testing.T) {
	ctx := context.Background()

	docs := []Document{
		{ID: "P1", Text: "red fabric chair", Attrs: filter.Attributes{"base_price": 120.0, "categories": []string{"chairs"}, "series": "aero"}},
		{ID: "P2", Text: "red leather chair", Attrs: filter.Attributes{"base_price": 480.0, "categories": []string{"chairs", "office"}, "series": "flex"}},
		{ID: "P3", Text: "red velvet sofa", Attrs: filter.Attributes{"base_price": 920.0, "categories": []string{"sofas"}, "series": "lounge"}},
		{ID: "P4", Text: "blue fabric chair", Attrs: filter.Attributes{"base_price": 130.0, "categories": []string{"chairs"}, "series": "aero"}},
		{ID: "P5", Text: "red oak table", Attrs: filter.Attributes{"base_price": 300.0, "categories": []string{"tables"}}},
	}

	mem := NewMemIndex(DefaultBM25Config())
	require.NoError(t, mem.Rebuild(ctx, docs))

	blv, err := NewBleveIndex("", DefaultBM25Config())
	require.NoError(t, err)
	defer func() { _ = blv.Close() }()
	require.NoError(t, blv.Rebuild(ctx, docs))

	filters := []filter.Filter{
		{},
		filter.New().WithRange("base_price", filter.Ptr(100), filter.Ptr(500)),
		filter.New().WithOneOf("categories", "chairs"),
		filter.New().WithEquals("series", "aero"),
		filter.New().
			WithRange("base_price", nil, filter.Ptr(400)).
			WithOneOf("categories", "chairs", "tables"),
		// No document satisfies this
		filter.New().WithEquals("series", "ghost"),
	}

	for _, f := range filters {
		memResults, err := mem.Search(ctx, "red chair", f, 10)
		require.NoError(t, err)
		blvResults, err := blv.Search(ctx, "red chair", f, 10)
		require.NoError(t, err)

		memIDs := resultIDSet(memResults)
		blvIDs := resultIDSet(blvResults)
		assert.Equal(t, memIDs, blvIDs, "filter %+v selected different documents", f)
	}
}

func resultIDSet(results []KeywordResult) map[string]struct{} {
	ids := make(map[string]struct{}, len(results))
	for _, r := range results {
		ids[r.ID] = struct{}{}
	}
	return ids
}
