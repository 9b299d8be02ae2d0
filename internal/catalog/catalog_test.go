package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleProducts() []Product {
	return []Product{
		{
			Code:        "CHR-100",
			Description: "Red office chair with lumbar support",
			BasePrice:   149.0,
			Categories:  []string{"chairs", "office"},
			Series:      "aero",
			Height:      95.5,
			Weight:      12.3,
		},
		{
			Code:        "SOF-200",
			Description: "Red three-seat sofa",
			BasePrice:   899.0,
			Categories:  []string{"sofas"},
			Series:      "lounge",
		},
	}
}

func TestProductValidate(t *testing.T) {
	p := sampleProducts()[0]
	assert.NoError(t, p.Validate())

	p.Code = ""
	assert.Error(t, p.Validate())

	p = sampleProducts()[0]
	p.Description = "  "
	assert.Error(t, p.Validate())

	p = sampleProducts()[0]
	p.BasePrice = -1
	assert.Error(t, p.Validate())
}

func TestSearchTextIncludesCategoriesAndSeries(t *testing.T) {
	text := sampleProducts()[0].SearchText()
	assert.Contains(t, text, "Red office chair")
	assert.Contains(t, text, "chairs")
	assert.Contains(t, text, "aero")
}

func TestAttributesOmitUnsetDimensions(t *testing.T) {
	attrs := sampleProducts()[1].Attributes()
	assert.Equal(t, 899.0, attrs["base_price"])
	assert.Equal(t, "lounge", attrs["series"])
	_, hasHeight := attrs["height"]
	assert.False(t, hasHeight, "unset dimensions must not be filterable")
}

func TestLoadSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")
	content := `[
		{"product_code": "CHR-100", "description": "Red chair", "base_price": 149},
		{"product_code": "", "description": "no code", "base_price": 1},
		{"product_code": "CHR-100", "description": "Red chair v2", "base_price": 159}
	]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	products, skipped, err := LoadSnapshot(path)
	require.NoError(t, err)
	assert.Len(t, skipped, 1, "invalid product is skipped, not fatal")
	require.Len(t, products, 1, "duplicate codes collapse, last write wins")
	assert.Equal(t, "Red chair v2", products[0].Description)
	assert.Equal(t, 159.0, products[0].BasePrice)
}

func TestLoadSnapshotMissingFile(t *testing.T) {
	_, _, err := LoadSnapshot(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestStoreRoundTrip(t *testing.T) {
	store, err := OpenStore("")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	require.NoError(t, store.ReplaceAll(ctx, sampleProducts()))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	p, err := store.Get(ctx, "CHR-100")
	require.NoError(t, err)
	assert.Equal(t, "Red office chair with lumbar support", p.Description)
	assert.Equal(t, []string{"chairs", "office"}, p.Categories)

	batch, err := store.GetBatch(ctx, []string{"CHR-100", "SOF-200", "MISSING"})
	require.NoError(t, err)
	assert.Len(t, batch, 2)
	assert.Equal(t, "lounge", batch["SOF-200"].Series)
}

func TestStoreUpsertReplaces(t *testing.T) {
	store, err := OpenStore("")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	require.NoError(t, store.ReplaceAll(ctx, sampleProducts()))

	updated := sampleProducts()[0]
	updated.BasePrice = 199.0
	require.NoError(t, store.Upsert(ctx, updated))

	p, err := store.Get(ctx, "CHR-100")
	require.NoError(t, err)
	assert.Equal(t, 199.0, p.BasePrice)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "upsert must not duplicate")
}

func TestStoreReplaceAllClearsPrevious(t *testing.T) {
	store, err := OpenStore("")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	require.NoError(t, store.ReplaceAll(ctx, sampleProducts()))
	require.NoError(t, store.ReplaceAll(ctx, sampleProducts()[:1]))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
