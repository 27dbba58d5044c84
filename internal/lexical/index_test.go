package lexical

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mercavo/tradesearch/internal/catalog"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := NewIndex("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })
	return ix
}

func seedIndex(t *testing.T, ix *Index) {
	t.Helper()
	err := ix.Upsert(context.Background(), []Document{
		{EntityType: "product", ParentID: "p1", Text: "Hex Head Screw M6 stainless steel fastener", CategoryID: "fasteners"},
		{EntityType: "product", ParentID: "p2", Text: "Ceramic floor tile glossy white", CategoryID: "tiles"},
		{EntityType: "product", ParentID: "p3", Text: "Hex wrench set chrome vanadium", CategoryID: "tools"},
		{EntityType: "supplier", ParentID: "s1", Text: "Shenzhen Fastener Co exports hex screws and bolts", Country: "CN"},
		{EntityType: "supplier", ParentID: "s2", Text: "Milano Tile Works premium ceramics", Country: "IT"},
	})
	require.NoError(t, err)
}

func TestSearchMatchesAndRanks(t *testing.T) {
	ix := newTestIndex(t)
	seedIndex(t, ix)

	hits, err := ix.Search(context.Background(), "hex screw", catalog.EntityProduct, Filter{}, 10)
	require.NoError(t, err)

	require.NotEmpty(t, hits)
	assert.Equal(t, "p1", hits[0].ParentID)
	for _, h := range hits {
		assert.NotEqual(t, "p2", h.ParentID)
	}
}

func TestSearchScopedToEntityType(t *testing.T) {
	ix := newTestIndex(t)
	seedIndex(t, ix)

	hits, err := ix.Search(context.Background(), "hex screws", catalog.EntitySupplier, Filter{}, 10)
	require.NoError(t, err)

	require.Len(t, hits, 1)
	assert.Equal(t, "s1", hits[0].ParentID)
}

func TestSearchCategoryFilter(t *testing.T) {
	ix := newTestIndex(t)
	seedIndex(t, ix)

	hits, err := ix.Search(context.Background(), "hex", catalog.EntityProduct,
		Filter{CategoryID: "tools"}, 10)
	require.NoError(t, err)

	require.Len(t, hits, 1)
	assert.Equal(t, "p3", hits[0].ParentID)
}

func TestSearchCountryFilter(t *testing.T) {
	ix := newTestIndex(t)
	seedIndex(t, ix)

	hits, err := ix.Search(context.Background(), "tile", catalog.EntitySupplier,
		Filter{Country: "IT"}, 10)
	require.NoError(t, err)

	require.Len(t, hits, 1)
	assert.Equal(t, "s2", hits[0].ParentID)
}

func TestSearchExcludeID(t *testing.T) {
	ix := newTestIndex(t)
	seedIndex(t, ix)

	hits, err := ix.Search(context.Background(), "hex", catalog.EntityProduct,
		Filter{ExcludeID: "p1"}, 10)
	require.NoError(t, err)

	for _, h := range hits {
		assert.NotEqual(t, "p1", h.ParentID)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	ix := newTestIndex(t)
	seedIndex(t, ix)

	hits, err := ix.Search(context.Background(), "   ", catalog.EntityProduct, Filter{}, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchLimit(t *testing.T) {
	ix := newTestIndex(t)
	seedIndex(t, ix)

	hits, err := ix.Search(context.Background(), "hex", catalog.EntityProduct, Filter{}, 1)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestUpsertReplacesDocument(t *testing.T) {
	ix := newTestIndex(t)
	seedIndex(t, ix)
	ctx := context.Background()

	err := ix.Upsert(ctx, []Document{
		{EntityType: "product", ParentID: "p2", Text: "Hex bolt kit zinc plated", CategoryID: "fasteners"},
	})
	require.NoError(t, err)

	hits, err := ix.Search(ctx, "hex bolt kit", catalog.EntityProduct, Filter{}, 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "p2", hits[0].ParentID)

	hits, err = ix.Search(ctx, "ceramic tile", catalog.EntityProduct, Filter{}, 10)
	require.NoError(t, err)
	for _, h := range hits {
		assert.NotEqual(t, "p2", h.ParentID)
	}
}

func TestDelete(t *testing.T) {
	ix := newTestIndex(t)
	seedIndex(t, ix)
	ctx := context.Background()

	require.NoError(t, ix.Delete(ctx, catalog.EntityProduct, []string{"p1"}))

	hits, err := ix.Search(ctx, "hex screw", catalog.EntityProduct, Filter{}, 10)
	require.NoError(t, err)
	for _, h := range hits {
		assert.NotEqual(t, "p1", h.ParentID)
	}
}

func TestDocCount(t *testing.T) {
	ix := newTestIndex(t)
	seedIndex(t, ix)

	n, err := ix.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), n)
}

func TestDocumentFor(t *testing.T) {
	p := &catalog.Product{
		ID:         "p9",
		Title:      "Solar Panel 400W",
		CategoryID: "energy",
	}
	doc := DocumentFor(p)
	assert.Equal(t, "product", doc.EntityType)
	assert.Equal(t, "p9", doc.ParentID)
	assert.Equal(t, "energy", doc.CategoryID)
	assert.Contains(t, doc.Text, "Solar Panel 400W")

	s := &catalog.Supplier{ID: "s9", CompanyName: "Acme Exports", Country: "IN"}
	doc = DocumentFor(s)
	assert.Equal(t, "supplier", doc.EntityType)
	assert.Equal(t, "IN", doc.Country)
}

func TestPersistentIndexRecreatedWhenCorrupt(t *testing.T) {
	dir := t.TempDir() + "/lexical.bleve"

	ix, err := NewIndex(dir, nil)
	require.NoError(t, err)
	require.NoError(t, ix.Upsert(context.Background(), []Document{
		{EntityType: "product", ParentID: "p1", Text: "widget"},
	}))
	require.NoError(t, ix.Close())

	// Truncate the meta file to simulate a torn write.
	require.NoError(t, os.WriteFile(dir+"/index_meta.json", nil, 0o644))

	ix, err = NewIndex(dir, nil)
	require.NoError(t, err)
	defer ix.Close()

	n, err := ix.DocCount()
	require.NoError(t, err)
	assert.Zero(t, n)
}
