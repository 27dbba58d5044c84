package eval

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mercavo/tradesearch/internal/catalog"
	"github.com/mercavo/tradesearch/internal/chunk"
	"github.com/mercavo/tradesearch/internal/chunkstore"
	"github.com/mercavo/tradesearch/internal/embed"
	"github.com/mercavo/tradesearch/internal/lexical"
	"github.com/mercavo/tradesearch/internal/search"
	"github.com/mercavo/tradesearch/internal/settings"
)

func newHarnessEnv(t *testing.T) (*Harness, func(*catalog.Product), func(*catalog.Supplier)) {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)

	cat, err := catalog.NewStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })

	chunks, err := chunkstore.NewStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = chunks.Close() })

	lex, err := lexical.NewIndex("", logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = lex.Close() })

	set, err := settings.NewStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = set.Close() })

	embedder := embed.NewStaticProvider()
	engine := search.NewEngine(search.Options{
		Catalog:  cat,
		Chunks:   chunks,
		Lexical:  lex,
		Embedder: embedder,
		Settings: set,
		Logger:   logger,
	})

	indexEntity := func(e catalog.Entity) {
		contents := chunk.Split(e.SearchText(), chunk.DefaultTargetChars)
		embeddings, embErr := embedder.EmbedBatch(ctx, contents)
		require.NoError(t, embErr)
		require.NoError(t, chunks.ReplaceChunks(ctx, e.Ref(), contents, embeddings, embedder.ModelName()))
		require.NoError(t, lex.Upsert(ctx, []lexical.Document{lexical.DocumentFor(e)}))
	}
	addProduct := func(p *catalog.Product) {
		require.NoError(t, cat.UpsertProduct(ctx, p))
		indexEntity(p)
	}
	addSupplier := func(s *catalog.Supplier) {
		require.NoError(t, cat.UpsertSupplier(ctx, s))
		indexEntity(s)
	}
	return NewHarness(engine, logger), addProduct, addSupplier
}

func seedHexScrews(addProduct func(*catalog.Product), addSupplier func(*catalog.Supplier)) {
	addProduct(&catalog.Product{
		ID:          "p1",
		Title:       "Hex Head Screw M6",
		Description: "Stainless steel hex head screws for industrial fastening.",
	})
	addProduct(&catalog.Product{
		ID:          "p2",
		Title:       "Fastener Assortment",
		Description: "Includes hex screws, bolts, and washers.",
	})
	addProduct(&catalog.Product{
		ID:          "p3",
		Title:       "Ceramic Floor Tile",
		Description: "Glossy white ceramic tiles for bathrooms.",
	})
	addSupplier(&catalog.Supplier{
		ID:          "s1",
		CompanyName: "Shenzhen Fastener Co",
		Description: "Exports hex screws and bolts worldwide.",
	})
}

func TestHarnessRunAllModes(t *testing.T) {
	h, addProduct, addSupplier := newHarnessEnv(t)
	seedHexScrews(addProduct, addSupplier)

	ds := &Dataset{Judgments: []Judgment{
		{Query: "hex screw", EntityType: "product", RelevantIDs: []string{"p1", "p2"}},
		{Query: "hex screws", EntityType: "supplier", RelevantIDs: []string{"s1"}},
	}}

	report, err := h.Run(context.Background(), ds)
	require.NoError(t, err)

	// Two judgments, four modes each.
	assert.Len(t, report.Rows, 8)

	// Both relevant products rank inside the top fifty in every hybrid row.
	for _, row := range report.Rows {
		if row.Mode == ModeHybrid && row.EntityType == catalog.EntityProduct {
			assert.InDelta(t, 1.0, row.Recall50, 1e-9)
			assert.Greater(t, row.MRR, 0.0)
		}
	}
}

func TestHarnessSummaryPerEntityType(t *testing.T) {
	h, addProduct, addSupplier := newHarnessEnv(t)
	seedHexScrews(addProduct, addSupplier)

	ds := &Dataset{Judgments: []Judgment{
		{Query: "hex screw", EntityType: "product", RelevantIDs: []string{"p1"}},
		{Query: "ceramic tile", EntityType: "product", RelevantIDs: []string{"p3"}},
		{Query: "hex screws", EntityType: "supplier", RelevantIDs: []string{"s1"}},
	}}

	report, err := h.Run(context.Background(), ds)
	require.NoError(t, err)

	require.Len(t, report.Summaries, 2)
	assert.Equal(t, catalog.EntityProduct, report.Summaries[0].EntityType)
	assert.Equal(t, 2, report.Summaries[0].Queries)
	assert.Equal(t, catalog.EntitySupplier, report.Summaries[1].EntityType)
	assert.Equal(t, 1, report.Summaries[1].Queries)

	// The seeded corpus is small and unambiguous; the full pipeline should
	// find every judged entity.
	for _, s := range report.Summaries {
		assert.InDelta(t, 1.0, s.Recall50, 1e-9)
	}
}

func TestHarnessAppliesJudgmentFilters(t *testing.T) {
	h, addProduct, _ := newHarnessEnv(t)
	addProduct(&catalog.Product{
		ID:          "p1",
		Title:       "Hex Head Screw M6",
		Description: "Stainless steel hex head screws.",
		CategoryID:  "fasteners",
	})
	addProduct(&catalog.Product{
		ID:          "p2",
		Title:       "Hex Screw Wall Art",
		Description: "Decorative hex screw sculpture.",
		CategoryID:  "decor",
	})

	ds := &Dataset{Judgments: []Judgment{{
		Query:       "hex screw",
		EntityType:  "product",
		CategoryID:  "fasteners",
		RelevantIDs: []string{"p1"},
	}}}

	report, err := h.Run(context.Background(), ds)
	require.NoError(t, err)

	// The off-category product is filtered out of every mode, so the only
	// relevant entity leads each ranking.
	for _, row := range report.Rows {
		assert.InDelta(t, 1.0, row.MRR, 1e-9, "mode %s", row.Mode)
		assert.InDelta(t, 1.0, row.Recall50, 1e-9, "mode %s", row.Mode)
	}
}

func TestHarnessRejectsInvalidDataset(t *testing.T) {
	h, _, _ := newHarnessEnv(t)

	_, err := h.Run(context.Background(), &Dataset{})
	require.Error(t, err)
}

func TestLoadDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "judgments.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
judgments:
  - query: hex screw
    entity_type: product
    relevant_ids: [p1, p2]
  - query: tile exporter
    entity_type: supplier
    relevant_ids: [s1]
`), 0o644))

	ds, err := LoadDataset(path)
	require.NoError(t, err)

	require.Len(t, ds.Judgments, 2)
	assert.Equal(t, "hex screw", ds.Judgments[0].Query)
	assert.Equal(t, []string{"p1", "p2"}, ds.Judgments[0].RelevantIDs)
}

func TestLoadDatasetMissingFile(t *testing.T) {
	_, err := LoadDataset("/does/not/exist.yaml")
	require.Error(t, err)
}

func TestLoadDatasetInvalidEntityType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "judgments.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
judgments:
  - query: hex screw
    entity_type: warehouse
    relevant_ids: [p1]
`), 0o644))

	_, err := LoadDataset(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERR_402")
}
