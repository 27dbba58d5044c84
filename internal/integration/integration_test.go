// Package integration exercises the full retrieval stack against on-disk
// stores: sqlite catalog and chunks, bleve keyword index, reindex with the
// cross-process lock, and the eval harness on top.
package integration

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mercavo/tradesearch/internal/catalog"
	"github.com/mercavo/tradesearch/internal/chunkstore"
	"github.com/mercavo/tradesearch/internal/config"
	"github.com/mercavo/tradesearch/internal/embed"
	"github.com/mercavo/tradesearch/internal/eval"
	"github.com/mercavo/tradesearch/internal/lexical"
	"github.com/mercavo/tradesearch/internal/reindex"
	"github.com/mercavo/tradesearch/internal/search"
	"github.com/mercavo/tradesearch/internal/settings"
)

type stack struct {
	cfg      *config.Config
	catalog  *catalog.Store
	chunks   *chunkstore.Store
	lexical  *lexical.Index
	settings *settings.Store
	engine   *search.Engine
	reindex  *reindex.Orchestrator
	harness  *eval.Harness
}

// openStack builds the full engine over a real data directory, the same way
// the CLI does.
func openStack(t *testing.T, dataDir string) *stack {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	cfg := config.NewConfig()
	cfg.Paths.DataDir = dataDir
	require.NoError(t, os.MkdirAll(dataDir, 0o755))

	cat, err := catalog.NewStore(cfg.DatabasePath())
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })

	chunks, err := chunkstore.NewStore(cfg.DatabasePath())
	require.NoError(t, err)
	t.Cleanup(func() { _ = chunks.Close() })

	set, err := settings.NewStore(cfg.DatabasePath())
	require.NoError(t, err)
	t.Cleanup(func() { _ = set.Close() })

	lex, err := lexical.NewIndex(cfg.LexicalIndexPath(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = lex.Close() })

	embedder := embed.FromConfig(cfg, logger)

	engine := search.NewEngine(search.Options{
		Catalog:  cat,
		Chunks:   chunks,
		Lexical:  lex,
		Embedder: embedder,
		Settings: set,
		Logger:   logger,
	})
	orch := reindex.New(reindex.Options{
		Catalog:  cat,
		Chunks:   chunks,
		Lexical:  lex,
		Embedder: embedder,
		Settings: set,
		DataDir:  dataDir,
		Logger:   logger,
	})

	return &stack{
		cfg:      cfg,
		catalog:  cat,
		chunks:   chunks,
		lexical:  lex,
		settings: set,
		engine:   engine,
		reindex:  orch,
		harness:  eval.NewHarness(engine, logger),
	}
}

func seedCatalog(t *testing.T, s *stack) {
	t.Helper()
	ctx := context.Background()

	rating := 4.8
	require.NoError(t, s.catalog.UpsertSupplier(ctx, &catalog.Supplier{
		ID:                 "sup-1",
		CompanyName:        "Shenzhen Fastener Works",
		Description:        "Manufacturer of screws, bolts, and industrial fasteners.",
		MainProducts:       []string{"screws", "bolts"},
		Country:            "CN",
		VerificationStatus: catalog.VerificationGoldVerified,
		Badges:             []string{catalog.BadgeTradeAssurance},
		ServiceRating:      &rating,
	}))
	require.NoError(t, s.catalog.UpsertProduct(ctx, &catalog.Product{
		ID:          "prod-1",
		Title:       "Hex Head Screw M6",
		Description: "Stainless steel hex head screws for industrial fastening.",
		CategoryID:  "fasteners",
		SupplierID:  "sup-1",
		Tags:        []string{"hex", "screw"},
	}))
	require.NoError(t, s.catalog.UpsertProduct(ctx, &catalog.Product{
		ID:          "prod-2",
		Title:       "Ceramic Floor Tile",
		Description: "Glazed ceramic tiles for interior flooring.",
		CategoryID:  "building",
		SupplierID:  "sup-1",
	}))
}

func TestReindexAndSearchOnDisk(t *testing.T) {
	s := openStack(t, t.TempDir())
	seedCatalog(t, s)
	ctx := context.Background()

	report, err := s.reindex.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Reindexed[catalog.EntityProduct])
	assert.Equal(t, 1, report.Reindexed[catalog.EntitySupplier])

	results, err := s.engine.Search(ctx, search.Request{
		Query:      "hex screw",
		EntityType: catalog.EntityProduct,
	})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "prod-1", results[0].ParentID)
}

func TestIndexSurvivesReopen(t *testing.T) {
	dataDir := t.TempDir()
	ctx := context.Background()

	s := openStack(t, dataDir)
	seedCatalog(t, s)
	_, err := s.reindex.Run(ctx)
	require.NoError(t, err)

	// Close everything and reopen the same data dir.
	require.NoError(t, s.lexical.Close())
	require.NoError(t, s.settings.Close())
	require.NoError(t, s.chunks.Close())
	require.NoError(t, s.catalog.Close())

	reopened := openStack(t, dataDir)
	results, err := reopened.engine.Search(ctx, search.Request{
		Query:      "ceramic tile",
		EntityType: catalog.EntityProduct,
	})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "prod-2", results[0].ParentID)

	stats, err := reopened.chunks.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Parents)
}

func TestSettingsPersistAcrossReopen(t *testing.T) {
	dataDir := t.TempDir()
	ctx := context.Background()

	s := openStack(t, dataDir)
	kw := 0.7
	_, err := s.settings.Update(ctx, settings.Patch{KeywordWeight: &kw})
	require.NoError(t, err)

	require.NoError(t, s.lexical.Close())
	require.NoError(t, s.settings.Close())
	require.NoError(t, s.chunks.Close())
	require.NoError(t, s.catalog.Close())

	reopened := openStack(t, dataDir)
	cfg, err := reopened.settings.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.7, cfg.KeywordWeight)
}

func TestEvalHarnessOnDisk(t *testing.T) {
	s := openStack(t, t.TempDir())
	seedCatalog(t, s)
	ctx := context.Background()

	_, err := s.reindex.Run(ctx)
	require.NoError(t, err)

	datasetYAML := `judgments:
  - query: hex screw
    entity_type: product
    relevant_ids: [prod-1]
  - query: fastener manufacturer
    entity_type: supplier
    relevant_ids: [sup-1]
`
	path := filepath.Join(t.TempDir(), "judgments.yaml")
	require.NoError(t, os.WriteFile(path, []byte(datasetYAML), 0o644))

	ds, err := eval.LoadDataset(path)
	require.NoError(t, err)
	report, err := s.harness.Run(ctx, ds)
	require.NoError(t, err)

	assert.Len(t, report.Rows, 2*len(eval.AllModes))
	require.Len(t, report.Summaries, 2)
	for _, sum := range report.Summaries {
		assert.Equal(t, 1.0, sum.Recall50, "entity type %s", sum.EntityType)
	}
}
