// Package reindex rebuilds the chunk store and keyword index from the
// catalog. Entities are walked in stable ID order page by page; each entity
// is re-chunked, re-embedded, and swapped in atomically, so a crashed or
// repeated run converges to the same state.
package reindex

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/panjf2000/ants/v2"

	"github.com/mercavo/tradesearch/internal/catalog"
	"github.com/mercavo/tradesearch/internal/chunk"
	"github.com/mercavo/tradesearch/internal/chunkstore"
	"github.com/mercavo/tradesearch/internal/embed"
	tserr "github.com/mercavo/tradesearch/internal/errors"
	"github.com/mercavo/tradesearch/internal/lexical"
	"github.com/mercavo/tradesearch/internal/settings"
)

// DefaultWorkers bounds concurrent entity processing.
const DefaultWorkers = 4

// lockFileName is the cross-process reindex lock inside the data dir.
const lockFileName = "reindex.lock"

// Report summarizes one reindex run.
type Report struct {
	Reindexed map[catalog.EntityType]int
	Skipped   int
	Duration  time.Duration
}

// Total returns the number of entities reindexed across types.
func (r Report) Total() int {
	var n int
	for _, v := range r.Reindexed {
		n += v
	}
	return n
}

// Orchestrator drives full reindex runs.
type Orchestrator struct {
	catalog  *catalog.Store
	chunks   *chunkstore.Store
	lexical  *lexical.Index
	embedder embed.Provider
	settings *settings.Store
	dataDir  string
	workers  int
	logger   *slog.Logger
}

// Options wires the orchestrator's dependencies.
type Options struct {
	Catalog  *catalog.Store
	Chunks   *chunkstore.Store
	Lexical  *lexical.Index
	Embedder embed.Provider
	Settings *settings.Store
	// DataDir hosts the cross-process lock file. Empty disables locking,
	// for in-memory test runs.
	DataDir string
	Workers int
	Logger  *slog.Logger
}

// New creates a reindex orchestrator.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Orchestrator{
		catalog:  opts.Catalog,
		chunks:   opts.Chunks,
		lexical:  opts.Lexical,
		embedder: opts.Embedder,
		settings: opts.Settings,
		dataDir:  opts.DataDir,
		workers:  workers,
		logger:   logger.With("component", "reindex"),
	}
}

// Run reindexes every entity of both types. Only one run may be active per
// data dir across processes; a second concurrent run fails fast instead of
// doubling the embedding spend.
func (o *Orchestrator) Run(ctx context.Context) (Report, error) {
	report := Report{Reindexed: make(map[catalog.EntityType]int)}
	start := time.Now()

	if o.dataDir != "" {
		lock := flock.New(filepath.Join(o.dataDir, lockFileName))
		locked, err := lock.TryLock()
		if err != nil {
			return report, tserr.New(tserr.ErrCodeInternal, "acquire reindex lock", err)
		}
		if !locked {
			return report, tserr.InvalidInput("another reindex is already running")
		}
		defer func() { _ = lock.Unlock() }()
	}

	cfg, err := o.settings.Get(ctx)
	if err != nil {
		return report, err
	}

	pool, err := ants.NewPool(o.workers)
	if err != nil {
		return report, tserr.New(tserr.ErrCodeInternal, "create worker pool", err)
	}
	defer pool.Release()

	for _, entityType := range []catalog.EntityType{catalog.EntityProduct, catalog.EntitySupplier} {
		n, skipped, err := o.reindexType(ctx, pool, entityType, cfg)
		if err != nil {
			return report, err
		}
		report.Reindexed[entityType] = n
		report.Skipped += skipped
	}

	report.Duration = time.Since(start)
	o.logger.Info("reindex complete",
		"products", report.Reindexed[catalog.EntityProduct],
		"suppliers", report.Reindexed[catalog.EntitySupplier],
		"skipped", report.Skipped,
		"duration", report.Duration)
	return report, nil
}

// reindexType walks one entity type page by page through the worker pool.
func (o *Orchestrator) reindexType(ctx context.Context, pool *ants.Pool, entityType catalog.EntityType, cfg settings.Settings) (reindexed, skipped int, err error) {
	var (
		mu     sync.Mutex
		cursor string
	)

	for {
		if err := ctx.Err(); err != nil {
			return reindexed, skipped, err
		}

		refs, next, done, err := o.catalog.ListPage(ctx, entityType, cursor, cfg.ReindexBatchSize)
		if err != nil {
			return reindexed, skipped, err
		}

		var wg sync.WaitGroup
		for _, ref := range refs {
			ref := ref
			wg.Add(1)
			submitErr := pool.Submit(func() {
				defer wg.Done()
				ok := o.reindexEntity(ctx, ref, cfg)
				mu.Lock()
				if ok {
					reindexed++
				} else {
					skipped++
				}
				mu.Unlock()
			})
			if submitErr != nil {
				wg.Done()
				return reindexed, skipped, tserr.New(tserr.ErrCodeInternal, "submit reindex task", submitErr)
			}
		}
		wg.Wait()

		if done {
			return reindexed, skipped, nil
		}
		cursor = next
	}
}

// reindexEntity processes one entity end to end. An entity that vanished
// between listing and processing is skipped, not fatal: the catalog moved
// on and so should the index.
func (o *Orchestrator) reindexEntity(ctx context.Context, ref catalog.EntityRef, cfg settings.Settings) bool {
	entity, err := o.catalog.GetEntity(ctx, ref.EntityType, ref.ParentID)
	if err != nil {
		o.logger.Warn("entity vanished during reindex, skipping",
			"entity_type", ref.EntityType, "id", ref.ParentID, "error", err)
		return false
	}

	contents := chunk.Split(entity.SearchText(), cfg.ChunkTargetChars)
	embeddings, model, err := o.embedChunks(ctx, contents)
	if err != nil {
		o.logger.Warn("embedding failed during reindex, skipping",
			"entity_type", ref.EntityType, "id", ref.ParentID, "error", err)
		return false
	}

	if err := o.chunks.ReplaceChunks(ctx, ref, contents, embeddings, model); err != nil {
		o.logger.Warn("chunk replace failed, skipping",
			"entity_type", ref.EntityType, "id", ref.ParentID, "error", err)
		return false
	}

	if err := o.lexical.Upsert(ctx, []lexical.Document{lexical.DocumentFor(entity)}); err != nil {
		o.logger.Warn("keyword index update failed, skipping",
			"entity_type", ref.EntityType, "id", ref.ParentID, "error", err)
		return false
	}
	return true
}

// ReindexOne refreshes a single entity, for incremental catalog updates.
func (o *Orchestrator) ReindexOne(ctx context.Context, ref catalog.EntityRef) error {
	cfg, err := o.settings.Get(ctx)
	if err != nil {
		return err
	}
	entity, err := o.catalog.GetEntity(ctx, ref.EntityType, ref.ParentID)
	if err != nil {
		return err
	}

	contents := chunk.Split(entity.SearchText(), cfg.ChunkTargetChars)
	embeddings, model, err := o.embedChunks(ctx, contents)
	if err != nil {
		return err
	}
	if err := o.chunks.ReplaceChunks(ctx, ref, contents, embeddings, model); err != nil {
		return err
	}
	return o.lexical.Upsert(ctx, []lexical.Document{lexical.DocumentFor(entity)})
}

// embedChunks embeds one entity's chunks and returns the model that
// actually produced the vectors, so a degraded batch is stored under the
// fallback model's name rather than the configured one.
func (o *Orchestrator) embedChunks(ctx context.Context, contents []string) ([][]float64, string, error) {
	if tagger, ok := o.embedder.(embed.BatchTagger); ok {
		return tagger.EmbedBatchTagged(ctx, contents)
	}
	embeddings, err := o.embedder.EmbedBatch(ctx, contents)
	return embeddings, o.embedder.ModelName(), err
}

// Remove drops one entity from the chunk store and keyword index.
func (o *Orchestrator) Remove(ctx context.Context, ref catalog.EntityRef) error {
	if err := o.chunks.DeleteChunks(ctx, ref); err != nil {
		return err
	}
	return o.lexical.Delete(ctx, ref.EntityType, []string{ref.ParentID})
}
