package search

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/mercavo/tradesearch/internal/catalog"
	"github.com/mercavo/tradesearch/internal/chunkstore"
	"github.com/mercavo/tradesearch/internal/embed"
	tserr "github.com/mercavo/tradesearch/internal/errors"
	"github.com/mercavo/tradesearch/internal/lexical"
	"github.com/mercavo/tradesearch/internal/settings"
)

// Engine runs hybrid searches over the catalog.
type Engine struct {
	catalog  *catalog.Store
	chunks   *chunkstore.Store
	lexical  *lexical.Index
	embedder embed.Provider
	reranker Reranker
	settings *settings.Store
	logger   *slog.Logger
}

// Options wires the engine's dependencies.
type Options struct {
	Catalog  *catalog.Store
	Chunks   *chunkstore.Store
	Lexical  *lexical.Index
	Embedder embed.Provider
	Reranker Reranker
	Settings *settings.Store
	Logger   *slog.Logger
}

// NewEngine creates a search engine. A nil reranker disables the
// cross-encoder pass.
func NewEngine(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reranker := opts.Reranker
	if reranker == nil {
		reranker = NoOpReranker{}
	}
	return &Engine{
		catalog:  opts.Catalog,
		chunks:   opts.Chunks,
		lexical:  opts.Lexical,
		embedder: opts.Embedder,
		reranker: reranker,
		settings: opts.Settings,
		logger:   logger.With("component", "search"),
	}
}

// Search runs the full hybrid pipeline for one request. Provider outages
// degrade the ranking but never fail the call; only invalid input or a
// broken store returns an error.
func (e *Engine) Search(ctx context.Context, req Request) ([]Result, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, tserr.InvalidInput("query is required")
	}
	if !req.EntityType.Valid() {
		return nil, tserr.InvalidInput("entity type must be product or supplier")
	}

	cfg, err := e.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit <= 0 {
		limit = cfg.LimitFor(req.EntityType == catalog.EntitySupplier)
	}

	// Keyword prefilter and query embedding are independent; run both.
	var (
		hits     []lexical.Hit
		queryVec []float64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var searchErr error
		hits, searchErr = e.lexical.Search(gctx, req.Query, req.EntityType, lexical.Filter{
			CategoryID: req.Filters.CategoryID,
			Country:    req.Filters.Country,
			ExcludeID:  req.Filters.ExcludeID,
		}, cfg.PrefilterLimit)
		return searchErr
	})
	g.Go(func() error {
		vec, embedErr := e.embedder.Embed(gctx, req.Query)
		if embedErr != nil {
			// Degrade to keyword-only ranking rather than failing the call.
			e.logger.Warn("query embedding failed, keyword-only ranking", "error", embedErr)
			return nil
		}
		queryVec = vec
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	keyword := make([]ranked, len(hits))
	candidates := make([]string, len(hits))
	for i, h := range hits {
		keyword[i] = ranked{parentID: h.ParentID, score: h.Score}
		candidates[i] = h.ParentID
	}

	// No keyword hits: fall back to recent entities so semantic scoring
	// still has a candidate pool.
	if len(candidates) == 0 {
		refs, err := e.catalog.ListRecent(ctx, req.EntityType, catalog.ListFilter{
			CategoryID: req.Filters.CategoryID,
			Country:    req.Filters.Country,
			ExcludeID:  req.Filters.ExcludeID,
		}, cfg.PrefilterLimit)
		if err != nil {
			return nil, err
		}
		candidates = make([]string, len(refs))
		for i, r := range refs {
			candidates[i] = r.ParentID
		}
	}
	if len(candidates) == 0 {
		return []Result{}, nil
	}

	chunksByParent, err := e.chunks.GetChunksForMany(ctx, req.EntityType, candidates)
	if err != nil {
		return nil, err
	}
	semantic := semanticRank(queryVec, chunksByParent, cfg.PrefilterLimit)

	union := unionIDs(keyword, semantic)
	boosts, err := e.catalog.BoostsForMany(ctx, req.EntityType, union)
	if err != nil {
		return nil, err
	}

	fused := fuse(keyword, semantic, cfg, boosts)

	if req.Rerank && cfg.RerankEnabled {
		fused = e.rerankHead(ctx, req, fused, cfg)
	}

	if len(fused) > limit {
		fused = fused[:limit]
	}
	return fused, nil
}

// rerankHead races the cross-encoder against the configured deadline over
// the fusion head. Failures and timeouts leave the fused order untouched.
func (e *Engine) rerankHead(ctx context.Context, req Request, fused []Result, cfg settings.Settings) []Result {
	topK := cfg.RerankTopK
	if topK > len(fused) {
		topK = len(fused)
	}
	if topK <= 0 {
		return fused
	}

	ids := make([]string, topK)
	for i := 0; i < topK; i++ {
		ids[i] = fused[i].ParentID
	}
	entities, err := e.catalog.GetEntities(ctx, req.EntityType, ids)
	if err != nil || len(entities) != topK {
		e.logger.Warn("rerank text fetch incomplete, serving fused order",
			"error", err, "expected", topK, "got", len(entities))
		return fused
	}
	docs := make([]string, topK)
	for i, ent := range entities {
		docs[i] = ent.RerankText()
	}

	return applyRerank(ctx, e.reranker, req.Query, fused, docs, topK,
		cfg.RerankTimeout(), cfg.RerankWeight, e.logger)
}

// KeywordOnly ranks by the keyword index alone, for quality measurement.
func (e *Engine) KeywordOnly(ctx context.Context, req Request) ([]string, error) {
	if !req.EntityType.Valid() {
		return nil, tserr.InvalidInput("entity type must be product or supplier")
	}
	cfg, err := e.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit <= 0 {
		limit = cfg.LimitFor(req.EntityType == catalog.EntitySupplier)
	}

	hits, err := e.lexical.Search(ctx, req.Query, req.EntityType, lexical.Filter{
		CategoryID: req.Filters.CategoryID,
		Country:    req.Filters.Country,
		ExcludeID:  req.Filters.ExcludeID,
	}, limit)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ParentID
	}
	return ids, nil
}

// DenseOnly ranks by semantic similarity over the recent-entity pool, for
// quality measurement.
func (e *Engine) DenseOnly(ctx context.Context, req Request) ([]string, error) {
	if !req.EntityType.Valid() {
		return nil, tserr.InvalidInput("entity type must be product or supplier")
	}
	cfg, err := e.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit <= 0 {
		limit = cfg.LimitFor(req.EntityType == catalog.EntitySupplier)
	}

	refs, err := e.catalog.ListRecent(ctx, req.EntityType, catalog.ListFilter{
		CategoryID: req.Filters.CategoryID,
		Country:    req.Filters.Country,
		ExcludeID:  req.Filters.ExcludeID,
	}, cfg.PrefilterLimit)
	if err != nil {
		return nil, err
	}
	candidates := make([]string, len(refs))
	for i, r := range refs {
		candidates[i] = r.ParentID
	}

	queryVec, err := e.embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, err
	}
	chunksByParent, err := e.chunks.GetChunksForMany(ctx, req.EntityType, candidates)
	if err != nil {
		return nil, err
	}

	rankedList := semanticRank(queryVec, chunksByParent, limit)
	ids := make([]string, len(rankedList))
	for i, r := range rankedList {
		ids[i] = r.parentID
	}
	return ids, nil
}

// Snippets returns the parent's chunks most similar to the query, best
// first, for result highlighting.
func (e *Engine) Snippets(ctx context.Context, entityType catalog.EntityType, parentID, query string, limit int) ([]Snippet, error) {
	if !entityType.Valid() {
		return nil, tserr.InvalidInput("entity type must be product or supplier")
	}
	if parentID == "" {
		return nil, tserr.InvalidInput("parent id is required")
	}
	if limit <= 0 {
		limit = 3
	}

	chunks, err := e.chunks.GetChunks(ctx, catalog.EntityRef{EntityType: entityType, ParentID: parentID})
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return []Snippet{}, nil
	}

	queryVec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	out := make([]Snippet, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, Snippet{
			ParentID: c.ParentID,
			Ord:      c.Ord,
			Content:  c.Content,
			Score:    cosineSimilarity(queryVec, c.Embedding),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Ord < out[j].Ord
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SnippetsForMany scores every chunk of each parent against the query and
// returns the best perParent snippets per parent. The query is embedded once.
// Parents without chunks map to an empty slice.
func (e *Engine) SnippetsForMany(ctx context.Context, entityType catalog.EntityType, parentIDs []string, query string, perParent int) (map[string][]Snippet, error) {
	if !entityType.Valid() {
		return nil, tserr.InvalidInput("entity type must be product or supplier")
	}
	if perParent <= 0 {
		perParent = 1
	}

	queryVec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	chunksByParent, err := e.chunks.GetChunksForMany(ctx, entityType, parentIDs)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]Snippet, len(parentIDs))
	for _, pid := range parentIDs {
		chunks := chunksByParent[pid]
		scored := make([]Snippet, 0, len(chunks))
		for _, c := range chunks {
			sim := cosineSimilarity(queryVec, c.Embedding)
			if sim <= 0 {
				continue
			}
			scored = append(scored, Snippet{
				ParentID: c.ParentID,
				Ord:      c.Ord,
				Content:  c.Content,
				Score:    sim,
			})
		}
		sort.Slice(scored, func(i, j int) bool {
			if scored[i].Score != scored[j].Score {
				return scored[i].Score > scored[j].Score
			}
			return scored[i].Ord < scored[j].Ord
		})
		if len(scored) > perParent {
			scored = scored[:perParent]
		}
		out[pid] = scored
	}
	return out, nil
}

// unionIDs collects the distinct parent IDs across both rankings.
func unionIDs(keyword, semantic []ranked) []string {
	seen := make(map[string]struct{}, len(keyword)+len(semantic))
	out := make([]string, 0, len(keyword)+len(semantic))
	for _, lists := range [][]ranked{keyword, semantic} {
		for _, r := range lists {
			if _, ok := seen[r.parentID]; ok {
				continue
			}
			seen[r.parentID] = struct{}{}
			out = append(out, r.parentID)
		}
	}
	return out
}
