// Package mcpserver exposes the retrieval engine over the Model Context
// Protocol, so AI clients can search the catalog, inspect snippets, tune
// settings, trigger reindexes, and run the eval harness.
package mcpserver

import (
	"context"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mercavo/tradesearch/internal/catalog"
	"github.com/mercavo/tradesearch/internal/chunkstore"
	"github.com/mercavo/tradesearch/internal/embed"
	tserr "github.com/mercavo/tradesearch/internal/errors"
	"github.com/mercavo/tradesearch/internal/eval"
	"github.com/mercavo/tradesearch/internal/lexical"
	"github.com/mercavo/tradesearch/internal/reindex"
	"github.com/mercavo/tradesearch/internal/search"
	"github.com/mercavo/tradesearch/internal/settings"
	"github.com/mercavo/tradesearch/pkg/version"
)

// Server bridges MCP clients with the retrieval engine.
type Server struct {
	mcp      *mcp.Server
	engine   *search.Engine
	catalog  *catalog.Store
	chunks   *chunkstore.Store
	lexical  *lexical.Index
	embedder embed.Provider
	settings *settings.Store
	reindex  *reindex.Orchestrator
	harness  *eval.Harness
	logger   *slog.Logger
}

// Options wires the server's dependencies.
type Options struct {
	Engine   *search.Engine
	Catalog  *catalog.Store
	Chunks   *chunkstore.Store
	Lexical  *lexical.Index
	Embedder embed.Provider
	Settings *settings.Store
	Reindex  *reindex.Orchestrator
	Harness  *eval.Harness
	Logger   *slog.Logger
}

// NewServer creates the MCP server and registers its tools.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		engine:   opts.Engine,
		catalog:  opts.Catalog,
		chunks:   opts.Chunks,
		lexical:  opts.Lexical,
		embedder: opts.Embedder,
		settings: opts.Settings,
		reindex:  opts.Reindex,
		harness:  opts.Harness,
		logger:   logger.With("component", "mcp"),
	}
	s.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    "tradesearch",
		Version: version.Short(),
	}, nil)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Hybrid search over marketplace products and suppliers. Combines keyword matching with semantic similarity and trust-aware ranking; optionally applies a cross-encoder rerank to the head of the list.",
	}, s.searchHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "top_snippets",
		Description: "Return the text chunks of one product or supplier most similar to a query, for result highlighting.",
	}, s.snippetsHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "reindex",
		Description: "Rebuild the chunk store and keyword index from the catalog. Idempotent; only one run at a time per data directory.",
	}, s.reindexHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "settings_get",
		Description: "Read the effective ranking settings (fusion weights, limits, rerank knobs).",
	}, s.settingsGetHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "settings_update",
		Description: "Update ranking settings. Only the fields provided change; the rest keep their current values.",
	}, s.settingsUpdateHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "run_evals",
		Description: "Run the retrieval quality harness over a judged query dataset and report NDCG@10, Recall@50, and MRR per mode.",
	}, s.evalsHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "status",
		Description: "Report index freshness: entity counts, chunk counts, keyword index size, and the active embedding model.",
	}, s.statusHandler)

	s.logger.Info("mcp tools registered", "count", 7)
}

// Run serves MCP over stdio until the context ends.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp server starting", "transport", "stdio")
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query      string `json:"query" jsonschema:"the search query"`
	EntityType string `json:"entity_type" jsonschema:"what to search: product or supplier"`
	CategoryID string `json:"category_id,omitempty" jsonschema:"restrict products to one category"`
	Country    string `json:"country,omitempty" jsonschema:"restrict suppliers to one country code"`
	ExcludeID  string `json:"exclude_id,omitempty" jsonschema:"omit one entity from the results"`
	Limit      int    `json:"limit,omitempty" jsonschema:"maximum results, default depends on entity type"`
	Rerank     bool   `json:"rerank,omitempty" jsonschema:"apply the cross-encoder rerank to the head of the list"`
}

// SearchResultOutput is one ranked entity.
type SearchResultOutput struct {
	ID           string  `json:"id"`
	Score        float64 `json:"score"`
	KeywordRank  int     `json:"keyword_rank,omitempty"`
	SemanticRank int     `json:"semantic_rank,omitempty"`
	Reranked     bool    `json:"reranked,omitempty"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
}

func (s *Server) searchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult, SearchOutput, error,
) {
	results, err := s.engine.Search(ctx, search.Request{
		Query:      input.Query,
		EntityType: catalog.EntityType(input.EntityType),
		Filters: search.Filters{
			CategoryID: input.CategoryID,
			Country:    input.Country,
			ExcludeID:  input.ExcludeID,
		},
		Limit:  input.Limit,
		Rerank: input.Rerank,
	})
	if err != nil {
		return nil, SearchOutput{}, err
	}

	out := SearchOutput{Results: make([]SearchResultOutput, len(results))}
	for i, r := range results {
		out.Results[i] = SearchResultOutput{
			ID:           r.ParentID,
			Score:        r.Score,
			KeywordRank:  r.KeywordRank,
			SemanticRank: r.SemanticRank,
			Reranked:     r.Reranked,
		}
	}
	return nil, out, nil
}

// SnippetsInput is the input schema for the top_snippets tool.
type SnippetsInput struct {
	EntityType string `json:"entity_type" jsonschema:"product or supplier"`
	ID         string `json:"id" jsonschema:"the entity whose chunks to score"`
	Query      string `json:"query" jsonschema:"the query to score chunks against"`
	Limit      int    `json:"limit,omitempty" jsonschema:"maximum snippets, default 3"`
}

// SnippetOutput is one scored chunk.
type SnippetOutput struct {
	Ord     int     `json:"ord"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// SnippetsOutput is the output schema for the top_snippets tool.
type SnippetsOutput struct {
	Snippets []SnippetOutput `json:"snippets"`
}

func (s *Server) snippetsHandler(ctx context.Context, _ *mcp.CallToolRequest, input SnippetsInput) (
	*mcp.CallToolResult, SnippetsOutput, error,
) {
	snippets, err := s.engine.Snippets(ctx,
		catalog.EntityType(input.EntityType), input.ID, input.Query, input.Limit)
	if err != nil {
		return nil, SnippetsOutput{}, err
	}

	out := SnippetsOutput{Snippets: make([]SnippetOutput, len(snippets))}
	for i, sn := range snippets {
		out.Snippets[i] = SnippetOutput{Ord: sn.Ord, Content: sn.Content, Score: sn.Score}
	}
	return nil, out, nil
}

// ReindexInput is the input schema for the reindex tool (no parameters).
type ReindexInput struct{}

// ReindexOutput is the output schema for the reindex tool.
type ReindexOutput struct {
	Products  int    `json:"products"`
	Suppliers int    `json:"suppliers"`
	Skipped   int    `json:"skipped"`
	Duration  string `json:"duration"`
}

func (s *Server) reindexHandler(ctx context.Context, _ *mcp.CallToolRequest, _ ReindexInput) (
	*mcp.CallToolResult, ReindexOutput, error,
) {
	report, err := s.reindex.Run(ctx)
	if err != nil {
		return nil, ReindexOutput{}, err
	}
	return nil, ReindexOutput{
		Products:  report.Reindexed[catalog.EntityProduct],
		Suppliers: report.Reindexed[catalog.EntitySupplier],
		Skipped:   report.Skipped,
		Duration:  report.Duration.String(),
	}, nil
}

// SettingsGetInput is the input schema for settings_get (no parameters).
type SettingsGetInput struct{}

// SettingsOutput mirrors the effective settings.
type SettingsOutput struct {
	Settings settings.Settings `json:"settings"`
}

func (s *Server) settingsGetHandler(ctx context.Context, _ *mcp.CallToolRequest, _ SettingsGetInput) (
	*mcp.CallToolResult, SettingsOutput, error,
) {
	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return nil, SettingsOutput{}, err
	}
	return nil, SettingsOutput{Settings: cfg}, nil
}

// SettingsUpdateInput is the sparse settings patch.
type SettingsUpdateInput struct {
	KeywordWeight        *float64 `json:"keywordWeight,omitempty" jsonschema:"fusion weight of the keyword ranking"`
	SemanticWeight       *float64 `json:"semanticWeight,omitempty" jsonschema:"fusion weight of the semantic ranking"`
	InterleaveKeyword    *int     `json:"interleaveKeyword,omitempty" jsonschema:"keyword slots per interleave cycle"`
	InterleaveSemantic   *int     `json:"interleaveSemantic,omitempty" jsonschema:"semantic slots per interleave cycle"`
	DefaultLimit         *int     `json:"defaultLimit,omitempty" jsonschema:"default product result count"`
	SupplierDefaultLimit *int     `json:"supplierDefaultLimit,omitempty" jsonschema:"default supplier result count"`
	PrefilterLimit       *int     `json:"prefilterLimit,omitempty" jsonschema:"keyword candidate pool size"`

	VerifiedBoost           *float64 `json:"verifiedBoost,omitempty" jsonschema:"score boost for verified entities"`
	GoldVerifiedBoost       *float64 `json:"goldVerifiedBoost,omitempty" jsonschema:"score boost for gold-verified entities"`
	TradeAssuranceBoost     *float64 `json:"tradeAssuranceBoost,omitempty" jsonschema:"score boost for the trade assurance badge"`
	ServiceRatingMultiplier *float64 `json:"serviceRatingMultiplier,omitempty" jsonschema:"max boost from the service rating"`
	ResponseRateMultiplier  *float64 `json:"responseRateMultiplier,omitempty" jsonschema:"max boost from the response rate"`

	RerankEnabled        *bool    `json:"rerankEnabled,omitempty" jsonschema:"allow the cross-encoder pass"`
	RerankTopK           *int     `json:"rerankTopK,omitempty" jsonschema:"how many head results the cross-encoder scores"`
	RerankTimeoutMs      *int     `json:"rerankTimeoutMs,omitempty" jsonschema:"rerank deadline in milliseconds, floored at 200"`
	RerankWeight         *float64 `json:"rerankWeight,omitempty" jsonschema:"blend weight of the cross-encoder score"`
	ReindexBatchSize     *int     `json:"reindexBatchSize,omitempty" jsonschema:"catalog page size during reindex"`
	ChunkTargetChars     *int     `json:"chunkTargetChars,omitempty" jsonschema:"target chunk size in characters"`
}

func (s *Server) settingsUpdateHandler(ctx context.Context, _ *mcp.CallToolRequest, input SettingsUpdateInput) (
	*mcp.CallToolResult, SettingsOutput, error,
) {
	cfg, err := s.settings.Update(ctx, settings.Patch{
		KeywordWeight:        input.KeywordWeight,
		SemanticWeight:       input.SemanticWeight,
		InterleaveKeyword:    input.InterleaveKeyword,
		InterleaveSemantic:   input.InterleaveSemantic,
		DefaultLimit:         input.DefaultLimit,
		SupplierDefaultLimit: input.SupplierDefaultLimit,
		PrefilterLimit:       input.PrefilterLimit,

		VerifiedBoost:           input.VerifiedBoost,
		GoldVerifiedBoost:       input.GoldVerifiedBoost,
		TradeAssuranceBoost:     input.TradeAssuranceBoost,
		ServiceRatingMultiplier: input.ServiceRatingMultiplier,
		ResponseRateMultiplier:  input.ResponseRateMultiplier,

		RerankEnabled:        input.RerankEnabled,
		RerankTopK:           input.RerankTopK,
		RerankTimeoutMs:      input.RerankTimeoutMs,
		RerankWeight:         input.RerankWeight,
		ReindexBatchSize:     input.ReindexBatchSize,
		ChunkTargetChars:     input.ChunkTargetChars,
	})
	if err != nil {
		return nil, SettingsOutput{}, err
	}
	return nil, SettingsOutput{Settings: cfg}, nil
}

// EvalsInput is the input schema for the run_evals tool.
type EvalsInput struct {
	DatasetPath string `json:"dataset_path" jsonschema:"path to the YAML judgment file"`
}

// EvalRowOutput is one measured query under one mode.
type EvalRowOutput struct {
	Query      string  `json:"query"`
	EntityType string  `json:"entity_type"`
	Mode       string  `json:"mode"`
	NDCG10     float64 `json:"ndcg_10"`
	Recall50   float64 `json:"recall_50"`
	MRR        float64 `json:"mrr"`
}

// EvalSummaryOutput is the mean full-pipeline quality for one entity type.
type EvalSummaryOutput struct {
	EntityType string  `json:"entity_type"`
	Queries    int     `json:"queries"`
	NDCG10     float64 `json:"ndcg_10"`
	Recall50   float64 `json:"recall_50"`
	MRR        float64 `json:"mrr"`
}

// EvalsOutput is the output schema for the run_evals tool.
type EvalsOutput struct {
	Rows      []EvalRowOutput     `json:"rows"`
	Summaries []EvalSummaryOutput `json:"summaries"`
}

func (s *Server) evalsHandler(ctx context.Context, _ *mcp.CallToolRequest, input EvalsInput) (
	*mcp.CallToolResult, EvalsOutput, error,
) {
	if input.DatasetPath == "" {
		return nil, EvalsOutput{}, tserr.InvalidInput("dataset_path is required")
	}
	ds, err := eval.LoadDataset(input.DatasetPath)
	if err != nil {
		return nil, EvalsOutput{}, err
	}
	report, err := s.harness.Run(ctx, ds)
	if err != nil {
		return nil, EvalsOutput{}, err
	}

	out := EvalsOutput{
		Rows:      make([]EvalRowOutput, len(report.Rows)),
		Summaries: make([]EvalSummaryOutput, len(report.Summaries)),
	}
	for i, row := range report.Rows {
		out.Rows[i] = EvalRowOutput{
			Query:      row.Query,
			EntityType: string(row.EntityType),
			Mode:       string(row.Mode),
			NDCG10:     row.NDCG10,
			Recall50:   row.Recall50,
			MRR:        row.MRR,
		}
	}
	for i, sum := range report.Summaries {
		out.Summaries[i] = EvalSummaryOutput{
			EntityType: string(sum.EntityType),
			Queries:    sum.Queries,
			NDCG10:     sum.NDCG10,
			Recall50:   sum.Recall50,
			MRR:        sum.MRR,
		}
	}
	return nil, out, nil
}

// StatusInput is the input schema for the status tool (no parameters).
type StatusInput struct{}

// StatusOutput reports index freshness and active providers.
type StatusOutput struct {
	Products       int    `json:"products"`
	Suppliers      int    `json:"suppliers"`
	Chunks         int    `json:"chunks"`
	ChunkedParents int    `json:"chunked_parents"`
	KeywordDocs    uint64 `json:"keyword_docs"`
	EmbeddingModel string `json:"embedding_model"`
	NewestChunkAt  string `json:"newest_chunk_at,omitempty"`
	Version        string `json:"version"`
}

func (s *Server) statusHandler(ctx context.Context, _ *mcp.CallToolRequest, _ StatusInput) (
	*mcp.CallToolResult, StatusOutput, error,
) {
	products, err := s.catalog.Count(ctx, catalog.EntityProduct)
	if err != nil {
		return nil, StatusOutput{}, err
	}
	suppliers, err := s.catalog.Count(ctx, catalog.EntitySupplier)
	if err != nil {
		return nil, StatusOutput{}, err
	}
	chunkStats, err := s.chunks.Stats(ctx)
	if err != nil {
		return nil, StatusOutput{}, err
	}
	keywordDocs, err := s.lexical.DocCount()
	if err != nil {
		return nil, StatusOutput{}, err
	}

	out := StatusOutput{
		Products:       products,
		Suppliers:      suppliers,
		Chunks:         chunkStats.Chunks,
		ChunkedParents: chunkStats.Parents,
		KeywordDocs:    keywordDocs,
		EmbeddingModel: s.embedder.ModelName(),
		Version:        version.Short(),
	}
	if !chunkStats.NewestAt.IsZero() {
		out.NewestChunkAt = chunkStats.NewestAt.Format(time.RFC3339)
	}
	return nil, out, nil
}
