package eval

import (
	"context"
	"log/slog"

	"github.com/mercavo/tradesearch/internal/catalog"
	"github.com/mercavo/tradesearch/internal/search"
)

// Mode is one retrieval configuration under measurement.
type Mode string

const (
	// ModeKeyword ranks by the keyword index alone.
	ModeKeyword Mode = "keyword"
	// ModeDense ranks by semantic similarity alone.
	ModeDense Mode = "dense"
	// ModeHybrid is the fused pipeline without reranking.
	ModeHybrid Mode = "hybrid"
	// ModeHybridRerank is the full pipeline including the cross-encoder.
	ModeHybridRerank Mode = "hybrid_rerank"
)

// AllModes lists the measured configurations in report order.
var AllModes = []Mode{ModeKeyword, ModeDense, ModeHybrid, ModeHybridRerank}

// Metric cutoffs.
const (
	ndcgCutoff   = 10
	recallCutoff = 50
)

// Row is the measured quality of one query under one mode.
type Row struct {
	Query      string
	EntityType catalog.EntityType
	Mode       Mode
	NDCG10     float64
	Recall50   float64
	MRR        float64
}

// Summary is the mean quality of the full pipeline for one entity type.
type Summary struct {
	EntityType catalog.EntityType
	Queries    int
	NDCG10     float64
	Recall50   float64
	MRR        float64
}

// Report is the complete harness output.
type Report struct {
	Rows      []Row
	Summaries []Summary
}

// Harness runs judged queries through each retrieval mode.
type Harness struct {
	engine *search.Engine
	logger *slog.Logger
}

// NewHarness creates an eval harness over the given engine.
func NewHarness(engine *search.Engine, logger *slog.Logger) *Harness {
	if logger == nil {
		logger = slog.Default()
	}
	return &Harness{engine: engine, logger: logger.With("component", "eval")}
}

// Run measures every judgment under every mode. The summary aggregates the
// full pipeline (hybrid_rerank) per entity type, since that is what users
// actually see.
func (h *Harness) Run(ctx context.Context, ds *Dataset) (Report, error) {
	if err := ds.Validate(); err != nil {
		return Report{}, err
	}

	var report Report
	for _, j := range ds.Judgments {
		relevant := j.relevantSet()
		entityType := catalog.EntityType(j.EntityType)

		for _, mode := range AllModes {
			ids, err := h.retrieve(ctx, mode, j)
			if err != nil {
				return Report{}, err
			}
			report.Rows = append(report.Rows, Row{
				Query:      j.Query,
				EntityType: entityType,
				Mode:       mode,
				NDCG10:     ndcgAtK(ids, relevant, ndcgCutoff),
				Recall50:   recallAtK(ids, relevant, recallCutoff),
				MRR:        mrr(ids, relevant),
			})
		}
	}

	report.Summaries = summarize(report.Rows)
	return report, nil
}

// retrieve returns the ranked parent IDs for one judgment under one mode.
// The judgment's category and country filters scope every mode the same way.
func (h *Harness) retrieve(ctx context.Context, mode Mode, j Judgment) ([]string, error) {
	req := search.Request{
		Query:      j.Query,
		EntityType: catalog.EntityType(j.EntityType),
		Limit:      recallCutoff,
		Filters: search.Filters{
			CategoryID: j.CategoryID,
			Country:    j.Country,
		},
	}
	switch mode {
	case ModeKeyword:
		return h.engine.KeywordOnly(ctx, req)
	case ModeDense:
		return h.engine.DenseOnly(ctx, req)
	case ModeHybridRerank:
		req.Rerank = true
	}

	results, err := h.engine.Search(ctx, req)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ParentID
	}
	return ids, nil
}

// summarize averages the full-pipeline rows per entity type.
func summarize(rows []Row) []Summary {
	byType := make(map[catalog.EntityType]*Summary)
	for _, row := range rows {
		if row.Mode != ModeHybridRerank {
			continue
		}
		s, ok := byType[row.EntityType]
		if !ok {
			s = &Summary{EntityType: row.EntityType}
			byType[row.EntityType] = s
		}
		s.Queries++
		s.NDCG10 += row.NDCG10
		s.Recall50 += row.Recall50
		s.MRR += row.MRR
	}

	out := make([]Summary, 0, len(byType))
	for _, entityType := range []catalog.EntityType{catalog.EntityProduct, catalog.EntitySupplier} {
		s, ok := byType[entityType]
		if !ok {
			continue
		}
		n := float64(s.Queries)
		s.NDCG10 /= n
		s.Recall50 /= n
		s.MRR /= n
		out = append(out, *s)
	}
	return out
}
