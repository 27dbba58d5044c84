package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mercavo/tradesearch/internal/catalog"
	"github.com/mercavo/tradesearch/internal/eval"
	"github.com/mercavo/tradesearch/internal/search"
)

func TestSearchResultsTable(t *testing.T) {
	var buf bytes.Buffer
	w := NewPlain(&buf)

	w.SearchResults(catalog.EntityProduct, []search.Result{
		{ParentID: "p1", Score: 0.91, KeywordRank: 1, SemanticRank: 2, Reranked: true},
		{ParentID: "p2", Score: 0.55, KeywordRank: 2},
	})

	out := buf.String()
	assert.Contains(t, out, "p1")
	assert.Contains(t, out, "0.9100")
	assert.Contains(t, out, "yes")
	assert.Contains(t, out, "2 product results")
	// p2 has no semantic rank.
	assert.Contains(t, out, "-")
}

func TestSearchResultsEmpty(t *testing.T) {
	var buf bytes.Buffer
	w := NewPlain(&buf)

	w.SearchResults(catalog.EntitySupplier, nil)
	assert.Contains(t, buf.String(), "no results")
}

func TestSnippets(t *testing.T) {
	var buf bytes.Buffer
	w := NewPlain(&buf)

	w.Snippets([]search.Snippet{
		{Ord: 0, Score: 0.8, Content: "Stainless steel hex head screws.\nPacked in boxes."},
	})

	out := buf.String()
	assert.Contains(t, out, "score 0.8000")
	// Newlines collapse so one snippet stays one line.
	assert.Contains(t, out, "screws. Packed")
}

func TestEvalReport(t *testing.T) {
	var buf bytes.Buffer
	w := NewPlain(&buf)

	w.EvalReport(eval.Report{
		Rows: []eval.Row{
			{Query: "hex screw", EntityType: catalog.EntityProduct, Mode: eval.ModeHybrid, NDCG10: 1, Recall50: 1, MRR: 1},
		},
		Summaries: []eval.Summary{
			{EntityType: catalog.EntityProduct, Queries: 1, NDCG10: 1, Recall50: 1, MRR: 1},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "NDCG@10")
	assert.Contains(t, out, "hex screw")
	assert.Contains(t, out, "SUMMARY")
	assert.Contains(t, out, "queries=1")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	long := truncate("abcdefghijklmnop", 10)
	assert.Len(t, long, 10)
	assert.Contains(t, long, "...")
}

func TestPlainWriterEmitsNoEscapes(t *testing.T) {
	var buf bytes.Buffer
	w := NewPlain(&buf)

	w.Warnf("careful: %d", 7)
	w.Printf("plain %s", "line")

	assert.NotContains(t, buf.String(), "\x1b[")
	assert.Contains(t, buf.String(), "careful: 7")
}
