// Package output renders CLI results: status lines, search result tables,
// and eval report tables. Styling is applied only when writing to a
// terminal; piped output stays plain.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/mercavo/tradesearch/internal/catalog"
	"github.com/mercavo/tradesearch/internal/eval"
	"github.com/mercavo/tradesearch/internal/search"
)

// Writer renders formatted output.
type Writer struct {
	out      io.Writer
	useStyle bool

	header  lipgloss.Style
	accent  lipgloss.Style
	dim     lipgloss.Style
	warning lipgloss.Style
}

// New creates a Writer; styling turns on when out is a terminal.
func New(out io.Writer) *Writer {
	useStyle := false
	if f, ok := out.(*os.File); ok {
		useStyle = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return newWriter(out, useStyle)
}

// NewPlain creates a Writer with styling disabled, for tests and pipes.
func NewPlain(out io.Writer) *Writer {
	return newWriter(out, false)
}

func newWriter(out io.Writer, useStyle bool) *Writer {
	return &Writer{
		out:      out,
		useStyle: useStyle,
		header:   lipgloss.NewStyle().Bold(true),
		accent:   lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
		dim:      lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		warning:  lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
	}
}

func (w *Writer) render(style lipgloss.Style, s string) string {
	if !w.useStyle {
		return s
	}
	return style.Render(s)
}

// Printf writes a formatted line.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(w.out, format+"\n", args...)
}

// Warnf writes a warning line.
func (w *Writer) Warnf(format string, args ...any) {
	_, _ = fmt.Fprintln(w.out, w.render(w.warning, fmt.Sprintf(format, args...)))
}

// Newline writes an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// SearchResults renders one result table.
func (w *Writer) SearchResults(entityType catalog.EntityType, results []search.Result) {
	if len(results) == 0 {
		_, _ = fmt.Fprintln(w.out, w.render(w.dim, "no results"))
		return
	}

	_, _ = fmt.Fprintln(w.out, w.render(w.header,
		fmt.Sprintf("%-4s %-24s %-8s %-6s %-6s %s", "#", "ID", "SCORE", "KW", "SEM", "RERANKED")))
	for i, r := range results {
		reranked := ""
		if r.Reranked {
			reranked = "yes"
		}
		line := fmt.Sprintf("%-4d %-24s %-8.4f %-6s %-6s %s",
			i+1, r.ParentID, r.Score, rankCell(r.KeywordRank), rankCell(r.SemanticRank), reranked)
		if i == 0 {
			line = w.render(w.accent, line)
		}
		_, _ = fmt.Fprintln(w.out, line)
	}
	_, _ = fmt.Fprintln(w.out, w.render(w.dim,
		fmt.Sprintf("%d %s results", len(results), entityType)))
}

// rankCell formats a 1-indexed rank, "-" when absent from that source.
func rankCell(rank int) string {
	if rank == 0 {
		return "-"
	}
	return fmt.Sprintf("%d", rank)
}

// Snippets renders the chunk snippets under a result.
func (w *Writer) Snippets(snippets []search.Snippet) {
	for _, s := range snippets {
		_, _ = fmt.Fprintln(w.out, w.render(w.dim,
			fmt.Sprintf("  [%d] score %.4f", s.Ord, s.Score)))
		_, _ = fmt.Fprintf(w.out, "  %s\n", truncate(s.Content, 160))
	}
}

// EvalReport renders the per-query rows and the summary table.
func (w *Writer) EvalReport(report eval.Report) {
	_, _ = fmt.Fprintln(w.out, w.render(w.header,
		fmt.Sprintf("%-28s %-10s %-14s %-8s %-9s %-7s", "QUERY", "TYPE", "MODE", "NDCG@10", "RECALL@50", "MRR")))
	for _, row := range report.Rows {
		_, _ = fmt.Fprintf(w.out, "%-28s %-10s %-14s %-8.4f %-9.4f %-7.4f\n",
			truncate(row.Query, 28), row.EntityType, row.Mode, row.NDCG10, row.Recall50, row.MRR)
	}

	w.Newline()
	_, _ = fmt.Fprintln(w.out, w.render(w.header, "SUMMARY (hybrid_rerank)"))
	for _, s := range report.Summaries {
		_, _ = fmt.Fprintln(w.out, w.render(w.accent,
			fmt.Sprintf("%-10s queries=%-3d ndcg@10=%.4f recall@50=%.4f mrr=%.4f",
				s.EntityType, s.Queries, s.NDCG10, s.Recall50, s.MRR)))
	}
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
