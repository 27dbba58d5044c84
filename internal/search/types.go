// Package search implements hybrid retrieval: a keyword prefilter feeds
// semantic scoring over stored chunk embeddings, the two rankings are fused
// by rank score with trust boosts, and an optional cross-encoder rerank
// reorders the head of the list under a hard deadline.
package search

import (
	"github.com/mercavo/tradesearch/internal/catalog"
)

// Filters narrow a search beyond the query text.
type Filters struct {
	CategoryID string
	Country    string
	// ExcludeID drops one entity from the results, for similar-item
	// lookups that should not return the item itself.
	ExcludeID string
}

// Request is one search call.
type Request struct {
	Query      string
	EntityType catalog.EntityType
	Filters    Filters
	// Limit caps the returned results; 0 uses the configured default for
	// the entity type.
	Limit int
	// Rerank requests the cross-encoder pass on top of fusion.
	Rerank bool
}

// Result is one ranked entity.
type Result struct {
	ParentID string
	Score    float64
	// KeywordRank and SemanticRank are 1-indexed positions in the source
	// rankings, 0 when absent from that source.
	KeywordRank  int
	SemanticRank int
	// Reranked marks results whose score includes the cross-encoder blend.
	Reranked bool
}

// Snippet is one chunk of a parent's text with its semantic similarity to
// the query.
type Snippet struct {
	ParentID string
	Ord      int
	Content  string
	Score    float64
}

// ranked is an intermediate (id, score) pair used between stages.
type ranked struct {
	parentID string
	score    float64
}
