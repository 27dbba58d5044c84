package search

import (
	"math"
	"sort"

	"github.com/mercavo/tradesearch/internal/chunkstore"
)

// cosineSimilarity compares vectors over their shared prefix, so a stored
// fallback vector and a fresh remote query vector still produce a score
// instead of an error. A zero-magnitude side scores 0.
func cosineSimilarity(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}

	var dot, magA, magB float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// semanticRank scores each parent by its best chunk's similarity to the
// query vector (max pooling), drops non-positive scores, and returns the
// top limit parents best first. Ties keep the lexically smaller parent ID
// first so rankings are stable across runs.
func semanticRank(queryVec []float64, chunksByParent map[string][]chunkstore.Chunk, limit int) []ranked {
	out := make([]ranked, 0, len(chunksByParent))
	for parentID, chunks := range chunksByParent {
		best := math.Inf(-1)
		for _, c := range chunks {
			if s := cosineSimilarity(queryVec, c.Embedding); s > best {
				best = s
			}
		}
		if best <= 0 {
			continue
		}
		out = append(out, ranked{parentID: parentID, score: best})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].parentID < out[j].parentID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
