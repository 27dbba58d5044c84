package search

import (
	"context"
	"log/slog"
	"sort"
	"time"
)

// rerankOutcome carries the scores (or failure) out of the racing goroutine.
type rerankOutcome struct {
	scores []float64
	err    error
}

// applyRerank reranks the head of the fused list under a hard deadline.
// The cross-encoder scores the top topK results; min-max normalized scores
// are blended into the fused scores with the given weight and the whole list
// is re-sorted descending. Any failure, including losing the race against
// the deadline, returns the fused list unchanged.
func applyRerank(ctx context.Context, rr Reranker, query string, fused []Result,
	docs []string, topK int, timeout time.Duration, weight float64, logger *slog.Logger) []Result {
	if rr == nil || !rr.Available(ctx) || len(fused) == 0 || weight <= 0 {
		return fused
	}
	if topK > len(fused) {
		topK = len(fused)
	}
	if topK <= 0 {
		return fused
	}

	// The call keeps its own context so a lost race also cancels the HTTP
	// request instead of leaking it.
	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcome := make(chan rerankOutcome, 1)
	go func() {
		scores, err := rr.Rerank(callCtx, query, docs[:topK])
		outcome <- rerankOutcome{scores: scores, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-outcome:
		if res.err != nil {
			logger.Warn("rerank failed, serving fused order", "error", res.err)
			return fused
		}
		if len(res.scores) != topK {
			logger.Warn("rerank score shape mismatch, serving fused order",
				"expected", topK, "got", len(res.scores))
			return fused
		}
		return blendRerank(fused, res.scores, topK, weight)
	case <-timer.C:
		logger.Warn("rerank timed out, serving fused order", "timeout", timeout)
		return fused
	case <-ctx.Done():
		return fused
	}
}

// blendRerank folds normalized cross-encoder scores into the head of the
// fused list, then re-sorts the whole list descending. A blended head entry
// can land below unreranked tail entries whose fused score is higher.
func blendRerank(fused []Result, scores []float64, topK int, weight float64) []Result {
	normalized := minMaxNormalize(scores)

	out := make([]Result, len(fused))
	copy(out, fused)
	for i := 0; i < topK; i++ {
		out[i].Score = (1-weight)*out[i].Score + weight*normalized[i]
		out[i].Reranked = true
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ParentID < out[j].ParentID
	})
	return out
}

// minMaxNormalize maps scores onto [0, 1]. When all scores are equal the
// cross-encoder expressed no preference, so everything maps to 0.5 and the
// blend preserves the fused order.
func minMaxNormalize(scores []float64) []float64 {
	if len(scores) == 0 {
		return nil
	}
	min, max := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}

	out := make([]float64, len(scores))
	if max == min {
		for i := range out {
			out[i] = 0.5
		}
		return out
	}
	for i, s := range scores {
		out[i] = (s - min) / (max - min)
	}
	return out
}
