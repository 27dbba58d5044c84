// Package eval measures retrieval quality against a judged query set and
// reports NDCG, Recall, and MRR per query and per retrieval mode.
package eval

import "math"

// ndcgAtK computes binary-relevance NDCG@k: DCG over the returned ranking
// divided by the ideal DCG for the judgment set. No judged relevant
// documents means 0.
func ndcgAtK(results []string, relevant map[string]bool, k int) float64 {
	if k > len(results) {
		k = len(results)
	}

	var dcg float64
	for i := 0; i < k; i++ {
		if relevant[results[i]] {
			dcg += 1.0 / math.Log2(float64(i)+2)
		}
	}

	ideal := len(relevant)
	if ideal > k {
		ideal = k
	}
	var idcg float64
	for i := 0; i < ideal; i++ {
		idcg += 1.0 / math.Log2(float64(i)+2)
	}

	if idcg == 0 {
		return 0
	}
	return dcg / idcg
}

// recallAtK computes the fraction of judged relevant documents found in
// the top k results.
func recallAtK(results []string, relevant map[string]bool, k int) float64 {
	if len(relevant) == 0 {
		return 0
	}
	if k > len(results) {
		k = len(results)
	}

	var found int
	for i := 0; i < k; i++ {
		if relevant[results[i]] {
			found++
		}
	}
	return float64(found) / float64(len(relevant))
}

// mrr computes the reciprocal rank of the first relevant result, 0 when
// none is found.
func mrr(results []string, relevant map[string]bool) float64 {
	for i, id := range results {
		if relevant[id] {
			return 1.0 / float64(i+1)
		}
	}
	return 0
}
