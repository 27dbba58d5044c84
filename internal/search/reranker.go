package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	tserr "github.com/mercavo/tradesearch/internal/errors"
)

// Reranker scores query-document pairs with a cross-encoder.
// Cross-encoders jointly encode the pair and beat bi-encoder cosine on
// precision, at the cost of a remote round trip per batch.
type Reranker interface {
	// Rerank returns one relevance score per document, in document order.
	Rerank(ctx context.Context, query string, documents []string) ([]float64, error)

	// Available reports whether the reranker can serve.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// NoOpReranker refuses to rerank. Used when no rerank endpoint is
// configured; the engine then serves the fused order unchanged.
type NoOpReranker struct{}

var _ Reranker = (*NoOpReranker)(nil)

// Rerank always fails, signalling the engine to keep the fused order.
func (NoOpReranker) Rerank(context.Context, string, []string) ([]float64, error) {
	return nil, tserr.New(tserr.ErrCodeRerankUnavailable, "no reranker configured", nil)
}

// Available always reports false.
func (NoOpReranker) Available(context.Context) bool { return false }

// Close is a no-op.
func (NoOpReranker) Close() error { return nil }

// HTTPReranker calls a Cohere-style /rerank endpoint: the request carries
// the query and the document texts, the response carries one relevance
// score per document.
type HTTPReranker struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// HTTPRerankerOptions configures the remote reranker.
type HTTPRerankerOptions struct {
	BaseURL string
	APIKey  string
	Model   string
	// Timeout bounds one HTTP call; the engine usually imposes a tighter
	// deadline through the context.
	Timeout time.Duration
}

var _ Reranker = (*HTTPReranker)(nil)

// NewHTTPReranker creates a reranker against baseURL.
func NewHTTPReranker(opts HTTPRerankerOptions) *HTTPReranker {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPReranker{
		baseURL: opts.BaseURL,
		apiKey:  opts.APIKey,
		model:   opts.Model,
		client:  &http.Client{Timeout: timeout},
	}
}

type rerankRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank posts the query-document batch and maps the scores back into
// document order. A response that does not cover every document is a shape
// error: partial scores cannot be blended safely.
func (r *HTTPReranker) Rerank(ctx context.Context, query string, documents []string) ([]float64, error) {
	if len(documents) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(rerankRequest{Model: r.model, Query: query, Documents: documents})
	if err != nil {
		return nil, tserr.New(tserr.ErrCodeRerankUnavailable, "encode rerank request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, tserr.New(tserr.ErrCodeRerankUnavailable, "build rerank request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, tserr.New(tserr.ErrCodeRerankTimeout, "rerank call cancelled", err)
		}
		return nil, tserr.New(tserr.ErrCodeRerankUnavailable, "rerank call failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, tserr.New(tserr.ErrCodeRerankUnavailable,
			fmt.Sprintf("rerank endpoint returned %d", resp.StatusCode), nil).
			WithDetail("body", string(payload))
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, tserr.New(tserr.ErrCodeRerankShape, "decode rerank response", err)
	}

	scores := make([]float64, len(documents))
	seen := make([]bool, len(documents))
	for _, res := range parsed.Results {
		if res.Index < 0 || res.Index >= len(documents) {
			return nil, tserr.New(tserr.ErrCodeRerankShape, "rerank index out of range", nil).
				WithDetail("index", strconv.Itoa(res.Index))
		}
		scores[res.Index] = res.RelevanceScore
		seen[res.Index] = true
	}
	for i, ok := range seen {
		if !ok {
			return nil, tserr.New(tserr.ErrCodeRerankShape, "rerank response missing documents", nil).
				WithDetail("missing_index", strconv.Itoa(i))
		}
	}
	return scores, nil
}

// Available reports whether a base URL is configured.
func (r *HTTPReranker) Available(_ context.Context) bool { return r.baseURL != "" }

// Close is a no-op; the HTTP client owns no persistent resources.
func (r *HTTPReranker) Close() error { return nil }
