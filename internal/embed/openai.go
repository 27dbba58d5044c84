package embed

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	openai "github.com/sashabaranov/go-openai"

	tserr "github.com/mercavo/tradesearch/internal/errors"
)

// OpenAIProvider calls an OpenAI-compatible embeddings endpoint. Any server
// speaking the /v1/embeddings protocol works via BaseURL.
type OpenAIProvider struct {
	client     *openai.Client
	model      string
	dimensions int
	timeout    time.Duration
	hasKey     bool
	logger     *slog.Logger
}

// OpenAIOptions configures the remote provider.
type OpenAIOptions struct {
	APIKey     string
	BaseURL    string        // empty means api.openai.com
	Model      string        // empty means text-embedding-3-small
	Dimensions int           // 0 means the model's native dimension
	Timeout    time.Duration // 0 means DefaultRemoteTimeout
	Logger     *slog.Logger
}

var _ Provider = (*OpenAIProvider)(nil)

// NewOpenAIProvider creates a provider against an OpenAI-compatible API.
func NewOpenAIProvider(opts OpenAIOptions) *OpenAIProvider {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	model := opts.Model
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIProvider{
		client:     openai.NewClientWithConfig(cfg),
		model:      model,
		dimensions: opts.Dimensions,
		timeout:    timeout,
		hasKey:     opts.APIKey != "",
		logger:     logger.With("component", "embed.openai"),
	}
}

// Embed generates the embedding for one text.
func (e *OpenAIProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts in chunks of
// DefaultBatchSize, preserving input order.
func (e *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += DefaultBatchSize {
		end := start + DefaultBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := e.embedChunk(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *OpenAIProvider) embedChunk(ctx context.Context, texts []string) ([][]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req := openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(e.model),
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}
	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, tserr.New(tserr.ErrCodeEmbedUnavailable, "embedding request failed", err).
			WithDetail("model", e.model)
	}
	if len(resp.Data) != len(texts) {
		return nil, tserr.New(tserr.ErrCodeEmbedUnavailable, "embedding response count mismatch", nil).
			WithDetail("expected", strconv.Itoa(len(texts))).
			WithDetail("got", strconv.Itoa(len(resp.Data)))
	}
	out := make([][]float64, len(resp.Data))
	for i, d := range resp.Data {
		vec := make([]float64, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float64(v)
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the configured dimension, or 0 for model-native.
func (e *OpenAIProvider) Dimensions() int { return e.dimensions }

// ModelName returns the embedding model identifier.
func (e *OpenAIProvider) ModelName() string { return e.model }

// Available reports whether the provider is configured with credentials.
func (e *OpenAIProvider) Available(_ context.Context) bool { return e.hasKey }

// Close is a no-op; the HTTP client owns no persistent resources.
func (e *OpenAIProvider) Close() error { return nil }
