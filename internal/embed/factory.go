package embed

import (
	"context"
	"log/slog"

	"github.com/mercavo/tradesearch/internal/config"
)

// ResilientProvider tries the remote provider first and falls back to the
// deterministic local provider when the remote is unconfigured, errors, or
// returns an empty vector. Embedding never fails: a degraded vector beats
// a failed search.
type ResilientProvider struct {
	remote   Provider
	fallback Provider
	logger   *slog.Logger
}

var (
	_ Provider    = (*ResilientProvider)(nil)
	_ BatchTagger = (*ResilientProvider)(nil)
)

// NewResilientProvider wraps remote with fallback behavior. remote may be
// nil, in which case every call uses the fallback.
func NewResilientProvider(remote Provider, logger *slog.Logger) *ResilientProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResilientProvider{
		remote:   remote,
		fallback: NewStaticProvider(),
		logger:   logger.With("component", "embed"),
	}
}

// Embed generates an embedding, degrading to the fallback on any remote
// failure.
func (r *ResilientProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	if r.remote != nil && r.remote.Available(ctx) {
		vec, err := r.remote.Embed(ctx, text)
		if err == nil && len(vec) > 0 {
			return vec, nil
		}
		r.logger.Warn("remote embedding failed, using fallback", "error", err)
	}
	return r.fallback.Embed(ctx, text)
}

// EmbedBatch embeds texts, degrading the whole batch to the fallback on
// remote failure so one batch never mixes vector spaces.
func (r *ResilientProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	vecs, _, err := r.EmbedBatchTagged(ctx, texts)
	return vecs, err
}

// EmbedBatchTagged embeds texts and reports the model that actually
// produced the batch, so callers persisting the vectors can record the
// true vector space even after a fallback.
func (r *ResilientProvider) EmbedBatchTagged(ctx context.Context, texts []string) ([][]float64, string, error) {
	if r.remote != nil && r.remote.Available(ctx) {
		vecs, err := r.remote.EmbedBatch(ctx, texts)
		if err == nil {
			return vecs, r.remote.ModelName(), nil
		}
		r.logger.Warn("remote batch embedding failed, using fallback", "error", err, "count", len(texts))
	}
	vecs, err := r.fallback.EmbedBatch(ctx, texts)
	return vecs, r.fallback.ModelName(), err
}

// Dimensions returns the remote dimension when a remote is active,
// otherwise the fallback dimension.
func (r *ResilientProvider) Dimensions() int {
	if r.remote != nil && r.remote.Available(context.Background()) {
		return r.remote.Dimensions()
	}
	return r.fallback.Dimensions()
}

// ModelName returns the active model identifier.
func (r *ResilientProvider) ModelName() string {
	if r.remote != nil && r.remote.Available(context.Background()) {
		return r.remote.ModelName()
	}
	return r.fallback.ModelName()
}

// Available always reports true: the fallback is always ready.
func (r *ResilientProvider) Available(_ context.Context) bool { return true }

// Close closes the remote provider if present.
func (r *ResilientProvider) Close() error {
	if r.remote != nil {
		return r.remote.Close()
	}
	return nil
}

// FromConfig builds the full provider stack from configuration: an optional
// remote provider behind an LRU cache, with resilient fallback outermost.
// The cache sits inside the fallback layer so it only ever holds remote
// vectors under the remote model's key; degraded fallback vectors are cheap
// to recompute and never enter the cache.
func FromConfig(cfg *config.Config, logger *slog.Logger) Provider {
	var remote Provider
	if cfg.Embeddings.Provider == config.ProviderOpenAI && cfg.Embeddings.APIKey != "" {
		remote = NewCachedProvider(NewOpenAIProvider(OpenAIOptions{
			APIKey:     cfg.Embeddings.APIKey,
			BaseURL:    cfg.Embeddings.BaseURL,
			Model:      cfg.Embeddings.Model,
			Dimensions: cfg.Embeddings.Dimensions,
			Timeout:    cfg.Embeddings.Timeout,
			Logger:     logger,
		}), cfg.Embeddings.CacheSize)
	}
	return NewResilientProvider(remote, logger)
}
