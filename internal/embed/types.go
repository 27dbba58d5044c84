// Package embed turns text into fixed-dimension vectors. A remote provider
// is used when configured; a deterministic local fallback is always
// available, so embedding is total and non-failing from the engine's
// perspective.
package embed

import (
	"context"
	"time"
)

// Common embedding constants.
const (
	// FallbackDimensions is the dimension of the hash-based fallback vectors.
	FallbackDimensions = 32

	// DefaultRemoteTimeout bounds a single remote embedding call.
	DefaultRemoteTimeout = 15 * time.Second

	// DefaultBatchSize is the max texts per remote request.
	DefaultBatchSize = 64

	// DefaultCacheSize is the default query-embedding LRU capacity.
	DefaultCacheSize = 1000
)

// Provider generates vector embeddings for text.
type Provider interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float64, error)

	// EmbedBatch generates embeddings for multiple texts, preserving order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available reports whether the provider is ready to serve.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// BatchTagger is implemented by providers that can report which model
// actually produced a batch. Persisting callers use it to record the true
// vector space when a provider degrades mid-run.
type BatchTagger interface {
	EmbedBatchTagged(ctx context.Context, texts []string) ([][]float64, string, error)
}
