package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedProvider wraps a Provider with LRU caching so repeated texts
// (the same query typed twice, or re-chunked unchanged entities) do not
// hit the remote endpoint again.
type CachedProvider struct {
	inner Provider
	cache *lru.Cache[string, []float64]
}

var _ Provider = (*CachedProvider)(nil)

// NewCachedProvider creates a cached provider wrapping inner.
// Cache size determines how many unique text embeddings stay in memory.
func NewCachedProvider(inner Provider, cacheSize int) *CachedProvider {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, _ := lru.New[string, []float64](cacheSize)
	return &CachedProvider{
		inner: inner,
		cache: cache,
	}
}

// cacheKey hashes text together with the model name, so vectors from
// different models never alias.
func (c *CachedProvider) cacheKey(text string) string {
	combined := text + "\x00" + c.inner.ModelName()
	hash := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(hash[:])
}

// Embed returns the cached embedding if present, otherwise computes and caches.
func (c *CachedProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	key := c.cacheKey(text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}
	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, vec)
	return vec, nil
}

// EmbedBatch embeds multiple texts, consulting the cache per text so a
// partially warm batch only sends the cold remainder to the inner provider.
func (c *CachedProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float64, len(texts))
	coldIdx := make([]int, 0, len(texts))
	coldTexts := make([]string, 0, len(texts))
	for i, text := range texts {
		if vec, ok := c.cache.Get(c.cacheKey(text)); ok {
			results[i] = vec
		} else {
			coldIdx = append(coldIdx, i)
			coldTexts = append(coldTexts, text)
		}
	}
	if len(coldTexts) == 0 {
		return results, nil
	}

	fresh, err := c.inner.EmbedBatch(ctx, coldTexts)
	if err != nil {
		return nil, err
	}
	for j, idx := range coldIdx {
		results[idx] = fresh[j]
		c.cache.Add(c.cacheKey(texts[idx]), fresh[j])
	}
	return results, nil
}

// Dimensions passes through to the inner provider.
func (c *CachedProvider) Dimensions() int { return c.inner.Dimensions() }

// ModelName passes through to the inner provider.
func (c *CachedProvider) ModelName() string { return c.inner.ModelName() }

// Available passes through to the inner provider.
func (c *CachedProvider) Available(ctx context.Context) bool { return c.inner.Available(ctx) }

// Close purges the cache and closes the inner provider.
func (c *CachedProvider) Close() error {
	c.cache.Purge()
	return c.inner.Close()
}
