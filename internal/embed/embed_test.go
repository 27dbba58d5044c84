package embed

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticProviderDeterministic(t *testing.T) {
	p := NewStaticProvider()
	ctx := context.Background()

	a, err := p.Embed(ctx, "Hex Head Screw M6 stainless")
	require.NoError(t, err)
	b, err := p.Embed(ctx, "Hex Head Screw M6 stainless")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, FallbackDimensions)
}

func TestStaticProviderEmptyText(t *testing.T) {
	p := NewStaticProvider()

	vec, err := p.Embed(context.Background(), "")
	require.NoError(t, err)

	require.Len(t, vec, FallbackDimensions)
	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func TestStaticProviderCaseAndPunctuationInsensitive(t *testing.T) {
	p := NewStaticProvider()
	ctx := context.Background()

	a, err := p.Embed(ctx, "Hex-Screws, M6!")
	require.NoError(t, err)
	b, err := p.Embed(ctx, "hex screws m6")
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestStaticProviderCountsTokens(t *testing.T) {
	p := NewStaticProvider()

	vec, err := p.Embed(context.Background(), "screw screw screw")
	require.NoError(t, err)

	var sum float64
	for _, v := range vec {
		sum += v
	}
	assert.Equal(t, 3.0, sum)
}

func TestStaticProviderBatch(t *testing.T) {
	p := NewStaticProvider()

	vecs, err := p.EmbedBatch(context.Background(), []string{"bolts", "nuts", "washers"})
	require.NoError(t, err)

	require.Len(t, vecs, 3)
	single, err := p.Embed(context.Background(), "nuts")
	require.NoError(t, err)
	assert.Equal(t, single, vecs[1])
}

// countingProvider records how many times Embed runs, for cache tests.
type countingProvider struct {
	StaticProvider
	calls int
}

func (c *countingProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	c.calls++
	return c.StaticProvider.Embed(ctx, text)
}

func (c *countingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		v, err := c.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func TestCachedProviderHit(t *testing.T) {
	inner := &countingProvider{}
	c := NewCachedProvider(inner, 10)
	ctx := context.Background()

	first, err := c.Embed(ctx, "galvanized wire mesh")
	require.NoError(t, err)
	second, err := c.Embed(ctx, "galvanized wire mesh")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedProviderBatchPartialWarm(t *testing.T) {
	inner := &countingProvider{}
	c := NewCachedProvider(inner, 10)
	ctx := context.Background()

	_, err := c.Embed(ctx, "warm")
	require.NoError(t, err)
	require.Equal(t, 1, inner.calls)

	vecs, err := c.EmbedBatch(ctx, []string{"warm", "cold"})
	require.NoError(t, err)

	require.Len(t, vecs, 2)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedProviderEviction(t *testing.T) {
	inner := &countingProvider{}
	c := NewCachedProvider(inner, 2)
	ctx := context.Background()

	for _, text := range []string{"a", "b", "c"} {
		_, err := c.Embed(ctx, text)
		require.NoError(t, err)
	}
	require.Equal(t, 3, inner.calls)

	// "a" was evicted by "c"; re-embedding it computes again.
	_, err := c.Embed(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 4, inner.calls)
}

// failingProvider simulates a remote that is configured but broken.
type failingProvider struct{}

func (failingProvider) Embed(context.Context, string) ([]float64, error) {
	return nil, errors.New("connection refused")
}

func (failingProvider) EmbedBatch(context.Context, []string) ([][]float64, error) {
	return nil, errors.New("connection refused")
}

func (failingProvider) Dimensions() int                { return 1536 }
func (failingProvider) ModelName() string              { return "broken" }
func (failingProvider) Available(context.Context) bool { return true }
func (failingProvider) Close() error                   { return nil }

func TestResilientProviderFallsBackOnError(t *testing.T) {
	r := NewResilientProvider(failingProvider{}, nil)

	vec, err := r.Embed(context.Background(), "hex screws")
	require.NoError(t, err)

	assert.Len(t, vec, FallbackDimensions)
}

func TestResilientProviderBatchFallsBack(t *testing.T) {
	r := NewResilientProvider(failingProvider{}, nil)

	vecs, err := r.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	require.Len(t, vecs, 2)
	assert.Len(t, vecs[0], FallbackDimensions)
}

func TestResilientProviderNilRemote(t *testing.T) {
	r := NewResilientProvider(nil, nil)

	vec, err := r.Embed(context.Background(), "ceramic tiles")
	require.NoError(t, err)

	assert.Len(t, vec, FallbackDimensions)
	assert.Equal(t, staticModelName, r.ModelName())
	assert.True(t, r.Available(context.Background()))
}

// unavailableProvider is configured without credentials.
type unavailableProvider struct{ failingProvider }

func (unavailableProvider) Available(context.Context) bool { return false }

func TestResilientProviderSkipsUnavailableRemote(t *testing.T) {
	r := NewResilientProvider(unavailableProvider{}, nil)

	vec, err := r.Embed(context.Background(), "solar panels")
	require.NoError(t, err)
	assert.Len(t, vec, FallbackDimensions)
}

func TestResilientProviderTagsFallbackBatch(t *testing.T) {
	r := NewResilientProvider(failingProvider{}, nil)

	vecs, model, err := r.EmbedBatchTagged(context.Background(), []string{"hex screws"})
	require.NoError(t, err)

	require.Len(t, vecs, 1)
	assert.Equal(t, staticModelName, model)
}

func TestResilientProviderTagsRemoteBatch(t *testing.T) {
	r := NewResilientProvider(&workingRemote{}, nil)

	_, model, err := r.EmbedBatchTagged(context.Background(), []string{"hex screws"})
	require.NoError(t, err)
	assert.Equal(t, "remote-model", model)
}

// workingRemote answers every call, to observe the remote-path tagging.
type workingRemote struct{ StaticProvider }

func (*workingRemote) ModelName() string { return "remote-model" }

func TestCachedProviderNeverCachesFallbackVectors(t *testing.T) {
	// The fallback layer wraps the cache, so a batch the remote failed is
	// recomputed once the remote recovers, and cached vectors stay in the
	// remote's space.
	remote := &flakyRemote{}
	r := NewResilientProvider(NewCachedProvider(remote, 10), nil)
	ctx := context.Background()

	// First call fails remotely; the resilient layer degrades to static.
	vecs, model, err := r.EmbedBatchTagged(ctx, []string{"hex screws"})
	require.NoError(t, err)
	require.Len(t, vecs, 1)
	assert.Equal(t, staticModelName, model)

	// Second call reaches the now-healthy remote: a cache primed with the
	// fallback vector would have answered without hitting it.
	_, model, err = r.EmbedBatchTagged(ctx, []string{"hex screws"})
	require.NoError(t, err)
	assert.Equal(t, "remote-model", model)
	assert.Equal(t, 1, remote.batches)
}

// flakyRemote fails its first batch and recovers afterwards.
type flakyRemote struct {
	workingRemote
	tried   bool
	batches int
}

func (f *flakyRemote) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if !f.tried {
		f.tried = true
		return nil, errors.New("connection refused")
	}
	f.batches++
	return f.workingRemote.EmbedBatch(ctx, texts)
}
