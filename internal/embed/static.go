package embed

import (
	"context"
	"strings"
	"unicode"
)

// StaticProvider generates embeddings by hashing tokens into a small fixed
// number of buckets: a bag-of-hashed-tokens vector. It needs no network and
// no model download, and it is pure — the same text always produces the
// same vector, across calls and across process restarts. Semantic quality
// is reduced but cosine comparisons stay stable, which is what the engine
// needs from a fallback.
type StaticProvider struct{}

// staticModelName identifies fallback vectors in caches and stats.
const staticModelName = "static-hash-32"

// Verify interface implementation at compile time.
var _ Provider = (*StaticProvider)(nil)

// NewStaticProvider creates the deterministic local fallback provider.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{}
}

// Embed generates the hash-bucket vector for one text. It never fails.
func (e *StaticProvider) Embed(_ context.Context, text string) ([]float64, error) {
	vec := make([]float64, FallbackDimensions)
	for _, token := range tokenizeText(text) {
		vec[hashToken(token)%FallbackDimensions]++
	}
	return vec, nil
}

// EmbedBatch generates vectors for multiple texts.
func (e *StaticProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Dimensions returns the fallback vector dimension.
func (e *StaticProvider) Dimensions() int { return FallbackDimensions }

// ModelName returns the fallback model identifier.
func (e *StaticProvider) ModelName() string { return staticModelName }

// Available always reports true: the fallback has no dependencies.
func (e *StaticProvider) Available(_ context.Context) bool { return true }

// Close is a no-op.
func (e *StaticProvider) Close() error { return nil }

// tokenizeText lowercases, replaces non-alphanumerics with spaces, and
// splits on whitespace.
func tokenizeText(text string) []string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return unicode.ToLower(r)
		default:
			return ' '
		}
	}, text)
	return strings.Fields(mapped)
}

// hashToken is the classic 31x multiplicative string hash over the token's
// bytes. Kept stable deliberately: stored fallback vectors must remain
// comparable with freshly computed query vectors forever.
func hashToken(token string) uint32 {
	var h uint32
	for i := 0; i < len(token); i++ {
		h = h*31 + uint32(token[i])
	}
	return h
}
