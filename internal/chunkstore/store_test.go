package chunkstore

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mercavo/tradesearch/internal/catalog"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func ref(id string) catalog.EntityRef {
	return catalog.EntityRef{EntityType: catalog.EntityProduct, ParentID: id}
}

func TestReplaceAndGetChunks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.ReplaceChunks(ctx, ref("p1"),
		[]string{"first chunk", "second chunk"},
		[][]float64{{1, 0}, {0, 1}}, "static-hash-32")
	require.NoError(t, err)

	chunks, err := s.GetChunks(ctx, ref("p1"))
	require.NoError(t, err)

	require.Len(t, chunks, 2)
	assert.Equal(t, 0, chunks[0].Ord)
	assert.Equal(t, "first chunk", chunks[0].Content)
	assert.Equal(t, []float64{1, 0}, chunks[0].Embedding)
	assert.Equal(t, 1, chunks[1].Ord)
	assert.Equal(t, "static-hash-32", chunks[1].Model)
	assert.False(t, chunks[0].UpdatedAt.IsZero())
}

func TestReplaceChunksIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	contents := []string{"a", "b", "c"}
	embeddings := [][]float64{{1}, {2}, {3}}
	for i := 0; i < 3; i++ {
		require.NoError(t, s.ReplaceChunks(ctx, ref("p1"), contents, embeddings, "m"))
	}

	chunks, err := s.GetChunks(ctx, ref("p1"))
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.Equal(t, i, c.Ord)
	}
}

func TestReplaceChunksShrinks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceChunks(ctx, ref("p1"),
		[]string{"a", "b", "c", "d"}, [][]float64{{1}, {2}, {3}, {4}}, "m"))
	require.NoError(t, s.ReplaceChunks(ctx, ref("p1"),
		[]string{"only"}, [][]float64{{9}}, "m"))

	chunks, err := s.GetChunks(ctx, ref("p1"))
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "only", chunks[0].Content)
	assert.Equal(t, []float64{9}, chunks[0].Embedding)
}

func TestReplaceChunksToEmpty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceChunks(ctx, ref("p1"),
		[]string{"a"}, [][]float64{{1}}, "m"))
	require.NoError(t, s.ReplaceChunks(ctx, ref("p1"), nil, nil, "m"))

	chunks, err := s.GetChunks(ctx, ref("p1"))
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestReplaceChunksCountMismatch(t *testing.T) {
	s := newTestStore(t)

	err := s.ReplaceChunks(context.Background(), ref("p1"),
		[]string{"a", "b"}, [][]float64{{1}}, "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERR_402")
}

func TestReplaceChunksManyPages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// More rows than one delete page, so the paged delete loops.
	n := deletePageSize*2 + 7
	contents := make([]string, n)
	embeddings := make([][]float64, n)
	for i := range contents {
		contents[i] = "chunk"
		embeddings[i] = []float64{float64(i)}
	}
	require.NoError(t, s.ReplaceChunks(ctx, ref("p1"), contents, embeddings, "m"))
	require.NoError(t, s.ReplaceChunks(ctx, ref("p1"),
		[]string{"replaced"}, [][]float64{{1}}, "m"))

	chunks, err := s.GetChunks(ctx, ref("p1"))
	require.NoError(t, err)
	require.Len(t, chunks, 1)
}

func TestConcurrentReplaceSameParent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.ReplaceChunks(ctx, ref("p1"),
				[]string{"x", "y"}, [][]float64{{1}, {2}}, "m")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// Whichever writer won, the set is exactly one writer's output.
	chunks, err := s.GetChunks(ctx, ref("p1"))
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, 0, chunks[0].Ord)
	assert.Equal(t, 1, chunks[1].Ord)
}

func TestGetChunksForMany(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceChunks(ctx, ref("p1"),
		[]string{"a", "b"}, [][]float64{{1}, {2}}, "m"))
	require.NoError(t, s.ReplaceChunks(ctx, ref("p2"),
		[]string{"c"}, [][]float64{{3}}, "m"))

	got, err := s.GetChunksForMany(ctx, catalog.EntityProduct, []string{"p1", "p2", "missing"})
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Len(t, got["p1"], 2)
	assert.Len(t, got["p2"], 1)
	assert.NotContains(t, got, "missing")
}

func TestGetChunksForManyTypeScoped(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceChunks(ctx, ref("shared"),
		[]string{"product text"}, [][]float64{{1}}, "m"))
	supplierRef := catalog.EntityRef{EntityType: catalog.EntitySupplier, ParentID: "shared"}
	require.NoError(t, s.ReplaceChunks(ctx, supplierRef,
		[]string{"supplier text"}, [][]float64{{2}}, "m"))

	got, err := s.GetChunksForMany(ctx, catalog.EntitySupplier, []string{"shared"})
	require.NoError(t, err)

	require.Len(t, got["shared"], 1)
	assert.Equal(t, "supplier text", got["shared"][0].Content)
}

func TestDeleteChunks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceChunks(ctx, ref("p1"),
		[]string{"a"}, [][]float64{{1}}, "m"))
	require.NoError(t, s.DeleteChunks(ctx, ref("p1")))

	chunks, err := s.GetChunks(ctx, ref("p1"))
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceChunks(ctx, ref("p1"),
		[]string{"a", "b"}, [][]float64{{1}, {2}}, "m"))
	supplierRef := catalog.EntityRef{EntityType: catalog.EntitySupplier, ParentID: "s1"}
	require.NoError(t, s.ReplaceChunks(ctx, supplierRef,
		[]string{"c"}, [][]float64{{3}}, "m"))

	st, err := s.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, st.Chunks)
	assert.Equal(t, 2, st.Parents)
	assert.Equal(t, 2, st.ByType[catalog.EntityProduct])
	assert.Equal(t, 1, st.ByType[catalog.EntitySupplier])
	assert.False(t, st.NewestAt.IsZero())
}

func TestStatsEmpty(t *testing.T) {
	s := newTestStore(t)

	st, err := s.Stats(context.Background())
	require.NoError(t, err)

	assert.Zero(t, st.Chunks)
	assert.True(t, st.OldestAt.IsZero())
}
