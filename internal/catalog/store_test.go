package catalog

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func f64(v float64) *float64 { return &v }

func TestProductRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := &Product{
		ID:          "p1",
		Title:       "Hex Head Screw M6",
		Description: "Zinc plated hex head screw.",
		Specs:       map[string]string{"material": "steel", "size": "M6"},
		Tags:        []string{"fastener", "hex"},
		CategoryID:  "cat-hardware",
		SupplierID:  "s1",

		SupplierVerificationStatus: VerificationGoldVerified,
		SupplierBadges:             []string{BadgeTradeAssurance},
		SupplierServiceRating:      f64(4.5),
		SupplierResponseRate:       f64(92),
	}
	require.NoError(t, s.UpsertProduct(ctx, p))

	got, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, p.Title, got.Title)
	assert.Equal(t, p.Specs, got.Specs)
	assert.Equal(t, p.Tags, got.Tags)
	assert.Equal(t, VerificationGoldVerified, got.SupplierVerificationStatus)
	require.NotNil(t, got.SupplierServiceRating)
	assert.InDelta(t, 4.5, *got.SupplierServiceRating, 1e-9)
	assert.True(t, got.Boost().HasBadge(BadgeTradeAssurance))
}

func TestSupplierRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sp := &Supplier{
		ID:                 "s1",
		CompanyName:        "Monterrey Fasteners SA",
		Description:        "Industrial fastener manufacturer.",
		MainProducts:       []string{"hex screws", "bolts"},
		Capabilities:       []string{"cnc", "plating"},
		Country:            "MX",
		VerificationStatus: VerificationVerified,
	}
	require.NoError(t, s.UpsertSupplier(ctx, sp))

	got, err := s.GetSupplier(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, sp.CompanyName, got.CompanyName)
	assert.Equal(t, sp.MainProducts, got.MainProducts)
	assert.Nil(t, got.ServiceRating)
	assert.Equal(t, "MX", got.Country)
}

func TestGetProduct_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetProduct(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERR_401")
}

func TestListPage_CursorIteration(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		require.NoError(t, s.UpsertProduct(ctx, &Product{
			ID:    fmt.Sprintf("p%02d", i),
			Title: "item",
		}))
	}

	var all []string
	cursor := ""
	pages := 0
	for {
		refs, next, done, err := s.ListPage(ctx, EntityProduct, cursor, 3)
		require.NoError(t, err)
		pages++
		for _, r := range refs {
			all = append(all, r.ParentID)
		}
		if done {
			break
		}
		cursor = next
	}

	assert.Equal(t, 3, pages)
	assert.Len(t, all, 7)
	// Cursor iteration must not repeat or drop IDs.
	seen := map[string]bool{}
	for _, id := range all {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestListRecent_FiltersAndOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	require.NoError(t, s.UpsertSupplier(ctx, &Supplier{ID: "old", CompanyName: "a", Country: "MX", CreatedAt: base}))
	require.NoError(t, s.UpsertSupplier(ctx, &Supplier{ID: "new", CompanyName: "b", Country: "MX", CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, s.UpsertSupplier(ctx, &Supplier{ID: "us", CompanyName: "c", Country: "US", CreatedAt: base.Add(2 * time.Minute)}))

	refs, err := s.ListRecent(ctx, EntitySupplier, ListFilter{Country: "MX"}, 10)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "new", refs[0].ParentID)
	assert.Equal(t, "old", refs[1].ParentID)

	refs, err = s.ListRecent(ctx, EntitySupplier, ListFilter{Country: "MX", ExcludeID: "new"}, 10)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "old", refs[0].ParentID)
}

func TestBoostsForMany_SkipsMissing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertProduct(ctx, &Product{
		ID: "p1", Title: "x",
		SupplierVerificationStatus: VerificationVerified,
	}))

	boosts, err := s.BoostsForMany(ctx, EntityProduct, []string{"p1", "ghost"})
	require.NoError(t, err)
	require.Len(t, boosts, 1)
	assert.Equal(t, VerificationVerified, boosts["p1"].VerificationStatus)
}

func TestSearchText_Assembly(t *testing.T) {
	p := &Product{
		Title:       "Hex Head Screw M6",
		Description: "Zinc plated.",
		Specs:       map[string]string{"size": "M6"},
		Tags:        []string{"fastener"},
	}
	text := p.SearchText()
	assert.Contains(t, text, "Hex Head Screw M6")
	assert.Contains(t, text, "size: M6")
	assert.Contains(t, text, "fastener")

	sp := &Supplier{CompanyName: "Acme", MainProducts: []string{"hex screws"}}
	assert.Contains(t, sp.SearchText(), "hex screws")
	assert.Contains(t, sp.RerankText(), "Acme")
}
