// Package catalog persists the marketplace entities the retrieval engine
// ranks: products and suppliers, with the denormalized trust attributes the
// fusion stage boosts on. The engine treats business workflows (orders,
// disputes, documents) as external; only the fields retrieval needs live here.
package catalog

import (
	"strings"
	"time"
)

// EntityType identifies the kind of entity being retrieved.
type EntityType string

const (
	EntityProduct  EntityType = "product"
	EntitySupplier EntityType = "supplier"
)

// Valid reports whether t is a known entity type.
func (t EntityType) Valid() bool {
	return t == EntityProduct || t == EntitySupplier
}

// EntityRef identifies the thing being retrieved.
type EntityRef struct {
	EntityType EntityType
	ParentID   string
}

// Verification tiers. Gold supersedes plain verified; the boosts are
// mutually exclusive, never additive.
const (
	VerificationUnverified   = "unverified"
	VerificationVerified     = "verified"
	VerificationGoldVerified = "gold_verified"
)

// BadgeTradeAssurance is the trust badge the fusion stage boosts on.
const BadgeTradeAssurance = "trade_assurance"

// BoostAttrs is the flat read-only record of trust attributes per entity.
// Rating and response rate are pointers: absent means no boost contribution.
type BoostAttrs struct {
	VerificationStatus string
	Badges             []string
	ServiceRating      *float64 // 0..5
	ResponseRate       *float64 // 0..100
}

// HasBadge reports whether the given badge is present.
func (b BoostAttrs) HasBadge(badge string) bool {
	for _, x := range b.Badges {
		if x == badge {
			return true
		}
	}
	return false
}

// Product is a catalog product. The supplier trust attributes are
// denormalized onto the product so ranking never joins at query time.
type Product struct {
	ID          string
	Title       string
	Description string
	Specs       map[string]string
	Tags        []string
	CategoryID  string
	SupplierID  string

	SupplierVerificationStatus string
	SupplierBadges             []string
	SupplierServiceRating      *float64
	SupplierResponseRate       *float64

	CreatedAt time.Time
}

// Boost returns the product's trust attributes.
func (p *Product) Boost() BoostAttrs {
	return BoostAttrs{
		VerificationStatus: p.SupplierVerificationStatus,
		Badges:             p.SupplierBadges,
		ServiceRating:      p.SupplierServiceRating,
		ResponseRate:       p.SupplierResponseRate,
	}
}

// SearchText assembles the text that gets chunked and embedded for a product:
// title, description, flattened specs, and tags.
func (p *Product) SearchText() string {
	parts := make([]string, 0, 4)
	if p.Title != "" {
		parts = append(parts, p.Title)
	}
	if p.Description != "" {
		parts = append(parts, p.Description)
	}
	if len(p.Specs) > 0 {
		lines := make([]string, 0, len(p.Specs))
		for k, v := range p.Specs {
			lines = append(lines, k+": "+v)
		}
		parts = append(parts, strings.Join(lines, "\n"))
	}
	if len(p.Tags) > 0 {
		parts = append(parts, strings.Join(p.Tags, " "))
	}
	return strings.Join(parts, "\n\n")
}

// RerankText assembles the shorter text sent to the cross-encoder.
func (p *Product) RerankText() string {
	return p.Title + "\n" + p.Description + "\n" + strings.Join(p.Tags, ", ")
}

// Supplier is a catalog supplier.
type Supplier struct {
	ID           string
	CompanyName  string
	Description  string
	MainProducts []string
	Capabilities []string
	Country      string

	VerificationStatus string
	Badges             []string
	ServiceRating      *float64
	ResponseRate       *float64

	CreatedAt time.Time
}

// Boost returns the supplier's trust attributes.
func (s *Supplier) Boost() BoostAttrs {
	return BoostAttrs{
		VerificationStatus: s.VerificationStatus,
		Badges:             s.Badges,
		ServiceRating:      s.ServiceRating,
		ResponseRate:       s.ResponseRate,
	}
}

// SearchText assembles the text that gets chunked and embedded for a supplier.
func (s *Supplier) SearchText() string {
	parts := make([]string, 0, 4)
	if s.CompanyName != "" {
		parts = append(parts, s.CompanyName)
	}
	if s.Description != "" {
		parts = append(parts, s.Description)
	}
	if len(s.MainProducts) > 0 {
		parts = append(parts, strings.Join(s.MainProducts, ", "))
	}
	if len(s.Capabilities) > 0 {
		parts = append(parts, strings.Join(s.Capabilities, ", "))
	}
	return strings.Join(parts, "\n\n")
}

// RerankText assembles the shorter text sent to the cross-encoder.
func (s *Supplier) RerankText() string {
	return s.CompanyName + "\n" + s.Description + "\n" + strings.Join(s.MainProducts, ", ")
}

// ListFilter restricts listings to entities matching equality filters.
// Zero-valued fields match everything.
type ListFilter struct {
	CategoryID string // products only
	Country    string // suppliers only
	ExcludeID  string
}
