// Package settings holds the tunable ranking knobs. Values live in a
// single-row table as a sparse JSON patch; anything unset falls back to
// the compiled defaults, so a missing or partial row is never an error.
package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	tserr "github.com/mercavo/tradesearch/internal/errors"
)

// Settings are the effective ranking knobs after merging stored overrides
// over the defaults.
type Settings struct {
	// Fusion weights for the keyword and semantic rank scores.
	KeywordWeight  float64 `json:"keywordWeight"`
	SemanticWeight float64 `json:"semanticWeight"`

	// Interleave pattern used when presenting blended result pages.
	InterleaveKeyword  int `json:"interleaveKeyword"`
	InterleaveSemantic int `json:"interleaveSemantic"`

	// Result page sizes.
	DefaultLimit         int `json:"defaultLimit"`
	SupplierDefaultLimit int `json:"supplierDefaultLimit"`

	// PrefilterLimit caps the keyword candidate pool fed to semantic
	// scoring.
	PrefilterLimit int `json:"prefilterLimit"`

	// Trust boosts added to the fused score. Gold supersedes plain
	// verified; the two are never additive.
	VerifiedBoost           float64 `json:"verifiedBoost"`
	GoldVerifiedBoost       float64 `json:"goldVerifiedBoost"`
	TradeAssuranceBoost     float64 `json:"tradeAssuranceBoost"`
	ServiceRatingMultiplier float64 `json:"serviceRatingMultiplier"`
	ResponseRateMultiplier  float64 `json:"responseRateMultiplier"`

	// Rerank knobs.
	RerankEnabled   bool    `json:"rerankEnabled"`
	RerankTopK      int     `json:"rerankTopK"`
	RerankTimeoutMs int     `json:"rerankTimeoutMs"`
	RerankWeight    float64 `json:"rerankWeight"`

	// ReindexBatchSize is the catalog page size during reindex.
	ReindexBatchSize int `json:"reindexBatchSize"`

	// ChunkTargetChars is the chunker's target chunk size.
	ChunkTargetChars int `json:"chunkTargetChars"`
}

// Patch is a sparse update: nil fields keep their current value.
type Patch struct {
	KeywordWeight        *float64 `json:"keywordWeight,omitempty"`
	SemanticWeight       *float64 `json:"semanticWeight,omitempty"`
	InterleaveKeyword    *int     `json:"interleaveKeyword,omitempty"`
	InterleaveSemantic   *int     `json:"interleaveSemantic,omitempty"`
	DefaultLimit         *int     `json:"defaultLimit,omitempty"`
	SupplierDefaultLimit *int     `json:"supplierDefaultLimit,omitempty"`
	PrefilterLimit       *int     `json:"prefilterLimit,omitempty"`

	VerifiedBoost           *float64 `json:"verifiedBoost,omitempty"`
	GoldVerifiedBoost       *float64 `json:"goldVerifiedBoost,omitempty"`
	TradeAssuranceBoost     *float64 `json:"tradeAssuranceBoost,omitempty"`
	ServiceRatingMultiplier *float64 `json:"serviceRatingMultiplier,omitempty"`
	ResponseRateMultiplier  *float64 `json:"responseRateMultiplier,omitempty"`

	RerankEnabled    *bool    `json:"rerankEnabled,omitempty"`
	RerankTopK       *int     `json:"rerankTopK,omitempty"`
	RerankTimeoutMs  *int     `json:"rerankTimeoutMs,omitempty"`
	RerankWeight     *float64 `json:"rerankWeight,omitempty"`
	ReindexBatchSize *int     `json:"reindexBatchSize,omitempty"`
	ChunkTargetChars *int     `json:"chunkTargetChars,omitempty"`
}

// Defaults returns the compiled default settings.
func Defaults() Settings {
	return Settings{
		KeywordWeight:        0.5,
		SemanticWeight:       0.5,
		InterleaveKeyword:    2,
		InterleaveSemantic:   1,
		DefaultLimit:         20,
		SupplierDefaultLimit: 12,
		PrefilterLimit:       300,

		VerifiedBoost:           0.08,
		GoldVerifiedBoost:       0.12,
		TradeAssuranceBoost:     0.08,
		ServiceRatingMultiplier: 0.02,
		ResponseRateMultiplier:  0.01,

		RerankEnabled:        true,
		RerankTopK:           75,
		RerankTimeoutMs:      1200,
		RerankWeight:         0.5,
		ReindexBatchSize:     100,
		ChunkTargetChars:     1200,
	}
}

// MinRerankTimeoutMs floors the rerank timeout so a misconfigured value
// cannot make every rerank lose the race.
const MinRerankTimeoutMs = 200

// cacheTTL bounds how stale a cached read may be across processes.
const cacheTTL = 30 * time.Second

const cacheKey = "settings"

// Store persists the settings overrides.
type Store struct {
	db    *sql.DB
	mu    sync.Mutex
	cache *expirable.LRU[string, Settings]
}

const settingsSchema = `
CREATE TABLE IF NOT EXISTS search_settings (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	overrides  TEXT NOT NULL DEFAULT '{}',
	updated_at INTEGER NOT NULL
);
`

// NewStore opens (or creates) the settings table in the database at path.
// An empty path creates an in-memory store for testing.
func NewStore(path string) (*Store, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create settings directory: %w", err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open settings database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	if _, err := db.Exec(settingsSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create settings schema: %w", err)
	}

	return &Store{
		db:    db,
		cache: expirable.NewLRU[string, Settings](1, nil, cacheTTL),
	}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the effective settings: stored overrides merged over
// defaults. Reads are cached briefly; pass the result around rather than
// calling Get in a loop.
func (s *Store) Get(ctx context.Context) (Settings, error) {
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached, nil
	}

	overrides, err := s.loadOverrides(ctx)
	if err != nil {
		return Settings{}, err
	}
	merged := applyPatch(Defaults(), overrides)
	s.cache.Add(cacheKey, merged)
	return merged, nil
}

// Update merges patch into the stored overrides and returns the new
// effective settings.
func (s *Store) Update(ctx context.Context, patch Patch) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.loadOverrides(ctx)
	if err != nil {
		return Settings{}, err
	}
	merged := mergePatches(current, patch)

	data, err := json.Marshal(merged)
	if err != nil {
		return Settings{}, tserr.New(tserr.ErrCodeSettingsStore, "encode overrides", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO search_settings (id, overrides, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET overrides = excluded.overrides, updated_at = excluded.updated_at`,
		string(data), time.Now().UnixMilli())
	if err != nil {
		return Settings{}, tserr.New(tserr.ErrCodeSettingsStore, "store overrides", err)
	}

	effective := applyPatch(Defaults(), merged)
	s.cache.Add(cacheKey, effective)
	return effective, nil
}

// Reset drops all overrides, restoring defaults.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM search_settings WHERE id = 1`)
	if err != nil {
		return tserr.New(tserr.ErrCodeSettingsStore, "reset overrides", err)
	}
	s.cache.Remove(cacheKey)
	return nil
}

// loadOverrides reads the stored sparse patch; a missing row is an empty
// patch.
func (s *Store) loadOverrides(ctx context.Context) (Patch, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT overrides FROM search_settings WHERE id = 1`).Scan(&raw)
	if err == sql.ErrNoRows {
		return Patch{}, nil
	}
	if err != nil {
		return Patch{}, tserr.New(tserr.ErrCodeSettingsStore, "load overrides", err)
	}

	var p Patch
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Patch{}, tserr.New(tserr.ErrCodeSettingsStore, "decode overrides", err)
	}
	return p, nil
}

// applyPatch overlays the set fields of p onto base.
func applyPatch(base Settings, p Patch) Settings {
	if p.KeywordWeight != nil {
		base.KeywordWeight = *p.KeywordWeight
	}
	if p.SemanticWeight != nil {
		base.SemanticWeight = *p.SemanticWeight
	}
	if p.InterleaveKeyword != nil {
		base.InterleaveKeyword = *p.InterleaveKeyword
	}
	if p.InterleaveSemantic != nil {
		base.InterleaveSemantic = *p.InterleaveSemantic
	}
	if p.DefaultLimit != nil {
		base.DefaultLimit = *p.DefaultLimit
	}
	if p.SupplierDefaultLimit != nil {
		base.SupplierDefaultLimit = *p.SupplierDefaultLimit
	}
	if p.PrefilterLimit != nil {
		base.PrefilterLimit = *p.PrefilterLimit
	}
	if p.VerifiedBoost != nil {
		base.VerifiedBoost = *p.VerifiedBoost
	}
	if p.GoldVerifiedBoost != nil {
		base.GoldVerifiedBoost = *p.GoldVerifiedBoost
	}
	if p.TradeAssuranceBoost != nil {
		base.TradeAssuranceBoost = *p.TradeAssuranceBoost
	}
	if p.ServiceRatingMultiplier != nil {
		base.ServiceRatingMultiplier = *p.ServiceRatingMultiplier
	}
	if p.ResponseRateMultiplier != nil {
		base.ResponseRateMultiplier = *p.ResponseRateMultiplier
	}
	if p.RerankEnabled != nil {
		base.RerankEnabled = *p.RerankEnabled
	}
	if p.RerankTopK != nil {
		base.RerankTopK = *p.RerankTopK
	}
	if p.RerankTimeoutMs != nil {
		base.RerankTimeoutMs = *p.RerankTimeoutMs
	}
	if p.RerankWeight != nil {
		base.RerankWeight = *p.RerankWeight
	}
	if p.ReindexBatchSize != nil {
		base.ReindexBatchSize = *p.ReindexBatchSize
	}
	if p.ChunkTargetChars != nil {
		base.ChunkTargetChars = *p.ChunkTargetChars
	}
	return base
}

// mergePatches overlays the set fields of next onto base.
func mergePatches(base, next Patch) Patch {
	if next.KeywordWeight != nil {
		base.KeywordWeight = next.KeywordWeight
	}
	if next.SemanticWeight != nil {
		base.SemanticWeight = next.SemanticWeight
	}
	if next.InterleaveKeyword != nil {
		base.InterleaveKeyword = next.InterleaveKeyword
	}
	if next.InterleaveSemantic != nil {
		base.InterleaveSemantic = next.InterleaveSemantic
	}
	if next.DefaultLimit != nil {
		base.DefaultLimit = next.DefaultLimit
	}
	if next.SupplierDefaultLimit != nil {
		base.SupplierDefaultLimit = next.SupplierDefaultLimit
	}
	if next.PrefilterLimit != nil {
		base.PrefilterLimit = next.PrefilterLimit
	}
	if next.VerifiedBoost != nil {
		base.VerifiedBoost = next.VerifiedBoost
	}
	if next.GoldVerifiedBoost != nil {
		base.GoldVerifiedBoost = next.GoldVerifiedBoost
	}
	if next.TradeAssuranceBoost != nil {
		base.TradeAssuranceBoost = next.TradeAssuranceBoost
	}
	if next.ServiceRatingMultiplier != nil {
		base.ServiceRatingMultiplier = next.ServiceRatingMultiplier
	}
	if next.ResponseRateMultiplier != nil {
		base.ResponseRateMultiplier = next.ResponseRateMultiplier
	}
	if next.RerankEnabled != nil {
		base.RerankEnabled = next.RerankEnabled
	}
	if next.RerankTopK != nil {
		base.RerankTopK = next.RerankTopK
	}
	if next.RerankTimeoutMs != nil {
		base.RerankTimeoutMs = next.RerankTimeoutMs
	}
	if next.RerankWeight != nil {
		base.RerankWeight = next.RerankWeight
	}
	if next.ReindexBatchSize != nil {
		base.ReindexBatchSize = next.ReindexBatchSize
	}
	if next.ChunkTargetChars != nil {
		base.ChunkTargetChars = next.ChunkTargetChars
	}
	return base
}

// LimitFor returns the default page size for an entity type.
func (s Settings) LimitFor(supplier bool) int {
	if supplier {
		return s.SupplierDefaultLimit
	}
	return s.DefaultLimit
}

// RerankTimeout returns the effective rerank deadline, floored at
// MinRerankTimeoutMs.
func (s Settings) RerankTimeout() time.Duration {
	ms := s.RerankTimeoutMs
	if ms < MinRerankTimeoutMs {
		ms = MinRerankTimeoutMs
	}
	return time.Duration(ms) * time.Millisecond
}
