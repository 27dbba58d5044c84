package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	tserr "github.com/mercavo/tradesearch/internal/errors"
)

// Entity is the read-side view of a catalog record: enough to build its
// search text, its rerank pair text, and its trust boosts.
type Entity interface {
	Ref() EntityRef
	SearchText() string
	RerankText() string
	Boost() BoostAttrs
}

// Ref implements Entity.
func (p *Product) Ref() EntityRef { return EntityRef{EntityType: EntityProduct, ParentID: p.ID} }

// Ref implements Entity.
func (s *Supplier) Ref() EntityRef { return EntityRef{EntityType: EntitySupplier, ParentID: s.ID} }

// Store persists products and suppliers in SQLite.
type Store struct {
	db *sql.DB
}

const catalogSchema = `
CREATE TABLE IF NOT EXISTS products (
	id            TEXT PRIMARY KEY,
	title         TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	specs         TEXT NOT NULL DEFAULT '{}',
	tags          TEXT NOT NULL DEFAULT '[]',
	category_id   TEXT NOT NULL DEFAULT '',
	supplier_id   TEXT NOT NULL DEFAULT '',
	verification  TEXT NOT NULL DEFAULT 'unverified',
	badges        TEXT NOT NULL DEFAULT '[]',
	service_rating REAL,
	response_rate  REAL,
	created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_products_category ON products(category_id);
CREATE INDEX IF NOT EXISTS idx_products_created ON products(created_at DESC);

CREATE TABLE IF NOT EXISTS suppliers (
	id            TEXT PRIMARY KEY,
	company_name  TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	main_products TEXT NOT NULL DEFAULT '[]',
	capabilities  TEXT NOT NULL DEFAULT '[]',
	country       TEXT NOT NULL DEFAULT '',
	verification  TEXT NOT NULL DEFAULT 'unverified',
	badges        TEXT NOT NULL DEFAULT '[]',
	service_rating REAL,
	response_rate  REAL,
	created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_suppliers_country ON suppliers(country);
CREATE INDEX IF NOT EXISTS idx_suppliers_created ON suppliers(created_at DESC);
`

// NewStore opens (or creates) the catalog database at path.
// An empty path creates an in-memory store for testing.
func NewStore(path string) (*Store, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create catalog directory: %w", err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open catalog database: %w", err)
	}

	// Single writer keeps lock contention out of the picture.
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

	if _, err := db.Exec(catalogSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create catalog schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertProduct inserts or replaces a product row.
func (s *Store) UpsertProduct(ctx context.Context, p *Product) error {
	if p.ID == "" {
		return tserr.InvalidInput("product id is required")
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	specs, tags, badges := marshalJSON(p.Specs), marshalJSONSlice(p.Tags), marshalJSONSlice(p.SupplierBadges)

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO products
		(id, title, description, specs, tags, category_id, supplier_id,
		 verification, badges, service_rating, response_rate, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Title, p.Description, specs, tags, p.CategoryID, p.SupplierID,
		orUnverified(p.SupplierVerificationStatus), badges,
		nullable(p.SupplierServiceRating), nullable(p.SupplierResponseRate),
		p.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert product %s: %w", p.ID, err)
	}
	return nil
}

// UpsertSupplier inserts or replaces a supplier row.
func (s *Store) UpsertSupplier(ctx context.Context, sp *Supplier) error {
	if sp.ID == "" {
		return tserr.InvalidInput("supplier id is required")
	}
	if sp.CreatedAt.IsZero() {
		sp.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO suppliers
		(id, company_name, description, main_products, capabilities, country,
		 verification, badges, service_rating, response_rate, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sp.ID, sp.CompanyName, sp.Description,
		marshalJSONSlice(sp.MainProducts), marshalJSONSlice(sp.Capabilities), sp.Country,
		orUnverified(sp.VerificationStatus), marshalJSONSlice(sp.Badges),
		nullable(sp.ServiceRating), nullable(sp.ResponseRate),
		sp.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert supplier %s: %w", sp.ID, err)
	}
	return nil
}

// GetProduct fetches a product by ID.
// Returns ErrCodeEntityNotFound when the row does not exist.
func (s *Store) GetProduct(ctx context.Context, id string) (*Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, specs, tags, category_id, supplier_id,
		       verification, badges, service_rating, response_rate, created_at
		FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, tserr.NotFound(string(EntityProduct), id)
	}
	return p, err
}

// GetSupplier fetches a supplier by ID.
// Returns ErrCodeEntityNotFound when the row does not exist.
func (s *Store) GetSupplier(ctx context.Context, id string) (*Supplier, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, company_name, description, main_products, capabilities, country,
		       verification, badges, service_rating, response_rate, created_at
		FROM suppliers WHERE id = ?`, id)
	sp, err := scanSupplier(row)
	if err == sql.ErrNoRows {
		return nil, tserr.NotFound(string(EntitySupplier), id)
	}
	return sp, err
}

// GetEntity fetches either entity kind through the Entity view.
func (s *Store) GetEntity(ctx context.Context, entityType EntityType, id string) (Entity, error) {
	switch entityType {
	case EntityProduct:
		return s.GetProduct(ctx, id)
	case EntitySupplier:
		return s.GetSupplier(ctx, id)
	default:
		return nil, tserr.InvalidInput(fmt.Sprintf("unknown entity type %q", entityType))
	}
}

// GetEntities batch-fetches entities by ID, skipping IDs with no row.
// The result preserves the input ID order.
func (s *Store) GetEntities(ctx context.Context, entityType EntityType, ids []string) ([]Entity, error) {
	out := make([]Entity, 0, len(ids))
	for _, id := range ids {
		e, err := s.GetEntity(ctx, entityType, id)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// BoostsForMany returns the trust attributes for the given IDs.
// IDs with no row are simply absent from the map.
func (s *Store) BoostsForMany(ctx context.Context, entityType EntityType, ids []string) (map[string]BoostAttrs, error) {
	entities, err := s.GetEntities(ctx, entityType, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]BoostAttrs, len(entities))
	for _, e := range entities {
		out[e.Ref().ParentID] = e.Boost()
	}
	return out, nil
}

// ListPage returns one page of entity refs ordered by ID, for the
// cursor-driven iteration reindex relies on. Pass the returned cursor to get
// the next page; done is true when the listing is exhausted.
func (s *Store) ListPage(ctx context.Context, entityType EntityType, cursor string, limit int) (refs []EntityRef, next string, done bool, err error) {
	if limit <= 0 {
		limit = 100
	}
	table, err := tableFor(entityType)
	if err != nil {
		return nil, "", false, err
	}

	// Fetch one extra row to detect the final page without a COUNT.
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT id FROM %s WHERE id > ? ORDER BY id ASC LIMIT ?`, table),
		cursor, limit+1)
	if err != nil {
		return nil, "", false, fmt.Errorf("list %s page: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, "", false, err
		}
		refs = append(refs, EntityRef{EntityType: entityType, ParentID: id})
	}
	if err := rows.Err(); err != nil {
		return nil, "", false, err
	}

	if len(refs) <= limit {
		return refs, "", true, nil
	}
	refs = refs[:limit]
	return refs, refs[len(refs)-1].ParentID, false, nil
}

// ListRecent returns up to limit entity refs ordered newest-first, applying
// equality filters. This is the prefilter fallback when the lexical index
// has no hits for a query.
func (s *Store) ListRecent(ctx context.Context, entityType EntityType, filter ListFilter, limit int) ([]EntityRef, error) {
	if limit <= 0 {
		limit = 200
	}
	table, err := tableFor(entityType)
	if err != nil {
		return nil, err
	}

	q := fmt.Sprintf(`SELECT id FROM %s WHERE 1=1`, table)
	args := []any{}
	if entityType == EntityProduct && filter.CategoryID != "" {
		q += ` AND category_id = ?`
		args = append(args, filter.CategoryID)
	}
	if entityType == EntitySupplier && filter.Country != "" {
		q += ` AND country = ?`
		args = append(args, filter.Country)
	}
	if filter.ExcludeID != "" {
		q += ` AND id != ?`
		args = append(args, filter.ExcludeID)
	}
	q += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list recent %s: %w", table, err)
	}
	defer rows.Close()

	var refs []EntityRef
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		refs = append(refs, EntityRef{EntityType: entityType, ParentID: id})
	}
	return refs, rows.Err()
}

// Count returns the number of entities of the given type.
func (s *Store) Count(ctx context.Context, entityType EntityType) (int, error) {
	table, err := tableFor(entityType)
	if err != nil {
		return 0, err
	}
	var n int
	err = s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table)).Scan(&n)
	return n, err
}

// --- row scanning helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*Product, error) {
	var (
		p                    Product
		specs, tags, badges  string
		rating, responseRate sql.NullFloat64
		createdAt            int64
	)
	err := row.Scan(&p.ID, &p.Title, &p.Description, &specs, &tags, &p.CategoryID,
		&p.SupplierID, &p.SupplierVerificationStatus, &badges, &rating, &responseRate, &createdAt)
	if err != nil {
		return nil, err
	}
	p.Specs = unmarshalJSONMap(specs)
	p.Tags = unmarshalJSONSlice(tags)
	p.SupplierBadges = unmarshalJSONSlice(badges)
	p.SupplierServiceRating = fromNull(rating)
	p.SupplierResponseRate = fromNull(responseRate)
	p.CreatedAt = time.UnixMilli(createdAt)
	return &p, nil
}

func scanSupplier(row rowScanner) (*Supplier, error) {
	var (
		sp                         Supplier
		mainProducts, caps, badges string
		rating, responseRate       sql.NullFloat64
		createdAt                  int64
	)
	err := row.Scan(&sp.ID, &sp.CompanyName, &sp.Description, &mainProducts, &caps,
		&sp.Country, &sp.VerificationStatus, &badges, &rating, &responseRate, &createdAt)
	if err != nil {
		return nil, err
	}
	sp.MainProducts = unmarshalJSONSlice(mainProducts)
	sp.Capabilities = unmarshalJSONSlice(caps)
	sp.Badges = unmarshalJSONSlice(badges)
	sp.ServiceRating = fromNull(rating)
	sp.ResponseRate = fromNull(responseRate)
	sp.CreatedAt = time.UnixMilli(createdAt)
	return &sp, nil
}

func tableFor(entityType EntityType) (string, error) {
	switch entityType {
	case EntityProduct:
		return "products", nil
	case EntitySupplier:
		return "suppliers", nil
	default:
		return "", tserr.InvalidInput(fmt.Sprintf("unknown entity type %q", entityType))
	}
}

func marshalJSON(m map[string]string) string {
	if len(m) == 0 {
		return "{}"
	}
	b, _ := json.Marshal(m)
	return string(b)
}

func marshalJSONSlice(s []string) string {
	if len(s) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(s)
	return string(b)
}

func unmarshalJSONMap(s string) map[string]string {
	var m map[string]string
	_ = json.Unmarshal([]byte(s), &m)
	return m
}

func unmarshalJSONSlice(s string) []string {
	var out []string
	_ = json.Unmarshal([]byte(s), &out)
	return out
}

func nullable(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func fromNull(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func orUnverified(v string) string {
	if v == "" {
		return VerificationUnverified
	}
	return v
}

func isNotFound(err error) bool {
	var ee *tserr.EngineError
	if errors.As(err, &ee) {
		return ee.Code == tserr.ErrCodeEntityNotFound
	}
	return false
}
