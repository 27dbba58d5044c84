// Package lexical wraps Bleve v2 as the keyword prefilter index. One index
// holds products and suppliers; every query is scoped to one entity type.
package lexical

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/mercavo/tradesearch/internal/catalog"
	tserr "github.com/mercavo/tradesearch/internal/errors"
)

// Document is the indexed shape of one catalog entity.
type Document struct {
	EntityType string `json:"entity_type"`
	ParentID   string `json:"parent_id"`
	Text       string `json:"text"`
	CategoryID string `json:"category_id,omitempty"`
	Country    string `json:"country,omitempty"`
}

// DocumentFor builds the indexed shape of a catalog entity.
func DocumentFor(e catalog.Entity) Document {
	ref := e.Ref()
	doc := Document{
		EntityType: string(ref.EntityType),
		ParentID:   ref.ParentID,
		Text:       e.SearchText(),
	}
	switch v := e.(type) {
	case *catalog.Product:
		doc.CategoryID = v.CategoryID
	case *catalog.Supplier:
		doc.Country = v.Country
	}
	return doc
}

// Hit is one keyword match, best first.
type Hit struct {
	ParentID string
	Score    float64
}

// Filter narrows a keyword search beyond the entity type.
type Filter struct {
	CategoryID string
	Country    string
	ExcludeID  string
}

// Index is the keyword index over catalog entities.
type Index struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

// docID joins type and parent into a stable index key.
func docID(entityType catalog.EntityType, parentID string) string {
	return string(entityType) + ":" + parentID
}

// validateIntegrity checks the on-disk index before opening, so a torn
// write from a crashed process turns into a reindex instead of a hard
// failure on every start.
func validateIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty")
	}
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "unexpected end of JSON") ||
		strings.Contains(msg, "error parsing mapping JSON") ||
		strings.Contains(msg, "failed to load segment") ||
		strings.Contains(msg, "error opening bolt") ||
		err == bleve.ErrorIndexMetaCorrupt
}

// NewIndex opens (or creates) the keyword index at path.
// An empty path creates an in-memory index for testing.
// A corrupt on-disk index is cleared and recreated; the caller should
// reindex afterwards.
func NewIndex(path string, logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = slog.Default()
	}
	im := buildIndexMapping()

	var (
		idx bleve.Index
		err error
	)
	if path == "" {
		idx, err = bleve.NewMemOnly(im)
	} else {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
			return nil, fmt.Errorf("create index directory: %w", mkErr)
		}

		if validErr := validateIntegrity(path); validErr != nil {
			logger.Warn("keyword index corrupted, clearing",
				"path", path, "error", validErr)
			if rmErr := os.RemoveAll(path); rmErr != nil {
				return nil, tserr.New(tserr.ErrCodeCorruptIndex,
					"keyword index corrupted and cannot be cleared", rmErr).
					WithDetail("path", path)
			}
		}

		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, im)
		} else if err != nil && isCorruptionError(err) {
			logger.Warn("keyword index open failed, recreating",
				"path", path, "error", err)
			if rmErr := os.RemoveAll(path); rmErr != nil {
				return nil, tserr.New(tserr.ErrCodeCorruptIndex,
					"keyword index corrupted and cannot be cleared", rmErr).
					WithDetail("path", path)
			}
			idx, err = bleve.New(path, im)
		}
	}
	if err != nil {
		return nil, tserr.New(tserr.ErrCodeCorruptIndex, "open keyword index", err).
			WithDetail("path", path)
	}

	return &Index{index: idx, path: path}, nil
}

// buildIndexMapping makes text searchable with the standard analyzer and
// the scoping fields exact-match only.
func buildIndexMapping() *mapping.IndexMappingImpl {
	textField := bleve.NewTextFieldMapping()

	keywordField := bleve.NewTextFieldMapping()
	keywordField.Analyzer = keyword.Name

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("text", textField)
	doc.AddFieldMappingsAt("entity_type", keywordField)
	doc.AddFieldMappingsAt("parent_id", keywordField)
	doc.AddFieldMappingsAt("category_id", keywordField)
	doc.AddFieldMappingsAt("country", keywordField)

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	return im
}

// Upsert indexes (or reindexes) documents in one batch.
func (ix *Index) Upsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return tserr.New(tserr.ErrCodeCorruptIndex, "keyword index is closed", nil)
	}

	batch := ix.index.NewBatch()
	for _, doc := range docs {
		id := docID(catalog.EntityType(doc.EntityType), doc.ParentID)
		if err := batch.Index(id, doc); err != nil {
			return fmt.Errorf("index document %s: %w", id, err)
		}
	}
	if err := ix.index.Batch(batch); err != nil {
		return fmt.Errorf("execute index batch: %w", err)
	}
	return nil
}

// Delete removes entities from the index.
func (ix *Index) Delete(ctx context.Context, entityType catalog.EntityType, parentIDs []string) error {
	if len(parentIDs) == 0 {
		return nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return tserr.New(tserr.ErrCodeCorruptIndex, "keyword index is closed", nil)
	}

	batch := ix.index.NewBatch()
	for _, id := range parentIDs {
		batch.Delete(docID(entityType, id))
	}
	if err := ix.index.Batch(batch); err != nil {
		return fmt.Errorf("execute delete batch: %w", err)
	}
	return nil
}

// Search runs a keyword match scoped to one entity type, best first.
// An empty query returns no hits.
func (ix *Index) Search(ctx context.Context, query string, entityType catalog.EntityType, filter Filter, limit int) ([]Hit, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.closed {
		return nil, tserr.New(tserr.ErrCodeCorruptIndex, "keyword index is closed", nil)
	}
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	match := bleve.NewMatchQuery(query)
	match.SetField("text")

	typeTerm := bleve.NewTermQuery(string(entityType))
	typeTerm.SetField("entity_type")

	boolean := bleve.NewBooleanQuery()
	boolean.AddMust(match, typeTerm)
	if filter.CategoryID != "" {
		term := bleve.NewTermQuery(filter.CategoryID)
		term.SetField("category_id")
		boolean.AddMust(term)
	}
	if filter.Country != "" {
		term := bleve.NewTermQuery(filter.Country)
		term.SetField("country")
		boolean.AddMust(term)
	}
	if filter.ExcludeID != "" {
		term := bleve.NewTermQuery(filter.ExcludeID)
		term.SetField("parent_id")
		boolean.AddMustNot(term)
	}

	req := bleve.NewSearchRequest(boolean)
	req.Size = limit
	req.Fields = []string{"parent_id"}

	result, err := ix.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, tserr.New(tserr.ErrCodeCorruptIndex, "keyword search failed", err)
	}

	hits := make([]Hit, 0, len(result.Hits))
	for _, h := range result.Hits {
		parentID, _ := h.Fields["parent_id"].(string)
		if parentID == "" {
			// Fall back to splitting the doc ID.
			if i := strings.IndexByte(h.ID, ':'); i >= 0 {
				parentID = h.ID[i+1:]
			}
		}
		hits = append(hits, Hit{ParentID: parentID, Score: h.Score})
	}
	return hits, nil
}

// DocCount returns the number of indexed documents across both types.
func (ix *Index) DocCount() (uint64, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.closed {
		return 0, tserr.New(tserr.ErrCodeCorruptIndex, "keyword index is closed", nil)
	}
	return ix.index.DocCount()
}

// Close releases the index.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return nil
	}
	ix.closed = true
	return ix.index.Close()
}
