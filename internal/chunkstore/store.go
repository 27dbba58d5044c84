// Package chunkstore persists the chunk+embedding rows derived from catalog
// entities. Rows are only ever replaced wholesale per parent entity, so a
// parent's chunk set is always internally consistent: all chunks from the
// same version of the entity text, ordinals dense from zero.
package chunkstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/mercavo/tradesearch/internal/catalog"
	tserr "github.com/mercavo/tradesearch/internal/errors"
)

// deletePageSize bounds how many rows one delete statement targets inside
// the replace transaction.
const deletePageSize = 200

// Chunk is one embedded slice of a parent entity's search text.
type Chunk struct {
	EntityType catalog.EntityType
	ParentID   string
	Ord        int
	Content    string
	Embedding  []float64
	Model      string
	UpdatedAt  time.Time
}

// Stats summarizes the chunk store for status reporting.
type Stats struct {
	Chunks   int
	Parents  int
	ByType   map[catalog.EntityType]int
	OldestAt time.Time
	NewestAt time.Time
}

// Store holds chunks in SQLite.
type Store struct {
	db *sql.DB

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

const chunkSchema = `
CREATE TABLE IF NOT EXISTS chunks (
	entity_type TEXT NOT NULL,
	parent_id   TEXT NOT NULL,
	ord         INTEGER NOT NULL,
	content     TEXT NOT NULL,
	embedding   TEXT NOT NULL,
	model       TEXT NOT NULL DEFAULT '',
	updated_at  INTEGER NOT NULL,
	PRIMARY KEY (entity_type, parent_id, ord)
);
CREATE INDEX IF NOT EXISTS idx_chunks_parent ON chunks(entity_type, parent_id);
`

// NewStore opens (or creates) the chunk database at path.
// An empty path creates an in-memory store for testing.
func NewStore(path string) (*Store, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create chunk directory: %w", err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open chunk database: %w", err)
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

	if _, err := db.Exec(chunkSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create chunk schema: %w", err)
	}

	return &Store{db: db, locks: make(map[string]*sync.Mutex)}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// parentLock returns the mutex serializing replaces for one parent.
func (s *Store) parentLock(ref catalog.EntityRef) *sync.Mutex {
	key := string(ref.EntityType) + "\x00" + ref.ParentID
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// ReplaceChunks atomically swaps the parent's chunk set: old rows deleted,
// new rows inserted with ordinals from zero, all in one transaction.
// Replacing with the same content is a no-op in effect, so retries are safe.
func (s *Store) ReplaceChunks(ctx context.Context, ref catalog.EntityRef, contents []string, embeddings [][]float64, model string) error {
	if len(contents) != len(embeddings) {
		return tserr.InvalidInput(fmt.Sprintf(
			"chunk/embedding count mismatch: %d vs %d", len(contents), len(embeddings)))
	}

	lock := s.parentLock(ref)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return tserr.New(tserr.ErrCodeChunkStore, "begin replace", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := deleteParentChunks(ctx, tx, ref); err != nil {
		return err
	}

	now := time.Now().UnixMilli()
	for ord, content := range contents {
		emb, err := json.Marshal(embeddings[ord])
		if err != nil {
			return tserr.New(tserr.ErrCodeChunkStore, "encode embedding", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO chunks (entity_type, parent_id, ord, content, embedding, model, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			ref.EntityType, ref.ParentID, ord, content, string(emb), model, now)
		if err != nil {
			return tserr.New(tserr.ErrCodeChunkStore, "insert chunk", err).
				WithDetail("parent_id", ref.ParentID)
		}
	}

	if err := tx.Commit(); err != nil {
		return tserr.New(tserr.ErrCodeChunkStore, "commit replace", err)
	}
	return nil
}

// deleteParentChunks removes the parent's rows in bounded pages so one huge
// parent cannot produce an unbounded single statement.
func deleteParentChunks(ctx context.Context, tx *sql.Tx, ref catalog.EntityRef) error {
	for {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM chunks WHERE rowid IN (
				SELECT rowid FROM chunks WHERE entity_type = ? AND parent_id = ? LIMIT ?
			)`, ref.EntityType, ref.ParentID, deletePageSize)
		if err != nil {
			return tserr.New(tserr.ErrCodeChunkStore, "delete chunks", err).
				WithDetail("parent_id", ref.ParentID)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return tserr.New(tserr.ErrCodeChunkStore, "delete chunks", err)
		}
		if n < deletePageSize {
			return nil
		}
	}
}

// DeleteChunks removes all chunks for a parent, for entity removal.
func (s *Store) DeleteChunks(ctx context.Context, ref catalog.EntityRef) error {
	lock := s.parentLock(ref)
	lock.Lock()
	defer lock.Unlock()

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM chunks WHERE entity_type = ? AND parent_id = ?`,
		ref.EntityType, ref.ParentID)
	if err != nil {
		return tserr.New(tserr.ErrCodeChunkStore, "delete chunks", err).
			WithDetail("parent_id", ref.ParentID)
	}
	return nil
}

// GetChunks returns the parent's chunks ordered by ordinal.
func (s *Store) GetChunks(ctx context.Context, ref catalog.EntityRef) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_type, parent_id, ord, content, embedding, model, updated_at
		FROM chunks WHERE entity_type = ? AND parent_id = ? ORDER BY ord ASC`,
		ref.EntityType, ref.ParentID)
	if err != nil {
		return nil, tserr.New(tserr.ErrCodeChunkStore, "query chunks", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// GetChunksForMany returns chunks for multiple parents of one type, keyed
// by parent ID. Parents with no chunks are absent from the map.
func (s *Store) GetChunksForMany(ctx context.Context, entityType catalog.EntityType, parentIDs []string) (map[string][]Chunk, error) {
	out := make(map[string][]Chunk, len(parentIDs))
	if len(parentIDs) == 0 {
		return out, nil
	}

	// SQLite's parameter limit is comfortably above any prefilter size,
	// but page anyway to stay shape-independent.
	const page = 400
	for start := 0; start < len(parentIDs); start += page {
		end := start + page
		if end > len(parentIDs) {
			end = len(parentIDs)
		}
		batch := parentIDs[start:end]

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(batch)), ",")
		args := make([]any, 0, len(batch)+1)
		args = append(args, entityType)
		for _, id := range batch {
			args = append(args, id)
		}

		rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
			SELECT entity_type, parent_id, ord, content, embedding, model, updated_at
			FROM chunks WHERE entity_type = ? AND parent_id IN (%s)
			ORDER BY parent_id, ord ASC`, placeholders), args...)
		if err != nil {
			return nil, tserr.New(tserr.ErrCodeChunkStore, "query chunk batch", err)
		}
		chunks, err := scanChunks(rows)
		rows.Close()
		if err != nil {
			return nil, err
		}
		for _, c := range chunks {
			out[c.ParentID] = append(out[c.ParentID], c)
		}
	}
	return out, nil
}

// Stats reports chunk counts and freshness.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	st := Stats{ByType: make(map[catalog.EntityType]int)}

	rows, err := s.db.QueryContext(ctx,
		`SELECT entity_type, COUNT(*), COUNT(DISTINCT parent_id) FROM chunks GROUP BY entity_type`)
	if err != nil {
		return st, tserr.New(tserr.ErrCodeChunkStore, "query stats", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			et              string
			chunks, parents int
		)
		if err := rows.Scan(&et, &chunks, &parents); err != nil {
			return st, err
		}
		st.ByType[catalog.EntityType(et)] = chunks
		st.Chunks += chunks
		st.Parents += parents
	}
	if err := rows.Err(); err != nil {
		return st, err
	}

	var oldest, newest sql.NullInt64
	err = s.db.QueryRowContext(ctx,
		`SELECT MIN(updated_at), MAX(updated_at) FROM chunks`).Scan(&oldest, &newest)
	if err != nil {
		return st, tserr.New(tserr.ErrCodeChunkStore, "query stats range", err)
	}
	if oldest.Valid {
		st.OldestAt = time.UnixMilli(oldest.Int64)
	}
	if newest.Valid {
		st.NewestAt = time.UnixMilli(newest.Int64)
	}
	return st, nil
}

func scanChunks(rows *sql.Rows) ([]Chunk, error) {
	var out []Chunk
	for rows.Next() {
		var (
			c         Chunk
			et, emb   string
			updatedAt int64
		)
		if err := rows.Scan(&et, &c.ParentID, &c.Ord, &c.Content, &emb, &c.Model, &updatedAt); err != nil {
			return nil, err
		}
		c.EntityType = catalog.EntityType(et)
		if err := json.Unmarshal([]byte(emb), &c.Embedding); err != nil {
			return nil, tserr.New(tserr.ErrCodeChunkStore, "decode embedding", err).
				WithDetail("parent_id", c.ParentID)
		}
		c.UpdatedAt = time.UnixMilli(updatedAt)
		out = append(out, c)
	}
	return out, rows.Err()
}
