// Package store is the SQLite-backed metadata store. It resolves fused chunk
// IDs back to chunk text and document metadata, and records engine state such
// as the active corpus hash. SQLite keeps resolution O(topK) regardless of
// corpus size and survives restarts without re-parsing the snapshot.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/mohik-agnext/docker-chatbot/internal/corpus"
	rerrors "github.com/mohik-agnext/docker-chatbot/internal/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS namespaces (
	name        TEXT PRIMARY KEY,
	description TEXT NOT NULL DEFAULT '',
	keywords    TEXT NOT NULL DEFAULT '',
	chunk_count INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS documents (
	id        TEXT PRIMARY KEY,
	title     TEXT NOT NULL DEFAULT '',
	namespace TEXT NOT NULL REFERENCES namespaces(name)
);
CREATE TABLE IF NOT EXISTS chunks (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL DEFAULT '',
	namespace   TEXT NOT NULL REFERENCES namespaces(name),
	granularity TEXT NOT NULL,
	text        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_namespace ON chunks(namespace);
CREATE TABLE IF NOT EXISTS engine_state (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// StateCorpusHash is the engine_state key holding the active corpus hash.
const StateCorpusHash = "corpus_hash"

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the store at path. An empty path opens an
// in-memory database, used by tests and by deployments that treat the store
// as purely derived state.
func Open(path string) (*Store, error) {
	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, rerrors.Wrap(rerrors.ErrCodeStoreFailure, fmt.Errorf("open sqlite %s: %w", dsn, err))
	}
	// A single connection sidesteps SQLite writer contention and keeps the
	// in-memory database from being one-per-connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, rerrors.Wrap(rerrors.ErrCodeStoreFailure, fmt.Errorf("apply schema: %w", err))
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ReplaceSnapshot atomically replaces all metadata with the given snapshot's
// and records its content hash. Readers either see the old corpus or the new
// one, never a mix.
func (s *Store) ReplaceSnapshot(ctx context.Context, snap *corpus.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return rerrors.Wrap(rerrors.ErrCodeStoreFailure, fmt.Errorf("begin replace: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"chunks", "documents", "namespaces"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return rerrors.Wrap(rerrors.ErrCodeStoreFailure, fmt.Errorf("clear %s: %w", table, err))
		}
	}

	for _, ns := range snap.Namespaces {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO namespaces (name, description, keywords, chunk_count) VALUES (?, ?, ?, ?)",
			ns.Name, ns.Description, strings.Join(ns.Keywords, ","), ns.ChunkCount,
		); err != nil {
			return rerrors.Wrap(rerrors.ErrCodeStoreFailure, fmt.Errorf("insert namespace %s: %w", ns.Name, err))
		}
	}
	for _, d := range snap.Documents {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO documents (id, title, namespace) VALUES (?, ?, ?)",
			d.ID, d.Title, d.Namespace,
		); err != nil {
			return rerrors.Wrap(rerrors.ErrCodeStoreFailure, fmt.Errorf("insert document %s: %w", d.ID, err))
		}
	}
	for _, c := range snap.Chunks {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO chunks (id, document_id, namespace, granularity, text) VALUES (?, ?, ?, ?, ?)",
			c.ID, c.DocumentID, c.Namespace, string(c.Granularity), c.Text,
		); err != nil {
			return rerrors.Wrap(rerrors.ErrCodeStoreFailure, fmt.Errorf("insert chunk %s: %w", c.ID, err))
		}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO engine_state (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		StateCorpusHash, snap.ContentHash,
	); err != nil {
		return rerrors.Wrap(rerrors.ErrCodeStoreFailure, fmt.Errorf("record corpus hash: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return rerrors.Wrap(rerrors.ErrCodeStoreFailure, fmt.Errorf("commit replace: %w", err))
	}
	return nil
}

// GetChunks resolves a batch of chunk IDs in one query. IDs that no longer
// exist are simply absent from the result; the caller decides whether that
// is a stale-cache condition or an error.
func (s *Store) GetChunks(ctx context.Context, ids []string) (map[string]corpus.Chunk, error) {
	out := make(map[string]corpus.Chunk, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, document_id, namespace, granularity, text FROM chunks WHERE id IN ("+placeholders+")",
		args...,
	)
	if err != nil {
		return nil, rerrors.Wrap(rerrors.ErrCodeStoreFailure, fmt.Errorf("select chunks: %w", err))
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var c corpus.Chunk
		var gran string
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Namespace, &gran, &c.Text); err != nil {
			return nil, rerrors.Wrap(rerrors.ErrCodeStoreFailure, fmt.Errorf("scan chunk: %w", err))
		}
		c.Granularity = corpus.Granularity(gran)
		out[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, rerrors.Wrap(rerrors.ErrCodeStoreFailure, fmt.Errorf("iterate chunks: %w", err))
	}
	return out, nil
}

// GetDocument returns the document with the given ID.
func (s *Store) GetDocument(ctx context.Context, id string) (corpus.Document, bool, error) {
	var d corpus.Document
	err := s.db.QueryRowContext(ctx,
		"SELECT id, title, namespace FROM documents WHERE id = ?", id,
	).Scan(&d.ID, &d.Title, &d.Namespace)
	if err == sql.ErrNoRows {
		return corpus.Document{}, false, nil
	}
	if err != nil {
		return corpus.Document{}, false, rerrors.Wrap(rerrors.ErrCodeStoreFailure, fmt.Errorf("select document: %w", err))
	}
	return d, true, nil
}

// ChunkCount returns the number of stored chunks.
func (s *Store) ChunkCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n); err != nil {
		return 0, rerrors.Wrap(rerrors.ErrCodeStoreFailure, fmt.Errorf("count chunks: %w", err))
	}
	return n, nil
}

// NamespaceCounts returns the chunk count per namespace.
func (s *Store) NamespaceCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT namespace, COUNT(*) FROM chunks GROUP BY namespace")
	if err != nil {
		return nil, rerrors.Wrap(rerrors.ErrCodeStoreFailure, fmt.Errorf("count namespaces: %w", err))
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]int)
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, rerrors.Wrap(rerrors.ErrCodeStoreFailure, fmt.Errorf("scan count: %w", err))
		}
		out[name] = n
	}
	return out, rows.Err()
}

// GetState returns the engine_state value for key, or "" when unset. State
// is written transactionally by ReplaceSnapshot, so the recorded corpus hash
// always matches the rows alongside it.
func (s *Store) GetState(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM engine_state WHERE key = ?", key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", rerrors.Wrap(rerrors.ErrCodeStoreFailure, fmt.Errorf("select state %s: %w", key, err))
	}
	return v, nil
}
