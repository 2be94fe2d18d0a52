package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// SQLiteDocumentStore persists documents, metadata JSON, and embeddings
// in a single SQLite database with WAL mode.
type SQLiteDocumentStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// Verify interface implementation at compile time
var _ DocumentStore = (*SQLiteDocumentStore)(nil)

// NewSQLiteDocumentStore opens (or creates) a document store at path.
// If path is empty, creates an in-memory store for testing.
func NewSQLiteDocumentStore(path string) (*SQLiteDocumentStore, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer to prevent lock contention
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &SQLiteDocumentStore{
		db:   db,
		path: path,
	}

	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// initSchema creates the documents and state tables.
func (s *SQLiteDocumentStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS documents (
		id         TEXT PRIMARY KEY,
		title      TEXT NOT NULL DEFAULT '',
		content    TEXT NOT NULL,
		metadata   TEXT NOT NULL DEFAULT '{}', -- JSON object
		embedding  BLOB,                       -- float32 little-endian, nullable
		created_at INTEGER NOT NULL,           -- unix seconds
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS state (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO schema_version (version) VALUES (?)`,
		CurrentSchemaVersion)
	return err
}

// SaveDocuments upserts documents with their metadata and embeddings.
// CreatedAt is preserved on update.
func (s *SQLiteDocumentStore) SaveDocuments(ctx context.Context, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO documents (id, title, content, metadata, embedding, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			metadata = excluded.metadata,
			embedding = excluded.embedding,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, doc := range docs {
		metaJSON, err := json.Marshal(metadataOrEmpty(doc.Metadata))
		if err != nil {
			return fmt.Errorf("failed to marshal metadata for %s: %w", doc.ID, err)
		}

		var embedding any
		if doc.Embedding != nil {
			embedding = encodeEmbedding(doc.Embedding)
		}

		createdAt := now
		if !doc.CreatedAt.IsZero() {
			createdAt = doc.CreatedAt.Unix()
		}

		if _, err := stmt.ExecContext(ctx, doc.ID, doc.Title, doc.Content,
			string(metaJSON), embedding, createdAt, now); err != nil {
			return fmt.Errorf("failed to save document %s: %w", doc.ID, err)
		}
	}

	return tx.Commit()
}

// GetDocument retrieves a single document by ID.
// Returns sql.ErrNoRows wrapped when the document does not exist.
func (s *SQLiteDocumentStore) GetDocument(ctx context.Context, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, content, metadata, embedding, created_at, updated_at
		FROM documents WHERE id = ?`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("document %s not found: %w", id, err)
		}
		return nil, err
	}
	return doc, nil
}

// GetDocuments retrieves documents by ID, preserving the input order and
// skipping missing IDs.
func (s *SQLiteDocumentStore) GetDocuments(ctx context.Context, ids []string) ([]*Document, error) {
	if len(ids) == 0 {
		return []*Document{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(`
		SELECT id, title, content, metadata, embedding, created_at, updated_at
		FROM documents WHERE id IN (%s)`, strings.Join(placeholders, ","))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*Document, len(ids))
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		byID[doc.ID] = doc
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	results := make([]*Document, 0, len(ids))
	for _, id := range ids {
		if doc, ok := byID[id]; ok {
			results = append(results, doc)
		}
	}
	return results, nil
}

// DeleteDocuments removes documents by ID.
func (s *SQLiteDocumentStore) DeleteDocuments(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf("DELETE FROM documents WHERE id IN (%s)", strings.Join(placeholders, ","))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}

	return nil
}

// AllMetadata returns the metadata of every document, keyed by ID.
func (s *SQLiteDocumentStore) AllMetadata(ctx context.Context) (map[string]map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, metadata FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("failed to query metadata: %w", err)
	}
	defer rows.Close()

	result := make(map[string]map[string]any)
	for rows.Next() {
		var id, metaJSON string
		if err := rows.Scan(&id, &metaJSON); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}

		var meta map[string]any
		if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
			return nil, fmt.Errorf("corrupt metadata for %s: %w", id, err)
		}
		result[id] = meta
	}

	return result, rows.Err()
}

// Count returns the number of stored documents.
func (s *SQLiteDocumentStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

// GetState retrieves a state value. Returns empty string when the key
// does not exist.
func (s *SQLiteDocumentStore) GetState(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", fmt.Errorf("store is closed")
	}

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get state %s: %w", key, err)
	}
	return value, nil
}

// SetState stores a state value.
func (s *SQLiteDocumentStore) SetState(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO state (key, value) VALUES (?, ?)`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set state %s: %w", key, err)
	}
	return nil
}

// Close closes the store, forcing a WAL checkpoint for durability.
func (s *SQLiteDocumentStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	if s.db != nil {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		return s.db.Close()
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanDocument.
type scanner interface {
	Scan(dest ...any) error
}

// scanDocument scans a document row.
func scanDocument(row scanner) (*Document, error) {
	var doc Document
	var metaJSON string
	var embedding []byte
	var createdAt, updatedAt int64

	if err := row.Scan(&doc.ID, &doc.Title, &doc.Content, &metaJSON,
		&embedding, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(metaJSON), &doc.Metadata); err != nil {
		return nil, fmt.Errorf("corrupt metadata for %s: %w", doc.ID, err)
	}

	if len(embedding) > 0 {
		vec, err := decodeEmbedding(embedding)
		if err != nil {
			return nil, fmt.Errorf("corrupt embedding for %s: %w", doc.ID, err)
		}
		doc.Embedding = vec
	}

	doc.CreatedAt = time.Unix(createdAt, 0)
	doc.UpdatedAt = time.Unix(updatedAt, 0)

	return &doc, nil
}

// metadataOrEmpty returns an empty map for nil metadata so rows always
// hold a JSON object.
func metadataOrEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// encodeEmbedding packs a float32 vector as little-endian bytes.
func encodeEmbedding(vec []float32) []byte {
	buf := new(bytes.Buffer)
	buf.Grow(len(vec) * 4)
	for _, v := range vec {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(v))
		buf.Write(b[:])
	}
	return buf.Bytes()
}

// decodeEmbedding unpacks little-endian bytes into a float32 vector.
func decodeEmbedding(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
