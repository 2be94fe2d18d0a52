package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// SQLiteSparseIndex implements SparseIndex using SQLite FTS5.
// WAL mode allows concurrent multi-process access to the same index.
type SQLiteSparseIndex struct {
	mu        sync.RWMutex
	db        *sql.DB
	path      string
	config    BM25Config
	closed    bool
	stopWords map[string]struct{}
}

// Verify interface implementation at compile time
var _ SparseIndex = (*SQLiteSparseIndex)(nil)

// validateSQLiteIntegrity checks if a SQLite FTS5 index is valid before opening.
// Returns nil if valid, error describing corruption if not.
func validateSQLiteIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // Database doesn't exist, will be created
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}

	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master
                       WHERE type='table' AND name='fts_content'`).Scan(&count)
	if err != nil {
		return fmt.Errorf("cannot query schema: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("FTS5 table 'fts_content' missing")
	}

	return nil
}

// NewSQLiteSparseIndex creates a new SQLite FTS5-based BM25 index.
// If path is empty, creates an in-memory index for testing.
func NewSQLiteSparseIndex(path string, config BM25Config) (*SQLiteSparseIndex, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}

		if validErr := validateSQLiteIntegrity(path); validErr != nil {
			slog.Warn("sqlite_sparse_index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))

			if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
				return nil, fmt.Errorf("sparse index corrupted at %s and cannot remove: %w (original error: %v)", path, removeErr, validErr)
			}
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")

			slog.Info("sqlite_sparse_index_cleared",
				slog.String("path", path),
				slog.String("reason", "corruption detected, please reindex"))
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

	// WAL mode must be set via PRAGMA for modernc.org/sqlite, DSN params
	// may be ignored.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536", // 64MB cache (negative = KB)
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	idx := &SQLiteSparseIndex{
		db:        db,
		path:      path,
		config:    config,
		stopWords: BuildStopWordMap(config.StopWords),
	}

	if err := idx.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return idx, nil
}

// initSchema creates the FTS5 virtual table and supporting tables.
func (s *SQLiteSparseIndex) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	-- FTS5 virtual table for full-text search with BM25 scoring.
	-- doc_id is UNINDEXED (stored but not searchable).
	-- content stores pre-tokenized text (identifier splitting applied).
	CREATE VIRTUAL TABLE IF NOT EXISTS fts_content USING fts5(
		doc_id UNINDEXED,
		content,
		tokenize='unicode61'
	);

	-- Auxiliary table for tracking document IDs (AllIDs method).
	-- FTS5 doesn't expose rowid reliably for external content tables.
	CREATE TABLE IF NOT EXISTS doc_ids (
		doc_id TEXT PRIMARY KEY
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

// Index adds documents to the index.
// Content is pre-tokenized for identifier handling. Existing IDs are replaced.
func (s *SQLiteSparseIndex) Index(ctx context.Context, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("index is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// FTS5 virtual tables don't support REPLACE, so delete first.
	deleteStmt, err := tx.PrepareContext(ctx,
		`DELETE FROM fts_content WHERE doc_id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete statement: %w", err)
	}
	defer deleteStmt.Close()

	insertStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO fts_content(doc_id, content) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare FTS statement: %w", err)
	}
	defer insertStmt.Close()

	idStmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO doc_ids(doc_id) VALUES (?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare ID statement: %w", err)
	}
	defer idStmt.Close()

	for _, doc := range docs {
		tokens := TokenizeDocMin(doc.Title+" "+doc.Content, s.config.MinTokenLength)
		tokens = FilterStopWords(tokens, s.stopWords)
		processedContent := strings.Join(tokens, " ")

		if _, err := deleteStmt.ExecContext(ctx, doc.ID); err != nil {
			return fmt.Errorf("failed to delete existing document %s: %w", doc.ID, err)
		}
		if _, err := insertStmt.ExecContext(ctx, doc.ID, processedContent); err != nil {
			return fmt.Errorf("failed to index document %s: %w", doc.ID, err)
		}
		if _, err := idStmt.ExecContext(ctx, doc.ID); err != nil {
			return fmt.Errorf("failed to track document ID %s: %w", doc.ID, err)
		}
	}

	return tx.Commit()
}

// Search returns documents matching query, scored by BM25.
// Query is pre-tokenized using the same tokenization as indexing.
func (s *SQLiteSparseIndex) Search(ctx context.Context, queryStr string, limit int) ([]*SparseResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("index is closed")
	}

	if strings.TrimSpace(queryStr) == "" {
		return []*SparseResult{}, nil
	}

	tokens := TokenizeDocMin(queryStr, s.config.MinTokenLength)
	tokens = FilterStopWords(tokens, s.stopWords)
	if len(tokens) == 0 {
		return []*SparseResult{}, nil
	}

	// FTS5 treats space-separated terms as AND by default; OR them so a
	// partial match still scores.
	processedQuery := strings.Join(tokens, " OR ")

	// FTS5 bm25() returns negative values where lower = better match.
	query := `
		SELECT doc_id, bm25(fts_content) as score
		FROM fts_content
		WHERE content MATCH ?
		ORDER BY score
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, processedQuery, limit)
	if err != nil {
		// FTS5 returns error for invalid match queries, treat as no results
		if strings.Contains(err.Error(), "fts5:") || strings.Contains(err.Error(), "syntax error") {
			return []*SparseResult{}, nil
		}
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	var results []*SparseResult
	for rows.Next() {
		var docID string
		var score float64
		if err := rows.Scan(&docID, &score); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		// Negate score: higher positive = better match (consistent with Bleve)
		results = append(results, &SparseResult{
			DocID:        docID,
			Score:        -score,
			MatchedTerms: tokens,
		})
	}

	return results, rows.Err()
}

// Delete removes documents from the index.
func (s *SQLiteSparseIndex) Delete(ctx context.Context, docIDs []string) error {
	if len(docIDs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("index is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	placeholders := make([]string, len(docIDs))
	args := make([]any, len(docIDs))
	for i, id := range docIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	inClause := strings.Join(placeholders, ",")

	ftsQuery := fmt.Sprintf("DELETE FROM fts_content WHERE doc_id IN (%s)", inClause)
	if _, err := tx.ExecContext(ctx, ftsQuery, args...); err != nil {
		return fmt.Errorf("failed to delete from FTS: %w", err)
	}

	idsQuery := fmt.Sprintf("DELETE FROM doc_ids WHERE doc_id IN (%s)", inClause)
	if _, err := tx.ExecContext(ctx, idsQuery, args...); err != nil {
		return fmt.Errorf("failed to delete from doc_ids: %w", err)
	}

	return tx.Commit()
}

// AllIDs returns all document IDs in the index.
func (s *SQLiteSparseIndex) AllIDs() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("index is closed")
	}

	rows, err := s.db.Query(`SELECT doc_id FROM doc_ids ORDER BY doc_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query IDs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan ID: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// Stats returns index statistics.
func (s *SQLiteSparseIndex) Stats() *SparseStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return &SparseStats{}
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM doc_ids`).Scan(&count); err != nil {
		return &SparseStats{}
	}

	return &SparseStats{DocumentCount: count}
}

// Close closes the index, forcing a WAL checkpoint for durability.
func (s *SQLiteSparseIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil // Idempotent (matches Bleve behavior)
	}

	s.closed = true
	if s.db != nil {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		return s.db.Close()
	}
	return nil
}
