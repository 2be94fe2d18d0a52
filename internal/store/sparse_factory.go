package store

import (
	"fmt"
	"os"
)

// SparseBackend represents the sparse index backend type.
type SparseBackend string

const (
	// SparseBackendBleve uses Bleve v2 for BM25 search (default).
	// Has exclusive file locking via BoltDB - single process only.
	SparseBackendBleve SparseBackend = "bleve"

	// SparseBackendSQLite uses SQLite FTS5 for BM25 search.
	// Enables concurrent multi-process access via WAL mode.
	SparseBackendSQLite SparseBackend = "sqlite"
)

// NewSparseIndex creates a SparseIndex using the specified backend.
// The path should be the base path without extension - the extension is
// added based on the backend type (.bleve for Bleve, .db for SQLite).
//
// If basePath is empty, creates an in-memory index for testing.
func NewSparseIndex(basePath string, config BM25Config, backend string) (SparseIndex, error) {
	switch backend {
	case string(SparseBackendBleve), "":
		var path string
		if basePath != "" {
			path = basePath + ".bleve"
		}
		return NewBleveSparseIndex(path, config)

	case string(SparseBackendSQLite):
		var path string
		if basePath != "" {
			path = basePath + ".db"
		}
		return NewSQLiteSparseIndex(path, config)

	default:
		return nil, fmt.Errorf("unknown sparse backend: %s (valid options: bleve, sqlite)", backend)
	}
}

// DetectSparseBackend detects which backend an existing index uses based on
// file existence. Returns an empty string if no index exists.
func DetectSparseBackend(basePath string) SparseBackend {
	if dirExists(basePath + ".bleve") {
		return SparseBackendBleve
	}
	if fileExists(basePath + ".db") {
		return SparseBackendSQLite
	}
	return ""
}

// fileExists checks if a file exists at the given path.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// dirExists checks if a directory exists at the given path.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
