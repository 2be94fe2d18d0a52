// Package store provides the persistence layer for indexed API documents:
// sparse keyword indexes (Bleve, SQLite FTS5), a vector store (HNSW), and
// document/metadata persistence (SQLite).
package store

import (
	"context"
	"fmt"
	"time"
)

// State keys for the document store.
const (
	// StateKeyIndexDimension stores the embedding dimension used for the index
	StateKeyIndexDimension = "index_embedding_dimension"
	// StateKeyIndexModel stores the embedding model name used for the index
	StateKeyIndexModel = "index_embedding_model"
)

// CurrentSchemaVersion is the current document store schema version.
const CurrentSchemaVersion = 1

// Document represents a retrievable API documentation unit: an endpoint
// description, a guide section, a changelog entry.
type Document struct {
	ID        string         // Caller-assigned stable identifier
	Title     string         // Short human-readable title
	Content   string         // Full text content
	Metadata  map[string]any // Structured fields: strings, numbers, bools, string lists
	Embedding []float32      // Dense vector, may be nil when embedding was unavailable
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SparseResult represents a single keyword search result.
type SparseResult struct {
	DocID        string
	Score        float64
	MatchedTerms []string
}

// SparseStats provides statistics about the sparse index.
type SparseStats struct {
	DocumentCount int
}

// SparseIndex provides keyword search using BM25 scoring.
type SparseIndex interface {
	// Index adds documents to the index, replacing existing IDs
	Index(ctx context.Context, docs []*Document) error

	// Search returns documents matching query, scored by BM25,
	// ordered by score descending
	Search(ctx context.Context, query string, limit int) ([]*SparseResult, error)

	// Delete removes documents from index
	Delete(ctx context.Context, docIDs []string) error

	// AllIDs returns all document IDs in the index (for consistency checks)
	AllIDs() ([]string, error)

	// Stats returns index statistics
	Stats() *SparseStats

	Close() error
}

// BM25Config configures sparse-index tokenization. The BM25 scoring
// parameters themselves are not configurable: FTS5's bm25() only
// accepts column weights and Bleve scores with its built-in model.
type BM25Config struct {
	// StopWords is a list of words to filter out during tokenization
	StopWords []string

	// MinTokenLength is minimum token length to index (default: 2)
	MinTokenLength int
}

// DefaultBM25Config returns default BM25 configuration.
func DefaultBM25Config() BM25Config {
	return BM25Config{
		StopWords:      DefaultDocStopWords,
		MinTokenLength: DefaultMinTokenLength,
	}
}

// DefaultDocStopWords contains high-frequency documentation words that
// carry little retrieval signal.
var DefaultDocStopWords = []string{
	"the", "a", "an", "of", "to", "and", "or", "is", "are",
	"for", "with", "this", "that", "be", "as", "by", "on", "it",
}

// DenseResult represents a single vector search result.
type DenseResult struct {
	ID       string  // Document ID
	Distance float32 // Cosine distance, lower is more similar (0-2)
	Score    float64 // Normalized similarity in [0,1]: (cos+1)/2
}

// VectorStoreConfig configures the vector store.
type VectorStoreConfig struct {
	// Dimensions is the vector dimension (256 for static, provider-specific otherwise)
	Dimensions int

	// M is HNSW max connections per layer (default: 16)
	M int

	// EfSearch is HNSW query-time search width (default: 64)
	EfSearch int
}

// DefaultVectorStoreConfig returns sensible defaults for the vector store.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions: dimensions,
		M:          16,
		EfSearch:   64,
	}
}

// VectorStore provides semantic search over document embeddings.
type VectorStore interface {
	// Add inserts vectors with their IDs. If an ID exists, it is replaced.
	Add(ctx context.Context, ids []string, vectors [][]float32) error

	// Search finds k nearest neighbors to the query vector, most
	// similar first
	Search(ctx context.Context, query []float32, k int) ([]*DenseResult, error)

	// Delete removes vectors by ID.
	Delete(ctx context.Context, ids []string) error

	// AllIDs returns all vector IDs in the store (for consistency checks)
	AllIDs() []string

	// Contains checks if ID exists.
	Contains(id string) bool

	// Count returns number of vectors.
	Count() int

	// Persistence
	Save(path string) error
	Load(path string) error
	Close() error
}

// DocumentStore persists documents, metadata, and embeddings in SQLite.
type DocumentStore interface {
	// SaveDocuments upserts documents with their metadata and embeddings
	SaveDocuments(ctx context.Context, docs []*Document) error

	// GetDocument retrieves a single document by ID
	GetDocument(ctx context.Context, id string) (*Document, error)

	// GetDocuments retrieves documents by ID, skipping missing ones
	GetDocuments(ctx context.Context, ids []string) ([]*Document, error)

	// DeleteDocuments removes documents by ID
	DeleteDocuments(ctx context.Context, ids []string) error

	// AllMetadata returns the metadata of every document, keyed by ID.
	AllMetadata(ctx context.Context) (map[string]map[string]any, error)

	// Count returns the number of stored documents
	Count(ctx context.Context) (int, error)

	// State operations (key-value store for index state)
	GetState(ctx context.Context, key string) (string, error)
	SetState(ctx context.Context, key, value string) error

	Close() error
}

// ErrDimensionMismatch indicates vector dimension mismatch between the
// index and the current embedder.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (reindex with the current embedding model)", e.Expected, e.Got)
}
