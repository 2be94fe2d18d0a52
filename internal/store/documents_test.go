package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDocStore(t *testing.T) *SQLiteDocumentStore {
	s, err := NewSQLiteDocumentStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestDocumentStore_SaveAndGet(t *testing.T) {
	s := newTestDocStore(t)
	ctx := context.Background()

	doc := &Document{
		ID:      "ep-create-charge",
		Title:   "Create a charge",
		Content: "Creates a charge against a payment method.",
		Metadata: map[string]any{
			"category": "payments",
			"version":  float64(2),
			"tags":     []any{"charges", "payments"},
		},
		Embedding: []float32{0.1, 0.2, 0.3},
	}
	require.NoError(t, s.SaveDocuments(ctx, []*Document{doc}))

	got, err := s.GetDocument(ctx, "ep-create-charge")
	require.NoError(t, err)

	assert.Equal(t, doc.Title, got.Title)
	assert.Equal(t, doc.Content, got.Content)
	assert.Equal(t, "payments", got.Metadata["category"])
	assert.Equal(t, float64(2), got.Metadata["version"])
	assert.Equal(t, []any{"charges", "payments"}, got.Metadata["tags"])
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, got.Embedding)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestDocumentStore_GetMissing(t *testing.T) {
	s := newTestDocStore(t)

	_, err := s.GetDocument(context.Background(), "nope")
	assert.Error(t, err)
}

func TestDocumentStore_Upsert(t *testing.T) {
	s := newTestDocStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveDocuments(ctx, []*Document{
		{ID: "d1", Content: "first"},
	}))
	first, err := s.GetDocument(ctx, "d1")
	require.NoError(t, err)

	require.NoError(t, s.SaveDocuments(ctx, []*Document{
		{ID: "d1", Content: "second", CreatedAt: first.CreatedAt},
	}))

	got, err := s.GetDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "second", got.Content)
	assert.Equal(t, first.CreatedAt, got.CreatedAt)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDocumentStore_GetDocumentsOrderAndMissing(t *testing.T) {
	s := newTestDocStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveDocuments(ctx, []*Document{
		{ID: "a", Content: "A"},
		{ID: "b", Content: "B"},
		{ID: "c", Content: "C"},
	}))

	docs, err := s.GetDocuments(ctx, []string{"c", "missing", "a"})
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "c", docs[0].ID, "input order must be preserved")
	assert.Equal(t, "a", docs[1].ID)
}

func TestDocumentStore_Delete(t *testing.T) {
	s := newTestDocStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveDocuments(ctx, []*Document{
		{ID: "a", Content: "A"},
		{ID: "b", Content: "B"},
	}))
	require.NoError(t, s.DeleteDocuments(ctx, []string{"a"}))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = s.GetDocument(ctx, "a")
	assert.Error(t, err)
}

func TestDocumentStore_AllMetadata(t *testing.T) {
	s := newTestDocStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveDocuments(ctx, []*Document{
		{ID: "a", Content: "A", Metadata: map[string]any{"category": "auth"}},
		{ID: "b", Content: "B"},
	}))

	meta, err := s.AllMetadata(ctx)
	require.NoError(t, err)
	require.Len(t, meta, 2)

	assert.Equal(t, "auth", meta["a"]["category"])
	assert.Empty(t, meta["b"], "nil metadata is stored as empty object")
}

func TestDocumentStore_State(t *testing.T) {
	s := newTestDocStore(t)
	ctx := context.Background()

	val, err := s.GetState(ctx, StateKeyIndexModel)
	require.NoError(t, err)
	assert.Empty(t, val)

	require.NoError(t, s.SetState(ctx, StateKeyIndexModel, "static-hash"))
	require.NoError(t, s.SetState(ctx, StateKeyIndexModel, "text-embedding-3-small"))

	val, err = s.GetState(ctx, StateKeyIndexModel)
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-3-small", val)
}

func TestDocumentStore_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "documents.db")

	s, err := NewSQLiteDocumentStore(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveDocuments(context.Background(), []*Document{
		{ID: "a", Content: "A", Embedding: []float32{1, 2}},
	}))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteDocumentStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetDocument(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, got.Embedding)
}

func TestEncodeDecodeEmbedding(t *testing.T) {
	vec := []float32{0.5, -1.25, 3.75}
	decoded, err := decodeEmbedding(encodeEmbedding(vec))
	require.NoError(t, err)
	assert.Equal(t, vec, decoded)

	_, err = decodeEmbedding([]byte{1, 2, 3})
	assert.Error(t, err)
}
