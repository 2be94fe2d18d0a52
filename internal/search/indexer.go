package search

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/apidex/apidex/internal/store"
)

// Index embeds and indexes documents across all three stores. The
// document store is written first and is the source of truth; the
// sparse and vector indexes follow. Re-indexing an existing ID
// replaces it everywhere and invalidates its cached rerank scores,
// since those were computed against the old content.
func (e *Engine) Index(ctx context.Context, docs []*store.Document) error {
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Title + "\n" + doc.Content
	}

	vectors, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		// Documents stay searchable through the keyword leg; their
		// embeddings get backfilled on the next successful index run.
		e.logger.Warn("embedding failed, indexing without vectors", "error", err, "docs", len(docs))
		vectors = nil
	}

	now := time.Now()
	for i, doc := range docs {
		if doc.ID == "" {
			return fmt.Errorf("document at position %d has empty ID", i)
		}
		if vectors != nil {
			doc.Embedding = vectors[i]
		}
		doc.UpdatedAt = now
	}

	if err := e.docs.SaveDocuments(ctx, docs); err != nil {
		return fmt.Errorf("saving documents: %w", err)
	}
	if err := e.sparse.Index(ctx, docs); err != nil {
		return fmt.Errorf("indexing keywords: %w", err)
	}

	if vectors != nil {
		ids := make([]string, len(docs))
		for i, doc := range docs {
			ids[i] = doc.ID
		}
		if err := e.vector.Add(ctx, ids, vectors); err != nil {
			return fmt.Errorf("indexing vectors: %w", err)
		}
	}

	if e.reranker != nil {
		for _, doc := range docs {
			e.reranker.Invalidate(doc.ID)
		}
	}

	if err := e.recordIndexState(ctx); err != nil {
		return err
	}

	e.logger.Info("indexed documents", "count", len(docs), "embedded", vectors != nil)
	return nil
}

// Delete removes documents from every store and drops their cached
// rerank scores.
func (e *Engine) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	if err := e.docs.DeleteDocuments(ctx, ids); err != nil {
		return fmt.Errorf("deleting documents: %w", err)
	}
	if err := e.sparse.Delete(ctx, ids); err != nil {
		return fmt.Errorf("deleting from keyword index: %w", err)
	}
	if err := e.vector.Delete(ctx, ids); err != nil {
		return fmt.Errorf("deleting vectors: %w", err)
	}

	if e.reranker != nil {
		for _, id := range ids {
			e.reranker.Invalidate(id)
		}
	}

	e.logger.Info("deleted documents", "count", len(ids))
	return nil
}

// recordIndexState pins the embedding dimension and model so a later
// engine start with a different embedder fails fast.
func (e *Engine) recordIndexState(ctx context.Context) error {
	if err := e.docs.SetState(ctx, store.StateKeyIndexDimension, strconv.Itoa(e.embedder.Dimensions())); err != nil {
		return fmt.Errorf("recording index dimension: %w", err)
	}
	if err := e.docs.SetState(ctx, store.StateKeyIndexModel, e.embedder.ModelName()); err != nil {
		return fmt.Errorf("recording index model: %w", err)
	}
	return nil
}
