package store

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
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/blevesearch/bleve/v2/search"
)

const (
	// DocTokenizerName is the name of our identifier-aware tokenizer.
	DocTokenizerName = "doc_tokenizer"

	// DocStopFilterName is the name of our stop word filter.
	DocStopFilterName = "doc_stop"

	// DocAnalyzerName is the name of our documentation analyzer.
	DocAnalyzerName = "doc_analyzer"

	// Per-mapping instance names carrying the configured tokenization
	// parameters, distinct from the registered type names above.
	docTokenizerInstanceName  = "doc_tokenizer_configured"
	docStopFilterInstanceName = "doc_stop_configured"
)

func init() {
	_ = registry.RegisterTokenizer(DocTokenizerName, docTokenizerConstructor)
	_ = registry.RegisterTokenFilter(DocStopFilterName, docStopFilterConstructor)
}

// BleveSparseIndex wraps Bleve v2 for BM25 keyword search. Stop words
// and the minimum token length are baked into the index's analyzer at
// creation time, so they persist with the index.
type BleveSparseIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

// bleveDocument is the document structure for Bleve indexing.
type bleveDocument struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// validateIndexIntegrity checks if a Bleve index is valid before opening.
// Returns nil if valid, error describing corruption if not.
func validateIndexIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // Index doesn't exist, will be created
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
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

// isCorruptionError checks if an error indicates Bleve index corruption.
func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "unexpected end of JSON") ||
		strings.Contains(errStr, "error parsing mapping JSON") ||
		strings.Contains(errStr, "failed to load segment") ||
		strings.Contains(errStr, "error opening bolt") ||
		strings.Contains(errStr, "no such file or directory") ||
		err == bleve.ErrorIndexMetaCorrupt
}

// NewBleveSparseIndex creates a new BM25 index.
// If path is empty, creates an in-memory index.
// Validates index integrity before opening and auto-recovers from corruption.
func NewBleveSparseIndex(path string, config BM25Config) (*BleveSparseIndex, error) {
	indexMapping, err := createIndexMapping(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create index mapping: %w", err)
	}

	var idx bleve.Index
	if path == "" {
		// In-memory index for testing
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}

		if validErr := validateIndexIntegrity(path); validErr != nil {
			slog.Warn("sparse_index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))

			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, fmt.Errorf("sparse index corrupted at %s and cannot remove: %w (original error: %v)", path, removeErr, validErr)
			}
			slog.Info("sparse_index_cleared",
				slog.String("path", path),
				slog.String("reason", "corruption detected, please reindex"))
		}

		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		} else if err != nil && isCorruptionError(err) {
			slog.Warn("sparse_index_open_failed",
				slog.String("path", path),
				slog.String("error", err.Error()))

			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, fmt.Errorf("sparse index corrupted, cannot clear: %w (original: %v)", removeErr, err)
			}
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open index: %w", err)
	}

	return &BleveSparseIndex{
		index: idx,
		path:  path,
	}, nil
}

// createIndexMapping creates the Bleve index mapping with BM25 scoring.
// The configured stop words and minimum token length are written into
// the mapping so they survive index reopen.
func createIndexMapping(config BM25Config) (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	stopWords := config.StopWords
	if len(stopWords) == 0 {
		stopWords = DefaultDocStopWords
	}

	err := indexMapping.AddCustomTokenizer(docTokenizerInstanceName, map[string]interface{}{
		"type":             DocTokenizerName,
		"min_token_length": config.MinTokenLength,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom tokenizer: %w", err)
	}

	err = indexMapping.AddCustomTokenFilter(docStopFilterInstanceName, map[string]interface{}{
		"type":       DocStopFilterName,
		"stop_words": stopWords,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom token filter: %w", err)
	}

	err = indexMapping.AddCustomAnalyzer(DocAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": docTokenizerInstanceName,
		"token_filters": []string{
			lowercase.Name,
			docStopFilterInstanceName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}

	indexMapping.DefaultAnalyzer = DocAnalyzerName

	return indexMapping, nil
}

// Index adds documents to the index.
func (b *BleveSparseIndex) Index(ctx context.Context, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("index is closed")
	}

	batch := b.index.NewBatch()
	for _, doc := range docs {
		bleveDoc := bleveDocument{Title: doc.Title, Content: doc.Content}
		if err := batch.Index(doc.ID, bleveDoc); err != nil {
			return fmt.Errorf("failed to index document %s: %w", doc.ID, err)
		}
	}

	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}

	return nil
}

// Search returns documents matching query, scored by BM25.
func (b *BleveSparseIndex) Search(ctx context.Context, queryStr string, limit int) ([]*SparseResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("index is closed")
	}

	if strings.TrimSpace(queryStr) == "" {
		return []*SparseResult{}, nil
	}

	// Match across content and title; a title hit alone should surface
	// endpoint reference pages.
	contentQuery := bleve.NewMatchQuery(queryStr)
	contentQuery.SetField("content")
	titleQuery := bleve.NewMatchQuery(queryStr)
	titleQuery.SetField("title")
	query := bleve.NewDisjunctionQuery(contentQuery, titleQuery)

	searchRequest := bleve.NewSearchRequest(query)
	searchRequest.Size = limit
	searchRequest.IncludeLocations = true // For matched terms

	result, err := b.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]*SparseResult, 0, len(result.Hits))
	for _, hit := range result.Hits {
		results = append(results, &SparseResult{
			DocID:        hit.ID,
			Score:        hit.Score,
			MatchedTerms: extractMatchedTerms(hit),
		})
	}

	return results, nil
}

// Delete removes documents from the index.
func (b *BleveSparseIndex) Delete(ctx context.Context, docIDs []string) error {
	if len(docIDs) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("index is closed")
	}

	batch := b.index.NewBatch()
	for _, id := range docIDs {
		batch.Delete(id)
	}

	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}

	return nil
}

// AllIDs returns all document IDs in the index.
func (b *BleveSparseIndex) AllIDs() ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("index is closed")
	}

	query := bleve.NewMatchAllQuery()
	docCount, _ := b.index.DocCount()

	req := bleve.NewSearchRequest(query)
	req.Size = int(docCount)
	req.Fields = []string{} // Only need IDs, not content

	result, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("failed to search for all IDs: %w", err)
	}

	ids := make([]string, len(result.Hits))
	for i, hit := range result.Hits {
		ids[i] = hit.ID
	}

	return ids, nil
}

// Stats returns index statistics.
func (b *BleveSparseIndex) Stats() *SparseStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return &SparseStats{}
	}

	docCount, _ := b.index.DocCount()

	return &SparseStats{
		DocumentCount: int(docCount),
	}
}

// Close closes the index.
func (b *BleveSparseIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true
	if b.index != nil {
		return b.index.Close()
	}
	return nil
}

// extractMatchedTerms extracts matched terms from a search hit.
func extractMatchedTerms(hit *search.DocumentMatch) []string {
	terms := make(map[string]struct{})
	for _, locations := range hit.Locations {
		for term := range locations {
			terms[term] = struct{}{}
		}
	}

	result := make([]string, 0, len(terms))
	for term := range terms {
		result = append(result, term)
	}
	return result
}

// Verify interface implementation
var _ SparseIndex = (*BleveSparseIndex)(nil)

// docTokenizerConstructor creates an identifier-aware tokenizer for Bleve.
// The config map comes from the mapping definition, either as native Go
// values or JSON-decoded ones when a persisted index is reopened.
func docTokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	minLen := DefaultMinTokenLength
	switch v := config["min_token_length"].(type) {
	case int:
		minLen = v
	case float64:
		minLen = int(v)
	}
	return &bleveDocTokenizer{minTokenLength: minLen}, nil
}

// bleveDocTokenizer implements analysis.Tokenizer for API-doc tokenization.
type bleveDocTokenizer struct {
	minTokenLength int
}

// Tokenize implements analysis.Tokenizer.
func (t *bleveDocTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := string(input)
	tokens := TokenizeDocMin(text, t.minTokenLength)

	result := make(analysis.TokenStream, 0, len(tokens))
	pos := 1
	offset := 0

	for _, token := range tokens {
		// Find token position in original text (case-insensitive search)
		start := strings.Index(strings.ToLower(text[offset:]), strings.ToLower(token))
		if start == -1 {
			start = offset
		} else {
			start += offset
		}
		end := start + len(token)

		result = append(result, &analysis.Token{
			Term:     []byte(token),
			Start:    start,
			End:      end,
			Position: pos,
			Type:     analysis.AlphaNumeric,
		})
		pos++
		if end <= len(text) {
			offset = end
		}
	}

	return result
}

// docStopFilterConstructor creates a stop word filter for Bleve,
// honoring the stop_words list from the mapping definition.
func docStopFilterConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.TokenFilter, error) {
	words := DefaultDocStopWords
	switch v := config["stop_words"].(type) {
	case []string:
		words = v
	case []interface{}:
		words = make([]string, 0, len(v))
		for _, w := range v {
			if s, ok := w.(string); ok {
				words = append(words, s)
			}
		}
	}
	return &bleveDocStopFilter{
		stopWords: BuildStopWordMap(words),
	}, nil
}

// bleveDocStopFilter implements analysis.TokenFilter for documentation stop words.
type bleveDocStopFilter struct {
	stopWords map[string]struct{}
}

// Filter implements analysis.TokenFilter.
func (f *bleveDocStopFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	result := make(analysis.TokenStream, 0, len(input))
	for _, token := range input {
		term := strings.ToLower(string(token.Term))
		if _, isStop := f.stopWords[term]; !isStop {
			result = append(result, token)
		}
	}
	return result
}
