package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/apidex/apidex/internal/apperrors"
	"github.com/apidex/apidex/internal/embed"
	"github.com/apidex/apidex/internal/store"
)

// Engine orchestrates the retrieval pipeline. It owns no index data
// itself; the sparse index, vector store, and document store are
// injected and treated as already-concurrency-safe collaborators.
type Engine struct {
	embedder embed.Embedder
	sparse   store.SparseIndex
	vector   store.VectorStore
	docs     store.DocumentStore

	fuser       *RRFFuser
	expander    Expander
	reranker    *Reranker
	diversifier *Diversifier

	defaultLimit   int
	maxLimit       int
	overFetch      int
	maxFilterDepth int
	timeout        time.Duration

	logger *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithFusionAlpha sets the default dense-leg weight.
func WithFusionAlpha(alpha float64) EngineOption {
	return func(e *Engine) {
		if alpha >= 0 && alpha <= 1 {
			e.fuser.Alpha = alpha
		}
	}
}

// WithRRFConstant sets the rank dampening constant k.
func WithRRFConstant(k int) EngineOption {
	return func(e *Engine) {
		if k > 0 {
			e.fuser.K = k
		}
	}
}

// WithExpander enables query expansion.
func WithExpander(exp Expander) EngineOption {
	return func(e *Engine) {
		e.expander = exp
	}
}

// WithReranker enables cross-encoder reranking.
func WithReranker(r *Reranker) EngineOption {
	return func(e *Engine) {
		e.reranker = r
	}
}

// WithDiversityLambda sets the default MMR lambda.
func WithDiversityLambda(lambda float64) EngineOption {
	return func(e *Engine) {
		if lambda >= 0 && lambda <= 1 {
			e.diversifier.Lambda = lambda
		}
	}
}

// WithDefaultLimit sets the result count used when a request omits one.
func WithDefaultLimit(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.defaultLimit = n
		}
	}
}

// WithMaxLimit caps per-request result counts.
func WithMaxLimit(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxLimit = n
		}
	}
}

// WithOverFetch sets the leg fetch multiplier.
func WithOverFetch(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.overFetch = n
		}
	}
}

// WithMaxFilterDepth bounds filter tree depth.
func WithMaxFilterDepth(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxFilterDepth = n
		}
	}
}

// WithTimeout bounds total request duration. Zero disables the bound.
func WithTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.timeout = d
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine wires the pipeline together. It verifies that the stored
// index was built with the current embedder's dimension so a model
// swap surfaces immediately instead of as silently broken recall.
func NewEngine(embedder embed.Embedder, sparse store.SparseIndex, vector store.VectorStore, docs store.DocumentStore, opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		embedder:       embedder,
		sparse:         sparse,
		vector:         vector,
		docs:           docs,
		fuser:          NewRRFFuser(DefaultFusionAlpha),
		diversifier:    NewDiversifier(DefaultDiversityLambda),
		defaultLimit:   DefaultLimit,
		maxLimit:       MaxLimit,
		overFetch:      DefaultOverFetch,
		maxFilterDepth: MaxFilterDepth,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := e.validateDimensions(context.Background()); err != nil {
		return nil, err
	}
	return e, nil
}

// validateDimensions compares the embedder against the dimension the
// index was built with. An empty store passes: state is written on
// first index.
func (e *Engine) validateDimensions(ctx context.Context) error {
	stored, err := e.docs.GetState(ctx, store.StateKeyIndexDimension)
	if err != nil {
		return fmt.Errorf("reading index state: %w", err)
	}
	if stored == "" {
		return nil
	}
	dim, err := strconv.Atoi(stored)
	if err != nil {
		return fmt.Errorf("corrupt index dimension state %q: %w", stored, err)
	}
	if dim != e.embedder.Dimensions() {
		return store.ErrDimensionMismatch{Expected: dim, Got: e.embedder.Dimensions()}
	}
	return nil
}

// Search runs the full pipeline for one request.
func (e *Engine) Search(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, apperrors.QueryEmpty()
	}

	limit := req.Limit
	if limit <= 0 {
		limit = e.defaultLimit
	}
	if limit > e.maxLimit {
		limit = e.maxLimit
	}

	if req.Filter != nil {
		if err := req.Filter.Validate(e.maxFilterDepth); err != nil {
			return nil, err
		}
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	resp := &Response{}

	// Expansion feeds the keyword leg only. The dense leg always
	// embeds the original query: synonym soup shifts the query vector
	// away from the user's intent.
	sparseQuery := query
	if req.EnableExpansion && e.expander != nil {
		expanded, err := e.expander.Expand(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				return nil, apperrors.Cancelled(ctx.Err())
			}
			e.logger.Warn("query expansion failed, using original query", "error", err)
			resp.Degraded = append(resp.Degraded, DegradedExpansion)
		} else if expanded != query {
			sparseQuery = expanded
			resp.ExpandedQuery = expanded
		}
	}

	fetchK := e.fetchSize(limit, req)
	legs, alpha, degraded, err := e.retrieve(ctx, query, sparseQuery, fetchK, e.requestAlpha(req))
	if err != nil {
		return nil, err
	}
	resp.Degraded = append(resp.Degraded, degraded...)

	docMap, err := e.loadDocuments(ctx, legs)
	if err != nil {
		return nil, err
	}

	// Post-filter both legs before fusion: neither index pushes down
	// metadata predicates, so ranks are assigned over the filtered
	// candidate set.
	if req.Filter != nil {
		legs = filterLegs(legs, docMap, req.Filter)
	}

	fused := e.fuser.Fuse(legs.sparse, legs.dense, alpha)
	results := e.buildResults(fused, docMap)

	if req.EnableRerank && e.reranker != nil && len(results) > 0 {
		contents := make(map[string]string, len(results))
		for _, r := range results {
			if doc, ok := docMap[r.DocID]; ok {
				contents[r.DocID] = doc.Content
			}
		}
		reranked, err := e.reranker.Rerank(ctx, query, results, contents)
		switch {
		case err == nil:
			results = reranked
		case apperrors.GetCode(err) == apperrors.ErrCodeCancelled || ctx.Err() != nil:
			return nil, apperrors.Cancelled(ctx.Err())
		default:
			e.logger.Warn("rerank failed, keeping fused order", "error", err)
			resp.Degraded = append(resp.Degraded, DegradedRerank)
		}
	}

	// Diversification sees every candidate and does the trimming
	// itself; trimming first would gut its diversity guarantee.
	if req.EnableDiversify {
		lambda := e.diversifier.Lambda
		if req.DiversityLambda != nil {
			lambda = *req.DiversityLambda
		}
		d := &Diversifier{Lambda: lambda}
		results = d.Diversify(results, embeddingsByID(docMap), limit)
	} else if len(results) > limit {
		results = results[:limit]
	}

	resp.Results = results
	if len(req.FacetFields) > 0 {
		resp.Facets = AggregateFacets(results, req.FacetFields, 0)
	}
	resp.Took = time.Since(start)

	e.logger.Debug("search completed",
		"query", query,
		"results", len(resp.Results),
		"degraded", resp.Degraded,
		"took", resp.Took)

	return resp, nil
}

// requestAlpha resolves the dense weight for one request.
func (e *Engine) requestAlpha(req *Request) float64 {
	if req.FusionAlpha != nil && *req.FusionAlpha >= 0 && *req.FusionAlpha <= 1 {
		return *req.FusionAlpha
	}
	return e.fuser.Alpha
}

// fetchSize decides how deep each leg searches. Filtering and
// diversification both need headroom beyond the final limit, and the
// reranker prefix should be fully populated when enabled.
func (e *Engine) fetchSize(limit int, req *Request) int {
	fetchK := limit * e.overFetch
	if req.EnableRerank && e.reranker != nil && fetchK < e.reranker.topN {
		fetchK = e.reranker.topN
	}
	if req.Filter != nil {
		fetchK *= e.overFetch
	}
	if fetchK > e.maxLimit*e.overFetch*e.overFetch {
		fetchK = e.maxLimit * e.overFetch * e.overFetch
	}
	return fetchK
}

// retrieve runs both legs concurrently and maps failures onto the
// degradation policy: a dead dense leg forces alpha to 0, a dead
// sparse leg forces alpha to 1, both dead is fatal.
func (e *Engine) retrieve(ctx context.Context, query, sparseQuery string, fetchK int, alpha float64) (legResults, float64, []string, error) {
	var legs legResults
	var sparseErr, denseErr error

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		results, err := e.sparse.Search(gctx, sparseQuery, fetchK)
		if err != nil {
			sparseErr = err
			return nil
		}
		legs.sparse = results
		return nil
	})

	g.Go(func() error {
		vec, err := e.embedder.Embed(gctx, query)
		if err != nil {
			denseErr = err
			return nil
		}
		results, err := e.vector.Search(gctx, vec, fetchK)
		if err != nil {
			denseErr = err
			return nil
		}
		legs.dense = results
		return nil
	})

	if err := g.Wait(); err != nil {
		return legResults{}, 0, nil, apperrors.Cancelled(err)
	}
	if ctx.Err() != nil {
		return legResults{}, 0, nil, apperrors.Cancelled(ctx.Err())
	}

	var degraded []string
	switch {
	case sparseErr != nil && denseErr != nil:
		return legResults{}, 0, nil, apperrors.RetrievalUnavailable(errors.Join(sparseErr, denseErr))
	case denseErr != nil:
		e.logger.Warn("dense leg unavailable, degrading to sparse-only", "error", denseErr)
		alpha = 0
		degraded = append(degraded, DegradedEmbedding)
	case sparseErr != nil:
		e.logger.Warn("sparse leg unavailable, degrading to dense-only", "error", sparseErr)
		alpha = 1
		degraded = append(degraded, DegradedKeyword)
	}

	return legs, alpha, degraded, nil
}

// loadDocuments fetches every candidate document once, for filter
// evaluation, snippets, rerank content, and diversification
// embeddings.
func (e *Engine) loadDocuments(ctx context.Context, legs legResults) (map[string]*store.Document, error) {
	seen := make(map[string]bool, len(legs.sparse)+len(legs.dense))
	ids := make([]string, 0, len(legs.sparse)+len(legs.dense))
	for _, r := range legs.sparse {
		if !seen[r.DocID] {
			seen[r.DocID] = true
			ids = append(ids, r.DocID)
		}
	}
	for _, r := range legs.dense {
		if !seen[r.ID] {
			seen[r.ID] = true
			ids = append(ids, r.ID)
		}
	}

	docs, err := e.docs.GetDocuments(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("loading candidate documents: %w", err)
	}
	byID := make(map[string]*store.Document, len(docs))
	for _, doc := range docs {
		byID[doc.ID] = doc
	}
	return byID, nil
}

// filterLegs drops candidates whose metadata fails the filter. A
// candidate missing from the document store is dropped too; it cannot
// be evaluated or returned.
func filterLegs(legs legResults, docMap map[string]*store.Document, filter *FilterExpression) legResults {
	var out legResults
	for _, r := range legs.sparse {
		if doc, ok := docMap[r.DocID]; ok && filter.Matches(doc.Metadata) {
			out.sparse = append(out.sparse, r)
		}
	}
	for _, r := range legs.dense {
		if doc, ok := docMap[r.ID]; ok && filter.Matches(doc.Metadata) {
			out.dense = append(out.dense, r)
		}
	}
	return out
}

// snippetLength bounds the content preview on each result.
const snippetLength = 200

// buildResults joins fused scores with document fields.
func (e *Engine) buildResults(fused []FusedResult, docMap map[string]*store.Document) []Result {
	results := make([]Result, 0, len(fused))
	for _, f := range fused {
		r := Result{
			DocID:       f.DocID,
			Score:       f.Score,
			SparseRank:  f.SparseRank,
			DenseRank:   f.DenseRank,
			SparseScore: f.SparseScore,
			DenseScore:  f.DenseScore,
		}
		if doc, ok := docMap[f.DocID]; ok {
			r.Title = doc.Title
			r.Snippet = snippet(doc.Content)
			r.Metadata = doc.Metadata
		}
		results = append(results, r)
	}
	return results
}

func snippet(content string) string {
	content = strings.TrimSpace(content)
	if len(content) <= snippetLength {
		return content
	}
	cut := content[:snippetLength]
	// The byte cut can land mid-rune; back up to a rune boundary so the
	// snippet stays valid UTF-8.
	for len(cut) > 0 {
		r, size := utf8.DecodeLastRuneInString(cut)
		if r != utf8.RuneError || size > 1 {
			break
		}
		cut = cut[:len(cut)-1]
	}
	if idx := strings.LastIndexByte(cut, ' '); idx > snippetLength/2 {
		cut = cut[:idx]
	}
	return cut + "…"
}

func embeddingsByID(docMap map[string]*store.Document) map[string][]float32 {
	out := make(map[string][]float32, len(docMap))
	for id, doc := range docMap {
		if doc.Embedding != nil {
			out[id] = doc.Embedding
		}
	}
	return out
}

// Stats summarizes index sizes for diagnostics.
type Stats struct {
	Documents      int `json:"documents"`
	SparseIndexed  int `json:"sparse_indexed"`
	Vectors        int `json:"vectors"`
	EmbedCacheLen  int `json:"embed_cache_len"`
	RerankCacheLen int `json:"rerank_cache_len"`
}

// Stats reports current index and cache sizes.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	docCount, err := e.docs.Count(ctx)
	if err != nil {
		return nil, err
	}
	s := &Stats{
		Documents: docCount,
		Vectors:   e.vector.Count(),
	}
	if ss := e.sparse.Stats(); ss != nil {
		s.SparseIndexed = ss.DocumentCount
	}
	if cached, ok := e.embedder.(*embed.CachedEmbedder); ok {
		s.EmbedCacheLen = cached.Len()
	}
	if e.reranker != nil {
		s.RerankCacheLen = e.reranker.CacheLen()
	}
	return s, nil
}

// Close releases every collaborator. Errors are joined so one failing
// store does not hide another.
func (e *Engine) Close() error {
	return errors.Join(
		e.embedder.Close(),
		e.sparse.Close(),
		e.vector.Close(),
		e.docs.Close(),
	)
}
