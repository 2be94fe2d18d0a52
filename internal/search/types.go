// Package search implements the hybrid retrieval pipeline: parallel
// BM25 and vector legs, reciprocal rank fusion, optional query
// expansion, cross-encoder reranking, MMR diversification, metadata
// filtering, and facet aggregation.
package search

import (
	"time"

	"github.com/apidex/apidex/internal/store"
)

// Default pipeline parameters. Callers can override per request or via
// engine options.
const (
	// DefaultLimit is the number of results returned when the request
	// does not specify one.
	DefaultLimit = 10

	// MaxLimit caps the per-request result count.
	MaxLimit = 100

	// DefaultFusionAlpha weights the dense leg in rank fusion.
	// 0.0 = sparse only, 1.0 = dense only.
	DefaultFusionAlpha = 0.5

	// DefaultRRFConstant is the k in 1/(k+rank). 60 is the standard
	// value from the original RRF paper and dampens the gap between
	// top ranks.
	DefaultRRFConstant = 60

	// DefaultDiversityLambda balances relevance against novelty in
	// MMR. 1.0 = pure relevance, 0.0 = pure diversity.
	DefaultDiversityLambda = 0.7

	// DefaultOverFetch multiplies the requested limit when querying
	// the underlying indexes, so that filtering and diversification
	// have headroom to work with.
	DefaultOverFetch = 2

	// DefaultRerankTopN is how many fused results the cross-encoder
	// rescores. Results beyond this keep their fusion order.
	DefaultRerankTopN = 30
)

// Degradation reasons reported in Response.Degraded when a pipeline
// stage failed but the request still produced results.
const (
	DegradedEmbedding = "embedding_unavailable"
	DegradedKeyword   = "keyword_index_unavailable"
	DegradedRerank    = "rerank_unavailable"
	DegradedExpansion = "expansion_unavailable"
)

// Request describes a single search.
type Request struct {
	// Query is the user's search text. Must be non-empty after
	// trimming whitespace.
	Query string `json:"query"`

	// Limit is the maximum number of results to return. Zero means
	// DefaultLimit; values above MaxLimit are clamped.
	Limit int `json:"limit,omitempty"`

	// Filter restricts results to documents whose metadata matches.
	// Nil means no filtering.
	Filter *FilterExpression `json:"filter,omitempty"`

	// FacetFields lists metadata fields to aggregate counts for.
	FacetFields []string `json:"facet_fields,omitempty"`

	// EnableExpansion turns query expansion on for this request.
	EnableExpansion bool `json:"enable_expansion,omitempty"`

	// EnableRerank turns cross-encoder reranking on for this request.
	EnableRerank bool `json:"enable_rerank,omitempty"`

	// EnableDiversify turns MMR diversification on for this request.
	EnableDiversify bool `json:"enable_diversify,omitempty"`

	// FusionAlpha overrides the engine's dense-leg weight when set.
	FusionAlpha *float64 `json:"fusion_alpha,omitempty"`

	// DiversityLambda overrides the engine's MMR lambda when set.
	DiversityLambda *float64 `json:"diversity_lambda,omitempty"`
}

// Result is a single ranked document in a search response.
type Result struct {
	// DocID identifies the document.
	DocID string `json:"doc_id"`

	// Score is the result's final ranking score. Its scale depends on
	// which stages ran: raw RRF fusion scores, or rerank scores in
	// [0,1] for the rescored prefix.
	Score float64 `json:"score"`

	// Title and Snippet are populated from the document store.
	Title   string `json:"title,omitempty"`
	Snippet string `json:"snippet,omitempty"`

	// Metadata carries the document's metadata for display and
	// faceting.
	Metadata map[string]any `json:"metadata,omitempty"`

	// SparseRank and DenseRank are the 1-based ranks this document
	// held in each retrieval leg, or 0 if absent from that leg.
	SparseRank int `json:"sparse_rank,omitempty"`
	DenseRank  int `json:"dense_rank,omitempty"`

	// SparseScore and DenseScore are the raw per-leg scores before
	// fusion, for explaining how the final rank came together.
	SparseScore float64 `json:"sparse_score,omitempty"`
	DenseScore  float64 `json:"dense_score,omitempty"`

	// Reranked is true when the cross-encoder rescored this result.
	Reranked bool `json:"reranked,omitempty"`
}

// Response is the outcome of a search request.
type Response struct {
	// Results are the ranked documents, at most Request.Limit.
	Results []Result `json:"results"`

	// Facets maps each requested facet field to its value counts.
	Facets map[string][]FacetCount `json:"facets,omitempty"`

	// Degraded lists the stages that failed open during this request.
	// Empty when the full pipeline ran.
	Degraded []string `json:"degraded,omitempty"`

	// ExpandedQuery is the query actually sent to the keyword index,
	// when expansion ran and changed it.
	ExpandedQuery string `json:"expanded_query,omitempty"`

	// Took is the total pipeline duration.
	Took time.Duration `json:"took"`
}

// legResults carries the raw output of both retrieval legs into fusion.
type legResults struct {
	sparse []*store.SparseResult
	dense  []*store.DenseResult
}
