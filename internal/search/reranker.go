package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"

	"github.com/apidex/apidex/internal/apperrors"
	"github.com/apidex/apidex/internal/resilience"
)

// PairScorer scores a single (query, document) pair. Cross-encoder
// style: the pair is scored jointly, not via independent embeddings.
type PairScorer interface {
	// ScorePair returns a relevance score in [0,1].
	ScorePair(ctx context.Context, query, document string) (float64, error)
}

// DefaultRerankCacheSize bounds the pair-score cache.
const DefaultRerankCacheSize = 10000

// Reranker rescores the top-N fused candidates with a PairScorer.
// Scores are memoized per (query, document) in a shared LRU so
// repeated queries skip the provider entirely.
type Reranker struct {
	scorer      PairScorer
	cache       *lru.Cache[string, float64]
	topN        int
	concurrency int
}

// RerankerOption configures a Reranker.
type RerankerOption func(*Reranker)

// WithRerankTopN sets how many candidates get rescored.
func WithRerankTopN(n int) RerankerOption {
	return func(r *Reranker) {
		if n > 0 {
			r.topN = n
		}
	}
}

// WithRerankConcurrency bounds parallel provider calls per request.
func WithRerankConcurrency(n int) RerankerOption {
	return func(r *Reranker) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithRerankCacheSize sets the pair-score cache capacity.
func WithRerankCacheSize(n int) RerankerOption {
	return func(r *Reranker) {
		if n > 0 {
			cache, err := lru.New[string, float64](n)
			if err == nil {
				r.cache = cache
			}
		}
	}
}

// NewReranker wraps a scorer with caching and bounded concurrency.
func NewReranker(scorer PairScorer, opts ...RerankerOption) *Reranker {
	cache, _ := lru.New[string, float64](DefaultRerankCacheSize)
	r := &Reranker{
		scorer:      scorer,
		cache:       cache,
		topN:        DefaultRerankTopN,
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rerank rescores the first topN results and sorts that prefix by
// model score descending; results past topN keep their incoming order
// and are appended untouched. documents maps DocID to the content the
// scorer sees.
//
// Any scoring failure aborts the whole call: a half-rescored list has
// no coherent ordering, so the caller falls back to the fused order.
func (r *Reranker) Rerank(ctx context.Context, query string, results []Result, documents map[string]string) ([]Result, error) {
	if len(results) == 0 {
		return results, nil
	}

	n := r.topN
	if n > len(results) {
		n = len(results)
	}

	prefix := make([]Result, n)
	copy(prefix, results[:n])

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i := range prefix {
		g.Go(func() error {
			docID := prefix[i].DocID
			key := r.cacheKey(query, docID)
			if score, ok := r.cache.Get(key); ok {
				prefix[i].Score = score
				prefix[i].Reranked = true
				return nil
			}

			score, err := r.scorer.ScorePair(gctx, query, documents[docID])
			if err != nil {
				if gctx.Err() != nil {
					return apperrors.Cancelled(gctx.Err())
				}
				return apperrors.New(apperrors.ErrCodeRerankProvider,
					fmt.Sprintf("rerank scoring failed for %s", docID), err)
			}
			r.cache.Add(key, score)
			prefix[i].Score = score
			prefix[i].Reranked = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Stable so equal model scores keep the fused order.
	sort.SliceStable(prefix, func(i, j int) bool {
		return prefix[i].Score > prefix[j].Score
	})

	out := make([]Result, 0, len(results))
	out = append(out, prefix...)
	out = append(out, results[n:]...)
	return out, nil
}

// Invalidate drops every cached score for a document, across all
// queries. Called when a document's content changes.
func (r *Reranker) Invalidate(docID string) {
	prefix := docID + "\x00"
	for _, key := range r.cache.Keys() {
		if strings.HasPrefix(key, prefix) {
			r.cache.Remove(key)
		}
	}
}

// CacheLen reports the number of cached pair scores.
func (r *Reranker) CacheLen() int {
	return r.cache.Len()
}

// cacheKey puts the docID first so Invalidate can match by prefix
// without knowing the query.
func (r *Reranker) cacheKey(query, docID string) string {
	qh := sha256.Sum256([]byte(query))
	return docID + "\x00" + hex.EncodeToString(qh[:])
}

// LLMPairScorer scores pairs by asking a chat model for a relevance
// grade. A circuit breaker fails the whole rerank fast once the
// provider is clearly down; the engine then falls open to fused order.
type LLMPairScorer struct {
	client  *openai.Client
	model   string
	breaker *resilience.Breaker
}

// NewLLMPairScorer creates a scorer. Model defaults to gpt-4o-mini.
func NewLLMPairScorer(client *openai.Client, model string) *LLMPairScorer {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &LLMPairScorer{
		client:  client,
		model:   model,
		breaker: resilience.NewBreaker("rerank"),
	}
}

const rerankSystemPrompt = `You grade how relevant an API documentation passage is to a search query.
Reply with a single number between 0.0 (irrelevant) and 1.0 (perfectly relevant).
Reply with the number only.`

// maxRerankDocChars truncates long documents before sending them to
// the model. Relevance is decided by the opening of an API doc page.
const maxRerankDocChars = 4000

// ScorePair returns the model's relevance grade, clamped to [0,1].
func (s *LLMPairScorer) ScorePair(ctx context.Context, query, document string) (float64, error) {
	if len(document) > maxRerankDocChars {
		document = document[:maxRerankDocChars]
	}

	resp, err := resilience.Do(s.breaker, func() (openai.ChatCompletionResponse, error) {
		return s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       s.model,
			Temperature: 0,
			MaxTokens:   8,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: rerankSystemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Query: %s\n\nPassage:\n%s", query, document)},
			},
		})
	})
	if err != nil {
		return 0, err
	}
	if len(resp.Choices) == 0 {
		return 0, fmt.Errorf("rerank model returned no choices")
	}

	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	score, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("rerank model returned non-numeric score %q: %w", raw, err)
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score, nil
}

var _ PairScorer = (*LLMPairScorer)(nil)
