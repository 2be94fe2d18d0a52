package search

import (
	"sort"

	"github.com/apidex/apidex/internal/store"
)

// FusedResult is a document scored by reciprocal rank fusion of the
// sparse and dense retrieval legs.
type FusedResult struct {
	DocID string

	// Score is the raw weighted RRF score:
	//
	//	alpha*(1/(k+denseRank)) + (1-alpha)*(1/(k+sparseRank))
	//
	// where a leg the document is absent from contributes 0.
	Score float64

	// SparseRank and DenseRank are 1-based; 0 means absent from that
	// leg.
	SparseRank int
	DenseRank  int

	// SparseScore and DenseScore preserve the leg-native scores for
	// debugging and tie-breaking.
	SparseScore float64
	DenseScore  float64

	MatchedTerms []string
}

// InBoth reports whether the document appeared in both retrieval legs.
func (r *FusedResult) InBoth() bool {
	return r.SparseRank > 0 && r.DenseRank > 0
}

// RRFFuser combines ranked lists with weighted reciprocal rank fusion.
// RRF depends only on ranks, not raw scores, so the BM25 and cosine
// scales never need reconciling.
type RRFFuser struct {
	// Alpha weights the dense leg; 1-Alpha weights the sparse leg.
	Alpha float64

	// K is the rank dampening constant.
	K int
}

// NewRRFFuser creates a fuser with the given dense weight and the
// standard k=60 constant.
func NewRRFFuser(alpha float64) *RRFFuser {
	return &RRFFuser{Alpha: alpha, K: DefaultRRFConstant}
}

// Fuse merges the two legs into a single ranking. A document absent
// from one leg simply gets no contribution from it; a document absent
// from both legs never appears. Scores are not normalized.
//
// The alpha passed here overrides the fuser's configured Alpha when
// the engine degrades a request (dead dense leg forces alpha=0, dead
// sparse leg forces alpha=1).
func (f *RRFFuser) Fuse(sparse []*store.SparseResult, dense []*store.DenseResult, alpha float64) []FusedResult {
	k := f.K
	if k <= 0 {
		k = DefaultRRFConstant
	}

	byID := make(map[string]*FusedResult, len(sparse)+len(dense))

	get := func(id string) *FusedResult {
		if r, ok := byID[id]; ok {
			return r
		}
		r := &FusedResult{DocID: id}
		byID[id] = r
		return r
	}

	for i, sr := range sparse {
		r := get(sr.DocID)
		r.SparseRank = i + 1
		r.SparseScore = sr.Score
		r.MatchedTerms = sr.MatchedTerms
		r.Score += (1 - alpha) / float64(k+r.SparseRank)
	}

	for i, dr := range dense {
		r := get(dr.ID)
		r.DenseRank = i + 1
		r.DenseScore = dr.Score
		r.Score += alpha / float64(k+r.DenseRank)
	}

	fused := make([]FusedResult, 0, len(byID))
	for _, r := range byID {
		fused = append(fused, *r)
	}

	sort.Slice(fused, func(i, j int) bool {
		return compareFused(&fused[i], &fused[j])
	})

	return fused
}

// compareFused orders results for the final ranking: fused score
// descending, then documents found by both legs before single-leg
// hits, then sparse score descending, then DocID ascending so equal
// results always come back in the same order.
func compareFused(a, b *FusedResult) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.InBoth() != b.InBoth() {
		return a.InBoth()
	}
	if a.SparseScore != b.SparseScore {
		return a.SparseScore > b.SparseScore
	}
	return a.DocID < b.DocID
}
