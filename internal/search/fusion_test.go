package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apidex/apidex/internal/store"
)

func sparseList(ids ...string) []*store.SparseResult {
	out := make([]*store.SparseResult, len(ids))
	for i, id := range ids {
		out[i] = &store.SparseResult{DocID: id, Score: float64(len(ids) - i)}
	}
	return out
}

func denseList(ids ...string) []*store.DenseResult {
	out := make([]*store.DenseResult, len(ids))
	for i, id := range ids {
		out[i] = &store.DenseResult{ID: id, Score: 1.0 - float64(i)*0.1}
	}
	return out
}

func TestRRFFuser_WeightedScores(t *testing.T) {
	// d1: dense #1, sparse #3. d2: dense #2, sparse #1.
	fuser := NewRRFFuser(0.5)
	fused := fuser.Fuse(
		sparseList("d2", "d3", "d1"),
		denseList("d1", "d2"),
		0.5,
	)
	require.Len(t, fused, 3)

	byID := make(map[string]FusedResult)
	for _, f := range fused {
		byID[f.DocID] = f
	}

	wantD1 := 0.5*(1.0/61.0) + 0.5*(1.0/63.0)
	wantD2 := 0.5*(1.0/62.0) + 0.5*(1.0/61.0)
	assert.InDelta(t, wantD1, byID["d1"].Score, 1e-12)
	assert.InDelta(t, wantD2, byID["d2"].Score, 1e-12)

	// d2 beats d1: its sparse rank advantage outweighs d1's dense edge.
	assert.Greater(t, byID["d2"].Score, byID["d1"].Score)
	assert.Equal(t, "d2", fused[0].DocID)
}

func TestRRFFuser_AbsentLegContributesZero(t *testing.T) {
	fuser := NewRRFFuser(0.5)
	fused := fuser.Fuse(sparseList("only-sparse"), denseList("only-dense"), 0.5)
	require.Len(t, fused, 2)

	byID := make(map[string]FusedResult)
	for _, f := range fused {
		byID[f.DocID] = f
	}

	// Each document gets exactly one leg's contribution, unnormalized.
	assert.InDelta(t, 0.5/61.0, byID["only-sparse"].Score, 1e-12)
	assert.InDelta(t, 0.5/61.0, byID["only-dense"].Score, 1e-12)
	assert.Equal(t, 0, byID["only-sparse"].DenseRank)
	assert.Equal(t, 0, byID["only-dense"].SparseRank)
}

func TestRRFFuser_EmptyLegs(t *testing.T) {
	fuser := NewRRFFuser(0.5)

	assert.Empty(t, fuser.Fuse(nil, nil, 0.5))

	fused := fuser.Fuse(sparseList("a", "b"), nil, 0.5)
	require.Len(t, fused, 2)
	assert.Equal(t, "a", fused[0].DocID)
	assert.Equal(t, "b", fused[1].DocID)
}

func TestRRFFuser_AlphaBoundaries(t *testing.T) {
	fuser := NewRRFFuser(0.5)
	sparse := sparseList("s1", "s2", "s3")
	dense := denseList("v1", "v2", "v3")

	// alpha=1: dense ordering wins, sparse-only docs score 0 and sink.
	fused := fuser.Fuse(sparse, dense, 1.0)
	require.Len(t, fused, 6)
	assert.Equal(t, "v1", fused[0].DocID)
	assert.Equal(t, "v2", fused[1].DocID)
	assert.Equal(t, "v3", fused[2].DocID)
	for _, f := range fused[3:] {
		assert.Zero(t, f.Score)
	}

	// alpha=0: sparse ordering wins.
	fused = fuser.Fuse(sparse, dense, 0.0)
	assert.Equal(t, "s1", fused[0].DocID)
	assert.Equal(t, "s2", fused[1].DocID)
	assert.Equal(t, "s3", fused[2].DocID)
}

func TestRRFFuser_Monotonicity(t *testing.T) {
	// A and B share sparse rank territory; A's better dense rank must
	// never produce a lower fused score.
	fuser := NewRRFFuser(0.5)
	for _, alpha := range []float64{0.1, 0.5, 0.9, 1.0} {
		fused := fuser.Fuse(
			sparseList("a", "b"),
			denseList("a", "b"),
			alpha,
		)
		byID := make(map[string]FusedResult)
		for _, f := range fused {
			byID[f.DocID] = f
		}
		assert.GreaterOrEqual(t, byID["a"].Score, byID["b"].Score, "alpha=%v", alpha)
	}
}

func TestRRFFuser_DeterministicTieBreak(t *testing.T) {
	fuser := NewRRFFuser(0.5)

	// Two single-leg docs at the same rank in opposite legs have
	// identical scores; ordering must still be stable across calls.
	first := fuser.Fuse(sparseList("zz"), denseList("aa"), 0.5)
	for i := 0; i < 10; i++ {
		again := fuser.Fuse(sparseList("zz"), denseList("aa"), 0.5)
		require.Equal(t, first, again)
	}
}

func TestRRFFuser_DedupeAcrossLegs(t *testing.T) {
	fuser := NewRRFFuser(0.5)
	fused := fuser.Fuse(sparseList("d1", "d2"), denseList("d2", "d1"), 0.5)
	require.Len(t, fused, 2)

	ids := map[string]int{}
	for _, f := range fused {
		ids[f.DocID]++
		assert.True(t, f.InBoth())
	}
	assert.Len(t, ids, 2)
}

func TestRRFFuser_MatchedTermsPreserved(t *testing.T) {
	fuser := NewRRFFuser(0.5)
	fused := fuser.Fuse([]*store.SparseResult{
		{DocID: "d1", Score: 2.5, MatchedTerms: []string{"users", "list"}},
	}, nil, 0.5)
	require.Len(t, fused, 1)
	assert.Equal(t, []string{"users", "list"}, fused[0].MatchedTerms)
	assert.Equal(t, 2.5, fused[0].SparseScore)
}
