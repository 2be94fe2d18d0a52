package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mmrResults(ids ...string) []Result {
	out := make([]Result, len(ids))
	for i, id := range ids {
		out[i] = Result{DocID: id, Score: 1.0 - float64(i)*0.1}
	}
	return out
}

func TestDiversifier_LambdaOneIsIdentity(t *testing.T) {
	d := NewDiversifier(1.0)
	results := mmrResults("a", "b", "c", "d")
	embeddings := map[string][]float32{
		"a": {1, 0}, "b": {1, 0}, "c": {0, 1}, "d": {0, 1},
	}

	out := d.Diversify(results, embeddings, 4)
	require.Len(t, out, 4)
	for i, r := range out {
		assert.Equal(t, results[i].DocID, r.DocID)
	}
}

func TestDiversifier_LambdaZeroAvoidsNearDuplicates(t *testing.T) {
	// a and b are near-identical; c points elsewhere. Pure diversity
	// must not pick a then b when c is available.
	d := NewDiversifier(0.0)
	results := mmrResults("a", "b", "c")
	embeddings := map[string][]float32{
		"a": {1, 0, 0},
		"b": {0.999, 0.04, 0},
		"c": {0, 0, 1},
	}

	out := d.Diversify(results, embeddings, 3)
	require.Len(t, out, 3)
	assert.Equal(t, "a", out[0].DocID)
	assert.Equal(t, "c", out[1].DocID)
	assert.Equal(t, "b", out[2].DocID)
}

func TestDiversifier_BalancedLambdaDemotesDuplicates(t *testing.T) {
	d := NewDiversifier(0.5)
	results := mmrResults("a", "a2", "b")
	embeddings := map[string][]float32{
		"a":  {1, 0},
		"a2": {1, 0},
		"b":  {0, 1},
	}

	out := d.Diversify(results, embeddings, 2)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].DocID)
	// a2 duplicates a exactly, so b wins the second slot despite its
	// lower relevance.
	assert.Equal(t, "b", out[1].DocID)
}

func TestDiversifier_MissingEmbeddingTreatedAsDiverse(t *testing.T) {
	d := NewDiversifier(0.5)
	results := mmrResults("a", "mystery", "b")
	embeddings := map[string][]float32{
		"a": {1, 0},
		"b": {1, 0},
	}

	out := d.Diversify(results, embeddings, 2)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].DocID)
	// No embedding means similarity 0 to everything selected, so the
	// unknown document outranks the duplicate of a.
	assert.Equal(t, "mystery", out[1].DocID)
}

func TestDiversifier_LimitAndEmptyInput(t *testing.T) {
	d := NewDiversifier(0.7)

	assert.Nil(t, d.Diversify(nil, nil, 5))
	assert.Nil(t, d.Diversify(mmrResults("a"), nil, 0))

	out := d.Diversify(mmrResults("a", "b", "c"), nil, 2)
	assert.Len(t, out, 2)

	out = d.Diversify(mmrResults("a"), nil, 10)
	assert.Len(t, out, 1)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{1, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Zero(t, cosineSimilarity([]float32{1, 0}, []float32{1, 0, 0}))
	assert.Zero(t, cosineSimilarity([]float32{0, 0}, []float32{1, 0}))
}
