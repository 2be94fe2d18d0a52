package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func facetResults(metas ...map[string]any) []Result {
	out := make([]Result, len(metas))
	for i, m := range metas {
		out[i] = Result{DocID: string(rune('a' + i)), Metadata: m}
	}
	return out
}

func TestAggregateFacets_ListFields(t *testing.T) {
	results := facetResults(
		map[string]any{"tags": []any{"web", "api"}},
		map[string]any{"tags": []any{"api"}},
	)

	facets := AggregateFacets(results, []string{"tags"}, 0)
	require.Contains(t, facets, "tags")
	assert.Equal(t, []FacetCount{
		{Value: "api", Count: 2},
		{Value: "web", Count: 1},
	}, facets["tags"])
}

func TestAggregateFacets_TiesLexicographic(t *testing.T) {
	results := facetResults(
		map[string]any{"method": "POST"},
		map[string]any{"method": "GET"},
		map[string]any{"method": "DELETE"},
	)

	facets := AggregateFacets(results, []string{"method"}, 0)
	assert.Equal(t, []FacetCount{
		{Value: "DELETE", Count: 1},
		{Value: "GET", Count: 1},
		{Value: "POST", Count: 1},
	}, facets["method"])
}

func TestAggregateFacets_MissingFieldSkipped(t *testing.T) {
	results := facetResults(
		map[string]any{"method": "GET"},
		map[string]any{"source": "openapi"},
		nil,
	)

	facets := AggregateFacets(results, []string{"method"}, 0)
	assert.Equal(t, []FacetCount{{Value: "GET", Count: 1}}, facets["method"])
}

func TestAggregateFacets_TopK(t *testing.T) {
	results := facetResults(
		map[string]any{"method": "GET"},
		map[string]any{"method": "GET"},
		map[string]any{"method": "POST"},
		map[string]any{"method": "DELETE"},
	)

	facets := AggregateFacets(results, []string{"method"}, 2)
	assert.Equal(t, []FacetCount{
		{Value: "GET", Count: 2},
		{Value: "DELETE", Count: 1},
	}, facets["method"])
}

func TestAggregateFacets_NumericValues(t *testing.T) {
	// JSON round-trips integers as float64; buckets should still read
	// like integers.
	results := facetResults(
		map[string]any{"status": float64(200)},
		map[string]any{"status": float64(200)},
		map[string]any{"status": float64(404)},
	)

	facets := AggregateFacets(results, []string{"status"}, 0)
	assert.Equal(t, []FacetCount{
		{Value: "200", Count: 2},
		{Value: "404", Count: 1},
	}, facets["status"])
}

func TestAggregateFacets_NoFieldsOrResults(t *testing.T) {
	assert.Nil(t, AggregateFacets(nil, []string{"tags"}, 0))
	assert.Nil(t, AggregateFacets(facetResults(map[string]any{"a": "b"}), nil, 0))
}
