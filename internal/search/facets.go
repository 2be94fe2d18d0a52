package search

import (
	"fmt"
	"sort"
)

// FacetCount is one value bucket in a facet aggregation.
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// AggregateFacets counts metadata values across the given results for
// each requested field. Results are sorted by count descending, ties
// broken lexicographically by value. For list-valued fields every
// element counts once, so a document with tags ["web","api"] adds one
// to both buckets.
//
// topK limits buckets per field; 0 means unlimited.
func AggregateFacets(results []Result, fields []string, topK int) map[string][]FacetCount {
	if len(fields) == 0 || len(results) == 0 {
		return nil
	}

	facets := make(map[string][]FacetCount, len(fields))
	for _, field := range fields {
		counts := make(map[string]int)
		for _, r := range results {
			v, ok := r.Metadata[field]
			if !ok || v == nil {
				continue
			}
			if list := toList(v); list != nil {
				for _, elem := range list {
					counts[facetValue(elem)]++
				}
			} else {
				counts[facetValue(v)]++
			}
		}

		buckets := make([]FacetCount, 0, len(counts))
		for value, count := range counts {
			buckets = append(buckets, FacetCount{Value: value, Count: count})
		}
		sort.Slice(buckets, func(i, j int) bool {
			if buckets[i].Count != buckets[j].Count {
				return buckets[i].Count > buckets[j].Count
			}
			return buckets[i].Value < buckets[j].Value
		})
		if topK > 0 && len(buckets) > topK {
			buckets = buckets[:topK]
		}
		facets[field] = buckets
	}
	return facets
}

// facetValue renders a metadata scalar as a bucket key. Floats that
// are whole numbers print without a decimal point, matching how JSON
// integers read back.
func facetValue(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		if s == float64(int64(s)) {
			return fmt.Sprintf("%d", int64(s))
		}
		return fmt.Sprintf("%g", s)
	case bool:
		return fmt.Sprintf("%t", s)
	default:
		return fmt.Sprintf("%v", v)
	}
}
