package search

import "math"

// Diversifier reorders candidates with Maximal Marginal Relevance:
// at each step it picks the remaining candidate maximizing
//
//	lambda*relevance - (1-lambda)*maxSimilarityToSelected
//
// Lambda 1.0 degenerates to pure relevance (input order preserved);
// 0.0 ignores relevance and maximizes diversity.
type Diversifier struct {
	// Lambda is the relevance/diversity trade-off in [0,1].
	Lambda float64
}

// NewDiversifier creates a diversifier with the given lambda.
func NewDiversifier(lambda float64) *Diversifier {
	return &Diversifier{Lambda: lambda}
}

// mmrCandidate pairs a result with its embedding for similarity
// computation. A nil embedding means similarity 0 to everything,
// treating the document as maximally diverse.
type mmrCandidate struct {
	result    Result
	embedding []float32
	relevance float64
}

// Diversify greedily selects up to limit results. Relevance is the
// candidate's position-based score in [0,1] rather than its raw
// pipeline score, so RRF-scale and rerank-scale inputs diversify the
// same way. Input order breaks ties, which keeps lambda=1.0 an exact
// identity on the input prefix.
func (d *Diversifier) Diversify(results []Result, embeddings map[string][]float32, limit int) []Result {
	if limit <= 0 || len(results) == 0 {
		return nil
	}
	if limit > len(results) {
		limit = len(results)
	}

	candidates := make([]mmrCandidate, len(results))
	for i, r := range results {
		candidates[i] = mmrCandidate{
			result:    r,
			embedding: embeddings[r.DocID],
			// Linear position decay: rank 1 gets 1.0, last gets 1/n.
			relevance: float64(len(results)-i) / float64(len(results)),
		}
	}

	selected := make([]Result, 0, limit)
	selectedEmb := make([][]float32, 0, limit)
	used := make([]bool, len(candidates))

	for len(selected) < limit {
		bestIdx := -1
		bestScore := 0.0
		for i, c := range candidates {
			if used[i] {
				continue
			}
			maxSim := 0.0
			if c.embedding != nil {
				for _, emb := range selectedEmb {
					if emb == nil {
						continue
					}
					if sim := cosineSimilarity(c.embedding, emb); sim > maxSim {
						maxSim = sim
					}
				}
			}
			score := d.Lambda*c.relevance - (1-d.Lambda)*maxSim
			if bestIdx == -1 || score > bestScore {
				bestIdx = i
				bestScore = score
			}
		}
		if bestIdx == -1 {
			break
		}
		used[bestIdx] = true
		selected = append(selected, candidates[bestIdx].result)
		selectedEmb = append(selectedEmb, candidates[bestIdx].embedding)
	}

	return selected
}

// cosineSimilarity computes cos(a,b) in [-1,1]. Mismatched lengths or
// zero vectors yield 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
