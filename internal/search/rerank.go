package search

import (
	"context"
	"sort"

	"github.com/rs/zerolog/log"

	"rag-engine/internal/helper"
	"rag-engine/internal/models"
)

// Reranker re-scores an expanded candidate set with a pairwise relevance
// model and keeps the top results. Scorer failure is absorbed: the caller
// gets the candidates back in their incoming order, truncated to topK.
type Reranker struct {
	scorer   Scorer
	maxWords int
}

func NewReranker(scorer Scorer, maxWords int) *Reranker {
	return &Reranker{scorer: scorer, maxWords: maxWords}
}

// Rerank attaches a rerank score per candidate and sorts by it. The second
// return value reports whether the fallback path was taken.
func (r *Reranker) Rerank(ctx context.Context, queryText string, candidates []models.SearchResult, topK int) ([]models.SearchResult, bool) {
	if len(candidates) == 0 {
		return candidates, false
	}

	out := make([]models.SearchResult, len(candidates))
	copy(out, candidates)

	for i := range out {
		// cap passage length so the scorer never sees over-long input
		passage := helper.TruncateWords(out[i].Content, r.maxWords)
		score, err := r.scorer.Score(ctx, queryText, passage)
		if err != nil {
			log.Warn().Err(err).Msg("Rerank scoring failed, keeping pre-rerank order")
			return truncate(candidates, topK), true
		}
		out[i].RerankScore = models.Score(score)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return *out[i].RerankScore > *out[j].RerankScore
	})
	return truncate(out, topK), false
}

func truncate(results []models.SearchResult, k int) []models.SearchResult {
	if len(results) > k {
		return results[:k]
	}
	return results
}
