package search

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"rag-engine/internal/models"
)

// BaseStrategy is vector-only similarity search. It has no internal fallback;
// degradation on backend failure is the coordinator's job.
type BaseStrategy struct {
	index     VectorIndex
	threshold float64
}

func NewBaseStrategy(index VectorIndex, threshold float64) *BaseStrategy {
	return &BaseStrategy{index: index, threshold: threshold}
}

// Search returns the k nearest chunks above the similarity threshold, sorted
// by similarity, non-increasing.
func (s *BaseStrategy) Search(ctx context.Context, queryVector []float32, k int, filter map[string]string) ([]models.SearchResult, error) {
	hits, err := s.index.Query(ctx, queryVector, k, filter, s.threshold)
	if err != nil {
		if errors.Is(err, models.ErrDimensionMismatch) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	results := make([]models.SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, models.SearchResult{
			ChunkID:       h.ChunkID,
			Content:       h.Content,
			Metadata:      h.Metadata,
			VectorScore:   models.Score(h.Similarity),
			CombinedScore: h.Similarity,
			MatchType:     models.MatchVector,
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CombinedScore > results[j].CombinedScore
	})
	return results, nil
}
