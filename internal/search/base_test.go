package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-engine/internal/models"
)

func TestBaseSearchSortedAndThresholded(t *testing.T) {
	index := &fakeVectorIndex{hits: []models.VectorHit{
		{ChunkID: "a", Content: "alpha", Similarity: 0.9},
		{ChunkID: "b", Content: "bravo", Similarity: 0.4},
		{ChunkID: "c", Content: "charlie", Similarity: 0.02},
	}}
	base := NewBaseStrategy(index, 0.05)

	results, err := base.Search(context.Background(), []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 2, "results below the threshold must be excluded")

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].CombinedScore, results[i].CombinedScore)
	}
	for _, r := range results {
		require.NotNil(t, r.VectorScore)
		assert.GreaterOrEqual(t, *r.VectorScore, 0.05)
		assert.Nil(t, r.TextScore)
		assert.Equal(t, models.MatchVector, r.MatchType)
	}
}

func TestBaseSearchBackendFailure(t *testing.T) {
	index := &fakeVectorIndex{err: errors.New("connection refused")}
	base := NewBaseStrategy(index, 0.05)

	_, err := base.Search(context.Background(), []float32{1, 0}, 5, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBackendUnavailable))
}

func TestBaseSearchDimensionMismatchBubbles(t *testing.T) {
	index := &fakeVectorIndex{err: models.ErrDimensionMismatch}
	base := NewBaseStrategy(index, 0.05)

	_, err := base.Search(context.Background(), []float32{1}, 5, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrDimensionMismatch))
	assert.False(t, errors.Is(err, ErrBackendUnavailable))
}
