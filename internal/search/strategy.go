package search

import (
	"context"
	"errors"

	"rag-engine/internal/models"
)

var (
	// ErrBackendUnavailable wraps backend failures at the strategy boundary.
	// The coordinator degrades one level down instead of propagating it.
	ErrBackendUnavailable = errors.New("search backend unavailable")
	// ErrTimeout is returned when the joined hybrid call exceeds its deadline.
	ErrTimeout = errors.New("search timed out")
)

// VectorIndex is the slice of the vector store the strategies need.
type VectorIndex interface {
	Query(ctx context.Context, vector []float32, k int, filter map[string]string, minScore float64) ([]models.VectorHit, error)
}

// FullTextIndex is the slice of the relational store the strategies need.
type FullTextIndex interface {
	FullTextQuery(ctx context.Context, query string, k int, filter map[string]string) ([]models.TextHit, error)
}

// Scorer computes a pairwise relevance score for (query, passage) in [0,1].
type Scorer interface {
	Score(ctx context.Context, query, passage string) (float64, error)
}
