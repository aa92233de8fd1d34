package search

import (
	"context"
	"strings"
	"sync"

	"rag-engine/internal/models"
)

type fakeVectorIndex struct {
	mu   sync.Mutex
	hits []models.VectorHit
	err  error
	gotK int
}

func (f *fakeVectorIndex) Query(ctx context.Context, vector []float32, k int, filter map[string]string, minScore float64) ([]models.VectorHit, error) {
	f.mu.Lock()
	f.gotK = k
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.VectorHit, 0, len(f.hits))
	for _, h := range f.hits {
		if h.Similarity >= minScore {
			out = append(out, h)
		}
	}
	return out, nil
}

type fakeFullText struct {
	mu   sync.Mutex
	hits []models.TextHit
	err  error
	gotK int
}

func (f *fakeFullText) FullTextQuery(ctx context.Context, query string, k int, filter map[string]string) ([]models.TextHit, error) {
	f.mu.Lock()
	f.gotK = k
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

type fakeScorer struct {
	mu       sync.Mutex
	scores   map[string]float64 // keyed by a substring of the passage
	err      error
	passages []string
}

func (f *fakeScorer) Score(ctx context.Context, query, passage string) (float64, error) {
	f.mu.Lock()
	f.passages = append(f.passages, passage)
	f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	for key, score := range f.scores {
		if strings.Contains(passage, key) {
			return score, nil
		}
	}
	return 0, nil
}
