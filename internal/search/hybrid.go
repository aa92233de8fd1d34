package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"rag-engine/internal/models"
)

// HybridStrategy runs vector and lexical search concurrently and fuses their
// scores. A failing sub-query degrades the call to the surviving side instead
// of failing it; only both sides failing surfaces an error.
type HybridStrategy struct {
	base         *BaseStrategy
	store        FullTextIndex
	vectorWeight float64
	textWeight   float64
	candidates   int
	timeout      time.Duration
}

func NewHybridStrategy(base *BaseStrategy, store FullTextIndex, vectorWeight, textWeight float64, candidates int, timeout time.Duration) *HybridStrategy {
	return &HybridStrategy{
		base:         base,
		store:        store,
		vectorWeight: vectorWeight,
		textWeight:   textWeight,
		candidates:   candidates,
		timeout:      timeout,
	}
}

// Search fans out to both backends, joins on chunk id and ranks by the
// weighted combined score. The returned mode records whether fusion actually
// happened or the call degraded to a single side.
func (h *HybridStrategy) Search(ctx context.Context, queryText string, queryVector []float32, k int, filter map[string]string) ([]models.SearchResult, models.SearchMode, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	fetch := h.candidates
	if k > fetch {
		fetch = k
	}

	// each sub-query owns a private result slice, merged only after the join
	var vecResults []models.SearchResult
	var textHits []models.TextHit
	var vecErr, textErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vecResults, vecErr = h.base.Search(gctx, queryVector, fetch, filter)
		return nil
	})
	g.Go(func() error {
		textHits, textErr = h.store.FullTextQuery(gctx, queryText, fetch, filter)
		return nil
	})
	_ = g.Wait()

	if vecErr != nil && errors.Is(vecErr, models.ErrDimensionMismatch) {
		return nil, "", vecErr
	}

	switch {
	case vecErr != nil && textErr != nil:
		if ctx.Err() != nil {
			return nil, "", fmt.Errorf("%w: vector=%v, lexical=%v", ErrTimeout, vecErr, textErr)
		}
		return nil, "", fmt.Errorf("%w: vector=%v, lexical=%v", ErrBackendUnavailable, vecErr, textErr)

	case textErr != nil:
		log.Warn().Err(textErr).Msg("Lexical search failed, degrading to vector-only")
		if len(vecResults) > k {
			vecResults = vecResults[:k]
		}
		return vecResults, models.ModeVectorDegraded, nil

	case vecErr != nil:
		log.Warn().Err(vecErr).Msg("Vector search failed, degrading to text-only")
		results := textOnlyResults(textHits)
		if len(results) > k {
			results = results[:k]
		}
		return results, models.ModeTextDegraded, nil
	}

	results := h.fuse(vecResults, textHits)
	if len(results) > k {
		results = results[:k]
	}
	return results, models.ModeHybrid, nil
}

// fuse joins the two candidate sets on chunk id. Chunks found by both sides
// carry both scores; chunks found by one side get 0 for the other score.
func (h *HybridStrategy) fuse(vecResults []models.SearchResult, textHits []models.TextHit) []models.SearchResult {
	merged := make(map[string]*models.SearchResult, len(vecResults)+len(textHits))
	order := make([]string, 0, len(vecResults)+len(textHits))

	for _, r := range vecResults {
		r := r
		merged[r.ChunkID] = &r
		order = append(order, r.ChunkID)
	}

	for _, t := range textHits {
		rank := clamp01(t.Rank)
		if existing, ok := merged[t.ChunkID]; ok {
			existing.TextScore = models.Score(rank)
			existing.MatchType = models.MatchBoth
			continue
		}
		merged[t.ChunkID] = &models.SearchResult{
			ChunkID:   t.ChunkID,
			Content:   t.Content,
			Metadata:  t.Metadata,
			TextScore: models.Score(rank),
			MatchType: models.MatchText,
		}
		order = append(order, t.ChunkID)
	}

	results := make([]models.SearchResult, 0, len(merged))
	for _, id := range order {
		r := merged[id]
		vs, ts := 0.0, 0.0
		if r.VectorScore != nil {
			vs = *r.VectorScore
		}
		if r.TextScore != nil {
			ts = *r.TextScore
		}
		r.CombinedScore = h.vectorWeight*vs + h.textWeight*ts
		results = append(results, *r)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].CombinedScore != results[j].CombinedScore {
			return results[i].CombinedScore > results[j].CombinedScore
		}
		return results[i].ChunkID < results[j].ChunkID
	})
	return results
}

func textOnlyResults(hits []models.TextHit) []models.SearchResult {
	results := make([]models.SearchResult, 0, len(hits))
	for _, t := range hits {
		rank := clamp01(t.Rank)
		results = append(results, models.SearchResult{
			ChunkID:       t.ChunkID,
			Content:       t.Content,
			Metadata:      t.Metadata,
			TextScore:     models.Score(rank),
			CombinedScore: rank,
			MatchType:     models.MatchText,
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CombinedScore > results[j].CombinedScore
	})
	return results
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
