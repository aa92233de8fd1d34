package search

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"rag-engine/internal/config"
	"rag-engine/internal/models"
)

// Coordinator selects and chains strategies per configuration and is the one
// seam where graceful degradation becomes visible: ModeUsed reports what
// actually ran, not what was requested.
type Coordinator struct {
	base     *BaseStrategy
	hybrid   *HybridStrategy
	reranker *Reranker
	cfg      config.Search
}

func NewCoordinator(base *BaseStrategy, hybrid *HybridStrategy, reranker *Reranker, cfg config.Search) *Coordinator {
	return &Coordinator{base: base, hybrid: hybrid, reranker: reranker, cfg: cfg}
}

// Request carries the query text with its precomputed embedding.
type Request struct {
	QueryText   string
	QueryVector []float32
	K           int
	Filter      map[string]string
}

// Response is the ranked result set plus the strategy chain that produced it.
type Response struct {
	Results  []models.SearchResult `json:"results"`
	ModeUsed string                `json:"mode_used"`
}

// Search runs the configured strategy chain. With reranking enabled, the
// selected retrieval strategy is asked for multiplier*k candidates first so
// the reranker has a richer pool to choose from.
func (c *Coordinator) Search(ctx context.Context, req Request) (*Response, error) {
	fetch := req.K
	if c.cfg.UseReranking {
		fetch = req.K * c.cfg.CandidateMultiplier
	}

	var results []models.SearchResult
	var mode models.SearchMode
	var err error

	if c.cfg.UseHybrid {
		results, mode, err = c.hybrid.Search(ctx, req.QueryText, req.QueryVector, fetch, req.Filter)
		if err != nil {
			if errors.Is(err, models.ErrDimensionMismatch) {
				return nil, err
			}
			log.Warn().Err(err).Msg("Hybrid search failed, degrading to vector-only")
			results, err = c.base.Search(ctx, req.QueryVector, fetch, req.Filter)
			mode = models.ModeVectorDegraded
		}
	} else {
		results, err = c.base.Search(ctx, req.QueryVector, fetch, req.Filter)
		mode = models.ModeVector
	}
	if err != nil {
		return nil, err
	}

	modeUsed := string(mode)
	if c.cfg.UseReranking {
		reranked, fellBack := c.reranker.Rerank(ctx, req.QueryText, results, req.K)
		results = reranked
		if fellBack {
			modeUsed += "+rerank (fallback)"
		} else {
			modeUsed += "+rerank"
		}
	} else if len(results) > req.K {
		results = results[:req.K]
	}

	log.Debug().
		Str("mode", modeUsed).
		Int("results", len(results)).
		Msg("Search completed")
	return &Response{Results: results, ModeUsed: modeUsed}, nil
}
