package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"rag-engine/internal/config"
	"rag-engine/internal/helper"
	"rag-engine/internal/models"
)

// ReasonQuotaExhausted marks inputs that were never sent to the provider
// because the quota ran out earlier in the same run.
const ReasonQuotaExhausted = "quota exhausted"

// BatchOutcome is the per-input result of an Embed call. A nil Vector means
// the input failed with FailureReason; a degenerate zero vector is never used
// to represent absence.
type BatchOutcome struct {
	Index         int
	Vector        []float32
	FailureReason string
}

func (o BatchOutcome) OK() bool { return o.Vector != nil }

// BatchResult holds one outcome per input, in input order.
type BatchResult struct {
	Outcomes []BatchOutcome
}

func (r *BatchResult) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.OK() {
			n++
		}
	}
	return n
}

func (r *BatchResult) Failed() int {
	return len(r.Outcomes) - r.Succeeded()
}

// Service owns batching, rate limiting, retry/backoff and quota handling for
// the embedding provider. Retries are local to this component; callers must
// not retry around it.
type Service struct {
	provider    Provider
	cache       *Cache
	limiter     *rate.Limiter
	batchSize   int
	maxRetries  int
	backoffBase float64
	workers     int
	dimension   int
}

func NewService(provider Provider, cache *Cache, cfg *config.Embedding, dimension int) *Service {
	return &Service{
		provider:    provider,
		cache:       cache,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		batchSize:   cfg.BatchSize,
		maxRetries:  cfg.MaxRetries,
		backoffBase: cfg.BackoffBase,
		workers:     cfg.Workers,
		dimension:   dimension,
	}
}

// quotaFlag is the shared abort signal between workers once the provider
// reports quota exhaustion.
type quotaFlag struct {
	v atomic.Bool
}

func (f *quotaFlag) Set()            { f.v.Store(true) }
func (f *quotaFlag) Exhausted() bool { return f.v.Load() }

// Embed converts texts into vectors. Cache hits are resolved up front; misses
// are partitioned into batches and processed by a bounded worker pool, each
// worker blocking on the shared rate-limit permit before calling the provider.
// The returned result has exactly one outcome per input, in input order. The
// error is non-nil only for non-recoverable failures (dimension mismatch,
// cancellation); provider failures are recorded per input instead.
func (s *Service) Embed(ctx context.Context, texts []string) (*BatchResult, error) {
	outcomes := make([]BatchOutcome, len(texts))
	var misses []int
	for i, text := range texts {
		outcomes[i].Index = i
		if vec, ok := s.cache.Get(helper.ContentHash(text)); ok {
			outcomes[i].Vector = vec
			continue
		}
		misses = append(misses, i)
	}

	if len(misses) > 0 {
		if err := s.embedMisses(ctx, texts, misses, outcomes); err != nil {
			return nil, err
		}
	}

	result := &BatchResult{Outcomes: outcomes}
	log.Debug().
		Int("inputs", len(texts)).
		Int("cache_hits", len(texts)-len(misses)).
		Int("succeeded", result.Succeeded()).
		Int("failed", result.Failed()).
		Msg("Embedding run finished")
	return result, nil
}

func (s *Service) embedMisses(ctx context.Context, texts []string, misses []int, outcomes []BatchOutcome) error {
	var quota quotaFlag

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for start := 0; start < len(misses); start += s.batchSize {
		end := start + s.batchSize
		if end > len(misses) {
			end = len(misses)
		}
		batch := misses[start:end]

		g.Go(func() error {
			// once quota is gone, un-started batches fail without a provider call
			if quota.Exhausted() {
				markFailed(outcomes, batch, ReasonQuotaExhausted)
				return nil
			}

			batchTexts := make([]string, len(batch))
			for j, i := range batch {
				batchTexts[j] = texts[i]
			}

			vectors, err := s.embedBatch(gctx, batchTexts)
			if err != nil {
				switch {
				case errors.Is(err, ErrQuotaExhausted):
					quota.Set()
					markFailed(outcomes, batch, ReasonQuotaExhausted)
					return nil
				case errors.Is(err, models.ErrDimensionMismatch),
					errors.Is(err, context.Canceled),
					errors.Is(err, context.DeadlineExceeded):
					return err
				default:
					markFailed(outcomes, batch, err.Error())
					return nil
				}
			}

			for j, i := range batch {
				outcomes[i].Vector = vectors[j]
				s.cache.Put(helper.ContentHash(texts[i]), vectors[j])
			}
			return nil
		})
	}
	return g.Wait()
}

// embedBatch is the bounded retry state machine for one provider call:
// acquire permit, call, and on a transient rate limit back off base^attempt
// seconds up to maxRetries. Quota exhaustion terminates immediately.
func (s *Service) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	for attempt := 0; ; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		vectors, err := s.provider.EmbedBatch(ctx, texts)
		if err == nil {
			if len(vectors) != len(texts) {
				return nil, fmt.Errorf("provider returned %d vectors for %d inputs", len(vectors), len(texts))
			}
			for _, v := range vectors {
				if len(v) != s.dimension {
					return nil, fmt.Errorf("%w: provider returned %d dimensions, want %d",
						models.ErrDimensionMismatch, len(v), s.dimension)
				}
			}
			return vectors, nil
		}

		if !errors.Is(err, ErrRateLimited) || attempt >= s.maxRetries {
			return nil, err
		}

		delay := s.backoff(attempt)
		log.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Dur("backoff", delay).
			Msg("Rate limited, retrying batch")
		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func (s *Service) backoff(attempt int) time.Duration {
	return time.Duration(math.Pow(s.backoffBase, float64(attempt+1)) * float64(time.Second))
}

func markFailed(outcomes []BatchOutcome, batch []int, reason string) {
	for _, i := range batch {
		outcomes[i].FailureReason = reason
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
