package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"rag-engine/internal/config"
)

var (
	// ErrRateLimited is a transient provider error, retried with backoff.
	ErrRateLimited = errors.New("provider rate limited")
	// ErrQuotaExhausted is fatal for the current run: no retry, remaining
	// inputs are marked failed without being sent to the provider.
	ErrQuotaExhausted = errors.New("provider quota exhausted")
)

// Provider converts one batch of texts into vectors.
type Provider interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// NewEmbedder creates a new langchaingo embedder against an OpenAI-compatible endpoint
func NewEmbedder(cfg *config.LLM) (*embeddings.EmbedderImpl, error) {
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, err
	}
	embedder, err := embeddings.NewEmbedder(llm) // Handle both return values
	if err != nil {
		return nil, err
	}
	return embedder, nil
}

// LangChainProvider adapts a langchaingo embedder to the Provider interface
// and classifies its errors into the retry taxonomy.
type LangChainProvider struct {
	embedder *embeddings.EmbedderImpl
}

func NewLangChainProvider(cfg *config.LLM) (*LangChainProvider, error) {
	embedder, err := NewEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	return &LangChainProvider{embedder: embedder}, nil
}

func (p *LangChainProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, classifyProviderError(err)
	}
	return vectors, nil
}

// classifyProviderError maps raw provider errors onto the sentinels. Quota
// errors also arrive as HTTP 429, so the quota check comes first.
func classifyProviderError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "insufficient_quota") || strings.Contains(msg, "quota"):
		return fmt.Errorf("%w: %v", ErrQuotaExhausted, err)
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests"):
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	}
	return err
}
