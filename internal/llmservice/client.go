package llmservice

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"rag-engine/internal/config"
	"rag-engine/internal/models"
)

// RelevanceScorer judges (query, passage) pairs with a cross-encoder style
// LLM prompt that answers with a single 0-100 score.
type RelevanceScorer struct {
	llm *openai.LLM
}

func NewRelevanceScorer(cfg *config.LLM) (*RelevanceScorer, error) {
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, err
	}
	return &RelevanceScorer{llm: llm}, nil
}

// Score returns the model's pairwise relevance judgement normalized into [0,1].
func (s *RelevanceScorer) Score(ctx context.Context, query, passage string) (float64, error) {
	prompt := fmt.Sprintf(models.RelevancePromptTemplate, query, passage)

	msgContent := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextContent{Text: prompt}},
		},
	}

	res, err := s.llm.GenerateContent(ctx, msgContent)
	if err != nil {
		return 0, err
	}
	if len(res.Choices) == 0 {
		return 0, fmt.Errorf("empty response from relevance model")
	}

	raw := strings.TrimSpace(res.Choices[0].Content)
	score, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Debug().Str("response", raw).Msg("Unparseable relevance score")
		return 0, fmt.Errorf("failed to parse relevance score %q: %v", raw, err)
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score / 100, nil
}
