package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/kliewerdaniel/steinbot/internal/config"
)

// NewClient builds the generation and embedding clients for cfg.Provider.
// The embedder is nil for providers without embeddings.
func NewClient(ctx context.Context, cfg config.LLMConfig) (LLMClient, EmbedderClient, error) {
	provider := strings.ToLower(cfg.Provider)

	var (
		gen LLMClient
		emb EmbedderClient
	)

	switch provider {
	case "openai":
		c := NewOpenAIClient(cfg.APIKey, cfg.Model, cfg.EmbeddingModel, cfg.BaseURL)
		if cfg.MaxTokens > 0 {
			c.maxTokens = cfg.MaxTokens
		}
		c.temperature = cfg.Temperature
		gen, emb = c, c

	case "gemini":
		c, err := NewGeminiClient(ctx, cfg.APIKey, cfg.Model, cfg.EmbeddingModel)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		c.temperature = cfg.Temperature
		gen, emb = c, c

	case "claude":
		c := NewClaudeClient(cfg.APIKey, cfg.Model, cfg.BaseURL)
		if cfg.MaxTokens > 0 {
			c.maxTokens = cfg.MaxTokens
		}
		c.temperature = cfg.Temperature
		gen = c

	case "ollama":
		c, err := NewOllamaClient(cfg.Model, cfg.EmbeddingModel, cfg.BaseURL)
		if err != nil {
			return nil, nil, err
		}
		c.temperature = cfg.Temperature
		gen, emb = c, c

	default:
		return nil, nil, fmt.Errorf("unsupported llm provider: %s", provider)
	}

	if cfg.MaxRetries > 0 {
		gen = &retryingLLM{next: gen, attempts: cfg.MaxRetries + 1}
		if emb != nil {
			emb = &retryingEmbedder{next: emb, attempts: cfg.MaxRetries + 1}
		}
	}
	return gen, emb, nil
}
