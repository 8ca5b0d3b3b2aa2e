package llm

import (
	"context"
	"errors"

	"github.com/kliewerdaniel/steinbot/internal/core/common"
)

type retryingLLM struct {
	next     LLMClient
	attempts int
}

func (r *retryingLLM) Generate(ctx context.Context, req Request) (string, error) {
	return common.RetryWithContext(ctx, r.attempts, func(ctx context.Context) (string, error) {
		return r.next.Generate(ctx, req)
	})
}

type retryingEmbedder struct {
	next     EmbedderClient
	attempts int
}

func (r *retryingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return common.RetryWithContext(ctx, r.attempts, func(ctx context.Context) ([]float32, error) {
		vec, err := r.next.Embed(ctx, text)
		if errors.Is(err, ErrEmbeddingsUnsupported) {
			return nil, common.Permanent(err)
		}
		return vec, err
	})
}
