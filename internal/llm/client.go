package llm

import (
	"context"
	"errors"
)

// ErrEmbeddingsUnsupported is returned by providers without an embedding endpoint.
var ErrEmbeddingsUnsupported = errors.New("embeddings not supported by provider")

// Request is a single-turn generation call.
type Request struct {
	System string
	Prompt string
	// Temperature overrides the provider default when set.
	Temperature *float64
	// JSON asks the provider for a JSON object response where supported.
	JSON bool
}

type LLMClient interface {
	Generate(ctx context.Context, req Request) (string, error)
}

type EmbedderClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Temperature is a convenience for Request.Temperature.
func Temperature(v float64) *float64 {
	return &v
}

func temperature32(req Request, fallback float64) float32 {
	if req.Temperature != nil {
		return float32(*req.Temperature)
	}
	return float32(fallback)
}
