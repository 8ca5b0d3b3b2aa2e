package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/ollama/ollama/api"
	"github.com/pkoukk/tiktoken-go"
)

const (
	defaultContextWindow = 4096
	// responseReserve is added to the prompt size when sizing num_ctx.
	responseReserve = 1024
)

type OllamaClient struct {
	client         *api.Client
	model          string
	embeddingModel string
	temperature    float64

	encOnce sync.Once
	enc     *tiktoken.Tiktoken
}

func NewOllamaClient(model, embeddingModel, baseURL string) (*OllamaClient, error) {
	var u *url.URL
	if baseURL != "" {
		parsed, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama base url: %w", err)
		}
		u = parsed
	} else {
		u = &url.URL{Scheme: "http", Host: "localhost:11434"}
	}

	return &OllamaClient{
		client:         api.NewClient(u, http.DefaultClient),
		model:          model,
		embeddingModel: embeddingModel,
		temperature:    0.7,
	}, nil
}

func (c *OllamaClient) Generate(ctx context.Context, req Request) (string, error) {
	var messages []api.Message
	if req.System != "" {
		messages = append(messages, api.Message{Role: "system", Content: req.System})
	}
	messages = append(messages, api.Message{Role: "user", Content: req.Prompt})

	stream := false
	chatReq := &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": float64(temperature32(req, c.temperature)),
		},
	}
	if req.JSON {
		chatReq.Format = json.RawMessage(`"json"`)
	}
	if n := c.contextSize(req.System + req.Prompt); n > defaultContextWindow {
		chatReq.Options["num_ctx"] = n
	}

	var out string
	err := c.client.Chat(ctx, chatReq, func(cr api.ChatResponse) error {
		out += cr.Message.Content
		return nil
	})
	if err != nil {
		return "", err
	}
	if out == "" {
		return "", fmt.Errorf("empty response from model %s", c.model)
	}
	return out, nil
}

func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := c.client.Embed(ctx, &api.EmbedRequest{
		Model: c.embeddingModel,
		Input: text,
	})
	if err != nil {
		return nil, err
	}
	if len(res.Embeddings) == 0 || len(res.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("no embedding data")
	}
	return res.Embeddings[0], nil
}

// contextSize estimates the window needed for text plus a response. It returns 0
// when the tokenizer is unavailable.
func (c *OllamaClient) contextSize(text string) int {
	c.encOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			log.Debug("tokenizer unavailable, using default context window", "err", err)
			return
		}
		c.enc = enc
	})
	if c.enc == nil {
		return 0
	}
	return len(c.enc.Encode(text, nil, nil)) + responseReserve
}
