package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kliewerdaniel/steinbot/internal/config"
	"github.com/kliewerdaniel/steinbot/internal/core/common"
)

type MockLLM struct {
	Response string
	Err      error
	Calls    int
	Requests []Request
}

func (m *MockLLM) Generate(ctx context.Context, req Request) (string, error) {
	m.Calls++
	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

type flakyEmbedder struct {
	failures int
	calls    int
	err      error
}

func (f *flakyEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return []float32{1, 2, 3}, nil
}

func init() {
	common.RetryBackoff = time.Millisecond
}

func TestNewClient_Providers(t *testing.T) {
	ctx := context.Background()

	gen, emb, err := NewClient(ctx, config.LLMConfig{Provider: "OpenAI", Model: "gpt-4o-mini", APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, gen)
	assert.NotNil(t, emb)

	gen, emb, err = NewClient(ctx, config.LLMConfig{Provider: "claude", Model: "claude-3-haiku", APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &ClaudeClient{}, gen)
	assert.Nil(t, emb)

	gen, emb, err = NewClient(ctx, config.LLMConfig{Provider: "ollama", Model: "m", BaseURL: "http://localhost:11434", MaxRetries: 2})
	require.NoError(t, err)
	assert.IsType(t, &retryingLLM{}, gen)
	assert.IsType(t, &retryingEmbedder{}, emb)

	_, _, err = NewClient(ctx, config.LLMConfig{Provider: "mystery"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported llm provider")
}

func TestRetryingEmbedder(t *testing.T) {
	inner := &flakyEmbedder{failures: 2, err: errors.New("connection reset")}
	r := &retryingEmbedder{next: inner, attempts: 3}

	vec, err := r.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, vec)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryingEmbedder_UnsupportedIsPermanent(t *testing.T) {
	inner := &flakyEmbedder{failures: 5, err: ErrEmbeddingsUnsupported}
	r := &retryingEmbedder{next: inner, attempts: 3}

	_, err := r.Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrEmbeddingsUnsupported)
	assert.Equal(t, 1, inner.calls)
}

func TestClaudeEmbed_Unsupported(t *testing.T) {
	_, err := NewClaudeClient("k", "m", "").Embed(context.Background(), "x")
	assert.ErrorIs(t, err, ErrEmbeddingsUnsupported)
}

func TestConceptExtractor(t *testing.T) {
	mock := &MockLLM{Response: "neural networks, - transformers,\n attention\n"}
	e := NewConceptExtractor(mock, "document search")

	concepts := e.Extract(context.Background(), "how do transformers use attention")

	assert.Equal(t, []string{"neural networks", "transformers", "attention"}, concepts)
	require.Len(t, mock.Requests, 1)
	require.NotNil(t, mock.Requests[0].Temperature)
	assert.Equal(t, 0.1, *mock.Requests[0].Temperature)
	assert.Contains(t, mock.Requests[0].Prompt, "document search query")
}

func TestConceptExtractor_Fallback(t *testing.T) {
	e := NewConceptExtractor(&MockLLM{Err: errors.New("down")}, "paper")
	assert.Equal(t, []string{"graph", "neural", "networks"}, e.Extract(context.Background(), "graph neural networks for molecules"))

	e = NewConceptExtractor(&MockLLM{Response: " , \n"}, "paper")
	assert.Equal(t, []string{"short"}, e.Extract(context.Background(), "short"))
}

func TestOpenAIClient_AgainstFakeServer(t *testing.T) {
	var chatBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/chat/completions":
			_ = json.Unmarshal(body, &chatBody)
			_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"hello there"}}]}`))
		case "/embeddings":
			_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.5,0.25]}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewOpenAIClient("k", "gpt-test", "text-embedding-3-small", srv.URL)

	out, err := c.Generate(context.Background(), Request{System: "be brief", Prompt: "hi", JSON: true})
	require.NoError(t, err)
	assert.Equal(t, "hello there", out)

	messages := chatBody["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "be brief", messages[0].(map[string]any)["content"])
	assert.Equal(t, "json_object", chatBody["response_format"].(map[string]any)["type"])

	vec, err := c.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25}, vec)
}

func TestOllamaClient_AgainstFakeServer(t *testing.T) {
	var chatBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/chat":
			_ = json.Unmarshal(body, &chatBody)
			_, _ = w.Write([]byte(`{"model":"m","message":{"role":"assistant","content":"graph answer"},"done":true}` + "\n"))
		case "/api/embed":
			_, _ = w.Write([]byte(`{"model":"e","embeddings":[[0.1,0.2,0.3]]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c, err := NewOllamaClient("m", "e", srv.URL)
	require.NoError(t, err)

	out, err := c.Generate(context.Background(), Request{System: "persona", Prompt: "question", Temperature: Temperature(0.2)})
	require.NoError(t, err)
	assert.Equal(t, "graph answer", out)

	messages := chatBody["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.InDelta(t, 0.2, chatBody["options"].(map[string]any)["temperature"], 1e-6)

	vec, err := c.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}
