package agent

import (
	"context"
	"errors"

	"github.com/kliewerdaniel/steinbot/internal/core/persona"
	"github.com/kliewerdaniel/steinbot/internal/core/retrieval"
	"github.com/kliewerdaniel/steinbot/internal/llm"
)

type MockLLM struct {
	Response string
	Err      error
	Requests []llm.Request
}

func (m *MockLLM) Generate(ctx context.Context, req llm.Request) (string, error) {
	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

type MockRetriever struct {
	Retrieval retrieval.Retrieval
	Queries   []string
	Limits    []int
}

func (m *MockRetriever) RetrieveContext(ctx context.Context, query string, limit int) retrieval.Retrieval {
	m.Queries = append(m.Queries, query)
	m.Limits = append(m.Limits, limit)
	return m.Retrieval
}

// BrokenStore fails every operation.
type BrokenStore struct{}

var errStoreDown = errors.New("store down")

func (BrokenStore) Load(ctx context.Context) (persona.Config, error) {
	return persona.Config{}, errStoreDown
}

func (BrokenStore) Save(ctx context.Context, c persona.Config) error {
	return errStoreDown
}

func (BrokenStore) Update(ctx context.Context, fn func(*persona.Config) error) (persona.Config, error) {
	return persona.Config{}, errStoreDown
}

func (BrokenStore) Reset(ctx context.Context) (persona.Config, error) {
	return persona.Config{}, errStoreDown
}
