package ingest

import (
	"context"
	"strings"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/kliewerdaniel/steinbot/internal/driver"
	"github.com/kliewerdaniel/steinbot/internal/llm"
)

type executed struct {
	query  string
	params map[string]interface{}
}

// MockDriver is safe for concurrent use. Fail makes every query containing
// the substring return Err.
type MockDriver struct {
	MockResult neo4j.EagerResult
	Err        error
	Fail       string
	Indexed    bool

	mu      sync.Mutex
	queries []executed
}

func (m *MockDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, executed{query: query, params: params})
	if m.Fail != "" && strings.Contains(query, m.Fail) {
		return neo4j.EagerResult{}, m.Err
	}
	return m.MockResult, nil
}

// Matching returns the parameters of every executed query containing s.
func (m *MockDriver) Matching(s string) []map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []map[string]interface{}
	for _, q := range m.queries {
		if strings.Contains(q.query, s) {
			out = append(out, q.params)
		}
	}
	return out
}

func (m *MockDriver) BuildIndices(ctx context.Context, schema driver.Schema, dimensions int) error {
	m.Indexed = true
	return nil
}

func (m *MockDriver) Ping(ctx context.Context) error {
	return nil
}

func (m *MockDriver) Close(ctx context.Context) error {
	return nil
}

type MockEmbedder struct {
	Vector []float32
	Err    error

	mu    sync.Mutex
	Texts []string
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Texts = append(m.Texts, text)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Vector, nil
}

type MockLLM struct {
	Response string
	Err      error
}

func (m *MockLLM) Generate(ctx context.Context, req llm.Request) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

func createdResult(id string, created bool) neo4j.EagerResult {
	return neo4j.EagerResult{Records: []*neo4j.Record{{
		Keys:   []string{"id", "created"},
		Values: []any{id, created},
	}}}
}

const (
	upsertMatch    = "ON CREATE SET d += $properties"
	topicsMatch    = "MERGE (d)-[:DISCUSSES]->(t)"
	entitiesMatch  = "MERGE (d)-[:MENTIONS]->(e)"
	authorsMatch   = "UNWIND $authors"
	containerMatch = "MERGE (c:"
	replyMatch     = "MERGE (d)-[:REPLIES_TO]->(p)"
	threadMatch    = "MERGE (d)-[:BELONGS_TO_THREAD]->(root)"
)
