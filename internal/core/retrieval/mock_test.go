package retrieval

import (
	"context"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/kliewerdaniel/steinbot/internal/driver"
)

type mockResponse struct {
	match  string
	result neo4j.EagerResult
	err    error
}

// MockDriver answers queries by the first registered substring they contain
// and falls back to MockResult/Err.
type MockDriver struct {
	QueryExecuted string
	QueryParams   map[string]interface{}
	Queries       []string
	Params        []map[string]interface{}
	MockResult    neo4j.EagerResult
	Err           error

	responses []mockResponse
}

func (m *MockDriver) On(match string, result neo4j.EagerResult, err error) *MockDriver {
	m.responses = append(m.responses, mockResponse{match: match, result: result, err: err})
	return m
}

func (m *MockDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	m.QueryExecuted = query
	m.QueryParams = params
	m.Queries = append(m.Queries, query)
	m.Params = append(m.Params, params)
	for _, r := range m.responses {
		if strings.Contains(query, r.match) {
			return r.result, r.err
		}
	}
	if m.Err != nil {
		return neo4j.EagerResult{}, m.Err
	}
	return m.MockResult, nil
}

// ParamsFor returns the parameters of the first executed query containing match.
func (m *MockDriver) ParamsFor(match string) map[string]interface{} {
	for i, q := range m.Queries {
		if strings.Contains(q, match) {
			return m.Params[i]
		}
	}
	return nil
}

func (m *MockDriver) BuildIndices(ctx context.Context, schema driver.Schema, dimensions int) error {
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
	Calls  int
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Vector, nil
}

// record builds a neo4j record from alternating keys and values.
func record(kv ...interface{}) *neo4j.Record {
	rec := &neo4j.Record{}
	for i := 0; i+1 < len(kv); i += 2 {
		rec.Keys = append(rec.Keys, kv[i].(string))
		rec.Values = append(rec.Values, kv[i+1])
	}
	return rec
}

func records(recs ...*neo4j.Record) neo4j.EagerResult {
	return neo4j.EagerResult{Records: recs}
}

func list(values ...string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

const (
	vectorMatch = "db.index.vector.queryNodes"
	topicMatch  = "UNWIND $topics"
	entityMatch = "UNWIND $entities"
	threadMatch = "BELONGS_TO_THREAD"
	authorMatch = "count(DISTINCT a) AS match_count"
)
