package retrieval

import (
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/kliewerdaniel/steinbot/internal/core/model"
)

func decodeResults(res neo4j.EagerResult, strategy model.Strategy) []model.Result {
	results := make([]model.Result, 0, len(res.Records))
	for _, rec := range res.Records {
		results = append(results, decodeResult(rec, strategy))
	}
	return results
}

func decodeResult(rec *neo4j.Record, strategy model.Strategy) model.Result {
	return model.Result{
		ID:              recordString(rec, "id"),
		Content:         recordString(rec, "content"),
		DocumentType:    recordString(rec, "document_type"),
		Summary:         recordString(rec, "summary"),
		Topics:          recordStrings(rec, "topics"),
		Entities:        recordStrings(rec, "entities"),
		Strategy:        strategy,
		Author:          recordString(rec, "author"),
		Authors:         recordStrings(rec, "authors"),
		Container:       recordString(rec, "container"),
		ProvenanceScore: recordInt(rec, "provenance_score"),
		CreatedAt:       recordFloat(rec, "created_at"),
		Year:            recordInt(rec, "year"),
		RelevanceScore:  recordFloat(rec, "relevance_score"),
		MatchCount:      recordInt(rec, "match_count"),
		Relationship:    recordString(rec, "relationship_type"),
	}
}

func recordString(rec *neo4j.Record, key string) string {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func recordStrings(rec *neo4j.Record, key string) []string {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return nil
	}
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func recordFloat(rec *neo4j.Record, key string) *float64 {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return nil
	}
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int64:
		f = float64(n)
	case int:
		f = float64(n)
	default:
		return nil
	}
	return &f
}

func recordInt(rec *neo4j.Record, key string) *int64 {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return nil
	}
	var i int64
	switch n := v.(type) {
	case int64:
		i = n
	case int:
		i = int64(n)
	case float64:
		i = int64(n)
	default:
		return nil
	}
	return &i
}
