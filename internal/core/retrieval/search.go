package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kliewerdaniel/steinbot/internal/core/model"
	"github.com/kliewerdaniel/steinbot/internal/driver"
	"github.com/kliewerdaniel/steinbot/internal/llm"
)

const (
	DefaultSearchLimit  = 10
	DefaultRelatedLimit = 5
)

// ErrUnsupported is returned when the collection has no node kind for the search.
var ErrUnsupported = errors.New("search not supported by this collection")

// Searcher runs the single-purpose lookups next to the fused retriever.
// Each method is one query with no fusion or weighting.
type Searcher struct {
	Driver   driver.GraphDriver
	Profile  Profile
	Concepts *llm.ConceptExtractor
}

func NewSearcher(d driver.GraphDriver, p Profile, concepts *llm.ConceptExtractor) *Searcher {
	return &Searcher{Driver: d, Profile: p, Concepts: concepts}
}

func (s *Searcher) SearchByTopic(ctx context.Context, topics []string, limit int) ([]model.Result, error) {
	topics = cleanTerms(topics)
	if len(topics) == 0 {
		return nil, nil
	}
	return s.run(ctx, model.StrategyTopicSearch, s.Profile.Schema.TopicSearchQuery(), map[string]interface{}{
		"topics": topics,
		"limit":  orDefault(limit, DefaultSearchLimit),
	})
}

func (s *Searcher) SearchByEntity(ctx context.Context, entities []string, limit int) ([]model.Result, error) {
	entities = cleanTerms(entities)
	if len(entities) == 0 {
		return nil, nil
	}
	return s.run(ctx, model.StrategyEntitySearch, s.Profile.Schema.EntitySearchQuery(), map[string]interface{}{
		"entities": entities,
		"limit":    orDefault(limit, DefaultSearchLimit),
	})
}

func (s *Searcher) SearchByAuthor(ctx context.Context, author string, limit int) ([]model.Result, error) {
	return s.run(ctx, model.StrategyAuthorSearch, s.Profile.Schema.AuthorSearchQuery(), map[string]interface{}{
		"author": strings.TrimSpace(author),
		"limit":  orDefault(limit, DefaultSearchLimit),
	})
}

func (s *Searcher) SearchByContainer(ctx context.Context, container string, limit int) ([]model.Result, error) {
	return s.run(ctx, model.StrategyContainerSearch, s.Profile.Schema.ContainerSearchQuery(), map[string]interface{}{
		"container": strings.TrimSpace(container),
		"limit":     orDefault(limit, DefaultSearchLimit),
	})
}

func (s *Searcher) SearchByDocumentType(ctx context.Context, documentType string, limit int) ([]model.Result, error) {
	return s.run(ctx, model.StrategyTypeSearch, s.Profile.Schema.DocumentTypeSearchQuery(), map[string]interface{}{
		"document_type": strings.TrimSpace(documentType),
		"limit":         orDefault(limit, DefaultSearchLimit),
	})
}

// FindSimilar ranks documents by topics and entities shared with id.
func (s *Searcher) FindSimilar(ctx context.Context, id string, limit int) ([]model.Result, error) {
	return s.run(ctx, model.StrategySimilarity, s.Profile.Schema.SimilarDocumentsQuery(), map[string]interface{}{
		"seed_id": id,
		"limit":   orDefault(limit, DefaultRelatedLimit),
	})
}

// FindRelated follows TOPIC_RELATED, SHARES_ENTITIES, SIMILAR_TO and reply edges from id.
func (s *Searcher) FindRelated(ctx context.Context, id string, limit int) ([]model.Result, error) {
	return s.run(ctx, model.StrategyRelated, s.Profile.Schema.RelatedDocumentsQuery(), map[string]interface{}{
		"seed_id": id,
		"limit":   orDefault(limit, DefaultRelatedLimit),
	})
}

// ExtractQueryConcepts asks the model for the key concepts of query.
func (s *Searcher) ExtractQueryConcepts(ctx context.Context, query string) []string {
	if s.Concepts == nil {
		return firstWords(query, 3)
	}
	return s.Concepts.Extract(ctx, query)
}

// SearchByConcepts extracts concepts from query and searches topics by them.
func (s *Searcher) SearchByConcepts(ctx context.Context, query string, limit int) ([]string, []model.Result, error) {
	concepts := s.ExtractQueryConcepts(ctx, query)
	results, err := s.SearchByTopic(ctx, concepts, limit)
	return concepts, results, err
}

func (s *Searcher) CountDocuments(ctx context.Context) (int64, error) {
	res, err := s.Driver.ExecuteQuery(ctx, s.Profile.Schema.CountDocumentsQuery(), nil)
	if err != nil {
		return 0, err
	}
	if len(res.Records) == 0 {
		return 0, nil
	}
	if n := recordInt(res.Records[0], "documents"); n != nil {
		return *n, nil
	}
	return 0, nil
}

func (s *Searcher) run(ctx context.Context, strategy model.Strategy, query string, params map[string]interface{}) ([]model.Result, error) {
	if query == "" {
		return nil, fmt.Errorf("%s on %s: %w", strategy, s.Profile.Schema.Name, ErrUnsupported)
	}
	res, err := s.Driver.ExecuteQuery(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", strategy, err)
	}
	results := previews(decodeResults(res, strategy), s.Profile.PreviewLength)
	for i := range results {
		results[i].Score = BaseScore(results[i], s.Profile.CountFactor)
	}
	return results, nil
}

func cleanTerms(terms []string) []string {
	var out []string
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func firstWords(s string, n int) []string {
	return head(strings.Fields(s), n)
}

func orDefault(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return limit
}
