package model

// Strategy tags which retrieval stage or auxiliary search produced a result.
type Strategy string

const (
	StrategyVector          Strategy = "vector_search"
	StrategyTopicExpansion  Strategy = "topic_expansion"
	StrategyEntityExpansion Strategy = "entity_expansion"
	StrategyThreadContext   Strategy = "thread_context"
	StrategyAuthorExpansion Strategy = "author_expansion"

	StrategyTopicSearch     Strategy = "topic_search"
	StrategyEntitySearch    Strategy = "entity_search"
	StrategyAuthorSearch    Strategy = "author_search"
	StrategyContainerSearch Strategy = "container_search"
	StrategyTypeSearch      Strategy = "document_type_search"
	StrategySimilarity      Strategy = "similarity_search"
	StrategyRelated         Strategy = "related_search"
)

// Result is one ranked document. The leading fields are the common projection;
// the rest are filled only by the strategies that produce them.
type Result struct {
	ID           string   `json:"id"`
	Content      string   `json:"-"`
	Preview      string   `json:"content_preview,omitempty"`
	DocumentType string   `json:"document_type,omitempty"`
	Summary      string   `json:"summary,omitempty"`
	Topics       []string `json:"topics,omitempty"`
	Entities     []string `json:"entities,omitempty"`
	Strategy     Strategy `json:"retrieval_method"`
	Score        float64  `json:"score"`

	Author          string   `json:"author,omitempty"`
	Authors         []string `json:"authors,omitempty"`
	Container       string   `json:"container,omitempty"`
	ProvenanceScore *int64   `json:"provenance_score,omitempty"`
	CreatedAt       *float64 `json:"created_at,omitempty"`
	Year            *int64   `json:"year,omitempty"`

	// RelevanceScore is the similarity reported by the vector index.
	RelevanceScore *float64 `json:"relevance_score,omitempty"`
	// MatchCount is the number of shared topics, entities or authors.
	MatchCount   *int64 `json:"match_count,omitempty"`
	Relationship string `json:"relationship_type,omitempty"`
}
