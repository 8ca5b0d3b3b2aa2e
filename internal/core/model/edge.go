package model

// Relationship types written by ingestion.
const (
	RelDiscusses       = "DISCUSSES"
	RelMentions        = "MENTIONS"
	RelTopicRelated    = "TOPIC_RELATED"
	RelSharesEntities  = "SHARES_ENTITIES"
	RelSimilarTo       = "SIMILAR_TO"
	RelRepliesTo       = "REPLIES_TO"
	RelBelongsToThread = "BELONGS_TO_THREAD"
)

// RelationshipStats counts edges materialized by one relationship pass.
type RelationshipStats struct {
	TopicRelated   int64 `json:"topic_related"`
	SharesEntities int64 `json:"shares_entities"`
	SimilarTo      int64 `json:"similar_to"`
}
