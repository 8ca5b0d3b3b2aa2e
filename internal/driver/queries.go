package driver

import (
	"fmt"
	"strings"
)

// Every read query projects the same column set so that results decode
// through one code path: id, content, document_type, summary, the optional
// provenance columns, and per-query topics/entities/authors/match_count.

func (s Schema) node(alias string) string {
	return alias + ":" + s.DocumentLabel
}

func (s Schema) projection(alias string) string {
	cols := []string{
		fmt.Sprintf("%s.%s AS id", alias, s.IDProperty),
		fmt.Sprintf("%s.%s AS content", alias, ContentProperty),
		fmt.Sprintf("%s.document_type AS document_type", alias),
		fmt.Sprintf("%s.summary AS summary", alias),
	}
	if s.Author != nil && s.Author.Property != "" {
		cols = append(cols, fmt.Sprintf("%s.%s AS author", alias, s.Author.Property))
	}
	if s.Container != nil && s.Container.Property != "" {
		cols = append(cols, fmt.Sprintf("%s.%s AS container", alias, s.Container.Property))
	}
	if s.ScoreProperty != "" {
		cols = append(cols, fmt.Sprintf("%s.%s AS provenance_score", alias, s.ScoreProperty))
	}
	if s.CreatedProperty != "" {
		cols = append(cols, fmt.Sprintf("%s.%s AS created_at", alias, s.CreatedProperty))
	}
	if s.YearProperty != "" {
		cols = append(cols, fmt.Sprintf("%s.%s AS year", alias, s.YearProperty))
	}
	return strings.Join(cols, ",\n\t\t")
}

func (s Schema) optionalAuthors(alias string) string {
	if s.Author == nil {
		return ""
	}
	return "OPTIONAL MATCH " + s.Author.pattern(alias, "a:"+s.Author.Label)
}

func (s Schema) authorsColumn() string {
	if s.Author == nil {
		return ""
	}
	return fmt.Sprintf(",\n\t\tcollect(DISTINCT a.%s) AS authors", s.Author.Key)
}

// VectorSearchQuery runs kNN over $index and collects single-hop context.
// Params: index, limit, query_embedding.
func (s Schema) VectorSearchQuery() string {
	return fmt.Sprintf(`
	CALL db.index.vector.queryNodes($index, $limit, $query_embedding)
	YIELD node AS d, score
	OPTIONAL MATCH (d)-[:DISCUSSES]->(t:%s)
	OPTIONAL MATCH (d)-[:MENTIONS]->(e:Entity)
	%s
	RETURN
		%s,
		score AS relevance_score,
		collect(DISTINCT t.name) AS topics,
		collect(DISTINCT e.name) AS entities%s
	ORDER BY relevance_score DESC
	`, s.TopicLabel, s.optionalAuthors("d"), s.projection("d"), s.authorsColumn())
}

// TopicExpansionQuery finds other documents discussing any of $topics.
// Params: topics, exclude_id, limit.
func (s Schema) TopicExpansionQuery() string {
	return s.topicQuery(fmt.Sprintf("WHERE d.%s <> $exclude_id", s.IDProperty))
}

// TopicSearchQuery is TopicExpansionQuery without a seed. Params: topics, limit.
func (s Schema) TopicSearchQuery() string {
	return s.topicQuery("")
}

func (s Schema) topicQuery(where string) string {
	return fmt.Sprintf(`
	UNWIND $topics AS topic_name
	MATCH (%s)-[:DISCUSSES]->(t:%s {name: topic_name})
	%s
	%s
	RETURN
		%s,
		count(DISTINCT t) AS match_count,
		collect(DISTINCT topic_name) AS topics%s
	ORDER BY match_count DESC
	LIMIT $limit
	`, s.node("d"), s.TopicLabel, where, s.optionalAuthors("d"), s.projection("d"), s.authorsColumn())
}

// EntityExpansionQuery finds other documents mentioning any of $entities.
// Params: entities, exclude_id, limit.
func (s Schema) EntityExpansionQuery() string {
	return s.entityQuery(fmt.Sprintf("WHERE d.%s <> $exclude_id", s.IDProperty))
}

// EntitySearchQuery is EntityExpansionQuery without a seed. Params: entities, limit.
func (s Schema) EntitySearchQuery() string {
	return s.entityQuery("")
}

func (s Schema) entityQuery(where string) string {
	return fmt.Sprintf(`
	UNWIND $entities AS entity_name
	MATCH (%s)-[:MENTIONS]->(e:Entity {name: entity_name})
	%s
	%s
	RETURN
		%s,
		count(DISTINCT e) AS match_count,
		collect(DISTINCT entity_name) AS entities%s
	ORDER BY match_count DESC
	LIMIT $limit
	`, s.node("d"), where, s.optionalAuthors("d"), s.projection("d"), s.authorsColumn())
}

// ThreadContextQuery returns replies, the parent and the thread root of the seed.
// Params: seed_id, limit.
func (s Schema) ThreadContextQuery() string {
	return fmt.Sprintf(`
	MATCH (seed:%[1]s {%[2]s: $seed_id})
	CALL {
		WITH seed
		MATCH (seed)<-[:REPLIES_TO]-(d:%[1]s)
		RETURN d, 'reply' AS relationship_type
		UNION
		WITH seed
		MATCH (seed)-[:REPLIES_TO]->(d:%[1]s)
		RETURN d, 'parent' AS relationship_type
		UNION
		WITH seed
		MATCH (seed)-[:BELONGS_TO_THREAD]->(d:%[1]s)
		RETURN d, 'thread' AS relationship_type
	}
	WITH d, relationship_type
	WHERE d.%[2]s <> $seed_id
	%[3]s
	RETURN
		%[4]s,
		relationship_type,
		1 AS match_count%[5]s
	LIMIT $limit
	`, s.DocumentLabel, s.IDProperty, s.optionalAuthors("d"), s.projection("d"), s.authorsColumn())
}

// AuthorExpansionQuery returns other documents by the seed's authors.
// Params: seed_id, limit.
func (s Schema) AuthorExpansionQuery() string {
	if s.Author == nil {
		return ""
	}
	return fmt.Sprintf(`
	MATCH %s
	MATCH %s
	WHERE d.%s <> $seed_id
	RETURN
		%s,
		count(DISTINCT a) AS match_count,
		collect(DISTINCT a.%s) AS authors
	ORDER BY match_count DESC
	LIMIT $limit
	`,
		s.Author.pattern(fmt.Sprintf("seed:%s {%s: $seed_id}", s.DocumentLabel, s.IDProperty), "a:"+s.Author.Label),
		s.Author.pattern(s.node("d"), "a"),
		s.IDProperty, s.projection("d"), s.Author.Key)
}

// AuthorSearchQuery lists documents by one author. Params: author, limit.
func (s Schema) AuthorSearchQuery() string {
	if s.Author == nil {
		return ""
	}
	return s.provenanceSearch(*s.Author, "author")
}

// ContainerSearchQuery lists documents in one container. Params: container, limit.
func (s Schema) ContainerSearchQuery() string {
	if s.Container == nil {
		return ""
	}
	return s.provenanceSearch(*s.Container, "container")
}

func (s Schema) provenanceSearch(p Provenance, param string) string {
	return fmt.Sprintf(`
	MATCH %s
	OPTIONAL MATCH (d)-[:DISCUSSES]->(t:%s)
	RETURN
		%s,
		collect(DISTINCT t.name) AS topics,
		1 AS match_count
	ORDER BY id
	LIMIT $limit
	`, p.pattern(s.node("d"), fmt.Sprintf("p:%s {%s: $%s}", p.Label, p.Key, param)), s.TopicLabel, s.projection("d"))
}

// DocumentTypeSearchQuery lists documents of one type. Params: document_type, limit.
func (s Schema) DocumentTypeSearchQuery() string {
	return fmt.Sprintf(`
	MATCH (%s)
	WHERE d.document_type = $document_type
	RETURN
		%s
	ORDER BY id
	LIMIT $limit
	`, s.node("d"), s.projection("d"))
}

// SimilarDocumentsQuery ranks documents by topics and entities shared with the seed.
// Params: seed_id, limit.
func (s Schema) SimilarDocumentsQuery() string {
	return fmt.Sprintf(`
	MATCH (seed:%[1]s {%[2]s: $seed_id})-[:DISCUSSES|MENTIONS]->(shared)<-[:DISCUSSES|MENTIONS]-(d:%[1]s)
	WHERE d.%[2]s <> $seed_id
	WITH d,
		collect(DISTINCT CASE WHEN shared:%[3]s THEN shared.name END) AS topics,
		collect(DISTINCT CASE WHEN shared:Entity THEN shared.name END) AS entities
	RETURN
		%[4]s,
		topics,
		entities,
		size(topics) + size(entities) AS match_count
	ORDER BY match_count DESC
	LIMIT $limit
	`, s.DocumentLabel, s.IDProperty, s.TopicLabel, s.projection("d"))
}

// RelatedDocumentsQuery follows materialized relationship edges from the seed.
// Params: seed_id, limit.
func (s Schema) RelatedDocumentsQuery() string {
	return fmt.Sprintf(`
	MATCH (seed:%[1]s {%[2]s: $seed_id})-[r:TOPIC_RELATED|SHARES_ENTITIES|SIMILAR_TO|REPLIES_TO]-(d:%[1]s)
	WHERE d.%[2]s <> $seed_id
	WITH d, r,
		CASE type(r)
			WHEN 'TOPIC_RELATED' THEN 'topic_related'
			WHEN 'SHARES_ENTITIES' THEN 'entity_related'
			WHEN 'SIMILAR_TO' THEN 'similar_to'
			ELSE 'reply'
		END AS relationship_type
	RETURN DISTINCT
		%[3]s,
		relationship_type,
		r.similarity AS relevance_score,
		coalesce(r.shared_topics, r.count, 1) AS match_count
	ORDER BY relationship_type, match_count DESC
	LIMIT $limit
	`, s.DocumentLabel, s.IDProperty, s.projection("d"))
}

func (s Schema) CountDocumentsQuery() string {
	return fmt.Sprintf("MATCH (d:%s) RETURN count(d) AS documents", s.DocumentLabel)
}

// UpsertDocumentQuery creates the document once per content hash; an existing
// node is left untouched. Params: content_hash, properties.
func (s Schema) UpsertDocumentQuery() string {
	return fmt.Sprintf(`
	MERGE (d:%s {%s: $content_hash})
	ON CREATE SET d += $properties, d.ingested_at = timestamp(), d.pending = true
	WITH d, coalesce(d.pending, false) AS created
	REMOVE d.pending
	RETURN d.%s AS id, created
	`, s.DocumentLabel, ContentHashProperty, s.IDProperty)
}

// LinkTopicsQuery params: content_hash, topics.
func (s Schema) LinkTopicsQuery() string {
	return fmt.Sprintf(`
	MATCH (d:%s {%s: $content_hash})
	UNWIND $topics AS topic_name
	MERGE (t:%s {name: topic_name})
	MERGE (d)-[:DISCUSSES]->(t)
	`, s.DocumentLabel, ContentHashProperty, s.TopicLabel)
}

// LinkEntitiesQuery params: content_hash, entities (list of {name, type}).
func (s Schema) LinkEntitiesQuery() string {
	return fmt.Sprintf(`
	MATCH (d:%s {%s: $content_hash})
	UNWIND $entities AS entity
	MERGE (e:Entity {name: entity.name, type: entity.type})
	MERGE (d)-[:MENTIONS]->(e)
	`, s.DocumentLabel, ContentHashProperty)
}

// LinkAuthorsQuery params: content_hash, authors.
func (s Schema) LinkAuthorsQuery() string {
	if s.Author == nil {
		return ""
	}
	return fmt.Sprintf(`
	MATCH (d:%s {%s: $content_hash})
	UNWIND $authors AS author_name
	MERGE (a:%s {%s: author_name})
	MERGE %s
	`, s.DocumentLabel, ContentHashProperty, s.Author.Label, s.Author.Key, s.Author.pattern("d", "a"))
}

// LinkContainerQuery params: content_hash, container.
func (s Schema) LinkContainerQuery() string {
	if s.Container == nil {
		return ""
	}
	return fmt.Sprintf(`
	MATCH (d:%s {%s: $content_hash})
	MERGE (c:%s {%s: $container})
	MERGE %s
	`, s.DocumentLabel, ContentHashProperty, s.Container.Label, s.Container.Key, s.Container.pattern("d", "c"))
}

// LinkReplyQuery params: id, parent_id. A missing parent creates nothing.
func (s Schema) LinkReplyQuery() string {
	return fmt.Sprintf(`
	MATCH (d:%[1]s {%[2]s: $id})
	MATCH (p:%[1]s {%[2]s: $parent_id})
	MERGE (d)-[:REPLIES_TO]->(p)
	`, s.DocumentLabel, s.IDProperty)
}

// LinkThreadQuery params: id, thread_id.
func (s Schema) LinkThreadQuery() string {
	return fmt.Sprintf(`
	MATCH (d:%[1]s {%[2]s: $id})
	MATCH (root:%[1]s {%[2]s: $thread_id})
	WHERE d <> root
	MERGE (d)-[:BELONGS_TO_THREAD]->(root)
	`, s.DocumentLabel, s.IDProperty)
}

// TopicRelatedQuery params: min_shared.
func (s Schema) TopicRelatedQuery() string {
	return fmt.Sprintf(`
	MATCH (a:%[1]s)-[:DISCUSSES]->(t:%[2]s)<-[:DISCUSSES]-(b:%[1]s)
	WHERE elementId(a) < elementId(b)
	WITH a, b, count(DISTINCT t) AS shared
	WHERE shared >= $min_shared
	MERGE (a)-[r:TOPIC_RELATED]->(b)
	SET r.shared_topics = shared
	RETURN count(r) AS relationships
	`, s.DocumentLabel, s.TopicLabel)
}

// SharedEntitiesQuery params: min_shared.
func (s Schema) SharedEntitiesQuery() string {
	return fmt.Sprintf(`
	MATCH (a:%[1]s)-[:MENTIONS]->(e:Entity)<-[:MENTIONS]-(b:%[1]s)
	WHERE elementId(a) < elementId(b)
	WITH a, b, count(DISTINCT e) AS shared
	WHERE shared >= $min_shared
	MERGE (a)-[r:SHARES_ENTITIES]->(b)
	SET r.count = shared
	RETURN count(r) AS relationships
	`, s.DocumentLabel)
}

// SimilarityQuery links document pairs whose cosine similarity exceeds $threshold.
func (s Schema) SimilarityQuery() string {
	return fmt.Sprintf(`
	MATCH (a:%[1]s), (b:%[1]s)
	WHERE elementId(a) < elementId(b)
		AND a.%[2]s IS NOT NULL AND b.%[2]s IS NOT NULL
		AND size(a.%[2]s) = size(b.%[2]s) AND size(a.%[2]s) > 0
	WITH a, b,
		reduce(dot = 0.0, i IN range(0, size(a.%[2]s) - 1) | dot + a.%[2]s[i] * b.%[2]s[i]) AS dot,
		sqrt(reduce(sq = 0.0, x IN a.%[2]s | sq + x * x)) AS mag_a,
		sqrt(reduce(sq = 0.0, x IN b.%[2]s | sq + x * x)) AS mag_b
	WHERE mag_a > 0 AND mag_b > 0
	WITH a, b, dot / (mag_a * mag_b) AS similarity
	WHERE similarity > $threshold
	MERGE (a)-[r:SIMILAR_TO]->(b)
	SET r.similarity = similarity
	RETURN count(r) AS relationships
	`, s.DocumentLabel, EmbeddingProperty)
}

// IndexQueries returns the DDL for the schema's vector indexes and constraints.
func (s Schema) IndexQueries(dimensions int) []string {
	vector := func(name, label, property string) string {
		return fmt.Sprintf(`CREATE VECTOR INDEX %s IF NOT EXISTS
	FOR (n:%s) ON n.%s
	OPTIONS {indexConfig: {`+"`vector.dimensions`"+`: %d, `+"`vector.similarity_function`"+`: 'cosine'}}`,
			name, label, property, dimensions)
	}
	unique := func(name, label, key string) string {
		return fmt.Sprintf("CREATE CONSTRAINT %s IF NOT EXISTS FOR (n:%s) REQUIRE n.%s IS UNIQUE", name, label, key)
	}

	lower := strings.ToLower(s.DocumentLabel)
	queries := []string{
		vector(s.VectorIndex, s.DocumentLabel, EmbeddingProperty),
		vector(s.TopicIndex, s.TopicLabel, "embedding"),
		unique(lower+"_content_hash", s.DocumentLabel, ContentHashProperty),
		unique(strings.ToLower(s.TopicLabel)+"_name", s.TopicLabel, "name"),
		"CREATE CONSTRAINT entity_name_type IF NOT EXISTS FOR (n:Entity) REQUIRE (n.name, n.type) IS UNIQUE",
		fmt.Sprintf("CREATE INDEX %s_id IF NOT EXISTS FOR (n:%s) ON (n.%s)", lower, s.DocumentLabel, s.IDProperty),
	}
	if s.Author != nil {
		queries = append(queries, unique(strings.ToLower(s.Author.Label)+"_key", s.Author.Label, s.Author.Key))
	}
	if s.Container != nil {
		queries = append(queries, unique(strings.ToLower(s.Container.Label)+"_key", s.Container.Label, s.Container.Key))
	}
	return queries
}
