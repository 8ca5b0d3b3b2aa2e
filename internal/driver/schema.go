package driver

import "fmt"

// Provenance describes a node kind linked to documents by a single relationship,
// such as the author of a post or the subreddit it was posted in.
type Provenance struct {
	Label string
	Key   string
	Rel   string
	// Inbound is true when the edge points at the document: (a)-[:REL]->(d).
	Inbound bool
	// Property is the denormalized copy stored on the document, if any.
	Property string
}

// pattern renders the relationship between a document and a provenance node.
func (p Provenance) pattern(doc, node string) string {
	if p.Inbound {
		return fmt.Sprintf("(%s)<-[:%s]-(%s)", doc, p.Rel, node)
	}
	return fmt.Sprintf("(%s)-[:%s]->(%s)", doc, p.Rel, node)
}

// Schema names the labels, keys and indexes of one document collection.
type Schema struct {
	Name          string
	DocumentLabel string
	IDProperty    string
	TopicLabel    string
	VectorIndex   string
	TopicIndex    string

	Author    *Provenance
	Container *Provenance

	// Threaded collections carry REPLIES_TO and BELONGS_TO_THREAD edges.
	Threaded bool

	ScoreProperty   string
	CreatedProperty string
	YearProperty    string
}

const (
	EmbeddingProperty   = "content_embedding"
	ContentProperty     = "raw_content"
	ContentHashProperty = "content_hash"
)

var (
	DocumentsSchema = Schema{
		Name:          "documents",
		DocumentLabel: "Document",
		IDProperty:    "filename",
		TopicLabel:    "Topic",
		VectorIndex:   "document_embeddings",
		TopicIndex:    "topic_embeddings",
	}

	RedditSchema = Schema{
		Name:          "reddit",
		DocumentLabel: "RedditContent",
		IDProperty:    "id",
		TopicLabel:    "Topic",
		VectorIndex:   "reddit_content_embeddings",
		TopicIndex:    "topic_embeddings",
		Author: &Provenance{
			Label:    "RedditUser",
			Key:      "username",
			Rel:      "AUTHORED_BY",
			Property: "author",
		},
		Container: &Provenance{
			Label:    "Subreddit",
			Key:      "name",
			Rel:      "POSTED_IN",
			Property: "subreddit",
		},
		Threaded:        true,
		ScoreProperty:   "score",
		CreatedProperty: "created_utc",
	}

	PapersSchema = Schema{
		Name:          "papers",
		DocumentLabel: "Paper",
		IDProperty:    "title",
		TopicLabel:    "Concept",
		VectorIndex:   "paper_embeddings",
		TopicIndex:    "concept_embeddings",
		Author: &Provenance{
			Label:   "Author",
			Key:     "name",
			Rel:     "AUTHORED",
			Inbound: true,
		},
		YearProperty: "year",
	}
)

// SchemaFor returns the schema registered under name.
func SchemaFor(name string) (Schema, error) {
	switch name {
	case DocumentsSchema.Name:
		return DocumentsSchema, nil
	case RedditSchema.Name:
		return RedditSchema, nil
	case PapersSchema.Name:
		return PapersSchema, nil
	}
	return Schema{}, fmt.Errorf("unknown schema %q", name)
}
