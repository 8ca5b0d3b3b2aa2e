package model

import "time"

// SourceDocument is one input record for ingestion.
type SourceDocument struct {
	ID           string    `json:"id"`
	Content      string    `json:"content"`
	DocumentType string    `json:"document_type,omitempty"`
	Authors      []string  `json:"authors,omitempty"`
	Container    string    `json:"container,omitempty"`
	Score        int64     `json:"score,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	Year         int64     `json:"year,omitempty"`
	// ParentID and ThreadID link discussion replies to their parent and thread root.
	ParentID string `json:"parent_id,omitempty"`
	ThreadID string `json:"thread_id,omitempty"`
}

// DocumentNode is the persisted form of a document.
type DocumentNode struct {
	ID           string            `json:"id"`
	ContentHash  string            `json:"content_hash"`
	RawContent   string            `json:"raw_content"`
	DocumentType string            `json:"document_type"`
	Summary      string            `json:"summary"`
	Embedding    []float32         `json:"content_embedding,omitempty"`
	Topics       []string          `json:"topics"`
	Entities     []ExtractedEntity `json:"entities"`
	// Created is false when a document with the same content hash already existed.
	Created bool `json:"created"`
}

type TopicNode struct {
	Name      string    `json:"name"`
	Embedding []float32 `json:"embedding,omitempty"`
}
