package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/kliewerdaniel/steinbot/internal/config"
	"github.com/kliewerdaniel/steinbot/internal/core/common"
	"github.com/kliewerdaniel/steinbot/internal/core/extraction"
	"github.com/kliewerdaniel/steinbot/internal/core/model"
	"github.com/kliewerdaniel/steinbot/internal/driver"
	"github.com/kliewerdaniel/steinbot/internal/llm"
	"github.com/kliewerdaniel/steinbot/internal/metrics"
)

var ErrEmptyContent = errors.New("document has no content")

// Builder writes documents and their topic, entity and provenance links into
// the graph, and later materializes the document-to-document relationships.
type Builder struct {
	Driver     driver.GraphDriver
	Embedder   llm.EmbedderClient
	Extractor  *extraction.Extractor
	Schema     driver.Schema
	Config     config.IngestConfig
	Dimensions int
	// Concurrency bounds IngestAll; values below 1 mean sequential.
	Concurrency int
	Metrics     *metrics.Collector
}

func NewBuilder(d driver.GraphDriver, e llm.EmbedderClient, x *extraction.Extractor, schema driver.Schema, cfg *config.Config, m *metrics.Collector) *Builder {
	return &Builder{
		Driver:      d,
		Embedder:    e,
		Extractor:   x,
		Schema:      schema,
		Config:      cfg.Ingest,
		Dimensions:  cfg.Retrieval.EmbeddingDimensions,
		Concurrency: cfg.Concurrency.BulkIngest,
		Metrics:     m,
	}
}

func (b *Builder) CreateIndexes(ctx context.Context) error {
	return b.Driver.BuildIndices(ctx, b.Schema, b.Dimensions)
}

// IngestDocument upserts one document keyed by its content hash. A document
// whose content was already ingested is returned with Created false and
// its links are refreshed.
func (b *Builder) IngestDocument(ctx context.Context, doc model.SourceDocument) (model.DocumentNode, error) {
	node, err := b.ingest(ctx, doc)
	if err == nil {
		err = b.linkThread(ctx, doc)
	}
	b.Metrics.RecordIngest(err)
	return node, err
}

func (b *Builder) ingest(ctx context.Context, doc model.SourceDocument) (model.DocumentNode, error) {
	if strings.TrimSpace(doc.Content) == "" {
		return model.DocumentNode{}, fmt.Errorf("%s: %w", doc.ID, ErrEmptyContent)
	}

	x := b.Extractor.ExtractOrFallback(ctx, doc.ID, doc.Content)
	if doc.DocumentType != "" {
		x.DocumentType = doc.DocumentType
	}

	node := model.DocumentNode{
		ID:           doc.ID,
		ContentHash:  common.ContentHash(doc.Content),
		RawContent:   common.Prefix(doc.Content, b.Config.MaxContentLength),
		DocumentType: x.DocumentType,
		Summary:      x.Summary,
		Topics:       x.Topics,
		Entities:     x.Entities,
	}
	if node.ID == "" {
		node.ID = node.ContentHash
	}
	node.Embedding = b.embed(ctx, node.ID, doc.Content)

	res, err := b.Driver.ExecuteQuery(ctx, b.Schema.UpsertDocumentQuery(), map[string]interface{}{
		"content_hash": node.ContentHash,
		"properties":   b.properties(node, doc),
	})
	if err != nil {
		return node, fmt.Errorf("failed to save document %s: %w", node.ID, err)
	}
	if len(res.Records) > 0 {
		if v, ok := res.Records[0].Get("created"); ok {
			node.Created, _ = v.(bool)
		}
		if v, ok := res.Records[0].Get("id"); ok {
			if id, ok := v.(string); ok && id != "" {
				node.ID = id
			}
		}
	}

	if err := b.link(ctx, node, doc); err != nil {
		return node, err
	}
	return node, nil
}

// embed returns nil when embedding fails; the document is still stored but
// stays out of the vector index.
func (b *Builder) embed(ctx context.Context, id, content string) []float32 {
	if b.Embedder == nil {
		return nil
	}
	vec, err := b.Embedder.Embed(ctx, common.Prefix(content, b.Config.EmbedPrefixLength))
	if err != nil {
		log.Warn("embedding failed, storing document without vector", "id", id, "err", err)
		return nil
	}
	return vec
}

func (b *Builder) properties(node model.DocumentNode, doc model.SourceDocument) map[string]interface{} {
	props := map[string]interface{}{
		b.Schema.IDProperty:        node.ID,
		driver.ContentProperty:     node.RawContent,
		driver.ContentHashProperty: node.ContentHash,
		"document_type":            node.DocumentType,
		"summary":                  node.Summary,
	}
	if len(node.Embedding) > 0 {
		props[driver.EmbeddingProperty] = node.Embedding
	}
	if a := b.Schema.Author; a != nil && a.Property != "" && len(doc.Authors) > 0 {
		props[a.Property] = doc.Authors[0]
	}
	if c := b.Schema.Container; c != nil && c.Property != "" && doc.Container != "" {
		props[c.Property] = doc.Container
	}
	if b.Schema.ScoreProperty != "" {
		props[b.Schema.ScoreProperty] = doc.Score
	}
	if b.Schema.CreatedProperty != "" && !doc.CreatedAt.IsZero() {
		props[b.Schema.CreatedProperty] = float64(doc.CreatedAt.UnixMilli()) / 1000
	}
	if b.Schema.YearProperty != "" && doc.Year != 0 {
		props[b.Schema.YearProperty] = doc.Year
	}
	return props
}

func (b *Builder) link(ctx context.Context, node model.DocumentNode, doc model.SourceDocument) error {
	hash := node.ContentHash
	steps := []struct {
		name   string
		query  string
		params map[string]interface{}
		skip   bool
	}{
		{"topics", b.Schema.LinkTopicsQuery(), map[string]interface{}{"content_hash": hash, "topics": node.Topics}, len(node.Topics) == 0},
		{"entities", b.Schema.LinkEntitiesQuery(), map[string]interface{}{"content_hash": hash, "entities": model.Extraction{Entities: node.Entities}.EntityParams()}, len(node.Entities) == 0},
		{"authors", b.Schema.LinkAuthorsQuery(), map[string]interface{}{"content_hash": hash, "authors": doc.Authors}, len(doc.Authors) == 0},
		{"container", b.Schema.LinkContainerQuery(), map[string]interface{}{"content_hash": hash, "container": doc.Container}, doc.Container == ""},
	}
	for _, s := range steps {
		if s.skip || s.query == "" {
			continue
		}
		if _, err := b.Driver.ExecuteQuery(ctx, s.query, s.params); err != nil {
			return fmt.Errorf("failed to link %s of %s: %w", s.name, node.ID, err)
		}
	}
	return nil
}

// linkThread adds the reply and thread edges. Missing endpoints create nothing.
func (b *Builder) linkThread(ctx context.Context, doc model.SourceDocument) error {
	if !b.Schema.Threaded || doc.ID == "" {
		return nil
	}
	if doc.ParentID != "" && doc.ParentID != doc.ID {
		if _, err := b.Driver.ExecuteQuery(ctx, b.Schema.LinkReplyQuery(), map[string]interface{}{
			"id":        doc.ID,
			"parent_id": doc.ParentID,
		}); err != nil {
			return fmt.Errorf("failed to link reply %s: %w", doc.ID, err)
		}
	}
	if doc.ThreadID != "" && doc.ThreadID != doc.ID {
		if _, err := b.Driver.ExecuteQuery(ctx, b.Schema.LinkThreadQuery(), map[string]interface{}{
			"id":        doc.ID,
			"thread_id": doc.ThreadID,
		}); err != nil {
			return fmt.Errorf("failed to link thread %s: %w", doc.ID, err)
		}
	}
	return nil
}

// Report summarizes a bulk ingestion.
type Report struct {
	Ingested int64   `json:"ingested"`
	Existing int64   `json:"existing"`
	Failed   int64   `json:"failed"`
	Errors   []error `json:"-"`
}

// IngestAll ingests docs with bounded concurrency. A failing document is
// counted and skipped; only context cancellation stops the run. Reply and
// thread edges are linked after every document exists.
func (b *Builder) IngestAll(ctx context.Context, docs []model.SourceDocument) (Report, error) {
	var (
		report Report
		mu     sync.Mutex
		done   atomic.Int64
	)

	g, gctx := errgroup.WithContext(ctx)
	limit := b.Concurrency
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)

	for _, doc := range docs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			node, err := b.ingest(gctx, doc)
			b.Metrics.RecordIngest(err)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				report.Failed++
				report.Errors = append(report.Errors, err)
				log.Warn("document failed", "id", doc.ID, "err", err)
			case node.Created:
				report.Ingested++
			default:
				report.Existing++
			}
			if n := done.Add(1); n%10 == 0 {
				log.Info("ingestion progress", "processed", n, "total", len(docs))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	for _, doc := range docs {
		if err := b.linkThread(ctx, doc); err != nil {
			report.Errors = append(report.Errors, err)
		}
	}
	log.Info("ingestion finished", "ingested", report.Ingested, "existing", report.Existing, "failed", report.Failed)
	return report, nil
}

// MaterializeRelationships writes TOPIC_RELATED, SHARES_ENTITIES and
// SIMILAR_TO edges over the whole collection.
func (b *Builder) MaterializeRelationships(ctx context.Context) (model.RelationshipStats, error) {
	var stats model.RelationshipStats

	passes := []struct {
		name   string
		query  string
		params map[string]interface{}
		out    *int64
	}{
		{model.RelTopicRelated, b.Schema.TopicRelatedQuery(), map[string]interface{}{"min_shared": b.Config.MinSharedTopics}, &stats.TopicRelated},
		{model.RelSharesEntities, b.Schema.SharedEntitiesQuery(), map[string]interface{}{"min_shared": b.Config.MinSharedEntities}, &stats.SharesEntities},
		{model.RelSimilarTo, b.Schema.SimilarityQuery(), map[string]interface{}{"threshold": b.Config.SimilarityThreshold}, &stats.SimilarTo},
	}
	for _, p := range passes {
		res, err := b.Driver.ExecuteQuery(ctx, p.query, p.params)
		if err != nil {
			return stats, fmt.Errorf("failed to create %s relationships: %w", p.name, err)
		}
		if len(res.Records) > 0 {
			if v, ok := res.Records[0].Get("relationships"); ok {
				*p.out, _ = v.(int64)
			}
		}
		log.Info("relationships created", "type", p.name, "count", *p.out)
	}
	return stats, nil
}
