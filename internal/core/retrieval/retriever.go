package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kliewerdaniel/steinbot/internal/core/common"
	"github.com/kliewerdaniel/steinbot/internal/core/model"
	"github.com/kliewerdaniel/steinbot/internal/driver"
	"github.com/kliewerdaniel/steinbot/internal/llm"
	"github.com/kliewerdaniel/steinbot/internal/metrics"
	"github.com/kliewerdaniel/steinbot/internal/telemetry"
)

const StageEmbedding = "embedding"

var ErrNoEmbedder = errors.New("no embedding provider configured")

// StageError records a stage that failed and contributed nothing.
type StageError struct {
	Stage string
	Err   error
}

func (e StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }
func (e StageError) Unwrap() error { return e.Err }

// Retrieval is the outcome of one RetrieveContext call. Results are always
// usable; Degraded lists the stages that failed along the way.
type Retrieval struct {
	Results  []model.Result
	Degraded []StageError
}

// Err joins the stage failures, or returns nil for a clean run.
func (r Retrieval) Err() error {
	if len(r.Degraded) == 0 {
		return nil
	}
	errs := make([]error, len(r.Degraded))
	for i, d := range r.Degraded {
		errs[i] = d
	}
	return errors.Join(errs...)
}

// Aborted reports whether the embedding or vector stage failed.
func (r Retrieval) Aborted() bool {
	for _, d := range r.Degraded {
		if d.Stage == StageEmbedding || d.Stage == string(model.StrategyVector) {
			return true
		}
	}
	return false
}

type Retriever struct {
	Driver   driver.GraphDriver
	Embedder llm.EmbedderClient
	Profile  Profile
	Metrics  *metrics.Collector
	tracer   trace.Tracer
}

func NewRetriever(d driver.GraphDriver, e llm.EmbedderClient, p Profile, m *metrics.Collector) *Retriever {
	return &Retriever{
		Driver:   d,
		Embedder: e,
		Profile:  p,
		Metrics:  m,
		tracer:   telemetry.Tracer(),
	}
}

// RetrieveContext fuses vector search with topic and profile-specific graph
// expansion and returns at most limit results, most relevant first.
// Only an embedding or vector-stage failure empties the result; a failed
// expansion stage is recorded and skipped.
func (r *Retriever) RetrieveContext(ctx context.Context, query string, limit int) Retrieval {
	if limit <= 0 {
		limit = DefaultLimit
	}
	ctx, span := r.tracer.Start(ctx, "retrieval.RetrieveContext",
		trace.WithAttributes(attribute.Int("limit", limit), attribute.String("domain", r.Profile.Schema.Name)))
	defer span.End()

	var out Retrieval
	fail := func(stage string, err error) {
		log.Warn("retrieval stage failed", "stage", stage, "err", err)
		span.RecordError(err)
		out.Degraded = append(out.Degraded, StageError{Stage: stage, Err: err})
	}

	embedding, err := r.embed(ctx, query)
	if err != nil {
		fail(StageEmbedding, err)
		span.SetStatus(codes.Error, "embedding failed")
		return out
	}

	vector, err := r.run(ctx, model.StrategyVector, r.Profile.Schema.VectorSearchQuery(), map[string]interface{}{
		"index":           r.Profile.Schema.VectorIndex,
		"limit":           limit,
		"query_embedding": embedding,
	})
	if err != nil {
		fail(string(model.StrategyVector), err)
		span.SetStatus(codes.Error, "vector stage failed")
		return out
	}
	if len(vector) == 0 {
		r.Metrics.RecordResults(0)
		return out
	}

	seed := vector[0]

	var topics []model.Result
	if topicLimit := limit / 2; len(seed.Topics) > 0 && topicLimit > 0 {
		topics, err = r.run(ctx, model.StrategyTopicExpansion, r.Profile.Schema.TopicExpansionQuery(), map[string]interface{}{
			"topics":     head(seed.Topics, topicSeedCount),
			"exclude_id": seed.ID,
			"limit":      topicLimit,
		})
		if err != nil {
			fail(string(model.StrategyTopicExpansion), err)
			topics = nil
		}
	} else {
		r.Metrics.RecordSkippedStage(string(model.StrategyTopicExpansion))
	}

	second, err := r.expand(ctx, seed, limit/3)
	if err != nil {
		fail(string(r.Profile.Expansion), err)
		second = nil
	}

	out.Results = Rank(Merge(r.Profile.PreviewLength, vector, topics, second), r.Profile, limit)
	r.Metrics.RecordResults(len(out.Results))
	span.SetAttributes(attribute.Int("results", len(out.Results)))
	return out
}

func (r *Retriever) embed(ctx context.Context, query string) ([]float32, error) {
	if r.Embedder == nil {
		return nil, ErrNoEmbedder
	}
	start := time.Now()
	vec, err := r.Embedder.Embed(ctx, query)
	if err == nil && len(vec) == 0 {
		err = errors.New("empty embedding")
	}
	r.Metrics.RecordStage(StageEmbedding, err, time.Since(start))
	return vec, err
}

// expand runs the profile's second expansion stage seeded by the best vector hit.
func (r *Retriever) expand(ctx context.Context, seed model.Result, limit int) ([]model.Result, error) {
	schema := r.Profile.Schema
	stage := r.Profile.Expansion

	var (
		query  string
		params map[string]interface{}
	)
	switch stage {
	case model.StrategyEntityExpansion:
		if len(seed.Entities) > 0 {
			query = schema.EntityExpansionQuery()
			params = map[string]interface{}{
				"entities":   head(seed.Entities, entitySeedCount),
				"exclude_id": seed.ID,
				"limit":      limit,
			}
		}
	case model.StrategyThreadContext:
		if schema.Threaded {
			query = schema.ThreadContextQuery()
			params = map[string]interface{}{"seed_id": seed.ID, "limit": limit}
		}
	case model.StrategyAuthorExpansion:
		query = schema.AuthorExpansionQuery()
		params = map[string]interface{}{"seed_id": seed.ID, "limit": limit}
	}

	if query == "" || limit <= 0 {
		r.Metrics.RecordSkippedStage(string(stage))
		return nil, nil
	}
	return r.run(ctx, stage, query, params)
}

func (r *Retriever) run(ctx context.Context, stage model.Strategy, query string, params map[string]interface{}) ([]model.Result, error) {
	ctx, span := r.tracer.Start(ctx, "retrieval."+string(stage))
	defer span.End()

	start := time.Now()
	res, err := r.Driver.ExecuteQuery(ctx, query, params)
	r.Metrics.RecordStage(string(stage), err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	results := decodeResults(res, stage)
	span.SetAttributes(attribute.Int("rows", len(results)))
	return results, nil
}

func head(values []string, n int) []string {
	if len(values) > n {
		return values[:n]
	}
	return values
}

// previews fills Preview for results that bypass Merge.
func previews(results []model.Result, n int) []model.Result {
	for i := range results {
		results[i].Preview = common.Truncate(results[i].Content, n)
	}
	return results
}
