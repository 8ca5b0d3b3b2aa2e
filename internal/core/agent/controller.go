package agent

import (
	"context"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kliewerdaniel/steinbot/internal/core/model"
	"github.com/kliewerdaniel/steinbot/internal/core/persona"
	"github.com/kliewerdaniel/steinbot/internal/core/retrieval"
	"github.com/kliewerdaniel/steinbot/internal/llm"
	"github.com/kliewerdaniel/steinbot/internal/metrics"
	"github.com/kliewerdaniel/steinbot/internal/telemetry"
)

const (
	DefaultFanOut = 5

	Apology = "I'm sorry, I encountered an error while processing your query. Please try again."
)

// ContextRetriever is the part of retrieval.Retriever the controller uses.
type ContextRetriever interface {
	RetrieveContext(ctx context.Context, query string, limit int) retrieval.Retrieval
}

type Options struct {
	// StrictKeywordGate disables the threshold branch of the retrieval decision.
	StrictKeywordGate bool
	FanOut            int
	HistoryWindow     int
}

// Response is the outcome of one GenerateResponse call.
type Response struct {
	Response           string         `json:"response"`
	ContextUsed        []model.Result `json:"context_used"`
	QualityGrade       float64        `json:"quality_grade"`
	RetrievalMethod    string         `json:"retrieval_method,omitempty"`
	RetrievalPerformed bool           `json:"retrieval_performed"`
	Decision           Decision       `json:"decision"`
	Warnings           []string       `json:"warnings,omitempty"`
}

// Controller answers queries in a persona's voice and tunes the persona
// thresholds from the grade of every answer.
type Controller struct {
	LLM       llm.LLMClient
	Retriever ContextRetriever
	Store     persona.Store
	Lexicon   Lexicon
	Grader    Grader
	Metrics   *metrics.Collector
	Options   Options
	tracer    trace.Tracer
}

func NewController(client llm.LLMClient, r ContextRetriever, store persona.Store, lex Lexicon, m *metrics.Collector, opts Options) *Controller {
	if opts.FanOut <= 0 {
		opts.FanOut = DefaultFanOut
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = DefaultHistoryWindow
	}
	return &Controller{
		LLM:       client,
		Retriever: r,
		Store:     store,
		Lexicon:   lex,
		Grader:    NewHeuristicGrader(lex),
		Metrics:   m,
		Options:   opts,
		tracer:    telemetry.Tracer(),
	}
}

// GenerateResponse never fails: provider, graph and store errors degrade to
// empty context, the apology text or an unsaved threshold update, and are
// reported in Warnings.
func (c *Controller) GenerateResponse(ctx context.Context, query string, history []model.ChatMessage) Response {
	ctx, span := c.tracer.Start(ctx, "agent.GenerateResponse")
	defer span.End()

	out := Response{ContextUsed: []model.Result{}}
	warn := func(msg string, err error) {
		log.Warn(msg, "err", err)
		span.RecordError(err)
		out.Warnings = append(out.Warnings, msg+": "+err.Error())
	}

	p, err := c.Store.Load(ctx)
	if err != nil {
		warn("persona unavailable, using defaults", err)
		p, err = persona.Default(c.Lexicon.Domain)
		if err != nil {
			warn("no default persona", err)
		}
	}

	out.Decision = Decide(query, p, c.Lexicon, c.Options.StrictKeywordGate)
	c.Metrics.RecordDecision(out.Decision.Reason)
	log.Debug("retrieval decision", "reason", out.Decision.Reason, "adjusted_threshold", out.Decision.AdjustedThreshold)

	if out.Decision.NeedsContext {
		out.RetrievalPerformed = true
		if c.Retriever != nil {
			ret := c.Retriever.RetrieveContext(ctx, query, c.Options.FanOut)
			if err := ret.Err(); err != nil {
				warn("retrieval degraded", err)
			}
			if len(ret.Results) > 0 {
				out.ContextUsed = ret.Results
				out.RetrievalMethod = string(ret.Results[0].Strategy)
			}
		}
	}

	system := c.Lexicon.BuildSystemPrompt(p, c.Lexicon.FormatContext(out.ContextUsed), query, history, c.Options.HistoryWindow)
	out.Response, err = c.LLM.Generate(ctx, llm.Request{System: system, Prompt: query})
	if err != nil {
		warn("generation failed", err)
		c.Metrics.RecordGenerationFailure()
		out.Response = Apology
	}

	out.QualityGrade = c.Grader.Grade(query, out.Response, out.ContextUsed)
	c.Metrics.RecordGrade(out.QualityGrade)
	span.SetAttributes(
		attribute.Float64("quality_grade", out.QualityGrade),
		attribute.Int("context", len(out.ContextUsed)),
		attribute.String("decision", out.Decision.Reason),
	)

	updated, err := c.Store.Update(ctx, func(cfg *persona.Config) error {
		ApplyGrade(cfg, out.QualityGrade)
		return nil
	})
	if err != nil {
		warn("persona update not saved", err)
	} else {
		c.Metrics.SetThresholds(updated.Thresholds.Map(), updated.RecentSuccessRate)
	}

	return out
}
