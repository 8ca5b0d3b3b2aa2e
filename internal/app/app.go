package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/kliewerdaniel/steinbot/internal/config"
	"github.com/kliewerdaniel/steinbot/internal/core/agent"
	"github.com/kliewerdaniel/steinbot/internal/core/extraction"
	"github.com/kliewerdaniel/steinbot/internal/core/ingest"
	"github.com/kliewerdaniel/steinbot/internal/core/persona"
	"github.com/kliewerdaniel/steinbot/internal/core/retrieval"
	"github.com/kliewerdaniel/steinbot/internal/driver"
	"github.com/kliewerdaniel/steinbot/internal/evaluation"
	"github.com/kliewerdaniel/steinbot/internal/llm"
	"github.com/kliewerdaniel/steinbot/internal/metrics"
)

const metricsNamespace = "steinbot"

// App holds every long-lived component built from one configuration.
type App struct {
	Config     *config.Config
	Driver     driver.GraphDriver
	LLM        llm.LLMClient
	Embedder   llm.EmbedderClient
	Profile    retrieval.Profile
	Retriever  *retrieval.Retriever
	Searcher   *retrieval.Searcher
	Persona    persona.Store
	Controller *agent.Controller
	Builder    *ingest.Builder
	Metrics    *metrics.Collector

	traces *evaluation.TraceStore
}

// New connects to the graph and the model provider and wires the components
// for cfg.Retrieval.Domain.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	profile, err := retrieval.ProfileFor(cfg.Retrieval.Domain)
	if err != nil {
		return nil, err
	}
	profile = profile.WithConfig(cfg.Retrieval)
	lex, err := agent.LexiconFor(cfg.Retrieval.Domain)
	if err != nil {
		return nil, err
	}

	d, err := driver.NewNeo4jDriver(ctx, cfg.Graph)
	if err != nil {
		return nil, err
	}
	client, embedder, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		_ = d.Close(ctx)
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	store, err := persona.Open(ctx, cfg)
	if err != nil {
		_ = d.Close(ctx)
		return nil, fmt.Errorf("failed to open persona store: %w", err)
	}

	return Assemble(cfg, d, client, embedder, store, profile, lex), nil
}

// Assemble wires already-built collaborators. Tests use it with mocks.
func Assemble(cfg *config.Config, d driver.GraphDriver, client llm.LLMClient, embedder llm.EmbedderClient, store persona.Store, profile retrieval.Profile, lex agent.Lexicon) *App {
	m := metrics.NewCollector(metricsNamespace)

	a := &App{
		Config:   cfg,
		Driver:   d,
		LLM:      client,
		Embedder: embedder,
		Profile:  profile,
		Persona:  store,
		Metrics:  m,
	}
	a.Retriever = retrieval.NewRetriever(d, embedder, profile, m)
	a.Searcher = retrieval.NewSearcher(d, profile, llm.NewConceptExtractor(client, profile.ConceptSubject))
	a.Controller = agent.NewController(client, a.Retriever, store, lex, m, agent.Options{
		StrictKeywordGate: cfg.Persona.StrictKeywordGate,
		FanOut:            cfg.Persona.ContextFanOut,
		HistoryWindow:     cfg.Persona.HistoryWindow,
	})
	a.Builder = ingest.NewBuilder(d, embedder, extraction.NewExtractor(client, cfg.Ingest.ExtractionPrompt), profile.Schema, cfg, m)
	return a
}

// Traces opens the evaluation trace store on first use.
func (a *App) Traces() (*evaluation.TraceStore, error) {
	if a.traces != nil {
		return a.traces, nil
	}
	t, err := evaluation.OpenTraceStore(a.Config.Evaluation.TraceDB)
	if err != nil {
		return nil, err
	}
	a.traces = t
	return t, nil
}

// Evaluator drives the controller with traces recorded in the trace store.
func (a *App) Evaluator() (*evaluation.Evaluator, error) {
	traces, err := a.Traces()
	if err != nil {
		return nil, err
	}
	return evaluation.NewEvaluator(a.Controller, traces, a.Config.Evaluation.K), nil
}

func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.traces != nil {
		errs = append(errs, a.traces.Close())
	}
	if c, ok := a.Persona.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if a.Driver != nil {
		errs = append(errs, a.Driver.Close(ctx))
	}
	err := errors.Join(errs...)
	if err != nil {
		log.Warn("shutdown incomplete", "err", err)
	}
	return err
}
