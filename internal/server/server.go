package server

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kliewerdaniel/steinbot/internal/app"
	"github.com/kliewerdaniel/steinbot/internal/core/agent"
	"github.com/kliewerdaniel/steinbot/internal/core/ingest"
	"github.com/kliewerdaniel/steinbot/internal/core/model"
	"github.com/kliewerdaniel/steinbot/internal/core/persona"
	"github.com/kliewerdaniel/steinbot/internal/evaluation"
	"github.com/kliewerdaniel/steinbot/internal/metrics"
)

const requestIDHeader = "X-Request-ID"

type Responder interface {
	GenerateResponse(ctx context.Context, query string, history []model.ChatMessage) agent.Response
}

// Searcher is the read side of retrieval.Searcher.
type Searcher interface {
	SearchByTopic(ctx context.Context, topics []string, limit int) ([]model.Result, error)
	SearchByEntity(ctx context.Context, entities []string, limit int) ([]model.Result, error)
	SearchByAuthor(ctx context.Context, author string, limit int) ([]model.Result, error)
	SearchByContainer(ctx context.Context, container string, limit int) ([]model.Result, error)
	SearchByDocumentType(ctx context.Context, documentType string, limit int) ([]model.Result, error)
	SearchByConcepts(ctx context.Context, query string, limit int) ([]string, []model.Result, error)
	FindSimilar(ctx context.Context, id string, limit int) ([]model.Result, error)
	FindRelated(ctx context.Context, id string, limit int) ([]model.Result, error)
	CountDocuments(ctx context.Context) (int64, error)
}

type Ingester interface {
	IngestAll(ctx context.Context, docs []model.SourceDocument) (ingest.Report, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type TraceReader interface {
	Runs(ctx context.Context) ([]string, error)
	Run(ctx context.Context, runID string) ([]evaluation.Trace, error)
}

// Server exposes the controller and the searches over HTTP. Ingester and
// Traces are optional; their routes answer 503 without them.
type Server struct {
	Controller     Responder
	Retriever      agent.ContextRetriever
	Searcher       Searcher
	Persona        persona.Store
	Ingester       Ingester
	Graph          Pinger
	Traces         TraceReader
	Metrics        *metrics.Collector
	Domain         string
	PersonaBackend string
}

func NewServer(a *app.App) *Server {
	s := &Server{
		Controller:     a.Controller,
		Retriever:      a.Retriever,
		Searcher:       a.Searcher,
		Persona:        a.Persona,
		Ingester:       a.Builder,
		Graph:          a.Driver,
		Metrics:        a.Metrics,
		Domain:         a.Config.Retrieval.Domain,
		PersonaBackend: a.Config.Persona.Backend,
	}
	if traces, err := a.Traces(); err != nil {
		log.Warn("trace store unavailable, evaluation routes disabled", "err", err)
	} else {
		s.Traces = traces
	}
	return s
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), s.observe())

	api := r.Group("/api")
	api.GET("/health", s.Health)
	api.GET("/status", s.Status)
	api.POST("/chat", s.Chat)

	api.GET("/search", s.Search)
	api.GET("/search/topics", s.SearchTopics)
	api.GET("/search/entities", s.SearchEntities)
	api.GET("/search/authors", s.SearchAuthors)
	api.GET("/search/containers", s.SearchContainers)
	api.GET("/search/types", s.SearchTypes)
	api.GET("/search/concepts", s.SearchConcepts)

	api.POST("/documents", s.IngestDocuments)
	api.GET("/documents/:id/similar", s.SimilarDocuments)
	api.GET("/documents/:id/related", s.RelatedDocuments)

	api.GET("/persona", s.GetPersona)
	api.POST("/persona/reset", s.ResetPersona)

	api.GET("/evaluations", s.ListEvaluations)
	api.GET("/evaluations/:run_id", s.GetEvaluation)

	r.GET("/metrics", gin.WrapH(s.Metrics.Handler()))
	return r
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// observe logs every request and records it by route template, so document
// IDs do not become metric labels.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		d := time.Since(start)
		status := c.Writer.Status()
		s.Metrics.RecordHTTPRequest(c.Request.Method, path, status, d)

		fields := []interface{}{"method", c.Request.Method, "path", path, "status", status, "duration", d, "request_id", c.GetString("request_id")}
		if status >= 500 {
			log.Error("request failed", fields...)
		} else {
			log.Debug("request", fields...)
		}
	}
}
