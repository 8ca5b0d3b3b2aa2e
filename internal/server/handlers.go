package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/kliewerdaniel/steinbot/internal/core/agent"
	"github.com/kliewerdaniel/steinbot/internal/core/model"
	"github.com/kliewerdaniel/steinbot/internal/core/retrieval"
)

const maxLimit = 50

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now().UTC().Format(time.RFC3339)})
}

type ChatRequest struct {
	Query       string              `json:"query" binding:"required"`
	ChatHistory []model.ChatMessage `json:"chat_history"`
}

// Source is the short citation form of a context document.
type Source struct {
	ID              string `json:"id"`
	DocumentType    string `json:"document_type,omitempty"`
	RelevanceScore  string `json:"relevance_score"`
	RetrievalMethod string `json:"retrieval_method"`
}

type ChatResponse struct {
	agent.Response
	Sources []Source `json:"sources"`
}

func (s *Server) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: query is required"})
		return
	}

	resp := s.Controller.GenerateResponse(c.Request.Context(), req.Query, req.ChatHistory)

	sources := make([]Source, 0, len(resp.ContextUsed))
	for _, r := range resp.ContextUsed {
		score := r.Score
		if r.RelevanceScore != nil {
			score = *r.RelevanceScore
		}
		sources = append(sources, Source{
			ID:              r.ID,
			DocumentType:    r.DocumentType,
			RelevanceScore:  fmt.Sprintf("%.3f", score),
			RetrievalMethod: string(r.Strategy),
		})
	}
	c.JSON(http.StatusOK, ChatResponse{Response: resp, Sources: sources})
}

// Search runs the fused retrieval. A failed vector stage is a 502; failed
// expansions are reported as warnings next to the results.
func (s *Server) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter is required"})
		return
	}
	limit, ok := limitParam(c, retrieval.DefaultLimit)
	if !ok {
		return
	}

	ret := s.Retriever.RetrieveContext(c.Request.Context(), query, limit)
	if ret.Aborted() {
		log.Error("search failed", "query", query, "err", ret.Err())
		c.JSON(http.StatusBadGateway, gin.H{"error": "Search failed", "detail": ret.Err().Error()})
		return
	}
	body := gin.H{"query": query, "results": nonNil(ret.Results)}
	if err := ret.Err(); err != nil {
		body["warnings"] = strings.Split(err.Error(), "\n")
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) SearchTopics(c *gin.Context) {
	s.listSearch(c, func(terms []string, limit int) ([]model.Result, error) {
		return s.Searcher.SearchByTopic(c.Request.Context(), terms, limit)
	})
}

func (s *Server) SearchEntities(c *gin.Context) {
	s.listSearch(c, func(terms []string, limit int) ([]model.Result, error) {
		return s.Searcher.SearchByEntity(c.Request.Context(), terms, limit)
	})
}

func (s *Server) SearchAuthors(c *gin.Context) {
	s.termSearch(c, s.Searcher.SearchByAuthor)
}

func (s *Server) SearchContainers(c *gin.Context) {
	s.termSearch(c, s.Searcher.SearchByContainer)
}

func (s *Server) SearchTypes(c *gin.Context) {
	s.termSearch(c, s.Searcher.SearchByDocumentType)
}

func (s *Server) SearchConcepts(c *gin.Context) {
	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter is required"})
		return
	}
	limit, ok := limitParam(c, retrieval.DefaultSearchLimit)
	if !ok {
		return
	}
	concepts, results, err := s.Searcher.SearchByConcepts(c.Request.Context(), query, limit)
	if err != nil {
		searchError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"query": query, "concepts": concepts, "results": nonNil(results)})
}

func (s *Server) SimilarDocuments(c *gin.Context) {
	s.documentSearch(c, s.Searcher.FindSimilar)
}

func (s *Server) RelatedDocuments(c *gin.Context) {
	s.documentSearch(c, s.Searcher.FindRelated)
}

type IngestRequest struct {
	Documents []model.SourceDocument `json:"documents" binding:"required"`
}

func (s *Server) IngestDocuments(c *gin.Context) {
	if s.Ingester == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Ingestion not available"})
		return
	}
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Documents) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: documents are required"})
		return
	}

	report, err := s.Ingester.IngestAll(c.Request.Context(), req.Documents)
	if err != nil {
		log.Error("ingestion aborted", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ingestion aborted"})
		return
	}
	failures := make([]string, 0, len(report.Errors))
	for _, e := range report.Errors {
		failures = append(failures, e.Error())
	}
	c.JSON(http.StatusOK, gin.H{"report": report, "errors": failures})
}

func (s *Server) GetPersona(c *gin.Context) {
	p, err := s.Persona.Load(c.Request.Context())
	if err != nil {
		log.Error("failed to load persona", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load persona"})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) ResetPersona(c *gin.Context) {
	p, err := s.Persona.Reset(c.Request.Context())
	if err != nil {
		log.Error("failed to reset persona", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset persona"})
		return
	}
	c.JSON(http.StatusOK, p)
}

type StatusResponse struct {
	GraphConnected bool     `json:"graph_connected"`
	Documents      int64    `json:"documents"`
	Domain         string   `json:"domain"`
	PersonaBackend string   `json:"persona_backend"`
	EvaluationRuns int      `json:"evaluation_runs"`
	Errors         []string `json:"errors,omitempty"`
}

// Status always answers 200; unreachable dependencies show up as fields.
func (s *Server) Status(c *gin.Context) {
	ctx := c.Request.Context()
	status := StatusResponse{Domain: s.Domain, PersonaBackend: s.PersonaBackend}

	if err := s.Graph.Ping(ctx); err != nil {
		status.Errors = append(status.Errors, "graph: "+err.Error())
	} else {
		status.GraphConnected = true
		n, err := s.Searcher.CountDocuments(ctx)
		if err != nil {
			status.Errors = append(status.Errors, "count: "+err.Error())
		}
		status.Documents = n
	}

	if s.Traces != nil {
		runs, err := s.Traces.Runs(ctx)
		if err != nil {
			status.Errors = append(status.Errors, "traces: "+err.Error())
		}
		status.EvaluationRuns = len(runs)
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) ListEvaluations(c *gin.Context) {
	if s.Traces == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Trace store not available"})
		return
	}
	runs, err := s.Traces.Runs(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list evaluations"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": nonNil(runs)})
}

func (s *Server) GetEvaluation(c *gin.Context) {
	if s.Traces == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Trace store not available"})
		return
	}
	runID := c.Param("run_id")
	traces, err := s.Traces.Run(c.Request.Context(), runID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load evaluation"})
		return
	}
	if len(traces) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Evaluation run not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run_id": runID, "traces": traces})
}

func (s *Server) listSearch(c *gin.Context, search func([]string, int) ([]model.Result, error)) {
	var terms []string
	for _, q := range c.QueryArray("q") {
		terms = append(terms, strings.Split(q, ",")...)
	}
	if len(terms) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q parameter is required"})
		return
	}
	limit, ok := limitParam(c, retrieval.DefaultSearchLimit)
	if !ok {
		return
	}
	results, err := search(terms, limit)
	if err != nil {
		searchError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": nonNil(results)})
}

func (s *Server) termSearch(c *gin.Context, search func(ctx context.Context, term string, limit int) ([]model.Result, error)) {
	term := strings.TrimSpace(c.Query("q"))
	if term == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q parameter is required"})
		return
	}
	limit, ok := limitParam(c, retrieval.DefaultSearchLimit)
	if !ok {
		return
	}
	results, err := search(c.Request.Context(), term, limit)
	if err != nil {
		searchError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": nonNil(results)})
}

func (s *Server) documentSearch(c *gin.Context, search func(ctx context.Context, id string, limit int) ([]model.Result, error)) {
	limit, ok := limitParam(c, retrieval.DefaultRelatedLimit)
	if !ok {
		return
	}
	id := c.Param("id")
	results, err := search(c.Request.Context(), id, limit)
	if err != nil {
		searchError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "results": nonNil(results)})
}

func searchError(c *gin.Context, err error) {
	if errors.Is(err, retrieval.ErrUnsupported) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	log.Error("search failed", "path", c.FullPath(), "err", err)
	c.JSON(http.StatusBadGateway, gin.H{"error": "Search failed"})
}

// limitParam reads ?limit, capped at maxLimit. It writes the 400 itself.
func limitParam(c *gin.Context, def int) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return 0, false
	}
	return min(n, maxLimit), true
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
