package evaluation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/kliewerdaniel/steinbot/internal/core/agent"
	"github.com/kliewerdaniel/steinbot/internal/core/common"
	"github.com/kliewerdaniel/steinbot/internal/core/model"
)

const (
	DefaultK       = 5
	DefaultPersona = "default"
)

// Case is one dataset entry.
type Case struct {
	Query           string   `json:"query"`
	Persona         string   `json:"persona,omitempty"`
	GroundTruthIDs  []string `json:"ground_truth_ids"`
	ReferenceAnswer string   `json:"reference_answer,omitempty"`
	// ChunkIDs is the older name for GroundTruthIDs; LoadDataset folds it in.
	ChunkIDs []string `json:"ground_truth_chunk_ids,omitempty"`
}

// LoadDataset reads either a bare JSON array of cases or an object holding
// them under "queries".
func LoadDataset(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cases []Case
	if strings.HasPrefix(strings.TrimSpace(string(data)), "[") {
		err = json.Unmarshal(data, &cases)
	} else {
		var wrapped struct {
			Queries []Case `json:"queries"`
		}
		err = json.Unmarshal(data, &wrapped)
		cases = wrapped.Queries
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse dataset %s: %w", path, err)
	}

	for i := range cases {
		if len(cases[i].GroundTruthIDs) == 0 {
			cases[i].GroundTruthIDs = cases[i].ChunkIDs
		}
		cases[i].ChunkIDs = nil
		if cases[i].Persona == "" {
			cases[i].Persona = DefaultPersona
		}
	}
	return cases, nil
}

// Responder is the part of agent.Controller the evaluator drives.
type Responder interface {
	GenerateResponse(ctx context.Context, query string, history []model.ChatMessage) agent.Response
}

// QueryAnalysis is the per-query line of a report.
type QueryAnalysis struct {
	Query          string   `json:"query"`
	Persona        string   `json:"persona"`
	RetrievedIDs   []string `json:"retrieved_ids"`
	RetrievedCount int      `json:"retrieved_count"`
	ResponseLength int      `json:"response_length"`
	QualityGrade   float64  `json:"quality_grade"`
	Precision      float64  `json:"precision"`
	Recall         float64  `json:"recall"`
	ReciprocalRank float64  `json:"mrr"`
	AvgPrecision   float64  `json:"map"`
	NDCG           float64  `json:"ndcg"`
	RougeL         float64  `json:"rouge_l"`
}

type PersonaSummary struct {
	Count        int     `json:"count"`
	Precision    float64 `json:"precision"`
	Recall       float64 `json:"recall"`
	QualityGrade float64 `json:"quality_grade"`
}

type Report struct {
	RunID      string                    `json:"run_id"`
	Dataset    string                    `json:"dataset,omitempty"`
	K          int                       `json:"k"`
	StartedAt  time.Time                 `json:"started_at"`
	FinishedAt time.Time                 `json:"finished_at"`
	Retrieval  map[string]Summary        `json:"retrieval"`
	Ranking    map[string]Summary        `json:"ranking"`
	Generation map[string]Summary        `json:"generation"`
	PerPersona map[string]PersonaSummary `json:"per_persona"`
	Queries    []QueryAnalysis           `json:"query_analyses"`
}

// Evaluator runs a dataset through a Responder and scores what it retrieved
// and generated. Traces is optional.
type Evaluator struct {
	Responder Responder
	Traces    *TraceStore
	K         int
}

func NewEvaluator(r Responder, traces *TraceStore, k int) *Evaluator {
	if k <= 0 {
		k = DefaultK
	}
	return &Evaluator{Responder: r, Traces: traces, K: k}
}

// Run evaluates cases in order. A trace that cannot be written is logged and
// skipped; only cancellation stops the run.
func (e *Evaluator) Run(ctx context.Context, cases []Case) (*Report, error) {
	report := &Report{
		RunID:      uuid.NewString(),
		K:          e.K,
		StartedAt:  time.Now().UTC(),
		PerPersona: map[string]PersonaSummary{},
		Queries:    make([]QueryAnalysis, 0, len(cases)),
	}

	for i, c := range cases {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		log.Info("evaluating query", "n", i+1, "total", len(cases), "query", common.Truncate(c.Query, 50))

		resp := e.Responder.GenerateResponse(ctx, c.Query, nil)
		qa := e.score(c, resp)
		report.Queries = append(report.Queries, qa)

		if e.Traces != nil {
			if err := e.Traces.Record(ctx, &Trace{
				RunID:        report.RunID,
				Query:        c.Query,
				Persona:      qa.Persona,
				RetrievedIDs: qa.RetrievedIDs,
				GroundTruth:  c.GroundTruthIDs,
				Response:     resp.Response,
				QualityGrade: resp.QualityGrade,
				Method:       resp.RetrievalMethod,
				Warnings:     resp.Warnings,
			}); err != nil {
				log.Warn("trace not recorded", "query", c.Query, "err", err)
			}
		}
	}

	report.aggregate()
	report.FinishedAt = time.Now().UTC()
	return report, nil
}

func (e *Evaluator) score(c Case, resp agent.Response) QueryAnalysis {
	ids := make([]string, 0, len(resp.ContextUsed))
	for _, r := range resp.ContextUsed {
		ids = append(ids, r.ID)
	}
	persona := c.Persona
	if persona == "" {
		persona = DefaultPersona
	}
	return QueryAnalysis{
		Query:          c.Query,
		Persona:        persona,
		RetrievedIDs:   ids,
		RetrievedCount: len(ids),
		ResponseLength: common.WordCount(resp.Response),
		QualityGrade:   resp.QualityGrade,
		Precision:      Precision(ids, c.GroundTruthIDs, e.K),
		Recall:         Recall(ids, c.GroundTruthIDs, e.K),
		ReciprocalRank: ReciprocalRank(ids, c.GroundTruthIDs),
		AvgPrecision:   AveragePrecision(ids, c.GroundTruthIDs),
		NDCG:           NDCG(ids, c.GroundTruthIDs, e.K),
		RougeL:         RougeL(resp.Response, c.ReferenceAnswer),
	}
}

func (r *Report) aggregate() {
	column := func(f func(QueryAnalysis) float64) []float64 {
		out := make([]float64, len(r.Queries))
		for i, q := range r.Queries {
			out[i] = f(q)
		}
		return out
	}

	r.Retrieval = map[string]Summary{
		"precision": Summarize(column(func(q QueryAnalysis) float64 { return q.Precision })),
		"recall":    Summarize(column(func(q QueryAnalysis) float64 { return q.Recall })),
	}
	r.Ranking = map[string]Summary{
		"mrr":  Summarize(column(func(q QueryAnalysis) float64 { return q.ReciprocalRank })),
		"map":  Summarize(column(func(q QueryAnalysis) float64 { return q.AvgPrecision })),
		"ndcg": Summarize(column(func(q QueryAnalysis) float64 { return q.NDCG })),
	}
	r.Generation = map[string]Summary{
		"quality_grade": Summarize(column(func(q QueryAnalysis) float64 { return q.QualityGrade })),
		"rouge_l":       Summarize(column(func(q QueryAnalysis) float64 { return q.RougeL })),
	}

	for _, q := range r.Queries {
		p := r.PerPersona[q.Persona]
		p.Count++
		p.Precision += q.Precision
		p.Recall += q.Recall
		p.QualityGrade += q.QualityGrade
		r.PerPersona[q.Persona] = p
	}
	for name, p := range r.PerPersona {
		n := float64(p.Count)
		p.Precision /= n
		p.Recall /= n
		p.QualityGrade /= n
		r.PerPersona[name] = p
	}
}

// WriteReport writes the report as indented JSON. An empty path writes
// <dir>/evaluation_<run id>.json.
func WriteReport(r *Report, dir, path string) (string, error) {
	if r == nil {
		return "", errors.New("nil report")
	}
	if path == "" {
		path = filepath.Join(dir, "evaluation_"+r.RunID+".json")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}
