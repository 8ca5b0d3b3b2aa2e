//go:build integration

package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kliewerdaniel/steinbot/internal/core/agent"
	"github.com/kliewerdaniel/steinbot/internal/core/model"
	"github.com/kliewerdaniel/steinbot/internal/evaluation"
)

func TestGenerateResponse(t *testing.T) {
	a, prefix := newApp(t, "documents")
	ctx := context.Background()

	_, err := a.Builder.IngestAll(ctx, []model.SourceDocument{
		{ID: prefix + "policy.txt", Content: "Remote work policy: employees may work remotely three days per week with manager approval."},
	})
	require.NoError(t, err)

	resp := a.Controller.GenerateResponse(ctx, "What does the remote work policy document say?", nil)

	assert.True(t, resp.RetrievalPerformed)
	assert.Equal(t, agent.ReasonDomainKeyword, resp.Decision.Reason)
	assert.NotEmpty(t, resp.Response)
	assert.GreaterOrEqual(t, resp.QualityGrade, 0.0)
	assert.LessOrEqual(t, resp.QualityGrade, 1.0)

	after, err := a.Persona.Load(ctx)
	require.NoError(t, err)
	for name, v := range after.Thresholds.Map() {
		assert.True(t, v >= 0 && v <= 1, "%s out of range: %v", name, v)
	}
}

func TestEvaluate(t *testing.T) {
	a, prefix := newApp(t, "documents")
	ctx := context.Background()

	_, err := a.Builder.IngestAll(ctx, []model.SourceDocument{
		{ID: prefix + "onboarding.txt", Content: "Onboarding checklist: laptop setup, security training, and meeting the team lead."},
	})
	require.NoError(t, err)

	e, err := a.Evaluator()
	require.NoError(t, err)
	report, err := e.Run(ctx, []evaluation.Case{{
		Query:          "What is on the onboarding checklist document?",
		Persona:        "new hire",
		GroundTruthIDs: []string{prefix + "onboarding.txt"},
	}})
	require.NoError(t, err)

	require.Len(t, report.Queries, 1)
	assert.Equal(t, 1, report.PerPersona["new hire"].Count)

	traces, err := a.Traces()
	require.NoError(t, err)
	stored, err := traces.Run(ctx, report.RunID)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}
