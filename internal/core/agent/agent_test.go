package agent

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kliewerdaniel/steinbot/internal/config"
	"github.com/kliewerdaniel/steinbot/internal/core/model"
	"github.com/kliewerdaniel/steinbot/internal/core/persona"
	"github.com/kliewerdaniel/steinbot/internal/core/retrieval"
)

func defaultPersona(t *testing.T, domain string) persona.Config {
	t.Helper()
	p, err := persona.Default(domain)
	require.NoError(t, err)
	return p
}

func TestDecide_DomainKeyword(t *testing.T) {
	p := defaultPersona(t, config.DomainDocuments)
	p.Thresholds.RetrievalRequired = 0

	d := Decide("Give me the quarterly report", p, DocumentsLexicon(), true)

	assert.True(t, d.NeedsContext)
	assert.True(t, d.DomainKeyword)
	assert.Equal(t, ReasonDomainKeyword, d.Reason)
}

func TestDecide_QuestionKeywordWholeWords(t *testing.T) {
	p := defaultPersona(t, config.DomainPapers)
	lex := PapersLexicon()

	d := Decide("What is attention?", p, lex, true)
	assert.True(t, d.QuestionKeyword)
	assert.Equal(t, ReasonQuestionKeyword, d.Reason)

	d = Decide("somewhat showy", p, lex, true)
	assert.False(t, d.QuestionKeyword)
	assert.False(t, d.NeedsContext)
	assert.Equal(t, ReasonNone, d.Reason)
}

func TestDecide_QuestionPhrases(t *testing.T) {
	p := defaultPersona(t, config.DomainReddit)
	lex := RedditLexicon()

	assert.True(t, Decide("what do you recommend for lunch", p, lex, true).QuestionKeyword)
	assert.False(t, Decide("what donuts are best", p, lex, true).QuestionKeyword)
}

func TestDecide_ThresholdBranch(t *testing.T) {
	p := defaultPersona(t, config.DomainDocuments)

	d := Decide("hello there", p, DocumentsLexicon(), false)
	assert.True(t, d.NeedsContext)
	assert.Equal(t, ReasonThreshold, d.Reason)
	assert.InDelta(t, 0.6, d.AdjustedThreshold, 1e-9)

	// low success rate discounts 0.6 to 0.48
	p.RecentSuccessRate = 0.5
	d = Decide("hello there", p, DocumentsLexicon(), false)
	assert.False(t, d.NeedsContext)
	assert.InDelta(t, 0.48, d.AdjustedThreshold, 1e-9)

	p.RecentSuccessRate = 0.9
	d = Decide("hello there", p, DocumentsLexicon(), true)
	assert.False(t, d.NeedsContext)
	assert.Equal(t, ReasonNone, d.Reason)
}

func TestBuildSystemPrompt(t *testing.T) {
	lex := PapersLexicon()
	p := defaultPersona(t, config.DomainPapers)

	prompt := lex.BuildSystemPrompt(p, "", "what is attention", nil, 6)

	assert.Contains(t, prompt, lex.NoContext)
	assert.Contains(t, prompt, "Question: what is attention")
	assert.NotContains(t, prompt, "{context}")
	assert.NotContains(t, prompt, "{query}")
	// 0.7 and 0.8 sit on the cut points, only citation (0.9) fires
	assert.NotContains(t, prompt, lex.Formality.High)
	assert.NotContains(t, prompt, lex.Technical.High)
	assert.True(t, strings.HasSuffix(prompt, lex.Citation.High))
}

func TestBuildSystemPrompt_AppendsQueryAndModifiers(t *testing.T) {
	lex := DocumentsLexicon()
	p := persona.Config{
		SystemPromptTemplate: "Context:\n{context}",
		Thresholds: persona.Thresholds{
			FormalityLevel:       0.2,
			TechnicalDetailLevel: 0.9,
			CitationRequirement:  0.1,
		},
	}

	prompt := lex.BuildSystemPrompt(p, "Document 1: a.txt", "summarize a.txt", nil, 6)

	assert.Equal(t, "Context:\nDocument 1: a.txt\n\nQuestion: summarize a.txt\n\n"+
		lex.Formality.Low+"\n\n"+lex.Technical.High+"\n\n"+lex.Citation.Low, prompt)
}

func TestBuildSystemPrompt_History(t *testing.T) {
	lex := RedditLexicon()
	p := persona.Config{SystemPromptTemplate: "{context} {query}", Thresholds: persona.Thresholds{
		FormalityLevel: 0.5, TechnicalDetailLevel: 0.6, CitationRequirement: 0.6,
	}}
	var history []model.ChatMessage
	for i := 0; i < 8; i++ {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		history = append(history, model.ChatMessage{Role: role, Content: string(rune('a' + i))})
	}

	prompt := lex.BuildSystemPrompt(p, "ctx", "q", history, 6)

	assert.Equal(t, "ctx q\n\nPrevious conversation:\nUser: c\nAssistant: d\nUser: e\nAssistant: f\nUser: g\nAssistant: h"+
		"\n\nPlease continue this conversation naturally.", prompt)
}

func TestFormatContext(t *testing.T) {
	year := int64(2017)
	out := PapersLexicon().FormatContext([]model.Result{{
		ID:      "Attention Is All You Need",
		Content: "We propose the Transformer.",
		Authors: []string{"Vaswani", "Shazeer"},
		Year:    &year,
		Topics:  []string{"attention", "transformers", "nlp", "extra"},
		Score:   0.91234,
	}})

	assert.Equal(t, "Paper 1: \"Attention Is All You Need\"\nAuthors: Vaswani, Shazeer\nYear: 2017\n"+
		"Abstract: We propose the Transformer....\nConcepts: attention, transformers, nlp\nRetrieval Score: 0.912", out)

	reddit := RedditLexicon().FormatContext([]model.Result{{ID: "t3_x", Author: "alice", Container: "golang", Preview: "go is fun", Strategy: model.StrategyVector}})
	assert.Contains(t, reddit, "User: alice\nSubreddit: r/golang")
	assert.Contains(t, reddit, "Retrieval Method: vector_search")

	assert.Empty(t, DocumentsLexicon().FormatContext(nil))
}

func TestGrade_TooShort(t *testing.T) {
	g := NewHeuristicGrader(PapersLexicon())
	context := []model.Result{{ID: "x"}}

	assert.Equal(t, TooShortGrade, g.Grade("q", "", context))
	assert.Equal(t, TooShortGrade, g.Grade("q", "  ok  fine \n", context))
	assert.Equal(t, TooShortGrade, g.Grade("q", "123456789", nil))
}

func TestGrade_DocumentsExample(t *testing.T) {
	g := NewHeuristicGrader(DocumentsLexicon())
	response := "According to the document report.pdf, revenue grew.\n\n- point one"

	assert.InDelta(t, 0.6, g.Insight(response, []model.Result{{ID: "report.pdf"}}), 1e-9)
	assert.InDelta(t, 0.8, g.Structure(response), 1e-9)
	assert.InDelta(t, 0.3+0.3*10.0/150+0.2*0.8, g.Grade("q", response, []model.Result{{ID: "report.pdf"}}), 1e-9)
}

func TestGrade_NoContextBaseline(t *testing.T) {
	g := NewHeuristicGrader(RedditLexicon())
	response := strings.Repeat("word ", 150)

	assert.Equal(t, NoContextInsight, g.Insight(response, nil))
	// 0.5*0.3 + 0.3*1 + 0.2*0.7
	assert.InDelta(t, 0.59, g.Grade("q", response, nil), 1e-9)
}

func TestGrade_RedditMentions(t *testing.T) {
	g := NewHeuristicGrader(RedditLexicon())
	context := []model.Result{
		{ID: "1", Author: "alice", Container: "golang"},
		{ID: "2", Author: "bob", Container: "rust"},
	}

	// alice + r/golang + bob = 0.6, plus the phrase bonus
	insight := g.Insight("Alice in r/golang and Bob agree; people think so.", context)
	assert.InDelta(t, 0.9, insight, 1e-9)

	// capped at 0.7 before the bonus
	many := []model.Result{
		{Author: "a1", Container: "s1"}, {Author: "a2", Container: "s2"},
	}
	assert.InDelta(t, 0.7, g.Insight("a1 a2 r/s1 r/s2", many), 1e-9)
}

func TestGrade_Bounded(t *testing.T) {
	lexicons := []Lexicon{PapersLexicon(), RedditLexicon(), DocumentsLexicon()}
	rapid.Check(t, func(t *rapid.T) {
		lex := rapid.SampledFrom(lexicons).Draw(t, "lexicon")
		response := rapid.StringMatching(`[a-z \n\-.1/]{0,400}`).Draw(t, "response")
		context := []model.Result{{ID: "a", Author: "a", Container: "a"}}

		grade := NewHeuristicGrader(lex).Grade("q", response, context)
		if grade < 0 || grade > 1 {
			t.Fatalf("grade %v out of range", grade)
		}
	})
}

func TestApplyGrade(t *testing.T) {
	p := defaultPersona(t, config.DomainPapers)

	low := p
	ApplyGrade(&low, 0.3)
	assert.InDelta(t, 0.65, low.Thresholds.RetrievalRequired, 1e-9)
	assert.InDelta(t, 0.95, low.Thresholds.CitationRequirement, 1e-9)
	assert.InDelta(t, 0.78, low.Thresholds.TechnicalDetailLevel, 1e-9)
	assert.InDelta(t, 0.72, low.RecentSuccessRate, 1e-9)

	high := p
	ApplyGrade(&high, 0.9)
	assert.InDelta(t, 0.58, high.Thresholds.RetrievalRequired, 1e-9)
	assert.InDelta(t, 0.69, high.Thresholds.FormalityLevel, 1e-9)
	assert.InDelta(t, 0.82, high.RecentSuccessRate, 1e-9)

	mid := p
	ApplyGrade(&mid, 0.7)
	assert.Equal(t, p.Thresholds, mid.Thresholds)
	assert.InDelta(t, 0.82, mid.RecentSuccessRate, 1e-9)
}

func TestApplyGrade_StaysInRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p, _ := persona.Default(config.DomainPapers)
		grades := rapid.SliceOfN(rapid.Float64Range(0, 1), 1, 200).Draw(t, "grades")
		for _, g := range grades {
			ApplyGrade(&p, g)
			for name, v := range p.Thresholds.Map() {
				if v < 0 || v > 1 {
					t.Fatalf("%s=%v", name, v)
				}
			}
			if p.RecentSuccessRate < 0 || p.RecentSuccessRate > 1 {
				t.Fatalf("success rate %v", p.RecentSuccessRate)
			}
		}
	})
}

func newTestController(t *testing.T, domain string, client *MockLLM, r ContextRetriever) (*Controller, *persona.FileStore) {
	t.Helper()
	store, err := persona.NewFileStore(filepath.Join(t.TempDir(), "persona.json"), domain)
	require.NoError(t, err)
	lex, err := LexiconFor(domain)
	require.NoError(t, err)
	return NewController(client, r, store, lex, nil, Options{}), store
}

func TestGenerateResponse_EmptyGraph(t *testing.T) {
	client := &MockLLM{Response: strings.Repeat("word ", 150)}
	retriever := &MockRetriever{}
	c, store := newTestController(t, config.DomainDocuments, client, retriever)

	out := c.GenerateResponse(context.Background(), "anything", nil)

	assert.True(t, out.RetrievalPerformed)
	assert.NotNil(t, out.ContextUsed)
	assert.Empty(t, out.ContextUsed)
	assert.Empty(t, out.RetrievalMethod)
	assert.Equal(t, []int{DefaultFanOut}, retriever.Limits)
	// 0.5*0.3 + 0.3*1 + 0.2*0.7
	assert.InDelta(t, 0.59, out.QualityGrade, 1e-9)

	require.Len(t, client.Requests, 1)
	assert.Equal(t, "anything", client.Requests[0].Prompt)
	assert.Contains(t, client.Requests[0].System, DocumentsLexicon().NoContext)

	p, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0.1*0+0.9*0.8, p.RecentSuccessRate, 1e-9)
}

func TestGenerateResponse_WithContext(t *testing.T) {
	client := &MockLLM{Response: "According to the document report.pdf the plan is on track."}
	retriever := &MockRetriever{Retrieval: retrieval.Retrieval{Results: []model.Result{
		{ID: "report.pdf", Strategy: model.StrategyVector, Summary: "Q3 plan"},
		{ID: "notes.txt", Strategy: model.StrategyTopicExpansion},
	}}}
	c, _ := newTestController(t, config.DomainDocuments, client, retriever)

	out := c.GenerateResponse(context.Background(), "summarize the report", nil)

	assert.Equal(t, ReasonDomainKeyword, out.Decision.Reason)
	assert.Equal(t, string(model.StrategyVector), out.RetrievalMethod)
	assert.Len(t, out.ContextUsed, 2)
	assert.Contains(t, client.Requests[0].System, "Filename: report.pdf")
	assert.Contains(t, client.Requests[0].System, "Summary: Q3 plan")
	assert.Empty(t, out.Warnings)
}

func TestGenerateResponse_SkipsRetrieval(t *testing.T) {
	client := &MockLLM{Response: "hi there, nice to meet you"}
	retriever := &MockRetriever{}
	c, _ := newTestController(t, config.DomainPapers, client, retriever)
	c.Options.StrictKeywordGate = true

	out := c.GenerateResponse(context.Background(), "hello friend", nil)

	assert.False(t, out.RetrievalPerformed)
	assert.Empty(t, retriever.Queries)
}

func TestGenerateResponse_GenerationFailure(t *testing.T) {
	client := &MockLLM{Err: errors.New("connection refused")}
	c, store := newTestController(t, config.DomainPapers, client, &MockRetriever{})

	out := c.GenerateResponse(context.Background(), "what is a transformer", nil)

	assert.Equal(t, Apology, out.Response)
	assert.Less(t, out.QualityGrade, LowGrade)
	require.NotEmpty(t, out.Warnings)
	assert.Contains(t, out.Warnings[0], "connection refused")

	p, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0.65, p.Thresholds.RetrievalRequired, 1e-9)
	assert.InDelta(t, 0.95, p.Thresholds.CitationRequirement, 1e-9)
}

func TestGenerateResponse_RetrievalDegraded(t *testing.T) {
	client := &MockLLM{Response: "a short but valid answer"}
	retriever := &MockRetriever{Retrieval: retrieval.Retrieval{
		Degraded: []retrieval.StageError{{Stage: retrieval.StageEmbedding, Err: errors.New("embed down")}},
	}}
	c, _ := newTestController(t, config.DomainReddit, client, retriever)

	out := c.GenerateResponse(context.Background(), "what do people think of go", nil)

	assert.True(t, out.RetrievalPerformed)
	assert.Empty(t, out.ContextUsed)
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], "embed down")
}

func TestGenerateResponse_StoreFailure(t *testing.T) {
	client := &MockLLM{Response: "an answer that is long enough"}
	c := NewController(client, &MockRetriever{}, BrokenStore{}, PapersLexicon(), nil, Options{})

	out := c.GenerateResponse(context.Background(), "how does it work", nil)

	assert.Equal(t, "an answer that is long enough", out.Response)
	// defaults were used for the decision
	assert.Equal(t, ReasonQuestionKeyword, out.Decision.Reason)
	assert.Len(t, out.Warnings, 2)
}
