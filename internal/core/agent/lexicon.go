package agent

import (
	"fmt"
	"strings"

	"github.com/kliewerdaniel/steinbot/internal/config"
	"github.com/kliewerdaniel/steinbot/internal/core/common"
	"github.com/kliewerdaniel/steinbot/internal/core/model"
)

// Modifier is the pair of sentences appended when a threshold crosses its
// high or low cut point.
type Modifier struct {
	High string
	Low  string
}

// Lexicon carries the domain vocabulary of a controller: the retrieval
// decision terms, the prompt phrasing and the grading rubric.
type Lexicon struct {
	Domain string
	// Keywords are matched as substrings of the lowercased query.
	Keywords []string
	// QuestionTerms are matched on word boundaries.
	QuestionTerms []string
	NoContext     string

	Formality Modifier
	Technical Modifier
	Citation  Modifier

	Rubric Rubric
	// Entry renders one context result; i is 1-based.
	Entry func(i int, r model.Result) string
}

// Rubric holds the heuristic grading constants of a domain.
type Rubric struct {
	// Mentions counts context identifiers that appear in the lowercased response.
	Mentions     func(response string, context []model.Result) int
	MentionScore float64
	MentionCap   float64
	Phrases      []string
	PhraseBonus  float64
	TargetWords  int
	MinWords     int
	MaxWords     int
}

func PapersLexicon() Lexicon {
	return Lexicon{
		Domain: config.DomainPapers,
		Keywords: []string{
			"paper", "research", "study", "findings", "methodolog",
			"algorithm", "experiment", "results", "technique",
			"approach", "framework", "model", "analysis",
		},
		QuestionTerms: []string{"what", "how", "why", "compare", "similar", "different"},
		NoContext:     "No specific research context available.",
		Formality: Modifier{
			High: "Use academic, formal language with proper citations.",
			Low:  "Use conversational language and explain concepts simply.",
		},
		Technical: Modifier{
			High: "Include technical details and methodology information when relevant.",
			Low:  "Focus on high-level concepts and avoid deep technical details.",
		},
		Citation: Modifier{
			High: "ALWAYS cite specific papers, authors, and years when making factual claims.",
			Low:  "You can provide general information without requiring specific citations.",
		},
		Rubric: Rubric{
			Mentions: func(response string, context []model.Result) int {
				return countMentions(response, context, func(r model.Result) []string { return []string{r.ID} })
			},
			MentionScore: 0.3,
			MentionCap:   0.8,
			Phrases:      []string{"according to", "as stated in", "research shows", "study found", "paper demonstrates"},
			PhraseBonus:  0.2,
			TargetWords:  200,
			MinWords:     50,
			MaxWords:     500,
		},
		Entry: paperEntry,
	}
}

func RedditLexicon() Lexicon {
	return Lexicon{
		Domain: config.DomainReddit,
		Keywords: []string{
			"reddit", "discussion", "opinion", "people think", "community",
			"thread", "comment", "post", "subreddit", "r/", "users say",
		},
		QuestionTerms: []string{"what do", "how do", "why do", "compare", "similar", "different"},
		NoContext:     "No specific Reddit discussion context available.",
		Formality: Modifier{
			High: "Use formal, analytical language when discussing Reddit discussions.",
			Low:  "Use conversational language similar to Reddit discussions.",
		},
		Technical: Modifier{
			High: "Include detailed analysis of discussion patterns and user behavior when relevant.",
			Low:  "Focus on summarizing general opinions and trends.",
		},
		Citation: Modifier{
			High: "ALWAYS cite specific Reddit users, subreddits, and discussion links when making claims.",
			Low:  "You can provide general summaries without requiring specific citations.",
		},
		Rubric: Rubric{
			Mentions: func(response string, context []model.Result) int {
				return countMentions(response, context, func(r model.Result) []string { return []string{r.Author} }) +
					countMentions(response, context, func(r model.Result) []string {
						if r.Container == "" {
							return nil
						}
						return []string{"r/" + r.Container}
					})
			},
			MentionScore: 0.2,
			MentionCap:   0.7,
			Phrases:      []string{"discussion shows", "people think", "community believes", "reddit users", "based on comments"},
			PhraseBonus:  0.3,
			TargetWords:  150,
			MinWords:     30,
			MaxWords:     400,
		},
		Entry: redditEntry,
	}
}

func DocumentsLexicon() Lexicon {
	return Lexicon{
		Domain: config.DomainDocuments,
		Keywords: []string{
			"document", "summary", "content", "file", "report", "analysis",
			"what does", "how does", "why does", "explain", "describe",
		},
		QuestionTerms: []string{"what is", "how do", "why do", "compare", "similar", "different"},
		NoContext:     "No specific document context available.",
		Formality: Modifier{
			High: "Use formal, analytical language when discussing documents.",
			Low:  "Use conversational language when summarizing document content.",
		},
		Technical: Modifier{
			High: "Include detailed content analysis and cross-references when relevant.",
			Low:  "Focus on providing clear summaries of document content.",
		},
		Citation: Modifier{
			High: "ALWAYS cite specific document filenames and provide context for claims.",
			Low:  "You can provide general summaries without requiring specific citations.",
		},
		Rubric: Rubric{
			Mentions: func(response string, context []model.Result) int {
				return countMentions(response, context, func(r model.Result) []string { return []string{r.ID} })
			},
			MentionScore: 0.3,
			MentionCap:   0.7,
			Phrases: []string{
				"according to the document", "the document states", "as shown in", "based on the content",
				"the summary shows", "document analysis", "content review",
			},
			PhraseBonus: 0.3,
			TargetWords: 150,
			MinWords:    30,
			MaxWords:    500,
		},
		Entry: documentEntry,
	}
}

func LexiconFor(domain string) (Lexicon, error) {
	switch domain {
	case config.DomainPapers:
		return PapersLexicon(), nil
	case config.DomainReddit:
		return RedditLexicon(), nil
	case config.DomainDocuments:
		return DocumentsLexicon(), nil
	}
	return Lexicon{}, fmt.Errorf("unknown domain %q", domain)
}

// countMentions counts results whose identifiers occur in response. Each
// result counts at most once per call; empty identifiers never match.
func countMentions(response string, context []model.Result, keys func(model.Result) []string) int {
	lower := strings.ToLower(response)
	n := 0
	for _, r := range context {
		for _, k := range keys(r) {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" && strings.Contains(lower, k) {
				n++
				break
			}
		}
	}
	return n
}

func joinFirst(values []string, n int) string {
	if len(values) > n {
		values = values[:n]
	}
	return strings.Join(values, ", ")
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func excerpt(r model.Result, n int) string {
	text := r.Preview
	if text == "" {
		text = r.Content
	}
	return common.Prefix(text, n)
}

func paperEntry(i int, r model.Result) string {
	authors := "Unknown"
	if len(r.Authors) > 0 {
		authors = strings.Join(r.Authors, ", ")
	}
	year := "Unknown"
	if r.Year != nil {
		year = fmt.Sprint(*r.Year)
	}
	abstract := common.Prefix(r.Content, 300)
	if abstract == "" {
		abstract = "No abstract available"
	}
	return fmt.Sprintf("Paper %d: %q\nAuthors: %s\nYear: %s\nAbstract: %s...\nConcepts: %s\nRetrieval Score: %.3f",
		i, r.ID, authors, year, abstract, joinFirst(r.Topics, 3), r.Score)
}

func redditEntry(i int, r model.Result) string {
	var score int64
	if r.ProvenanceScore != nil {
		score = *r.ProvenanceScore
	}
	created := "Unknown"
	if r.CreatedAt != nil {
		created = fmt.Sprint(*r.CreatedAt)
	}
	return fmt.Sprintf("Reddit Discussion %d:\nUser: %s\nSubreddit: r/%s\nScore: %d\nCreated: %s\nTopics: %s\nContent: %s\nRetrieval Method: %s",
		i, orUnknown(r.Author), orUnknown(r.Container), score, created, joinFirst(r.Topics, 3), excerpt(r, 400), r.Strategy)
}

func documentEntry(i int, r model.Result) string {
	summary := r.Summary
	if summary == "" {
		summary = "No summary available"
	}
	return fmt.Sprintf("Document %d:\nFilename: %s\nType: %s\nSummary: %s\nContent: %s\nTopics: %s\nEntities: %s\nRetrieval Method: %s",
		i, r.ID, orUnknown(r.DocumentType), summary, excerpt(r, 400), joinFirst(r.Topics, 3), joinFirst(r.Entities, 3), r.Strategy)
}
