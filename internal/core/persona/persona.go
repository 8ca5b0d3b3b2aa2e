package persona

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kliewerdaniel/steinbot/internal/config"
)

var ErrMalformed = errors.New("malformed persona configuration")

// Thresholds are the adaptive behaviour knobs, each kept in [0,1].
type Thresholds struct {
	RetrievalRequired     float64 `json:"retrieval_required"`
	MinimumContextOverlap float64 `json:"minimum_context_overlap"`
	FormalityLevel        float64 `json:"formality_level"`
	TechnicalDetailLevel  float64 `json:"technical_detail_level"`
	CitationRequirement   float64 `json:"citation_requirement"`
}

// Clamp pulls every threshold back into [0,1].
func (t *Thresholds) Clamp() {
	for _, v := range []*float64{
		&t.RetrievalRequired,
		&t.MinimumContextOverlap,
		&t.FormalityLevel,
		&t.TechnicalDetailLevel,
		&t.CitationRequirement,
	} {
		*v = clamp(*v)
	}
}

func (t Thresholds) Map() map[string]float64 {
	return map[string]float64{
		"retrieval_required":      t.RetrievalRequired,
		"minimum_context_overlap": t.MinimumContextOverlap,
		"formality_level":         t.FormalityLevel,
		"technical_detail_level":  t.TechnicalDetailLevel,
		"citation_requirement":    t.CitationRequirement,
	}
}

// Config is the persisted persona record.
type Config struct {
	Name                 string     `json:"name"`
	Description          string     `json:"description"`
	SystemPromptTemplate string     `json:"system_prompt_template"`
	Thresholds           Thresholds `json:"rlhf_thresholds"`
	RecentSuccessRate    float64    `json:"recent_success_rate"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.SystemPromptTemplate) == "" {
		return fmt.Errorf("%w: empty system_prompt_template", ErrMalformed)
	}
	for name, v := range c.Thresholds.Map() {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: %s=%v outside [0,1]", ErrMalformed, name, v)
		}
	}
	if c.RecentSuccessRate < 0 || c.RecentSuccessRate > 1 {
		return fmt.Errorf("%w: recent_success_rate=%v outside [0,1]", ErrMalformed, c.RecentSuccessRate)
	}
	return nil
}

// Decode parses and validates a stored record.
func Decode(data []byte) (Config, error) {
	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func Encode(c Config) ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

const promptRules = `

When answering questions:
%s

Available context from %s:
{context}

Question: {query}`

// Default returns the documented starting persona for a domain.
func Default(domain string) (Config, error) {
	base := Thresholds{
		RetrievalRequired:     0.6,
		MinimumContextOverlap: 0.3,
	}
	switch domain {
	case config.DomainPapers:
		base.FormalityLevel, base.TechnicalDetailLevel, base.CitationRequirement = 0.7, 0.8, 0.9
		return Config{
			Name:        "Research Assistant",
			Description: "A helpful academic research assistant with access to paper database",
			SystemPromptTemplate: `You are a research assistant helping with academic and technical queries.
You have access to a database of research papers and can retrieve relevant information to provide accurate, well-supported answers.` +
				fmt.Sprintf(promptRules, `1. Always cite specific papers and authors when making claims
2. Be precise and factual - avoid speculation
3. Explain technical concepts clearly
4. If you don't have enough information, say so rather than guessing
5. Organize your responses with clear structure when appropriate`, "research papers"),
			Thresholds:        base,
			RecentSuccessRate: 0.8,
		}, nil
	case config.DomainReddit:
		base.FormalityLevel, base.TechnicalDetailLevel, base.CitationRequirement = 0.6, 0.7, 0.8
		return Config{
			Name:        "Reddit Research Assistant",
			Description: "A helpful assistant that analyzes Reddit discussions and conversations",
			SystemPromptTemplate: `You are a Reddit research assistant analyzing online discussions and conversations.
You have access to a database of Reddit comments and posts and can retrieve relevant discussions to provide insights.` +
				fmt.Sprintf(promptRules, `1. Always cite specific Reddit users, subreddits, and discussion contexts
2. Be balanced and represent different viewpoints from the discussions
3. Explain concepts based on community discussions
4. If you don't have enough information from discussions, say so
5. Organize your responses with clear structure when appropriate`, "Reddit discussions"),
			Thresholds:        base,
			RecentSuccessRate: 0.8,
		}, nil
	case config.DomainDocuments:
		base.FormalityLevel, base.TechnicalDetailLevel, base.CitationRequirement = 0.7, 0.7, 0.8
		return Config{
			Name:        "Document Research Assistant",
			Description: "A helpful assistant that analyzes documents and provides insights from document collections",
			SystemPromptTemplate: `You are a Document Research Assistant analyzing a collection of documents and text content.
You have access to a database of document content and can retrieve relevant information from document collections.` +
				fmt.Sprintf(promptRules, `1. Always cite specific document filenames and content summaries when relevant
2. Be thorough and comprehensive in your analysis
3. Explain concepts based on document evidence
4. If you don't have enough information from documents, say so
5. Organize your responses with clear structure when appropriate`, "documents"),
			Thresholds:        base,
			RecentSuccessRate: 0.8,
		}, nil
	}
	return Config{}, fmt.Errorf("no default persona for domain %q", domain)
}
