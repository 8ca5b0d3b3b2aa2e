package extraction

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/kliewerdaniel/steinbot/internal/core/common"
	"github.com/kliewerdaniel/steinbot/internal/core/model"
	"github.com/kliewerdaniel/steinbot/internal/llm"
)

// DefaultPrompt takes the document identifier and a content excerpt.
const DefaultPrompt = `Analyze this document and extract the following information:
- Main topics discussed (2-4 key concepts)
- Key entities mentioned (people, organizations, technologies, etc.)
- Document type (report, testimony, article, etc.)
- Content summary (1-2 sentences)

Document: %s
Content: %s...

Return as JSON with keys: topics, entities, document_type, summary`

const (
	promptExcerptLength  = 1500
	fallbackSummaryChars = 200
	fallbackTopic        = "document"
)

type Extractor struct {
	LLM    llm.LLMClient
	Prompt string
}

func NewExtractor(llmClient llm.LLMClient, prompt string) *Extractor {
	if prompt == "" {
		prompt = DefaultPrompt
	}
	return &Extractor{
		LLM:    llmClient,
		Prompt: prompt,
	}
}

// Extract asks the model for topics, entities, type and summary of content.
func (e *Extractor) Extract(ctx context.Context, id, content string) (model.Extraction, error) {
	prompt := fmt.Sprintf(e.Prompt, id, common.Prefix(content, promptExcerptLength))

	response, err := e.LLM.Generate(ctx, llm.Request{Prompt: prompt, JSON: true})
	if err != nil {
		return model.Extraction{}, fmt.Errorf("failed to generate extraction: %w", err)
	}

	result, err := common.ParseJSON[model.Extraction](response)
	if err != nil {
		return model.Extraction{}, fmt.Errorf("failed to parse extraction: %w", err)
	}

	return normalize(result, content), nil
}

// ExtractOrFallback never fails; a provider or parse error yields Fallback.
func (e *Extractor) ExtractOrFallback(ctx context.Context, id, content string) model.Extraction {
	if e == nil || e.LLM == nil {
		return Fallback(content)
	}
	x, err := e.Extract(ctx, id, content)
	if err != nil {
		log.Warn("extraction failed, using fallback", "id", id, "err", err)
		return Fallback(content)
	}
	return x
}

// Fallback is the extraction used when the model is unavailable.
func Fallback(content string) model.Extraction {
	return model.Extraction{
		Topics:       []string{fallbackTopic},
		Entities:     []model.ExtractedEntity{},
		DocumentType: model.DefaultEntityType,
		Summary:      common.Truncate(content, fallbackSummaryChars),
	}
}

func normalize(x model.Extraction, content string) model.Extraction {
	topics := make([]string, 0, len(x.Topics))
	seen := make(map[string]struct{})
	for _, t := range x.Topics {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		topics = append(topics, t)
	}
	x.Topics = topics

	entities := make([]model.ExtractedEntity, 0, len(x.Entities))
	for _, ent := range x.Entities {
		if ent.Name != "" {
			entities = append(entities, ent)
		}
	}
	x.Entities = entities

	x.DocumentType = strings.ToLower(strings.TrimSpace(x.DocumentType))
	if x.DocumentType == "" {
		x.DocumentType = model.DefaultEntityType
	}
	if strings.TrimSpace(x.Summary) == "" {
		x.Summary = common.Truncate(content, fallbackSummaryChars)
	}
	return x
}
