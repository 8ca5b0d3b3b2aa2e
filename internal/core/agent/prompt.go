package agent

import (
	"strings"

	"github.com/kliewerdaniel/steinbot/internal/core/model"
	"github.com/kliewerdaniel/steinbot/internal/core/persona"
)

const (
	DefaultHistoryWindow = 6

	formalityHigh = 0.7
	formalityLow  = 0.4
	technicalHigh = 0.8
	technicalLow  = 0.5
	citationHigh  = 0.8
	citationLow   = 0.5
)

// FormatContext renders the retrieved results as numbered context blocks.
func (l Lexicon) FormatContext(results []model.Result) string {
	if len(results) == 0 || l.Entry == nil {
		return ""
	}
	blocks := make([]string, len(results))
	for i, r := range results {
		blocks[i] = l.Entry(i+1, r)
	}
	return strings.Join(blocks, "\n\n")
}

// FormatHistory renders the last window messages as "User:"/"Assistant:" lines.
func FormatHistory(history []model.ChatMessage, window int) string {
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	if len(history) > window {
		history = history[len(history)-window:]
	}
	lines := make([]string, 0, len(history))
	for _, msg := range history {
		prefix := "Assistant: "
		if msg.Role == model.RoleUser {
			prefix = "User: "
		}
		lines = append(lines, prefix+msg.Content)
	}
	return strings.Join(lines, "\n")
}

// BuildSystemPrompt colours the persona template with context, history and
// the behaviour modifiers selected by the current thresholds.
func (l Lexicon) BuildSystemPrompt(p persona.Config, context, query string, history []model.ChatMessage, window int) string {
	var b strings.Builder

	template := p.SystemPromptTemplate
	if context == "" {
		context = l.NoContext
	}
	hasQuery := strings.Contains(template, "{query}")
	template = strings.ReplaceAll(template, "{context}", context)
	if hasQuery {
		template = strings.ReplaceAll(template, "{query}", query)
	}
	b.WriteString(template)
	if !hasQuery {
		b.WriteString("\n\nQuestion: ")
		b.WriteString(query)
	}

	if h := FormatHistory(history, window); h != "" {
		b.WriteString("\n\nPrevious conversation:\n")
		b.WriteString(h)
		b.WriteString("\n\nPlease continue this conversation naturally.")
	}

	t := p.Thresholds
	for _, m := range []string{
		pick(l.Formality, t.FormalityLevel, formalityHigh, formalityLow),
		pick(l.Technical, t.TechnicalDetailLevel, technicalHigh, technicalLow),
		pick(l.Citation, t.CitationRequirement, citationHigh, citationLow),
	} {
		if m != "" {
			b.WriteString("\n\n")
			b.WriteString(m)
		}
	}
	return b.String()
}

func pick(m Modifier, v, high, low float64) string {
	switch {
	case v > high:
		return m.High
	case v < low:
		return m.Low
	}
	return ""
}
