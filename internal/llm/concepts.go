package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
)

const fallbackConceptCount = 3

// ConceptExtractor asks the model for the key concepts of a search query.
type ConceptExtractor struct {
	LLM LLMClient
	// Subject names the collection in the prompt, e.g. "document search".
	Subject string
}

func NewConceptExtractor(client LLMClient, subject string) *ConceptExtractor {
	return &ConceptExtractor{LLM: client, Subject: subject}
}

// Extract never fails: on a provider error or an empty answer it returns the
// first three words of the query.
func (e *ConceptExtractor) Extract(ctx context.Context, query string) []string {
	prompt := fmt.Sprintf("Extract 3-5 key concepts from this %s query: %s. Return as comma-separated list.", e.Subject, query)

	resp, err := e.LLM.Generate(ctx, Request{Prompt: prompt, Temperature: Temperature(0.1)})
	if err != nil {
		log.Warn("concept extraction failed, using query words", "err", err)
		return firstWords(query, fallbackConceptCount)
	}

	concepts := parseConcepts(resp)
	if len(concepts) == 0 {
		return firstWords(query, fallbackConceptCount)
	}
	return concepts
}

func parseConcepts(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '\n' })
	var out []string
	for _, p := range parts {
		c := strings.Trim(strings.TrimSpace(p), `-*•."'`)
		c = strings.TrimSpace(c)
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

func firstWords(s string, n int) []string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[:n]
	}
	return words
}
