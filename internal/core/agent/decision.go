package agent

import (
	"strings"
	"unicode"

	"github.com/kliewerdaniel/steinbot/internal/core/persona"
)

const (
	ReasonDomainKeyword   = "domain_keyword"
	ReasonQuestionKeyword = "question_keyword"
	ReasonThreshold       = "threshold"
	ReasonNone            = "none"

	lowSuccessRate     = 0.7
	lowSuccessDiscount = 0.8
	thresholdCutoff    = 0.5
)

// Decision explains whether a query gets retrieved context.
type Decision struct {
	NeedsContext      bool    `json:"needs_context"`
	DomainKeyword     bool    `json:"domain_keyword"`
	QuestionKeyword   bool    `json:"question_keyword"`
	AdjustedThreshold float64 `json:"adjusted_threshold"`
	// Reason is the first signal that fired, or "none".
	Reason string `json:"reason"`
}

// Decide applies the retrieval decision. Without strict gating a persona whose
// adjusted retrieval_required exceeds 0.5 retrieves for every query.
func Decide(query string, p persona.Config, lex Lexicon, strict bool) Decision {
	lower := strings.ToLower(query)
	d := Decision{
		DomainKeyword:   containsAny(lower, lex.Keywords),
		QuestionKeyword: containsPhrase(words(lower), lex.QuestionTerms),
	}

	d.AdjustedThreshold = p.Thresholds.RetrievalRequired
	if p.RecentSuccessRate < lowSuccessRate {
		d.AdjustedThreshold *= lowSuccessDiscount
	}

	switch {
	case d.DomainKeyword:
		d.NeedsContext, d.Reason = true, ReasonDomainKeyword
	case d.QuestionKeyword:
		d.NeedsContext, d.Reason = true, ReasonQuestionKeyword
	case !strict && d.AdjustedThreshold > thresholdCutoff:
		d.NeedsContext, d.Reason = true, ReasonThreshold
	default:
		d.Reason = ReasonNone
	}
	return d
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

func words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

// containsPhrase reports whether any term occurs as a run of whole words.
func containsPhrase(tokens []string, terms []string) bool {
	for _, term := range terms {
		phrase := strings.Fields(term)
		if len(phrase) == 0 {
			continue
		}
		for i := 0; i+len(phrase) <= len(tokens); i++ {
			match := true
			for j, w := range phrase {
				if tokens[i+j] != w {
					match = false
					break
				}
			}
			if match {
				return true
			}
		}
	}
	return false
}
