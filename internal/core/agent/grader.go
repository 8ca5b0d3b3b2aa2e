package agent

import (
	"math"
	"strings"

	"github.com/kliewerdaniel/steinbot/internal/core/common"
	"github.com/kliewerdaniel/steinbot/internal/core/model"
)

// Grader scores a response in [0,1]. The threshold controller only sees
// the number, so a human feedback signal can replace the heuristic.
type Grader interface {
	Grade(query, response string, context []model.Result) float64
}

const (
	MinResponseChars = 10
	TooShortGrade    = 0.1
	NoContextInsight = 0.3
)

var listMarkers = []string{"- ", "• ", "1. ", "2. "}

// HeuristicGrader grades by context mentions, length and layout.
type HeuristicGrader struct {
	Rubric Rubric
}

func NewHeuristicGrader(lex Lexicon) *HeuristicGrader {
	return &HeuristicGrader{Rubric: lex.Rubric}
}

func (g *HeuristicGrader) Grade(query, response string, context []model.Result) float64 {
	if common.CountNonSpace(response) < MinResponseChars {
		return TooShortGrade
	}
	grade := 0.5*g.Insight(response, context) +
		0.3*g.Completeness(response) +
		0.2*g.Structure(response)
	return math.Min(1, math.Max(0, grade))
}

func (g *HeuristicGrader) Insight(response string, context []model.Result) float64 {
	if len(context) == 0 {
		return NoContextInsight
	}
	r := g.Rubric
	mentions := 0
	if r.Mentions != nil {
		mentions = r.Mentions(response, context)
	}
	score := math.Min(r.MentionCap, float64(mentions)*r.MentionScore)
	if containsAny(strings.ToLower(response), r.Phrases) {
		score += r.PhraseBonus
	}
	return math.Min(1, score)
}

func (g *HeuristicGrader) Completeness(response string) float64 {
	if g.Rubric.TargetWords <= 0 {
		return 1
	}
	return math.Min(1, float64(common.WordCount(response))/float64(g.Rubric.TargetWords))
}

func (g *HeuristicGrader) Structure(response string) float64 {
	score := 0.5
	if len(strings.Split(response, "\n\n")) > 1 {
		score += 0.2
	}
	for _, line := range strings.Split(response, "\n") {
		if hasListMarker(strings.TrimSpace(line)) {
			score += 0.1
			break
		}
	}
	if n := common.WordCount(response); n >= g.Rubric.MinWords && n <= g.Rubric.MaxWords {
		score += 0.2
	}
	return math.Min(1, score)
}

func hasListMarker(line string) bool {
	for _, m := range listMarkers {
		if strings.HasPrefix(line, m) {
			return true
		}
	}
	return false
}
