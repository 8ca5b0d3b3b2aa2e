package agent

import (
	"github.com/charmbracelet/log"

	"github.com/kliewerdaniel/steinbot/internal/core/persona"
)

const (
	LowGrade     = 0.5
	HighGrade    = 0.8
	SuccessGrade = 0.6
	SuccessAlpha = 0.1

	raiseStep     = 0.05
	lowerStep     = 0.02
	formalityStep = 0.01
)

// ApplyGrade moves the thresholds after a graded answer. Poor answers make
// retrieval and citation more aggressive, strong ones relax them; the
// success rate is an exponential moving average of grade > 0.6.
func ApplyGrade(c *persona.Config, grade float64) {
	t := &c.Thresholds
	switch {
	case grade < LowGrade:
		t.RetrievalRequired += raiseStep
		t.CitationRequirement += raiseStep
		t.TechnicalDetailLevel -= lowerStep
		log.Info("low quality response, increasing retrieval aggressiveness", "grade", grade)
	case grade > HighGrade:
		t.RetrievalRequired -= lowerStep
		t.FormalityLevel -= formalityStep
		log.Info("high quality response, relaxing thresholds", "grade", grade)
	}

	hit := 0.0
	if grade > SuccessGrade {
		hit = 1
	}
	c.RecentSuccessRate = SuccessAlpha*hit + (1-SuccessAlpha)*c.RecentSuccessRate

	t.Clamp()
	c.RecentSuccessRate = clamp01(c.RecentSuccessRate)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
