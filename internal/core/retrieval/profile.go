package retrieval

import (
	"fmt"

	"github.com/kliewerdaniel/steinbot/internal/config"
	"github.com/kliewerdaniel/steinbot/internal/core/model"
	"github.com/kliewerdaniel/steinbot/internal/driver"
)

const (
	DefaultLimit       = 5
	DefaultCountFactor = 0.1
	UnknownWeight      = 0.5

	topicSeedCount  = 3
	entitySeedCount = 3
)

// Profile binds a graph schema to the ranking behaviour of one collection.
type Profile struct {
	Schema driver.Schema
	// Expansion is the second expansion stage run after topic expansion.
	Expansion      model.Strategy
	PreviewLength  int
	CountFactor    float64
	Weights        map[model.Strategy]float64
	ConceptSubject string
}

func defaultWeights() map[model.Strategy]float64 {
	return map[model.Strategy]float64{
		model.StrategyVector:          1.0,
		model.StrategyTopicExpansion:  0.8,
		model.StrategyEntityExpansion: 0.7,
		model.StrategyThreadContext:   0.7,
		model.StrategyAuthorExpansion: 0.7,
	}
}

func DocumentsProfile() Profile {
	return Profile{
		Schema:         driver.DocumentsSchema,
		Expansion:      model.StrategyEntityExpansion,
		PreviewLength:  800,
		CountFactor:    DefaultCountFactor,
		Weights:        defaultWeights(),
		ConceptSubject: "document search",
	}
}

func RedditProfile() Profile {
	return Profile{
		Schema:         driver.RedditSchema,
		Expansion:      model.StrategyThreadContext,
		PreviewLength:  500,
		CountFactor:    DefaultCountFactor,
		Weights:        defaultWeights(),
		ConceptSubject: "Reddit search",
	}
}

func PapersProfile() Profile {
	return Profile{
		Schema:         driver.PapersSchema,
		Expansion:      model.StrategyAuthorExpansion,
		PreviewLength:  300,
		CountFactor:    DefaultCountFactor,
		Weights:        defaultWeights(),
		ConceptSubject: "research paper search",
	}
}

// ProfileFor returns the profile for a configured domain.
func ProfileFor(domain string) (Profile, error) {
	switch domain {
	case config.DomainDocuments:
		return DocumentsProfile(), nil
	case config.DomainReddit:
		return RedditProfile(), nil
	case config.DomainPapers:
		return PapersProfile(), nil
	}
	return Profile{}, fmt.Errorf("unknown retrieval domain %q", domain)
}

// WithConfig applies the non-zero overrides from cfg.
func (p Profile) WithConfig(cfg config.RetrievalConfig) Profile {
	if cfg.VectorIndex != "" {
		p.Schema.VectorIndex = cfg.VectorIndex
	}
	if cfg.PreviewLength > 0 {
		p.PreviewLength = cfg.PreviewLength
	}
	if cfg.CountFactor > 0 {
		p.CountFactor = cfg.CountFactor
	}
	if len(cfg.Weights) > 0 {
		weights := make(map[model.Strategy]float64, len(p.Weights)+len(cfg.Weights))
		for k, v := range p.Weights {
			weights[k] = v
		}
		for k, v := range cfg.Weights {
			weights[model.Strategy(k)] = v
		}
		p.Weights = weights
	}
	return p
}

// Weight is the method multiplier for s, with a floor for unknown strategies.
func (p Profile) Weight(s model.Strategy) float64 {
	if w, ok := p.Weights[s]; ok {
		return w
	}
	return UnknownWeight
}
