package retrieval

import (
	"sort"

	"github.com/kliewerdaniel/steinbot/internal/core/common"
	"github.com/kliewerdaniel/steinbot/internal/core/model"
)

// Merge concatenates the stage outputs in order, keeps the first occurrence of
// each identifier and fills the preview. Results without an identifier are dropped.
func Merge(previewLength int, stages ...[]model.Result) []model.Result {
	seen := make(map[string]struct{})
	var merged []model.Result
	for _, stage := range stages {
		for _, r := range stage {
			if r.ID == "" {
				continue
			}
			if _, dup := seen[r.ID]; dup {
				continue
			}
			seen[r.ID] = struct{}{}
			r.Preview = common.Truncate(r.Content, previewLength)
			merged = append(merged, r)
		}
	}
	return merged
}

// BaseScore is the similarity when present, else the count-based secondary score.
func BaseScore(r model.Result, countFactor float64) float64 {
	if r.RelevanceScore != nil {
		return *r.RelevanceScore
	}
	if r.MatchCount != nil {
		return float64(*r.MatchCount) * countFactor
	}
	return 0
}

// Rank scores results as base score times method weight, sorts descending and
// keeps the first limit entries. Ties keep merge order.
func Rank(results []model.Result, p Profile, limit int) []model.Result {
	ranked := make([]model.Result, len(results))
	copy(ranked, results)
	for i := range ranked {
		ranked[i].Score = BaseScore(ranked[i], p.CountFactor) * p.Weight(ranked[i].Strategy)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	if limit >= 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
