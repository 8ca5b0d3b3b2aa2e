package evaluation

import (
	"math"
	"sort"
	"strings"
)

func set(ids []string) map[string]struct{} {
	s := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func cutoff(retrieved []string, k int) []string {
	if k > 0 && k < len(retrieved) {
		return retrieved[:k]
	}
	return retrieved
}

// Precision is the fraction of the first k retrieved identifiers that are
// relevant. k <= 0 means all of them.
func Precision(retrieved, relevant []string, k int) float64 {
	top := cutoff(retrieved, k)
	if len(top) == 0 {
		return 0
	}
	rel := set(relevant)
	hits := 0
	for _, id := range top {
		if _, ok := rel[id]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(top))
}

// Recall is the fraction of relevant identifiers found in the first k
// retrieved. With nothing relevant it is 1 only when nothing was retrieved.
func Recall(retrieved, relevant []string, k int) float64 {
	if len(relevant) == 0 {
		if len(retrieved) == 0 {
			return 1
		}
		return 0
	}
	got := set(cutoff(retrieved, k))
	hits := 0
	for _, id := range relevant {
		if _, ok := got[id]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(relevant))
}

// ReciprocalRank is 1/rank of the first relevant identifier, 0 if none.
func ReciprocalRank(retrieved, relevant []string) float64 {
	rel := set(relevant)
	for i, id := range retrieved {
		if _, ok := rel[id]; ok {
			return 1 / float64(i+1)
		}
	}
	return 0
}

func AveragePrecision(retrieved, relevant []string) float64 {
	if len(relevant) == 0 {
		return 0
	}
	rel := set(relevant)
	found := 0
	sum := 0.0
	for i, id := range retrieved {
		if _, ok := rel[id]; ok {
			found++
			sum += float64(found) / float64(i+1)
		}
	}
	return sum / float64(len(relevant))
}

// NDCG uses binary relevance. The ideal ranking places min(k, len(relevant))
// relevant identifiers first.
func NDCG(retrieved, relevant []string, k int) float64 {
	if len(relevant) == 0 {
		return 0
	}
	if k <= 0 {
		k = len(retrieved)
	}
	rel := set(relevant)
	dcg := 0.0
	for i, id := range cutoff(retrieved, k) {
		if _, ok := rel[id]; ok {
			dcg += 1 / math.Log2(float64(i+2))
		}
	}
	idcg := 0.0
	for i := 0; i < min(k, len(relevant)); i++ {
		idcg += 1 / math.Log2(float64(i+2))
	}
	if idcg == 0 {
		return 0
	}
	return dcg / idcg
}

// RougeL is the F-measure of the longest common word subsequence between
// the generated answer and the reference, compared case-insensitively.
func RougeL(generated, reference string) float64 {
	gen := strings.Fields(strings.ToLower(generated))
	ref := strings.Fields(strings.ToLower(reference))
	if len(gen) == 0 || len(ref) == 0 {
		return 0
	}

	prev := make([]int, len(ref)+1)
	cur := make([]int, len(ref)+1)
	for i := range gen {
		for j := range ref {
			switch {
			case gen[i] == ref[j]:
				cur[j+1] = prev[j] + 1
			case prev[j+1] >= cur[j]:
				cur[j+1] = prev[j+1]
			default:
				cur[j+1] = cur[j]
			}
		}
		prev, cur = cur, prev
	}
	lcs := float64(prev[len(ref)])
	if lcs == 0 {
		return 0
	}
	p := lcs / float64(len(gen))
	r := lcs / float64(len(ref))
	return 2 * p * r / (p + r)
}

// Summary describes one metric over every evaluated query.
type Summary struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Count  int     `json:"count"`
}

// Summarize reports the sample standard deviation; it is 0 below two scores.
func Summarize(scores []float64) Summary {
	if len(scores) == 0 {
		return Summary{}
	}
	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)

	s := Summary{Min: sorted[0], Max: sorted[len(sorted)-1], Count: len(sorted)}
	for _, v := range sorted {
		s.Mean += v
	}
	s.Mean /= float64(len(sorted))

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		s.Median = (sorted[mid-1] + sorted[mid]) / 2
	} else {
		s.Median = sorted[mid]
	}

	if len(sorted) > 1 {
		var ss float64
		for _, v := range sorted {
			ss += (v - s.Mean) * (v - s.Mean)
		}
		s.Std = math.Sqrt(ss / float64(len(sorted)-1))
	}
	return s
}
