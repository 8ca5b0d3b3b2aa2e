package evaluation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestPrecision(t *testing.T) {
	retrieved := []string{"a", "x", "b", "y", "c", "d"}
	relevant := []string{"a", "b", "c"}

	assert.InDelta(t, 0.6, Precision(retrieved, relevant, 5), 1e-9)
	assert.InDelta(t, 0.5, Precision(retrieved, relevant, 0), 1e-9)
	assert.InDelta(t, 1.0, Precision(retrieved, relevant, 1), 1e-9)
	assert.Equal(t, 0.0, Precision(nil, relevant, 5))
}

func TestRecall(t *testing.T) {
	assert.InDelta(t, 2.0/3, Recall([]string{"a", "x", "b"}, []string{"a", "b", "c"}, 5), 1e-9)
	assert.InDelta(t, 1.0/3, Recall([]string{"a", "x", "b"}, []string{"a", "b", "c"}, 2), 1e-9)

	// nothing relevant
	assert.Equal(t, 1.0, Recall(nil, nil, 5))
	assert.Equal(t, 0.0, Recall([]string{"a"}, nil, 5))
}

func TestReciprocalRank(t *testing.T) {
	assert.Equal(t, 1.0, ReciprocalRank([]string{"a", "b"}, []string{"a"}))
	assert.InDelta(t, 1.0/3, ReciprocalRank([]string{"x", "y", "a"}, []string{"a", "b"}), 1e-9)
	assert.Equal(t, 0.0, ReciprocalRank([]string{"x"}, []string{"a"}))
	assert.Equal(t, 0.0, ReciprocalRank([]string{"x"}, nil))
}

func TestAveragePrecision(t *testing.T) {
	// hits at ranks 1 and 3: (1/1 + 2/3) / 2
	got := AveragePrecision([]string{"a", "x", "b"}, []string{"a", "b"})
	assert.InDelta(t, (1+2.0/3)/2, got, 1e-9)

	// one relevant document never retrieved
	got = AveragePrecision([]string{"a"}, []string{"a", "b"})
	assert.InDelta(t, 0.5, got, 1e-9)

	assert.Equal(t, 0.0, AveragePrecision([]string{"a"}, nil))
}

func TestNDCG(t *testing.T) {
	assert.InDelta(t, 1.0, NDCG([]string{"a", "b", "x"}, []string{"a", "b"}, 5), 1e-9)

	// single relevant document at rank 2
	assert.InDelta(t, 1/math.Log2(3), NDCG([]string{"x", "a"}, []string{"a"}, 5), 1e-9)

	assert.Equal(t, 0.0, NDCG([]string{"x"}, []string{"a"}, 5))
	assert.Equal(t, 0.0, NDCG([]string{"a"}, nil, 5))
}

func TestRougeL(t *testing.T) {
	assert.InDelta(t, 1.0, RougeL("The cat sat", "the cat sat"), 1e-9)

	// LCS "the sat" = 2 of 3 words on both sides
	assert.InDelta(t, 2.0/3, RougeL("the dog sat", "the cat sat"), 1e-9)

	assert.Equal(t, 0.0, RougeL("", "reference"))
	assert.Equal(t, 0.0, RougeL("alpha", "beta"))
}

func TestSummarize(t *testing.T) {
	s := Summarize([]float64{4, 1, 3, 2})

	assert.Equal(t, 2.5, s.Mean)
	assert.Equal(t, 2.5, s.Median)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 4.0, s.Max)
	assert.Equal(t, 4, s.Count)
	assert.InDelta(t, math.Sqrt(5.0/3), s.Std, 1e-9)

	assert.Equal(t, Summary{Mean: 7, Median: 7, Min: 7, Max: 7, Count: 1}, Summarize([]float64{7}))
	assert.Equal(t, Summary{}, Summarize(nil))
}

func TestMetricsBounded(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		id := rapid.SampledFrom([]string{"a", "b", "c", "d", "e", "f"})
		// ranked lists never repeat an identifier
		retrieved := rapid.SliceOfDistinct(id, func(s string) string { return s }).Draw(t, "retrieved")
		relevant := rapid.SliceOf(id).Draw(t, "relevant")
		k := rapid.IntRange(0, 8).Draw(t, "k")

		for name, v := range map[string]float64{
			"precision": Precision(retrieved, relevant, k),
			"recall":    Recall(retrieved, relevant, k),
			"mrr":       ReciprocalRank(retrieved, relevant),
			"ndcg":      NDCG(retrieved, relevant, k),
		} {
			if v < 0 || v > 1+1e-9 {
				t.Fatalf("%s out of range: %v", name, v)
			}
		}
	})
}
