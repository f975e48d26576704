package aggregate

import (
	"math"
	"sort"
)

// maxBuzz keeps scores strictly below 1.
const maxBuzz = 0.999999

// minNormalizer floors the denominator so small samples cannot saturate the
// score.
const minNormalizer = 10.0

// BuzzScore normalizes a raw mention count into [0, 0.999999], rounded to
// six decimal places.
func BuzzScore(rawCount, normalizer float64) float64 {
	if normalizer < minNormalizer {
		normalizer = minNormalizer
	}
	score := rawCount / normalizer
	if score > maxBuzz {
		score = maxBuzz
	}
	return math.Round(score*1e6) / 1e6
}

// Buzz is one ranked news-buzz row.
type Buzz struct {
	Ticker          string
	Score           float64
	CompanyFullName string
}

// RankBuzz sorts rows descending by score. The sort is stable: ties keep
// their input order.
func RankBuzz(rows []Buzz) {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Score > rows[j].Score })
}
