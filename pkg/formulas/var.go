package formulas

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// CalculateVaR returns the historical Value at Risk at the given confidence:
// the empirical (1-confidence) quantile of returns. Losses are negative.
func CalculateVaR(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	// 1-0.95 is not exactly 0.05 in binary; round so the empirical rank is stable
	p := math.Round((1-confidence)*1e9) / 1e9
	return stat.Quantile(p, stat.Empirical, sorted, nil)
}

// CalculateCVaR returns the Conditional Value at Risk: the mean of the worst
// ceil(n*(1-confidence)) returns.
func CalculateCVaR(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	if len(returns) == 1 {
		return returns[0]
	}

	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	tailCount := int(math.Ceil(float64(len(sorted)) * (1 - confidence)))
	if tailCount == 0 {
		tailCount = 1
	}
	if tailCount > len(sorted) {
		tailCount = len(sorted)
	}

	return Mean(sorted[:tailCount])
}
