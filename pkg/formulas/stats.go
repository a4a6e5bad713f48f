package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation (n-1 denominator)
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Variance calculates the sample variance (n-1 denominator)
func Variance(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.Variance(data, nil)
}

// Covariance calculates the sample covariance between two equal-length datasets
func Covariance(x, y []float64) float64 {
	if len(x) < 2 || len(x) != len(y) {
		return 0
	}
	return stat.Covariance(x, y, nil)
}

// Correlation calculates the Pearson correlation coefficient.
// Returns NaN when either input has zero variance.
func Correlation(x, y []float64) float64 {
	if len(x) < 2 || len(x) != len(y) {
		return math.NaN()
	}
	if Variance(x) == 0 || Variance(y) == 0 {
		return math.NaN()
	}
	return stat.Correlation(x, y, nil)
}

// Subtract returns data[i] - c for every element
func Subtract(data []float64, c float64) []float64 {
	out := make([]float64, len(data))
	for i, v := range data {
		out[i] = v - c
	}
	return out
}

// CalculateReturns converts prices to simple returns.
// Returns[i] = (Price[i+1] - Price[i]) / Price[i]; a zero price yields a zero return.
func CalculateReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}

	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] != 0 {
			returns[i-1] = (prices[i] - prices[i-1]) / prices[i-1]
		}
	}
	return returns
}

// AnnualizedVolatility scales the sample standard deviation of periodic
// returns by sqrt(periodsPerYear)
func AnnualizedVolatility(returns []float64, periodsPerYear float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	return StdDev(returns) * math.Sqrt(periodsPerYear)
}

// CalculateAnnualReturn computes the compound annual growth rate of a series
// of periodic returns: ((1+r1)*...*(1+rN))^(periodsPerYear/N) - 1.
// Fewer than 3 periods return the plain cumulative return.
func CalculateAnnualReturn(returns []float64, periodsPerYear float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	cumulative := 1.0
	for _, r := range returns {
		cumulative *= 1 + r
	}

	n := float64(len(returns))
	if n < 3 {
		return cumulative - 1
	}
	if cumulative <= 0 {
		return -1
	}
	return math.Pow(cumulative, periodsPerYear/n) - 1
}

func isNaN(f float64) bool {
	return f != f
}
