package formulas

import (
	"github.com/markcheno/go-talib"
)

// SMASeries returns the simple moving average of closes over window.
// Element k is the mean of closes[k : k+window], so the result has
// len(closes)-window+1 elements. Returns nil when there is not enough data.
func SMASeries(closes []float64, window int) []float64 {
	if window <= 0 || len(closes) < window {
		return nil
	}
	sma := talib.Sma(closes, window)
	return trimLookback(sma, window-1)
}

// EMASeries returns the exponential moving average of values with smoothing
// factor 2/(window+1). The first value is the simple average of the first
// window inputs, so the result has len(values)-window+1 elements.
func EMASeries(values []float64, window int) []float64 {
	if window <= 0 || len(values) < window {
		return nil
	}
	ema := talib.Ema(values, window)
	return trimLookback(ema, window-1)
}

// CalculateSMA returns the latest simple moving average or nil
func CalculateSMA(closes []float64, window int) *float64 {
	sma := SMASeries(closes, window)
	if len(sma) == 0 || isNaN(sma[len(sma)-1]) {
		return nil
	}
	v := sma[len(sma)-1]
	return &v
}

// CalculateEMA returns the latest exponential moving average or nil
func CalculateEMA(closes []float64, window int) *float64 {
	ema := EMASeries(closes, window)
	if len(ema) == 0 || isNaN(ema[len(ema)-1]) {
		return nil
	}
	v := ema[len(ema)-1]
	return &v
}

// talib pads the lookback period with zeros
func trimLookback(values []float64, lookback int) []float64 {
	out := make([]float64, len(values)-lookback)
	copy(out, values[lookback:])
	return out
}
