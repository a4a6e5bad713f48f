package formulas

import (
	"github.com/markcheno/go-talib"
)

// BollingerBands represents one point of Bollinger Bands
type BollingerBands struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// BollingerSeries calculates Bollinger Bands over closes:
//
//	Middle = SMA(window)
//	Upper  = Middle + k * stddev
//	Lower  = Middle - k * stddev
//
// The result has len(closes)-window+1 elements, or nil with too little data.
func BollingerSeries(closes []float64, window int, k float64) []BollingerBands {
	if window <= 0 || len(closes) < window {
		return nil
	}

	// MAType 0 = SMA
	upper, middle, lower := talib.BBands(closes, window, k, k, 0)

	lookback := window - 1
	out := make([]BollingerBands, 0, len(closes)-lookback)
	for i := lookback; i < len(closes); i++ {
		out = append(out, BollingerBands{Upper: upper[i], Middle: middle[i], Lower: lower[i]})
	}
	return out
}

// BollingerPosition returns where price sits inside bands, 0 at the lower
// band and 1 at the upper band, clamped. Collapsed bands give 0.5.
func BollingerPosition(price float64, bands BollingerBands) float64 {
	width := bands.Upper - bands.Lower
	if width == 0 {
		return 0.5
	}
	pos := (price - bands.Lower) / width
	if pos < 0 {
		return 0
	}
	if pos > 1 {
		return 1
	}
	return pos
}
