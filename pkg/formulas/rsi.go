package formulas

import "math"

// RSISeries calculates the Relative Strength Index with Wilder smoothing.
//
//	gain[i] = max(close[i]-close[i-1], 0), loss[i] = max(close[i-1]-close[i], 0)
//	first average = simple mean of the first window gains/losses
//	avg = (avg_prev*(window-1) + current) / window
//	RSI = 100 - 100/(1 + avg_gain/avg_loss)
//
// avg_loss == 0 gives 100, avg_gain == 0 gives 0 and a flat window gives 50.
// Element k is aligned with closes[k+window]; the result has
// len(closes)-window elements. Returns nil when len(closes) < window+1.
func RSISeries(closes []float64, window int) []float64 {
	if window <= 0 || len(closes) < window+1 {
		return nil
	}

	var avgGain, avgLoss float64
	for i := 1; i <= window; i++ {
		gain, loss := change(closes[i-1], closes[i])
		avgGain += gain
		avgLoss += loss
	}
	avgGain /= float64(window)
	avgLoss /= float64(window)

	out := make([]float64, 0, len(closes)-window)
	out = append(out, rsiValue(avgGain, avgLoss))

	w := float64(window)
	for i := window + 1; i < len(closes); i++ {
		gain, loss := change(closes[i-1], closes[i])
		avgGain = (avgGain*(w-1) + gain) / w
		avgLoss = (avgLoss*(w-1) + loss) / w
		out = append(out, rsiValue(avgGain, avgLoss))
	}
	return out
}

// CalculateRSI returns the latest RSI value or nil if there is not enough data
func CalculateRSI(closes []float64, window int) *float64 {
	rsi := RSISeries(closes, window)
	if len(rsi) == 0 {
		return nil
	}
	v := rsi[len(rsi)-1]
	return &v
}

func change(prev, cur float64) (gain, loss float64) {
	d := cur - prev
	if d > 0 {
		return d, 0
	}
	return 0, -d
}

func rsiValue(avgGain, avgLoss float64) float64 {
	switch {
	case avgLoss == 0 && avgGain == 0:
		return 50
	case avgLoss == 0:
		return 100
	case avgGain == 0:
		return 0
	}
	v := 100 - 100/(1+avgGain/avgLoss)
	return math.Max(0, math.Min(100, v))
}
