package formulas

// DrawdownMetrics represents drawdown analysis results
type DrawdownMetrics struct {
	MaxDrawdown       float64 `json:"max_drawdown"`     // Positive fraction, 0.25 = 25% below peak
	CurrentDrawdown   float64 `json:"current_drawdown"` // Current distance from peak
	PeriodsInDrawdown int     `json:"periods_in_drawdown"`
	PeakValue         float64 `json:"peak_value"`
	CurrentValue      float64 `json:"current_value"`
}

// CalculateDrawdownMetrics walks a value path and records the deepest
// peak-to-trough decline. Returns nil for fewer than 2 values.
func CalculateDrawdownMetrics(values []float64) *DrawdownMetrics {
	if len(values) < 2 {
		return nil
	}

	maxDrawdown := 0.0
	peak := values[0]
	peakIndex := 0

	for i, v := range values {
		if v > peak {
			peak = v
			peakIndex = i
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > maxDrawdown {
				maxDrawdown = dd
			}
		}
	}

	current := values[len(values)-1]
	currentDrawdown := 0.0
	if peak > 0 {
		currentDrawdown = (peak - current) / peak
	}

	return &DrawdownMetrics{
		MaxDrawdown:       maxDrawdown,
		CurrentDrawdown:   currentDrawdown,
		PeriodsInDrawdown: len(values) - 1 - peakIndex,
		PeakValue:         peak,
		CurrentValue:      current,
	}
}

// CumulativeValues compounds returns into a value path starting at 1
func CumulativeValues(returns []float64) []float64 {
	out := make([]float64, len(returns)+1)
	out[0] = 1
	for i, r := range returns {
		out[i+1] = out[i] * (1 + r)
	}
	return out
}
