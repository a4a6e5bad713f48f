package domain

import (
	"encoding/json"
	"math"
)

// Reasons a metric may be undefined
const (
	ReasonInsufficientData = "insufficient_data"
	ReasonMisaligned       = "misaligned_series"
)

// Causes of a degenerate metric, carried in Metric.Detail
const (
	DetailZeroVariance  = "zero_benchmark_variance"
	DetailZeroDeviation = "zero_deviation"
	DetailNoDownside    = "no_downside_deviation"
	DetailZeroCostBasis = "zero_cost_basis"
	DetailNonFinite     = "non_finite"
)

// Metric is a number that may be undefined. Degenerate inputs (zero variance,
// zero deviation) produce an undefined Metric instead of Inf or NaN so that
// display code has a single way to render "N/A".
type Metric struct {
	Value   float64
	Defined bool
	Reason  string
	Detail  string
}

// DefinedMetric wraps a finite value. Non-finite values become undefined.
func DefinedMetric(v float64) Metric {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return DegenerateMetric(DetailNonFinite)
	}
	return Metric{Value: v, Defined: true}
}

// UndefinedMetric returns a metric carrying only the reason it is missing
func UndefinedMetric(reason string) Metric {
	return Metric{Reason: reason}
}

// DegenerateMetric is an insufficient_data metric whose inputs were present
// but degenerate; detail names the cause
func DegenerateMetric(detail string) Metric {
	return Metric{Reason: ReasonInsufficientData, Detail: detail}
}

// Float returns the value and whether it is defined
func (m Metric) Float() (float64, bool) {
	return m.Value, m.Defined
}

// OrElse returns the value, or fallback when undefined
func (m Metric) OrElse(fallback float64) float64 {
	if !m.Defined {
		return fallback
	}
	return m.Value
}

type metricJSON struct {
	Value  *float64 `json:"value"`
	Reason string   `json:"reason,omitempty"`
	Detail string   `json:"detail,omitempty"`
}

// MarshalJSON renders undefined metrics as {"value": null, "reason": "...", "detail": "..."}
func (m Metric) MarshalJSON() ([]byte, error) {
	out := metricJSON{Reason: m.Reason, Detail: m.Detail}
	if m.Defined {
		v := m.Value
		out.Value = &v
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON
func (m *Metric) UnmarshalJSON(data []byte) error {
	var in metricJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*m = Metric{Reason: in.Reason, Detail: in.Detail}
	if in.Value != nil {
		m.Value = *in.Value
		m.Defined = true
	}
	return nil
}
