package domain

import (
	"sort"
	"time"
)

// PortfolioSubject is the RiskProfile subject of the synthetic portfolio series
const PortfolioSubject = "portfolio"

// IndicatorPoint is one (timestamp, value) sample of an indicator line
type IndicatorPoint struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// IndicatorResult is the output of one indicator over one price series.
// Values holds the primary line; multi-line indicators (MACD, Bollinger)
// put their other lines in Lines, aligned to the same timestamps.
type IndicatorResult struct {
	Asset   string                      `json:"asset"`
	Name    string                      `json:"name"`
	Params  map[string]float64          `json:"params"`
	Values  []IndicatorPoint            `json:"values"`
	Lines   map[string][]IndicatorPoint `json:"lines,omitempty"`
	Version SeriesVersion               `json:"version"`
}

// Last returns the most recent primary value
func (r IndicatorResult) Last() (float64, bool) {
	if len(r.Values) == 0 {
		return 0, false
	}
	return r.Values[len(r.Values)-1].Value, true
}

// LastOf returns the most recent value of a named secondary line
func (r IndicatorResult) LastOf(line string) (float64, bool) {
	pts := r.Lines[line]
	if len(pts) == 0 {
		return 0, false
	}
	return pts[len(pts)-1].Value, true
}

// RiskProfile is the risk/return summary of one asset or of the portfolio
type RiskProfile struct {
	Subject          string        `json:"subject"`
	Benchmark        string        `json:"benchmark"`
	Beta             Metric        `json:"beta"`
	Alpha            Metric        `json:"alpha"`
	SharpeRatio      Metric        `json:"sharpe_ratio"`
	SortinoRatio     Metric        `json:"sortino_ratio"`
	Volatility       Metric        `json:"volatility"`
	AnnualReturn     Metric        `json:"annual_return"`
	MaxDrawdown      Metric        `json:"max_drawdown"`
	ValueAtRisk95    Metric        `json:"value_at_risk_95"`
	CVaR95           Metric        `json:"cvar_95"`
	SampleSize       int           `json:"sample_size"`
	BenchmarkOverlap int           `json:"benchmark_overlap"`
	InsufficientData bool          `json:"insufficient_data"`
	Version          SeriesVersion `json:"version"`
	Diagnostics      []Diagnostic  `json:"diagnostics,omitempty"`
}

// Position is a holding read from the external portfolio store
type Position struct {
	Asset           string    `json:"asset"`
	Quantity        float64   `json:"quantity"`
	CostBasisPrice  float64   `json:"cost_basis_price"`
	AcquisitionDate time.Time `json:"acquisition_date"`
}

// Holding is a valued position inside a snapshot
type Holding struct {
	Asset          string  `json:"asset"`
	Quantity       float64 `json:"quantity"`
	Price          float64 `json:"price"`
	PriceKnown     bool    `json:"price_known"`
	MarketValue    float64 `json:"market_value"`
	CostBasis      float64 `json:"cost_basis"`
	UnrealizedGain float64 `json:"unrealized_gain"`
	Weight         float64 `json:"weight"`
}

// PortfolioSnapshot is the consolidated valuation and risk profile at AsOf.
// It is built fresh on every aggregation and never cached across changes.
type PortfolioSnapshot struct {
	ID                string             `json:"id"`
	AsOf              time.Time          `json:"as_of"`
	TotalMarketValue  float64            `json:"total_market_value"`
	TotalCostBasis    float64            `json:"total_cost_basis"`
	UnrealizedGain    float64            `json:"unrealized_gain"`
	UnrealizedGainPct Metric             `json:"unrealized_gain_pct"`
	Holdings          []Holding          `json:"holdings"`
	Weights           map[string]float64 `json:"weights"`
	Risk              RiskProfile        `json:"risk"`
	Diagnostics       []Diagnostic       `json:"diagnostics,omitempty"`
}

// WeightSum returns the sum of all weights
func (s PortfolioSnapshot) WeightSum() float64 {
	sum := 0.0
	for _, w := range s.Weights {
		sum += w
	}
	return sum
}

// HasDiagnostic reports whether a diagnostic with code exists for asset
func (s PortfolioSnapshot) HasDiagnostic(asset, code string) bool {
	for _, d := range s.Diagnostics {
		if d.Asset == asset && d.Code == code {
			return true
		}
	}
	return false
}

// SortedAssets returns the weight keys in ascending order
func (s PortfolioSnapshot) SortedAssets() []string {
	assets := make([]string, 0, len(s.Weights))
	for a := range s.Weights {
		assets = append(assets, a)
	}
	sort.Strings(assets)
	return assets
}
