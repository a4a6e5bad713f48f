// Package insights prepares the portfolio report for an external AI
// summarizer. It builds a JSON-safe payload and the prompt text; calling a
// model is left to the consumer.
package insights

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/aristath/portfolio-analytics/internal/domain"
	"github.com/aristath/portfolio-analytics/internal/modules/portfolio"
)

// NotAvailable is how undefined metrics are rendered
const NotAvailable = "N/A"

// HighCorrelation is the absolute correlation above which a pair is reported
const HighCorrelation = 0.8

// Allocation is one holding's share of the portfolio
type Allocation struct {
	Asset     string  `json:"asset"`
	WeightPct float64 `json:"weight_pct"`
	Value     float64 `json:"value"`
}

// SignalLine is the technical view of one asset
type SignalLine struct {
	Asset      string  `json:"asset"`
	Direction  string  `json:"direction"`
	Confidence float64 `json:"confidence"`
}

// CorrelatedPair is a pair of holdings moving together
type CorrelatedPair struct {
	A           string  `json:"a"`
	B           string  `json:"b"`
	Correlation float64 `json:"correlation"`
}

// Payload is the structured summary handed to the insight model
type Payload struct {
	ReportID        string            `json:"report_id"`
	AsOf            time.Time         `json:"as_of"`
	TotalValue      float64           `json:"total_value"`
	UnrealizedGain  string            `json:"unrealized_gain"`
	Allocation      []Allocation      `json:"allocation"`
	Risk            map[string]string `json:"risk"`
	Diversification float64           `json:"diversification_score"`
	Concentration   float64           `json:"concentration"`
	Signals         []SignalLine      `json:"signals"`
	CorrelatedPairs []CorrelatedPair  `json:"correlated_pairs,omitempty"`
	Warnings        int               `json:"warnings"`
}

// riskLines lists the portfolio metrics in prompt order
var riskLines = []struct {
	key     string
	label   string
	percent bool
	get     func(domain.RiskProfile) domain.Metric
}{
	{"volatility", "Volatility", true, func(p domain.RiskProfile) domain.Metric { return p.Volatility }},
	{"annual_return", "Annual Return", true, func(p domain.RiskProfile) domain.Metric { return p.AnnualReturn }},
	{"sharpe_ratio", "Sharpe Ratio", false, func(p domain.RiskProfile) domain.Metric { return p.SharpeRatio }},
	{"sortino_ratio", "Sortino Ratio", false, func(p domain.RiskProfile) domain.Metric { return p.SortinoRatio }},
	{"beta", "Beta", false, func(p domain.RiskProfile) domain.Metric { return p.Beta }},
	{"alpha", "Alpha (per period)", true, func(p domain.RiskProfile) domain.Metric { return p.Alpha }},
	{"max_drawdown", "Max Drawdown", true, func(p domain.RiskProfile) domain.Metric { return p.MaxDrawdown }},
	{"value_at_risk_95", "VaR 95%", true, func(p domain.RiskProfile) domain.Metric { return p.ValueAtRisk95 }},
	{"cvar_95", "CVaR 95%", true, func(p domain.RiskProfile) domain.Metric { return p.CVaR95 }},
}

// Format renders a metric, or N/A when it is undefined
func Format(m domain.Metric, percent bool) string {
	v, ok := m.Float()
	if !ok {
		return NotAvailable
	}
	if percent {
		return fmt.Sprintf("%.2f%%", v*100)
	}
	return fmt.Sprintf("%.2f", v)
}

// BuildPayload summarizes a report
func BuildPayload(report portfolio.Report) Payload {
	snap := report.Snapshot
	p := Payload{
		ReportID:       report.ID,
		AsOf:           snap.AsOf,
		TotalValue:     snap.TotalMarketValue,
		UnrealizedGain: Format(snap.UnrealizedGainPct, true),
		Allocation:     []Allocation{},
		Risk:           make(map[string]string, len(riskLines)),
		Signals:        []SignalLine{},
		Warnings:       len(report.Diagnostics),
	}

	hhi := 0.0
	for _, h := range snap.Holdings {
		if !h.PriceKnown {
			continue
		}
		p.Allocation = append(p.Allocation, Allocation{Asset: h.Asset, WeightPct: h.Weight * 100, Value: h.MarketValue})
		hhi += h.Weight * h.Weight
		p.Concentration = math.Max(p.Concentration, h.Weight*100)
	}
	sort.SliceStable(p.Allocation, func(i, j int) bool {
		return p.Allocation[i].WeightPct > p.Allocation[j].WeightPct
	})
	if len(p.Allocation) > 0 && hhi > 0 {
		p.Diversification = (1 - hhi) * 100
	}

	for _, line := range riskLines {
		p.Risk[line.key] = Format(line.get(snap.Risk), line.percent)
	}

	assets := make([]string, 0, len(report.Signals))
	for asset := range report.Signals {
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	for _, asset := range assets {
		s := report.Signals[asset]
		p.Signals = append(p.Signals, SignalLine{Asset: asset, Direction: s.Direction, Confidence: s.Confidence})
	}

	if c := report.Correlations; c != nil {
		for i := range c.Assets {
			for j := i + 1; j < len(c.Assets); j++ {
				v, ok := c.Values[i][j].Float()
				if ok && math.Abs(v) >= HighCorrelation {
					p.CorrelatedPairs = append(p.CorrelatedPairs, CorrelatedPair{A: c.Assets[i], B: c.Assets[j], Correlation: v})
				}
			}
		}
	}

	return p
}
