package indicators

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/aristath/portfolio-analytics/internal/domain"
)

// Params selects which indicators Compute produces
type Params struct {
	SMAWindows      []int
	RSIWindow       int
	MACDFast        int
	MACDSlow        int
	MACDSignal      int
	BollingerWindow int
	BollingerK      float64
}

// DefaultParams returns the conventional 20/50 SMA, RSI(14), MACD(12,26,9)
// and Bollinger(20, 2) set
func DefaultParams() Params {
	return Params{
		SMAWindows:      []int{20, 50},
		RSIWindow:       14,
		MACDFast:        12,
		MACDSlow:        26,
		MACDSignal:      9,
		BollingerWindow: 20,
		BollingerK:      2,
	}
}

// Fingerprint renders the parameters as a stable cache-key fragment
func (p Params) Fingerprint() string {
	windows := append([]int(nil), p.SMAWindows...)
	sort.Ints(windows)
	parts := make([]string, len(windows))
	for i, w := range windows {
		parts[i] = strconv.Itoa(w)
	}
	return fmt.Sprintf("sma=%s;rsi=%d;macd=%d/%d/%d;bb=%d/%g",
		strings.Join(parts, ","), p.RSIWindow, p.MACDFast, p.MACDSlow, p.MACDSignal, p.BollingerWindow, p.BollingerK)
}

// Key identifies one indicator output for an asset
type Key struct {
	Asset string `json:"asset"`
	Name  string `json:"name"`
	Label string `json:"label"`
}

// KeyOf builds the key of a result, e.g. {AAPL, sma, sma_20}
func KeyOf(r domain.IndicatorResult) Key {
	label := r.Name
	if w, ok := r.Params["window"]; ok {
		label = fmt.Sprintf("%s_%d", r.Name, int(w))
	}
	return Key{Asset: r.Asset, Name: r.Name, Label: label}
}

// Compute runs every indicator selected by params. A failing indicator adds
// a diagnostic and never blocks the others.
func (e *Engine) Compute(series *domain.PriceSeries, params Params) ([]domain.IndicatorResult, []domain.Diagnostic) {
	var results []domain.IndicatorResult
	var diags []domain.Diagnostic
	asset := ""
	if series != nil {
		asset = series.Asset()
	}

	collect := func(label string, res domain.IndicatorResult, err error) {
		if err != nil {
			e.log.Debug().Err(err).Str("asset", asset).Str("indicator", label).Msg("Indicator skipped")
			diags = append(diags, domain.DiagnosticFromError(asset, label, err))
			return
		}
		results = append(results, res)
	}

	for _, w := range params.SMAWindows {
		res, err := e.SMA(series, w)
		collect(fmt.Sprintf("%s_%d", NameSMA, w), res, err)
	}
	if params.RSIWindow > 0 {
		res, err := e.RSI(series, params.RSIWindow)
		collect(fmt.Sprintf("%s_%d", NameRSI, params.RSIWindow), res, err)
	}
	if params.MACDSlow > 0 {
		res, err := e.MACD(series, params.MACDFast, params.MACDSlow, params.MACDSignal)
		collect(NameMACD, res, err)
	}
	if params.BollingerWindow > 0 {
		res, err := e.Bollinger(series, params.BollingerWindow, params.BollingerK)
		collect(fmt.Sprintf("%s_%d", NameBollinger, params.BollingerWindow), res, err)
	}

	return results, diags
}
