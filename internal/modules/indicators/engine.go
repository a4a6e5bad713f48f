// Package indicators computes technical indicators from validated price series.
package indicators

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/portfolio-analytics/internal/domain"
	"github.com/aristath/portfolio-analytics/pkg/formulas"
)

// Indicator names
const (
	NameSMA       = "sma"
	NameRSI       = "rsi"
	NameMACD      = "macd"
	NameBollinger = "bollinger"
)

// Line names of multi-line indicators
const (
	LineMain      = "main"
	LineSignal    = "signal"
	LineHistogram = "histogram"
	LineUpper     = "upper"
	LineMiddle    = "middle"
	LineLower     = "lower"
)

// Engine is a stateless indicator calculator. The same series and
// parameters always produce the same result.
type Engine struct {
	log zerolog.Logger
}

// NewEngine creates an indicator engine
func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{
		log: log.With().Str("component", "indicator_engine").Logger(),
	}
}

func checkSeries(name string, series *domain.PriceSeries, required int) error {
	if series == nil {
		return fmt.Errorf("%s: %w: nil series", name, domain.ErrInvalidSeries)
	}
	if required < 2 {
		required = 2
	}
	if series.Len() < required {
		return domain.NewInsufficientData(fmt.Sprintf("%s(%s)", name, series.Asset()), required, series.Len())
	}
	return nil
}

func checkWindow(name string, windows ...int) error {
	for _, w := range windows {
		if w <= 0 {
			return fmt.Errorf("%s: %w: window must be positive, got %d", name, domain.ErrInvalidParameter, w)
		}
	}
	return nil
}

// points pairs values with the trailing timestamps they belong to
func points(times []time.Time, values []float64) []domain.IndicatorPoint {
	offset := len(times) - len(values)
	out := make([]domain.IndicatorPoint, len(values))
	for i, v := range values {
		out[i] = domain.IndicatorPoint{Time: times[offset+i], Value: v}
	}
	return out
}

func newResult(series *domain.PriceSeries, name string, params map[string]float64) domain.IndicatorResult {
	return domain.IndicatorResult{
		Asset:   series.Asset(),
		Name:    name,
		Params:  params,
		Version: series.Version(),
	}
}

// SMA returns the simple moving average of closes over window.
// Output length is len(series)-window+1.
func (e *Engine) SMA(series *domain.PriceSeries, window int) (domain.IndicatorResult, error) {
	if err := checkWindow(NameSMA, window); err != nil {
		return domain.IndicatorResult{}, err
	}
	if err := checkSeries(NameSMA, series, window); err != nil {
		return domain.IndicatorResult{}, err
	}

	res := newResult(series, NameSMA, map[string]float64{"window": float64(window)})
	res.Values = points(series.Times(), formulas.SMASeries(series.Closes(), window))
	return res, nil
}

// RSI returns the Wilder-smoothed momentum oscillator, bounded to [0, 100].
// It needs window+1 bars and yields len(series)-window values.
func (e *Engine) RSI(series *domain.PriceSeries, window int) (domain.IndicatorResult, error) {
	if err := checkWindow(NameRSI, window); err != nil {
		return domain.IndicatorResult{}, err
	}
	if err := checkSeries(NameRSI, series, window+1); err != nil {
		return domain.IndicatorResult{}, err
	}

	res := newResult(series, NameRSI, map[string]float64{"window": float64(window)})
	res.Values = points(series.Times(), formulas.RSISeries(series.Closes(), window))
	return res, nil
}

// MACD returns the trend oscillator. Values is the main line (fast EMA minus
// slow EMA); Lines carries main, signal and histogram, all aligned to the
// timestamps where the signal line is defined.
func (e *Engine) MACD(series *domain.PriceSeries, fast, slow, signal int) (domain.IndicatorResult, error) {
	if err := checkWindow(NameMACD, fast, slow, signal); err != nil {
		return domain.IndicatorResult{}, err
	}
	if fast >= slow {
		return domain.IndicatorResult{}, fmt.Errorf("%s: %w: fast window %d must be shorter than slow window %d",
			NameMACD, domain.ErrInvalidParameter, fast, slow)
	}
	if err := checkSeries(NameMACD, series, slow+signal); err != nil {
		return domain.IndicatorResult{}, err
	}

	closes := series.Closes()
	fastEMA := formulas.EMASeries(closes, fast)
	slowEMA := formulas.EMASeries(closes, slow)

	// fastEMA starts at close index fast-1, slowEMA at slow-1
	shift := slow - fast
	main := make([]float64, len(slowEMA))
	for i := range slowEMA {
		main[i] = fastEMA[i+shift] - slowEMA[i]
	}

	signalLine := formulas.EMASeries(main, signal)
	main = main[signal-1:]

	histogram := make([]float64, len(signalLine))
	for i := range signalLine {
		histogram[i] = main[i] - signalLine[i]
	}

	times := series.Times()
	res := newResult(series, NameMACD, map[string]float64{
		"fast":   float64(fast),
		"slow":   float64(slow),
		"signal": float64(signal),
	})
	res.Values = points(times, main)
	res.Lines = map[string][]domain.IndicatorPoint{
		LineMain:      res.Values,
		LineSignal:    points(times, signalLine),
		LineHistogram: points(times, histogram),
	}
	return res, nil
}

// Bollinger returns Bollinger Bands. Values is the middle band (the SMA).
func (e *Engine) Bollinger(series *domain.PriceSeries, window int, k float64) (domain.IndicatorResult, error) {
	if err := checkWindow(NameBollinger, window); err != nil {
		return domain.IndicatorResult{}, err
	}
	if k <= 0 {
		return domain.IndicatorResult{}, fmt.Errorf("%s: %w: band width must be positive, got %v",
			NameBollinger, domain.ErrInvalidParameter, k)
	}
	if err := checkSeries(NameBollinger, series, window); err != nil {
		return domain.IndicatorResult{}, err
	}

	bands := formulas.BollingerSeries(series.Closes(), window, k)
	upper := make([]float64, len(bands))
	middle := make([]float64, len(bands))
	lower := make([]float64, len(bands))
	for i, b := range bands {
		upper[i], middle[i], lower[i] = b.Upper, b.Middle, b.Lower
	}

	times := series.Times()
	res := newResult(series, NameBollinger, map[string]float64{"window": float64(window), "k": k})
	res.Values = points(times, middle)
	res.Lines = map[string][]domain.IndicatorPoint{
		LineUpper:  points(times, upper),
		LineMiddle: res.Values,
		LineLower:  points(times, lower),
	}
	return res, nil
}
