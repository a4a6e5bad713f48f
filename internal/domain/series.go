package domain

import (
	"fmt"
	"math"
	"time"
)

// PriceBar is one period's OHLCV observation
type PriceBar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Validate checks the single-bar invariants: finite, non-negative prices,
// high >= max(open, close) and low <= min(open, close).
func (b PriceBar) Validate() error {
	fields := [...]struct {
		name  string
		value float64
	}{
		{"open", b.Open},
		{"high", b.High},
		{"low", b.Low},
		{"close", b.Close},
		{"volume", b.Volume},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidBar, f.name)
		}
		if f.value < 0 {
			return fmt.Errorf("%w: %s is negative (%v)", ErrInvalidBar, f.name, f.value)
		}
	}
	if b.High < math.Max(b.Open, b.Close) {
		return fmt.Errorf("%w: high %v below max(open, close)", ErrInvalidBar, b.High)
	}
	if b.Low > math.Min(b.Open, b.Close) {
		return fmt.Errorf("%w: low %v above min(open, close)", ErrInvalidBar, b.Low)
	}
	if b.Time.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidBar)
	}
	return nil
}

// SeriesVersion stamps a result with the price series it was derived from.
// Two results with equal versions were computed from identical input.
type SeriesVersion struct {
	Asset         string    `json:"asset"`
	LastTimestamp time.Time `json:"last_timestamp"`
	Bars          int       `json:"bars"`
}

// String renders the version as a stable cache-key fragment
func (v SeriesVersion) String() string {
	return fmt.Sprintf("%s@%d#%d", v.Asset, v.LastTimestamp.Unix(), v.Bars)
}

// IsZero reports whether the version was never set
func (v SeriesVersion) IsZero() bool {
	return v.Asset == "" && v.Bars == 0 && v.LastTimestamp.IsZero()
}

// PriceSeries is an immutable, validated, strictly ascending sequence of bars
// for one asset. Construct it with NewPriceSeries.
type PriceSeries struct {
	asset string
	bars  []PriceBar
}

// NewPriceSeries validates bars and returns a series owning a private copy of them.
// Validation happens once here so the engines can assume well-formed input.
func NewPriceSeries(asset string, bars []PriceBar) (*PriceSeries, error) {
	if asset == "" {
		return nil, fmt.Errorf("%w: empty asset id", ErrInvalidSeries)
	}

	owned := make([]PriceBar, len(bars))
	copy(owned, bars)

	for i, bar := range owned {
		if err := bar.Validate(); err != nil {
			return nil, fmt.Errorf("%s bar %d: %w", asset, i, err)
		}
		if i > 0 && !bar.Time.After(owned[i-1].Time) {
			return nil, fmt.Errorf("%w: %s bar %d at %s is not after %s",
				ErrInvalidSeries, asset, i, bar.Time.Format(time.DateOnly), owned[i-1].Time.Format(time.DateOnly))
		}
	}

	return &PriceSeries{asset: asset, bars: owned}, nil
}

// Asset returns the asset identifier
func (s *PriceSeries) Asset() string { return s.asset }

// Len returns the number of bars
func (s *PriceSeries) Len() int { return len(s.bars) }

// Bar returns the i-th bar
func (s *PriceSeries) Bar(i int) PriceBar { return s.bars[i] }

// Last returns the most recent bar. It panics on an empty series.
func (s *PriceSeries) Last() PriceBar { return s.bars[len(s.bars)-1] }

// Closes returns a copy of the close prices in order
func (s *PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.Close
	}
	return out
}

// Times returns a copy of the bar timestamps in order
func (s *PriceSeries) Times() []time.Time {
	out := make([]time.Time, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.Time
	}
	return out
}

// Bars returns a copy of the underlying bars
func (s *PriceSeries) Bars() []PriceBar {
	out := make([]PriceBar, len(s.bars))
	copy(out, s.bars)
	return out
}

// Version returns the version stamp of the series
func (s *PriceSeries) Version() SeriesVersion {
	v := SeriesVersion{Asset: s.asset, Bars: len(s.bars)}
	if len(s.bars) > 0 {
		v.LastTimestamp = s.bars[len(s.bars)-1].Time
	}
	return v
}

// Since returns a new series holding only bars at or after t
func (s *PriceSeries) Since(t time.Time) *PriceSeries {
	idx := len(s.bars)
	for i, b := range s.bars {
		if !b.Time.Before(t) {
			idx = i
			break
		}
	}
	out := make([]PriceBar, len(s.bars)-idx)
	copy(out, s.bars[idx:])
	return &PriceSeries{asset: s.asset, bars: out}
}
