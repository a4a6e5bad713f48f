package history

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/aristath/portfolio-analytics/internal/domain"
)

const (
	maxPriceChangePercent = 1000.0 // >1000% day-over-day change is a spike
	minPriceChangePercent = -90.0  // <-90% day-over-day change is a crash
)

// Rejection records a bar dropped at ingestion
type Rejection struct {
	Bar    domain.PriceBar `json:"bar"`
	Reason string          `json:"reason"`
}

// BarValidator cleans raw provider bars before they become a PriceSeries
type BarValidator struct {
	checkJumps bool
	log        zerolog.Logger
}

// NewBarValidator creates a validator. With checkJumps, bars whose close
// moves more than +1000% or -90% against the previous accepted close are
// rejected as provider glitches.
func NewBarValidator(checkJumps bool, log zerolog.Logger) *BarValidator {
	return &BarValidator{
		checkJumps: checkJumps,
		log:        log.With().Str("component", "bar_validator").Logger(),
	}
}

// ValidateBar checks one bar against the previously accepted one.
// Returns (isValid, reason).
func (v *BarValidator) ValidateBar(bar domain.PriceBar, prev *domain.PriceBar) (bool, string) {
	if err := bar.Validate(); err != nil {
		return false, err.Error()
	}
	if prev == nil {
		return true, ""
	}
	if !bar.Time.After(prev.Time) {
		return false, "timestamp_not_increasing"
	}

	if v.checkJumps && prev.Close > 0 {
		change := (bar.Close - prev.Close) / prev.Close * 100
		if change > maxPriceChangePercent {
			return false, "spike_detected"
		}
		if change < minPriceChangePercent {
			return false, "crash_detected"
		}
	}
	return true, ""
}

// Clean sorts bars by time, keeps the last bar of duplicated timestamps and
// drops invalid bars. The result is safe to pass to domain.NewPriceSeries.
func (v *BarValidator) Clean(asset string, bars []domain.PriceBar) ([]domain.PriceBar, []Rejection) {
	sorted := make([]domain.PriceBar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	deduped := sorted[:0]
	for _, b := range sorted {
		if n := len(deduped); n > 0 && deduped[n-1].Time.Equal(b.Time) {
			deduped[n-1] = b
			continue
		}
		deduped = append(deduped, b)
	}

	var accepted []domain.PriceBar
	var rejected []Rejection
	for _, b := range deduped {
		var prev *domain.PriceBar
		if n := len(accepted); n > 0 {
			prev = &accepted[n-1]
		}
		if ok, reason := v.ValidateBar(b, prev); !ok {
			rejected = append(rejected, Rejection{Bar: b, Reason: reason})
			v.log.Warn().
				Str("asset", asset).
				Time("date", b.Time).
				Str("reason", reason).
				Msg("Rejected price bar")
			continue
		}
		accepted = append(accepted, b)
	}
	return accepted, rejected
}
