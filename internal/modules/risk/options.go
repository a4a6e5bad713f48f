package risk

import (
	"fmt"

	"github.com/aristath/portfolio-analytics/internal/domain"
)

// DefaultMinSampleSize is the fewest aligned returns a profile is computed from
const DefaultMinSampleSize = 20

// Options configures the risk engine
type Options struct {
	MinSampleSize         int
	AnnualizationFactor   float64 // periods per year, 252 for daily bars
	RiskFreeRatePerPeriod float64
	VaRConfidence         float64
}

// DefaultOptions returns daily-data defaults with a zero risk-free rate
func DefaultOptions() Options {
	return Options{
		MinSampleSize:       DefaultMinSampleSize,
		AnnualizationFactor: 252,
		VaRConfidence:       0.95,
	}
}

// WithAnnualRiskFreeRate converts an annual risk-free rate to a per-period one
func (o Options) WithAnnualRiskFreeRate(annual float64) Options {
	if o.AnnualizationFactor > 0 {
		o.RiskFreeRatePerPeriod = annual / o.AnnualizationFactor
	}
	return o
}

// Validate rejects options the engine cannot work with
func (o Options) Validate() error {
	if o.MinSampleSize < 2 {
		return fmt.Errorf("%w: min sample size must be at least 2, got %d", domain.ErrInvalidParameter, o.MinSampleSize)
	}
	if o.AnnualizationFactor <= 0 {
		return fmt.Errorf("%w: annualization factor must be positive, got %v", domain.ErrInvalidParameter, o.AnnualizationFactor)
	}
	if o.VaRConfidence <= 0 || o.VaRConfidence >= 1 {
		return fmt.Errorf("%w: VaR confidence must be in (0, 1), got %v", domain.ErrInvalidParameter, o.VaRConfidence)
	}
	return nil
}
