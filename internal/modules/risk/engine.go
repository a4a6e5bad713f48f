// Package risk computes return-based risk and performance statistics.
package risk

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/aristath/portfolio-analytics/internal/domain"
	"github.com/aristath/portfolio-analytics/pkg/formulas"
)

// Standard deviations at or below this are treated as zero
const degenerateEpsilon = 1e-12

// Engine computes risk metrics. It holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	opts Options
	log  zerolog.Logger
}

// NewEngine creates a risk engine. Invalid options fall back to defaults.
func NewEngine(opts Options, log zerolog.Logger) *Engine {
	log = log.With().Str("component", "risk_engine").Logger()
	if err := opts.Validate(); err != nil {
		log.Warn().Err(err).Msg("Invalid risk options, using defaults")
		rf := opts.RiskFreeRatePerPeriod
		opts = DefaultOptions()
		opts.RiskFreeRatePerPeriod = rf
	}
	return &Engine{opts: opts, log: log}
}

// Options returns the engine configuration
func (e *Engine) Options() Options { return e.opts }

// Volatility is the sample standard deviation of returns scaled by
// sqrt(annualizationFactor). It needs at least 2 returns.
func (e *Engine) Volatility(returns []float64, annualizationFactor float64) (domain.Metric, error) {
	if len(returns) < 2 {
		return domain.UndefinedMetric(domain.ReasonInsufficientData), domain.NewInsufficientData("volatility", 2, len(returns))
	}
	return domain.DefinedMetric(formulas.AnnualizedVolatility(returns, annualizationFactor)), nil
}

// BetaAlpha holds the regression of asset returns on benchmark returns
type BetaAlpha struct {
	Beta             domain.Metric `json:"beta"`
	Alpha            domain.Metric `json:"alpha"`        // per period
	JensenAlpha      domain.Metric `json:"jensen_alpha"` // per period, on excess returns
	SampleSize       int           `json:"sample_size"`
	InsufficientData bool          `json:"insufficient_data"`
}

func undefinedBetaAlpha(reason string, n int) BetaAlpha {
	return BetaAlpha{
		Beta:             domain.UndefinedMetric(reason),
		Alpha:            domain.UndefinedMetric(reason),
		JensenAlpha:      domain.UndefinedMetric(reason),
		SampleSize:       n,
		InsufficientData: true,
	}
}

// BetaAlpha aligns both series on their common timestamps and regresses the
// asset on the benchmark:
//
//	beta  = cov(asset, bench) / var(bench)
//	alpha = mean(asset) - beta*mean(bench)
//
// Fewer than MinSampleSize common returns, or a flat benchmark, give an
// insufficient_data result. The error explains a short overlap.
func (e *Engine) BetaAlpha(asset, benchmark domain.ReturnSeries, riskFreePerPeriod float64) (BetaAlpha, error) {
	av, bv, _ := domain.Align(asset, benchmark)
	n := len(av)
	required := e.opts.MinSampleSize

	if n < required {
		res := undefinedBetaAlpha(domain.ReasonInsufficientData, n)
		if asset.Len() >= required && benchmark.Len() >= required {
			res.Beta.Reason = domain.ReasonMisaligned
			res.Alpha.Reason = domain.ReasonMisaligned
			res.JensenAlpha.Reason = domain.ReasonMisaligned
			return res, &domain.MisalignedSeriesError{
				Asset: asset.Asset, Benchmark: benchmark.Asset, Overlap: n, Required: required,
			}
		}
		return res, domain.NewInsufficientData("beta("+asset.Asset+")", required, n)
	}

	benchVar := formulas.Variance(bv)
	if benchVar <= degenerateEpsilon*degenerateEpsilon {
		e.log.Debug().Str("asset", asset.Asset).Str("benchmark", benchmark.Asset).Msg("Flat benchmark, beta undefined")
		res := undefinedBetaAlpha(domain.ReasonInsufficientData, n)
		res.Beta.Detail = domain.DetailZeroVariance
		res.Alpha.Detail = domain.DetailZeroVariance
		res.JensenAlpha.Detail = domain.DetailZeroVariance
		return res, nil
	}

	beta := formulas.Covariance(av, bv) / benchVar
	alpha := formulas.Mean(av) - beta*formulas.Mean(bv)
	jensen := (formulas.Mean(av) - riskFreePerPeriod) - beta*(formulas.Mean(bv)-riskFreePerPeriod)

	return BetaAlpha{
		Beta:        domain.DefinedMetric(beta),
		Alpha:       domain.DefinedMetric(alpha),
		JensenAlpha: domain.DefinedMetric(jensen),
		SampleSize:  n,
	}, nil
}

// Sharpe is mean(excess)/stdev(excess)*sqrt(annualizationFactor).
// Zero deviation is insufficient_data, never infinite.
func (e *Engine) Sharpe(returns []float64, riskFreePerPeriod, annualizationFactor float64) domain.Metric {
	if len(returns) < 2 {
		return domain.UndefinedMetric(domain.ReasonInsufficientData)
	}

	excess := formulas.Subtract(returns, riskFreePerPeriod)
	sd := formulas.StdDev(excess)
	if sd <= degenerateEpsilon {
		return domain.DegenerateMetric(domain.DetailZeroDeviation)
	}
	return domain.DefinedMetric(formulas.Mean(excess) / sd * math.Sqrt(annualizationFactor))
}

// Sortino uses the Sharpe numerator over the downside deviation
// sqrt(mean(min(excess, 0)^2)), taken over every period. A series with no
// negative excess return, or with no variation at all, is insufficient_data.
func (e *Engine) Sortino(returns []float64, riskFreePerPeriod, annualizationFactor float64) domain.Metric {
	if len(returns) < 2 {
		return domain.UndefinedMetric(domain.ReasonInsufficientData)
	}

	excess := formulas.Subtract(returns, riskFreePerPeriod)
	if formulas.StdDev(excess) <= degenerateEpsilon {
		return domain.DegenerateMetric(domain.DetailZeroDeviation)
	}

	sumSq := 0.0
	for _, r := range excess {
		if r < 0 {
			sumSq += r * r
		}
	}
	downside := math.Sqrt(sumSq / float64(len(excess)))
	if downside <= degenerateEpsilon {
		return domain.DegenerateMetric(domain.DetailNoDownside)
	}
	return domain.DefinedMetric(formulas.Mean(excess) / downside * math.Sqrt(annualizationFactor))
}

// MaxDrawdown is the deepest peak-to-trough decline of the compounded
// return path, as a positive fraction
func (e *Engine) MaxDrawdown(returns []float64) domain.Metric {
	dd := formulas.CalculateDrawdownMetrics(formulas.CumulativeValues(returns))
	if len(returns) < 2 || dd == nil {
		return domain.UndefinedMetric(domain.ReasonInsufficientData)
	}
	return domain.DefinedMetric(dd.MaxDrawdown)
}

// ValueAtRisk is the historical VaR at confidence, as a return (losses negative)
func (e *Engine) ValueAtRisk(returns []float64, confidence float64) domain.Metric {
	if len(returns) < e.opts.MinSampleSize {
		return domain.UndefinedMetric(domain.ReasonInsufficientData)
	}
	return domain.DefinedMetric(formulas.CalculateVaR(returns, confidence))
}

// ConditionalVaR is the mean return in the tail beyond VaR
func (e *Engine) ConditionalVaR(returns []float64, confidence float64) domain.Metric {
	if len(returns) < e.opts.MinSampleSize {
		return domain.UndefinedMetric(domain.ReasonInsufficientData)
	}
	return domain.DefinedMetric(formulas.CalculateCVaR(returns, confidence))
}

// AnnualReturn is the compound annual growth rate of returns
func (e *Engine) AnnualReturn(returns []float64, annualizationFactor float64) domain.Metric {
	if len(returns) < 2 {
		return domain.UndefinedMetric(domain.ReasonInsufficientData)
	}
	return domain.DefinedMetric(formulas.CalculateAnnualReturn(returns, annualizationFactor))
}
