package risk

import (
	"github.com/aristath/portfolio-analytics/internal/domain"
)

// Metric names used in diagnostics
const (
	MetricBeta       = "beta"
	MetricVolatility = "volatility"
	MetricProfile    = "risk_profile"
)

func undefinedProfile(p domain.RiskProfile, reason string) domain.RiskProfile {
	u := domain.UndefinedMetric(reason)
	p.Beta, p.Alpha = u, u
	p.SharpeRatio, p.SortinoRatio = u, u
	p.Volatility, p.AnnualReturn = u, u
	p.MaxDrawdown, p.ValueAtRisk95, p.CVaR95 = u, u, u
	p.InsufficientData = true
	return p
}

// Profile assembles the full RiskProfile of subject. Volatility, the ratios,
// drawdown and VaR use the subject's own returns; fewer than MinSampleSize of
// them mark the whole profile insufficient_data. Beta and alpha use the
// timestamps shared with benchmark. Too small an overlap leaves them
// misaligned_series, and a flat benchmark leaves them insufficient_data;
// both flag the profile while the benchmark-free metrics are still reported.
func (e *Engine) Profile(subject string, returns domain.ReturnSeries, benchmark *domain.ReturnSeries) domain.RiskProfile {
	p := domain.RiskProfile{
		Subject: subject,
		Version: returns.Version,
	}
	if benchmark != nil {
		p.Benchmark = benchmark.Asset
	}

	values := returns.Values()
	p.SampleSize = len(values)

	if p.SampleSize < e.opts.MinSampleSize {
		err := domain.NewInsufficientData("risk("+subject+")", e.opts.MinSampleSize, p.SampleSize)
		p = undefinedProfile(p, domain.ReasonInsufficientData)
		p.Diagnostics = append(p.Diagnostics, domain.DiagnosticFromError(subject, MetricProfile, err))
		e.log.Debug().Str("subject", subject).Int("sample_size", p.SampleSize).Msg("Risk profile has insufficient data")
		return p
	}

	factor := e.opts.AnnualizationFactor
	rf := e.opts.RiskFreeRatePerPeriod

	if benchmark != nil {
		ba, err := e.BetaAlpha(returns, *benchmark, rf)
		p.Beta, p.Alpha = ba.Beta, ba.Alpha
		p.BenchmarkOverlap = ba.SampleSize
		if ba.InsufficientData {
			p.InsufficientData = true
		}
		if err != nil {
			p.Diagnostics = append(p.Diagnostics, domain.DiagnosticFromError(subject, MetricBeta, err))
		} else if ba.Beta.Detail == domain.DetailZeroVariance {
			p.Diagnostics = append(p.Diagnostics, domain.Diagnostic{
				Asset:   subject,
				Metric:  MetricBeta,
				Code:    domain.CodeDegenerate,
				Message: "benchmark " + benchmark.Asset + " has zero variance",
			})
		}
	} else {
		p.Beta = domain.UndefinedMetric(domain.ReasonInsufficientData)
		p.Alpha = domain.UndefinedMetric(domain.ReasonInsufficientData)
	}

	// SampleSize >= MinSampleSize >= 2 here, so volatility cannot fail
	p.Volatility, _ = e.Volatility(values, factor)
	p.SharpeRatio = e.Sharpe(values, rf, factor)
	p.SortinoRatio = e.Sortino(values, rf, factor)
	p.AnnualReturn = e.AnnualReturn(values, factor)
	p.MaxDrawdown = e.MaxDrawdown(values)
	p.ValueAtRisk95 = e.ValueAtRisk(values, e.opts.VaRConfidence)
	p.CVaR95 = e.ConditionalVaR(values, e.opts.VaRConfidence)

	return p
}
