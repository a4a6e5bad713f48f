package portfolio

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/portfolio-analytics/internal/domain"
	"github.com/aristath/portfolio-analytics/internal/modules/indicators"
	"github.com/aristath/portfolio-analytics/internal/modules/risk"
)

// Metric names used in diagnostics
const (
	MetricValuation = "valuation"
	MetricReturns   = "portfolio_returns"
	MetricCorrelate = "correlation"
)

// Options configures the aggregator
type Options struct {
	Workers    int
	Indicators indicators.Params
}

// Input is everything one aggregation needs, already materialized
type Input struct {
	Positions []domain.Position
	// Prices overrides the latest close of a series as the current price
	Prices    map[string]float64
	Series    map[string]*domain.PriceSeries
	Benchmark *domain.PriceSeries
	AsOf      time.Time
}

// AssetAnalysis is the per-asset output of the worker pool
type AssetAnalysis struct {
	Asset       string                   `json:"asset"`
	Indicators  []domain.IndicatorResult `json:"indicators"`
	Signal      indicators.Signal        `json:"signal"`
	Risk        domain.RiskProfile       `json:"risk"`
	Returns     domain.ReturnSeries      `json:"-"`
	Diagnostics []domain.Diagnostic      `json:"diagnostics,omitempty"`
}

// Report is the full result of one aggregation. Every field is a plain
// record and safe to serialize.
type Report struct {
	ID           string                              `json:"id"`
	Snapshot     domain.PortfolioSnapshot            `json:"snapshot"`
	Indicators   map[string][]domain.IndicatorResult `json:"indicators"`
	AssetRisk    map[string]domain.RiskProfile       `json:"asset_risk"`
	Signals      map[string]indicators.Signal        `json:"signals"`
	Correlations *risk.CorrelationMatrix             `json:"correlations,omitempty"`
	Diagnostics  []domain.Diagnostic                 `json:"diagnostics,omitempty"`
}

// Aggregator combines positions, prices and per-asset analysis into a
// PortfolioSnapshot. It keeps no state between calls.
type Aggregator struct {
	indicators *indicators.Engine
	risk       *risk.Engine
	pool       *WorkerPool
	opts       Options
	log        zerolog.Logger
}

// NewAggregator creates a new portfolio aggregator
func NewAggregator(ind *indicators.Engine, rsk *risk.Engine, opts Options, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		indicators: ind,
		risk:       rsk,
		pool:       NewWorkerPool(opts.Workers),
		opts:       opts,
		log:        log.With().Str("component", "portfolio_aggregator").Logger(),
	}
}

// Analyze computes indicators, the technical signal and the risk profile of one asset
func (a *Aggregator) Analyze(series *domain.PriceSeries, benchmark *domain.ReturnSeries) AssetAnalysis {
	res := AssetAnalysis{Asset: series.Asset()}

	res.Indicators, res.Diagnostics = a.indicators.Compute(series, a.opts.Indicators)
	res.Signal = a.indicators.Summarize(series)
	res.Returns = domain.Returns(series)
	res.Risk = a.risk.Profile(series.Asset(), res.Returns, benchmark)
	res.Diagnostics = append(res.Diagnostics, res.Risk.Diagnostics...)

	return res
}

// Snapshot values the portfolio, analyzes every asset in parallel and builds
// the portfolio risk profile. Problems with single assets become diagnostics;
// only a cancelled context fails the call.
func (a *Aggregator) Snapshot(ctx context.Context, in Input) (Report, error) {
	asOf := in.AsOf
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	holdings, diags := Valuate(in.Positions, in.Prices, in.Series)
	snap := Summarize(holdings)
	snap.ID = uuid.New().String()
	snap.AsOf = asOf
	snap.Diagnostics = diags

	var benchReturns *domain.ReturnSeries
	if in.Benchmark != nil {
		r := domain.Returns(in.Benchmark)
		benchReturns = &r
	} else {
		snap.Diagnostics = append(snap.Diagnostics, domain.Diagnostic{
			Asset:   domain.PortfolioSubject,
			Metric:  risk.MetricBeta,
			Code:    domain.CodeMissingSeries,
			Message: "no benchmark series",
		})
	}

	assets := make([]string, 0, len(in.Series))
	for asset, s := range in.Series {
		if s != nil {
			assets = append(assets, asset)
		}
	}
	sort.Strings(assets)
	batch := make([]*domain.PriceSeries, len(assets))
	for i, asset := range assets {
		batch[i] = in.Series[asset]
	}

	analyses := a.pool.AnalyzeBatch(ctx, batch, func(s *domain.PriceSeries) AssetAnalysis {
		return a.Analyze(s, benchReturns)
	})
	if err := ctx.Err(); err != nil {
		return Report{}, fmt.Errorf("portfolio snapshot cancelled: %w", err)
	}

	report := Report{
		ID:         snap.ID,
		Indicators: make(map[string][]domain.IndicatorResult, len(analyses)),
		AssetRisk:  make(map[string]domain.RiskProfile, len(analyses)),
		Signals:    make(map[string]indicators.Signal, len(analyses)),
	}
	returns := make(map[string]domain.ReturnSeries, len(analyses))
	for _, an := range analyses {
		report.Indicators[an.Asset] = an.Indicators
		report.AssetRisk[an.Asset] = an.Risk
		report.Signals[an.Asset] = an.Signal
		returns[an.Asset] = an.Returns
		report.Diagnostics = append(report.Diagnostics, an.Diagnostics...)
	}

	portReturns, retDiags := PortfolioReturns(snap.Weights, returns)
	snap.Diagnostics = append(snap.Diagnostics, retDiags...)
	snap.Risk = a.risk.Profile(domain.PortfolioSubject, portReturns, benchReturns)
	snap.Diagnostics = append(snap.Diagnostics, snap.Risk.Diagnostics...)

	if len(returns) >= 2 {
		corr, err := a.risk.CorrelationMatrix(returns)
		if err != nil {
			report.Diagnostics = append(report.Diagnostics, domain.DiagnosticFromError(domain.PortfolioSubject, MetricCorrelate, err))
		} else {
			report.Correlations = &corr
		}
	}

	for _, d := range snap.Diagnostics {
		a.log.Warn().Str("asset", d.Asset).Str("metric", d.Metric).Str("code", d.Code).Msg(d.Message)
	}

	report.Snapshot = snap
	all := make([]domain.Diagnostic, 0, len(snap.Diagnostics)+len(report.Diagnostics))
	all = append(all, snap.Diagnostics...)
	report.Diagnostics = append(all, report.Diagnostics...)
	return report, nil
}

// Valuate turns positions into holdings. Positions of the same asset are
// merged. The current price is the explicit price if given, else the last
// close of the asset's series; a position with neither is kept with
// PriceKnown false and flagged.
func Valuate(positions []domain.Position, prices map[string]float64, series map[string]*domain.PriceSeries) ([]domain.Holding, []domain.Diagnostic) {
	var diags []domain.Diagnostic
	byAsset := make(map[string]*domain.Holding)
	var order []string

	for _, p := range positions {
		if p.Quantity <= 0 || math.IsNaN(p.Quantity) || math.IsInf(p.Quantity, 0) {
			diags = append(diags, domain.Diagnostic{
				Asset:   p.Asset,
				Metric:  MetricValuation,
				Code:    domain.CodeInvalidPosition,
				Message: fmt.Sprintf("quantity %v is not positive", p.Quantity),
			})
			continue
		}
		h, ok := byAsset[p.Asset]
		if !ok {
			h = &domain.Holding{Asset: p.Asset}
			byAsset[p.Asset] = h
			order = append(order, p.Asset)
		}
		h.Quantity += p.Quantity
		h.CostBasis += p.Quantity * p.CostBasisPrice
	}
	sort.Strings(order)

	holdings := make([]domain.Holding, 0, len(order))
	for _, asset := range order {
		h := byAsset[asset]
		price, known := currentPrice(asset, prices, series)
		if !known {
			diags = append(diags, domain.DiagnosticFromError(asset, MetricValuation,
				fmt.Errorf("%w for %s, excluded from valuation", domain.ErrUnknownPrice, asset)))
			holdings = append(holdings, *h)
			continue
		}
		h.Price = price
		h.PriceKnown = true
		h.MarketValue = h.Quantity * price
		h.UnrealizedGain = h.MarketValue - h.CostBasis
		holdings = append(holdings, *h)
	}
	return holdings, diags
}

func currentPrice(asset string, prices map[string]float64, series map[string]*domain.PriceSeries) (float64, bool) {
	if p, ok := prices[asset]; ok {
		if p >= 0 && !math.IsNaN(p) && !math.IsInf(p, 0) {
			return p, true
		}
		return 0, false
	}
	if s, ok := series[asset]; ok && s != nil && s.Len() > 0 {
		return s.Last().Close, true
	}
	return 0, false
}

// Summarize totals holdings and assigns weights. Weights cover only
// holdings with a known price; all are 0 when the total value is 0.
func Summarize(holdings []domain.Holding) domain.PortfolioSnapshot {
	snap := domain.PortfolioSnapshot{
		Holdings: make([]domain.Holding, len(holdings)),
		Weights:  make(map[string]float64),
	}

	for _, h := range holdings {
		if !h.PriceKnown {
			continue
		}
		snap.TotalMarketValue += h.MarketValue
		snap.TotalCostBasis += h.CostBasis
	}
	snap.UnrealizedGain = snap.TotalMarketValue - snap.TotalCostBasis
	if snap.TotalCostBasis > 0 {
		snap.UnrealizedGainPct = domain.DefinedMetric(snap.UnrealizedGain / snap.TotalCostBasis)
	} else {
		snap.UnrealizedGainPct = domain.DegenerateMetric(domain.DetailZeroCostBasis)
	}

	for i, h := range holdings {
		if h.PriceKnown {
			if snap.TotalMarketValue > 0 {
				h.Weight = h.MarketValue / snap.TotalMarketValue
			}
			snap.Weights[h.Asset] = h.Weight
		}
		snap.Holdings[i] = h
	}
	return snap
}

// PortfolioReturns is the fixed-weight approximation of the portfolio return
// series: at each timestamp shared by every weighted asset, the sum of asset
// returns times current weights. Weight drift inside the window is ignored.
// Assets without returns are dropped and the rest renormalized.
func PortfolioReturns(weights map[string]float64, returns map[string]domain.ReturnSeries) (domain.ReturnSeries, []domain.Diagnostic) {
	var diags []domain.Diagnostic
	assets := make([]string, 0, len(weights))
	for asset, w := range weights {
		if w <= 0 {
			continue
		}
		if r, ok := returns[asset]; !ok || r.Len() == 0 {
			diags = append(diags, domain.Diagnostic{
				Asset:   asset,
				Metric:  MetricReturns,
				Code:    domain.CodeMissingSeries,
				Message: "no return series, excluded from portfolio returns",
			})
			continue
		}
		assets = append(assets, asset)
	}
	sort.Strings(assets)

	empty := domain.NewReturnSeries(domain.PortfolioSubject, domain.SeriesVersion{Asset: domain.PortfolioSubject}, nil)
	if len(assets) == 0 {
		return empty, diags
	}

	total := 0.0
	series := make([]domain.ReturnSeries, len(assets))
	for i, asset := range assets {
		total += weights[asset]
		series[i] = returns[asset]
	}

	times := domain.CommonTimes(series...)
	points := make([]domain.ReturnPoint, len(times))
	for i, t := range times {
		points[i].Time = t
	}
	for i, asset := range assets {
		values, _ := series[i].ValuesAt(times)
		w := weights[asset] / total
		for j, v := range values {
			points[j].Value += w * v
		}
	}

	version := domain.SeriesVersion{Asset: domain.PortfolioSubject}
	if len(times) > 0 {
		version.LastTimestamp = times[len(times)-1]
		version.Bars = len(times) + 1
	}
	return domain.NewReturnSeries(domain.PortfolioSubject, version, points), diags
}
