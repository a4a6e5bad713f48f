// Package analytics orchestrates the engines: it loads positions and price
// history, runs the aggregation and serves per-asset views from the cache.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/portfolio-analytics/internal/cache"
	"github.com/aristath/portfolio-analytics/internal/domain"
	"github.com/aristath/portfolio-analytics/internal/modules/indicators"
	"github.com/aristath/portfolio-analytics/internal/modules/insights"
	"github.com/aristath/portfolio-analytics/internal/modules/optimization"
	"github.com/aristath/portfolio-analytics/internal/modules/portfolio"
	"github.com/aristath/portfolio-analytics/internal/modules/risk"
)

// ErrUnknownAsset is returned when the history store has no bars for an asset
var ErrUnknownAsset = errors.New("unknown asset")

// SeriesLoader loads the recent price history of an asset
type SeriesLoader interface {
	LoadRecent(ctx context.Context, asset string, asOf time.Time, days int) (*domain.PriceSeries, error)
}

// Options configures the service
type Options struct {
	Benchmark    string
	LookbackDays int
	Indicators   indicators.Params
}

// AssetIndicators is the indicator view of one asset
type AssetIndicators struct {
	Asset       string                   `json:"asset"`
	Version     domain.SeriesVersion     `json:"version"`
	Indicators  []domain.IndicatorResult `json:"indicators"`
	Signal      indicators.Signal        `json:"signal"`
	Diagnostics []domain.Diagnostic      `json:"diagnostics,omitempty"`
}

// Insights is the payload handed to the external summariser
type Insights struct {
	Payload insights.Payload `json:"payload"`
	Prompt  string           `json:"prompt"`
}

// Service computes and caches analytics. It holds the latest report for
// readers; every Refresh replaces it.
type Service struct {
	positions  portfolio.PositionReader
	history    SeriesLoader
	aggregator *portfolio.Aggregator
	indicators *indicators.Engine
	risk       *risk.Engine
	optimizer  *optimization.Optimizer
	cache      cache.Cache
	opts       Options
	now        func() time.Time

	mu     sync.RWMutex
	latest *portfolio.Report

	log zerolog.Logger
}

// NewService creates a new analytics service
func NewService(
	positions portfolio.PositionReader,
	history SeriesLoader,
	aggregator *portfolio.Aggregator,
	indicatorEngine *indicators.Engine,
	riskEngine *risk.Engine,
	optimizer *optimization.Optimizer,
	resultCache cache.Cache,
	opts Options,
	log zerolog.Logger,
) *Service {
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = 365
	}
	return &Service{
		positions:  positions,
		history:    history,
		aggregator: aggregator,
		indicators: indicatorEngine,
		risk:       riskEngine,
		optimizer:  optimizer,
		cache:      resultCache,
		opts:       opts,
		now:        func() time.Time { return time.Now().UTC() },
		log:        log.With().Str("service", "analytics").Logger(),
	}
}

// Refresh recomputes the portfolio report from the stores and keeps it as
// the latest report
func (s *Service) Refresh(ctx context.Context) (portfolio.Report, error) {
	in, err := s.loadInput(ctx)
	if err != nil {
		return portfolio.Report{}, err
	}

	report, err := s.aggregator.Snapshot(ctx, in)
	if err != nil {
		return portfolio.Report{}, fmt.Errorf("failed to aggregate portfolio: %w", err)
	}

	s.mu.Lock()
	s.latest = &report
	s.mu.Unlock()

	s.log.Info().
		Str("report_id", report.ID).
		Int("positions", len(in.Positions)).
		Int("series", len(in.Series)).
		Float64("total_value", report.Snapshot.TotalMarketValue).
		Msg("Portfolio report computed")
	return report, nil
}

// Latest returns the last computed report
func (s *Service) Latest() (portfolio.Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return portfolio.Report{}, false
	}
	return *s.latest, true
}

// Snapshot returns the latest report, computing one when none exists yet
func (s *Service) Snapshot(ctx context.Context) (portfolio.Report, error) {
	if report, ok := s.Latest(); ok {
		return report, nil
	}
	return s.Refresh(ctx)
}

// AssetIndicators computes the configured indicators and the technical
// signal of one asset. Results are cached per series version.
func (s *Service) AssetIndicators(ctx context.Context, asset string) (AssetIndicators, error) {
	series, err := s.loadAsset(ctx, asset)
	if err != nil {
		return AssetIndicators{}, err
	}

	key := cache.Key{Asset: series.Asset(), Version: series.Version(), Params: "indicators;" + s.opts.Indicators.Fingerprint()}
	var out AssetIndicators
	if hit := s.cacheGet(ctx, key, &out); hit {
		return out, nil
	}

	out = AssetIndicators{Asset: series.Asset(), Version: series.Version()}
	out.Indicators, out.Diagnostics = s.indicators.Compute(series, s.opts.Indicators)
	out.Signal = s.indicators.Summarize(series)

	s.cacheSet(ctx, key, out)
	return out, nil
}

// AssetRisk builds the risk profile of one asset against the benchmark.
// Results are cached per asset and benchmark version.
func (s *Service) AssetRisk(ctx context.Context, asset string) (domain.RiskProfile, error) {
	series, err := s.loadAsset(ctx, asset)
	if err != nil {
		return domain.RiskProfile{}, err
	}
	bench := s.loadBenchmark(ctx)

	params := fmt.Sprintf("risk;%+v", s.risk.Options())
	var benchReturns *domain.ReturnSeries
	if bench != nil {
		r := domain.Returns(bench)
		benchReturns = &r
		params += ";" + bench.Version().String()
	}

	key := cache.Key{Asset: series.Asset(), Version: series.Version(), Params: params}
	var out domain.RiskProfile
	if hit := s.cacheGet(ctx, key, &out); hit {
		return out, nil
	}

	out = s.risk.Profile(series.Asset(), domain.Returns(series), benchReturns)
	if bench == nil {
		out.Diagnostics = append(out.Diagnostics, domain.Diagnostic{
			Asset:   series.Asset(),
			Metric:  risk.MetricBeta,
			Code:    domain.CodeMissingSeries,
			Message: "no benchmark series",
		})
	}
	s.cacheSet(ctx, key, out)
	return out, nil
}

// Correlations returns the correlation matrix of the latest report
func (s *Service) Correlations(ctx context.Context) (risk.CorrelationMatrix, error) {
	report, err := s.Snapshot(ctx)
	if err != nil {
		return risk.CorrelationMatrix{}, err
	}
	if report.Correlations == nil {
		return risk.CorrelationMatrix{}, domain.NewInsufficientData("correlation", 2, len(report.AssetRisk))
	}
	return *report.Correlations, nil
}

// Optimize proposes weights for the held assets. target is the annual
// return matched by the efficient_return strategy and ignored otherwise.
func (s *Service) Optimize(ctx context.Context, strategy optimization.Strategy, target float64) (optimization.Result, error) {
	in, err := s.loadInput(ctx)
	if err != nil {
		return optimization.Result{}, err
	}

	returns := make(map[string]domain.ReturnSeries, len(in.Series))
	for asset, series := range in.Series {
		returns[asset] = domain.Returns(series)
	}

	switch strategy {
	case optimization.StrategyEfficientReturn:
		return s.optimizer.TargetReturn(returns, target)
	case optimization.StrategyMaxSharpe:
		return s.optimizer.MaxSharpe(returns)
	default:
		return s.optimizer.MinVolatility(returns)
	}
}

// Insights builds the summariser payload and prompt from the latest report
func (s *Service) Insights(ctx context.Context) (Insights, error) {
	report, err := s.Snapshot(ctx)
	if err != nil {
		return Insights{}, err
	}
	payload := insights.BuildPayload(report)
	return Insights{Payload: payload, Prompt: insights.Prompt(payload)}, nil
}

// loadInput reads positions and the price history of every held asset.
// Assets without bars are left out so the aggregator flags them.
func (s *Service) loadInput(ctx context.Context) (portfolio.Input, error) {
	positions, err := s.positions.GetAll(ctx)
	if err != nil {
		return portfolio.Input{}, fmt.Errorf("failed to load positions: %w", err)
	}

	asOf := s.now()
	in := portfolio.Input{
		Positions: positions,
		Series:    make(map[string]*domain.PriceSeries, len(positions)),
		AsOf:      asOf,
	}

	assets := make([]string, 0, len(positions))
	seen := make(map[string]bool, len(positions))
	for _, p := range positions {
		if !seen[p.Asset] {
			seen[p.Asset] = true
			assets = append(assets, p.Asset)
		}
	}
	sort.Strings(assets)

	for _, asset := range assets {
		if err := ctx.Err(); err != nil {
			return portfolio.Input{}, err
		}
		series, err := s.history.LoadRecent(ctx, asset, asOf, s.opts.LookbackDays)
		if err != nil {
			s.log.Warn().Err(err).Str("asset", asset).Msg("Failed to load price history")
			continue
		}
		if series == nil || series.Len() == 0 {
			continue
		}
		in.Series[asset] = series
	}

	in.Benchmark = s.loadBenchmark(ctx)
	return in, nil
}

func (s *Service) loadAsset(ctx context.Context, asset string) (*domain.PriceSeries, error) {
	series, err := s.history.LoadRecent(ctx, asset, s.now(), s.opts.LookbackDays)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", asset, err)
	}
	if series == nil || series.Len() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}
	return series, nil
}

func (s *Service) loadBenchmark(ctx context.Context) *domain.PriceSeries {
	if s.opts.Benchmark == "" {
		return nil
	}
	series, err := s.history.LoadRecent(ctx, s.opts.Benchmark, s.now(), s.opts.LookbackDays)
	if err != nil {
		s.log.Warn().Err(err).Str("benchmark", s.opts.Benchmark).Msg("Failed to load benchmark")
		return nil
	}
	if series == nil || series.Len() == 0 {
		return nil
	}
	return series
}

func (s *Service) cacheGet(ctx context.Context, key cache.Key, dst any) bool {
	if s.cache == nil {
		return false
	}
	hit, err := s.cache.Get(ctx, key, dst)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key.String()).Msg("Cache read failed")
		return false
	}
	return hit
}

func (s *Service) cacheSet(ctx context.Context, key cache.Key, value any) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value); err != nil {
		s.log.Warn().Err(err).Str("key", key.String()).Msg("Cache write failed")
	}
}
