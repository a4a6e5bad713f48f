// Package optimization proposes long-only portfolio weights from the
// historical returns of the held assets.
package optimization

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/portfolio-analytics/internal/domain"
)

// Options configures the optimizer
type Options struct {
	AnnualizationFactor float64
	RiskFreeRate        float64 // annual
	MinSampleSize       int
	MinWeight           float64
	MaxWeight           float64
}

// DefaultOptions returns daily annualization, a 2% risk-free rate and [0, 1] bounds
func DefaultOptions() Options {
	return Options{
		AnnualizationFactor: 252,
		RiskFreeRate:        0.02,
		MinSampleSize:       20,
		MinWeight:           0,
		MaxWeight:           1,
	}
}

// Result is a proposed allocation with its annualized statistics
type Result struct {
	Strategy       Strategy           `json:"strategy"`
	Assets         []string           `json:"assets"`
	Weights        map[string]float64 `json:"weights"`
	ExpectedReturn float64            `json:"expected_return"`
	Volatility     float64            `json:"volatility"`
	SharpeRatio    domain.Metric      `json:"sharpe_ratio"`
	SampleSize     int                `json:"sample_size"`
	Start          time.Time          `json:"start"`
	End            time.Time          `json:"end"`
}

// Optimizer turns return series into mean-variance inputs and solves them
type Optimizer struct {
	opts Options
	mvo  *MVOptimizer
	log  zerolog.Logger
}

// NewOptimizer creates a new optimizer
func NewOptimizer(opts Options, log zerolog.Logger) *Optimizer {
	def := DefaultOptions()
	if opts.AnnualizationFactor <= 0 {
		opts.AnnualizationFactor = def.AnnualizationFactor
	}
	if opts.MinSampleSize < 2 {
		opts.MinSampleSize = def.MinSampleSize
	}
	if opts.MaxWeight <= 0 || opts.MaxWeight > 1 {
		opts.MaxWeight = def.MaxWeight
	}
	if opts.MinWeight < 0 || opts.MinWeight > opts.MaxWeight {
		opts.MinWeight = def.MinWeight
	}
	return &Optimizer{
		opts: opts,
		mvo:  NewMVOptimizer(),
		log:  log.With().Str("component", "optimizer").Logger(),
	}
}

// inputs holds annualized expected returns and covariance over the common timestamps
type inputs struct {
	assets []string
	mu     []float64
	sigma  *mat.SymDense
	times  []time.Time
}

func (o *Optimizer) inputs(returns map[string]domain.ReturnSeries) (inputs, error) {
	assets := make([]string, 0, len(returns))
	for asset := range returns {
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	if len(assets) == 0 {
		return inputs{}, fmt.Errorf("%w: no return series to optimize", domain.ErrInvalidParameter)
	}

	series := make([]domain.ReturnSeries, len(assets))
	for i, asset := range assets {
		series[i] = returns[asset]
	}
	times := domain.CommonTimes(series...)
	if len(times) < o.opts.MinSampleSize {
		return inputs{}, domain.NewInsufficientData("optimization", o.opts.MinSampleSize, len(times))
	}

	data := mat.NewDense(len(times), len(assets), nil)
	mu := make([]float64, len(assets))
	for j, s := range series {
		values, _ := s.ValuesAt(times)
		data.SetCol(j, values)
		mu[j] = stat.Mean(values, nil) * o.opts.AnnualizationFactor
	}

	sigma := mat.NewSymDense(len(assets), nil)
	stat.CovarianceMatrix(sigma, data, nil)
	sigma.ScaleSym(o.opts.AnnualizationFactor, sigma)

	return inputs{assets: assets, mu: mu, sigma: sigma, times: times}, nil
}

func (o *Optimizer) bounds(n int) ([]Bound, error) {
	if o.opts.MinWeight*float64(n) > 1 || o.opts.MaxWeight*float64(n) < 1 {
		return nil, fmt.Errorf("%w: weight bounds [%v, %v] cannot sum to 1 over %d assets",
			domain.ErrInvalidParameter, o.opts.MinWeight, o.opts.MaxWeight, n)
	}
	bounds := make([]Bound, n)
	for i := range bounds {
		bounds[i] = Bound{Min: o.opts.MinWeight, Max: o.opts.MaxWeight}
	}
	return bounds, nil
}

func (o *Optimizer) run(returns map[string]domain.ReturnSeries, strategy Strategy, target float64) (Result, error) {
	in, err := o.inputs(returns)
	if err != nil {
		return Result{}, err
	}
	bounds, err := o.bounds(len(in.assets))
	if err != nil {
		return Result{}, err
	}

	if strategy == StrategyEfficientReturn {
		lo, hi := in.mu[0], in.mu[0]
		for _, m := range in.mu {
			lo, hi = math.Min(lo, m), math.Max(hi, m)
		}
		if target < lo-1e-9 || target > hi+1e-9 {
			return Result{}, fmt.Errorf("%w: target return %.4f outside achievable range [%.4f, %.4f]",
				domain.ErrInvalidParameter, target, lo, hi)
		}
	}

	weights, err := o.mvo.Optimize(in.mu, in.sigma, bounds, strategy, target)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", strategy, err)
	}

	res := Result{
		Strategy:       strategy,
		Assets:         in.assets,
		Weights:        make(map[string]float64, len(in.assets)),
		ExpectedReturn: dot(in.mu, weights),
		Volatility:     math.Sqrt(math.Max(quadForm(weights, in.sigma), 0)),
		SampleSize:     len(in.times),
		Start:          in.times[0],
		End:            in.times[len(in.times)-1],
	}
	for i, asset := range in.assets {
		res.Weights[asset] = weights[i]
	}
	if res.Volatility > 1e-12 {
		res.SharpeRatio = domain.DefinedMetric((res.ExpectedReturn - o.opts.RiskFreeRate) / res.Volatility)
	} else {
		res.SharpeRatio = domain.DegenerateMetric(domain.DetailZeroDeviation)
	}

	o.log.Debug().
		Str("strategy", string(strategy)).
		Int("assets", len(in.assets)).
		Float64("expected_return", res.ExpectedReturn).
		Float64("volatility", res.Volatility).
		Msg("Optimization complete")
	return res, nil
}

// MinVolatility finds the long-only weights with the lowest annualized volatility
func (o *Optimizer) MinVolatility(returns map[string]domain.ReturnSeries) (Result, error) {
	return o.run(returns, StrategyMinVolatility, 0)
}

// TargetReturn finds the lowest-volatility weights whose annualized expected
// return equals target
func (o *Optimizer) TargetReturn(returns map[string]domain.ReturnSeries, target float64) (Result, error) {
	return o.run(returns, StrategyEfficientReturn, target)
}

// MaxSharpe finds the weights with the highest annualized Sharpe ratio
func (o *Optimizer) MaxSharpe(returns map[string]domain.ReturnSeries) (Result, error) {
	return o.run(returns, StrategyMaxSharpe, o.opts.RiskFreeRate)
}
