package optimization

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/aristath/portfolio-analytics/internal/domain"
)

// Strategy selects the objective of the mean-variance optimizer
type Strategy string

const (
	// StrategyMinVolatility minimizes w'Σw
	StrategyMinVolatility Strategy = "min_volatility"
	// StrategyEfficientReturn minimizes w'Σw subject to μ'w = target
	StrategyEfficientReturn Strategy = "efficient_return"
	// StrategyMaxSharpe maximizes (μ'w - rf) / sqrt(w'Σw)
	StrategyMaxSharpe Strategy = "max_sharpe"
)

// Bound is the allowed [Min, Max] range of one weight
type Bound struct {
	Min float64
	Max float64
}

const penaltyWeight = 1000.0

// MVOptimizer solves long-only mean-variance problems. Constraints are
// handled with quadratic penalties and weights are projected onto their
// bounds before every evaluation.
//
// Mathematical formulation:
//   - min_volatility: minimize w'Σw
//   - efficient_return: minimize w'Σw subject to μ'w = target
//   - max_sharpe: maximize (μ'w - rf) / sqrt(w'Σw)
//
// Constraints:
//   - Σw = 1
//   - lower_i ≤ w_i ≤ upper_i
type MVOptimizer struct{}

// NewMVOptimizer creates a new mean-variance optimizer
func NewMVOptimizer() *MVOptimizer {
	return &MVOptimizer{}
}

// Optimize returns weights in the order of mu. mu and sigma must already be
// annualized. target is required for efficient_return and is the risk-free
// rate for max_sharpe.
func (mvo *MVOptimizer) Optimize(mu []float64, sigma *mat.SymDense, bounds []Bound, strategy Strategy, target float64) ([]float64, error) {
	n := len(mu)
	if n == 0 {
		return nil, fmt.Errorf("%w: no assets provided", domain.ErrInvalidParameter)
	}
	if r, _ := sigma.Dims(); r != n {
		return nil, fmt.Errorf("covariance matrix size %d doesn't match asset count %d", r, n)
	}
	if len(bounds) != n {
		return nil, fmt.Errorf("bounds size %d doesn't match asset count %d", len(bounds), n)
	}
	if n == 1 {
		return []float64{1}, nil
	}

	var problem optimize.Problem
	switch strategy {
	case StrategyMinVolatility:
		problem = mvo.minVolatilityProblem(sigma, bounds)
	case StrategyEfficientReturn:
		problem = mvo.efficientReturnProblem(mu, sigma, bounds, target)
	case StrategyMaxSharpe:
		problem = mvo.maxSharpeProblem(mu, sigma, bounds, target)
	default:
		return nil, fmt.Errorf("%w: unknown strategy %q", domain.ErrInvalidParameter, strategy)
	}

	return mvo.solve(problem, bounds)
}

func (mvo *MVOptimizer) minVolatilityProblem(sigma *mat.SymDense, bounds []Bound) optimize.Problem {
	n := len(bounds)
	return optimize.Problem{
		Func: func(x []float64) float64 {
			xProj := projectToBounds(x, bounds)
			sum := sumOf(xProj)
			return quadForm(xProj, sigma) + penaltyWeight*(sum-1)*(sum-1)
		},
		Grad: func(grad, x []float64) {
			xProj := projectToBounds(x, bounds)
			sum := sumOf(xProj)
			for i := 0; i < n; i++ {
				grad[i] = 0
				for j := 0; j < n; j++ {
					grad[i] += 2 * sigma.At(i, j) * xProj[j]
				}
				grad[i] += 2 * penaltyWeight * (sum - 1)
			}
		},
	}
}

func (mvo *MVOptimizer) efficientReturnProblem(mu []float64, sigma *mat.SymDense, bounds []Bound, target float64) optimize.Problem {
	n := len(bounds)
	return optimize.Problem{
		Func: func(x []float64) float64 {
			xProj := projectToBounds(x, bounds)
			sum := sumOf(xProj)
			ret := dot(mu, xProj)
			obj := quadForm(xProj, sigma)
			obj += penaltyWeight * (sum - 1) * (sum - 1)
			obj += penaltyWeight * (ret - target) * (ret - target)
			return obj
		},
		Grad: func(grad, x []float64) {
			xProj := projectToBounds(x, bounds)
			sum := sumOf(xProj)
			ret := dot(mu, xProj)
			for i := 0; i < n; i++ {
				grad[i] = 0
				for j := 0; j < n; j++ {
					grad[i] += 2 * sigma.At(i, j) * xProj[j]
				}
				grad[i] += 2 * penaltyWeight * (sum - 1)
				grad[i] += 2 * penaltyWeight * (ret - target) * mu[i]
			}
		},
	}
}

func (mvo *MVOptimizer) maxSharpeProblem(mu []float64, sigma *mat.SymDense, bounds []Bound, riskFree float64) optimize.Problem {
	n := len(bounds)
	return optimize.Problem{
		Func: func(x []float64) float64 {
			xProj := projectToBounds(x, bounds)
			sum := sumOf(xProj)
			stdDev := math.Sqrt(math.Max(quadForm(xProj, sigma), 1e-10))
			obj := -(dot(mu, xProj) - riskFree*sum) / stdDev
			return obj + penaltyWeight*(sum-1)*(sum-1)
		},
		Grad: func(grad, x []float64) {
			xProj := projectToBounds(x, bounds)
			sum := sumOf(xProj)
			variance := math.Max(quadForm(xProj, sigma), 1e-10)
			stdDev := math.Sqrt(variance)
			excess := dot(mu, xProj) - riskFree*sum
			for i := 0; i < n; i++ {
				var dVariance float64
				for j := 0; j < n; j++ {
					dVariance += 2 * sigma.At(i, j) * xProj[j]
				}
				grad[i] = -(mu[i]-riskFree)/stdDev + excess*dVariance/(2*variance*stdDev)
				grad[i] += 2 * penaltyWeight * (sum - 1)
			}
		},
	}
}

// solve runs BFGS from equal weights and falls back to Nelder-Mead, then
// projects, clips and renormalizes the solution
func (mvo *MVOptimizer) solve(problem optimize.Problem, bounds []Bound) ([]float64, error) {
	n := len(bounds)
	initial := make([]float64, n)
	for i := range initial {
		initial[i] = 1.0 / float64(n)
	}

	result, err := optimize.Minimize(problem, initial, &optimize.Settings{}, &optimize.BFGS{})
	if err != nil || !converged(result.Status) {
		result, err = optimize.Minimize(problem, initial, &optimize.Settings{}, &optimize.NelderMead{})
		if err != nil {
			return nil, fmt.Errorf("optimization failed: %w", err)
		}
	}
	if !converged(result.Status) {
		return nil, fmt.Errorf("optimization did not converge: status=%v", result.Status)
	}

	weights := projectToBounds(result.X, bounds)
	for i, w := range weights {
		weights[i] = math.Max(0, w)
	}
	if sum := sumOf(weights); sum > 1e-10 {
		for i := range weights {
			weights[i] /= sum
		}
	}
	return weights, nil
}

func converged(status optimize.Status) bool {
	switch status {
	case optimize.Success, optimize.GradientThreshold, optimize.FunctionConvergence:
		return true
	}
	return false
}

// projectToBounds clamps every weight into its bound
func projectToBounds(x []float64, bounds []Bound) []float64 {
	proj := make([]float64, len(x))
	for i := range x {
		proj[i] = math.Max(bounds[i].Min, math.Min(bounds[i].Max, x[i]))
	}
	return proj
}

func quadForm(x []float64, sigma *mat.SymDense) float64 {
	v := mat.NewVecDense(len(x), x)
	return mat.Inner(v, sigma, v)
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func sumOf(x []float64) float64 {
	s := 0.0
	for _, v := range x {
		s += v
	}
	return s
}
