package optimization

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/portfolio-analytics/internal/domain"
)

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// patterned builds drift + amp*p(i) where p is a ±1 pattern of the given period.
// Period 2 and period 4 patterns are uncorrelated over multiples of 4 points.
func patterned(asset string, n int, drift, amp float64, period int) domain.ReturnSeries {
	points := make([]domain.ReturnPoint, n)
	for i := range points {
		sign := 1.0
		if (i/(period/2))%2 == 1 {
			sign = -1
		}
		points[i] = domain.ReturnPoint{Time: start.AddDate(0, 0, i+1), Value: drift + amp*sign}
	}
	return domain.NewReturnSeries(asset, domain.SeriesVersion{Asset: asset}, points)
}

func newTestOptimizer() *Optimizer {
	return NewOptimizer(DefaultOptions(), zerolog.New(nil).Level(zerolog.Disabled))
}

func twoUncorrelated() map[string]domain.ReturnSeries {
	return map[string]domain.ReturnSeries{
		"LOW":  patterned("LOW", 40, 0.001, 0.01, 2),
		"HIGH": patterned("HIGH", 40, 0, 0.02, 4),
	}
}

func TestOptimizer_MinVolatilityFavorsLowerVariance(t *testing.T) {
	res, err := newTestOptimizer().MinVolatility(twoUncorrelated())
	require.NoError(t, err)

	assert.Equal(t, StrategyMinVolatility, res.Strategy)
	assert.Equal(t, []string{"HIGH", "LOW"}, res.Assets)
	assert.Equal(t, 40, res.SampleSize)
	assert.InDelta(t, 1.0, res.Weights["LOW"]+res.Weights["HIGH"], 1e-6)
	assert.GreaterOrEqual(t, res.Weights["HIGH"], 0.0)

	// Uncorrelated assets: w_low = var_high / (var_low + var_high) = 0.8
	assert.Greater(t, res.Weights["LOW"], res.Weights["HIGH"])
	assert.InDelta(t, 0.8, res.Weights["LOW"], 0.02)
	assert.Greater(t, res.Volatility, 0.0)
	assert.True(t, res.SharpeRatio.Defined)
}

func TestOptimizer_TargetReturn(t *testing.T) {
	opt := newTestOptimizer()

	// LOW earns 0.001 per period (0.252 annualized), HIGH earns nothing
	res, err := opt.TargetReturn(twoUncorrelated(), 0.126)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, res.Weights["LOW"], 0.02)
	assert.InDelta(t, 0.126, res.ExpectedReturn, 0.005)

	_, err = opt.TargetReturn(twoUncorrelated(), 0.5)
	assert.True(t, errors.Is(err, domain.ErrInvalidParameter))
}

func TestOptimizer_MaxSharpe(t *testing.T) {
	res, err := newTestOptimizer().MaxSharpe(twoUncorrelated())
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.Weights["LOW"]+res.Weights["HIGH"], 1e-6)
	assert.Greater(t, res.Weights["LOW"], res.Weights["HIGH"])
}

func TestOptimizer_InsufficientOverlap(t *testing.T) {
	returns := map[string]domain.ReturnSeries{
		"A": patterned("A", 10, 0, 0.01, 2),
		"B": patterned("B", 10, 0, 0.02, 4),
	}
	_, err := newTestOptimizer().MinVolatility(returns)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInsufficientData))
}

func TestOptimizer_NoAssets(t *testing.T) {
	_, err := newTestOptimizer().MinVolatility(nil)
	assert.True(t, errors.Is(err, domain.ErrInvalidParameter))
}

func TestOptimizer_InfeasibleBounds(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxWeight = 0.4
	opt := NewOptimizer(opts, zerolog.New(nil).Level(zerolog.Disabled))

	_, err := opt.MinVolatility(twoUncorrelated())
	assert.True(t, errors.Is(err, domain.ErrInvalidParameter))
}
