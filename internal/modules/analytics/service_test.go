package analytics

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aristath/portfolio-analytics/internal/cache"
	"github.com/aristath/portfolio-analytics/internal/domain"
	"github.com/aristath/portfolio-analytics/internal/modules/indicators"
	"github.com/aristath/portfolio-analytics/internal/modules/optimization"
	"github.com/aristath/portfolio-analytics/internal/modules/portfolio"
	"github.com/aristath/portfolio-analytics/internal/modules/risk"
	testingpkg "github.com/aristath/portfolio-analytics/internal/testing"
)

type mockPositions struct {
	mock.Mock
}

func (m *mockPositions) GetAll(ctx context.Context) ([]domain.Position, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Position), args.Error(1)
}

type mockHistory struct {
	mock.Mock
}

func (m *mockHistory) LoadRecent(ctx context.Context, asset string, asOf time.Time, days int) (*domain.PriceSeries, error) {
	args := m.Called(ctx, asset, asOf, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PriceSeries), args.Error(1)
}

func wave(n int, base, amp, freq, drift float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = base + amp*math.Sin(float64(i)*freq) + drift*float64(i)
	}
	return out
}

type fixture struct {
	service   *Service
	positions *mockPositions
	history   *mockHistory
	cache     *cache.Memory
}

func newFixture(t *testing.T, benchmark string) fixture {
	log := zerolog.New(nil).Level(zerolog.Disabled)

	ind := indicators.NewEngine(log)
	rsk := risk.NewEngine(risk.DefaultOptions(), log)
	agg := portfolio.NewAggregator(ind, rsk, portfolio.Options{Workers: 2, Indicators: indicators.DefaultParams()}, log)
	opt := optimization.NewOptimizer(optimization.DefaultOptions(), log)
	mem := cache.NewMemory(log)

	positions := &mockPositions{}
	history := &mockHistory{}
	svc := NewService(positions, history, agg, ind, rsk, opt, mem, Options{
		Benchmark:    benchmark,
		LookbackDays: 365,
		Indicators:   indicators.DefaultParams(),
	}, log)
	svc.now = func() time.Time { return testingpkg.Day.AddDate(0, 0, 90) }

	return fixture{service: svc, positions: positions, history: history, cache: mem}
}

func (f fixture) withSeries(t *testing.T, asset string, closes []float64) {
	f.history.On("LoadRecent", mock.Anything, asset, mock.Anything, 365).
		Return(testingpkg.Series(t, asset, closes), nil)
}

func holdings() []domain.Position {
	return []domain.Position{
		{Asset: "AAPL", Quantity: 10, CostBasisPrice: 90},
		{Asset: "MSFT", Quantity: 5, CostBasisPrice: 40},
	}
}

func TestService_Refresh(t *testing.T) {
	f := newFixture(t, "SPY")
	f.positions.On("GetAll", mock.Anything).Return(holdings(), nil).Once()
	f.withSeries(t, "AAPL", wave(80, 100, 5, 0.3, 0.1))
	f.withSeries(t, "MSFT", wave(80, 50, 3, 0.7, 0.05))
	f.withSeries(t, "SPY", wave(80, 400, 8, 0.2, 0.3))

	_, ok := f.service.Latest()
	assert.False(t, ok)

	report, err := f.service.Refresh(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, report.ID)
	assert.Len(t, report.Snapshot.Holdings, 2)
	assert.InDelta(t, 1.0, report.Snapshot.WeightSum(), 1e-9)
	assert.True(t, report.Snapshot.Risk.Beta.Defined)
	assert.NotNil(t, report.Correlations)

	latest, ok := f.service.Latest()
	require.True(t, ok)
	assert.Equal(t, report.ID, latest.ID)

	// served from the latest report without touching the stores again
	again, err := f.service.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, report.ID, again.ID)
	f.positions.AssertExpectations(t)
}

func TestService_Refresh_PositionsError(t *testing.T) {
	f := newFixture(t, "SPY")
	f.positions.On("GetAll", mock.Anything).Return(nil, errors.New("store offline"))

	_, err := f.service.Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store offline")

	_, ok := f.service.Latest()
	assert.False(t, ok)
}

func TestService_Refresh_MissingHistoryIsFlagged(t *testing.T) {
	f := newFixture(t, "")
	f.positions.On("GetAll", mock.Anything).Return(holdings(), nil)
	f.withSeries(t, "AAPL", wave(80, 100, 5, 0.3, 0.1))
	f.history.On("LoadRecent", mock.Anything, "MSFT", mock.Anything, 365).
		Return(nil, errors.New("no such table"))

	report, err := f.service.Refresh(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Snapshot.HasDiagnostic("MSFT", domain.CodeUnknownPrice))
	assert.InDelta(t, 1.0, report.Snapshot.Weights["AAPL"], 1e-9)
	assert.False(t, report.Snapshot.Risk.Beta.Defined)
}

func TestService_AssetIndicators_Cached(t *testing.T) {
	f := newFixture(t, "SPY")
	f.withSeries(t, "AAPL", wave(80, 100, 5, 0.3, 0.1))

	first, err := f.service.AssetIndicators(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", first.Asset)
	assert.Len(t, first.Indicators, 5)
	assert.NotEqual(t, indicators.Unknown, first.Signal.Direction)
	assert.Equal(t, int64(0), f.cache.Stats().Hits)

	second, err := f.service.AssetIndicators(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, int64(1), f.cache.Stats().Hits)
	assert.Len(t, second.Indicators, len(first.Indicators))
	assert.Equal(t, first.Signal.Direction, second.Signal.Direction)
	assert.Equal(t, first.Version.Bars, second.Version.Bars)
	assert.True(t, first.Version.LastTimestamp.Equal(second.Version.LastTimestamp))
}

func TestService_AssetIndicators_UnknownAsset(t *testing.T) {
	f := newFixture(t, "SPY")
	empty, err := domain.NewPriceSeries("NOPE", nil)
	require.NoError(t, err)
	f.history.On("LoadRecent", mock.Anything, "NOPE", mock.Anything, 365).Return(empty, nil)

	_, err = f.service.AssetIndicators(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ErrUnknownAsset)
}

func TestService_AssetRisk(t *testing.T) {
	f := newFixture(t, "SPY")
	f.withSeries(t, "AAPL", wave(80, 100, 5, 0.3, 0.1))
	f.withSeries(t, "SPY", wave(80, 400, 8, 0.2, 0.3))

	profile, err := f.service.AssetRisk(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", profile.Subject)
	assert.Equal(t, 79, profile.SampleSize)
	assert.Equal(t, 79, profile.BenchmarkOverlap)
	assert.True(t, profile.Beta.Defined)
	assert.True(t, profile.Volatility.Defined)
}

func TestService_AssetRisk_NoBenchmark(t *testing.T) {
	f := newFixture(t, "")
	f.withSeries(t, "AAPL", wave(80, 100, 5, 0.3, 0.1))

	profile, err := f.service.AssetRisk(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.False(t, profile.Beta.Defined)
	assert.True(t, profile.Volatility.Defined)

	found := false
	for _, d := range profile.Diagnostics {
		if d.Code == domain.CodeMissingSeries {
			found = true
		}
	}
	assert.True(t, found)
}

func TestService_Correlations(t *testing.T) {
	f := newFixture(t, "SPY")
	f.positions.On("GetAll", mock.Anything).Return(holdings(), nil)
	f.withSeries(t, "AAPL", wave(80, 100, 5, 0.3, 0.1))
	f.withSeries(t, "MSFT", wave(80, 50, 3, 0.7, 0.05))
	f.withSeries(t, "SPY", wave(80, 400, 8, 0.2, 0.3))

	corr, err := f.service.Correlations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, corr.Assets)
	v, ok := corr.Get("AAPL", "AAPL")
	require.True(t, ok)
	assert.InDelta(t, 1.0, v.Value, 1e-12)
}

func TestService_Correlations_SingleAsset(t *testing.T) {
	f := newFixture(t, "SPY")
	f.positions.On("GetAll", mock.Anything).Return(holdings()[:1], nil)
	f.withSeries(t, "AAPL", wave(80, 100, 5, 0.3, 0.1))
	f.withSeries(t, "SPY", wave(80, 400, 8, 0.2, 0.3))

	_, err := f.service.Correlations(context.Background())
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
}

func TestService_Optimize(t *testing.T) {
	f := newFixture(t, "SPY")
	f.positions.On("GetAll", mock.Anything).Return(holdings(), nil)
	f.withSeries(t, "AAPL", wave(80, 100, 5, 0.3, 0.1))
	f.withSeries(t, "MSFT", wave(80, 50, 3, 0.7, 0.05))
	f.withSeries(t, "SPY", wave(80, 400, 8, 0.2, 0.3))

	res, err := f.service.Optimize(context.Background(), optimization.StrategyMinVolatility, 0)
	require.NoError(t, err)

	sum := 0.0
	for _, w := range res.Weights {
		assert.GreaterOrEqual(t, w, -1e-9)
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
	assert.Len(t, res.Weights, 2)
}

func TestService_Insights(t *testing.T) {
	f := newFixture(t, "SPY")
	f.positions.On("GetAll", mock.Anything).Return(holdings(), nil)
	f.withSeries(t, "AAPL", wave(80, 100, 5, 0.3, 0.1))
	f.withSeries(t, "MSFT", wave(80, 50, 3, 0.7, 0.05))
	f.withSeries(t, "SPY", wave(80, 400, 8, 0.2, 0.3))

	out, err := f.service.Insights(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, out.Payload.ReportID)
	assert.Len(t, out.Payload.Allocation, 2)
	assert.Contains(t, out.Prompt, "AAPL")
}
