package portfolio

import (
	"context"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/portfolio-analytics/internal/domain"
	"github.com/aristath/portfolio-analytics/internal/modules/indicators"
	"github.com/aristath/portfolio-analytics/internal/modules/risk"
	testingpkg "github.com/aristath/portfolio-analytics/internal/testing"
)

func newTestAggregator() *Aggregator {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	return NewAggregator(
		indicators.NewEngine(log),
		risk.NewEngine(risk.DefaultOptions(), log),
		Options{Workers: 2, Indicators: indicators.DefaultParams()},
		log,
	)
}

func waveCloses(base, amp, freq float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = base + amp*math.Sin(float64(i)*freq) + 0.1*float64(i)
	}
	return out
}

func TestValuate(t *testing.T) {
	aapl := testingpkg.Series(t, "AAPL", []float64{100, 105, 110})

	tests := []struct {
		name      string
		positions []domain.Position
		prices    map[string]float64
		series    map[string]*domain.PriceSeries
		check     func(t *testing.T, holdings []domain.Holding, diags []domain.Diagnostic)
	}{
		{
			name:      "price from last close",
			positions: []domain.Position{{Asset: "AAPL", Quantity: 10, CostBasisPrice: 100}},
			series:    map[string]*domain.PriceSeries{"AAPL": aapl},
			check: func(t *testing.T, holdings []domain.Holding, diags []domain.Diagnostic) {
				require.Len(t, holdings, 1)
				assert.Empty(t, diags)
				assert.True(t, holdings[0].PriceKnown)
				assert.Equal(t, 110.0, holdings[0].Price)
				assert.InDelta(t, 1100.0, holdings[0].MarketValue, 1e-9)
				assert.InDelta(t, 100.0, holdings[0].UnrealizedGain, 1e-9)
			},
		},
		{
			name:      "explicit price wins over series",
			positions: []domain.Position{{Asset: "AAPL", Quantity: 10, CostBasisPrice: 100}},
			prices:    map[string]float64{"AAPL": 120},
			series:    map[string]*domain.PriceSeries{"AAPL": aapl},
			check: func(t *testing.T, holdings []domain.Holding, diags []domain.Diagnostic) {
				require.Len(t, holdings, 1)
				assert.Equal(t, 120.0, holdings[0].Price)
			},
		},
		{
			name: "positions of the same asset are merged",
			positions: []domain.Position{
				{Asset: "AAPL", Quantity: 10, CostBasisPrice: 100},
				{Asset: "AAPL", Quantity: 10, CostBasisPrice: 120},
			},
			prices: map[string]float64{"AAPL": 110},
			check: func(t *testing.T, holdings []domain.Holding, diags []domain.Diagnostic) {
				require.Len(t, holdings, 1)
				assert.Equal(t, 20.0, holdings[0].Quantity)
				assert.InDelta(t, 2200.0, holdings[0].CostBasis, 1e-9)
				assert.InDelta(t, 0.0, holdings[0].UnrealizedGain, 1e-9)
			},
		},
		{
			name:      "unknown price is flagged",
			positions: []domain.Position{{Asset: "XYZ", Quantity: 3, CostBasisPrice: 10}},
			check: func(t *testing.T, holdings []domain.Holding, diags []domain.Diagnostic) {
				require.Len(t, holdings, 1)
				assert.False(t, holdings[0].PriceKnown)
				require.Len(t, diags, 1)
				assert.Equal(t, domain.CodeUnknownPrice, diags[0].Code)
				assert.Equal(t, "XYZ", diags[0].Asset)
			},
		},
		{
			name:      "negative explicit price is unknown",
			positions: []domain.Position{{Asset: "AAPL", Quantity: 3, CostBasisPrice: 10}},
			prices:    map[string]float64{"AAPL": -1},
			series:    map[string]*domain.PriceSeries{"AAPL": aapl},
			check: func(t *testing.T, holdings []domain.Holding, diags []domain.Diagnostic) {
				require.Len(t, diags, 1)
				assert.Equal(t, domain.CodeUnknownPrice, diags[0].Code)
			},
		},
		{
			name:      "non-positive quantity is rejected",
			positions: []domain.Position{{Asset: "AAPL", Quantity: 0, CostBasisPrice: 10}, {Asset: "MSFT", Quantity: -2}},
			prices:    map[string]float64{"AAPL": 1, "MSFT": 1},
			check: func(t *testing.T, holdings []domain.Holding, diags []domain.Diagnostic) {
				assert.Empty(t, holdings)
				require.Len(t, diags, 2)
				assert.Equal(t, domain.CodeInvalidPosition, diags[0].Code)
				assert.Equal(t, domain.CodeInvalidPosition, diags[1].Code)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			holdings, diags := Valuate(tt.positions, tt.prices, tt.series)
			tt.check(t, holdings, diags)
		})
	}
}

func TestSummarize_WeightsSumToOne(t *testing.T) {
	holdings, diags := Valuate([]domain.Position{
		{Asset: "AAPL", Quantity: 10, CostBasisPrice: 100},
		{Asset: "MSFT", Quantity: 5, CostBasisPrice: 200},
		{Asset: "GOOG", Quantity: 1, CostBasisPrice: 50},
	}, map[string]float64{"AAPL": 110, "MSFT": 220, "GOOG": 80}, nil)
	require.Empty(t, diags)

	snap := Summarize(holdings)

	assert.InDelta(t, 1.0, snap.WeightSum(), 1e-9)
	assert.InDelta(t, 2280.0, snap.TotalMarketValue, 1e-9)
	assert.InDelta(t, 2050.0, snap.TotalCostBasis, 1e-9)
	assert.InDelta(t, 230.0, snap.UnrealizedGain, 1e-9)
	pct, ok := snap.UnrealizedGainPct.Float()
	require.True(t, ok)
	assert.InDelta(t, 230.0/2050.0, pct, 1e-12)
	assert.Equal(t, []string{"AAPL", "GOOG", "MSFT"}, snap.SortedAssets())
	for _, w := range snap.Weights {
		assert.GreaterOrEqual(t, w, 0.0)
		assert.LessOrEqual(t, w, 1.0)
	}
}

func TestSummarize_TwoEqualAssets(t *testing.T) {
	holdings, _ := Valuate([]domain.Position{
		{Asset: "A", Quantity: 10, CostBasisPrice: 10},
		{Asset: "B", Quantity: 20, CostBasisPrice: 5},
	}, map[string]float64{"A": 10, "B": 5}, nil)

	snap := Summarize(holdings)

	assert.InDelta(t, 0.5, snap.Weights["A"], 1e-12)
	assert.InDelta(t, 0.5, snap.Weights["B"], 1e-12)
}

func TestSummarize_ZeroTotalValue(t *testing.T) {
	holdings, _ := Valuate([]domain.Position{
		{Asset: "A", Quantity: 10, CostBasisPrice: 0},
		{Asset: "B", Quantity: 20, CostBasisPrice: 0},
	}, map[string]float64{"A": 0, "B": 0}, nil)

	snap := Summarize(holdings)

	assert.Equal(t, 0.0, snap.TotalMarketValue)
	assert.Equal(t, 0.0, snap.Weights["A"])
	assert.Equal(t, 0.0, snap.Weights["B"])
	assert.False(t, snap.UnrealizedGainPct.Defined)
	assert.Equal(t, domain.ReasonInsufficientData, snap.UnrealizedGainPct.Reason)
	assert.Equal(t, domain.DetailZeroCostBasis, snap.UnrealizedGainPct.Detail)
}

func TestSummarize_UnknownPriceExcluded(t *testing.T) {
	holdings, diags := Valuate([]domain.Position{
		{Asset: "A", Quantity: 10, CostBasisPrice: 10},
		{Asset: "X", Quantity: 10, CostBasisPrice: 10},
	}, map[string]float64{"A": 12}, nil)

	snap := Summarize(holdings)
	snap.Diagnostics = diags

	_, present := snap.Weights["X"]
	assert.False(t, present)
	assert.InDelta(t, 1.0, snap.Weights["A"], 1e-12)
	assert.InDelta(t, 120.0, snap.TotalMarketValue, 1e-12)
	assert.True(t, snap.HasDiagnostic("X", domain.CodeUnknownPrice))
	require.Len(t, snap.Holdings, 2)
}

func TestPortfolioReturns(t *testing.T) {
	d := testingpkg.Day
	a := domain.NewReturnSeries("A", domain.SeriesVersion{}, []domain.ReturnPoint{
		{Time: d.AddDate(0, 0, 1), Value: 0.1},
		{Time: d.AddDate(0, 0, 2), Value: 0.2},
	})
	b := domain.NewReturnSeries("B", domain.SeriesVersion{}, []domain.ReturnPoint{
		{Time: d.AddDate(0, 0, 1), Value: 0.0},
		{Time: d.AddDate(0, 0, 2), Value: 0.1},
		{Time: d.AddDate(0, 0, 3), Value: 0.5},
	})

	t.Run("weighted sum at common timestamps", func(t *testing.T) {
		port, diags := PortfolioReturns(
			map[string]float64{"A": 0.75, "B": 0.25},
			map[string]domain.ReturnSeries{"A": a, "B": b},
		)
		assert.Empty(t, diags)
		require.Equal(t, 2, port.Len())
		assert.InDelta(t, 0.075, port.Points[0].Value, 1e-12)
		assert.InDelta(t, 0.175, port.Points[1].Value, 1e-12)
		assert.Equal(t, domain.PortfolioSubject, port.Asset)
		assert.True(t, port.Version.LastTimestamp.Equal(d.AddDate(0, 0, 2)))
	})

	t.Run("missing series is flagged and the rest renormalized", func(t *testing.T) {
		port, diags := PortfolioReturns(
			map[string]float64{"A": 0.5, "C": 0.5},
			map[string]domain.ReturnSeries{"A": a},
		)
		require.Len(t, diags, 1)
		assert.Equal(t, "C", diags[0].Asset)
		assert.Equal(t, domain.CodeMissingSeries, diags[0].Code)
		require.Equal(t, 2, port.Len())
		assert.InDelta(t, 0.1, port.Points[0].Value, 1e-12)
		assert.InDelta(t, 0.2, port.Points[1].Value, 1e-12)
	})

	t.Run("no weighted assets", func(t *testing.T) {
		port, diags := PortfolioReturns(map[string]float64{"A": 0}, nil)
		assert.Empty(t, diags)
		assert.Equal(t, 0, port.Len())
	})
}

func TestAggregator_Snapshot(t *testing.T) {
	const n = 80
	agg := newTestAggregator()

	in := Input{
		Positions: []domain.Position{
			{Asset: "AAPL", Quantity: 10, CostBasisPrice: 90},
			{Asset: "MSFT", Quantity: 4, CostBasisPrice: 250},
			{Asset: "GHOST", Quantity: 1, CostBasisPrice: 10},
		},
		Series: map[string]*domain.PriceSeries{
			"AAPL": testingpkg.Series(t, "AAPL", waveCloses(100, 5, 0.3, n)),
			"MSFT": testingpkg.Series(t, "MSFT", waveCloses(250, 10, 0.7, n)),
		},
		Benchmark: testingpkg.Series(t, "INDEX", waveCloses(400, 8, 0.5, n)),
		AsOf:      testingpkg.Day.AddDate(0, 0, n-1),
	}

	report, err := agg.Snapshot(context.Background(), in)
	require.NoError(t, err)

	assert.NotEmpty(t, report.ID)
	assert.Equal(t, report.ID, report.Snapshot.ID)
	assert.True(t, report.Snapshot.AsOf.Equal(in.AsOf))
	assert.InDelta(t, 1.0, report.Snapshot.WeightSum(), 1e-9)
	assert.True(t, report.Snapshot.HasDiagnostic("GHOST", domain.CodeUnknownPrice))

	require.Len(t, report.Indicators, 2)
	assert.Len(t, report.Indicators["AAPL"], 5)
	assert.Contains(t, report.Signals, "MSFT")
	assert.Equal(t, n-1, report.AssetRisk["AAPL"].SampleSize)
	assert.Equal(t, "INDEX", report.AssetRisk["AAPL"].Benchmark)
	assert.True(t, report.AssetRisk["AAPL"].Beta.Defined)

	prof := report.Snapshot.Risk
	assert.Equal(t, domain.PortfolioSubject, prof.Subject)
	assert.Equal(t, n-1, prof.SampleSize)
	assert.False(t, prof.InsufficientData)
	assert.True(t, prof.Volatility.Defined)
	assert.True(t, prof.Beta.Defined)

	require.NotNil(t, report.Correlations)
	assert.Equal(t, []string{"AAPL", "MSFT"}, report.Correlations.Assets)
	self, ok := report.Correlations.Get("AAPL", "AAPL")
	require.True(t, ok)
	assert.Equal(t, 1.0, self.Value)

	assert.GreaterOrEqual(t, len(report.Diagnostics), len(report.Snapshot.Diagnostics))
}

func TestAggregator_SnapshotWithoutBenchmark(t *testing.T) {
	agg := newTestAggregator()

	report, err := agg.Snapshot(context.Background(), Input{
		Positions: []domain.Position{{Asset: "AAPL", Quantity: 1, CostBasisPrice: 1}},
		Series: map[string]*domain.PriceSeries{
			"AAPL": testingpkg.Series(t, "AAPL", waveCloses(100, 5, 0.3, 40)),
		},
	})
	require.NoError(t, err)

	assert.False(t, report.Snapshot.AsOf.IsZero())
	assert.True(t, report.Snapshot.HasDiagnostic(domain.PortfolioSubject, domain.CodeMissingSeries))
	assert.False(t, report.Snapshot.Risk.Beta.Defined)
	assert.True(t, report.Snapshot.Risk.Volatility.Defined)
	assert.Nil(t, report.Correlations)
}

func TestAggregator_SnapshotShortHistory(t *testing.T) {
	agg := newTestAggregator()

	report, err := agg.Snapshot(context.Background(), Input{
		Positions: []domain.Position{{Asset: "AAPL", Quantity: 1, CostBasisPrice: 1}},
		Series: map[string]*domain.PriceSeries{
			"AAPL": testingpkg.Series(t, "AAPL", []float64{10, 11, 12}),
		},
	})
	require.NoError(t, err)

	assert.True(t, report.Snapshot.Risk.InsufficientData)
	assert.True(t, report.Snapshot.HasDiagnostic(domain.PortfolioSubject, domain.CodeInsufficientData))
	assert.Equal(t, indicators.Unknown, report.Signals["AAPL"].Direction)
}

func TestAggregator_SnapshotMisalignedBenchmark(t *testing.T) {
	const n = 30
	agg := newTestAggregator()

	// benchmark history starts 20 days after the asset's
	benchBars := testingpkg.Bars(waveCloses(400, 8, 0.5, n))
	for i := range benchBars {
		benchBars[i].Time = benchBars[i].Time.AddDate(0, 0, 20)
	}
	bench, err := domain.NewPriceSeries("INDEX", benchBars)
	require.NoError(t, err)

	report, err := agg.Snapshot(context.Background(), Input{
		Positions: []domain.Position{{Asset: "AAPL", Quantity: 10, CostBasisPrice: 90}},
		Series: map[string]*domain.PriceSeries{
			"AAPL": testingpkg.Series(t, "AAPL", waveCloses(100, 5, 0.3, n)),
		},
		Benchmark: bench,
		AsOf:      testingpkg.Day.AddDate(0, 0, n-1),
	})
	require.NoError(t, err)

	prof := report.AssetRisk["AAPL"]
	assert.Equal(t, n-1, prof.SampleSize)
	assert.Equal(t, 9, prof.BenchmarkOverlap)
	assert.True(t, prof.InsufficientData)
	assert.Equal(t, domain.ReasonMisaligned, prof.Beta.Reason)
	assert.True(t, prof.Volatility.Defined)
	assert.True(t, prof.SharpeRatio.Defined)

	assert.True(t, report.Snapshot.HasDiagnostic(domain.PortfolioSubject, domain.CodeMisaligned))
	assert.True(t, report.Snapshot.Risk.Volatility.Defined)

	found := false
	for _, d := range report.Diagnostics {
		if d.Asset == "AAPL" && d.Code == domain.CodeMisaligned {
			found = true
		}
	}
	assert.True(t, found)
}

func TestAggregator_SnapshotCancelled(t *testing.T) {
	agg := newTestAggregator()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := agg.Snapshot(ctx, Input{
		Series: map[string]*domain.PriceSeries{
			"AAPL": testingpkg.Series(t, "AAPL", []float64{10, 11, 12}),
		},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
