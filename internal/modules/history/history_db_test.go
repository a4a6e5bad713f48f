package history

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/portfolio-analytics/internal/domain"
	testingpkg "github.com/aristath/portfolio-analytics/internal/testing"
)

func newTestHistoryDB(t *testing.T) *HistoryDB {
	t.Helper()
	log := zerolog.New(nil).Level(zerolog.Disabled)
	db := testingpkg.NewTestDB(t, "history")
	return NewHistoryDB(db.Conn(), NewBarValidator(true, log), log)
}

func TestSaveAndLoadSeries(t *testing.T) {
	h := newTestHistoryDB(t)
	ctx := context.Background()

	stored, rejected, err := h.SaveBars(ctx, "aapl", testingpkg.Bars(testingpkg.Linear(100, 1, 30)))
	require.NoError(t, err)
	assert.Equal(t, 30, stored)
	assert.Empty(t, rejected)

	series, err := h.LoadSeries(ctx, "AAPL", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "AAPL", series.Asset())
	assert.Equal(t, 30, series.Len())
	assert.Equal(t, 129.0, series.Last().Close)
	assert.True(t, series.Bar(0).Time.Equal(testingpkg.Day))
}

func TestLoadSeries_DateRange(t *testing.T) {
	h := newTestHistoryDB(t)
	ctx := context.Background()

	_, _, err := h.SaveBars(ctx, "MSFT", testingpkg.Bars(testingpkg.Linear(200, 1, 30)))
	require.NoError(t, err)

	from := testingpkg.Day.AddDate(0, 0, 10)
	to := testingpkg.Day.AddDate(0, 0, 19)
	series, err := h.LoadSeries(ctx, "MSFT", from, to)
	require.NoError(t, err)
	assert.Equal(t, 10, series.Len())
	assert.Equal(t, 210.0, series.Bar(0).Close)

	recent, err := h.LoadRecent(ctx, "MSFT", testingpkg.Day.AddDate(0, 0, 29), 4)
	require.NoError(t, err)
	assert.Equal(t, 5, recent.Len())
}

func TestSaveBars_RejectsInvalidBars(t *testing.T) {
	h := newTestHistoryDB(t)
	ctx := context.Background()

	bars := testingpkg.Bars([]float64{100, 101, 102, 103})
	bars[1].High = 50            // high below close
	bars[2].Close = math.NaN()   // not finite
	bars = append(bars, bars[3]) // duplicate timestamp

	stored, rejected, err := h.SaveBars(ctx, "BAD", bars)
	require.NoError(t, err)
	assert.Equal(t, 2, stored)
	require.Len(t, rejected, 2)

	series, err := h.LoadSeries(ctx, "BAD", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 103}, series.Closes())
}

func TestSaveBars_UpsertsExistingDates(t *testing.T) {
	h := newTestHistoryDB(t)
	ctx := context.Background()

	_, _, err := h.SaveBars(ctx, "UPD", testingpkg.Bars([]float64{10, 11, 12}))
	require.NoError(t, err)
	_, _, err = h.SaveBars(ctx, "UPD", testingpkg.Bars([]float64{10, 11, 12.5}))
	require.NoError(t, err)

	series, err := h.LoadSeries(ctx, "UPD", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 11, 12.5}, series.Closes())

	assets, err := h.Assets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"UPD"}, assets)
}

func TestLoadSeries_UnknownAssetIsEmpty(t *testing.T) {
	h := newTestHistoryDB(t)

	series, err := h.LoadSeries(context.Background(), "NONE", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 0, series.Len())
}

func TestSaveBars_EmptyAsset(t *testing.T) {
	h := newTestHistoryDB(t)
	_, _, err := h.SaveBars(context.Background(), " ", testingpkg.Bars([]float64{1}))
	assert.True(t, errors.Is(err, domain.ErrInvalidSeries))
}
