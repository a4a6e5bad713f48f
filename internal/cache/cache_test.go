package cache

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/portfolio-analytics/internal/domain"
	testingpkg "github.com/aristath/portfolio-analytics/internal/testing"
)

func silent() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

func version(asset string, bars int) domain.SeriesVersion {
	return domain.SeriesVersion{
		Asset:         asset,
		LastTimestamp: testingpkg.Day.AddDate(0, 0, bars-1),
		Bars:          bars,
	}
}

func sampleResult(v domain.SeriesVersion) domain.IndicatorResult {
	return domain.IndicatorResult{
		Asset:  v.Asset,
		Name:   "sma",
		Params: map[string]float64{"window": 20},
		Values: []domain.IndicatorPoint{
			{Time: v.LastTimestamp.AddDate(0, 0, -1), Value: 101.5},
			{Time: v.LastTimestamp, Value: 102.25},
		},
		Version: v,
	}
}

func caches(t *testing.T) map[string]Cache {
	db := testingpkg.NewTestDB(t, "cache")
	return map[string]Cache{
		"memory": NewMemory(silent()),
		"sqlite": NewSQLiteCache(db.Conn(), silent()),
	}
}

func TestKey_String(t *testing.T) {
	k := Key{Asset: "aapl", Version: version("AAPL", 30), Params: "sma=20"}
	assert.Contains(t, k.String(), "AAPL|sma=20|")
	assert.NotEqual(t, k.String(), Key{Asset: "AAPL", Version: version("AAPL", 31), Params: "sma=20"}.String())
	assert.NotEqual(t, k.String(), Key{Asset: "AAPL", Version: version("AAPL", 30), Params: "sma=50"}.String())
}

func TestCache_RoundTrip(t *testing.T) {
	for name, c := range caches(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			v := version("AAPL", 30)
			key := Key{Asset: "AAPL", Version: v, Params: "sma=20"}
			want := sampleResult(v)

			require.NoError(t, c.Set(ctx, key, want))

			var got domain.IndicatorResult
			ok, err := c.Get(ctx, key, &got)
			require.NoError(t, err)
			require.True(t, ok)

			assert.Equal(t, want.Asset, got.Asset)
			assert.Equal(t, want.Name, got.Name)
			assert.Equal(t, want.Params, got.Params)
			require.Len(t, got.Values, 2)
			assert.Equal(t, 102.25, got.Values[1].Value)
			assert.True(t, got.Values[1].Time.Equal(want.Values[1].Time))
			assert.Equal(t, v.Bars, got.Version.Bars)
		})
	}
}

func TestCache_OnlyIdenticalKeysHit(t *testing.T) {
	for name, c := range caches(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			v := version("AAPL", 30)
			require.NoError(t, c.Set(ctx, Key{Asset: "AAPL", Version: v, Params: "p1"}, sampleResult(v)))

			misses := []Key{
				{Asset: "AAPL", Version: version("AAPL", 31), Params: "p1"},
				{Asset: "AAPL", Version: v, Params: "p2"},
				{Asset: "MSFT", Version: v, Params: "p1"},
			}
			for _, k := range misses {
				var got domain.IndicatorResult
				ok, err := c.Get(ctx, k, &got)
				require.NoError(t, err)
				assert.False(t, ok, k.String())
			}
		})
	}
}

func TestCache_NewVersionReplacesOld(t *testing.T) {
	for name, c := range caches(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			oldKey := Key{Asset: "AAPL", Version: version("AAPL", 30), Params: "p"}
			newKey := Key{Asset: "AAPL", Version: version("AAPL", 31), Params: "p"}
			otherParams := Key{Asset: "AAPL", Version: version("AAPL", 30), Params: "q"}

			require.NoError(t, c.Set(ctx, oldKey, 1.0))
			require.NoError(t, c.Set(ctx, otherParams, 3.0))
			require.NoError(t, c.Set(ctx, newKey, 2.0))

			var f float64
			ok, err := c.Get(ctx, oldKey, &f)
			require.NoError(t, err)
			assert.False(t, ok)

			ok, err = c.Get(ctx, newKey, &f)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, 2.0, f)

			ok, err = c.Get(ctx, otherParams, &f)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, 3.0, f)
		})
	}
}

func TestCache_InvalidateAsset(t *testing.T) {
	for name, c := range caches(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a := Key{Asset: "AAPL", Version: version("AAPL", 30), Params: "p"}
			m := Key{Asset: "MSFT", Version: version("MSFT", 30), Params: "p"}
			require.NoError(t, c.Set(ctx, a, 1.0))
			require.NoError(t, c.Set(ctx, m, 2.0))

			require.NoError(t, c.InvalidateAsset(ctx, "aapl"))

			var f float64
			ok, _ := c.Get(ctx, a, &f)
			assert.False(t, ok)
			ok, _ = c.Get(ctx, m, &f)
			assert.True(t, ok)
		})
	}
}

func TestMemory_StoredValueIsACopy(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(silent())
	v := version("AAPL", 30)
	key := Key{Asset: "AAPL", Version: v, Params: "p"}
	res := sampleResult(v)
	require.NoError(t, c.Set(ctx, key, res))

	res.Values[0].Value = -1

	var got domain.IndicatorResult
	ok, err := c.Get(ctx, key, &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 101.5, got.Values[0].Value)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, 1, stats.Entries)
}

func TestSQLiteCache_Prune(t *testing.T) {
	ctx := context.Background()
	db := testingpkg.NewTestDB(t, "cache")
	c := NewSQLiteCache(db.Conn(), silent())

	require.NoError(t, c.Set(ctx, Key{Asset: "AAPL", Version: version("AAPL", 30), Params: "p"}, 1.0))
	_, err := db.Conn().Exec("UPDATE analytics_cache SET created_at = ?", time.Now().Add(-48*time.Hour).Unix())
	require.NoError(t, err)

	n, err := c.Prune(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
