// Package testing provides test helpers shared across packages.
package testing

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/portfolio-analytics/internal/database"
	"github.com/aristath/portfolio-analytics/internal/domain"
)

// NewTestDB creates a migrated database in a per-test temporary directory.
// Supported names are history, portfolio and cache; any other name yields an
// empty database. The database is closed when the test ends.
func NewTestDB(t *testing.T, name string) *database.DB {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), fmt.Sprintf("test_%s.db", name)),
		Profile: database.ProfileStandard,
		Name:    name,
	})
	if err != nil {
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
	})

	if err := db.Migrate(); err != nil {
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}
	return db
}

// Day is the first timestamp of generated series
var Day = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Bars builds one daily bar per close starting at Day. Open, high and low
// equal the close.
func Bars(closes []float64) []domain.PriceBar {
	bars := make([]domain.PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = domain.PriceBar{
			Time:   Day.AddDate(0, 0, i),
			Open:   c,
			High:   c,
			Low:    c,
			Close:  c,
			Volume: 1000,
		}
	}
	return bars
}

// Series builds a validated PriceSeries from closes, failing the test on error
func Series(t *testing.T, asset string, closes []float64) *domain.PriceSeries {
	t.Helper()
	s, err := domain.NewPriceSeries(asset, Bars(closes))
	if err != nil {
		t.Fatalf("Failed to build series %s: %v", asset, err)
	}
	return s
}

// Linear returns n closes start, start+step, ...
func Linear(start, step float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}
