// Package history is the market-data boundary: it stores daily bars and
// hands the engine validated PriceSeries.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/portfolio-analytics/internal/database"
	"github.com/aristath/portfolio-analytics/internal/domain"
)

// SeriesLoader loads validated price series
type SeriesLoader interface {
	LoadSeries(ctx context.Context, asset string, from, to time.Time) (*domain.PriceSeries, error)
}

// HistoryDB provides access to historical price data
type HistoryDB struct {
	db        *sql.DB
	validator *BarValidator
	log       zerolog.Logger
}

// NewHistoryDB creates a new history database accessor
func NewHistoryDB(db *sql.DB, validator *BarValidator, log zerolog.Logger) *HistoryDB {
	return &HistoryDB{
		db:        db,
		validator: validator,
		log:       log.With().Str("component", "history_db").Logger(),
	}
}

func normalizeAsset(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}

// LoadSeries returns the bars of asset with from <= date <= to as a
// validated, ascending PriceSeries. A zero from or to leaves that side open.
// Bars that fail validation are dropped and logged.
func (h *HistoryDB) LoadSeries(ctx context.Context, asset string, from, to time.Time) (*domain.PriceSeries, error) {
	asset = normalizeAsset(asset)

	query := `SELECT date, open, high, low, close, volume
		FROM daily_prices
		WHERE asset = ? AND date >= ? AND date <= ?
		ORDER BY date ASC`

	fromUnix, toUnix := int64(0), int64(1<<62)
	if !from.IsZero() {
		fromUnix = from.Unix()
	}
	if !to.IsZero() {
		toUnix = to.Unix()
	}

	rows, err := h.db.QueryContext(ctx, query, asset, fromUnix, toUnix)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices for %s: %w", asset, err)
	}
	defer rows.Close()

	var bars []domain.PriceBar
	for rows.Next() {
		var b domain.PriceBar
		var dateUnix int64
		var volume sql.NullFloat64
		if err := rows.Scan(&dateUnix, &b.Open, &b.High, &b.Low, &b.Close, &volume); err != nil {
			return nil, fmt.Errorf("failed to scan daily price: %w", err)
		}
		b.Time = time.Unix(dateUnix, 0).UTC()
		if volume.Valid {
			b.Volume = volume.Float64
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily prices: %w", err)
	}

	clean, rejected := h.validator.Clean(asset, bars)
	if len(rejected) > 0 {
		h.log.Debug().Str("asset", asset).Int("rejected", len(rejected)).Msg("Dropped invalid stored bars")
	}

	series, err := domain.NewPriceSeries(asset, clean)
	if err != nil {
		return nil, fmt.Errorf("failed to build series for %s: %w", asset, err)
	}
	return series, nil
}

// LoadRecent returns the last days calendar days of asset, ending at asOf
func (h *HistoryDB) LoadRecent(ctx context.Context, asset string, asOf time.Time, days int) (*domain.PriceSeries, error) {
	if days <= 0 {
		return domain.NewPriceSeries(normalizeAsset(asset), nil)
	}
	return h.LoadSeries(ctx, asset, asOf.AddDate(0, 0, -days), asOf)
}

// SaveBars validates bars and upserts the accepted ones in one transaction.
// It returns the number of stored bars and the rejected ones.
func (h *HistoryDB) SaveBars(ctx context.Context, asset string, bars []domain.PriceBar) (int, []Rejection, error) {
	asset = normalizeAsset(asset)
	if asset == "" {
		return 0, nil, fmt.Errorf("%w: empty asset id", domain.ErrInvalidSeries)
	}

	clean, rejected := h.validator.Clean(asset, bars)
	if len(clean) == 0 {
		return 0, rejected, nil
	}

	err := database.WithTransaction(h.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO daily_prices (asset, date, open, high, low, close, volume)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, b := range clean {
			if _, err := stmt.ExecContext(ctx, asset, b.Time.Unix(), b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
				return fmt.Errorf("failed to insert bar %s: %w", b.Time.Format(time.DateOnly), err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, rejected, fmt.Errorf("failed to save bars for %s: %w", asset, err)
	}

	h.log.Info().Str("asset", asset).Int("stored", len(clean)).Int("rejected", len(rejected)).Msg("Stored price bars")
	return len(clean), rejected, nil
}

// Assets lists every asset with stored bars
func (h *HistoryDB) Assets(ctx context.Context) ([]string, error) {
	rows, err := h.db.QueryContext(ctx, "SELECT DISTINCT asset FROM daily_prices ORDER BY asset")
	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	defer rows.Close()

	assets := []string{}
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}
