package portfolio

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/portfolio-analytics/internal/domain"
)

// PositionReader is the read-only view of the portfolio store
type PositionReader interface {
	GetAll(ctx context.Context) ([]domain.Position, error)
}

// PositionRepository reads positions from the portfolio store. The engine
// never writes positions; Upsert and Delete exist for seeding and tests.
type PositionRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewPositionRepository creates a new position repository
func NewPositionRepository(db *sql.DB, log zerolog.Logger) *PositionRepository {
	return &PositionRepository{
		db:  db,
		log: log.With().Str("repo", "position").Logger(),
	}
}

func normalizeAsset(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}

// GetAll returns all positions ordered by asset
func (r *PositionRepository) GetAll(ctx context.Context) ([]domain.Position, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT asset, quantity, cost_basis_price, acquired_at
		FROM positions ORDER BY asset`)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	positions := []domain.Position{}
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}

	return positions, nil
}

// GetByAsset returns the position in asset, or nil if there is none
func (r *PositionRepository) GetByAsset(ctx context.Context, asset string) (*domain.Position, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT asset, quantity, cost_basis_price, acquired_at
		FROM positions WHERE asset = ?`, normalizeAsset(asset))
	if err != nil {
		return nil, fmt.Errorf("failed to query position by asset: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, nil
	}
	pos, err := scanPosition(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan position: %w", err)
	}
	return &pos, nil
}

// GetCount returns the number of positions
func (r *PositionRepository) GetCount(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM positions").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to get position count: %w", err)
	}
	return count, nil
}

func scanPosition(rows *sql.Rows) (domain.Position, error) {
	var pos domain.Position
	var acquiredAt sql.NullInt64

	if err := rows.Scan(&pos.Asset, &pos.Quantity, &pos.CostBasisPrice, &acquiredAt); err != nil {
		return pos, err
	}
	if acquiredAt.Valid {
		pos.AcquisitionDate = time.Unix(acquiredAt.Int64, 0).UTC()
	}
	pos.Asset = normalizeAsset(pos.Asset)
	return pos, nil
}

// Upsert inserts or replaces a position
func (r *PositionRepository) Upsert(ctx context.Context, position domain.Position) error {
	position.Asset = normalizeAsset(position.Asset)
	if position.Asset == "" {
		return fmt.Errorf("asset is required for position upsert")
	}
	if position.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %v", domain.ErrInvalidParameter, position.Quantity)
	}

	var acquiredAt sql.NullInt64
	if !position.AcquisitionDate.IsZero() {
		acquiredAt = sql.NullInt64{Int64: position.AcquisitionDate.Unix(), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO positions (asset, quantity, cost_basis_price, acquired_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		position.Asset, position.Quantity, position.CostBasisPrice, acquiredAt, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert position: %w", err)
	}

	r.log.Debug().Str("asset", position.Asset).Float64("quantity", position.Quantity).Msg("Position upserted")
	return nil
}

// Delete removes the position in asset
func (r *PositionRepository) Delete(ctx context.Context, asset string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM positions WHERE asset = ?", normalizeAsset(asset)); err != nil {
		return fmt.Errorf("failed to delete position: %w", err)
	}
	return nil
}
