package portfolio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/portfolio-analytics/internal/domain"
)

// ReadPositionsCSV parses rows of asset,quantity,cost_basis_price[,acquired_at].
// A header row is skipped when its first field is "asset". acquired_at uses
// YYYY-MM-DD and may be empty.
func ReadPositionsCSV(r io.Reader) ([]domain.Position, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var positions []domain.Position
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "asset") {
			continue
		}
		if len(record) < 3 {
			return nil, fmt.Errorf("line %d: expected at least 3 fields, got %d", line, len(record))
		}

		quantity, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid quantity: %w", line, err)
		}
		cost, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid cost basis: %w", line, err)
		}

		pos := domain.Position{
			Asset:          normalizeAsset(record[0]),
			Quantity:       quantity,
			CostBasisPrice: cost,
		}
		if len(record) > 3 && strings.TrimSpace(record[3]) != "" {
			acquired, err := time.Parse(time.DateOnly, strings.TrimSpace(record[3]))
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid acquisition date: %w", line, err)
			}
			pos.AcquisitionDate = acquired.UTC()
		}
		positions = append(positions, pos)
	}
	return positions, nil
}
