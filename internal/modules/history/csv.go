package history

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/portfolio-analytics/internal/domain"
)

// ReadBarsCSV parses rows of asset,date,open,high,low,close[,volume] into
// bars grouped by asset and sorted by date. A header row is skipped when its
// first field is "asset". Dates use YYYY-MM-DD.
func ReadBarsCSV(r io.Reader) (map[string][]domain.PriceBar, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	out := make(map[string][]domain.PriceBar)
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
		if len(record) < 6 {
			return nil, fmt.Errorf("line %d: expected at least 6 fields, got %d", line, len(record))
		}

		asset := normalizeAsset(record[0])
		date, err := time.Parse(time.DateOnly, strings.TrimSpace(record[1]))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid date: %w", line, err)
		}

		fields := record[2:]
		if len(fields) > 5 {
			fields = fields[:5]
		}
		values := make([]float64, 5)
		for i, raw := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid number %q: %w", line, raw, err)
			}
			values[i] = v
		}

		out[asset] = append(out[asset], domain.PriceBar{
			Time:   date.UTC(),
			Open:   values[0],
			High:   values[1],
			Low:    values[2],
			Close:  values[3],
			Volume: values[4],
		})
	}

	for asset := range out {
		bars := out[asset]
		sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	}
	return out, nil
}
