package risk

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/portfolio-analytics/internal/domain"
	"github.com/aristath/portfolio-analytics/pkg/formulas"
)

// CorrelationMatrix holds pairwise Pearson correlations, indexed like Assets
type CorrelationMatrix struct {
	Assets     []string          `json:"assets"`
	Values     [][]domain.Metric `json:"values"`
	SampleSize int               `json:"sample_size"`
	Start      time.Time         `json:"start"`
	End        time.Time         `json:"end"`
}

// Get returns the correlation between two assets
func (c CorrelationMatrix) Get(a, b string) (domain.Metric, bool) {
	i, j := -1, -1
	for k, asset := range c.Assets {
		if asset == a {
			i = k
		}
		if asset == b {
			j = k
		}
	}
	if i < 0 || j < 0 {
		return domain.Metric{}, false
	}
	return c.Values[i][j], true
}

// CorrelationMatrix correlates every pair of return series over the
// timestamps all of them share. Assets with zero variance get undefined
// entries, their own diagonal included.
func (e *Engine) CorrelationMatrix(series map[string]domain.ReturnSeries) (CorrelationMatrix, error) {
	assets := make([]string, 0, len(series))
	for a := range series {
		assets = append(assets, a)
	}
	sort.Strings(assets)

	all := make([]domain.ReturnSeries, len(assets))
	for i, a := range assets {
		all[i] = series[a]
	}
	times := domain.CommonTimes(all...)

	out := CorrelationMatrix{Assets: assets, SampleSize: len(times)}
	if len(assets) == 0 {
		return out, nil
	}
	if len(times) < e.opts.MinSampleSize {
		return out, domain.NewInsufficientData("correlation", e.opts.MinSampleSize, len(times))
	}
	out.Start, out.End = times[0], times[len(times)-1]

	// rows are observations, columns are assets
	data := mat.NewDense(len(times), len(assets), nil)
	flat := make([]bool, len(assets))
	for j, s := range all {
		values, _ := s.ValuesAt(times)
		data.SetCol(j, values)
		flat[j] = formulas.StdDev(values) <= degenerateEpsilon
	}
	corr := mat.NewSymDense(len(assets), nil)
	stat.CorrelationMatrix(corr, data, nil)

	out.Values = make([][]domain.Metric, len(assets))
	for i := range assets {
		out.Values[i] = make([]domain.Metric, len(assets))
		for j := range assets {
			v := corr.At(i, j)
			if flat[i] || flat[j] || math.IsNaN(v) {
				out.Values[i][j] = domain.DegenerateMetric(domain.DetailZeroDeviation)
				continue
			}
			if i == j {
				v = 1
			}
			out.Values[i][j] = domain.DefinedMetric(math.Max(-1, math.Min(1, v)))
		}
	}
	return out, nil
}
