package domain

import (
	"time"
)

// ReturnPoint is the simple return of the period ending at Time
type ReturnPoint struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// ReturnSeries holds period returns derived from a PriceSeries:
// r[i] = close[i]/close[i-1] - 1
type ReturnSeries struct {
	Asset   string        `json:"asset"`
	Version SeriesVersion `json:"version"`
	Points  []ReturnPoint `json:"points"`
}

// Returns derives the return series of s. A period whose previous close is
// zero has no defined return and is left out, the same way a missing trading
// day is simply absent.
func Returns(s *PriceSeries) ReturnSeries {
	rs := ReturnSeries{Asset: s.Asset(), Version: s.Version()}
	if s.Len() < 2 {
		rs.Points = []ReturnPoint{}
		return rs
	}

	rs.Points = make([]ReturnPoint, 0, s.Len()-1)
	for i := 1; i < s.Len(); i++ {
		prev := s.bars[i-1].Close
		if prev == 0 {
			continue
		}
		rs.Points = append(rs.Points, ReturnPoint{
			Time:  s.bars[i].Time,
			Value: s.bars[i].Close/prev - 1,
		})
	}
	return rs
}

// NewReturnSeries builds a return series from explicit points, e.g. a
// synthetic portfolio series.
func NewReturnSeries(asset string, version SeriesVersion, points []ReturnPoint) ReturnSeries {
	owned := make([]ReturnPoint, len(points))
	copy(owned, points)
	return ReturnSeries{Asset: asset, Version: version, Points: owned}
}

// Len returns the number of returns
func (r ReturnSeries) Len() int { return len(r.Points) }

// Values returns the return values in order
func (r ReturnSeries) Values() []float64 {
	out := make([]float64, len(r.Points))
	for i, p := range r.Points {
		out[i] = p.Value
	}
	return out
}

// Times returns the period end timestamps in order
func (r ReturnSeries) Times() []time.Time {
	out := make([]time.Time, len(r.Points))
	for i, p := range r.Points {
		out[i] = p.Time
	}
	return out
}

// Align truncates two return series to their common timestamps and returns
// the matched values and the shared timestamps. Both inputs must be ascending.
func Align(a, b ReturnSeries) (av, bv []float64, times []time.Time) {
	i, j := 0, 0
	for i < len(a.Points) && j < len(b.Points) {
		ta, tb := a.Points[i].Time, b.Points[j].Time
		switch {
		case ta.Equal(tb):
			av = append(av, a.Points[i].Value)
			bv = append(bv, b.Points[j].Value)
			times = append(times, ta)
			i++
			j++
		case ta.Before(tb):
			i++
		default:
			j++
		}
	}
	return av, bv, times
}

// CommonTimes returns the timestamps present in every series, ascending
func CommonTimes(series ...ReturnSeries) []time.Time {
	if len(series) == 0 {
		return nil
	}

	counts := make(map[int64]int)
	for _, s := range series {
		for _, p := range s.Points {
			counts[p.Time.UnixNano()]++
		}
	}

	var out []time.Time
	for _, p := range series[0].Points {
		if counts[p.Time.UnixNano()] == len(series) {
			out = append(out, p.Time)
		}
	}
	return out
}

// ValuesAt returns the returns at the given timestamps. ok is false when a
// timestamp is missing from the series.
func (r ReturnSeries) ValuesAt(times []time.Time) (values []float64, ok bool) {
	index := make(map[int64]float64, len(r.Points))
	for _, p := range r.Points {
		index[p.Time.UnixNano()] = p.Value
	}

	values = make([]float64, len(times))
	for i, t := range times {
		v, found := index[t.UnixNano()]
		if !found {
			return nil, false
		}
		values[i] = v
	}
	return values, true
}
