package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear scales daily statistics to annual ones.
const TradingDaysPerYear = 252

// Compound returns the growth of one unit invested in the return series,
// cumprod(1+r). A missing return leaves the wealth unchanged and is
// reported as NaN at that date.
func Compound(returns []float64) []float64 {
	out := make([]float64, len(returns))
	wealth := 1.0
	for i, r := range returns {
		if math.IsNaN(r) {
			out[i] = math.NaN()
			continue
		}
		wealth *= 1 + r
		out[i] = wealth
	}
	return out
}

// Accumulate returns the running sum of the series, skipping missing values.
func Accumulate(values []float64) []float64 {
	out := make([]float64, len(values))
	sum := 0.0
	for i, v := range values {
		if math.IsNaN(v) {
			out[i] = math.NaN()
			continue
		}
		sum += v
		out[i] = sum
	}
	return out
}

// Finite returns the non-NaN values of the series.
func Finite(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

// AnnualizedMean returns the mean daily value times 252, or NaN when the
// series has no observations.
func AnnualizedMean(values []float64) float64 {
	f := Finite(values)
	if len(f) == 0 {
		return math.NaN()
	}
	return stat.Mean(f, nil) * TradingDaysPerYear
}

// RollingCorrelation returns the Pearson correlation of x and y over a
// trailing window. Dates before the first full window, windows with a
// missing value and windows where either side is constant are NaN.
func RollingCorrelation(x, y []float64, window int) ([]float64, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("rolling correlation: series lengths differ (%d vs %d)", len(x), len(y))
	}
	if window < 2 {
		return nil, fmt.Errorf("rolling correlation: window %d < 2", window)
	}
	out := nanSlice(len(x))
	for end := window; end <= len(x); end++ {
		xs, ys := x[end-window:end], y[end-window:end]
		if hasNaN(xs) || hasNaN(ys) {
			continue
		}
		if stat.Variance(xs, nil) == 0 || stat.Variance(ys, nil) == 0 {
			continue
		}
		out[end-1] = stat.Correlation(xs, ys, nil)
	}
	return out, nil
}

// RollingVolatility returns the trailing-window sample standard deviation
// scaled by sqrt(252).
func RollingVolatility(x []float64, window int) ([]float64, error) {
	if window < 2 {
		return nil, fmt.Errorf("rolling volatility: window %d < 2", window)
	}
	out := nanSlice(len(x))
	scale := math.Sqrt(TradingDaysPerYear)
	for end := window; end <= len(x); end++ {
		xs := x[end-window : end]
		if hasNaN(xs) {
			continue
		}
		out[end-1] = stat.StdDev(xs, nil) * scale
	}
	return out, nil
}

// MonthStat is the average monthly total of a calendar month.
type MonthStat struct {
	Month      time.Month
	Annualized float64 // mean of the monthly sums times 12
	Months     int     // number of calendar months averaged
}

// MonthlySeasonality sums the series per calendar month, averages those
// sums by month of year and scales them by 12. Months without data are
// reported with Months = 0 and a NaN value.
func MonthlySeasonality(dates []time.Time, values []float64) ([]MonthStat, error) {
	if len(dates) != len(values) {
		return nil, fmt.Errorf("monthly seasonality: %d dates for %d values", len(dates), len(values))
	}
	type period struct {
		year  int
		month time.Month
	}
	sums := make(map[period]float64)
	var order []period
	for i, d := range dates {
		p := period{d.Year(), d.Month()}
		if _, ok := sums[p]; !ok {
			order = append(order, p)
			sums[p] = 0
		}
		if !math.IsNaN(values[i]) {
			sums[p] += values[i]
		}
	}

	out := make([]MonthStat, 12)
	totals := make([]float64, 12)
	for i := range out {
		out[i].Month = time.Month(i + 1)
	}
	for _, p := range order {
		totals[p.month-1] += sums[p]
		out[p.month-1].Months++
	}
	for i := range out {
		if out[i].Months == 0 {
			out[i].Annualized = math.NaN()
			continue
		}
		out[i].Annualized = totals[i] / float64(out[i].Months) * 12
	}
	return out, nil
}

// YearTotal is the sum of a series over one calendar year.
type YearTotal struct {
	Year  int
	Total float64
	Days  int // observations that contributed
}

// YearlyTotals sums the series per calendar year, in chronological order.
func YearlyTotals(dates []time.Time, values []float64) ([]YearTotal, error) {
	if len(dates) != len(values) {
		return nil, fmt.Errorf("yearly totals: %d dates for %d values", len(dates), len(values))
	}
	byYear := make(map[int]*YearTotal)
	for i, d := range dates {
		if math.IsNaN(values[i]) {
			continue
		}
		y := byYear[d.Year()]
		if y == nil {
			y = &YearTotal{Year: d.Year()}
			byYear[d.Year()] = y
		}
		y.Total += values[i]
		y.Days++
	}
	out := make([]YearTotal, 0, len(byYear))
	for _, y := range byYear {
		out = append(out, *y)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out, nil
}

// Histogram is a fixed-width binning of a sample.
type Histogram struct {
	Edges  []float64 // len(Counts)+1 bin boundaries
	Counts []float64
	Mean   float64
}

// NewHistogram bins the finite values into equal-width bins spanning the
// sample range.
func NewHistogram(values []float64, bins int) (Histogram, error) {
	if bins < 1 {
		return Histogram{}, fmt.Errorf("histogram: %d bins", bins)
	}
	sample := Finite(values)
	if len(sample) == 0 {
		return Histogram{}, fmt.Errorf("histogram: no finite values")
	}
	sort.Float64s(sample)

	lo, hi := sample[0], sample[len(sample)-1]
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}
	edges := make([]float64, bins+1)
	floats.Span(edges, lo, hi)
	// stat.Histogram excludes the upper edge
	edges[bins] = math.Nextafter(hi, math.Inf(1))

	counts := stat.Histogram(nil, edges, sample, nil)
	edges[bins] = hi
	return Histogram{Edges: edges, Counts: counts, Mean: stat.Mean(sample, nil)}, nil
}

// Centers returns the midpoint of each bin.
func (h Histogram) Centers() []float64 {
	out := make([]float64, len(h.Counts))
	for i := range out {
		out[i] = (h.Edges[i] + h.Edges[i+1]) / 2
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func hasNaN(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
