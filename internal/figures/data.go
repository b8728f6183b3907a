package figures

import (
	"fmt"
	"math"
	"time"

	"github.com/jihwanw/big-dragons-never-die/internal/analytics"
	"github.com/jihwanw/big-dragons-never-die/internal/exporter"
	"github.com/jihwanw/big-dragons-never-die/internal/famamacbeth"
	"github.com/jihwanw/big-dragons-never-die/internal/portfolio"
)

// ChartKind selects how a sheet is drawn.
type ChartKind string

const (
	ChartLine   ChartKind = "line"
	ChartColumn ChartKind = "column"
)

// Series is one named column of a figure.
type Series struct {
	Name   string
	Values []float64
}

// Sheet is the data behind one figure: a category axis and one or more
// value series of the same length.
type Sheet struct {
	Name       string // sheet and file name, at most 31 characters
	Title      string
	Category   string // header of the category column
	Categories []string
	Series     []Series
	Kind       ChartKind
	YAxis      string
}

// Table renders the sheet for CSV export.
func (s Sheet) Table() exporter.Table {
	t := exporter.Table{Headers: []string{s.Category}}
	for _, series := range s.Series {
		t.Headers = append(t.Headers, series.Name)
	}
	for i, c := range s.Categories {
		record := []string{c}
		for _, series := range s.Series {
			record = append(record, exporter.FormatFloat(series.Values[i], 8))
		}
		t.Records = append(t.Records, record)
	}
	return t
}

func (s Sheet) validate() error {
	if s.Name == "" || len(s.Name) > 31 {
		return fmt.Errorf("sheet name %q must have 1 to 31 characters", s.Name)
	}
	for _, series := range s.Series {
		if len(series.Values) != len(s.Categories) {
			return fmt.Errorf("sheet %s: series %s has %d values for %d categories",
				s.Name, series.Name, len(series.Values), len(s.Categories))
		}
	}
	return nil
}

// Inputs is everything the figures are drawn from. Factor results share
// the return panel's date axis; Market is aligned to it.
type Inputs struct {
	Dates         []time.Time
	Factors       []*portfolio.Result
	Primary       string // spread used for the rolling and seasonal figures
	Market        []float64
	Results       []*famamacbeth.Result
	RollingWindow int
	HistogramBins int
}

// Build derives every figure sheet. Figures whose inputs are missing or
// empty are left out rather than failing the run.
func Build(in Inputs) ([]Sheet, error) {
	var sheets []Sheet
	dates := make([]string, len(in.Dates))
	for i, d := range in.Dates {
		dates[i] = exporter.FormatDate(d)
	}

	groups := Sheet{Name: "cumulative_groups", Title: "Cumulative group returns", Category: "date",
		Categories: dates, Kind: ChartLine, YAxis: "Growth of 1"}
	spreads := Sheet{Name: "cumulative_spreads", Title: "Cumulative size spreads", Category: "date",
		Categories: dates, Kind: ChartLine, YAxis: "Cumulative return"}
	quintiles := Sheet{Name: "quintile_annual", Title: "Annualised mean return by size quintile",
		Category: "group", Kind: ChartColumn, YAxis: "Annual return"}
	annual := Series{Name: "annual_mean"}

	var primary []float64
	for _, f := range in.Factors {
		for _, name := range f.Series.Columns() {
			values, _ := f.Series.Column(name)
			if name == f.Spread {
				spreads.Series = append(spreads.Series, Series{Name: name, Values: analytics.Accumulate(values)})
				if name == in.Primary {
					primary = values
				}
				continue
			}
			groups.Series = append(groups.Series, Series{Name: name, Values: analytics.Compound(values)})
			if isQuintile(name) {
				quintiles.Categories = append(quintiles.Categories, name)
				annual.Values = append(annual.Values, analytics.AnnualizedMean(values))
			}
		}
	}
	quintiles.Series = []Series{annual}
	for _, s := range []Sheet{groups, spreads, quintiles} {
		if len(s.Series) > 0 && len(s.Categories) > 0 && len(s.Series[0].Values) > 0 {
			sheets = append(sheets, s)
		}
	}

	for _, res := range in.Results {
		if res == nil {
			continue
		}
		if res.Stage1 != nil {
			if h, err := histogramSheet("betas_"+res.Methodology, "Size loadings, "+res.Methodology,
				res.Stage1.Betas(famamacbeth.FactorSize), in.HistogramBins); err == nil {
				sheets = append(sheets, h)
			}
		}
		if res.Stage2 != nil {
			if h, err := histogramSheet("premia_"+res.Methodology, "Daily size premia, "+res.Methodology,
				res.Stage2.Series(famamacbeth.FactorSize), in.HistogramBins); err == nil {
				sheets = append(sheets, h)
			}
		}
	}

	if primary == nil {
		return sheets, validateAll(sheets)
	}

	if len(in.Market) == len(primary) {
		corr, err := analytics.RollingCorrelation(primary, in.Market, in.RollingWindow)
		if err != nil {
			return nil, err
		}
		volSpread, err := analytics.RollingVolatility(primary, in.RollingWindow)
		if err != nil {
			return nil, err
		}
		volMarket, err := analytics.RollingVolatility(in.Market, in.RollingWindow)
		if err != nil {
			return nil, err
		}
		sheets = append(sheets,
			Sheet{Name: "rolling_correlation", Title: fmt.Sprintf("%d-day correlation of %s with the market", in.RollingWindow, in.Primary),
				Category: "date", Categories: dates, Kind: ChartLine, YAxis: "Correlation",
				Series: []Series{{Name: in.Primary, Values: corr}}},
			Sheet{Name: "rolling_volatility", Title: fmt.Sprintf("%d-day annualised volatility", in.RollingWindow),
				Category: "date", Categories: dates, Kind: ChartLine, YAxis: "Volatility",
				Series: []Series{{Name: in.Primary, Values: volSpread}, {Name: "market", Values: volMarket}}},
		)
	}

	months, err := analytics.MonthlySeasonality(in.Dates, primary)
	if err != nil {
		return nil, err
	}
	season := Sheet{Name: "seasonality", Title: "Mean monthly " + in.Primary + ", annualised", Category: "month",
		Kind: ChartColumn, YAxis: "Annualised return", Series: []Series{{Name: in.Primary}}}
	for _, m := range months {
		season.Categories = append(season.Categories, m.Month.String()[:3])
		season.Series[0].Values = append(season.Series[0].Values, m.Annualized)
	}
	sheets = append(sheets, season)

	years, err := analytics.YearlyTotals(in.Dates, primary)
	if err != nil {
		return nil, err
	}
	if len(years) > 0 {
		yearly := Sheet{Name: "yearly", Title: "Calendar-year " + in.Primary, Category: "year",
			Kind: ChartColumn, YAxis: "Return", Series: []Series{{Name: in.Primary}}}
		for _, y := range years {
			yearly.Categories = append(yearly.Categories, fmt.Sprint(y.Year))
			yearly.Series[0].Values = append(yearly.Series[0].Values, y.Total)
		}
		sheets = append(sheets, yearly)
	}

	return sheets, validateAll(sheets)
}

func histogramSheet(name, title string, values []float64, bins int) (Sheet, error) {
	if len(name) > 31 {
		name = name[:31]
	}
	h, err := analytics.NewHistogram(values, bins)
	if err != nil {
		return Sheet{}, err
	}
	s := Sheet{Name: name, Title: title, Category: "bin_center", Kind: ChartColumn, YAxis: "Frequency",
		Series: []Series{{Name: "count", Values: h.Counts}}}
	for _, c := range h.Centers() {
		s.Categories = append(s.Categories, exporter.FormatFloat(c, 6))
	}
	if math.IsNaN(h.Mean) {
		return Sheet{}, fmt.Errorf("histogram %s has no mean", name)
	}
	return s, nil
}

// isQuintile reports whether a group name is a quantile bucket, e.g. Q3.
func isQuintile(name string) bool {
	if len(name) < 2 || name[0] != 'Q' {
		return false
	}
	for _, r := range name[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func validateAll(sheets []Sheet) error {
	for _, s := range sheets {
		if err := s.validate(); err != nil {
			return err
		}
	}
	return nil
}
