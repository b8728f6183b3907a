package dataset

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	apperrors "github.com/jihwanw/big-dragons-never-die/internal/errors"
	"github.com/jihwanw/big-dragons-never-die/internal/panel"
	"github.com/jihwanw/big-dragons-never-die/internal/universe"
)

// MissingTokens are the cell values read as "no observation".
var MissingTokens = []string{"", "NA", "N/A", "NaN", "nan", "null", "NULL", "None", "<nil>"}

// dateLayouts are tried in order when parsing a date index.
var dateLayouts = []string{
	time.DateOnly,
	time.DateTime,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006/01/02",
	"01/02/2006",
	"20060102",
}

// UniverseColumns names the columns of the ranked snapshot. Only Ticker is
// required; without a rank column the file order is the rank order.
type UniverseColumns struct {
	Ticker       string
	Rank         string
	Name         string
	MarketCap    string
	BookToMarket string
}

// Loader reads the study's input tables.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a loader.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger.With("component", "dataset")}
}

// LoadUniverse reads the ranked snapshot from a file.
func (l *Loader) LoadUniverse(path string, cols UniverseColumns) (*universe.Universe, error) {
	var u *universe.Universe
	err := withFile(path, func(r io.Reader) error {
		var err error
		u, err = l.ReadUniverse(r, path, cols)
		return err
	})
	return u, err
}

// LoadPanel reads a date-indexed table from a file. The first column is
// the date index; every other column is numeric.
func (l *Loader) LoadPanel(path string) (*panel.Panel, error) {
	var p *panel.Panel
	err := withFile(path, func(r io.Reader) error {
		var err error
		p, err = l.ReadPanel(r, path)
		return err
	})
	return p, err
}

// LoadFactorPanel reads the factor table, checks that the required columns
// are present and optionally converts percent values to decimals.
func (l *Loader) LoadFactorPanel(path string, required []string, percentScaled bool) (*panel.Panel, error) {
	p, err := l.LoadPanel(path)
	if err != nil {
		return nil, err
	}
	return l.PrepareFactors(p, path, required, percentScaled)
}

// PrepareFactors validates and rescales an already loaded factor panel.
func (l *Loader) PrepareFactors(p *panel.Panel, source string, required []string, percentScaled bool) (*panel.Panel, error) {
	var missing []string
	for _, name := range required {
		if name != "" && !p.Has(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.NewInputError(fmt.Sprintf("factor table lacks columns %v", missing), nil).
			WithContext("file", source).
			WithContext("columns", p.Columns())
	}
	if !percentScaled {
		return p, nil
	}

	columns := p.Columns()
	values := make([][]float64, len(columns))
	for c, name := range columns {
		values[c], _ = p.Column(name)
		for i := range values[c] {
			values[c][i] /= 100
		}
	}
	scaled, err := panel.New(p.Dates(), columns, values)
	if err != nil {
		return nil, fmt.Errorf("rescale factor table: %w", err)
	}
	l.logger.Debug("factor table rescaled from percent", "file", source, "columns", p.Width())
	return scaled, nil
}

// ReadUniverse parses the ranked snapshot. source names the input in errors.
func (l *Loader) ReadUniverse(r io.Reader, source string, cols UniverseColumns) (*universe.Universe, error) {
	df, err := readFrame(r, source)
	if err != nil {
		return nil, err
	}
	if cols.Ticker == "" || !hasColumn(df, cols.Ticker) {
		return nil, apperrors.NewInputError(fmt.Sprintf("universe table lacks ticker column %q", cols.Ticker), nil).
			WithContext("file", source).
			WithContext("columns", df.Names())
	}

	tickers := records(df, cols.Ticker)
	entities := make([]universe.Entity, len(tickers))
	for i, t := range tickers {
		if isMissing(t) {
			return nil, cellError(source, cols.Ticker, i, t, fmt.Errorf("empty ticker"))
		}
		entities[i] = universe.Entity{
			Ticker:       t,
			Rank:         i + 1,
			MarketCap:    math.NaN(),
			BookToMarket: math.NaN(),
		}
	}

	if hasColumn(df, cols.Rank) {
		for i, cell := range records(df, cols.Rank) {
			rank, err := strconv.Atoi(cell)
			if err != nil {
				f, ferr := strconv.ParseFloat(cell, 64)
				if ferr != nil || f != math.Trunc(f) {
					return nil, cellError(source, cols.Rank, i, cell, err)
				}
				rank = int(f)
			}
			entities[i].Rank = rank
		}
	}
	if hasColumn(df, cols.Name) {
		for i, cell := range records(df, cols.Name) {
			if !isMissing(cell) {
				entities[i].Name = cell
			}
		}
	}
	for _, numeric := range []struct {
		column string
		set    func(*universe.Entity, float64)
	}{
		{cols.MarketCap, func(e *universe.Entity, v float64) { e.MarketCap = v }},
		{cols.BookToMarket, func(e *universe.Entity, v float64) { e.BookToMarket = v }},
	} {
		if !hasColumn(df, numeric.column) {
			continue
		}
		for i, cell := range records(df, numeric.column) {
			v, err := parseValue(cell)
			if err != nil {
				return nil, cellError(source, numeric.column, i, cell, err)
			}
			numeric.set(&entities[i], v)
		}
	}

	u, err := universe.New(entities)
	if err != nil {
		return nil, apperrors.NewInputError("invalid universe", err).WithContext("file", source)
	}

	withValue := 0
	for _, e := range u.Entities() {
		if e.HasValueMetric() {
			withValue++
		}
	}
	l.logger.Info("universe loaded",
		"file", source,
		"entities", u.Len(),
		"with_value_metric", withValue,
		"ranked_by_column", hasColumn(df, cols.Rank))
	return u, nil
}

// ReadPanel parses a date-indexed numeric table. Rows are sorted by date;
// a date that appears twice is an input error.
func (l *Loader) ReadPanel(r io.Reader, source string) (*panel.Panel, error) {
	df, err := readFrame(r, source)
	if err != nil {
		return nil, err
	}
	names := df.Names()
	if len(names) < 2 {
		return nil, apperrors.NewInputError("table needs a date column and at least one value column", nil).
			WithContext("file", source)
	}

	rawDates := records(df, names[0])
	dates := make([]time.Time, len(rawDates))
	for i, cell := range rawDates {
		d, err := ParseDate(cell)
		if err != nil {
			return nil, cellError(source, names[0], i, cell, err)
		}
		dates[i] = d
	}

	columns := names[1:]
	values := make([][]float64, len(columns))
	for c, name := range columns {
		values[c] = make([]float64, len(dates))
		for i, cell := range records(df, name) {
			v, err := parseValue(cell)
			if err != nil {
				return nil, cellError(source, name, i, cell, err)
			}
			values[c][i] = v
		}
	}

	order := make([]int, len(dates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return dates[order[a]].Before(dates[order[b]]) })
	sortedDates := make([]time.Time, len(dates))
	for i, src := range order {
		sortedDates[i] = dates[src]
		if i > 0 && sortedDates[i].Equal(sortedDates[i-1]) {
			return nil, apperrors.NewInputError(
				fmt.Sprintf("duplicate date %s", sortedDates[i].Format(time.DateOnly)), nil).
				WithContext("file", source)
		}
	}
	for c := range values {
		sorted := make([]float64, len(order))
		for i, src := range order {
			sorted[i] = values[c][src]
		}
		values[c] = sorted
	}

	p, err := panel.New(sortedDates, columns, values)
	if err != nil {
		return nil, apperrors.NewInputError("invalid table", err).WithContext("file", source)
	}

	if p.Len() > 0 {
		l.logger.Info("table loaded",
			"file", source,
			"rows", p.Len(),
			"columns", p.Width(),
			"start", p.Date(0).Format(time.DateOnly),
			"end", p.Date(p.Len()-1).Format(time.DateOnly))
	} else {
		l.logger.Warn("table has no rows", "file", source)
	}
	return p, nil
}

// ParseDate parses a date in any of the supported layouts and returns it
// at UTC midnight.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

func readFrame(r io.Reader, source string) (dataframe.DataFrame, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(MissingTokens),
	)
	if df.Err != nil {
		return df, apperrors.NewInputError("failed to parse CSV", df.Err).WithContext("file", source)
	}
	return df, nil
}

func withFile(path string, read func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return apperrors.NewNotFoundError(path)
		}
		return apperrors.NewInputError("failed to open input", err).WithContext("file", path)
	}
	defer f.Close()
	return read(f)
}

func hasColumn(df dataframe.DataFrame, name string) bool {
	if name == "" {
		return false
	}
	for _, n := range df.Names() {
		if n == name {
			return true
		}
	}
	return false
}

func records(df dataframe.DataFrame, name string) []string {
	out := df.Col(name).Records()
	for i := range out {
		out[i] = strings.TrimSpace(out[i])
	}
	return out
}

func isMissing(cell string) bool {
	for _, token := range MissingTokens {
		if cell == token {
			return true
		}
	}
	return false
}

// parseValue reads a numeric cell; missing tokens become NaN.
func parseValue(cell string) (float64, error) {
	if isMissing(cell) {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0, err
	}
	if math.IsInf(v, 0) {
		return 0, fmt.Errorf("infinite value")
	}
	return v, nil
}

func cellError(source, column string, row int, cell string, cause error) error {
	return apperrors.NewInputError(fmt.Sprintf("bad value %q in column %s", cell, column), cause).
		WithContext("file", source).
		WithContext("column", column).
		WithContext("row", row+2)
}
