package panel

import (
	"fmt"
	"math"
	"time"
)

// Panel is an immutable date-indexed numeric table. Rows are trading dates
// in strictly increasing order, columns are uniquely named series. A NaN
// cell means "no observation".
type Panel struct {
	dates   []time.Time
	columns []string
	index   map[string]int
	values  [][]float64 // column-major: values[column][row]
}

// New builds a panel from column-major values. The inputs are copied.
func New(dates []time.Time, columns []string, values [][]float64) (*Panel, error) {
	if len(columns) != len(values) {
		return nil, fmt.Errorf("panel has %d column names but %d value columns", len(columns), len(values))
	}
	for i := 1; i < len(dates); i++ {
		if !dates[i].After(dates[i-1]) {
			return nil, fmt.Errorf("dates not strictly increasing at row %d (%s after %s)",
				i, dates[i].Format(time.DateOnly), dates[i-1].Format(time.DateOnly))
		}
	}

	p := &Panel{
		dates:   append([]time.Time(nil), dates...),
		columns: make([]string, 0, len(columns)),
		index:   make(map[string]int, len(columns)),
		values:  make([][]float64, 0, len(columns)),
	}
	for i, name := range columns {
		if name == "" {
			return nil, fmt.Errorf("column %d has an empty name", i)
		}
		if _, dup := p.index[name]; dup {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		if len(values[i]) != len(dates) {
			return nil, fmt.Errorf("column %q has %d values for %d dates", name, len(values[i]), len(dates))
		}
		p.index[name] = len(p.columns)
		p.columns = append(p.columns, name)
		p.values = append(p.values, append([]float64(nil), values[i]...))
	}
	return p, nil
}

// MustNew is New for fixtures and literals known to be valid.
func MustNew(dates []time.Time, columns []string, values [][]float64) *Panel {
	p, err := New(dates, columns, values)
	if err != nil {
		panic(err)
	}
	return p
}

// Empty returns a panel with the given columns and no rows.
func Empty(columns ...string) *Panel {
	values := make([][]float64, len(columns))
	for i := range values {
		values[i] = []float64{}
	}
	return MustNew(nil, columns, values)
}

// Len returns the number of rows.
func (p *Panel) Len() int { return len(p.dates) }

// Width returns the number of columns.
func (p *Panel) Width() int { return len(p.columns) }

// Dates returns a copy of the date index.
func (p *Panel) Dates() []time.Time { return append([]time.Time(nil), p.dates...) }

// Date returns the date of row i.
func (p *Panel) Date(i int) time.Time { return p.dates[i] }

// Columns returns a copy of the column names in order.
func (p *Panel) Columns() []string { return append([]string(nil), p.columns...) }

// Has reports whether the panel carries the named column.
func (p *Panel) Has(name string) bool {
	_, ok := p.index[name]
	return ok
}

// Column returns a copy of the named series.
func (p *Panel) Column(name string) ([]float64, bool) {
	i, ok := p.index[name]
	if !ok {
		return nil, false
	}
	return append([]float64(nil), p.values[i]...), true
}

// View returns the named series without copying. Callers must not modify it.
func (p *Panel) View(name string) ([]float64, bool) {
	i, ok := p.index[name]
	if !ok {
		return nil, false
	}
	return p.values[i], true
}

// At returns the cell at row i of the named column, NaN when the column is absent.
func (p *Panel) At(i int, name string) float64 {
	c, ok := p.index[name]
	if !ok {
		return math.NaN()
	}
	return p.values[c][i]
}

// Observations counts the non-missing cells of the named column.
func (p *Panel) Observations(name string) int {
	col, ok := p.View(name)
	if !ok {
		return 0
	}
	n := 0
	for _, v := range col {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}

// Select returns a panel restricted to the named columns, in the given order.
func (p *Panel) Select(names ...string) (*Panel, error) {
	values := make([][]float64, len(names))
	for i, name := range names {
		col, ok := p.View(name)
		if !ok {
			return nil, fmt.Errorf("column %q not found", name)
		}
		values[i] = col
	}
	return New(p.dates, names, values)
}

// Present filters names down to the columns this panel carries, keeping order.
func (p *Panel) Present(names []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		if p.Has(name) {
			out = append(out, name)
		}
	}
	return out
}

// With returns a copy of the panel with an extra column appended.
func (p *Panel) With(name string, values []float64) (*Panel, error) {
	if p.Has(name) {
		return nil, fmt.Errorf("duplicate column %q", name)
	}
	cols := append(p.Columns(), name)
	vals := append(append([][]float64(nil), p.values...), values)
	return New(p.dates, cols, vals)
}

// Reindex restricts the panel to the given dates, which must be strictly
// increasing. Dates the panel does not carry yield NaN rows.
func (p *Panel) Reindex(dates []time.Time) (*Panel, error) {
	pos := make(map[int64]int, len(p.dates))
	for i, d := range p.dates {
		pos[dateKey(d)] = i
	}
	values := make([][]float64, len(p.columns))
	for c := range values {
		values[c] = make([]float64, len(dates))
	}
	for r, d := range dates {
		src, ok := pos[dateKey(d)]
		for c := range values {
			if ok {
				values[c][r] = p.values[c][src]
			} else {
				values[c][r] = math.NaN()
			}
		}
	}
	return New(dates, p.columns, values)
}

// Window returns the rows with from <= date <= to. A zero bound is open.
func (p *Panel) Window(from, to time.Time) *Panel {
	var dates []time.Time
	for _, d := range p.dates {
		if !from.IsZero() && d.Before(from) {
			continue
		}
		if !to.IsZero() && d.After(to) {
			continue
		}
		dates = append(dates, d)
	}
	out, err := p.Reindex(dates)
	if err != nil {
		// dates is an ordered subset of p.dates
		panic(err)
	}
	return out
}

func dateKey(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix()
}
