package testutil

import (
	"fmt"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/jihwanw/big-dragons-never-die/internal/panel"
	"github.com/jihwanw/big-dragons-never-die/internal/universe"
)

// Factor panel column names used by fixtures.
const (
	MarketColumn   = "Mkt-RF"
	SizeColumn     = "SMB"
	ValueColumn    = "HML"
	RiskFreeColumn = "RF"
)

// TradingDays returns n consecutive weekdays starting on 2020-01-02.
func TradingDays(n int) []time.Time {
	out := make([]time.Time, 0, n)
	d := time.Date(2020, time.January, 2, 0, 0, 0, 0, time.UTC)
	for len(out) < n {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			out = append(out, d)
		}
		d = d.AddDate(0, 0, 1)
	}
	return out
}

// Ticker returns the fixture identifier of rank i.
func Ticker(i int) string { return fmt.Sprintf("E%03d", i) }

// Tickers returns the identifiers of ranks 1..n.
func Tickers(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = Ticker(i + 1)
	}
	return out
}

// RankedUniverse returns n entities ranked 1..n with decreasing market cap
// and a deterministic book-to-market ratio.
func RankedUniverse(t testing.TB, n int) *universe.Universe {
	t.Helper()
	entities := make([]universe.Entity, n)
	for i := range entities {
		entities[i] = universe.Entity{
			Ticker:       Ticker(i + 1),
			Name:         fmt.Sprintf("Entity %d", i+1),
			Rank:         i + 1,
			MarketCap:    float64(3000 - 10*i),
			BookToMarket: 0.1 + float64((i*37)%n)/float64(n),
		}
	}
	u, err := universe.New(entities)
	if err != nil {
		t.Fatalf("build universe: %v", err)
	}
	return u
}

// BuildPanel fills a panel cell by cell.
func BuildPanel(t testing.TB, dates []time.Time, columns []string, cell func(row, col int) float64) *panel.Panel {
	t.Helper()
	values := make([][]float64, len(columns))
	for c := range values {
		values[c] = make([]float64, len(dates))
		for r := range dates {
			values[c][r] = cell(r, c)
		}
	}
	p, err := panel.New(dates, columns, values)
	if err != nil {
		t.Fatalf("build panel: %v", err)
	}
	return p
}

// FactorPanel returns seeded normal factor returns with a constant
// risk-free rate.
func FactorPanel(t testing.TB, seed int64, dates []time.Time) *panel.Panel {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	cols := []string{MarketColumn, SizeColumn, ValueColumn, RiskFreeColumn}
	scale := []float64{0.01, 0.005, 0.005}
	return BuildPanel(t, dates, cols, func(_, c int) float64 {
		if c == 3 {
			return 0.0001
		}
		return rng.NormFloat64() * scale[c]
	})
}

// Betas are the true loadings used to generate fixture returns.
type Betas struct {
	Market, Size, Value float64
}

// FactorModelReturns generates raw returns rf + bM*mkt + bS*smb + bV*hml + noise
// for every ticker. betas(i) gives the loadings of column i.
func FactorModelReturns(t testing.TB, seed int64, factors *panel.Panel, tickers []string, noise float64, betas func(i int) Betas) *panel.Panel {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	mkt, _ := factors.View(MarketColumn)
	smb, _ := factors.View(SizeColumn)
	hml, _ := factors.View(ValueColumn)
	rf, _ := factors.View(RiskFreeColumn)
	return BuildPanel(t, factors.Dates(), tickers, func(r, c int) float64 {
		b := betas(c)
		return rf[r] + b.Market*mkt[r] + b.Size*smb[r] + b.Value*hml[r] + rng.NormFloat64()*noise
	})
}

// Blank sets the first n cells of a column to missing and returns a new panel.
func Blank(t testing.TB, p *panel.Panel, column string, n int) *panel.Panel {
	t.Helper()
	cols := p.Columns()
	values := make([][]float64, len(cols))
	for i, name := range cols {
		values[i], _ = p.Column(name)
		if name == column {
			for r := 0; r < n && r < len(values[i]); r++ {
				values[i][r] = math.NaN()
			}
		}
	}
	out, err := panel.New(p.Dates(), cols, values)
	if err != nil {
		t.Fatalf("blank column %s: %v", column, err)
	}
	return out
}
