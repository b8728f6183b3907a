package portfolio

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/jihwanw/big-dragons-never-die/internal/panel"
	"github.com/jihwanw/big-dragons-never-die/internal/universe"
)

// Coverage records how many of a group's members had return data.
type Coverage struct {
	Group     string
	Requested int
	Present   int
	Missing   []string // members without a return column
	EmptyDays int      // dates with no contributing member
}

// Result is the output of one rule: a panel of group series plus the
// spread column, all on the return panel's date axis.
type Result struct {
	Spread   string
	Long     string
	Short    string
	Series   *panel.Panel
	Coverage []Coverage
}

// SpreadSeries returns the long-short column.
func (r *Result) SpreadSeries() []float64 {
	s, _ := r.Series.Column(r.Spread)
	return s
}

// Builder computes equal-weight group returns and long-short spreads.
type Builder struct {
	logger *slog.Logger
}

// NewBuilder creates a portfolio builder.
func NewBuilder(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{logger: logger}
}

// Build applies a size rule to the universe and return panel.
func (b *Builder) Build(ctx context.Context, u *universe.Universe, returns *panel.Panel, rule Rule) (*Result, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return b.build(ctx, returns, rule.Name, rule.LongName(), rule.ShortName(), rule.Assign(u))
}

// BuildValue applies a book-to-market rule. Only entities with a value
// metric and a return column take part.
func (b *Builder) BuildValue(ctx context.Context, u *universe.Universe, returns *panel.Panel, rule ValueRule) (*Result, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	var eligible []universe.Entity
	for _, e := range u.SortedByValue() {
		if returns.Has(e.Ticker) {
			eligible = append(eligible, e)
		}
	}
	if len(eligible) < 2 {
		b.logger.WarnContext(ctx, "too few entities with a value metric",
			"factor", rule.Name,
			"eligible", len(eligible))
	}
	high, low := rule.Assign(eligible)
	return b.build(ctx, returns, rule.Name, rule.High, rule.Low, []Assignment{high, low})
}

func (b *Builder) build(ctx context.Context, returns *panel.Panel, spread, long, short string, groups []Assignment) (*Result, error) {
	res := &Result{Spread: spread, Long: long, Short: short}

	names := make([]string, 0, len(groups)+1)
	values := make([][]float64, 0, len(groups)+1)
	series := make(map[string][]float64, len(groups))

	for _, g := range groups {
		present := returns.Present(g.Members)
		cov := Coverage{
			Group:     g.Name,
			Requested: len(g.Members),
			Present:   len(present),
			Missing:   missing(g.Members, present),
		}

		s := EqualWeight(returns, present)
		for _, v := range s {
			if math.IsNaN(v) {
				cov.EmptyDays++
			}
		}
		res.Coverage = append(res.Coverage, cov)

		if cov.Present == 0 {
			b.logger.WarnContext(ctx, "portfolio group has no entities with return data",
				"factor", spread,
				"group", g.Name,
				"requested", cov.Requested)
		} else if len(cov.Missing) > 0 {
			b.logger.DebugContext(ctx, "portfolio members without return data",
				"factor", spread,
				"group", g.Name,
				"missing", cov.Missing)
		}

		names = append(names, g.Name)
		values = append(values, s)
		series[g.Name] = s
	}

	longS, ok := series[long]
	if !ok {
		return nil, fmt.Errorf("factor %s: long group %s not formed", spread, long)
	}
	shortS, ok := series[short]
	if !ok {
		return nil, fmt.Errorf("factor %s: short group %s not formed", spread, short)
	}
	diff, err := Spread(longS, shortS)
	if err != nil {
		return nil, fmt.Errorf("factor %s: %w", spread, err)
	}
	names = append(names, spread)
	values = append(values, diff)

	p, err := panel.New(returns.Dates(), names, values)
	if err != nil {
		return nil, fmt.Errorf("assemble factor %s: %w", spread, err)
	}
	res.Series = p

	b.logger.InfoContext(ctx, "portfolio factor built",
		"factor", spread,
		"long", long,
		"short", short,
		"dates", p.Len(),
		"observations", p.Observations(spread))
	return res, nil
}

// EqualWeight returns the row-wise mean over the given columns. Missing
// cells are skipped; a date with no contributing column is NaN.
func EqualWeight(returns *panel.Panel, columns []string) []float64 {
	out := make([]float64, returns.Len())
	sums := make([]float64, returns.Len())
	counts := make([]int, returns.Len())
	for _, name := range columns {
		col, ok := returns.View(name)
		if !ok {
			continue
		}
		for i, v := range col {
			if math.IsNaN(v) {
				continue
			}
			sums[i] += v
			counts[i]++
		}
	}
	for i := range out {
		if counts[i] == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = sums[i] / float64(counts[i])
	}
	return out
}

// Spread returns long minus short elementwise. A date missing on either side
// is missing in the spread.
func Spread(long, short []float64) ([]float64, error) {
	if len(long) != len(short) {
		return nil, fmt.Errorf("spread legs differ in length: %d vs %d", len(long), len(short))
	}
	out := make([]float64, len(long))
	for i := range long {
		if math.IsNaN(long[i]) || math.IsNaN(short[i]) {
			out[i] = math.NaN()
			continue
		}
		out[i] = long[i] - short[i]
	}
	return out, nil
}

func missing(members, present []string) []string {
	have := make(map[string]struct{}, len(present))
	for _, p := range present {
		have[p] = struct{}{}
	}
	var out []string
	for _, m := range members {
		if _, ok := have[m]; !ok {
			out = append(out, m)
		}
	}
	return out
}
