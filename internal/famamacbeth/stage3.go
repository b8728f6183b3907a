package famamacbeth

import (
	"context"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Aggregator averages Stage-2 coefficient series and tests them against zero.
type Aggregator struct {
	logger *slog.Logger
}

// NewAggregator creates a Stage-3 aggregator.
func NewAggregator(logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{logger: logger}
}

// Aggregate returns one premium per factor of the Stage-2 result.
func (a *Aggregator) Aggregate(ctx context.Context, s2 *Stage2Result) []Premium {
	out := make([]Premium, len(s2.Factors))
	for i, factor := range s2.Factors {
		out[i] = Summarize(factor, s2.Series(factor))
		if !out[i].Defined {
			a.logger.WarnContext(ctx, "premium t-test undefined",
				"factor", factor,
				"observations", out[i].Observations,
				"note", out[i].Note)
			continue
		}
		a.logger.InfoContext(ctx, "premium aggregated",
			"factor", factor,
			"daily_mean", out[i].DailyMean,
			"annual_mean", out[i].AnnualMean,
			"t_stat", out[i].TStat,
			"p_value", out[i].PValue,
			"observations", out[i].Observations)
	}
	return out
}

// Summarize computes the mean, annualised mean, t-statistic and two-sided
// p-value of a coefficient series. Missing values are dropped. With fewer
// than two observations, or no variation, the test is undefined and TStat,
// PValue (and StdDev for n < 2) are NaN.
func Summarize(factor string, series []float64) Premium {
	values := make([]float64, 0, len(series))
	for _, v := range series {
		if finite(v) {
			values = append(values, v)
		}
	}
	n := len(values)
	p := Premium{
		Factor:       factor,
		Observations: n,
		DailyMean:    math.NaN(),
		AnnualMean:   math.NaN(),
		StdDev:       math.NaN(),
		TStat:        math.NaN(),
		PValue:       math.NaN(),
	}

	switch n {
	case 0:
		p.Note = "no observations"
		return p
	case 1:
		p.DailyMean = values[0]
		p.AnnualMean = values[0] * TradingDaysPerYear
		p.Note = "fewer than 2 observations, standard deviation undefined"
		return p
	}

	mean, std := stat.MeanStdDev(values, nil)
	p.DailyMean = mean
	p.AnnualMean = mean * TradingDaysPerYear
	p.StdDev = std
	if std == 0 || !finite(std) {
		p.Note = "zero variance, t-statistic undefined"
		return p
	}

	p.TStat = mean / (std / math.Sqrt(float64(n)))
	p.PValue = TwoSidedPValue(p.TStat, n-1)
	p.Defined = true
	return p
}

// TwoSidedPValue returns P(|T| >= |t|) for Student's t with df degrees of freedom.
func TwoSidedPValue(t float64, df int) float64 {
	if df < 1 || math.IsNaN(t) {
		return math.NaN()
	}
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(df)}
	return 2 * dist.Survival(math.Abs(t))
}
