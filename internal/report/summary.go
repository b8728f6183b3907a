package report

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/jihwanw/big-dragons-never-die/internal/famamacbeth"
)

// Significance thresholds of the two-sided p-value.
const (
	Level1  = 0.01
	Level5  = 0.05
	Level10 = 0.10
)

// Significance returns the conventional star marker of a p-value:
// *** below 1%, ** below 5%, * below 10%, and "" otherwise or when the
// p-value is undefined.
func Significance(p float64) string {
	switch {
	case math.IsNaN(p):
		return ""
	case p < Level1:
		return "***"
	case p < Level5:
		return "**"
	case p < Level10:
		return "*"
	default:
		return ""
	}
}

// SummaryRow is one factor premium of one methodology.
type SummaryRow struct {
	Methodology   string
	Factor        string
	DailyPremium  float64
	AnnualPremium float64
	StdDev        float64
	TStat         float64
	PValue        float64
	Observations  int
	Significance  string
	Note          string
}

// Summarize flattens the premia of every methodology into summary rows,
// preserving methodology order and the factor order of each result.
func Summarize(results []*famamacbeth.Result) []SummaryRow {
	var rows []SummaryRow
	for _, res := range results {
		if res == nil {
			continue
		}
		for _, p := range res.Premia {
			rows = append(rows, summaryRow(res.Methodology, p))
		}
	}
	return rows
}

func summaryRow(methodology string, p famamacbeth.Premium) SummaryRow {
	return SummaryRow{
		Methodology:   methodology,
		Factor:        p.Factor,
		DailyPremium:  p.DailyMean,
		AnnualPremium: p.AnnualMean,
		StdDev:        p.StdDev,
		TStat:         p.TStat,
		PValue:        p.PValue,
		Observations:  p.Observations,
		Significance:  Significance(p.PValue),
		Note:          p.Note,
	}
}

// ComparisonRow pairs a factor premium of the full-market methodology with
// the same factor under a mega-cap methodology.
type ComparisonRow struct {
	Methodology string
	Factor      string

	OldAnnual float64
	OldTStat  float64
	OldPValue float64
	OldSig    string

	NewAnnual float64
	NewTStat  float64
	NewPValue float64
	NewSig    string

	Difference  float64 // NewAnnual - OldAnnual
	SignChanged bool
}

// Compare pairs the premia of each new methodology with the old one by
// factor label. A nil old result leaves the old columns undefined.
func Compare(old *famamacbeth.Result, news []*famamacbeth.Result) []ComparisonRow {
	var rows []ComparisonRow
	for _, res := range news {
		if res == nil {
			continue
		}
		for _, np := range res.Premia {
			row := ComparisonRow{
				Methodology: res.Methodology,
				Factor:      np.Factor,
				OldAnnual:   math.NaN(),
				OldTStat:    math.NaN(),
				OldPValue:   math.NaN(),
				NewAnnual:   np.AnnualMean,
				NewTStat:    np.TStat,
				NewPValue:   np.PValue,
				NewSig:      Significance(np.PValue),
				Difference:  math.NaN(),
			}
			if old != nil {
				if op, ok := old.Premium(np.Factor); ok {
					row.OldAnnual = op.AnnualMean
					row.OldTStat = op.TStat
					row.OldPValue = op.PValue
					row.OldSig = Significance(op.PValue)
					row.Difference = np.AnnualMean - op.AnnualMean
					row.SignChanged = !math.IsNaN(row.Difference) &&
						math.Signbit(np.AnnualMean) != math.Signbit(op.AnnualMean)
				}
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// BetaStats describes the cross-sectional distribution of one factor's
// Stage-1 loadings.
type BetaStats struct {
	Methodology string
	Factor      string
	Count       int
	Mean        float64
	StdDev      float64
	Min         float64
	Max         float64
	Median      float64
}

// BetaDistribution returns the loading statistics of every factor of a
// methodology. With no loadings every statistic is NaN.
func BetaDistribution(res *famamacbeth.Result) []BetaStats {
	if res == nil || res.Stage1 == nil {
		return nil
	}
	out := make([]BetaStats, 0, len(res.Stage1.Factors))
	for _, factor := range res.Stage1.Factors {
		out = append(out, describe(res.Methodology, factor, res.Stage1.Betas(factor)))
	}
	return out
}

func describe(methodology, factor string, betas []float64) BetaStats {
	s := BetaStats{
		Methodology: methodology,
		Factor:      factor,
		Count:       len(betas),
		Mean:        math.NaN(),
		StdDev:      math.NaN(),
		Min:         math.NaN(),
		Max:         math.NaN(),
		Median:      math.NaN(),
	}
	if len(betas) == 0 {
		return s
	}
	sorted := append([]float64(nil), betas...)
	sort.Float64s(sorted)

	s.Mean = stat.Mean(sorted, nil)
	if len(sorted) > 1 {
		s.StdDev = stat.StdDev(sorted, nil)
	}
	s.Min = floats.Min(sorted)
	s.Max = floats.Max(sorted)
	s.Median = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	return s
}

// DispersionChange returns the relative change of the loading standard
// deviation of a factor from before to after, e.g. -0.4 for a 40% narrower
// distribution. It is NaN when either side is undefined or old is zero.
func DispersionChange(before, after []BetaStats, factor string) float64 {
	o, ok1 := findStats(before, factor)
	n, ok2 := findStats(after, factor)
	if !ok1 || !ok2 || math.IsNaN(o.StdDev) || math.IsNaN(n.StdDev) || o.StdDev == 0 {
		return math.NaN()
	}
	return (n.StdDev - o.StdDev) / o.StdDev
}

func findStats(stats []BetaStats, factor string) (BetaStats, bool) {
	for _, s := range stats {
		if s.Factor == factor {
			return s, true
		}
	}
	return BetaStats{}, false
}

// DiagnosticRow reports how many items of a stage were skipped for one
// reason.
type DiagnosticRow struct {
	Methodology string
	Stage       string
	Reason      famamacbeth.Reason
	Count       int
	Keys        []string
}

// Diagnose lists the skip reasons of both estimation stages of every
// methodology.
func Diagnose(results []*famamacbeth.Result) []DiagnosticRow {
	var rows []DiagnosticRow
	for _, res := range results {
		if res == nil {
			continue
		}
		for _, st := range []struct {
			name string
			diag *famamacbeth.Diagnostics
		}{
			{"stage1", stage1Diagnostics(res)},
			{"stage2", stage2Diagnostics(res)},
		} {
			if st.diag == nil {
				continue
			}
			for _, reason := range st.diag.Reasons() {
				rows = append(rows, DiagnosticRow{
					Methodology: res.Methodology,
					Stage:       st.name,
					Reason:      reason,
					Count:       st.diag.Count(reason),
					Keys:        st.diag.Skipped[reason],
				})
			}
		}
	}
	return rows
}

func stage1Diagnostics(res *famamacbeth.Result) *famamacbeth.Diagnostics {
	if res.Stage1 == nil {
		return nil
	}
	return &res.Stage1.Diagnostics
}

func stage2Diagnostics(res *famamacbeth.Result) *famamacbeth.Diagnostics {
	if res.Stage2 == nil {
		return nil
	}
	return &res.Stage2.Diagnostics
}
