package report

import (
	"strings"

	"github.com/jihwanw/big-dragons-never-die/internal/exporter"
	"github.com/jihwanw/big-dragons-never-die/internal/famamacbeth"
	"github.com/jihwanw/big-dragons-never-die/internal/panel"
)

// Precision of the rendered tables.
const (
	EstimatePlaces = 8
	StatPlaces     = 4
)

// SummaryTable renders the premium summary.
func SummaryTable(rows []SummaryRow) exporter.Table {
	t := exporter.Table{Headers: []string{
		"methodology", "factor", "daily_premium", "annual_premium", "std_dev",
		"t_stat", "p_value", "observations", "significance", "note",
	}}
	for _, r := range rows {
		t.Records = append(t.Records, []string{
			r.Methodology,
			r.Factor,
			exporter.FormatFloat(r.DailyPremium, EstimatePlaces),
			exporter.FormatFloat(r.AnnualPremium, EstimatePlaces),
			exporter.FormatFloat(r.StdDev, EstimatePlaces),
			exporter.FormatFloat(r.TStat, StatPlaces),
			exporter.FormatFloat(r.PValue, StatPlaces),
			exporter.FormatInt(r.Observations),
			r.Significance,
			r.Note,
		})
	}
	return t
}

// ComparisonTable renders the old versus new premia.
func ComparisonTable(rows []ComparisonRow) exporter.Table {
	t := exporter.Table{Headers: []string{
		"methodology", "factor",
		"old_annual_premium", "old_t_stat", "old_p_value", "old_significance",
		"new_annual_premium", "new_t_stat", "new_p_value", "new_significance",
		"difference", "sign_changed",
	}}
	for _, r := range rows {
		t.Records = append(t.Records, []string{
			r.Methodology,
			r.Factor,
			exporter.FormatFloat(r.OldAnnual, EstimatePlaces),
			exporter.FormatFloat(r.OldTStat, StatPlaces),
			exporter.FormatFloat(r.OldPValue, StatPlaces),
			r.OldSig,
			exporter.FormatFloat(r.NewAnnual, EstimatePlaces),
			exporter.FormatFloat(r.NewTStat, StatPlaces),
			exporter.FormatFloat(r.NewPValue, StatPlaces),
			r.NewSig,
			exporter.FormatFloat(r.Difference, EstimatePlaces),
			exporter.FormatBool(r.SignChanged),
		})
	}
	return t
}

// BetaStatsTable renders the loading distributions.
func BetaStatsTable(stats []BetaStats) exporter.Table {
	t := exporter.Table{Headers: []string{
		"methodology", "factor", "count", "mean", "std_dev", "min", "median", "max",
	}}
	for _, s := range stats {
		t.Records = append(t.Records, []string{
			s.Methodology,
			s.Factor,
			exporter.FormatInt(s.Count),
			exporter.FormatFloat(s.Mean, StatPlaces+2),
			exporter.FormatFloat(s.StdDev, StatPlaces+2),
			exporter.FormatFloat(s.Min, StatPlaces+2),
			exporter.FormatFloat(s.Median, StatPlaces+2),
			exporter.FormatFloat(s.Max, StatPlaces+2),
		})
	}
	return t
}

// DiagnosticsTable renders the skip counts with the affected keys.
func DiagnosticsTable(rows []DiagnosticRow) exporter.Table {
	t := exporter.Table{Headers: []string{"methodology", "stage", "reason", "category", "count", "keys"}}
	for _, r := range rows {
		t.Records = append(t.Records, []string{
			r.Methodology,
			r.Stage,
			string(r.Reason),
			r.Reason.Category(),
			exporter.FormatInt(r.Count),
			strings.Join(r.Keys, " "),
		})
	}
	return t
}

// Stage1Table renders the loadings of one methodology, one row per entity.
func Stage1Table(s1 *famamacbeth.Stage1Result) exporter.Table {
	t := exporter.Table{Headers: []string{"entity", "alpha"}}
	for _, f := range s1.Factors {
		t.Headers = append(t.Headers, "beta_"+f)
	}
	t.Headers = append(t.Headers, "r_squared", "observations")

	for _, l := range s1.Loadings {
		record := []string{l.Entity, exporter.FormatFloat(l.Intercept, EstimatePlaces)}
		for _, b := range l.Betas {
			record = append(record, exporter.FormatFloat(b, EstimatePlaces))
		}
		record = append(record, exporter.FormatFloat(l.R2, StatPlaces+2), exporter.FormatInt(l.Observations))
		t.Records = append(t.Records, record)
	}
	return t
}

// stage2Headers returns the columns of the coefficient table.
func stage2Headers(s2 *famamacbeth.Stage2Result) []string {
	headers := []string{"date", "gamma_0"}
	for _, f := range s2.Factors {
		headers = append(headers, "gamma_"+f)
	}
	return append(headers, "entities")
}

func stage2Record(s2 *famamacbeth.Stage2Result, p famamacbeth.PeriodCoefficients) []string {
	record := []string{exporter.FormatDate(p.Date), exporter.FormatFloat(p.Gamma0, EstimatePlaces)}
	for _, g := range p.Gammas {
		record = append(record, exporter.FormatFloat(g, EstimatePlaces))
	}
	return append(record, exporter.FormatInt(p.Entities))
}

// PanelTable renders a panel with a leading date column.
func PanelTable(p *panel.Panel) exporter.Table {
	t := exporter.Table{Headers: append([]string{"date"}, p.Columns()...)}
	columns := make([][]float64, p.Width())
	for c, name := range p.Columns() {
		columns[c], _ = p.View(name)
	}
	for i := 0; i < p.Len(); i++ {
		record := make([]string, 0, p.Width()+1)
		record = append(record, exporter.FormatDate(p.Date(i)))
		for c := range columns {
			record = append(record, exporter.FormatFloat(columns[c][i], EstimatePlaces+2))
		}
		t.Records = append(t.Records, record)
	}
	return t
}
