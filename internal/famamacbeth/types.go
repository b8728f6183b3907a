package famamacbeth

import (
	"fmt"
	"sort"
	"time"
)

// Estimation thresholds and conventions.
const (
	// TradingDaysPerYear annualises daily premia. It is a fixed convention.
	TradingDaysPerYear = 252

	DefaultMinObservations = 50 // per-entity time-series fit
	DefaultMinEntities     = 10 // entities with loadings per date
	DefaultMinComplete     = 5  // complete cases per date
)

// Canonical factor labels used across methodologies.
const (
	FactorMarket = "market"
	FactorSize   = "size"
	FactorValue  = "value"
)

// DefaultFactors is the regressor order of the three-factor model.
var DefaultFactors = []string{FactorMarket, FactorSize, FactorValue}

// ReturnBasis selects the dependent variable of the cross-sectional fits.
type ReturnBasis string

const (
	// BasisRaw regresses raw entity returns.
	BasisRaw ReturnBasis = "raw"
	// BasisExcess subtracts the date's risk-free rate first.
	BasisExcess ReturnBasis = "excess"
)

// IsValid reports whether the basis is known.
func (b ReturnBasis) IsValid() bool { return b == BasisRaw || b == BasisExcess }

// Reason explains why an entity or a date produced no estimate.
type Reason string

const (
	ReasonInsufficientData Reason = "insufficient_data"
	ReasonNumerical        Reason = "numerical_instability"
	ReasonTooFewEntities   Reason = "too_few_entities"
	ReasonTooFewComplete   Reason = "too_few_complete"
)

// Category groups reasons into data insufficiency and numerical instability.
func (r Reason) Category() string {
	if r == ReasonNumerical {
		return "numerical_instability"
	}
	return "data_insufficiency"
}

// Skip is the outcome of an item that was not estimated.
type Skip struct {
	Key    string // entity identifier or ISO date
	Reason Reason
	Detail string
}

// Diagnostics summarises one stage: how many items were attempted,
// estimated and skipped, with the skipped keys grouped by reason.
type Diagnostics struct {
	Attempted int
	Estimated int
	Skipped   map[Reason][]string
}

func newDiagnostics() Diagnostics {
	return Diagnostics{Skipped: make(map[Reason][]string)}
}

func (d *Diagnostics) skip(s Skip) {
	d.Skipped[s.Reason] = append(d.Skipped[s.Reason], s.Key)
}

// Count returns the number of items skipped for a reason.
func (d Diagnostics) Count(r Reason) int { return len(d.Skipped[r]) }

// SkippedTotal returns the number of skipped items over all reasons.
func (d Diagnostics) SkippedTotal() int {
	n := 0
	for _, keys := range d.Skipped {
		n += len(keys)
	}
	return n
}

// Reasons returns the reasons that occurred, sorted.
func (d Diagnostics) Reasons() []Reason {
	out := make([]Reason, 0, len(d.Skipped))
	for r, keys := range d.Skipped {
		if len(keys) > 0 {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Loading is one entity's time-series fit: intercept, one beta per factor,
// the observation count and the fit's R².
type Loading struct {
	Entity       string
	Intercept    float64
	Betas        []float64
	Observations int
	R2           float64
}

// Stage1Result holds the loadings in return-panel column order.
type Stage1Result struct {
	Factors     []string
	Loadings    []Loading
	Diagnostics Diagnostics

	index map[string]int
}

// Lookup returns the loading of an entity.
func (r *Stage1Result) Lookup(entity string) (Loading, bool) {
	i, ok := r.index[entity]
	if !ok {
		return Loading{}, false
	}
	return r.Loadings[i], true
}

// Betas returns the loadings on one factor in entity order.
func (r *Stage1Result) Betas(factor string) []float64 {
	k := indexOf(r.Factors, factor)
	if k < 0 {
		return nil
	}
	out := make([]float64, len(r.Loadings))
	for i, l := range r.Loadings {
		out[i] = l.Betas[k]
	}
	return out
}

// PeriodCoefficients is one date's cross-sectional fit.
type PeriodCoefficients struct {
	Date     time.Time
	Gamma0   float64
	Gammas   []float64
	Entities int
}

// Stage2Result holds one row per successfully estimated date, in date order.
type Stage2Result struct {
	Factors     []string
	Periods     []PeriodCoefficients
	Diagnostics Diagnostics
}

// Series returns the coefficient series of one factor.
func (r *Stage2Result) Series(factor string) []float64 {
	k := indexOf(r.Factors, factor)
	if k < 0 {
		return nil
	}
	out := make([]float64, len(r.Periods))
	for i, p := range r.Periods {
		out[i] = p.Gammas[k]
	}
	return out
}

// Dates returns the estimated dates.
func (r *Stage2Result) Dates() []time.Time {
	out := make([]time.Time, len(r.Periods))
	for i, p := range r.Periods {
		out[i] = p.Date
	}
	return out
}

// Premium is the time-series average of one factor's cross-sectional
// coefficients with its significance test.
type Premium struct {
	Factor       string
	DailyMean    float64
	AnnualMean   float64
	StdDev       float64
	TStat        float64
	PValue       float64
	Observations int
	Defined      bool   // false when the t-test cannot be computed
	Note         string // why the t-test is undefined
}

// String renders the premium for logs.
func (p Premium) String() string {
	if !p.Defined {
		return fmt.Sprintf("%s: mean=%.6f n=%d (%s)", p.Factor, p.DailyMean, p.Observations, p.Note)
	}
	return fmt.Sprintf("%s: mean=%.6f annual=%.4f t=%.3f p=%.4f n=%d",
		p.Factor, p.DailyMean, p.AnnualMean, p.TStat, p.PValue, p.Observations)
}

func indexOf(xs []string, x string) int {
	for i, v := range xs {
		if v == x {
			return i
		}
	}
	return -1
}
