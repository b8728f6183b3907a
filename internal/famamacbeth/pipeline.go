package famamacbeth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jihwanw/big-dragons-never-die/internal/panel"
)

// Config holds the estimation thresholds of one pipeline.
type Config struct {
	MinObservations int
	MinEntities     int
	MinComplete     int
	Workers         int
	Basis           ReturnBasis
}

// DefaultConfig returns the standard thresholds with raw cross-sectional returns.
func DefaultConfig() Config {
	return Config{
		MinObservations: DefaultMinObservations,
		MinEntities:     DefaultMinEntities,
		MinComplete:     DefaultMinComplete,
		Basis:           BasisRaw,
	}
}

// Inputs is one methodology's data. Factors carries one column per
// regressor, named by factor label, plus the risk-free column.
type Inputs struct {
	Methodology string
	Returns     *panel.Panel
	Factors     *panel.Panel
	RiskFree    string
}

// Result is the output of all three stages for one methodology.
type Result struct {
	Methodology string
	Alignment   panel.AlignReport
	Stage1      *Stage1Result
	Stage2      *Stage2Result
	Premia      []Premium
}

// Premium returns the premium of a factor.
func (r *Result) Premium(factor string) (Premium, bool) {
	for _, p := range r.Premia {
		if p.Factor == factor {
			return p, true
		}
	}
	return Premium{}, false
}

// Pipeline runs Stage 1, Stage 2 and Stage 3 in sequence.
type Pipeline struct {
	cfg         Config
	instruments *Instruments
	logger      *slog.Logger
}

// NewPipeline creates a pipeline. instruments may be nil.
func NewPipeline(cfg Config, instruments *Instruments, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{cfg: cfg, instruments: instruments, logger: logger}
}

// Run estimates one methodology. An empty date intersection is not an
// error: every stage then reports no estimates.
func (p *Pipeline) Run(ctx context.Context, in Inputs) (res *Result, err error) {
	logger := p.logger.With("methodology", in.Methodology)
	stage1 := NewStage1Estimator(p.cfg.MinObservations, p.cfg.Workers, logger)
	stage2 := NewStage2Estimator(p.cfg.MinEntities, p.cfg.MinComplete, p.cfg.Basis, p.cfg.Workers, logger)
	aggregator := NewAggregator(logger)
	ctx, span := p.instruments.StartStage(ctx, in.Methodology, "pipeline")
	defer func() { EndStage(span, err) }()

	if !in.Factors.Has(in.RiskFree) {
		return nil, fmt.Errorf("methodology %s: risk-free column %q missing", in.Methodology, in.RiskFree)
	}
	var regressors []string
	for _, c := range in.Factors.Columns() {
		if c != in.RiskFree {
			regressors = append(regressors, c)
		}
	}
	if len(regressors) == 0 {
		return nil, fmt.Errorf("methodology %s: no factor columns", in.Methodology)
	}

	aligned, report := panel.Align(in.Returns, in.Factors)
	returns, factors := aligned[0], aligned[1]
	if report.Empty() {
		logger.WarnContext(ctx, "returns and factors share no dates", "report", report.String())
	} else {
		logger.InfoContext(ctx, "panels aligned",
			"common", report.Common,
			"start", report.Start,
			"end", report.End,
			"dropped", report.Dropped)
	}

	x, err := factors.Select(regressors...)
	if err != nil {
		return nil, fmt.Errorf("methodology %s: %w", in.Methodology, err)
	}
	rf, _ := factors.Column(in.RiskFree)

	res = &Result{Methodology: in.Methodology, Alignment: report}

	s1ctx, s1span := p.instruments.StartStage(ctx, in.Methodology, "stage1")
	res.Stage1, err = stage1.Estimate(s1ctx, returns, x, rf)
	if err == nil {
		p.instruments.RecordDiagnostics(s1ctx, s1span, in.Methodology, "stage1", res.Stage1.Diagnostics)
	}
	EndStage(s1span, err)
	if err != nil {
		return nil, fmt.Errorf("methodology %s: %w", in.Methodology, err)
	}

	s2ctx, s2span := p.instruments.StartStage(ctx, in.Methodology, "stage2")
	res.Stage2, err = stage2.Estimate(s2ctx, returns, rf, res.Stage1)
	if err == nil {
		p.instruments.RecordDiagnostics(s2ctx, s2span, in.Methodology, "stage2", res.Stage2.Diagnostics)
	}
	EndStage(s2span, err)
	if err != nil {
		return nil, fmt.Errorf("methodology %s: %w", in.Methodology, err)
	}

	s3ctx, s3span := p.instruments.StartStage(ctx, in.Methodology, "stage3")
	res.Premia = aggregator.Aggregate(s3ctx, res.Stage2)
	p.instruments.RecordPremia(s3ctx, s3span, in.Methodology, res.Premia)
	EndStage(s3span, nil)

	return res, nil
}
