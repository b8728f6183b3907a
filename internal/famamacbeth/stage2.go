package famamacbeth

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jihwanw/big-dragons-never-die/internal/panel"
	"github.com/jihwanw/big-dragons-never-die/internal/regression"
)

// Stage2Estimator fits, for every date, the cross-section of returns on the
// fixed Stage-1 loadings.
type Stage2Estimator struct {
	MinEntities int
	MinComplete int
	Basis       ReturnBasis
	Workers     int

	solver *regression.Solver
	logger *slog.Logger
}

// NewStage2Estimator creates a cross-sectional estimator. Non-positive
// thresholds and an unknown basis fall back to the defaults.
func NewStage2Estimator(minEntities, minComplete int, basis ReturnBasis, workers int, logger *slog.Logger) *Stage2Estimator {
	if minEntities <= 0 {
		minEntities = DefaultMinEntities
	}
	if minComplete <= 0 {
		minComplete = DefaultMinComplete
	}
	if !basis.IsValid() {
		basis = BasisRaw
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Stage2Estimator{
		MinEntities: minEntities,
		MinComplete: minComplete,
		Basis:       basis,
		Workers:     workers,
		solver:      regression.NewSolver(),
		logger:      logger,
	}
}

type stage2Outcome struct {
	period *PeriodCoefficients
	skip   *Skip
}

// Estimate runs one regression per date of the return panel. It must only
// be called with a complete Stage-1 result.
func (e *Stage2Estimator) Estimate(ctx context.Context, returns *panel.Panel, riskFree []float64, loadings *Stage1Result) (*Stage2Result, error) {
	if e.Basis == BasisExcess && len(riskFree) != returns.Len() {
		return nil, fmt.Errorf("risk-free series has %d rows, returns have %d", len(riskFree), returns.Len())
	}

	// entities with loadings, in loading order
	var cols [][]float64
	var betas [][]float64
	for _, l := range loadings.Loadings {
		col, ok := returns.View(l.Entity)
		if !ok {
			continue
		}
		cols = append(cols, col)
		betas = append(betas, l.Betas)
	}
	k := len(loadings.Factors)

	outcomes := make([]stage2Outcome, returns.Len())
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.Workers)
	for t := 0; t < returns.Len(); t++ {
		t := t
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rf := 0.0
			if e.Basis == BasisExcess {
				rf = riskFree[t]
			}
			outcomes[t] = e.fit(returns.Date(t), t, rf, cols, betas, k)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("stage-2 estimation: %w", err)
	}

	res := &Stage2Result{Factors: loadings.Factors, Diagnostics: newDiagnostics()}
	res.Diagnostics.Attempted = returns.Len()
	for _, o := range outcomes {
		if o.skip != nil {
			res.Diagnostics.skip(*o.skip)
			e.logger.DebugContext(ctx, "date skipped",
				"date", o.skip.Key,
				"reason", o.skip.Reason,
				"detail", o.skip.Detail)
			continue
		}
		res.Periods = append(res.Periods, *o.period)
	}
	res.Diagnostics.Estimated = len(res.Periods)

	logSummary(ctx, e.logger, "stage-2 cross-sectional regressions complete", res.Diagnostics,
		"entities_with_loadings", len(cols),
		"basis", e.Basis,
		"duration_ms", time.Since(start).Milliseconds())
	return res, nil
}

func (e *Stage2Estimator) fit(date time.Time, t int, rf float64, cols, betas [][]float64, k int) stage2Outcome {
	key := date.Format(time.DateOnly)
	if len(cols) < e.MinEntities {
		return stage2Outcome{skip: &Skip{
			Key:    key,
			Reason: ReasonTooFewEntities,
			Detail: fmt.Sprintf("%d entities with loadings, need %d", len(cols), e.MinEntities),
		}}
	}

	y := make([]float64, len(cols))
	xs := make([][]float64, k)
	for j := range xs {
		xs[j] = make([]float64, len(cols))
	}
	for i, col := range cols {
		y[i] = col[t] - rf
		for j := 0; j < k; j++ {
			xs[j][i] = betas[i][j]
		}
	}
	y, xs = regression.CompleteCases(y, xs...)
	if len(y) < e.MinComplete {
		return stage2Outcome{skip: &Skip{
			Key:    key,
			Reason: ReasonTooFewComplete,
			Detail: fmt.Sprintf("%d complete cases, need %d", len(y), e.MinComplete),
		}}
	}

	fit, err := e.solver.Fit(y, xs...)
	if err != nil {
		return stage2Outcome{skip: &Skip{Key: key, Reason: classify(err), Detail: err.Error()}}
	}
	return stage2Outcome{period: &PeriodCoefficients{
		Date:     date,
		Gamma0:   fit.Intercept(),
		Gammas:   fit.Slopes(),
		Entities: fit.Observations,
	}}
}
