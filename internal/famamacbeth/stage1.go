package famamacbeth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jihwanw/big-dragons-never-die/internal/panel"
	"github.com/jihwanw/big-dragons-never-die/internal/regression"
)

// Stage1Estimator fits each entity's excess returns on the factor series.
type Stage1Estimator struct {
	MinObservations int
	Workers         int

	solver *regression.Solver
	logger *slog.Logger
}

// NewStage1Estimator creates a time-series estimator. Non-positive values
// fall back to the defaults.
func NewStage1Estimator(minObservations, workers int, logger *slog.Logger) *Stage1Estimator {
	if minObservations <= 0 {
		minObservations = DefaultMinObservations
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Stage1Estimator{
		MinObservations: minObservations,
		Workers:         workers,
		solver:          regression.NewSolver(),
		logger:          logger,
	}
}

type stage1Outcome struct {
	loading *Loading
	skip    *Skip
}

// Estimate runs one regression per return column. returns, factors and
// riskFree must share the same date axis. Entities below the observation
// threshold or with a failed fit are skipped, never fatal.
func (e *Stage1Estimator) Estimate(ctx context.Context, returns, factors *panel.Panel, riskFree []float64) (*Stage1Result, error) {
	if err := sameAxis(returns, factors); err != nil {
		return nil, err
	}
	if len(riskFree) != returns.Len() {
		return nil, fmt.Errorf("risk-free series has %d rows, returns have %d", len(riskFree), returns.Len())
	}

	names := factors.Columns()
	regressors := make([][]float64, len(names))
	for i, name := range names {
		regressors[i], _ = factors.View(name)
	}

	entities := returns.Columns()
	outcomes := make([]stage1Outcome, len(entities))
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.Workers)
	for i, entity := range entities {
		i, entity := i, entity
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, _ := returns.View(entity)
			outcomes[i] = e.fit(entity, r, riskFree, regressors)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("stage-1 estimation: %w", err)
	}

	res := &Stage1Result{
		Factors:     names,
		Diagnostics: newDiagnostics(),
		index:       make(map[string]int),
	}
	res.Diagnostics.Attempted = len(entities)
	for _, o := range outcomes {
		if o.skip != nil {
			res.Diagnostics.skip(*o.skip)
			e.logger.DebugContext(ctx, "entity skipped",
				"entity", o.skip.Key,
				"reason", o.skip.Reason,
				"detail", o.skip.Detail)
			continue
		}
		res.index[o.loading.Entity] = len(res.Loadings)
		res.Loadings = append(res.Loadings, *o.loading)
	}
	res.Diagnostics.Estimated = len(res.Loadings)

	logSummary(ctx, e.logger, "stage-1 time-series regressions complete", res.Diagnostics,
		"factors", names,
		"min_observations", e.MinObservations,
		"duration_ms", time.Since(start).Milliseconds())
	return res, nil
}

func (e *Stage1Estimator) fit(entity string, r, rf []float64, regressors [][]float64) stage1Outcome {
	excess := make([]float64, len(r))
	for t := range r {
		excess[t] = r[t] - rf[t]
	}
	y, xs := regression.CompleteCases(excess, regressors...)
	if len(y) < e.MinObservations {
		return stage1Outcome{skip: &Skip{
			Key:    entity,
			Reason: ReasonInsufficientData,
			Detail: fmt.Sprintf("%d valid observations, need %d", len(y), e.MinObservations),
		}}
	}

	fit, err := e.solver.Fit(y, xs...)
	if err != nil {
		return stage1Outcome{skip: &Skip{Key: entity, Reason: classify(err), Detail: err.Error()}}
	}
	return stage1Outcome{loading: &Loading{
		Entity:       entity,
		Intercept:    fit.Intercept(),
		Betas:        fit.Slopes(),
		Observations: fit.Observations,
		R2:           fit.R2,
	}}
}

func classify(err error) Reason {
	if errors.Is(err, regression.ErrUnderdetermined) {
		return ReasonInsufficientData
	}
	return ReasonNumerical
}

func sameAxis(a, b *panel.Panel) error {
	if a.Len() != b.Len() {
		return fmt.Errorf("panels not aligned: %d vs %d dates", a.Len(), b.Len())
	}
	for i := 0; i < a.Len(); i++ {
		if !a.Date(i).Equal(b.Date(i)) {
			return fmt.Errorf("panels not aligned at row %d: %s vs %s",
				i, a.Date(i).Format(time.DateOnly), b.Date(i).Format(time.DateOnly))
		}
	}
	return nil
}

// logSummary writes one record per stage plus one per skip category.
func logSummary(ctx context.Context, logger *slog.Logger, msg string, d Diagnostics, args ...any) {
	args = append(args,
		"attempted", d.Attempted,
		"estimated", d.Estimated,
		"skipped", d.SkippedTotal())
	logger.InfoContext(ctx, msg, args...)

	for _, r := range d.Reasons() {
		level := slog.LevelInfo
		if r == ReasonNumerical {
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, "items skipped",
			"reason", r,
			"category", r.Category(),
			"count", d.Count(r),
			"keys", preview(d.Skipped[r], 20))
	}
}

func preview(keys []string, n int) []string {
	if len(keys) <= n {
		return keys
	}
	return append(append([]string(nil), keys[:n]...), fmt.Sprintf("... %d more", len(keys)-n))
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
