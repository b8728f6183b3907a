package app

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/jihwanw/big-dragons-never-die/internal/config"
	apperrors "github.com/jihwanw/big-dragons-never-die/internal/errors"
	"github.com/jihwanw/big-dragons-never-die/internal/dataset"
	"github.com/jihwanw/big-dragons-never-die/internal/exporter"
	"github.com/jihwanw/big-dragons-never-die/internal/famamacbeth"
	"github.com/jihwanw/big-dragons-never-die/internal/figures"
	"github.com/jihwanw/big-dragons-never-die/internal/infrastructure"
	"github.com/jihwanw/big-dragons-never-die/internal/panel"
	"github.com/jihwanw/big-dragons-never-die/internal/portfolio"
	"github.com/jihwanw/big-dragons-never-die/internal/report"
	"github.com/jihwanw/big-dragons-never-die/internal/universe"
	"github.com/jihwanw/big-dragons-never-die/internal/validation"
)

// Application wires the study's components for one run.
type Application struct {
	Config      *config.Config
	Paths       *config.Paths
	Logger      *slog.Logger
	Instruments *famamacbeth.Instruments     // nil disables stage telemetry
	Metrics     *infrastructure.SystemMetrics // nil disables runtime gauges

	loader    *dataset.Loader
	builder   *portfolio.Builder
	validator *validation.FileValidator
}

// Inputs are the three loaded tables.
type Inputs struct {
	Universe *universe.Universe
	Returns  *panel.Panel
	Factors  *panel.Panel // factor table, decimal scaled
}

// Factors are the constructed portfolio series.
type Factors struct {
	Size  []*portfolio.Result
	Value *portfolio.Result // nil unless the value factor is built from the universe
	Panel *panel.Panel      // every group and spread column on the return dates
}

// SizeFactor returns the result of a size factor.
func (f *Factors) SizeFactor(name string) (*portfolio.Result, bool) {
	for _, r := range f.Size {
		if r.Spread == name {
			return r, true
		}
	}
	return nil, false
}

// RunSummary is what a completed run produced.
type RunSummary struct {
	Results []*famamacbeth.Result
	Files   []string
	Stats   *infrastructure.SystemStats
}

// NewApplication resolves paths and creates the run's components.
func NewApplication(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	paths, err := cfg.ResolvePaths()
	if err != nil {
		return nil, apperrors.NewConfigError("failed to resolve paths", err)
	}
	paths.LogPathResolution(logger)

	return &Application{
		Config:    cfg,
		Paths:     paths,
		Logger:    logger,
		loader:    dataset.NewLoader(logger),
		builder:   portfolio.NewBuilder(infrastructure.WithComponent(logger, "portfolio")),
		validator: validation.NewFileValidator(logger),
	}, nil
}

// LoadInputs validates and reads the universe, return and factor tables.
func (a *Application) LoadInputs(ctx context.Context) (*Inputs, error) {
	if err := a.validator.ValidateInputs(a.Paths.Inputs()...); err != nil {
		return nil, err
	}

	cols := a.Config.Columns
	u, err := a.loader.LoadUniverse(a.Paths.UniverseFile, dataset.UniverseColumns{
		Ticker:       cols.Ticker,
		Rank:         cols.Rank,
		Name:         cols.Name,
		MarketCap:    cols.MarketCap,
		BookToMarket: cols.BookToMarket,
	})
	if err != nil {
		return nil, err
	}
	returns, err := a.loader.LoadPanel(a.Paths.ReturnsFile)
	if err != nil {
		return nil, err
	}
	factors, err := a.loader.LoadFactorPanel(a.Paths.FactorsFile, a.requiredFactorColumns(), a.Config.Factors.PercentScaled)
	if err != nil {
		return nil, err
	}

	missing := 0
	for _, e := range u.Entities() {
		if !returns.Has(e.Ticker) {
			missing++
		}
	}
	if missing > 0 {
		a.Logger.WarnContext(ctx, "universe entities without a return column",
			slog.Int("missing", missing),
			slog.Int("universe", u.Len()))
	}

	// Only ranked entities are estimated
	members := returns.Present(u.Tickers())
	if extra := returns.Width() - len(members); extra > 0 {
		a.Logger.WarnContext(ctx, "return columns outside the universe dropped",
			slog.Int("dropped", extra),
			slog.Int("kept", len(members)))
		if returns, err = returns.Select(members...); err != nil {
			return nil, apperrors.NewInputError("restrict returns to the universe", err).
				WithContext("file", a.Paths.ReturnsFile)
		}
	}
	return &Inputs{Universe: u, Returns: returns, Factors: factors}, nil
}

// requiredFactorColumns lists the factor table columns the configured run reads
func (a *Application) requiredFactorColumns() []string {
	cols := a.Config.Columns
	required := []string{cols.Market, cols.RiskFree}
	if !a.Config.UseMegaValue() {
		required = append(required, cols.Value)
	}
	return required
}

// BuildFactors forms every configured size factor and, when requested,
// the value factor from the universe's book-to-market ratios.
func (a *Application) BuildFactors(ctx context.Context, in *Inputs) (*Factors, error) {
	out := &Factors{}
	for _, rule := range a.Config.Factors.Rules() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := a.builder.Build(ctx, in.Universe, in.Returns, rule)
		if err != nil {
			return nil, apperrors.NewAppValidationError(err.Error()).WithContext("factor", rule.Name)
		}
		out.Size = append(out.Size, res)
	}
	if a.Config.UseMegaValue() {
		res, err := a.builder.BuildValue(ctx, in.Universe, in.Returns, a.Config.ValueRule())
		if err != nil {
			return nil, apperrors.NewAppValidationError(err.Error()).WithContext("factor", a.Config.ValueRule().Name)
		}
		out.Value = res
	}

	combined, err := combine(in.Returns.Dates(), out.all())
	if err != nil {
		return nil, fmt.Errorf("assemble factor table: %w", err)
	}
	out.Panel = combined
	return out, nil
}

func (f *Factors) all() []*portfolio.Result {
	out := append([]*portfolio.Result(nil), f.Size...)
	if f.Value != nil {
		out = append(out, f.Value)
	}
	return out
}

// combine joins the series of several results into one panel. A group name
// that repeats across rules is prefixed with its factor name.
func combine(dates []time.Time, results []*portfolio.Result) (*panel.Panel, error) {
	var (
		names  []string
		values [][]float64
	)
	seen := make(map[string]bool)
	for _, r := range results {
		for _, col := range r.Series.Columns() {
			name := col
			if seen[name] {
				name = r.Spread + "_" + col
			}
			seen[name] = true
			v, _ := r.Series.Column(col)
			names = append(names, name)
			values = append(values, v)
		}
	}
	return panel.New(dates, names, values)
}

// Methodologies assembles the estimation inputs: one per size factor and,
// when configured, the old methodology on the factor table's own SMB and
// HML. The old methodology comes first. A factor table without those
// columns drops the old methodology with a warning.
func (a *Application) Methodologies(ctx context.Context, in *Inputs, f *Factors) ([]famamacbeth.Inputs, error) {
	cols := a.Config.Columns
	market, _ := in.Factors.Column(cols.Market)
	rf, _ := in.Factors.Column(cols.RiskFree)
	panelValue, hasPanelValue := in.Factors.Column(cols.Value)

	value := panelValue
	if f.Value != nil {
		v, err := onDates(f.Value.Series, f.Value.Spread, in.Factors.Dates())
		if err != nil {
			return nil, err
		}
		value = v
	} else if !hasPanelValue {
		return nil, apperrors.NewInputError(fmt.Sprintf("factor table lacks value column %s", cols.Value), nil)
	}

	var out []famamacbeth.Inputs
	build := func(name string, size, value []float64) error {
		p, err := panel.New(in.Factors.Dates(),
			[]string{famamacbeth.FactorMarket, famamacbeth.FactorSize, famamacbeth.FactorValue, cols.RiskFree},
			[][]float64{market, size, value, rf})
		if err != nil {
			return fmt.Errorf("methodology %s: %w", name, err)
		}
		out = append(out, famamacbeth.Inputs{Methodology: name, Returns: in.Returns, Factors: p, RiskFree: cols.RiskFree})
		return nil
	}

	if a.Config.Factors.CompareOld {
		size, hasSize := in.Factors.Column(cols.Size)
		if hasSize && hasPanelValue {
			if err := build(config.OldMethodology, size, panelValue); err != nil {
				return nil, err
			}
		} else {
			a.Logger.WarnContext(ctx, "factor table lacks the old size or value column, comparing against nothing",
				slog.String("size_column", cols.Size),
				slog.String("value_column", cols.Value),
				slog.Any("columns", in.Factors.Columns()))
		}
	}
	for _, r := range f.Size {
		size, err := onDates(r.Series, r.Spread, in.Factors.Dates())
		if err != nil {
			return nil, err
		}
		if err := build(r.Spread, size, value); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// onDates moves one column onto another date axis; missing dates are NaN
func onDates(p *panel.Panel, column string, dates []time.Time) ([]float64, error) {
	sel, err := p.Select(column)
	if err != nil {
		return nil, err
	}
	moved, err := sel.Reindex(dates)
	if err != nil {
		return nil, err
	}
	v, _ := moved.Column(column)
	return v, nil
}

// Estimate runs the three-stage pipeline for every methodology in order.
func (a *Application) Estimate(ctx context.Context, methods []famamacbeth.Inputs) ([]*famamacbeth.Result, error) {
	pipeline := famamacbeth.NewPipeline(a.Config.Estimation.Pipeline(), a.Instruments,
		infrastructure.WithComponent(a.Logger, "famamacbeth"))

	results := make([]*famamacbeth.Result, 0, len(methods))
	for _, m := range methods {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := pipeline.Run(ctx, m)
		if err != nil {
			return nil, err
		}
		for _, p := range res.Premia {
			a.Logger.InfoContext(ctx, "premium estimated",
				slog.String("methodology", res.Methodology),
				slog.String("factor", p.Factor),
				slog.Float64("annual", p.AnnualMean),
				slog.Float64("t_stat", p.TStat),
				slog.Float64("p_value", p.PValue),
				slog.String("significance", report.Significance(p.PValue)))
		}
		results = append(results, res)
	}
	return results, nil
}

// Run executes the whole study: load, build, estimate, report and draw.
func (a *Application) Run(ctx context.Context) (*RunSummary, error) {
	start := time.Now()
	a.Logger.InfoContext(ctx, "run started",
		slog.String("app", config.AppName),
		slog.String("version", config.AppVersion),
		slog.Int("size_factors", len(a.Config.Factors.Size)),
		slog.Bool("compare_old", a.Config.Factors.CompareOld),
		slog.String("value_source", a.Config.Factors.ValueSource))

	if err := a.validator.ValidateOutputDirectory(a.Paths.OutputDir); err != nil {
		return nil, err
	}
	in, err := a.LoadInputs(ctx)
	if err != nil {
		return nil, err
	}
	factors, err := a.BuildFactors(ctx, in)
	if err != nil {
		return nil, err
	}
	methods, err := a.Methodologies(ctx, in, factors)
	if err != nil {
		return nil, err
	}
	results, err := a.Estimate(ctx, methods)
	if err != nil {
		return nil, err
	}

	csv := exporter.NewCSVWriter(a.Paths.OutputDir, a.Logger)
	writer := report.NewWriter(csv, a.Logger)
	if err := a.writeReports(ctx, writer, factors, results); err != nil {
		return nil, err
	}
	files := writer.Files()

	figureFiles, err := a.writeFigures(ctx, csv, in, factors, results)
	if err != nil {
		return nil, err
	}
	files = append(files, figureFiles...)

	stats := a.Metrics.Collect(ctx, start)
	a.Logger.InfoContext(ctx, "run completed",
		slog.Int("methodologies", len(results)),
		slog.Int("files", len(files)),
		slog.Any("system", stats))
	return &RunSummary{Results: results, Files: files, Stats: stats}, nil
}

// WriteFactorTable loads the inputs, builds the factors and writes only
// the factor table. It returns the written path.
func (a *Application) WriteFactorTable(ctx context.Context) (string, error) {
	if err := a.validator.ValidateOutputDirectory(a.Paths.OutputDir); err != nil {
		return "", err
	}
	in, err := a.LoadInputs(ctx)
	if err != nil {
		return "", err
	}
	factors, err := a.BuildFactors(ctx, in)
	if err != nil {
		return "", err
	}
	writer := report.NewWriter(exporter.NewCSVWriter(a.Paths.OutputDir, a.Logger), a.Logger)
	if err := writer.WriteFactors(ctx, factors.Panel); err != nil {
		return "", err
	}
	path := writer.Files()[0]
	a.Logger.InfoContext(ctx, "factor table written",
		slog.String("file_path", path),
		slog.Int("columns", factors.Panel.Width()),
		slog.Int("dates", factors.Panel.Len()))
	return path, nil
}

func (a *Application) writeReports(ctx context.Context, w *report.Writer, f *Factors, results []*famamacbeth.Result) error {
	if err := w.WriteFactors(ctx, f.Panel); err != nil {
		return err
	}
	for _, res := range results {
		if err := w.WriteStages(ctx, res); err != nil {
			return err
		}
	}
	if err := w.WriteSummary(ctx, report.Summarize(results)); err != nil {
		return err
	}

	old, news := splitOld(results)
	if a.Config.Factors.CompareOld {
		rows := report.Compare(old, news)
		for _, r := range rows {
			if r.SignChanged {
				a.Logger.InfoContext(ctx, "premium changed sign against the old methodology",
					slog.String("methodology", r.Methodology),
					slog.String("factor", r.Factor),
					slog.Float64("old", r.OldAnnual),
					slog.Float64("new", r.NewAnnual))
			}
		}
		if err := w.WriteComparison(ctx, rows); err != nil {
			return err
		}
	}

	var stats []report.BetaStats
	for _, res := range results {
		stats = append(stats, report.BetaDistribution(res)...)
	}
	if old != nil {
		before := report.BetaDistribution(old)
		for _, res := range news {
			change := report.DispersionChange(before, report.BetaDistribution(res), famamacbeth.FactorSize)
			if !math.IsNaN(change) {
				a.Logger.InfoContext(ctx, "size loading dispersion change",
					slog.String("methodology", res.Methodology),
					slog.Float64("change", change))
			}
		}
	}
	if err := w.WriteBetaStats(ctx, stats); err != nil {
		return err
	}

	diagnostics := report.Diagnose(results)
	for _, d := range diagnostics {
		a.Logger.DebugContext(ctx, "estimation diagnostics",
			slog.String("methodology", d.Methodology),
			slog.String("stage", d.Stage),
			slog.String("reason", string(d.Reason)),
			slog.Int("count", d.Count))
	}
	return w.WriteDiagnostics(ctx, diagnostics)
}

func (a *Application) writeFigures(ctx context.Context, csv *exporter.CSVWriter, in *Inputs, f *Factors, results []*famamacbeth.Result) ([]string, error) {
	primary := a.Config.Analytics.PrimaryFactor
	if primary == "" && len(f.Size) > 0 {
		primary = f.Size[0].Spread
	}
	market, err := onDates(in.Factors, a.Config.Columns.Market, in.Returns.Dates())
	if err != nil {
		return nil, err
	}

	sheets, err := figures.Build(figures.Inputs{
		Dates:         in.Returns.Dates(),
		Factors:       f.Size,
		Primary:       primary,
		Market:        market,
		Results:       results,
		RollingWindow: a.Config.Analytics.RollingWindow,
		HistogramBins: a.Config.Analytics.HistogramBins,
	})
	if err != nil {
		return nil, apperrors.NewAppValidationError(err.Error())
	}

	var files []string
	for _, s := range sheets {
		path, err := csv.WriteTable(fmt.Sprintf(config.FigureCSVPattern, s.Name), s.Table())
		if err != nil {
			return nil, apperrors.NewStorageError("write figure data", err).WithContext("figure", s.Name)
		}
		files = append(files, path)
	}

	if a.Config.Analytics.Workbook {
		path := a.Paths.Output(config.WorkbookFile)
		if err := a.validator.ValidateWorkbookPath(path); err != nil {
			return nil, err
		}
		summary := report.SummaryTable(report.Summarize(results))
		if err := figures.NewWorkbook(a.Logger).Write(ctx, path, summary, sheets); err != nil {
			return nil, apperrors.NewStorageError("write workbook", err).WithContext("file", path)
		}
		files = append(files, path)
	}
	a.Logger.InfoContext(ctx, "figures written", slog.Int("figures", len(sheets)), slog.String("primary", primary))
	return files, nil
}

// splitOld separates the old methodology's result from the others
func splitOld(results []*famamacbeth.Result) (old *famamacbeth.Result, news []*famamacbeth.Result) {
	for _, r := range results {
		if r.Methodology == config.OldMethodology {
			old = r
			continue
		}
		news = append(news, r)
	}
	return old, news
}
