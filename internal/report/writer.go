package report

import (
	"context"
	"fmt"
	"log/slog"

	apperrors "github.com/jihwanw/big-dragons-never-die/internal/errors"
	"github.com/jihwanw/big-dragons-never-die/internal/exporter"
	"github.com/jihwanw/big-dragons-never-die/internal/famamacbeth"
	"github.com/jihwanw/big-dragons-never-die/internal/panel"
)

// File names of the persisted tables.
const (
	FactorsFile     = "factors.csv"
	SummaryFile     = "summary.csv"
	ComparisonFile  = "comparison.csv"
	BetaStatsFile   = "beta_stats.csv"
	DiagnosticsFile = "diagnostics.csv"
)

// Stage1File returns the loadings file name of a methodology.
func Stage1File(methodology string) string { return fmt.Sprintf("stage1_%s.csv", methodology) }

// Stage2File returns the coefficient file name of a methodology.
func Stage2File(methodology string) string { return fmt.Sprintf("stage2_%s.csv", methodology) }

// Writer persists the study tables through a CSV writer. Failures are
// STORAGE errors.
type Writer struct {
	csv    *exporter.CSVWriter
	logger *slog.Logger
	files  []string
}

// NewWriter creates a report writer.
func NewWriter(csv *exporter.CSVWriter, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{csv: csv, logger: logger.With("component", "report")}
}

// Files returns the paths written so far.
func (w *Writer) Files() []string { return append([]string(nil), w.files...) }

func (w *Writer) write(ctx context.Context, name string, t exporter.Table) error {
	path, err := w.csv.WriteTable(name, t)
	if err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("write %s", name), err).WithContext("file", name)
	}
	w.files = append(w.files, path)
	w.logger.DebugContext(ctx, "table written", "file", path, "rows", len(t.Records))
	return nil
}

// WriteFactors persists the constructed factor and group return series.
func (w *Writer) WriteFactors(ctx context.Context, factors *panel.Panel) error {
	return w.write(ctx, FactorsFile, PanelTable(factors))
}

// WriteSummary persists the premium summary.
func (w *Writer) WriteSummary(ctx context.Context, rows []SummaryRow) error {
	return w.write(ctx, SummaryFile, SummaryTable(rows))
}

// WriteComparison persists the old versus new comparison.
func (w *Writer) WriteComparison(ctx context.Context, rows []ComparisonRow) error {
	return w.write(ctx, ComparisonFile, ComparisonTable(rows))
}

// WriteBetaStats persists the loading distributions.
func (w *Writer) WriteBetaStats(ctx context.Context, stats []BetaStats) error {
	return w.write(ctx, BetaStatsFile, BetaStatsTable(stats))
}

// WriteDiagnostics persists the skip counts.
func (w *Writer) WriteDiagnostics(ctx context.Context, rows []DiagnosticRow) error {
	return w.write(ctx, DiagnosticsFile, DiagnosticsTable(rows))
}

// WriteStages persists the Stage-1 loadings and the Stage-2 coefficients
// of one methodology. The coefficient table is streamed date by date.
func (w *Writer) WriteStages(ctx context.Context, res *famamacbeth.Result) error {
	if err := w.write(ctx, Stage1File(res.Methodology), Stage1Table(res.Stage1)); err != nil {
		return err
	}

	name := Stage2File(res.Methodology)
	stream, err := w.csv.CreateStreamWriter(name, stage2Headers(res.Stage2))
	if err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("write %s", name), err).WithContext("file", name)
	}
	for _, p := range res.Stage2.Periods {
		if err := stream.WriteRecord(stage2Record(res.Stage2, p)); err != nil {
			stream.Abort()
			return apperrors.NewStorageError(fmt.Sprintf("write %s", name), err).WithContext("file", name)
		}
	}
	if err := stream.Close(); err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("write %s", name), err).WithContext("file", name)
	}
	w.files = append(w.files, stream.Path())
	w.logger.DebugContext(ctx, "table written", "file", stream.Path(), "rows", stream.Rows())
	return nil
}
