package figures

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/jihwanw/big-dragons-never-die/internal/exporter"
)

// SummarySheet is the name of the first worksheet, holding the premia table.
const SummarySheet = "summary"

const (
	chartWidth  = 960
	chartHeight = 400
)

// Workbook renders figure sheets into an XLSX file with native charts.
type Workbook struct {
	logger *slog.Logger
}

// NewWorkbook creates a workbook renderer.
func NewWorkbook(logger *slog.Logger) *Workbook {
	if logger == nil {
		logger = slog.Default()
	}
	return &Workbook{logger: logger.With("component", "figures")}
}

// Write renders the summary table and every sheet to path. The file is
// written under a temporary name and renamed into place.
func (w *Workbook) Write(ctx context.Context, path string, summary exporter.Table, sheets []Sheet) error {
	if err := validateAll(sheets); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return fmt.Errorf("rename first sheet: %w", err)
	}
	if err := writeCells(f, SummarySheet, tableCells(summary)); err != nil {
		return err
	}

	charts := 0
	for _, s := range sheets {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := f.NewSheet(s.Name); err != nil {
			return fmt.Errorf("add sheet %s: %w", s.Name, err)
		}
		if err := writeCells(f, s.Name, s.cells()); err != nil {
			return err
		}
		if len(s.Categories) == 0 {
			continue
		}
		if err := addChart(f, s); err != nil {
			return fmt.Errorf("chart %s: %w", s.Name, err)
		}
		charts++
	}
	f.SetActiveSheet(0)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".workbook-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := f.WriteTo(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to move file into place: %w", err)
	}

	w.logger.InfoContext(ctx, "workbook written",
		slog.String("file_path", path),
		slog.Int("sheets", len(sheets)+1),
		slog.Int("charts", charts))
	return nil
}

// cells is a sheet's data with numbers kept numeric; NaN becomes an
// empty cell.
type cells struct {
	headers []string
	rows    [][]interface{}
}

func (s Sheet) cells() cells {
	c := cells{headers: []string{s.Category}}
	for _, series := range s.Series {
		c.headers = append(c.headers, series.Name)
	}
	for i, cat := range s.Categories {
		row := []interface{}{cat}
		for _, series := range s.Series {
			v := series.Values[i]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				row = append(row, nil)
				continue
			}
			row = append(row, v)
		}
		c.rows = append(c.rows, row)
	}
	return c
}

func tableCells(t exporter.Table) cells {
	c := cells{headers: t.Headers}
	for _, r := range t.Records {
		row := make([]interface{}, len(r))
		for i, v := range r {
			row[i] = v
		}
		c.rows = append(c.rows, row)
	}
	return c
}

func writeCells(f *excelize.File, sheet string, c cells) error {
	header := make([]interface{}, len(c.headers))
	for i, h := range c.headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header of %s: %w", sheet, err)
	}
	for i, row := range c.rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d of %s: %w", i+2, sheet, err)
		}
	}
	return nil
}

func addChart(f *excelize.File, s Sheet) error {
	last := len(s.Categories) + 1
	categories := fmt.Sprintf("'%s'!$A$2:$A$%d", s.Name, last)

	chartType := excelize.Line
	if s.Kind == ChartColumn {
		chartType = excelize.Col
	}

	series := make([]excelize.ChartSeries, len(s.Series))
	for i := range s.Series {
		col, err := excelize.ColumnNumberToName(i + 2)
		if err != nil {
			return err
		}
		series[i] = excelize.ChartSeries{
			Name:       fmt.Sprintf("'%s'!$%s$1", s.Name, col),
			Categories: categories,
			Values:     fmt.Sprintf("'%s'!$%s$2:$%s$%d", s.Name, col, col, last),
		}
	}

	anchor, err := excelize.CoordinatesToCellName(len(s.Series)+3, 2)
	if err != nil {
		return err
	}
	return f.AddChart(s.Name, anchor, &excelize.Chart{
		Type:      chartType,
		Series:    series,
		Title:     []excelize.RichTextRun{{Text: s.Title}},
		Legend:    excelize.ChartLegend{Position: "bottom"},
		Dimension: excelize.ChartDimension{Width: chartWidth, Height: chartHeight},
		YAxis:     excelize.ChartAxis{Title: []excelize.RichTextRun{{Text: s.YAxis}}},
	})
}
