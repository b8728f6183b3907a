// Package exporter writes the study's output tables as CSV files.
//
// CSVWriter resolves relative names against the output directory and
// writes every table through a temporary file that is renamed into place.
// StreamWriter does the same for tables built row by row, such as the
// per-date Stage-2 coefficients.
//
// Numbers are rendered with shopspring/decimal at a fixed precision.
// Undefined statistics (NaN) are written as empty cells:
//
//	w := exporter.NewCSVWriter(paths.OutputDir, logger)
//	_, err := w.WriteTable("summary.csv", exporter.Table{
//		Headers: []string{"factor", "annual_premium"},
//		Records: [][]string{{"size", exporter.FormatFloat(0.0345, 6)}},
//	})
package exporter
