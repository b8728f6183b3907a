// Package app wires the mega-cap size study together for one offline run.
//
// # Run Flow
//
// Application.Run performs, in order:
//
//	1. Validate the output directory and the three input tables
//	2. Load the ranked universe, the daily return panel and the factor table
//	3. Build every configured size factor and, optionally, HML_mega
//	4. Assemble one estimation input per methodology, the old
//	   methodology first when enabled
//	5. Run the three-stage Fama-MacBeth pipeline for each
//	6. Persist factors, stage tables, summary, comparison, loading
//	   statistics and diagnostics as CSV
//	7. Derive figure data, write it as CSV and render the XLSX workbook
//
// WriteFactorTable stops after step 3 and writes only factors.csv.
//
// # Error Handling
//
// Errors are returned as typed AppErrors so the caller can map them to an
// exit code. The app never calls os.Exit itself.
package app
