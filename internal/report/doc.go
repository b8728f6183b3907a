// Package report turns the estimation results into tables: the premium
// summary with significance markers, the comparison of the full-market
// and mega-cap methodologies, the distribution of Stage-1 loadings and
// the skip diagnostics. Writer persists them as CSV files.
package report
