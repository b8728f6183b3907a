// Package dataset reads the three input tables of the study: the ranked
// universe snapshot, the daily return panel and the factor panel.
//
// Tables are CSV files parsed with gota. Cells equal to one of
// MissingTokens become NaN; any other non-numeric cell is an INPUT error
// naming the file, column and line, since the estimators cannot proceed on
// malformed data.
package dataset
