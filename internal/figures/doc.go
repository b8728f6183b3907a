// Package figures assembles the study's chart data and renders it.
//
// Build derives one Sheet per figure from the portfolio series and the
// estimation results: cumulative group and spread returns, annualised
// quintile means, loading and premium histograms, rolling correlation and
// volatility of the primary spread, monthly seasonality and calendar-year
// totals. Each Sheet can be exported as a CSV table or drawn by Workbook
// into a single XLSX file with one native chart per worksheet.
package figures
