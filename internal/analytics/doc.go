// Package analytics derives the descriptive series behind the study's
// figures: compounded and cumulative returns, annualised means, rolling
// correlation and volatility, calendar seasonality and histograms.
//
// All functions treat NaN as a missing observation.
package analytics
