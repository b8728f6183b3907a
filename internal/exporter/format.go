package exporter

import (
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultPlaces is the precision of estimates in output tables
const DefaultPlaces = 8

// FormatFloat formats a value with a fixed number of decimal places.
// NaN and infinities, which mark undefined statistics, become empty cells.
func FormatFloat(f float64, places int32) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}
	return decimal.NewFromFloat(f).StringFixed(places)
}

// FormatPercent formats a fraction as a percentage, e.g. 0.0123 -> 1.23
func FormatPercent(f float64, places int32) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}
	return decimal.NewFromFloat(f).Shift(2).StringFixed(places)
}

// FormatInt formats an int value for CSV output
func FormatInt(i int) string {
	return strconv.Itoa(i)
}

// FormatBool formats a boolean value for CSV output
func FormatBool(b bool) string {
	return strconv.FormatBool(b)
}

// FormatDate formats a date as YYYY-MM-DD
func FormatDate(t time.Time) string {
	return t.Format(time.DateOnly)
}
