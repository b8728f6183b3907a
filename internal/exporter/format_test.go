package exporter

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		places   int32
		expected string
	}{
		{"zero", 0, 4, "0.0000"},
		{"pads trailing zeros", 13.4, 2, "13.40"},
		{"rounds half away from zero", 0.125, 2, "0.13"},
		{"negative", -0.0012345, 6, "-0.001235"},
		{"daily premium", 0.000123456789, 8, "0.00012346"},
		{"integer places", 2.5, 0, "3"},
		{"nan is empty", math.NaN(), 4, ""},
		{"inf is empty", math.Inf(1), 4, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatFloat(tt.input, tt.places))
		})
	}
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "1.23", FormatPercent(0.0123, 2))
	assert.Equal(t, "-30.24", FormatPercent(-0.3024, 2))
	assert.Equal(t, "", FormatPercent(math.NaN(), 2))
}

func TestFormatScalars(t *testing.T) {
	assert.Equal(t, "198", FormatInt(198))
	assert.Equal(t, "true", FormatBool(true))
	assert.Equal(t, "false", FormatBool(false))
	assert.Equal(t, "2024-03-01", FormatDate(time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)))
}
