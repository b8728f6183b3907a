package panel

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2024, time.January, d, 0, 0, 0, 0, time.UTC)
}

func days(ds ...int) []time.Time {
	out := make([]time.Time, len(ds))
	for i, d := range ds {
		out[i] = day(d)
	}
	return out
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		dates   []time.Time
		columns []string
		values  [][]float64
		wantErr string
	}{
		{
			name:    "valid",
			dates:   days(2, 3, 4),
			columns: []string{"AAPL", "MSFT"},
			values:  [][]float64{{0.01, 0.02, 0.03}, {0.1, math.NaN(), 0.3}},
		},
		{
			name:    "unsorted dates",
			dates:   days(3, 2),
			columns: []string{"AAPL"},
			values:  [][]float64{{1, 2}},
			wantErr: "not strictly increasing",
		},
		{
			name:    "duplicate dates",
			dates:   days(2, 2),
			columns: []string{"AAPL"},
			values:  [][]float64{{1, 2}},
			wantErr: "not strictly increasing",
		},
		{
			name:    "duplicate column",
			dates:   days(2),
			columns: []string{"AAPL", "AAPL"},
			values:  [][]float64{{1}, {2}},
			wantErr: "duplicate column",
		},
		{
			name:    "ragged column",
			dates:   days(2, 3),
			columns: []string{"AAPL"},
			values:  [][]float64{{1}},
			wantErr: "has 1 values for 2 dates",
		},
		{
			name:    "column count mismatch",
			dates:   days(2),
			columns: []string{"AAPL", "MSFT"},
			values:  [][]float64{{1}},
			wantErr: "2 column names but 1 value columns",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.dates, tt.columns, tt.values)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tt.dates), p.Len())
			assert.Equal(t, tt.columns, p.Columns())
		})
	}
}

func TestPanel_CopiesInput(t *testing.T) {
	vals := []float64{1, 2}
	p := MustNew(days(1, 2), []string{"A"}, [][]float64{vals})
	vals[0] = 99

	col, ok := p.Column("A")
	require.True(t, ok)
	assert.Equal(t, []float64{1, 2}, col)

	col[1] = 42
	assert.Equal(t, 2.0, p.At(1, "A"))
}

func TestPanel_Observations(t *testing.T) {
	p := MustNew(days(1, 2, 3), []string{"A"}, [][]float64{{1, math.NaN(), 3}})
	assert.Equal(t, 2, p.Observations("A"))
	assert.Equal(t, 0, p.Observations("missing"))
	assert.True(t, math.IsNaN(p.At(0, "missing")))
}

func TestPanel_Reindex(t *testing.T) {
	p := MustNew(days(1, 2, 3), []string{"A"}, [][]float64{{1, 2, 3}})

	out, err := p.Reindex(days(2, 3, 5))
	require.NoError(t, err)
	col, _ := out.Column("A")
	assert.Equal(t, 2.0, col[0])
	assert.Equal(t, 3.0, col[1])
	assert.True(t, math.IsNaN(col[2]), "date absent from source must be missing, not zero")
}

func TestPanel_SelectAndWith(t *testing.T) {
	p := MustNew(days(1, 2), []string{"A", "B", "C"}, [][]float64{{1, 2}, {3, 4}, {5, 6}})

	sel, err := p.Select("C", "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A"}, sel.Columns())

	_, err = p.Select("Z")
	assert.Error(t, err)

	assert.Equal(t, []string{"A", "C"}, p.Present([]string{"A", "Z", "C"}))

	w, err := p.With("D", []float64{7, 8})
	require.NoError(t, err)
	assert.Equal(t, 4, w.Width())
	assert.Equal(t, 3, p.Width())

	_, err = p.With("A", []float64{0, 0})
	assert.Error(t, err)
}

func TestPanel_Window(t *testing.T) {
	p := MustNew(days(1, 2, 3, 4), []string{"A"}, [][]float64{{1, 2, 3, 4}})

	w := p.Window(day(2), day(3))
	assert.Equal(t, days(2, 3), w.Dates())

	open := p.Window(time.Time{}, day(2))
	assert.Equal(t, days(1, 2), open.Dates())
}
