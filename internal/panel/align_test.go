package panel

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntersect(t *testing.T) {
	tests := []struct {
		name    string
		indexes [][]time.Time
		want    []time.Time
	}{
		{name: "none", indexes: nil, want: nil},
		{name: "single", indexes: [][]time.Time{days(1, 2)}, want: days(1, 2)},
		{name: "overlap", indexes: [][]time.Time{days(1, 2, 3, 5), days(2, 3, 4, 5)}, want: days(2, 3, 5)},
		{name: "three way", indexes: [][]time.Time{days(1, 2, 3), days(2, 3), days(3, 4)}, want: days(3)},
		{name: "disjoint", indexes: [][]time.Time{days(1, 2), days(3, 4)}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Intersect(tt.indexes...))
		})
	}
}

func TestIntersect_IgnoresTimeOfDay(t *testing.T) {
	a := []time.Time{time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}
	b := []time.Time{time.Date(2024, 1, 2, 16, 0, 0, 0, time.UTC)}
	assert.Len(t, Intersect(a, b), 1)
}

func TestAlign(t *testing.T) {
	returns := MustNew(days(1, 2, 3, 4), []string{"A"}, [][]float64{{1, 2, 3, 4}})
	factors := MustNew(days(2, 3, 4, 5, 6), []string{"Mkt-RF"}, [][]float64{{10, 20, 30, 40, 50}})

	out, report := Align(returns, factors)
	require.Len(t, out, 2)

	assert.Equal(t, 3, report.Common)
	assert.Equal(t, []int{1, 2}, report.Dropped)
	assert.Equal(t, day(2), report.Start)
	assert.Equal(t, day(4), report.End)
	assert.False(t, report.Empty())

	assert.Equal(t, out[0].Dates(), out[1].Dates())
	a, _ := out[0].Column("A")
	m, _ := out[1].Column("Mkt-RF")
	assert.Equal(t, []float64{2, 3, 4}, a)
	assert.Equal(t, []float64{10, 20, 30}, m)
}

func TestAlign_Empty(t *testing.T) {
	a := MustNew(days(1, 2), []string{"A"}, [][]float64{{1, 2}})
	b := MustNew(days(3, 4), []string{"B"}, [][]float64{{3, 4}})

	out, report := Align(a, b)
	assert.True(t, report.Empty())
	assert.Contains(t, report.String(), "no common dates")
	for _, p := range out {
		assert.Equal(t, 0, p.Len())
		assert.Equal(t, 1, p.Width())
	}
}

func TestAlign_OutputIsSubsetOfEveryInput(t *testing.T) {
	a := MustNew(days(1, 3, 5, 7, 9), []string{"A"}, [][]float64{{1, 3, 5, 7, 9}})
	b := MustNew(days(2, 3, 4, 5, 9, 10), []string{"B"}, [][]float64{{2, 3, 4, 5, 9, 10}})
	inputs := []*Panel{a, b}

	out, _ := Align(inputs...)
	for i, p := range out {
		src := make(map[time.Time]bool)
		for _, d := range inputs[i].Dates() {
			src[d] = true
		}
		prev := time.Time{}
		for _, d := range p.Dates() {
			assert.True(t, src[d], "input %d does not carry %s", i, d)
			assert.True(t, d.After(prev), "dates must stay chronological")
			prev = d
		}
	}
}

func ExampleAlign() {
	returns := MustNew(days(2, 3, 4), []string{"AAPL"}, [][]float64{{0.01, 0.02, 0.03}})
	factors := MustNew(days(3, 4, 5), []string{"Mkt-RF"}, [][]float64{{0.001, 0.002, 0.003}})

	_, report := Align(returns, factors)
	fmt.Println(report)
	// Output: 2 common dates 2024-01-03..2024-01-04 (dropped [1 1])
}
