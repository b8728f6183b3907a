package dataset

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jihwanw/big-dragons-never-die/internal/errors"
	"github.com/jihwanw/big-dragons-never-die/internal/shared/testutil"
)

var universeColumns = UniverseColumns{
	Ticker:       "ticker",
	Rank:         "rank",
	Name:         "company_name",
	MarketCap:    "market_cap_billions",
	BookToMarket: "book_to_market",
}

func TestReadUniverse(t *testing.T) {
	logger, h := testutil.NewTestLogger(t)
	l := NewLoader(logger)

	csv := `rank,ticker,company_name,market_cap_billions,book_to_market
2,MSFT,Microsoft,3100.5,0.08
1,AAPL,Apple,3400,
3,NVDA,NVIDIA,2900,NA
`
	u, err := l.ReadUniverse(strings.NewReader(csv), "stocks.csv", universeColumns)
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL", "MSFT", "NVDA"}, u.Tickers())
	msft, ok := u.Lookup("MSFT")
	require.True(t, ok)
	assert.Equal(t, "Microsoft", msft.Name)
	assert.Equal(t, 3100.5, msft.MarketCap)
	assert.Equal(t, 0.08, msft.BookToMarket)

	aapl, _ := u.Lookup("AAPL")
	assert.False(t, aapl.HasValueMetric())
	assert.True(t, h.ContainsAttr("with_value_metric", 1))
}

func TestReadUniverse_FileOrderRank(t *testing.T) {
	l := NewLoader(nil)
	csv := "ticker\nAAPL\nMSFT\nNVDA\n"

	u, err := l.ReadUniverse(strings.NewReader(csv), "stocks.csv", universeColumns)
	require.NoError(t, err)

	nvda, _ := u.Lookup("NVDA")
	assert.Equal(t, 3, nvda.Rank)
	assert.True(t, math.IsNaN(nvda.MarketCap))
}

func TestReadUniverse_Errors(t *testing.T) {
	tests := []struct {
		name string
		csv  string
	}{
		{"no ticker column", "symbol,rank\nAAPL,1\n"},
		{"bad rank", "ticker,rank\nAAPL,first\n"},
		{"fractional rank", "ticker,rank\nAAPL,1.5\n"},
		{"duplicate rank", "ticker,rank\nAAPL,1\nMSFT,1\n"},
		{"bad market cap", "ticker,rank,market_cap_billions\nAAPL,1,big\n"},
		{"missing ticker", "ticker,rank\n,1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader(nil).ReadUniverse(strings.NewReader(tt.csv), "stocks.csv", universeColumns)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrTypeInput), err.Error())
		})
	}
}

func TestReadPanel(t *testing.T) {
	csv := `Date,AAPL,MSFT
2024-01-03,0.01,NaN
2024-01-02,0.02,-0.01
2024-01-04,,0.005
`
	p, err := NewLoader(nil).ReadPanel(strings.NewReader(csv), "returns.csv")
	require.NoError(t, err)

	require.Equal(t, 3, p.Len())
	assert.Equal(t, []string{"AAPL", "MSFT"}, p.Columns())
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), p.Date(0))

	aapl, _ := p.Column("AAPL")
	assert.Equal(t, 0.02, aapl[0])
	assert.Equal(t, 0.01, aapl[1])
	assert.True(t, math.IsNaN(aapl[2]))

	msft, _ := p.Column("MSFT")
	assert.True(t, math.IsNaN(msft[1]))
	assert.Equal(t, 2, p.Observations("MSFT"))
}

func TestReadPanel_Errors(t *testing.T) {
	tests := []struct {
		name string
		csv  string
		want string
	}{
		{"non numeric", "Date,AAPL\n2024-01-02,abc\n", "column AAPL"},
		{"bad date", "Date,AAPL\nyesterday,0.1\n", "column Date"},
		{"duplicate date", "Date,AAPL\n2024-01-02,0.1\n2024-01-02,0.2\n", "duplicate date 2024-01-02"},
		{"date only", "Date\n2024-01-02\n", "at least one value column"},
		{"infinite", "Date,AAPL\n2024-01-02,Inf\n", "column AAPL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader(nil).ReadPanel(strings.NewReader(tt.csv), "returns.csv")
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrTypeInput))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestReadPanel_ErrorContext(t *testing.T) {
	_, err := NewLoader(nil).ReadPanel(strings.NewReader("Date,AAPL\n2024-01-02,0.1\n2024-01-03,x\n"), "returns.csv")
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "returns.csv", appErr.Context["file"])
	assert.Equal(t, 3, appErr.Context["row"])
}

func TestLoadFactorPanel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ff.csv")
	require.NoError(t, os.WriteFile(path, []byte(`,Mkt-RF,SMB,HML,RF
20240102,-0.5,0.25,1.0,0.02
20240103,1.5,-0.75,0.5,0.02
`), 0644))
	l := NewLoader(nil)

	p, err := l.LoadFactorPanel(path, []string{"Mkt-RF", "HML", "RF"}, true)
	require.NoError(t, err)
	mkt, _ := p.Column("Mkt-RF")
	assert.InDeltaSlice(t, []float64{-0.005, 0.015}, mkt, 1e-15)
	rf, _ := p.Column("RF")
	assert.InDeltaSlice(t, []float64{0.0002, 0.0002}, rf, 1e-15)

	raw, err := l.LoadFactorPanel(path, nil, false)
	require.NoError(t, err)
	smb, _ := raw.Column("SMB")
	assert.Equal(t, []float64{0.25, -0.75}, smb)

	_, err = l.LoadFactorPanel(path, []string{"Mkt-RF", "UMD"}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UMD")
}

func TestLoadPanel_NotFound(t *testing.T) {
	_, err := NewLoader(nil).LoadPanel(filepath.Join(t.TempDir(), "absent.csv"))
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrTypeNotFound, apperrors.GetType(err))
}

func TestParseDate(t *testing.T) {
	want := time.Date(2023, 3, 7, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{
		"2023-03-07",
		"2023-03-07 00:00:00",
		"2023-03-07T00:00:00",
		"2023-03-07T15:30:00Z",
		"2023/03/07",
		"03/07/2023",
		"20230307",
		" 2023-03-07 ",
	} {
		got, err := ParseDate(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseDate("07.03.2023")
	assert.Error(t, err)
}
