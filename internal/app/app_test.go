package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jihwanw/big-dragons-never-die/internal/config"
	apperrors "github.com/jihwanw/big-dragons-never-die/internal/errors"
	"github.com/jihwanw/big-dragons-never-die/internal/exporter"
	"github.com/jihwanw/big-dragons-never-die/internal/famamacbeth"
	"github.com/jihwanw/big-dragons-never-die/internal/panel"
	"github.com/jihwanw/big-dragons-never-die/internal/portfolio"
	"github.com/jihwanw/big-dragons-never-die/internal/report"
	"github.com/jihwanw/big-dragons-never-die/internal/shared/testutil"
)

const fixtureDays = 160

// writeInputs writes a 200-entity study whose returns follow the factor
// table. Entities listed in skip get no return column.
func writeInputs(t *testing.T, dataDir string, skip ...string) {
	t.Helper()
	writeStudy(t, dataDir, nil, skip)
}

// writeStudy is writeInputs plus return columns for tickers that are not
// part of the ranked universe. Each extra column copies the first ticker.
func writeStudy(t *testing.T, dataDir string, extra, skip []string) {
	t.Helper()
	u := testutil.RankedUniverse(t, 200)
	factors := testutil.FactorPanel(t, 3, testutil.TradingDays(fixtureDays))
	returns := testutil.FactorModelReturns(t, 5, factors, testutil.Tickers(200), 0.004,
		func(i int) testutil.Betas {
			return testutil.Betas{Market: 0.8 + float64(i%5)/10, Size: float64(i)/100 - 1, Value: float64(i%7) / 10}
		})
	if len(skip) > 0 {
		var keep []string
		for _, c := range returns.Columns() {
			drop := false
			for _, s := range skip {
				drop = drop || s == c
			}
			if !drop {
				keep = append(keep, c)
			}
		}
		var err error
		returns, err = returns.Select(keep...)
		require.NoError(t, err)
	}
	for _, name := range extra {
		col, ok := returns.Column(testutil.Ticker(1))
		require.True(t, ok)
		var err error
		returns, err = returns.With(name, col)
		require.NoError(t, err)
	}

	w := exporter.NewCSVWriter(dataDir, nil)
	universe := exporter.Table{Headers: []string{"ticker", "rank", "company_name", "market_cap_billions", "book_to_market"}}
	for _, e := range u.Entities() {
		universe.Records = append(universe.Records, []string{
			e.Ticker, exporter.FormatInt(e.Rank), e.Name,
			exporter.FormatFloat(e.MarketCap, 2), exporter.FormatFloat(e.BookToMarket, 4),
		})
	}
	_, err := w.WriteTable(config.DefaultUniverseFile, universe)
	require.NoError(t, err)
	_, err = w.WriteTable(config.DefaultReturnsFile, report.PanelTable(returns))
	require.NoError(t, err)
	_, err = w.WriteTable(config.DefaultFactorsFile, report.PanelTable(factors))
	require.NoError(t, err)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(root, "data")
	cfg.Paths.OutputDir = filepath.Join(root, "out")
	cfg.Analytics.RollingWindow = 20
	cfg.Analytics.HistogramBins = 10
	require.NoError(t, cfg.Validate())
	return cfg
}

func newApp(t *testing.T, cfg *config.Config) (*Application, *testutil.BufferedSlogHandler) {
	t.Helper()
	logger, h := testutil.NewTestLogger(nil)
	a, err := NewApplication(cfg, logger)
	require.NoError(t, err)
	return a, h
}

func TestRun(t *testing.T) {
	cfg := testConfig(t)
	writeInputs(t, cfg.Paths.DataDir)
	a, h := newApp(t, cfg)

	summary, err := a.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.Results, 4)
	methods := make([]string, len(summary.Results))
	for i, r := range summary.Results {
		methods[i] = r.Methodology
	}
	assert.Equal(t, []string{config.OldMethodology, "SMB_50", "SMB_30", "SMB_Q5Q1"}, methods)

	smb50 := summary.Results[1]
	assert.Len(t, smb50.Stage1.Loadings, 200)
	assert.Len(t, smb50.Stage2.Periods, fixtureDays)
	p, ok := smb50.Premium(famamacbeth.FactorSize)
	require.True(t, ok)
	assert.True(t, p.Defined)
	assert.Equal(t, fixtureDays, p.Observations)

	out := cfg.Paths.OutputDir
	for _, name := range []string{
		report.FactorsFile, report.SummaryFile, report.ComparisonFile,
		report.BetaStatsFile, report.DiagnosticsFile,
		report.Stage1File(config.OldMethodology), report.Stage2File("SMB_Q5Q1"),
		"figure_cumulative_spreads.csv", "figure_rolling_correlation.csv",
		config.WorkbookFile,
	} {
		assert.FileExists(t, filepath.Join(out, name))
	}
	assert.Contains(t, summary.Files, filepath.Join(out, config.WorkbookFile))

	data, err := os.ReadFile(filepath.Join(out, report.FactorsFile))
	require.NoError(t, err)
	header := strings.SplitN(string(data), "\n", 2)[0]
	assert.Equal(t, "date,Small_50,Big_50,SMB_50,Bottom_30,Top_30,SMB_30,Q1,Q2,Q3,Q4,Q5,SMB_Q5Q1", header)

	data, err = os.ReadFile(filepath.Join(out, report.ComparisonFile))
	require.NoError(t, err)
	assert.Equal(t, 1+3*3, strings.Count(string(data), "\n"), "header plus three factors per new methodology")

	assert.True(t, h.ContainsMessage("run completed"))
	assert.True(t, h.ContainsMessage("workbook written"))
	assert.True(t, h.ContainsAttr("methodology", "SMB_Q5Q1"))
	assert.NotNil(t, summary.Stats)
}

func TestRun_MissingInput(t *testing.T) {
	cfg := testConfig(t)
	writeInputs(t, cfg.Paths.DataDir)
	require.NoError(t, os.Remove(filepath.Join(cfg.Paths.DataDir, config.DefaultReturnsFile)))
	a, _ := newApp(t, cfg)

	_, err := a.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrTypeNotFound, apperrors.GetType(err))
	assert.Equal(t, apperrors.ExitInput, apperrors.ExitCode(err))
}

func TestRun_WithoutWorkbook(t *testing.T) {
	cfg := testConfig(t)
	cfg.Analytics.Workbook = false
	cfg.Factors.CompareOld = false
	writeInputs(t, cfg.Paths.DataDir)
	a, _ := newApp(t, cfg)

	summary, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, summary.Results, 3)
	assert.NoFileExists(t, filepath.Join(cfg.Paths.OutputDir, config.WorkbookFile))
	assert.NoFileExists(t, filepath.Join(cfg.Paths.OutputDir, report.ComparisonFile))
}

func TestRun_Canceled(t *testing.T) {
	cfg := testConfig(t)
	writeInputs(t, cfg.Paths.DataDir)
	a, _ := newApp(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteFactorTable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Factors.ValueSource = config.ValueSourceMega
	writeInputs(t, cfg.Paths.DataDir)
	a, h := newApp(t, cfg)

	path, err := a.WriteFactorTable(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.Paths.OutputDir, report.FactorsFile), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	header := strings.SplitN(string(data), "\n", 2)[0]
	assert.True(t, strings.HasSuffix(header, ",High_BM,Low_BM,HML_mega"), header)
	assert.Equal(t, fixtureDays+1, strings.Count(string(data), "\n"))

	entries, err := os.ReadDir(cfg.Paths.OutputDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.True(t, h.ContainsMessage("factor table written"))
}

func TestLoadInputs_WarnsOnMissingReturns(t *testing.T) {
	cfg := testConfig(t)
	writeInputs(t, cfg.Paths.DataDir, testutil.Ticker(7), testutil.Ticker(150))
	a, h := newApp(t, cfg)

	in, err := a.LoadInputs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 200, in.Universe.Len())
	assert.Equal(t, 198, in.Returns.Width())
	assert.True(t, h.ContainsMessage("universe entities without a return column"))
	assert.True(t, h.ContainsAttr("missing", 2))
}

func TestRun_IgnoresReturnsOutsideUniverse(t *testing.T) {
	cfg := testConfig(t)
	writeStudy(t, cfg.Paths.DataDir, []string{"ZZZ"}, nil)
	a, h := newApp(t, cfg)

	in, err := a.LoadInputs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 200, in.Returns.Width())
	assert.False(t, in.Returns.Has("ZZZ"))
	assert.True(t, h.ContainsMessage("return columns outside the universe dropped"))
	assert.True(t, h.ContainsAttr("dropped", 1))

	summary, err := a.Run(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, summary.Results)
	for _, res := range summary.Results {
		_, ok := res.Stage1.Lookup("ZZZ")
		assert.False(t, ok, "%s estimated a ticker outside the universe", res.Methodology)
		_, ok = res.Stage1.Lookup(testutil.Ticker(1))
		assert.True(t, ok, res.Methodology)
	}
}

func TestLoadInputs_MissingFactorColumn(t *testing.T) {
	cfg := testConfig(t)
	cfg.Columns.Market = "MKT"
	writeInputs(t, cfg.Paths.DataDir)
	a, _ := newApp(t, cfg)

	_, err := a.LoadInputs(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrTypeInput, apperrors.GetType(err))
	assert.Contains(t, err.Error(), "MKT")
}

func TestRun_WithoutOldSizeColumn(t *testing.T) {
	cfg := testConfig(t)
	cfg.Columns.Size = "SMB_FF"
	writeInputs(t, cfg.Paths.DataDir)
	a, h := newApp(t, cfg)

	summary, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, summary.Results, 3)
	assert.True(t, h.ContainsMessage("comparing against nothing"))

	data, err := os.ReadFile(filepath.Join(cfg.Paths.OutputDir, report.ComparisonFile))
	require.NoError(t, err)
	assert.Equal(t, 1+3*3, strings.Count(string(data), "\n"))
}

func TestMethodologies_MegaValue(t *testing.T) {
	cfg := testConfig(t)
	cfg.Factors.ValueSource = config.ValueSourceMega
	cfg.Factors.CompareOld = false
	writeInputs(t, cfg.Paths.DataDir)
	a, _ := newApp(t, cfg)
	ctx := context.Background()

	in, err := a.LoadInputs(ctx)
	require.NoError(t, err)
	f, err := a.BuildFactors(ctx, in)
	require.NoError(t, err)
	require.NotNil(t, f.Value)
	r, ok := f.SizeFactor("SMB_30")
	require.True(t, ok)
	assert.Equal(t, "Bottom_30", r.Long)

	methods, err := a.Methodologies(ctx, in, f)
	require.NoError(t, err)
	require.Len(t, methods, 3)
	for _, m := range methods {
		assert.Equal(t, []string{famamacbeth.FactorMarket, famamacbeth.FactorSize, famamacbeth.FactorValue, "RF"},
			m.Factors.Columns())
		value, _ := m.Factors.Column(famamacbeth.FactorValue)
		assert.Equal(t, f.Value.SpreadSeries(), value)
	}
	size, _ := methods[2].Factors.Column(famamacbeth.FactorSize)
	assert.Equal(t, f.Size[2].SpreadSeries(), size)
}

func TestCombine_PrefixesRepeatedGroups(t *testing.T) {
	dates := testutil.TradingDays(3)
	mk := func(spread string, cols ...string) *portfolio.Result {
		return &portfolio.Result{Spread: spread, Series: testutil.BuildPanel(t, dates, cols,
			func(r, c int) float64 { return float64(r + c) })}
	}
	p, err := combine(dates, []*portfolio.Result{
		mk("A", "Small", "Big", "A"),
		mk("B", "Small", "Mid", "B"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Small", "Big", "A", "B_Small", "Mid", "B"}, p.Columns())
	assert.Equal(t, 3, p.Len())

	_, err = combine(dates, []*portfolio.Result{{Spread: "x", Series: panel.Empty("x")}})
	assert.Error(t, err, "series on another date axis")
}
