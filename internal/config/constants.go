package config

// Application constants
const (
	AppName    = "megacap"
	AppVersion = "1.0.0"

	// EnvPrefix namespaces environment overrides, e.g. MEGACAP_LOGGING_LEVEL.
	EnvPrefix = "MEGACAP"

	DefaultLogLevel = "info"

	// Input tables, relative to the data directory
	DefaultDataDir      = "data"
	DefaultUniverseFile = "table0_top200_stocks.csv"
	DefaultReturnsFile  = "data1_daily_returns.csv"
	DefaultFactorsFile  = "data2_fama_french_factors.csv"

	// Output directory and artefacts
	DefaultOutputDir = "output"
	WorkbookFile     = "megacap_figures.xlsx"
	FigureCSVPattern = "figure_%s.csv"

	// OldMethodology labels the run that uses the factor table's own SMB.
	OldMethodology   = "old"
	ValueSourcePanel = "panel"
	ValueSourceMega  = "mega"
)

// ConfigLocations are searched in order when no config file is given
var ConfigLocations = []string{
	"megacap.yaml",
	"config.yaml",
	"configs/megacap.yaml",
	"configs/config.yaml",
}
