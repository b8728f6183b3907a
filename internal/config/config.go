package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	apperrors "github.com/jihwanw/big-dragons-never-die/internal/errors"
	"github.com/jihwanw/big-dragons-never-die/internal/famamacbeth"
	"github.com/jihwanw/big-dragons-never-die/internal/portfolio"
)

// Config represents the complete application configuration
type Config struct {
	Logging    LoggingConfig    `yaml:"logging" envconfig:"LOGGING"`
	Paths      PathsConfig      `yaml:"paths" envconfig:"PATHS"`
	Columns    ColumnsConfig    `yaml:"columns" envconfig:"COLUMNS"`
	Estimation EstimationConfig `yaml:"estimation" envconfig:"ESTIMATION"`
	Factors    FactorsConfig    `yaml:"factors" envconfig:"FACTORS"`
	Analytics  AnalyticsConfig  `yaml:"analytics" envconfig:"ANALYTICS"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Format   string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" validate:"required_unless=Output console"`
}

// PathsConfig locates the input tables and the output directory
type PathsConfig struct {
	DataDir      string `yaml:"data_dir" envconfig:"DATA_DIR" validate:"required"`
	OutputDir    string `yaml:"output_dir" envconfig:"OUTPUT_DIR" validate:"required"`
	UniverseFile string `yaml:"universe_file" envconfig:"UNIVERSE_FILE" validate:"required"`
	ReturnsFile  string `yaml:"returns_file" envconfig:"RETURNS_FILE" validate:"required"`
	FactorsFile  string `yaml:"factors_file" envconfig:"FACTORS_FILE" validate:"required"`
}

// ColumnsConfig names the columns of the input tables
type ColumnsConfig struct {
	Market   string `yaml:"market" envconfig:"MARKET" validate:"required"`
	RiskFree string `yaml:"risk_free" envconfig:"RISK_FREE" validate:"required"`
	Value    string `yaml:"value" envconfig:"VALUE" validate:"required"`
	Size     string `yaml:"size" envconfig:"SIZE"`

	Ticker       string `yaml:"ticker" envconfig:"TICKER" validate:"required"`
	Rank         string `yaml:"rank" envconfig:"RANK"`
	Name         string `yaml:"name" envconfig:"COMPANY_NAME"`
	MarketCap    string `yaml:"market_cap" envconfig:"MARKET_CAP"`
	BookToMarket string `yaml:"book_to_market" envconfig:"BOOK_TO_MARKET"`
}

// EstimationConfig holds the Fama-MacBeth thresholds
type EstimationConfig struct {
	MinObservations     int    `yaml:"min_observations" envconfig:"MIN_OBSERVATIONS" validate:"min=1"`
	MinEntities         int    `yaml:"min_entities" envconfig:"MIN_ENTITIES" validate:"min=1"`
	MinComplete         int    `yaml:"min_complete" envconfig:"MIN_COMPLETE" validate:"min=1"`
	Workers             int    `yaml:"workers" envconfig:"WORKERS" validate:"min=0"`
	CrossSectionReturns string `yaml:"cross_section_returns" envconfig:"CROSS_SECTION_RETURNS" validate:"oneof=raw excess"`
}

// FactorsConfig defines the size and value factors of the study
type FactorsConfig struct {
	Size          []SizeRuleConfig `yaml:"size" ignored:"true" validate:"min=1,dive"`
	ValueSource   string           `yaml:"value_source" envconfig:"VALUE_SOURCE" validate:"oneof=panel mega"`
	ValueFraction float64          `yaml:"value_fraction" envconfig:"VALUE_FRACTION" validate:"gt=0,lte=0.5"`
	PercentScaled bool             `yaml:"percent_scaled" envconfig:"PERCENT_SCALED"`
	CompareOld    bool             `yaml:"compare_old" envconfig:"COMPARE_OLD"`
}

// SizeRuleConfig is one size factor definition
type SizeRuleConfig struct {
	Name        string      `yaml:"name" validate:"required"`
	Kind        string      `yaml:"kind" validate:"oneof=rank_range quantile"`
	Long        GroupConfig `yaml:"long"`
	Short       GroupConfig `yaml:"short"`
	Quantiles   int         `yaml:"quantiles"`
	LongBucket  int         `yaml:"long_bucket"`
	ShortBucket int         `yaml:"short_bucket"`
}

// GroupConfig is an inclusive rank range
type GroupConfig struct {
	Name string `yaml:"name"`
	From int    `yaml:"from"`
	To   int    `yaml:"to"`
}

// AnalyticsConfig controls the figure series
type AnalyticsConfig struct {
	RollingWindow int    `yaml:"rolling_window" envconfig:"ROLLING_WINDOW" validate:"min=2"`
	HistogramBins int    `yaml:"histogram_bins" envconfig:"HISTOGRAM_BINS" validate:"min=1"`
	PrimaryFactor string `yaml:"primary_factor" envconfig:"PRIMARY_FACTOR"`
	Workbook      bool   `yaml:"workbook" envconfig:"WORKBOOK"`
}

// TelemetryConfig controls OpenTelemetry output
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled" envconfig:"ENABLED"`
	ServiceName string `yaml:"service_name" envconfig:"SERVICE_NAME"`
	MetricsFile string `yaml:"metrics_file" envconfig:"METRICS_FILE"`
	TraceFile   string `yaml:"trace_file" envconfig:"TRACE_FILE"`
}

// Load builds the configuration from defaults, an optional YAML file and
// MEGACAP_* environment variables, in that order of precedence. An empty
// path searches the well-known locations.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = getConfigFilePath()
	} else if _, err := os.Stat(path); err != nil {
		return nil, apperrors.NewConfigError(fmt.Sprintf("config file %s", path), err)
	}
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, apperrors.NewConfigError("failed to load config from file", err).
				WithContext("path", path)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, apperrors.NewConfigError("failed to load config from env", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.UnmarshalStrict(data, cfg)
}

// Validate checks struct tags and cross-field rules
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return apperrors.NewConfigError("config validation failed", err)
	}

	seen := make(map[string]bool)
	for _, rule := range c.Factors.Rules() {
		if err := rule.Validate(); err != nil {
			return apperrors.NewConfigError("invalid size factor", err)
		}
		if seen[rule.Name] {
			return apperrors.NewConfigError(fmt.Sprintf("duplicate size factor %s", rule.Name), nil)
		}
		seen[rule.Name] = true
	}
	if c.Analytics.PrimaryFactor != "" && !seen[c.Analytics.PrimaryFactor] {
		return apperrors.NewConfigError(
			fmt.Sprintf("primary factor %s is not a configured size factor", c.Analytics.PrimaryFactor), nil)
	}
	if c.Factors.CompareOld && c.Columns.Size == "" {
		return apperrors.NewConfigError("compare_old needs columns.size", nil)
	}
	if err := c.ValueRule().Validate(); err != nil {
		return apperrors.NewConfigError("invalid value factor", err)
	}
	return nil
}

// Rules converts the size factor definitions
func (f FactorsConfig) Rules() []portfolio.Rule {
	out := make([]portfolio.Rule, len(f.Size))
	for i, s := range f.Size {
		out[i] = portfolio.Rule{
			Name:        s.Name,
			Kind:        portfolio.Kind(s.Kind),
			Long:        portfolio.Group{Name: s.Long.Name, From: s.Long.From, To: s.Long.To},
			Short:       portfolio.Group{Name: s.Short.Name, From: s.Short.From, To: s.Short.To},
			Quantiles:   s.Quantiles,
			LongBucket:  s.LongBucket,
			ShortBucket: s.ShortBucket,
		}
	}
	return out
}

// ValueRule returns the mega-cap value factor definition
func (c *Config) ValueRule() portfolio.ValueRule {
	v := portfolio.DefaultValueRule()
	v.Fraction = c.Factors.ValueFraction
	return v
}

// UseMegaValue reports whether HML is built from the universe
func (c *Config) UseMegaValue() bool {
	return strings.EqualFold(c.Factors.ValueSource, ValueSourceMega)
}

// Pipeline returns the estimator configuration
func (e EstimationConfig) Pipeline() famamacbeth.Config {
	return famamacbeth.Config{
		MinObservations: e.MinObservations,
		MinEntities:     e.MinEntities,
		MinComplete:     e.MinComplete,
		Workers:         e.Workers,
		Basis:           famamacbeth.ReturnBasis(e.CrossSectionReturns),
	}
}

// getConfigFilePath returns the first existing well-known config file
func getConfigFilePath() string {
	for _, location := range ConfigLocations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:    DefaultLogLevel,
			Format:   "json",
			Output:   "console",
			FilePath: "logs/megacap.log",
		},
		Paths: PathsConfig{
			DataDir:      DefaultDataDir,
			OutputDir:    DefaultOutputDir,
			UniverseFile: DefaultUniverseFile,
			ReturnsFile:  DefaultReturnsFile,
			FactorsFile:  DefaultFactorsFile,
		},
		Columns: ColumnsConfig{
			Market:       "Mkt-RF",
			RiskFree:     "RF",
			Value:        "HML",
			Size:         "SMB",
			Ticker:       "ticker",
			Rank:         "rank",
			Name:         "company_name",
			MarketCap:    "market_cap_billions",
			BookToMarket: "book_to_market",
		},
		Estimation: EstimationConfig{
			MinObservations:     famamacbeth.DefaultMinObservations,
			MinEntities:         famamacbeth.DefaultMinEntities,
			MinComplete:         famamacbeth.DefaultMinComplete,
			Workers:             0,
			CrossSectionReturns: string(famamacbeth.BasisRaw),
		},
		Factors: FactorsConfig{
			Size:          defaultSizeRules(),
			ValueSource:   ValueSourcePanel,
			ValueFraction: 1.0 / 3.0,
			CompareOld:    true,
		},
		Analytics: AnalyticsConfig{
			RollingWindow: famamacbeth.TradingDaysPerYear,
			HistogramBins: 30,
			PrimaryFactor: "SMB_50",
			Workbook:      true,
		},
		Telemetry: TelemetryConfig{
			ServiceName: AppName,
		},
	}
}

func defaultSizeRules() []SizeRuleConfig {
	rules := portfolio.DefaultRules()
	out := make([]SizeRuleConfig, len(rules))
	for i, r := range rules {
		out[i] = SizeRuleConfig{
			Name:        r.Name,
			Kind:        string(r.Kind),
			Long:        GroupConfig{Name: r.Long.Name, From: r.Long.From, To: r.Long.To},
			Short:       GroupConfig{Name: r.Short.Name, From: r.Short.From, To: r.Short.To},
			Quantiles:   r.Quantiles,
			LongBucket:  r.LongBucket,
			ShortBucket: r.ShortBucket,
		}
	}
	return out
}
