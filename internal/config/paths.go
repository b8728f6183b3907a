package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths holds the resolved locations of every file the run touches.
// This is the single source of truth for file paths.
type Paths struct {
	DataDir   string
	OutputDir string
	LogsDir   string

	UniverseFile string
	ReturnsFile  string
	FactorsFile  string
}

// ResolvePaths turns the configured paths into absolute ones. Relative
// directories are taken from the working directory; relative input file
// names from the data directory.
func (c *Config) ResolvePaths() (*Paths, error) {
	dataDir, err := filepath.Abs(c.Paths.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data dir: %w", err)
	}
	outputDir, err := filepath.Abs(c.Paths.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output dir: %w", err)
	}
	logsDir := ""
	if c.Logging.FilePath != "" {
		if logsDir, err = filepath.Abs(filepath.Dir(c.Logging.FilePath)); err != nil {
			return nil, fmt.Errorf("failed to resolve logs dir: %w", err)
		}
	}

	inData := func(name string) string {
		if filepath.IsAbs(name) {
			return filepath.Clean(name)
		}
		return filepath.Join(dataDir, name)
	}

	return &Paths{
		DataDir:      dataDir,
		OutputDir:    outputDir,
		LogsDir:      logsDir,
		UniverseFile: inData(c.Paths.UniverseFile),
		ReturnsFile:  inData(c.Paths.ReturnsFile),
		FactorsFile:  inData(c.Paths.FactorsFile),
	}, nil
}

// EnsureDirectories creates the output directory
func (p *Paths) EnsureDirectories() error {
	if err := os.MkdirAll(p.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", p.OutputDir, err)
	}
	return nil
}

// Output returns the path of an artefact in the output directory
func (p *Paths) Output(name string) string {
	return filepath.Join(p.OutputDir, name)
}

// FigureCSV returns the data file of a figure
func (p *Paths) FigureCSV(figure string) string {
	return p.Output(fmt.Sprintf(FigureCSVPattern, figure))
}

// Inputs returns the three input tables
func (p *Paths) Inputs() []string {
	return []string{p.UniverseFile, p.ReturnsFile, p.FactorsFile}
}

// LogPathResolution logs the resolved paths at debug level
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("paths resolved",
		slog.String("data_dir", p.DataDir),
		slog.String("output_dir", p.OutputDir),
		slog.String("universe_file", p.UniverseFile),
		slog.String("returns_file", p.ReturnsFile),
		slog.String("factors_file", p.FactorsFile),
	)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
