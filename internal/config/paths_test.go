package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jihwanw/big-dragons-never-die/internal/shared/testutil"
)

func TestResolvePaths(t *testing.T) {
	root := t.TempDir()
	cfg := Default()
	cfg.Paths.DataDir = filepath.Join(root, "in")
	cfg.Paths.OutputDir = filepath.Join(root, "out")
	cfg.Paths.FactorsFile = filepath.Join(root, "shared", "ff.csv")

	p, err := cfg.ResolvePaths()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "in", DefaultUniverseFile), p.UniverseFile)
	assert.Equal(t, filepath.Join(root, "in", DefaultReturnsFile), p.ReturnsFile)
	assert.Equal(t, filepath.Join(root, "shared", "ff.csv"), p.FactorsFile, "absolute file names are kept")
	assert.Equal(t, []string{p.UniverseFile, p.ReturnsFile, p.FactorsFile}, p.Inputs())
	assert.True(t, filepath.IsAbs(p.LogsDir))
}

func TestResolvePaths_Relative(t *testing.T) {
	cfg := Default()
	p, err := cfg.ResolvePaths()
	require.NoError(t, err)

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, DefaultDataDir), p.DataDir)
	assert.Equal(t, filepath.Join(wd, DefaultOutputDir), p.OutputDir)
}

func TestPathHelpers(t *testing.T) {
	p := &Paths{OutputDir: filepath.Join("x", "out")}

	assert.Equal(t, filepath.Join("x", "out", WorkbookFile), p.Output(WorkbookFile))
	assert.Equal(t, filepath.Join("x", "out", "figure_rolling.csv"), p.FigureCSV("rolling"))
}

func TestEnsureDirectories(t *testing.T) {
	p := &Paths{OutputDir: filepath.Join(t.TempDir(), "nested", "out")}
	require.NoError(t, p.EnsureDirectories())
	assert.True(t, FileExists(p.OutputDir))

	// idempotent
	require.NoError(t, p.EnsureDirectories())

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))
	p = &Paths{OutputDir: filepath.Join(blocker, "out")}
	assert.Error(t, p.EnsureDirectories())
}

func TestLogPathResolution(t *testing.T) {
	logger, h := testutil.NewTestLogger(t)
	p := &Paths{DataDir: "/data", OutputDir: "/out"}
	p.LogPathResolution(logger)

	assert.True(t, h.ContainsMessage("paths resolved"))
	assert.True(t, h.ContainsAttr("output_dir", "/out"))
}
