package validation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jihwanw/big-dragons-never-die/internal/errors"
	"github.com/jihwanw/big-dragons-never-die/internal/shared/testutil"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestFileValidator_ValidateInputDirectory(t *testing.T) {
	tests := []struct {
		name      string
		setupFunc func(t *testing.T) string
		pattern   string
		wantType  apperrors.ErrorType
	}{
		{
			name: "valid directory with files",
			setupFunc: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, "data1_daily_returns.csv", "date,A\n")
				return dir
			},
			pattern: "*.csv",
		},
		{
			name:      "valid directory without files",
			setupFunc: func(t *testing.T) string { return t.TempDir() },
			pattern:   "*.csv",
		},
		{
			name:      "non-existent directory",
			setupFunc: func(t *testing.T) string { return filepath.Join(t.TempDir(), "missing") },
			wantType:  apperrors.ErrTypeNotFound,
		},
		{
			name: "path is file not directory",
			setupFunc: func(t *testing.T) string {
				return writeFile(t, t.TempDir(), "test.txt", "x")
			},
			wantType: apperrors.ErrTypeInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validator := NewFileValidator(nil)
			err := validator.ValidateInputDirectory(tt.setupFunc(t), tt.pattern)
			if tt.wantType == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantType, apperrors.GetType(err))
		})
	}
}

func TestFileValidator_ValidateInputDirectory_LogsEmptyMatch(t *testing.T) {
	logger, h := testutil.NewTestLogger(t)
	require.NoError(t, NewFileValidator(logger).ValidateInputDirectory(t.TempDir(), "*.csv"))
	assert.True(t, h.ContainsMessage("No files matching pattern found"))
	assert.True(t, h.ContainsAttr("component", "validation"))
}

func TestFileValidator_ValidateOutputDirectory(t *testing.T) {
	validator := NewFileValidator(nil)

	dir := filepath.Join(t.TempDir(), "new", "nested", "dir")
	require.NoError(t, validator.ValidateOutputDirectory(dir))
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "write probe is removed")

	blocker := writeFile(t, t.TempDir(), "file", "x")
	err = validator.ValidateOutputDirectory(filepath.Join(blocker, "out"))
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrTypeStorage, apperrors.GetType(err))
}

func TestFileValidator_ValidateCSVFile(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name          string
		path          string
		wantType      apperrors.ErrorType
		errorContains string
	}{
		{name: "valid", path: writeFile(t, dir, "ok.csv", "date,A\n2020-01-02,0.1\n")},
		{name: "upper-case extension", path: writeFile(t, dir, "OK.CSV", "date\n")},
		{name: "empty", path: writeFile(t, dir, "empty.csv", ""), wantType: apperrors.ErrTypeInput, errorContains: "empty"},
		{name: "wrong extension", path: writeFile(t, dir, "data.txt", "x"), wantType: apperrors.ErrTypeInput, errorContains: "not a CSV file"},
		{name: "missing", path: filepath.Join(dir, "nope.csv"), wantType: apperrors.ErrTypeNotFound, errorContains: "not found"},
		{name: "directory", path: dir, wantType: apperrors.ErrTypeInput, errorContains: "is a directory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewFileValidator(nil).ValidateCSVFile(tt.path)
			if tt.wantType == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantType, apperrors.GetType(err))
			assert.Contains(t, err.Error(), tt.errorContains)
		})
	}
}

func TestFileValidator_ValidateInputs(t *testing.T) {
	dir := t.TempDir()
	ok := writeFile(t, dir, "ok.csv", "date,A\n")
	missingA := filepath.Join(dir, "a.csv")
	missingB := filepath.Join(dir, "b.csv")
	v := NewFileValidator(nil)

	assert.NoError(t, v.ValidateInputs(ok))

	err := v.ValidateInputs(ok, missingA)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrTypeNotFound, apperrors.GetType(err))

	err = v.ValidateInputs(missingA, ok, missingB)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrTypeInput, apperrors.GetType(err))
	assert.Contains(t, err.Error(), "2 input files failed validation")
	assert.Contains(t, err.Error(), "a.csv")
	assert.Contains(t, err.Error(), "b.csv")
}

func TestFileValidator_ValidateWorkbookPath(t *testing.T) {
	v := NewFileValidator(nil)
	assert.NoError(t, v.ValidateWorkbookPath("out/megacap_figures.xlsx"))
	assert.NoError(t, v.ValidateWorkbookPath("out/FIGURES.XLSX"))

	for _, bad := range []string{"out/figures.xls", "out/figures", "out/~$figures.xlsx"} {
		err := v.ValidateWorkbookPath(bad)
		require.Error(t, err, bad)
		assert.Equal(t, apperrors.ErrTypeConfig, apperrors.GetType(err))
	}
}

func TestFileValidator_CountFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.csv", "x")
	writeFile(t, dir, "b.csv", "x")
	writeFile(t, dir, "c.txt", "x")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "d.csv"), 0755))

	n, err := NewFileValidator(nil).CountFiles(dir, "*.csv")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = NewFileValidator(nil).CountFiles(dir, "[")
	assert.Error(t, err)
}
