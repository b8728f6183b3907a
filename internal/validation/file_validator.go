package validation

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/jihwanw/big-dragons-never-die/internal/errors"
)

// FileValidator checks the run's input files and output locations before
// any data is read.
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger: logger.With("component", "validation"),
	}
}

// ValidateInputDirectory validates that the data directory exists and
// reports how many files match the pattern. No matches is not an error.
func (v *FileValidator) ValidateInputDirectory(dir string, pattern string) error {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		v.logger.Error("Input directory does not exist",
			slog.String("directory", dir))
		return apperrors.NewNotFoundError(dir)
	}
	if err != nil {
		return apperrors.NewInputError("failed to stat input directory", err).WithContext("directory", dir)
	}
	if !info.IsDir() {
		v.logger.Error("Input path is not a directory",
			slog.String("path", dir))
		return apperrors.NewInputError(fmt.Sprintf("%s is not a directory", dir), nil)
	}

	if pattern != "" {
		n, err := v.CountFiles(dir, pattern)
		if err != nil {
			return err
		}
		if n == 0 {
			v.logger.Warn("No files matching pattern found",
				slog.String("directory", dir),
				slog.String("pattern", pattern))
			return nil
		}
		v.logger.Debug("Input directory validated",
			slog.String("directory", dir),
			slog.Int("files_found", n),
			slog.String("pattern", pattern))
	}
	return nil
}

// ValidateOutputDirectory ensures the output directory exists or can be
// created, and that it is writable.
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("Failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return apperrors.NewStorageError("failed to create output directory", err).WithContext("directory", dir)
	}

	probe, err := os.CreateTemp(dir, ".write_test-*")
	if err != nil {
		v.logger.Error("Output directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return apperrors.NewStorageError("output directory is not writable", err).WithContext("directory", dir)
	}
	probe.Close()
	os.Remove(probe.Name())

	v.logger.Debug("Output directory validated",
		slog.String("directory", dir))
	return nil
}

// ValidateFile checks that a file exists, is not a directory and can be read.
func (v *FileValidator) ValidateFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		v.logger.Error("File does not exist",
			slog.String("file", path))
		return apperrors.NewNotFoundError(path)
	}
	if err != nil {
		return apperrors.NewInputError("failed to stat file", err).WithContext("file", path)
	}
	if info.IsDir() {
		v.logger.Error("Path is a directory, not a file",
			slog.String("path", path))
		return apperrors.NewInputError(fmt.Sprintf("%s is a directory, not a file", path), nil)
	}

	file, err := os.Open(path)
	if err != nil {
		v.logger.Error("File is not readable",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return apperrors.NewInputError("file is not readable", err).WithContext("file", path)
	}
	file.Close()

	v.logger.Debug("File validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}

// ValidateCSVFile checks that a file is a readable CSV with at least a
// header line.
func (v *FileValidator) ValidateCSVFile(path string) error {
	if err := v.ValidateFile(path); err != nil {
		return err
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".csv" {
		v.logger.Error("File is not a CSV file",
			slog.String("file", path),
			slog.String("extension", ext))
		return apperrors.NewInputError(fmt.Sprintf("file %s is not a CSV file (extension: %s)", path, ext), nil)
	}

	f, err := os.Open(path)
	if err != nil {
		return apperrors.NewInputError("file is not readable", err).WithContext("file", path)
	}
	defer f.Close()
	buf := make([]byte, 1)
	if _, err := f.Read(buf); errors.Is(err, io.EOF) {
		return apperrors.NewInputError(fmt.Sprintf("file %s is empty", path), nil)
	}
	return nil
}

// ValidateInputs checks every input file and joins the failures, so a run
// reports all missing inputs at once.
func (v *FileValidator) ValidateInputs(paths ...string) error {
	var errs []error
	for _, p := range paths {
		if err := v.ValidateCSVFile(p); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		v.logger.Info("Input files validated", slog.Int("files", len(paths)))
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	return apperrors.NewInputError(fmt.Sprintf("%d input files failed validation", len(errs)), errors.Join(errs...))
}

// ValidateWorkbookPath checks that a workbook target has an Excel extension
// and is not an Office lock file.
func (v *FileValidator) ValidateWorkbookPath(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".xlsx" {
		return apperrors.NewConfigError(fmt.Sprintf("workbook %s must have the .xlsx extension", path), nil)
	}
	if strings.HasPrefix(filepath.Base(path), "~$") {
		return apperrors.NewConfigError(fmt.Sprintf("workbook %s is an Excel lock file name", path), nil)
	}
	return nil
}

// CountFiles counts files matching a pattern in a directory
func (v *FileValidator) CountFiles(dir string, pattern string) (int, error) {
	fullPattern := filepath.Join(dir, pattern)
	matches, err := filepath.Glob(fullPattern)
	if err != nil {
		return 0, apperrors.NewInputError("failed to count files", err).WithContext("pattern", fullPattern)
	}

	fileCount := 0
	for _, match := range matches {
		info, err := os.Stat(match)
		if err == nil && !info.IsDir() {
			fileCount++
		}
	}
	return fileCount, nil
}
