// Package validation holds input checks shared by the CLI and the HTTP
// surface: workbook file checks and struct validation for edited rows.
package validation

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrNotWorkbook   = errors.New("not an xlsx workbook")
	ErrTemporaryFile = errors.New("temporary office lock file")
	ErrNotRegular    = errors.New("not a regular file")
)

// FileValidator checks files before they reach the pipeline.
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger: logger.With(slog.String("component", "file_validator")),
	}
}

// ValidateFile checks that path exists, is a regular file and is readable.
func (v *FileValidator) ValidateFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		v.logger.Error("file does not exist", slog.String("file", path))
		return fmt.Errorf("file %s does not exist: %w", path, err)
	}
	if err != nil {
		v.logger.Error("failed to stat file",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrNotRegular, path)
	}

	file, err := os.Open(path)
	if err != nil {
		v.logger.Error("file is not readable",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return fmt.Errorf("file %s is not readable: %w", path, err)
	}
	file.Close()

	v.logger.Debug("file validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}

// ValidateWorkbook checks that path is a readable .xlsx file.
func (v *FileValidator) ValidateWorkbook(path string) error {
	if err := CheckWorkbookName(filepath.Base(path)); err != nil {
		v.logger.Warn("rejected workbook", slog.String("file", path), slog.String("error", err.Error()))
		return err
	}
	return v.ValidateFile(path)
}

// ValidateOutputDirectory ensures dir exists or can be created and is writable.
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	probe := filepath.Join(dir, ".write_test")
	file, err := os.Create(probe)
	if err != nil {
		return fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	file.Close()
	os.Remove(probe)

	v.logger.Debug("output directory validated", slog.String("directory", dir))
	return nil
}

// CheckWorkbookName validates an upload or file name: an .xlsx extension,
// not an office lock file, no path separators.
func CheckWorkbookName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("%w: invalid file name %q", ErrNotWorkbook, name)
	}
	if strings.HasPrefix(name, "~$") {
		return fmt.Errorf("%w: %s", ErrTemporaryFile, name)
	}
	if ext := strings.ToLower(filepath.Ext(name)); ext != ".xlsx" {
		return fmt.Errorf("%w: extension %q", ErrNotWorkbook, ext)
	}
	return nil
}
