package exporter

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"co2forecast/pkg/contracts/domain"
)

// ErrUnknownTable is returned by ParseTableKind for names other than
// "historical" and "forecast".
var ErrUnknownTable = errors.New("unknown table")

// TableKind selects which table WriteTable emits.
type TableKind string

const (
	TableHistorical TableKind = "historical"
	TableForecast   TableKind = "forecast"
)

// ParseTableKind validates a table name from a request path.
func ParseTableKind(s string) (TableKind, error) {
	switch TableKind(s) {
	case TableHistorical, TableForecast:
		return TableKind(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTable, s)
	}
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// CSVWriter writes tables under a base directory.
type CSVWriter struct {
	baseDir string
	logger  *slog.Logger
}

// NewCSVWriter creates a new CSV writer instance
func NewCSVWriter(baseDir string, logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{baseDir: baseDir, logger: logger.With(slog.String("component", "csv_writer"))}
}

// WriteCSV writes headers and records to w.
func WriteCSV(w io.Writer, options WriteOptions) error {
	// Write BOM if requested (helps Excel recognize UTF-8)
	if options.BOMPrefix {
		if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(w)
	if len(options.Headers) > 0 {
		if err := writer.Write(options.Headers); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}
	for i, record := range options.Records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// HistoricalTable returns the edited history in CSV form.
func HistoricalTable(history domain.EmissionTable) WriteOptions {
	records := make([][]string, 0, len(history))
	for _, rec := range history {
		records = append(records, []string{rec.Region, formatInt(rec.Year), formatFloat(rec.CO2)})
	}
	return WriteOptions{Headers: []string{"Region", "Year", "CO2 (Mt)"}, Records: records, BOMPrefix: true}
}

// ForecastTable returns the forecast points in CSV form.
func ForecastTable(points []domain.ForecastPoint) WriteOptions {
	records := make([][]string, 0, len(points))
	for _, p := range points {
		records = append(records, []string{formatInt(p.Year), formatFloat(p.CO2)})
	}
	return WriteOptions{Headers: []string{"Year", "CO2 (Mt)"}, Records: records, BOMPrefix: true}
}

// WriteFile writes options to name under the base directory, creating it if needed.
func (w *CSVWriter) WriteFile(name string, options WriteOptions) (string, error) {
	fullPath := name
	if !filepath.IsAbs(name) {
		fullPath = filepath.Join(w.baseDir, name)
	}

	w.logger.Info("Writing CSV file",
		slog.String("full_path", fullPath),
		slog.Int("record_count", len(options.Records)))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.OpenFile(fullPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	if err := WriteCSV(file, options); err != nil {
		return "", err
	}
	return fullPath, nil
}
