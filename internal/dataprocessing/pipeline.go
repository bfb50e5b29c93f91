package dataprocessing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"co2forecast/pkg/contracts/domain"
)

const tracerName = "co2forecast/dataprocessing"

// Options configures how a workbook is read and filtered.
type Options struct {
	SheetName string   `yaml:"sheet_name" envconfig:"SHEET_NAME"`
	HeaderRow int      `yaml:"header_row" envconfig:"HEADER_ROW"`
	Criteria  Criteria `yaml:"criteria" envconfig:"CRITERIA"`
}

// DefaultOptions returns the options matching the published template.
func DefaultOptions() Options {
	return Options{
		SheetName: "World",
		HeaderRow: 2,
		Criteria:  DefaultCriteria(),
	}
}

// Preprocess loads, filters and reshapes a workbook.
// Any failure, including an empty result, yields a failed Outcome wrapping
// ErrFormatMismatch; the underlying cause stays in the error chain for logs.
// A nil logger falls back to slog.Default.
func Preprocess(ctx context.Context, r io.Reader, opts Options, logger *slog.Logger) domain.Outcome[domain.EmissionTable] {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "dataprocessing.Preprocess")
	defer span.End()

	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "dataprocessing"))

	table, err := preprocess(ctx, r, opts, logger)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "format mismatch")
		logger.WarnContext(ctx, "workbook rejected",
			slog.String("sheet", opts.SheetName),
			slog.String("error", err.Error()))
		return domain.Failed[domain.EmissionTable](fmt.Errorf("%w: %w", ErrFormatMismatch, err))
	}

	span.SetAttributes(
		attribute.Int("emissions.records", len(table)),
		attribute.Int("emissions.regions", len(table.Regions())),
	)
	return domain.Succeeded(table)
}

// PreprocessFile runs Preprocess on a workbook on disk.
func PreprocessFile(ctx context.Context, path string, opts Options, logger *slog.Logger) domain.Outcome[domain.EmissionTable] {
	f, err := os.Open(path)
	if err != nil {
		return domain.Failed[domain.EmissionTable](fmt.Errorf("%w: %w", ErrFormatMismatch, err))
	}
	defer f.Close()
	return Preprocess(ctx, f, opts, logger)
}

func preprocess(ctx context.Context, r io.Reader, opts Options, logger *slog.Logger) (table domain.EmissionTable, err error) {
	// excelize can panic on malformed archives; treat that like any other unreadable file.
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrUnreadable, rec)
		}
	}()

	sheet, err := ParseWorkbook(r, opts)
	if err != nil {
		return nil, err
	}
	if len(sheet.Years) == 0 {
		return nil, ErrNoYearColumns
	}

	filtered, err := FilterRecords(sheet.Records, opts.Criteria)
	if err != nil {
		return nil, err
	}
	if len(filtered) == 0 {
		return nil, ErrNoMatchingRows
	}

	table = Reshape(filtered, sheet.Years)
	if len(table) == 0 {
		return nil, ErrNoMatchingRows
	}

	logger.DebugContext(ctx, "workbook preprocessed",
		slog.Int("rows", len(sheet.Records)),
		slog.Int("filtered", len(filtered)),
		slog.Int("year_columns", len(sheet.Years)),
		slog.Int("records", len(table)))
	return table, nil
}
