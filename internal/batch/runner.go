package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"co2forecast/internal/exporter"
	"co2forecast/internal/forecast"
	"co2forecast/internal/services"
	"co2forecast/internal/validation"
)

// Result lists what one workbook produced. Regions whose history cannot be
// fitted are reported in Skipped and do not fail the run.
type Result struct {
	Workbook string
	Written  []string
	Skipped  map[string]error
}

// Runner writes a chart and a forecast table per region of a workbook.
type Runner struct {
	service *services.ForecastService
	outDir  string
	format  exporter.Format
	regions []string
	files   *validation.FileValidator
	logger  *slog.Logger
}

// NewRunner creates a runner writing into outDir. An empty regions list
// exports every region found in the workbook.
func NewRunner(service *services.ForecastService, outDir string, format exporter.Format, regions []string, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		service: service,
		outDir:  outDir,
		format:  format,
		regions: regions,
		files:   validation.NewFileValidator(logger),
		logger:  logger.With(slog.String("component", "batch_runner")),
	}
}

// ProcessFile loads path and exports its regions. The workspace opened for
// the file is closed before returning.
func (r *Runner) ProcessFile(ctx context.Context, path string) (Result, error) {
	res := Result{Workbook: path, Skipped: make(map[string]error)}

	if err := r.files.ValidateWorkbook(path); err != nil {
		return res, err
	}
	if err := r.files.ValidateOutputDirectory(r.outDir); err != nil {
		return res, err
	}

	f, err := os.Open(path)
	if err != nil {
		return res, err
	}
	defer f.Close()

	upload, err := r.service.Upload(ctx, filepath.Base(path), f)
	if err != nil {
		return res, err
	}
	defer r.service.Delete(ctx, upload.WorkspaceID)

	regions := r.regions
	if len(regions) == 0 {
		regions = upload.Regions
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for _, region := range regions {
		written, err := r.exportRegion(ctx, upload.WorkspaceID, region, base)
		res.Written = append(res.Written, written...)
		if err != nil {
			if isSkippable(err) {
				res.Skipped[region] = err
				r.logger.WarnContext(ctx, "region skipped",
					slog.String("workbook", path),
					slog.String("region", region),
					slog.String("error", err.Error()))
				continue
			}
			return res, err
		}
	}

	r.logger.InfoContext(ctx, "workbook exported",
		slog.String("workbook", path),
		slog.Int("files", len(res.Written)),
		slog.Int("skipped", len(res.Skipped)))
	return res, nil
}

func (r *Runner) exportRegion(ctx context.Context, id, region, base string) ([]string, error) {
	stem := filepath.Join(r.outDir, base+"_"+slug(region))

	var chart bytes.Buffer
	if err := r.service.Chart(ctx, id, region, r.format, &chart); err != nil {
		return nil, err
	}
	chartPath := stem + "." + string(r.format)
	if err := os.WriteFile(chartPath, chart.Bytes(), 0644); err != nil {
		return nil, fmt.Errorf("write chart: %w", err)
	}

	var table bytes.Buffer
	if err := r.service.Table(ctx, id, region, exporter.TableForecast, &table); err != nil {
		return []string{chartPath}, err
	}
	tablePath := stem + "_forecast.csv"
	if err := os.WriteFile(tablePath, table.Bytes(), 0644); err != nil {
		return []string{chartPath}, fmt.Errorf("write table: %w", err)
	}
	return []string{chartPath, tablePath}, nil
}

func isSkippable(err error) bool {
	return errors.Is(err, forecast.ErrInsufficientData) ||
		errors.Is(err, forecast.ErrDegenerateFit) ||
		errors.Is(err, forecast.ErrInvalidValue)
}

// slug turns a region name into a file name fragment.
func slug(s string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
