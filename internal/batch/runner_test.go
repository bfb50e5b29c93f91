package batch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"co2forecast/internal/dataprocessing"
	"co2forecast/internal/exporter"
	"co2forecast/internal/forecast"
	"co2forecast/internal/services"
	"co2forecast/internal/session"
	"co2forecast/internal/shared/testutil"
	"co2forecast/internal/validation"
)

func newTestRunner(t *testing.T, out string, regions ...string) (*Runner, *services.ForecastService) {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	svc := services.NewForecastService(session.NewStore(time.Hour, logger), dataprocessing.DefaultOptions(), logger)
	return NewRunner(svc, out, exporter.FormatPNG, regions, logger), svc
}

func TestRunner_ProcessFile(t *testing.T) {
	wb := testutil.DefaultWorkbook()
	wb.Series = append(wb.Series, testutil.RegionSeries{
		Region: "Middle East",
		Values: map[int]float64{2024: 10},
	})

	tests := []struct {
		name        string
		regions     []string
		wantWritten []string
		wantSkipped []string
	}{
		{
			name:    "all regions",
			regions: nil,
			wantWritten: []string{
				"emissions_africa.png", "emissions_africa_forecast.csv",
				"emissions_europe.png", "emissions_europe_forecast.csv",
			},
			wantSkipped: []string{"Middle East"},
		},
		{
			name:        "selected region",
			regions:     []string{"Europe"},
			wantWritten: []string{"emissions_europe.png", "emissions_europe_forecast.csv"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := wb.WriteFile(t, t.TempDir(), "emissions.xlsx")
			out := filepath.Join(t.TempDir(), "exports")
			runner, svc := newTestRunner(t, out, tt.regions...)

			res, err := runner.ProcessFile(context.Background(), in)
			require.NoError(t, err)

			var names []string
			for _, p := range res.Written {
				assert.Equal(t, out, filepath.Dir(p))
				names = append(names, filepath.Base(p))
			}
			assert.ElementsMatch(t, tt.wantWritten, names)

			var skipped []string
			for region, err := range res.Skipped {
				assert.ErrorIs(t, err, forecast.ErrInsufficientData)
				skipped = append(skipped, region)
			}
			assert.ElementsMatch(t, tt.wantSkipped, skipped)
			assert.Zero(t, svc.ActiveWorkspaces())

			png, err := os.ReadFile(filepath.Join(out, "emissions_europe.png"))
			require.NoError(t, err)
			assert.Equal(t, "\x89PNG", string(png[:4]))

			csv, err := os.ReadFile(filepath.Join(out, "emissions_europe_forecast.csv"))
			require.NoError(t, err)
			assert.Contains(t, string(csv), "Year,CO2 (Mt)")
		})
	}
}

func TestRunner_ProcessFileErrors(t *testing.T) {
	dir := t.TempDir()
	wrongSheet := testutil.DefaultWorkbook()
	wrongSheet.Sheet = "Data"
	good := testutil.DefaultWorkbook().WriteFile(t, dir, "good.xlsx")

	folder := filepath.Join(dir, "folder.xlsx")
	require.NoError(t, os.Mkdir(folder, 0755))
	notes := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("x"), 0644))

	tests := []struct {
		name    string
		path    string
		out     string
		wantErr error
	}{
		{name: "missing file", path: filepath.Join(dir, "absent.xlsx"), wantErr: os.ErrNotExist},
		{name: "directory named like a workbook", path: folder, wantErr: validation.ErrNotRegular},
		{name: "not a workbook", path: notes, wantErr: validation.ErrNotWorkbook},
		{name: "wrong sheet", path: wrongSheet.WriteFile(t, dir, "wrong.xlsx"), wantErr: dataprocessing.ErrFormatMismatch},
		{name: "output under a file", path: good, out: filepath.Join(good, "exports")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.out
			if out == "" {
				out = t.TempDir()
			}
			runner, svc := newTestRunner(t, out)
			res, err := runner.ProcessFile(context.Background(), tt.path)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Empty(t, res.Written)
			assert.Zero(t, svc.ActiveWorkspaces())
		})
	}
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"Europe":                  "europe",
		"Middle East":             "middle_east",
		"  Asia Pacific (excl.) ": "asia_pacific_excl",
		"Côte d'Ivoire":           "côte_d_ivoire",
	}
	for in, want := range tests {
		assert.Equal(t, want, slug(in), in)
	}
}
