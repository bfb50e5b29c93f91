package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"co2forecast/internal/shared/testutil"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CO2_CONFIG_FILE", "")
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRegionsCommand(t *testing.T) {
	path := testutil.DefaultWorkbook().WriteFile(t, t.TempDir(), "co2.xlsx")

	out, err := execute(t, "regions", path)
	require.NoError(t, err)
	assert.Equal(t, "Africa\nEurope\n", out)
}

func TestRegionsCommand_FormatMismatch(t *testing.T) {
	wb := testutil.DefaultWorkbook()
	wb.Sheet = "Data"
	path := wb.WriteFile(t, t.TempDir(), "co2.xlsx")

	_, err := execute(t, "regions", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "format")
}

func TestForecastCommand(t *testing.T) {
	dir := t.TempDir()
	path := testutil.DefaultWorkbook().WriteFile(t, dir, "co2.xlsx")
	chart := filepath.Join(dir, "europe.pdf")
	csvDir := filepath.Join(dir, "tables")

	out, err := execute(t, "forecast", path, "--region", "Europe", "--chart", chart, "--csv", csvDir)
	require.NoError(t, err)

	assert.Contains(t, out, "CO₂ Emission Forecast for Europe")
	assert.Contains(t, out, "2026  170.00")
	assert.Contains(t, out, "2030  210.00")

	data, err := os.ReadFile(chart)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))

	for _, name := range []string{"co2_historical.csv", "co2_forecast.csv"} {
		assert.FileExists(t, filepath.Join(csvDir, name))
	}
}

func TestForecastCommand_Errors(t *testing.T) {
	path := testutil.DefaultWorkbook().WriteFile(t, t.TempDir(), "co2.xlsx")

	tests := []struct {
		name string
		args []string
	}{
		{name: "missing region flag", args: []string{"forecast", path}},
		{name: "unknown region", args: []string{"forecast", path, "--region", "Atlantis"}},
		{name: "unsupported chart format", args: []string{"forecast", path, "--region", "Europe", "--chart", "out.svg"}},
		{name: "missing file", args: []string{"forecast", filepath.Join(t.TempDir(), "nope.xlsx"), "--region", "Europe"}},
		{name: "not a workbook", args: []string{"forecast", filepath.Join(t.TempDir(), "notes.txt"), "--region", "Europe"}},
		{name: "csv dir under a file", args: []string{"forecast", path, "--region", "Europe", "--csv", filepath.Join(path, "tables")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestWatchCommand_Once(t *testing.T) {
	dir := t.TempDir()
	testutil.DefaultWorkbook().WriteFile(t, dir, "co2.xlsx")

	out, err := execute(t, "watch", dir, "--once", "--region", "Europe", "--format", "pdf")
	require.NoError(t, err)

	exports := filepath.Join(dir, "exports")
	assert.Contains(t, out, "co2.xlsx -> "+filepath.Join(exports, "co2_europe.pdf"))
	assert.FileExists(t, filepath.Join(exports, "co2_europe.pdf"))
	assert.FileExists(t, filepath.Join(exports, "co2_europe_forecast.csv"))
}

func TestWatchCommand_Rejects(t *testing.T) {
	dir := t.TempDir()
	path := testutil.DefaultWorkbook().WriteFile(t, dir, "co2.xlsx")

	tests := []struct {
		name string
		args []string
	}{
		{name: "unsupported format", args: []string{"watch", dir, "--once", "--format", "svg"}},
		{name: "output under a file", args: []string{"watch", dir, "--once", "--out", filepath.Join(path, "exports")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			assert.Error(t, err)
			assert.Empty(t, out)
		})
	}
}
