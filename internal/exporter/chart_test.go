package exporter

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"co2forecast/pkg/contracts/domain"
)

func sampleChart() ChartData {
	return ChartData{
		Region: "Europe",
		Historical: domain.EmissionTable{
			{Region: "Europe", Year: 2024, CO2: 120},
			{Region: "Europe", Year: 2022, CO2: 100},
			{Region: "Europe", Year: 2023, CO2: 110},
		},
		Forecast: []domain.ForecastPoint{
			{Year: 2026, CO2: 140}, {Year: 2027, CO2: 150}, {Year: 2028, CO2: 160},
			{Year: 2029, CO2: 170}, {Year: 2030, CO2: 180},
		},
	}
}

func TestRenderChart(t *testing.T) {
	tests := []struct {
		format Format
		magic  []byte
	}{
		{format: FormatPNG, magic: []byte("\x89PNG")},
		{format: FormatPDF, magic: []byte("%PDF")},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, RenderChart(&buf, sampleChart(), tt.format))
			assert.True(t, bytes.HasPrefix(buf.Bytes(), tt.magic), "unexpected header %q", buf.Bytes()[:8])
		})
	}
}

func TestRenderChart_Errors(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, RenderChart(&buf, sampleChart(), Format("svg")), ErrUnsupportedFormat)
	assert.ErrorIs(t, RenderChart(&buf, ChartData{Region: "Nowhere"}, FormatPNG), ErrEmptyChart)
	assert.Zero(t, buf.Len())
}

func TestNewPlot(t *testing.T) {
	data := sampleChart()
	p, err := NewPlot(data)
	require.NoError(t, err)

	assert.Equal(t, "CO₂ Emission Forecast for Europe", p.Title.Text)
	assert.Equal(t, "Year", p.X.Label.Text)
	assert.Equal(t, "CO₂ (Mt)", p.Y.Label.Text)
	assert.Equal(t, 2022.0, p.X.Min)
	assert.Equal(t, 2030.0, p.X.Max)

	// input is left untouched by the year sort
	assert.Equal(t, 2024, data.Historical[0].Year)
}

func TestYearTicks(t *testing.T) {
	ticks := yearTicks{}.Ticks(2021.5, 2024)
	require.Len(t, ticks, 3)
	assert.Equal(t, "2022", ticks[0].Label)
	assert.Equal(t, "2024", ticks[2].Label)

	wide := yearTicks{}.Ticks(1990, 2030)
	assert.Len(t, wide, 41)
	assert.Equal(t, "1990", wide[0].Label)
	assert.Empty(t, wide[1].Label)
}
