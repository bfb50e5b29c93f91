package exporter

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"co2forecast/pkg/contracts/domain"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported chart format")
	ErrEmptyChart        = errors.New("nothing to plot")
)

var (
	historicalColor = color.RGBA{R: 0x63, G: 0x6e, B: 0xfa, A: 0xff}
	forecastColor   = color.RGBA{R: 0xef, G: 0x55, B: 0x3b, A: 0xff}
)

const (
	chartWidth  = 10 * vg.Inch
	chartHeight = 5 * vg.Inch
)

// ChartData holds both series of one region.
type ChartData struct {
	Region     string
	Historical domain.EmissionTable
	Forecast   []domain.ForecastPoint
}

// Title returns the chart title for region.
func Title(region string) string {
	return fmt.Sprintf("CO₂ Emission Forecast for %s", region)
}

// NewPlot builds the forecast figure.
// Historical is drawn solid and Forecast dashed, both with markers.
func NewPlot(data ChartData) (*plot.Plot, error) {
	if len(data.Historical) == 0 && len(data.Forecast) == 0 {
		return nil, ErrEmptyChart
	}

	p := plot.New()
	p.Title.Text = Title(data.Region)
	p.X.Label.Text = "Year"
	p.Y.Label.Text = "CO₂ (Mt)"
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	if len(data.Historical) > 0 {
		hist := data.Historical.Clone()
		hist.SortByYear()
		xys := make(plotter.XYs, len(hist))
		for i, rec := range hist {
			xys[i] = plotter.XY{X: float64(rec.Year), Y: rec.CO2}
		}
		line, points, err := plotter.NewLinePoints(xys)
		if err != nil {
			return nil, fmt.Errorf("historical series: %w", err)
		}
		line.Color = historicalColor
		line.Width = vg.Points(2)
		points.Color = historicalColor
		points.Shape = draw.CircleGlyph{}
		p.Add(line, points)
		p.Legend.Add("Historical", line, points)
	}

	if len(data.Forecast) > 0 {
		xys := make(plotter.XYs, len(data.Forecast))
		for i, fp := range data.Forecast {
			xys[i] = plotter.XY{X: float64(fp.Year), Y: fp.CO2}
		}
		line, points, err := plotter.NewLinePoints(xys)
		if err != nil {
			return nil, fmt.Errorf("forecast series: %w", err)
		}
		line.Color = forecastColor
		line.Width = vg.Points(2)
		line.Dashes = []vg.Length{vg.Points(6), vg.Points(4)}
		points.Color = forecastColor
		points.Shape = draw.CircleGlyph{}
		p.Add(line, points)
		p.Legend.Add("Forecast", line, points)
	}

	p.X.Tick.Marker = yearTicks{}
	return p, nil
}

// RenderChart encodes the forecast figure to w.
func RenderChart(w io.Writer, data ChartData, format Format) error {
	if format != FormatPNG && format != FormatPDF {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	p, err := NewPlot(data)
	if err != nil {
		return err
	}

	wt, err := p.WriterTo(chartWidth, chartHeight, string(format))
	if err != nil {
		return fmt.Errorf("encode %s: %w", format, err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write %s: %w", format, err)
	}
	return nil
}

// yearTicks puts a tick on every whole year and labels every year on short
// ranges, every fifth year otherwise.
type yearTicks struct{}

func (yearTicks) Ticks(min, max float64) []plot.Tick {
	step := 1
	if max-min > 15 {
		step = 5
	}
	var ticks []plot.Tick
	for y := int(math.Ceil(min)); float64(y) <= max; y++ {
		tick := plot.Tick{Value: float64(y)}
		if y%step == 0 {
			tick.Label = formatInt(y)
		}
		ticks = append(ticks, tick)
	}
	return ticks
}
