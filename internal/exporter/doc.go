// Package exporter renders forecast results for download.
//
// It contains two components:
//
// Chart rendering: RenderChart draws the "Historical" and "Forecast" series
// with gonum/plot and encodes the figure as PNG or PDF.
//
// CSVWriter: writes the historical and forecast tables as CSV, optionally with
// a UTF-8 BOM so spreadsheet applications detect the encoding.
//
// Example usage:
//
//	data := exporter.ChartData{Region: "World", Historical: hist, Forecast: points}
//	if err := exporter.RenderChart(w, data, exporter.FormatPNG); err != nil {
//	    return err
//	}
package exporter
