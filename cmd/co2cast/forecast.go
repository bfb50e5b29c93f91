package main

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"co2forecast/internal/exporter"
	"co2forecast/internal/validation"
)

type forecastOptions struct {
	region string
	chart  string
	csvDir string
}

func newForecastCmd(root *rootOptions) *cobra.Command {
	opts := &forecastOptions{}
	cmd := &cobra.Command{
		Use:   "forecast FILE",
		Short: "Fit a trend for one region and print the 2026-2030 forecast",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runForecast(cmd, root, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.region, "region", "r", "", "Region to forecast")
	cmd.Flags().StringVar(&opts.chart, "chart", "", "Write the chart to this .png or .pdf file")
	cmd.Flags().StringVar(&opts.csvDir, "csv", "", "Write the historical and forecast tables as CSV into this directory")
	_ = cmd.MarkFlagRequired("region")

	return cmd
}

func runForecast(cmd *cobra.Command, root *rootOptions, opts *forecastOptions, path string) error {
	ctx := cmd.Context()

	var format exporter.Format
	if opts.chart != "" {
		var err error
		if format, err = exporter.ParseFormat(strings.TrimPrefix(filepath.Ext(opts.chart), ".")); err != nil {
			return err
		}
	}
	if opts.csvDir != "" {
		if err := validation.NewFileValidator(slog.Default()).ValidateOutputDirectory(opts.csvDir); err != nil {
			return err
		}
	}

	svc, id, _, err := openWorkbook(ctx, root, path)
	if err != nil {
		return err
	}

	view, err := svc.Forecast(ctx, id, opts.region)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, view.Title)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Year\tCO2 (Mt)")
	for _, p := range view.Forecast {
		fmt.Fprintf(tw, "%d\t%.2f\n", p.Year, p.CO2)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if opts.chart != "" {
		var buf bytes.Buffer
		if err := svc.Chart(ctx, id, opts.region, format, &buf); err != nil {
			return err
		}
		if err := os.WriteFile(opts.chart, buf.Bytes(), 0644); err != nil {
			return fmt.Errorf("write chart: %w", err)
		}
		fmt.Fprintf(out, "chart written to %s\n", opts.chart)
	}

	if opts.csvDir != "" {
		w := exporter.NewCSVWriter(opts.csvDir, nil)
		tables := []struct {
			kind    exporter.TableKind
			options exporter.WriteOptions
		}{
			{exporter.TableHistorical, exporter.HistoricalTable(view.Historical)},
			{exporter.TableForecast, exporter.ForecastTable(view.Forecast)},
		}
		for _, t := range tables {
			written, err := w.WriteFile(fmt.Sprintf("co2_%s.csv", t.kind), t.options)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s table written to %s\n", t.kind, written)
		}
	}
	return nil
}
