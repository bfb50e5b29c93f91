package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"co2forecast/internal/batch"
	"co2forecast/internal/exporter"
	"co2forecast/internal/services"
	"co2forecast/internal/session"
	"co2forecast/internal/validation"
)

type watchOptions struct {
	outDir  string
	format  string
	regions []string
	settle  time.Duration
	once    bool
}

func newWatchCmd(root *rootOptions) *cobra.Command {
	opts := &watchOptions{}
	cmd := &cobra.Command{
		Use:   "watch DIR",
		Short: "Export charts and forecast tables for every workbook dropped into DIR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, root, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.outDir, "out", "o", "", "Output directory (default: DIR/exports)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "png", "Chart format (png or pdf)")
	cmd.Flags().StringSliceVarP(&opts.regions, "region", "r", nil, "Regions to export (default: all)")
	cmd.Flags().DurationVar(&opts.settle, "settle", batch.DefaultSettle, "How long a workbook must stay unchanged before it is processed")
	cmd.Flags().BoolVar(&opts.once, "once", false, "Process the workbooks already in DIR and exit")

	return cmd
}

func runWatch(cmd *cobra.Command, root *rootOptions, opts *watchOptions, dir string) error {
	format, err := exporter.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}

	outDir := opts.outDir
	if outDir == "" {
		outDir = filepath.Join(dir, "exports")
	}

	logger := slog.Default()
	if err := validation.NewFileValidator(logger).ValidateOutputDirectory(outDir); err != nil {
		return err
	}
	store := session.NewStore(time.Hour, logger)
	runner := batch.NewRunner(services.NewForecastService(store, cfg.Processing, logger), outDir, format, opts.regions, logger)

	out := cmd.OutOrStdout()
	report := func(res batch.Result, err error) {
		if err != nil {
			fmt.Fprintf(out, "%s: %v\n", filepath.Base(res.Workbook), err)
			return
		}
		for _, path := range res.Written {
			fmt.Fprintf(out, "%s -> %s\n", filepath.Base(res.Workbook), path)
		}
		for region, err := range res.Skipped {
			fmt.Fprintf(out, "%s: %s skipped: %v\n", filepath.Base(res.Workbook), region, err)
		}
	}

	w := batch.NewWatcher(dir, runner, opts.settle, report, logger)
	if err := w.Backfill(cmd.Context()); err != nil {
		return err
	}
	if opts.once {
		return nil
	}
	return w.Run(cmd.Context())
}
