// Command co2cast forecasts CO2 emissions from an IEA-style workbook, either
// as a one-shot batch job or by serving the web UI.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"co2forecast/internal/config"
	"co2forecast/internal/dataprocessing"
	"co2forecast/internal/infrastructure"
	"co2forecast/internal/services"
	"co2forecast/internal/session"
	"co2forecast/internal/validation"
	"co2forecast/pkg/contracts"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	configFile string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:          "co2cast",
		Short:        "Forecast CO2 emissions per region from an IEA workbook",
		Version:      contracts.Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			slog.SetDefault(infrastructure.NewLogger(cmd.ErrOrStderr(), opts.logLevel, false))
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "Path to a YAML config file (default: $"+config.ConfigFileEnv+" or ./config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level for batch commands (debug, info, warn, error)")

	cmd.AddCommand(
		newRegionsCmd(opts),
		newForecastCmd(opts),
		newWatchCmd(opts),
		newServeCmd(opts),
	)
	return cmd
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	if o.configFile == "" {
		return config.Load()
	}
	return config.LoadFile(o.configFile)
}

// openWorkbook runs the upload pipeline on a local file and returns the
// service holding it together with its workspace ID.
func openWorkbook(ctx context.Context, opts *rootOptions, path string) (*services.ForecastService, string, []string, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, "", nil, err
	}

	logger := slog.Default()
	if err := validation.NewFileValidator(logger).ValidateWorkbook(path); err != nil {
		return nil, "", nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, "", nil, err
	}
	defer f.Close()

	svc := services.NewForecastService(session.NewStore(time.Hour, logger), cfg.Processing, logger)
	resp, err := svc.Upload(ctx, filepath.Base(path), f)
	if err != nil {
		return nil, "", nil, fmt.Errorf("%s: %w", dataprocessing.FormatMismatchMessage, err)
	}
	return svc, resp.WorkspaceID, resp.Regions, nil
}

func newRegionsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "regions FILE",
		Short: "List the regions found in a workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, regions, err := openWorkbook(cmd.Context(), opts, args[0])
			if err != nil {
				return err
			}
			return printLines(cmd.OutOrStdout(), regions)
		},
	}
}

func printLines(w io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
