package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"co2forecast/internal/app"
	"co2forecast/internal/infrastructure"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web UI and HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			paths, err := cfg.ResolvePaths()
			if err != nil {
				return err
			}
			if err := paths.EnsureDirectories(); err != nil {
				return err
			}
			cfg.Logging.FilePath = paths.LogFile(cfg.Logging.FilePath)

			logger, err := infrastructure.InitializeLogger(cfg.Logging)
			if err != nil {
				return err
			}
			defer infrastructure.CloseLogFile()

			application, err := app.New(cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "serving on %s\n", application.Addr())
			return application.Run(cmd.Context())
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to listen on (overrides config)")
	return cmd
}
