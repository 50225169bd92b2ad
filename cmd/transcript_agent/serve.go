package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server exposing downloads, storage browsing, API key management and scheduled jobs. The scheduler runs in the same process when enabled.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config and PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if servePort > 0 {
		a.Config.Server.Port = servePort
	}

	srv, err := a.Server()
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	if a.Scheduler != nil {
		if err := a.Scheduler.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	ctx := cmd.Context()
	go a.PruneRuns(ctx, time.Hour)

	return srv.Start(ctx)
}
