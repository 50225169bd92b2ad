// Package main provides the transcript_agent command line and HTTP server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jonathan/transcript-archiver/internal/app"
	"github.com/jonathan/transcript-archiver/internal/config"
	"github.com/jonathan/transcript-archiver/internal/logging"
)

var (
	configPath string
	logLevel   string

	// appOptions are appended when commands assemble the application.
	appOptions []app.Option
)

var rootCmd = &cobra.Command{
	Use:           "transcript_agent",
	Short:         "YouTube transcript archiver",
	Long:          "Downloads YouTube transcripts into a pluggable archive, serves the archive over HTTP and runs recurring channel jobs.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default $TRANSCRIPT_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override: debug, info, warn or error")
}

// loadApp reads the configuration and assembles the application for cmd.
// The caller must Close the returned app.
func loadApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}

	opts := append([]app.Option{app.WithLogger(logger)}, appOptions...)
	return app.New(cmd.Context(), cfg, opts...)
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
