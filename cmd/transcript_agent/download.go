package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/transcript-archiver/internal/config"
	"github.com/jonathan/transcript-archiver/internal/observability"
	"github.com/jonathan/transcript-archiver/internal/pipeline"
	"github.com/jonathan/transcript-archiver/internal/types"
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download transcripts for a channel or a list of video IDs",
	Long: `Run one download synchronously and print the per-video outcome.

Either --channel (a name, @handle or channel ID) or --ids (comma-separated
video IDs) selects the candidates. Videos already in the archive are
reported as duplicates and left unchanged.`,
	RunE: runDownload,
}

var (
	downloadChannel string
	downloadIDs     string
	downloadAfter   string
	downloadFolder  string
	downloadDelay   string
	downloadLimit   int
	downloadAPIKey  string
)

func init() {
	downloadCmd.Flags().StringVarP(&downloadChannel, "channel", "c", "", "Channel name, @handle or channel ID")
	downloadCmd.Flags().StringVar(&downloadIDs, "ids", "", "Comma-separated video IDs (takes precedence over --channel)")
	downloadCmd.Flags().StringVar(&downloadAfter, "after", "", "Only videos published on or after this date (YYYY-MM-DD)")
	downloadCmd.Flags().StringVarP(&downloadFolder, "folder", "f", "", "Destination channel folder")
	downloadCmd.Flags().StringVar(&downloadDelay, "delay", "", "Pause between videos, in seconds or as a duration (default from config)")
	downloadCmd.Flags().IntVarP(&downloadLimit, "limit", "n", 0, "Maximum number of videos (0 = no limit)")
	downloadCmd.Flags().StringVar(&downloadAPIKey, "api-key", "", "YouTube Data API key (overrides the stored key and YOUTUBE_API_KEY)")

	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, _ []string) error {
	if strings.TrimSpace(downloadChannel) == "" && len(types.SplitVideoIDs(downloadIDs)) == 0 {
		return fmt.Errorf("must provide either --channel or --ids")
	}
	if downloadLimit < 0 {
		return fmt.Errorf("--limit must not be negative")
	}

	if downloadAfter != "" {
		if _, err := time.Parse(types.DateLayout, downloadAfter); err != nil {
			return fmt.Errorf("invalid --after date %q: expected YYYY-MM-DD", downloadAfter)
		}
	}

	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	var after *time.Time
	if downloadAfter != "" {
		t, _ := time.ParseInLocation(types.DateLayout, downloadAfter, a.Config.Scheduler.Location())
		after = &t
	}

	delay := a.Config.Download.Delay
	if downloadDelay != "" {
		delay, err = config.ParseDelay(downloadDelay)
		if err != nil {
			return fmt.Errorf("invalid --delay: %w", err)
		}
	}

	runID, summary, err := a.Pipeline.Execute(cmd.Context(), pipeline.Config{
		ChannelQuery: strings.TrimSpace(downloadChannel),
		VideoIDs:     downloadIDs,
		AfterDate:    after,
		Folder:       strings.TrimSpace(downloadFolder),
		Delay:        delay,
		MaxItems:     downloadLimit,
		APIKey:       downloadAPIKey,
	})
	observability.NewPrinter(cmd.OutOrStdout()).PrintRunSummary(runID, summary)
	if err != nil {
		return fmt.Errorf("download failed: %s", types.MessageOf(err))
	}
	return nil
}
