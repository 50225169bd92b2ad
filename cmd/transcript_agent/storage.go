package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/transcript-archiver/internal/app"
	"github.com/jonathan/transcript-archiver/internal/observability"
	"github.com/jonathan/transcript-archiver/internal/rendering"
	"github.com/jonathan/transcript-archiver/internal/types"
)

var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Browse and maintain the transcript archive",
}

var storageStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show archive totals",
	Args:  cobra.NoArgs,
	RunE: withStore(func(cmd *cobra.Command, a *app.App, _ []string) error {
		stats, err := a.Store.Stats(cmd.Context())
		if err != nil {
			return err
		}
		observability.NewPrinter(cmd.OutOrStdout()).PrintStats(stats)
		return nil
	}),
}

var storageChannelsCmd = &cobra.Command{
	Use:   "channels",
	Short: "List channel folders",
	Args:  cobra.NoArgs,
	RunE: withStore(func(cmd *cobra.Command, a *app.App, _ []string) error {
		channels, err := a.Store.ListChannels(cmd.Context())
		if err != nil {
			return err
		}
		observability.NewPrinter(cmd.OutOrStdout()).PrintChannels(channels)
		return nil
	}),
}

var storageListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored transcripts",
	Args:  cobra.NoArgs,
	RunE: withStore(func(cmd *cobra.Command, a *app.App, _ []string) error {
		items, err := a.Store.List(cmd.Context(), storageChannel)
		if err != nil {
			return err
		}
		observability.NewPrinter(cmd.OutOrStdout()).PrintTranscripts(items)
		return nil
	}),
}

var storageSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search transcripts by title, channel and content",
	Args:  cobra.MinimumNArgs(1),
	RunE: withStore(func(cmd *cobra.Command, a *app.App, args []string) error {
		results, err := a.Store.Search(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		observability.NewPrinter(cmd.OutOrStdout()).PrintSearchResults(results)
		return nil
	}),
}

var storageInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the archive layout (README and channels folder)",
	Args:  cobra.NoArgs,
	RunE: withStore(func(cmd *cobra.Command, a *app.App, _ []string) error {
		if err := a.Store.Init(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Storage initialized (%s backend)\n", a.Config.Storage.Backend)
		return nil
	}),
}

var storageCombineCmd = &cobra.Command{
	Use:   "combine <channel/name>...",
	Short: "Merge stored transcripts into one Markdown document",
	Args:  cobra.MinimumNArgs(1),
	RunE: withStore(func(cmd *cobra.Command, a *app.App, args []string) error {
		records := make([]*types.TranscriptRecord, 0, len(args))
		for _, ref := range args {
			channel, name, ok := strings.Cut(ref, "/")
			if !ok || channel == "" || name == "" {
				return fmt.Errorf("invalid transcript reference %q: expected channel/name", ref)
			}
			rec, err := a.Store.Get(cmd.Context(), channel, name)
			if err != nil {
				return fmt.Errorf("%s: %w", ref, err)
			}
			records = append(records, rec)
		}

		doc, err := rendering.RenderCombined(records, time.Now())
		if err != nil {
			return err
		}
		if combineOutput == "" {
			fmt.Fprint(cmd.OutOrStdout(), doc)
			return nil
		}
		if err := os.WriteFile(combineOutput, []byte(doc), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", combineOutput, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d transcripts to %s\n", len(records), combineOutput)
		return nil
	}),
}

var (
	storageChannel string
	combineOutput  string
)

func init() {
	storageListCmd.Flags().StringVar(&storageChannel, "channel", "", "Only list this channel folder")
	storageCombineCmd.Flags().StringVarP(&combineOutput, "out", "o", "", "Write the document to this file instead of stdout")

	storageCmd.AddCommand(storageStatsCmd, storageChannelsCmd, storageListCmd, storageSearchCmd, storageInitCmd, storageCombineCmd)
	rootCmd.AddCommand(storageCmd)
}

func withStore(fn func(*cobra.Command, *app.App, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()
		return fn(cmd, a, args)
	}
}
