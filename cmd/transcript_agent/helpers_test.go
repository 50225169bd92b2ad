package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jonathan/transcript-archiver/internal/app"
	"github.com/jonathan/transcript-archiver/internal/transcript"
	"github.com/jonathan/transcript-archiver/internal/types"
)

type cannedFetcher struct{}

func (cannedFetcher) Fetch(_ context.Context, id string) (*transcript.Result, error) {
	return &transcript.Result{
		Text:     "spoken words of " + id,
		Type:     types.TranscriptManual,
		Language: "en",
		Duration: 42,
	}, nil
}

// isolate points every store at a fresh temp dir and replaces the network fetcher.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	t.Setenv("TRANSCRIPT_CONFIG", "")
	t.Setenv("YOUTUBE_API_KEY", "")
	t.Setenv("YOUTUBE_LISTING", "")
	t.Setenv("YOUTUBE_API_KEY_FILE", filepath.Join(dir, ".api_key"))
	t.Setenv("STORAGE_BACKEND", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(dir, "archive.db"))
	t.Setenv("JOBS_FILE", filepath.Join(dir, "jobs.json"))
	t.Setenv("DOWNLOAD_DELAY", "0")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("BCRYPT_COST", "10")
	t.Setenv("PASSWORD_PEPPER", "")
	t.Setenv("AUTH_ENABLED", "false")

	appOptions = []app.Option{app.WithFetcher(cannedFetcher{})}
	t.Cleanup(func() { appOptions = nil })
	return dir
}

// execute runs the root command in-process and returns its combined output.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

// resetFlags restores defaults so package-level flag variables do not leak between runs.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func decodeJobs(t *testing.T, data []byte) map[string]*types.ScheduledJob {
	t.Helper()
	var jobs map[string]*types.ScheduledJob
	if err := json.Unmarshal(data, &jobs); err != nil {
		t.Fatalf("decode jobs file: %v", err)
	}
	return jobs
}
