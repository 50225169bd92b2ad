package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/transcript-archiver/internal/types"
)

func TestPrintRunSummary(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintRunSummary("run-1", &types.RunSummary{
		TotalCandidates: 2,
		SuccessCount:    1,
		FailedCount:     1,
		DuplicateCount:  1,
		Folder:          "Direct_Downloads",
		Results: []types.ItemResult{
			{VideoID: "abc123", Title: "video_abc123", Status: types.ItemSuccess, Path: "channels/Direct_Downloads/abc123_video_abc123.json"},
			{VideoID: "def456", Title: "video_def456", Status: types.ItemDuplicate, Message: "Transcript already exists (duplicate)"},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "abc123")
	assert.Contains(t, out, "duplicate")
	assert.Contains(t, out, "Transcript already exists (duplicate)")
	assert.Contains(t, out, "Run run-1: 2 candidates, 1 saved, 1 failed (1 duplicates) in Direct_Downloads")
}

func TestPrintRunSummary_Nil(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintRunSummary("x", nil)
	assert.Empty(t, buf.String())
}

func TestPrintJobs(t *testing.T) {
	var buf bytes.Buffer
	next := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)
	NewPrinter(&buf).PrintJobs([]types.JobView{{
		ScheduledJob: types.ScheduledJob{
			ID:             "0123456789ab",
			Name:           "Weekly talks",
			Channels:       []string{"a", "b"},
			Frequency:      types.FrequencyWeekly,
			Status:         types.JobActive,
			TotalDownloads: 7,
		},
		NextRun: &next,
	}})

	out := buf.String()
	assert.Contains(t, out, "0123456789ab")
	assert.Contains(t, out, "Weekly talks")
	assert.Contains(t, out, "2024-05-06 00:00 UTC")
	assert.Contains(t, out, "weekly")
}

func TestPrintJobs_Empty(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintJobs(nil)
	assert.Equal(t, "No scheduled jobs.\n", buf.String())
}

func TestPrintJob_WithError(t *testing.T) {
	var buf bytes.Buffer
	msg := "channel_not_found: no such channel"
	NewPrinter(&buf).PrintJob(&types.ScheduledJob{ID: "j1", Name: "n", Frequency: types.FrequencyDaily, Status: types.JobFailed, LastError: &msg})
	assert.Contains(t, buf.String(), "status failed")
	assert.Contains(t, buf.String(), "Last error: "+msg)
}

func TestPrintTranscriptsTrimsLongNames(t *testing.T) {
	var buf bytes.Buffer
	long := "abc123_" + strings.Repeat("x", 200)
	NewPrinter(&buf).PrintTranscripts([]types.TranscriptSummary{{Channel: "Chan", Name: long, Size: 42}})
	assert.Contains(t, buf.String(), "Chan")
	assert.NotContains(t, buf.String(), long)
}

func TestPrintStatsAndSearch(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.PrintStats(&types.StorageStats{TotalChannels: 2, TotalTranscripts: 5})
	p.PrintSearchResults([]types.SearchResult{{Name: "abc123_talk", Channel: "Chan", Score: 1}})
	p.PrintSearchResults(nil)

	out := buf.String()
	assert.Contains(t, out, "5 transcripts across 2 channels")
	assert.Contains(t, out, "1.00")
	assert.Contains(t, out, "No matches.")
}
