// Package observability renders run, job and storage state as terminal tables.
package observability

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jonathan/transcript-archiver/internal/types"
)

const titleWidth = 48

// Printer writes human-readable reports for the CLI.
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

//nolint:errcheck // terminal output; errors are not recoverable
func (p *Printer) println(s string) {
	fmt.Fprintln(p.out, s)
}

// PrintRunSummary prints per-item outcomes followed by the run totals.
func (p *Printer) PrintRunSummary(runID string, s *types.RunSummary) {
	if s == nil {
		return
	}
	if len(s.Results) > 0 {
		rows := make([][]string, 0, len(s.Results))
		for _, r := range s.Results {
			detail := r.Path
			if r.Status != types.ItemSuccess {
				detail = r.Message
			}
			rows = append(rows, []string{r.VideoID, r.Title, string(r.Status), detail})
		}
		p.println(renderTable([]column{
			{header: "Video ID"},
			{header: "Title", maxWidth: titleWidth},
			{header: "Status"},
			{header: "Detail", maxWidth: 60},
		}, rows))
	}

	p.println(fmt.Sprintf("Run %s: %d candidates, %d saved, %d failed (%d duplicates) in %s",
		runID, s.TotalCandidates, s.SuccessCount, s.FailedCount, s.DuplicateCount, s.Folder))
}

// PrintJobs prints the scheduled job table.
func (p *Printer) PrintJobs(jobs []types.JobView) {
	if len(jobs) == 0 {
		p.println("No scheduled jobs.")
		return
	}
	rows := make([][]string, 0, len(jobs))
	for _, j := range jobs {
		rows = append(rows, []string{
			j.ID,
			j.Name,
			string(j.Frequency),
			strconv.Itoa(len(j.Channels)),
			string(j.Status),
			formatTime(j.LastRun),
			formatTime(j.NextRun),
			strconv.Itoa(j.TotalDownloads),
		})
	}
	p.println(renderTable([]column{
		{header: "ID"},
		{header: "Name", maxWidth: 32},
		{header: "Frequency"},
		{header: "Channels", align: alignRight},
		{header: "Status"},
		{header: "Last Run"},
		{header: "Next Run"},
		{header: "Downloads", align: alignRight},
	}, rows))
}

// PrintJob prints one job after a create or trigger.
func (p *Printer) PrintJob(job *types.ScheduledJob) {
	if job == nil {
		return
	}
	p.println(fmt.Sprintf("Job %s (%s, %s): status %s, %d downloads, last run %s",
		job.ID, job.Name, job.Frequency, job.Status, job.TotalDownloads, formatTime(job.LastRun)))
	if job.LastError != nil {
		p.println("Last error: " + *job.LastError)
	}
}

// PrintStats prints storage totals.
func (p *Printer) PrintStats(stats *types.StorageStats) {
	if stats == nil {
		return
	}
	p.println(fmt.Sprintf("%d transcripts across %d channels", stats.TotalTranscripts, stats.TotalChannels))
}

// PrintChannels prints one channel folder per line.
func (p *Printer) PrintChannels(channels []string) {
	for _, c := range channels {
		p.println(c)
	}
}

// PrintTranscripts prints a storage listing.
func (p *Printer) PrintTranscripts(items []types.TranscriptSummary) {
	if len(items) == 0 {
		p.println("No transcripts found.")
		return
	}
	rows := make([][]string, 0, len(items))
	for _, t := range items {
		rows = append(rows, []string{t.Channel, t.Name, strconv.Itoa(t.Size)})
	}
	p.println(renderTable([]column{
		{header: "Channel"},
		{header: "Name", maxWidth: 64},
		{header: "Size", align: alignRight},
	}, rows))
}

// PrintSearchResults prints ranked search hits.
func (p *Printer) PrintSearchResults(results []types.SearchResult) {
	if len(results) == 0 {
		p.println("No matches.")
		return
	}
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{strconv.FormatFloat(r.Score, 'f', 2, 64), r.Channel, r.Name})
	}
	p.println(renderTable([]column{
		{header: "Score", align: alignRight},
		{header: "Channel"},
		{header: "Name", maxWidth: 64},
	}, rows))
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02 15:04 MST")
}
