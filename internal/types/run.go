package types

import "time"

// RunStatus is the lifecycle state of a pipeline run.
type RunStatus string

const (
	RunPending         RunStatus = "pending"
	RunFetchingChannel RunStatus = "fetching_channel"
	RunDownloading     RunStatus = "downloading"
	RunCompleted       RunStatus = "completed"
	RunError           RunStatus = "error"
)

// Terminal reports whether no further progress will be recorded.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunError
}

// ItemStatus is the outcome of one content item within a run.
type ItemStatus string

const (
	ItemSuccess   ItemStatus = "success"
	ItemFailed    ItemStatus = "failed"
	ItemDuplicate ItemStatus = "duplicate"
)

// ItemResult records what happened to a single content item.
type ItemResult struct {
	VideoID     string     `json:"video_id"`
	Title       string     `json:"title"`
	PublishedAt string     `json:"published_at,omitempty"`
	Status      ItemStatus `json:"status"`
	Kind        ErrorKind  `json:"error_type,omitempty"`
	Message     string     `json:"message,omitempty"`
	Path        string     `json:"path,omitempty"`
	URL         string     `json:"url,omitempty"`
}

// RunProgress is the observable state of one pipeline run.
//
// Failed includes duplicates; Duplicates and Errors split it, so
// Success+Failed always equals Current.
type RunProgress struct {
	ID         string       `json:"id"`
	Status     RunStatus    `json:"status"`
	Current    int          `json:"current"`
	Total      int          `json:"total"`
	Success    int          `json:"success"`
	Failed     int          `json:"failed"`
	Duplicates int          `json:"duplicates"`
	Errors     int          `json:"errors"`
	Folder     string       `json:"folder,omitempty"`
	Error      string       `json:"error,omitempty"`
	Items      []ItemResult `json:"videos"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
}

// Record applies one item outcome to the counters.
func (p *RunProgress) Record(r ItemResult) {
	p.Items = append(p.Items, r)
	p.Current++
	switch r.Status {
	case ItemSuccess:
		p.Success++
	case ItemDuplicate:
		p.Failed++
		p.Duplicates++
	default:
		p.Failed++
		p.Errors++
	}
}

// Clone returns a deep copy safe to hand to readers.
func (p RunProgress) Clone() RunProgress {
	out := p
	if p.Items != nil {
		out.Items = make([]ItemResult, len(p.Items))
		copy(out.Items, p.Items)
	}
	if p.FinishedAt != nil {
		t := *p.FinishedAt
		out.FinishedAt = &t
	}
	return out
}

// Summary derives the run summary from a progress snapshot.
func (p RunProgress) Summary() *RunSummary {
	results := make([]ItemResult, len(p.Items))
	copy(results, p.Items)
	return &RunSummary{
		TotalCandidates: p.Total,
		SuccessCount:    p.Success,
		FailedCount:     p.Failed,
		DuplicateCount:  p.Duplicates,
		Folder:          p.Folder,
		Results:         results,
	}
}

// RunSummary is the result ledger returned when a run finishes.
type RunSummary struct {
	TotalCandidates int          `json:"total"`
	SuccessCount    int          `json:"success"`
	FailedCount     int          `json:"failed"`
	DuplicateCount  int          `json:"duplicates"`
	Folder          string       `json:"folder,omitempty"`
	Results         []ItemResult `json:"results"`
}
