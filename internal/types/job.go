package types

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// DateLayout is the calendar-date format used for start and after dates.
const DateLayout = "2006-01-02"

// Frequency is the cadence at which a scheduled job re-triggers.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// Valid reports whether f is a supported cadence.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// JobStatus is the outcome of a scheduled job's most recent trigger.
type JobStatus string

const (
	JobActive    JobStatus = "active"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// ScheduledJob is a persisted recurring download over one or more channels.
type ScheduledJob struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Channels       []string   `json:"channels"`
	Frequency      Frequency  `json:"frequency"`
	StartDate      string     `json:"start_date"`
	FolderPrefix   string     `json:"folder_prefix"`
	CreatedAt      time.Time  `json:"created_at"`
	LastRun        *time.Time `json:"last_run"`
	Status         JobStatus  `json:"status"`
	TotalDownloads int        `json:"total_downloads"`
	LastError      *string    `json:"last_error"`
}

// Clone returns a deep copy of the job.
func (j *ScheduledJob) Clone() *ScheduledJob {
	out := *j
	out.Channels = append([]string(nil), j.Channels...)
	if j.LastRun != nil {
		t := *j.LastRun
		out.LastRun = &t
	}
	if j.LastError != nil {
		s := *j.LastError
		out.LastError = &s
	}
	return &out
}

// JobView is a job as reported to callers, with its next cadence trigger.
type JobView struct {
	ScheduledJob
	NextRun *time.Time `json:"next_run"`
}

// CreateJobRequest is the input for creating a scheduled job.
type CreateJobRequest struct {
	Name         string    `json:"name" validate:"required,min=1"`
	Channels     []string  `json:"channels" validate:"required,min=1,dive,required"`
	Frequency    Frequency `json:"frequency" validate:"required"`
	StartDate    string    `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	FolderPrefix string    `json:"folder_prefix,omitempty"`
}

// Validate validates the CreateJobRequest using the validator.
func (r *CreateJobRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}
