// Package schemas holds the JSON Schema documents for persisted artifacts.
package schemas

import "embed"

// FS contains every *.schema.json file in this directory.
//
//go:embed *.schema.json
var FS embed.FS

// Schema file names.
const (
	TranscriptRecord = "transcript_record.schema.json"
	ScheduledJobs    = "scheduled_jobs.schema.json"
)
