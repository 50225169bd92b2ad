package types

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// DownloadRequest starts a pipeline run from the HTTP surface.
type DownloadRequest struct {
	Channel   string   `json:"channel,omitempty"`
	VideoIDs  string   `json:"video_ids,omitempty"`
	AfterDate string   `json:"after_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Folder    string   `json:"folder,omitempty"`
	Delay     *float64 `json:"delay,omitempty" validate:"omitempty,gte=0,lte=600"`
	Limit     int      `json:"limit,omitempty" validate:"gte=0"`
	APIKey    string   `json:"api_key,omitempty"`
}

// Validate validates the DownloadRequest using the validator.
func (r *DownloadRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// SplitVideoIDs splits a comma-separated ID list, trimming blanks.
func SplitVideoIDs(raw string) []string {
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// StartRunResponse is returned when a run is accepted.
type StartRunResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// SetAPIKeyRequest stores a YouTube API key.
type SetAPIKeyRequest struct {
	APIKey string `json:"api_key" validate:"required,min=10"`
}

// Validate validates the SetAPIKeyRequest using the validator.
func (r *SetAPIKeyRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// APIKeyStatus reports whether a key is configured and where it came from.
type APIKeyStatus struct {
	HasKey bool   `json:"has_key"`
	Source string `json:"source,omitempty"`
}

// CombineRequest selects stored transcripts to merge into one document.
type CombineRequest struct {
	Transcripts []TranscriptRef `json:"transcripts" validate:"required,min=1,dive"`
}

// TranscriptRef addresses one stored transcript.
type TranscriptRef struct {
	Channel string `json:"channel" validate:"required"`
	Name    string `json:"name" validate:"required"`
}

// Validate validates the CombineRequest using the validator.
func (r *CombineRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}
