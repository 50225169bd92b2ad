package types

// Transcript type labels recorded in metadata.
const (
	TranscriptManual        = "manual"
	TranscriptAutoGenerated = "auto-generated"
)

// TranscriptMetadata carries the fetch details stored alongside a transcript.
type TranscriptMetadata struct {
	TranscriptType string  `json:"transcript_type"`
	Duration       float64 `json:"duration"`
	Language       string  `json:"language,omitempty"`
	ChannelID      string  `json:"channel_id"`
	PublishedAt    string  `json:"published_at"`
}

// TranscriptRecord is the persisted form of one downloaded transcript.
// Records are keyed by VideoID and never merged; an update overwrites.
type TranscriptRecord struct {
	VideoID      string             `json:"video_id"`
	ChannelID    string             `json:"channel_id"`
	Title        string             `json:"title"`
	Channel      string             `json:"channel"`
	PublishedAt  string             `json:"published_at"`
	DownloadedAt string             `json:"downloaded_at"`
	Transcript   string             `json:"transcript"`
	Metadata     TranscriptMetadata `json:"metadata"`
}

// TranscriptSummary is a listing entry for a stored transcript.
// Name is the stored file stem and is the key accepted by storage reads.
type TranscriptSummary struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Channel     string `json:"channel"`
	Size        int    `json:"size"`
	URL         string `json:"url,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
}

// TranscriptDetail is a listing entry enriched with the record header.
type TranscriptDetail struct {
	TranscriptSummary
	VideoID      string `json:"video_id,omitempty"`
	ChannelID    string `json:"channel_id,omitempty"`
	Title        string `json:"title,omitempty"`
	ChannelName  string `json:"channel_name,omitempty"`
	PublishedAt  string `json:"published_at,omitempty"`
	DownloadedAt string `json:"downloaded_at,omitempty"`
}

// SearchResult is one ranked storage search hit.
type SearchResult struct {
	Name    string  `json:"name"`
	Path    string  `json:"path"`
	Channel string  `json:"channel,omitempty"`
	URL     string  `json:"url,omitempty"`
	Score   float64 `json:"score"`
}

// StorageStats summarizes the contents of a store.
type StorageStats struct {
	TotalChannels    int      `json:"total_channels"`
	TotalTranscripts int      `json:"total_transcripts"`
	Channels         []string `json:"channels"`
}

// ChannelOverview is a channel folder with a preview of its transcripts.
type ChannelOverview struct {
	Name            string              `json:"name"`
	TranscriptCount int                 `json:"transcript_count"`
	Transcripts     []TranscriptSummary `json:"transcripts"`
}
