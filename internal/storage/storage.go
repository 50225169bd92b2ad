// Package storage persists transcript records and exposes them for browsing.
//
// Records live at channels/<channel>/<videoID>_<title>.json regardless of
// backend, so listings and reads look the same on every store.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonathan/transcript-archiver/internal/schemas"
	"github.com/jonathan/transcript-archiver/internal/types"
)

const (
	// ChannelsDir is the root directory holding one folder per channel.
	ChannelsDir = "channels"

	maxNameLength = 100
	searchLimit   = 30
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = types.NewError(types.KindNotFound, "transcript not found", nil)

// Store is a transcript repository.
type Store interface {
	// Exists reports whether a record for videoID has been stored.
	Exists(ctx context.Context, videoID string) (bool, error)
	// Save writes a new record. An existing record is left unchanged and
	// reported with Duplicate set.
	Save(ctx context.Context, req SaveRequest) (*SaveResult, error)
	// Get reads the record stored under channel with the given file stem.
	Get(ctx context.Context, channel, name string) (*types.TranscriptRecord, error)
	// List returns summaries for one channel, or all channels when channel is empty.
	List(ctx context.Context, channel string) ([]types.TranscriptSummary, error)
	ListChannels(ctx context.Context) ([]string, error)
	ListAll(ctx context.Context) ([]types.TranscriptDetail, error)
	Search(ctx context.Context, query string) ([]types.SearchResult, error)
	Stats(ctx context.Context) (*types.StorageStats, error)
	// Init creates the base layout. Existing files are kept.
	Init(ctx context.Context) error
}

// SaveRequest describes a transcript to persist.
type SaveRequest struct {
	Channel    string
	VideoID    string
	Title      string
	Transcript string
	Metadata   types.TranscriptMetadata
}

// SaveResult is the outcome of a Save call.
type SaveResult struct {
	Path      string `json:"path,omitempty"`
	URL       string `json:"url,omitempty"`
	Duplicate bool   `json:"duplicate"`
}

// Sanitize makes name safe as a path segment: it strips <>:"/\|?*@,
// replaces spaces with underscores and truncates to 100 characters.
// Distinct names may collide.
func Sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*', '@':
			continue
		case ' ':
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	return types.Truncate(b.String(), maxNameLength)
}

// RecordName returns the file stem for a video. It is already sanitized, so
// List and Get agree on it even when the title is long.
func RecordName(videoID, title string) string {
	return Sanitize(videoID + "_" + Sanitize(title))
}

// ChannelPath returns the directory holding a channel's records.
func ChannelPath(channel string) string {
	return ChannelsDir + "/" + Sanitize(channel)
}

// RecordPath returns the path of a record given its channel and file stem.
func RecordPath(channel, name string) string {
	return ChannelPath(channel) + "/" + Sanitize(name) + ".json"
}

// BuildRecord assembles the stored record for req.
func BuildRecord(req SaveRequest, now time.Time) *types.TranscriptRecord {
	return &types.TranscriptRecord{
		VideoID:      req.VideoID,
		ChannelID:    req.Metadata.ChannelID,
		Title:        req.Title,
		Channel:      req.Channel,
		PublishedAt:  req.Metadata.PublishedAt,
		DownloadedAt: now.UTC().Format(time.RFC3339),
		Transcript:   req.Transcript,
		Metadata:     req.Metadata,
	}
}

func validateSave(req SaveRequest) error {
	switch {
	case strings.TrimSpace(req.VideoID) == "":
		return errors.New("video id is required")
	case strings.TrimSpace(req.Channel) == "":
		return errors.New("channel is required")
	case strings.TrimSpace(req.Title) == "":
		return errors.New("title is required")
	}
	return nil
}

// encodeRecord serializes rec and checks it against the record schema.
func encodeRecord(rec *types.TranscriptRecord) ([]byte, error) {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}
	if err := schemas.ValidateRecord(data); err != nil {
		return nil, err
	}
	return data, nil
}

func decodeRecord(data []byte) (*types.TranscriptRecord, error) {
	if err := schemas.ValidateRecord(data); err != nil {
		return nil, err
	}
	var rec types.TranscriptRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return &rec, nil
}

func writeError(msg string, err error) error {
	if types.KindOf(err) != "" {
		return err
	}
	return types.NewError(types.KindStorageWrite, msg, err)
}

func nameFromFile(file string) string {
	return strings.TrimSuffix(file, ".json")
}

// positionScore ranks the i-th of n hits from 1 down towards 0.
func positionScore(i, n int) float64 {
	if n <= 0 {
		return 0
	}
	return float64(n-i) / float64(n)
}
