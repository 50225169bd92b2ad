// Package types provides type definitions for structured data used throughout the transcript-archiver system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"fmt"
	"time"
)

// DirectDownloadsFolder is the destination folder used when explicit IDs are given without a folder.
const DirectDownloadsFolder = "Direct_Downloads"

// ContentItem is one fetchable video produced by the channel resolver or synthesized from an explicit ID.
type ContentItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	PublishedAt time.Time `json:"published_at"`
	ChannelName string    `json:"channel_name,omitempty"`
	ChannelID   string    `json:"channel_id,omitempty"`
}

// PlaceholderTitle returns the title synthesized for a video supplied by ID only.
func PlaceholderTitle(videoID string) string {
	return fmt.Sprintf("video_%s", videoID)
}

// PublishedString formats the publish timestamp the way stored records carry it.
// A zero timestamp yields an empty string.
func (c ContentItem) PublishedString() string {
	if c.PublishedAt.IsZero() {
		return ""
	}
	return c.PublishedAt.UTC().Format(time.RFC3339)
}
