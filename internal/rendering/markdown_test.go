package rendering

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/transcript-archiver/internal/types"
)

func TestRenderCombined(t *testing.T) {
	generated := time.Date(2024, 5, 1, 9, 30, 15, 0, time.UTC)
	records := []*types.TranscriptRecord{
		{
			VideoID:      "abc123",
			Title:        "First talk",
			Channel:      "Chan One",
			PublishedAt:  "2024-04-01T10:00:00Z",
			DownloadedAt: "2024-05-01T09:00:00Z",
			Transcript:   "hello\nworld",
		},
		{
			VideoID:      "def456",
			Title:        "video_def456",
			Channel:      "Direct_Downloads",
			DownloadedAt: "2024-05-01T09:05:00Z",
			Transcript:   "second",
		},
	}

	doc, err := RenderCombined(records, generated)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(doc, "# Combined YouTube Transcripts\n\nGenerated: 2024-05-01 09:30:15\n\n---\n\n"))
	assert.Contains(t, doc, "## First talk\n\n**Channel:** Chan One  \n**Video ID:** abc123  \n**Published:** 2024-04-01  \n**Downloaded:** 2024-05-01  \n\n### Transcript\n\nhello\nworld\n\n---\n\n")
	assert.Contains(t, doc, "**Video ID:** def456  \n**Downloaded:** 2024-05-01  \n")
	assert.Less(t, strings.Index(doc, "First talk"), strings.Index(doc, "video_def456"))
	assert.Equal(t, 1, strings.Count(doc, "**Published:**"))
}

func TestRenderCombined_Empty(t *testing.T) {
	doc, err := RenderCombined(nil, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "# Combined YouTube Transcripts\n\nGenerated: 2024-01-02 03:04:05\n\n---\n\n", doc)
}

func TestInlineText(t *testing.T) {
	assert.Equal(t, "a b c", InlineText(" a\n b\t c "))
	assert.Equal(t, `\# not a heading`, InlineText("# not a heading"))
	assert.Equal(t, "", InlineText(""))
}

func TestDatePrefix(t *testing.T) {
	assert.Equal(t, "2024-04-01", DatePrefix("2024-04-01T10:00:00Z"))
	assert.Equal(t, "2024", DatePrefix("2024"))
}
