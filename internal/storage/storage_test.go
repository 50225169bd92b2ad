package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/transcript-archiver/internal/types"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"My Channel", "My_Channel"},
		{`a<b>c:d"e/f\g|h?i*j@k`, "abcdefghijk"},
		{"../../etc/passwd", "....etcpasswd"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Sanitize(tt.in), tt.in)
	}

	long := strings.Repeat("é", 150)
	assert.Equal(t, 100, len([]rune(Sanitize(long))))
}

func TestSanitize_Collides(t *testing.T) {
	assert.Equal(t, Sanitize("A/B"), Sanitize("AB"))
}

func TestRecordPath(t *testing.T) {
	name := RecordName("abc123", "What is Go?")
	assert.Equal(t, "abc123_What_is_Go", name)
	assert.Equal(t, "channels/Tech_Talks/abc123_What_is_Go.json", RecordPath("Tech Talks", name))

	long := RecordName("abc123", strings.Repeat("x", 150))
	assert.Len(t, []rune(long), 100)
	assert.Equal(t, "channels/Chan/"+long+".json", RecordPath("Chan", long))
}

func TestBuildRecord(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))
	rec := BuildRecord(SaveRequest{
		Channel:    "Chan",
		VideoID:    "abc123",
		Title:      "T",
		Transcript: "hello",
		Metadata: types.TranscriptMetadata{
			TranscriptType: types.TranscriptManual,
			ChannelID:      "UC1",
			PublishedAt:    "2024-04-01T00:00:00Z",
		},
	}, now)

	assert.Equal(t, "abc123", rec.VideoID)
	assert.Equal(t, "UC1", rec.ChannelID)
	assert.Equal(t, "Chan", rec.Channel)
	assert.Equal(t, "2024-04-01T00:00:00Z", rec.PublishedAt)
	assert.Equal(t, "2024-05-01T11:00:00Z", rec.DownloadedAt)
}

func TestChannelFromPath(t *testing.T) {
	assert.Equal(t, "Chan", channelFromPath("channels/Chan/abc_T.json"))
	assert.Equal(t, "", channelFromPath("README.md"))
}

func TestPositionScore(t *testing.T) {
	assert.Equal(t, 1.0, positionScore(0, 4))
	assert.Equal(t, 0.25, positionScore(3, 4))
	assert.Equal(t, 0.0, positionScore(0, 0))
}
