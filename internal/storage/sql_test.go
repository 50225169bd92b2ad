package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/transcript-archiver/internal/db"
	"github.com/jonathan/transcript-archiver/internal/types"
)

func newSQLStore(t *testing.T) *SQLStore {
	t.Helper()
	database, err := db.Open(context.Background(), db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	s := NewSQLStore(database, nil)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func saveReq(id, channel, title, text string) SaveRequest {
	return SaveRequest{
		Channel:    channel,
		VideoID:    id,
		Title:      title,
		Transcript: text,
		Metadata:   types.TranscriptMetadata{TranscriptType: types.TranscriptManual, Duration: 12.5, Language: "en"},
	}
}

func TestSQLStore_DuplicateGuard(t *testing.T) {
	ctx := context.Background()
	s := newSQLStore(t)

	first, err := s.Save(ctx, saveReq("abc123", "My Channel", "First", "original text"))
	require.NoError(t, err)
	assert.False(t, first.Duplicate)
	assert.Equal(t, "channels/My_Channel/abc123_First.json", first.Path)

	second, err := s.Save(ctx, saveReq("abc123", "My Channel", "First", "changed text"))
	require.NoError(t, err)
	assert.True(t, second.Duplicate)

	rec, err := s.Get(ctx, "My Channel", "abc123_First")
	require.NoError(t, err)
	assert.Equal(t, "original text", rec.Transcript)
	assert.Equal(t, "My Channel", rec.Channel)
	assert.Equal(t, 12.5, rec.Metadata.Duration)
}

func TestSQLStore_LongTitleRoundTrips(t *testing.T) {
	ctx := context.Background()
	s := newSQLStore(t)

	title := strings.Repeat("A very long episode title ", 6)
	_, err := s.Save(ctx, saveReq("long0000001", "Chan", title, "text"))
	require.NoError(t, err)

	list, err := s.List(ctx, "Chan")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Len(t, []rune(list[0].Name), 100)

	rec, err := s.Get(ctx, list[0].Channel, list[0].Name)
	require.NoError(t, err)
	assert.Equal(t, "long0000001", rec.VideoID)
}

func TestSQLStore_ExistsAndNotFound(t *testing.T) {
	ctx := context.Background()
	s := newSQLStore(t)

	ok, err := s.Exists(ctx, "abc123")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Get(ctx, "Chan", "abc123_x")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, types.KindNotFound, types.KindOf(err))

	_, err = s.Save(ctx, saveReq("abc123", "Chan", "x", "text"))
	require.NoError(t, err)

	ok, err = s.Exists(ctx, "abc123")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSQLStore_RejectsInvalidRecord(t *testing.T) {
	ctx := context.Background()
	s := newSQLStore(t)

	_, err := s.Save(ctx, saveReq("abc123", "Chan", "T", ""))
	require.Error(t, err)
	assert.Equal(t, types.KindStorageWrite, types.KindOf(err))

	_, err = s.Save(ctx, saveReq("", "Chan", "T", "text"))
	require.Error(t, err)
}

func TestSQLStore_Browse(t *testing.T) {
	ctx := context.Background()
	s := newSQLStore(t)

	for _, r := range []SaveRequest{
		saveReq("a1", "Alpha", "Intro to Go", "goroutines and channels"),
		saveReq("b1", "Beta", "Cooking", "we talk about go briefly"),
		saveReq("b2", "Beta", "Gardening", "plants"),
	} {
		_, err := s.Save(ctx, r)
		require.NoError(t, err)
	}

	channels, err := s.ListChannels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha", "Beta"}, channels)

	beta, err := s.List(ctx, "Beta")
	require.NoError(t, err)
	require.Len(t, beta, 2)
	assert.Equal(t, "b1_Cooking", beta[0].Name)
	assert.Equal(t, "Beta", beta[0].Channel)
	assert.Positive(t, beta[0].Size)

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	details, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, details, 3)
	assert.Equal(t, "a1", details[0].VideoID)
	assert.Equal(t, "Intro to Go", details[0].Title)

	hits, err := s.Search(ctx, "go")
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a1_Intro_to_Go", hits[0].Name)
	assert.Greater(t, hits[0].Score, hits[1].Score)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalChannels)
	assert.Equal(t, 3, stats.TotalTranscripts)

	require.NoError(t, s.Init(ctx))
}
