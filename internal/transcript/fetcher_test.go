package transcript

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/transcript-archiver/internal/fetch"
	"github.com/jonathan/transcript-archiver/internal/types"
)

type fakeSource struct {
	tracks    []Track
	listErr   error
	cues      map[string][]Cue
	fetchErrs map[string]error
	fetched   []string
}

func (f *fakeSource) ListTracks(_ context.Context, _ string) ([]Track, error) {
	return f.tracks, f.listErr
}

func (f *fakeSource) FetchTrack(_ context.Context, t Track) ([]Cue, error) {
	f.fetched = append(f.fetched, t.BaseURL)
	if err := f.fetchErrs[t.BaseURL]; err != nil {
		return nil, err
	}
	return f.cues[t.BaseURL], nil
}

func cues(lines ...string) []Cue {
	out := make([]Cue, len(lines))
	for i, l := range lines {
		out[i] = Cue{Text: l, Start: float64(i) * 2.5, Duration: 2.5}
	}
	return out
}

func TestFetch_ManualTierWins(t *testing.T) {
	src := &fakeSource{
		tracks: []Track{
			{LanguageCode: "en", Generated: true, BaseURL: "asr-en"},
			{LanguageCode: "en", BaseURL: "manual-en"},
		},
		cues: map[string][]Cue{"manual-en": cues("hello", "world"), "asr-en": cues("auto")},
	}

	res, err := NewFetcher(src, "en", nil).Fetch(context.Background(), "vid")
	require.NoError(t, err)
	assert.Equal(t, types.TranscriptManual, res.Type)
	assert.Equal(t, "hello\nworld", res.Text)
	assert.Equal(t, 2.5, res.Duration, "duration is the start of the last cue")
	assert.Equal(t, []string{"manual-en"}, src.fetched)
}

func TestFetch_OnlyGeneratedStopsAtTierTwo(t *testing.T) {
	src := &fakeSource{
		tracks: []Track{
			{LanguageCode: "de", BaseURL: "manual-de"},
			{LanguageCode: "en", Generated: true, BaseURL: "asr-en"},
		},
		cues: map[string][]Cue{"asr-en": cues("auto text"), "manual-de": cues("hallo")},
	}

	res, err := NewFetcher(src, "en", nil).Fetch(context.Background(), "vid")
	require.NoError(t, err)
	assert.Equal(t, types.TranscriptAutoGenerated, res.Type)
	assert.Equal(t, "auto text", res.Text)
	assert.Equal(t, []string{"asr-en"}, src.fetched, "tiers three and four are never attempted")
}

func TestFetch_LanguageVariantTier(t *testing.T) {
	src := &fakeSource{
		tracks: []Track{
			{LanguageCode: "fr", BaseURL: "fr"},
			{LanguageCode: "en-GB", Generated: true, BaseURL: "asr-en-gb"},
			{LanguageCode: "en-US", BaseURL: "manual-en-us"},
		},
		cues: map[string][]Cue{"manual-en-us": cues("colour"), "asr-en-gb": cues("x"), "fr": cues("bonjour")},
	}

	res, err := NewFetcher(src, "en", nil).Fetch(context.Background(), "vid")
	require.NoError(t, err)
	assert.Equal(t, types.TranscriptManual, res.Type)
	assert.Equal(t, "en-US", res.Language)
	assert.Equal(t, "colour", res.Text)
}

func TestFetch_AnyLanguageTier(t *testing.T) {
	src := &fakeSource{
		tracks: []Track{{LanguageCode: "es", Name: "Spanish", BaseURL: "es"}},
		cues:   map[string][]Cue{"es": cues("hola")},
	}

	res, err := NewFetcher(src, "en", nil).Fetch(context.Background(), "vid")
	require.NoError(t, err)
	assert.Equal(t, "auto (Spanish)", res.Type)
	assert.Equal(t, "es", res.Language)
}

func TestFetch_AnyLanguageTierNamesUnlabelledTrack(t *testing.T) {
	src := &fakeSource{
		tracks: []Track{{LanguageCode: "ja", BaseURL: "ja"}},
		cues:   map[string][]Cue{"ja": cues("konnichiwa")},
	}

	res, err := NewFetcher(src, "en", nil).Fetch(context.Background(), "vid")
	require.NoError(t, err)
	assert.Equal(t, "auto (Japanese)", res.Type)
}

func TestFetch_FailedTierFallsThrough(t *testing.T) {
	src := &fakeSource{
		tracks: []Track{
			{LanguageCode: "en", BaseURL: "manual-en"},
			{LanguageCode: "en", Generated: true, BaseURL: "asr-en"},
		},
		fetchErrs: map[string]error{"manual-en": errors.New("connection reset")},
		cues:      map[string][]Cue{"asr-en": cues("fallback")},
	}

	res, err := NewFetcher(src, "en", nil).Fetch(context.Background(), "vid")
	require.NoError(t, err)
	assert.Equal(t, types.TranscriptAutoGenerated, res.Type)
	assert.Equal(t, []string{"manual-en", "asr-en"}, src.fetched)
}

func TestFetch_TracksAreNotRetriedAcrossTiers(t *testing.T) {
	src := &fakeSource{
		tracks:    []Track{{LanguageCode: "en", BaseURL: "manual-en"}},
		fetchErrs: map[string]error{"manual-en": errors.New("boom")},
	}

	_, err := NewFetcher(src, "en", nil).Fetch(context.Background(), "vid")
	require.Error(t, err)
	assert.Equal(t, []string{"manual-en"}, src.fetched)
}

func TestFetch_TrackErrorIsFetchFailure(t *testing.T) {
	src := &fakeSource{
		tracks:    []Track{{LanguageCode: "en", BaseURL: "manual-en"}},
		fetchErrs: map[string]error{"manual-en": errors.New("read tcp: connection reset by peer")},
	}

	_, err := NewFetcher(src, "en", nil).Fetch(context.Background(), "vid")
	require.Error(t, err)
	assert.Equal(t, types.KindTranscriptFetchFailed, types.KindOf(err))
	assert.Contains(t, types.MessageOf(err), "connection reset by peer")
}

func TestFetch_EmptyTracksAreNoTranscript(t *testing.T) {
	src := &fakeSource{
		tracks: []Track{
			{LanguageCode: "en", BaseURL: "manual-en"},
			{LanguageCode: "de", Generated: true, BaseURL: "asr-de"},
		},
	}

	_, err := NewFetcher(src, "en", nil).Fetch(context.Background(), "vid")
	require.Error(t, err)
	assert.Equal(t, types.KindNoTranscript, types.KindOf(err))
}

func TestFetch_NoTracks(t *testing.T) {
	_, err := NewFetcher(&fakeSource{}, "en", nil).Fetch(context.Background(), "vid")
	require.Error(t, err)
	assert.Equal(t, types.KindNoTranscript, types.KindOf(err))
}

func TestFetch_RateLimitedDuringTiers(t *testing.T) {
	src := &fakeSource{
		tracks: []Track{{LanguageCode: "en", BaseURL: "manual-en"}},
		fetchErrs: map[string]error{
			"manual-en": &fetch.Error{URL: "x", Message: "Too Many Requests", StatusCode: 429},
		},
	}

	_, err := NewFetcher(src, "en", nil).Fetch(context.Background(), "vid")
	require.Error(t, err)
	assert.Equal(t, types.KindRateLimited, types.KindOf(err))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want types.ErrorKind
	}{
		{name: "http 429", err: &fetch.Error{StatusCode: 429}, want: types.KindRateLimited},
		{name: "throttle text", err: errors.New("429 Client Error: Too Many Requests for url"), want: types.KindRateLimited},
		{name: "could not retrieve", err: errors.New("Could not retrieve a transcript for the video"), want: types.KindNoTranscript},
		{name: "other", err: errors.New("tls handshake timeout"), want: types.KindTranscriptFetchFailed},
		{name: "already classified", err: types.NewError(types.KindNoTranscript, "x", nil), want: types.KindNoTranscript},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, types.KindOf(Classify(tt.err)))
		})
	}
	assert.NoError(t, Classify(nil))
}

func TestClassify_TruncatesDiagnostic(t *testing.T) {
	err := Classify(errors.New(strings.Repeat("x", 500)))
	msg := types.MessageOf(err)
	assert.True(t, strings.HasPrefix(msg, msgFetchPrefix))
	assert.LessOrEqual(t, len([]rune(msg)), types.MaxDiagnosticLength)
}

func TestFetch_ListErrorIsClassified(t *testing.T) {
	src := &fakeSource{listErr: errors.New("dial tcp: no route to host")}
	_, err := NewFetcher(src, "en", nil).Fetch(context.Background(), "vid")
	require.Error(t, err)
	assert.Equal(t, types.KindTranscriptFetchFailed, types.KindOf(err))
	assert.Contains(t, types.MessageOf(err), "no route to host")
}
