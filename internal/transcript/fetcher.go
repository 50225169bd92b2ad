// Package transcript retrieves video transcripts using ordered fallback tiers.
package transcript

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/jonathan/transcript-archiver/internal/fetch"
	"github.com/jonathan/transcript-archiver/internal/logging"
	"github.com/jonathan/transcript-archiver/internal/types"
)

// Messages carried by classified failures.
const (
	msgNoTranscript = "No transcript available for this video"
	msgRateLimited  = "Rate limited by YouTube - please wait before retrying"
	msgFetchPrefix  = "Failed to fetch transcript: "
)

// Track is one caption track offered for a video.
type Track struct {
	LanguageCode string
	Name         string
	Generated    bool
	BaseURL      string
}

// Cue is a single timed caption line.
type Cue struct {
	Text     string
	Start    float64
	Duration float64
}

// Result is a fetched transcript.
type Result struct {
	Text     string
	Type     string
	Language string
	Duration float64
	Cues     []Cue
}

// Source lists and downloads caption tracks.
type Source interface {
	ListTracks(ctx context.Context, videoID string) ([]Track, error)
	FetchTrack(ctx context.Context, track Track) ([]Cue, error)
}

// Fetcher walks the strategy tiers against a Source.
type Fetcher struct {
	source     Source
	language   string
	strategies []Strategy
	logger     *slog.Logger
}

// NewFetcher returns a fetcher using the default tiers for the target language.
func NewFetcher(source Source, lang string, logger *slog.Logger) *Fetcher {
	if lang == "" {
		lang = "en"
	}
	return &Fetcher{
		source:     source,
		language:   lang,
		strategies: DefaultStrategies(),
		logger:     logging.OrDiscard(logger).With("component", "transcript"),
	}
}

// Fetch returns the first transcript produced by the tiers in order.
// Failures are classified as no_transcript, rate_limited or transcript_fetch_failed.
func (f *Fetcher) Fetch(ctx context.Context, videoID string) (*Result, error) {
	tracks, err := f.source.ListTracks(ctx, videoID)
	if err != nil {
		return nil, Classify(err)
	}
	if len(tracks) == 0 {
		return nil, types.NewError(types.KindNoTranscript, msgNoTranscript, nil)
	}

	tried := make(map[string]bool)
	var lastErr error
	for _, s := range f.strategies {
		track, ok := s.Select(untried(tracks, tried), f.language)
		if !ok {
			continue
		}
		tried[trackKey(track)] = true

		cues, err := f.source.FetchTrack(ctx, track)
		if err != nil {
			f.logger.Debug("transcript tier failed", "video_id", videoID, "tier", s.Name, "error", err)
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if len(cues) == 0 {
			f.logger.Debug("transcript tier empty", "video_id", videoID, "tier", s.Name)
			continue
		}

		f.logger.Debug("transcript tier succeeded", "video_id", videoID, "tier", s.Name, "language", track.LanguageCode)
		return buildResult(cues, s.Label(track), track.LanguageCode), nil
	}

	if lastErr != nil {
		return nil, Classify(lastErr)
	}
	return nil, types.NewError(types.KindNoTranscript, msgNoTranscript, nil)
}

func buildResult(cues []Cue, label, lang string) *Result {
	lines := make([]string, 0, len(cues))
	for _, c := range cues {
		lines = append(lines, c.Text)
	}
	return &Result{
		Text:     strings.Join(lines, "\n"),
		Type:     label,
		Language: lang,
		Duration: cues[len(cues)-1].Start,
		Cues:     cues,
	}
}

func untried(tracks []Track, tried map[string]bool) []Track {
	out := make([]Track, 0, len(tracks))
	for _, t := range tracks {
		if !tried[trackKey(t)] {
			out = append(out, t)
		}
	}
	return out
}

func trackKey(t Track) string {
	if t.BaseURL != "" {
		return t.BaseURL
	}
	kind := "manual"
	if t.Generated {
		kind = "asr"
	}
	return t.LanguageCode + "/" + kind
}

// Classify maps a source error onto the transcript failure taxonomy.
// Already-classified errors pass through unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if types.KindOf(err) != "" {
		return err
	}

	var fe *fetch.Error
	if errors.As(err, &fe) && fe.TooManyRequests() {
		return types.NewError(types.KindRateLimited, msgRateLimited, err)
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "Too Many Requests"):
		return types.NewError(types.KindRateLimited, msgRateLimited, err)
	case strings.Contains(msg, "Could not retrieve"):
		return types.NewError(types.KindNoTranscript, msgNoTranscript, err)
	}
	return types.NewError(types.KindTranscriptFetchFailed,
		msgFetchPrefix+types.Truncate(msg, types.MaxDiagnosticLength), err)
}
