package transcript

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jonathan/transcript-archiver/internal/fetch"
	"github.com/jonathan/transcript-archiver/internal/logging"
	"github.com/jonathan/transcript-archiver/internal/types"
)

const (
	defaultWatchBase = "https://www.youtube.com"
	playerMarker     = "ytInitialPlayerResponse"
)

// RenderFunc renders a page in a browser and returns its HTML.
type RenderFunc func(ctx context.Context, url string, timeout time.Duration, logger *slog.Logger) (string, error)

// WatchPageSource reads caption tracks from a video's watch page and
// downloads them from the timedtext endpoint the page advertises.
type WatchPageSource struct {
	BaseURL        string
	Options        *fetch.Options
	UseBrowser     bool
	BrowserTimeout time.Duration
	Render         RenderFunc
	Logger         *slog.Logger
}

// NewWatchPageSource returns a source for the public site.
func NewWatchPageSource(opts *fetch.Options, useBrowser bool, browserTimeout time.Duration, logger *slog.Logger) *WatchPageSource {
	return &WatchPageSource{
		BaseURL:        defaultWatchBase,
		Options:        opts,
		UseBrowser:     useBrowser,
		BrowserTimeout: browserTimeout,
		Render:         fetch.WithBrowser,
		Logger:         logging.OrDiscard(logger),
	}
}

type playerResponse struct {
	PlayabilityStatus struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
	Captions *struct {
		Renderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
	Name         struct {
		SimpleText string `json:"simpleText"`
		Runs       []struct {
			Text string `json:"text"`
		} `json:"runs"`
	} `json:"name"`
}

func (c captionTrack) name() string {
	if c.Name.SimpleText != "" {
		return c.Name.SimpleText
	}
	parts := make([]string, 0, len(c.Name.Runs))
	for _, r := range c.Name.Runs {
		parts = append(parts, r.Text)
	}
	return strings.Join(parts, "")
}

// ListTracks fetches the watch page and returns its caption tracks.
func (s *WatchPageSource) ListTracks(ctx context.Context, videoID string) ([]Track, error) {
	watchURL := s.watchURL(videoID)

	res, err := fetch.URL(ctx, watchURL, s.Options)
	if err != nil {
		return nil, err
	}
	if fetch.HasCaptcha(res.Body) {
		return nil, types.NewError(types.KindRateLimited, msgRateLimited, nil)
	}

	pr, err := parsePlayerResponse(res.Body)
	if err != nil && s.UseBrowser && s.Render != nil {
		s.Logger.Debug("player response missing, rendering in browser", "video_id", videoID)
		rendered, rerr := s.Render(ctx, watchURL, s.BrowserTimeout, s.Logger)
		if rerr != nil {
			return nil, rerr
		}
		pr, err = parsePlayerResponse(rendered)
	}
	if err != nil {
		return nil, err
	}

	if status := pr.PlayabilityStatus.Status; status != "" && status != "OK" {
		return nil, types.NewError(types.KindNoTranscript,
			fmt.Sprintf("Could not retrieve a transcript: video unavailable (%s)", strings.ToLower(status)), nil)
	}
	if pr.Captions == nil || len(pr.Captions.Renderer.CaptionTracks) == 0 {
		return nil, types.NewError(types.KindNoTranscript, msgNoTranscript, nil)
	}

	tracks := make([]Track, 0, len(pr.Captions.Renderer.CaptionTracks))
	for _, c := range pr.Captions.Renderer.CaptionTracks {
		tracks = append(tracks, Track{
			LanguageCode: c.LanguageCode,
			Name:         c.name(),
			Generated:    c.Kind == "asr",
			BaseURL:      c.BaseURL,
		})
	}
	return tracks, nil
}

// FetchTrack downloads and decodes one timedtext track.
func (s *WatchPageSource) FetchTrack(ctx context.Context, track Track) ([]Cue, error) {
	trackURL, err := s.trackURL(track.BaseURL)
	if err != nil {
		return nil, err
	}
	res, err := fetch.URL(ctx, trackURL, s.Options)
	if err != nil {
		return nil, err
	}
	return parseTimedText(res.Body)
}

func (s *WatchPageSource) watchURL(videoID string) string {
	base := strings.TrimRight(s.BaseURL, "/")
	if base == "" {
		base = defaultWatchBase
	}
	return base + "/watch?v=" + url.QueryEscape(videoID)
}

// trackURL resolves relative track URLs and drops the fmt parameter so the
// endpoint answers with the classic <transcript> document.
func (s *WatchPageSource) trackURL(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("caption track has no URL")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid caption track URL: %w", err)
	}
	if !u.IsAbs() {
		base, err := url.Parse(s.watchURL(""))
		if err != nil {
			return "", err
		}
		u = base.ResolveReference(u)
	}
	q := u.Query()
	q.Del("fmt")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func parsePlayerResponse(page string) (*playerResponse, error) {
	scripts, err := fetch.ScriptsContaining(page, playerMarker)
	if err != nil {
		return nil, err
	}
	for _, script := range scripts {
		idx := strings.Index(script, playerMarker)
		rest := script[idx+len(playerMarker):]
		eq := strings.Index(rest, "=")
		if eq < 0 {
			continue
		}
		var pr playerResponse
		// The decoder stops after the first JSON value, ignoring the trailing script.
		if err := json.NewDecoder(strings.NewReader(rest[eq+1:])).Decode(&pr); err != nil {
			continue
		}
		return &pr, nil
	}
	return nil, fmt.Errorf("player response not found in watch page")
}

type timedText struct {
	Texts []struct {
		Start string `xml:"start,attr"`
		Dur   string `xml:"dur,attr"`
		Body  string `xml:",chardata"`
	} `xml:"text"`
}

func parseTimedText(body string) ([]Cue, error) {
	if strings.TrimSpace(body) == "" {
		return nil, nil
	}
	var doc timedText
	if err := xml.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("decode timedtext: %w", err)
	}

	cues := make([]Cue, 0, len(doc.Texts))
	for _, t := range doc.Texts {
		text := strings.TrimSpace(html.UnescapeString(t.Body))
		if text == "" {
			continue
		}
		start, _ := strconv.ParseFloat(t.Start, 64)
		dur, _ := strconv.ParseFloat(t.Dur, 64)
		cues = append(cues, Cue{Text: text, Start: start, Duration: dur})
	}
	return cues, nil
}
