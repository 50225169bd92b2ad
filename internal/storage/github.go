package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/transcript-archiver/internal/logging"
	"github.com/jonathan/transcript-archiver/internal/types"
)

const (
	readmePath  = "README.md"
	gitkeepPath = ChannelsDir + "/.gitkeep"

	// detailConcurrency bounds per-file fetches in ListAll.
	detailConcurrency = 8
)

const readmeContent = `# YouTube Transcripts Database

Transcripts of YouTube videos, collected automatically and organized by channel.

## Structure

    channels/
    ├── <channel_name>/
    │   ├── <video_id>_<title>.json
    │   └── ...
    └── ...

## Record format

- ` + "`video_id`" + `: YouTube video ID
- ` + "`title`" + `: video title
- ` + "`channel`" + `: channel name
- ` + "`downloaded_at`" + `: download timestamp
- ` + "`transcript`" + `: full transcript text
- ` + "`metadata`" + `: transcript type, duration and language
`

// GitHubConfig addresses the repository backing a GitHubStore.
type GitHubConfig struct {
	Token   string
	Owner   string
	Repo    string
	Branch  string
	BaseURL string
}

// GitHubStore keeps records as JSON files in a GitHub repository.
type GitHubStore struct {
	client *github.Client
	owner  string
	repo   string
	branch string
	logger *slog.Logger
	now    func() time.Time
}

// NewGitHubStore creates a store for cfg. httpClient may be nil.
func NewGitHubStore(cfg GitHubConfig, httpClient *http.Client, logger *slog.Logger) (*GitHubStore, error) {
	if cfg.Owner == "" || cfg.Repo == "" {
		return nil, types.NewError(types.KindConfiguration, "GitHub repository owner and name are required", nil)
	}

	client := github.NewClient(httpClient)
	if cfg.Token != "" {
		client = client.WithAuthToken(cfg.Token)
	}
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, types.NewError(types.KindConfiguration, "invalid GitHub base URL", err)
		}
		client.BaseURL = u
	}

	branch := cfg.Branch
	if branch == "" {
		branch = "main"
	}

	return &GitHubStore{
		client: client,
		owner:  cfg.Owner,
		repo:   cfg.Repo,
		branch: branch,
		logger: logging.OrDiscard(logger),
		now:    time.Now,
	}, nil
}

// Exists searches the repository for a record carrying videoID.
func (s *GitHubStore) Exists(ctx context.Context, videoID string) (bool, error) {
	q := fmt.Sprintf(`"video_id": "%s" repo:%s/%s`, videoID, s.owner, s.repo)
	res, _, err := s.client.Search.Code(ctx, q, &github.SearchOptions{
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err != nil {
		return false, s.classify("existence check failed", err)
	}
	return res.GetTotal() > 0 || len(res.CodeResults) > 0, nil
}

// Save writes the record for req unless one already exists for its video.
func (s *GitHubStore) Save(ctx context.Context, req SaveRequest) (*SaveResult, error) {
	if err := validateSave(req); err != nil {
		return nil, types.NewError(types.KindStorageWrite, err.Error(), nil)
	}

	exists, err := s.Exists(ctx, req.VideoID)
	if err != nil {
		return nil, err
	}
	if exists {
		return &SaveResult{Duplicate: true}, nil
	}

	rec := BuildRecord(req, s.now())
	data, err := encodeRecord(rec)
	if err != nil {
		return nil, writeError("invalid record", err)
	}

	filePath := repoPath(RecordPath(req.Channel, RecordName(req.VideoID, req.Title)))
	opts := &github.RepositoryContentFileOptions{
		Message: github.String(fmt.Sprintf("Add transcript: %s from %s", req.Title, req.Channel)),
		Content: data,
		Branch:  github.String(s.branch),
	}

	sha, err := s.fileSHA(ctx, filePath)
	if err != nil {
		return nil, s.classify("failed to inspect existing file", err)
	}

	var resp *github.RepositoryContentResponse
	if sha != "" {
		opts.SHA = github.String(sha)
		opts.Message = github.String(fmt.Sprintf("Update transcript: %s from %s", req.Title, req.Channel))
		resp, _, err = s.client.Repositories.UpdateFile(ctx, s.owner, s.repo, filePath, opts)
	} else {
		resp, _, err = s.client.Repositories.CreateFile(ctx, s.owner, s.repo, filePath, opts)
	}
	if err != nil {
		return nil, s.classify("failed to write transcript", err)
	}

	s.logger.Info("transcript stored", "video_id", req.VideoID, "path", filePath)
	return &SaveResult{Path: filePath, URL: resp.GetContent().GetHTMLURL()}, nil
}

// Get reads one record.
func (s *GitHubStore) Get(ctx context.Context, channel, name string) (*types.TranscriptRecord, error) {
	file, _, _, err := s.client.Repositories.GetContents(ctx, s.owner, s.repo, repoPath(RecordPath(channel, name)), s.ref())
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, s.classify("failed to read transcript", err)
	}
	if file == nil {
		return nil, ErrNotFound
	}
	content, err := file.GetContent()
	if err != nil {
		return nil, fmt.Errorf("failed to decode file content: %w", err)
	}
	return decodeRecord([]byte(content))
}

// ListChannels returns the channel directories.
func (s *GitHubStore) ListChannels(ctx context.Context) ([]string, error) {
	entries, err := s.dir(ctx, ChannelsDir)
	if err != nil {
		return nil, err
	}
	var channels []string
	for _, e := range entries {
		if e.GetType() == "dir" {
			channels = append(channels, e.GetName())
		}
	}
	return channels, nil
}

// List returns the records of one channel, or of all channels when channel is empty.
func (s *GitHubStore) List(ctx context.Context, channel string) ([]types.TranscriptSummary, error) {
	if channel != "" {
		return s.listChannel(ctx, channel)
	}

	channels, err := s.ListChannels(ctx)
	if err != nil {
		return nil, err
	}
	var out []types.TranscriptSummary
	for _, ch := range channels {
		items, err := s.listChannel(ctx, ch)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
	}
	return out, nil
}

func (s *GitHubStore) listChannel(ctx context.Context, channel string) ([]types.TranscriptSummary, error) {
	entries, err := s.dir(ctx, repoPath(ChannelPath(channel)))
	if err != nil {
		return nil, err
	}
	var out []types.TranscriptSummary
	for _, e := range entries {
		if e.GetType() != "file" || !strings.HasSuffix(e.GetName(), ".json") {
			continue
		}
		out = append(out, types.TranscriptSummary{
			Name:        nameFromFile(e.GetName()),
			Path:        e.GetPath(),
			Channel:     channel,
			Size:        e.GetSize(),
			URL:         e.GetHTMLURL(),
			DownloadURL: e.GetDownloadURL(),
		})
	}
	return out, nil
}

// ListAll fetches every record for its header fields. Records that cannot
// be read are reported with their listing info only.
func (s *GitHubStore) ListAll(ctx context.Context) ([]types.TranscriptDetail, error) {
	summaries, err := s.List(ctx, "")
	if err != nil {
		return nil, err
	}

	out := make([]types.TranscriptDetail, len(summaries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(detailConcurrency)
	for i, sum := range summaries {
		g.Go(func() error {
			out[i] = types.TranscriptDetail{TranscriptSummary: sum, Title: sum.Name, ChannelName: sum.Channel}
			rec, err := s.Get(gctx, sum.Channel, sum.Name)
			if err != nil {
				s.logger.Warn("failed to load transcript details", "path", sum.Path, "error", err)
				return nil
			}
			out[i] = detailFromRecord(sum, rec)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Search runs a code search scoped to the repository.
func (s *GitHubStore) Search(ctx context.Context, query string) ([]types.SearchResult, error) {
	q := fmt.Sprintf("%s repo:%s/%s", query, s.owner, s.repo)
	res, _, err := s.client.Search.Code(ctx, q, &github.SearchOptions{
		ListOptions: github.ListOptions{PerPage: searchLimit},
	})
	if err != nil {
		return nil, s.classify("search failed", err)
	}

	out := make([]types.SearchResult, 0, len(res.CodeResults))
	for i, r := range res.CodeResults {
		out = append(out, types.SearchResult{
			Name:    nameFromFile(r.GetName()),
			Path:    r.GetPath(),
			Channel: channelFromPath(r.GetPath()),
			URL:     r.GetHTMLURL(),
			Score:   positionScore(i, len(res.CodeResults)),
		})
	}
	return out, nil
}

// Stats counts channels and records.
func (s *GitHubStore) Stats(ctx context.Context) (*types.StorageStats, error) {
	channels, err := s.ListChannels(ctx)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, ch := range channels {
		items, err := s.listChannel(ctx, ch)
		if err != nil {
			return nil, err
		}
		total += len(items)
	}
	if channels == nil {
		channels = []string{}
	}
	return &types.StorageStats{TotalChannels: len(channels), TotalTranscripts: total, Channels: channels}, nil
}

// Init writes the README and the channels directory placeholder.
func (s *GitHubStore) Init(ctx context.Context) error {
	files := []struct {
		path    string
		message string
		content []byte
	}{
		{readmePath, "Initialize transcript database", []byte(readmeContent)},
		{gitkeepPath, "Create channels directory", []byte{}},
	}
	for _, f := range files {
		sha, err := s.fileSHA(ctx, f.path)
		if err != nil {
			return s.classify("failed to inspect "+f.path, err)
		}
		if sha != "" {
			continue
		}
		_, _, err = s.client.Repositories.CreateFile(ctx, s.owner, s.repo, f.path, &github.RepositoryContentFileOptions{
			Message: github.String(f.message),
			Content: f.content,
			Branch:  github.String(s.branch),
		})
		if err != nil {
			return s.classify("failed to create "+f.path, err)
		}
		s.logger.Info("storage initialized", "path", f.path)
	}
	return nil
}

func (s *GitHubStore) ref() *github.RepositoryContentGetOptions {
	return &github.RepositoryContentGetOptions{Ref: s.branch}
}

// fileSHA returns the blob sha at p, or "" when no file exists there.
func (s *GitHubStore) fileSHA(ctx context.Context, p string) (string, error) {
	file, _, _, err := s.client.Repositories.GetContents(ctx, s.owner, s.repo, p, s.ref())
	if err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", err
	}
	return file.GetSHA(), nil
}

// dir lists a directory. A missing directory is empty.
func (s *GitHubStore) dir(ctx context.Context, p string) ([]*github.RepositoryContent, error) {
	_, entries, _, err := s.client.Repositories.GetContents(ctx, s.owner, s.repo, p, s.ref())
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, s.classify("failed to list "+p, err)
	}
	return entries, nil
}

func (s *GitHubStore) classify(msg string, err error) error {
	var rle *github.RateLimitError
	var abuse *github.AbuseRateLimitError
	if errors.As(err, &rle) || errors.As(err, &abuse) {
		return types.NewError(types.KindRateLimited, "GitHub rate limit exceeded", err)
	}
	return writeError(msg, err)
}

func isNotFound(err error) bool {
	var er *github.ErrorResponse
	return errors.As(err, &er) && er.Response != nil && er.Response.StatusCode == http.StatusNotFound
}

// repoPath collapses ".." runs, which the contents API refuses in paths.
func repoPath(p string) string {
	for strings.Contains(p, "..") {
		p = strings.ReplaceAll(p, "..", ".")
	}
	return p
}

func channelFromPath(p string) string {
	dir := path.Dir(p)
	if path.Dir(dir) != ChannelsDir {
		return ""
	}
	return path.Base(dir)
}

func detailFromRecord(sum types.TranscriptSummary, rec *types.TranscriptRecord) types.TranscriptDetail {
	return types.TranscriptDetail{
		TranscriptSummary: sum,
		VideoID:           rec.VideoID,
		ChannelID:         rec.ChannelID,
		Title:             rec.Title,
		ChannelName:       rec.Channel,
		PublishedAt:       rec.PublishedAt,
		DownloadedAt:      rec.DownloadedAt,
	}
}
