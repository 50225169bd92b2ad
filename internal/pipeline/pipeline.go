// Package pipeline downloads transcripts for a channel or an explicit list of videos.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/jonathan/transcript-archiver/internal/logging"
	"github.com/jonathan/transcript-archiver/internal/runs"
	"github.com/jonathan/transcript-archiver/internal/storage"
	"github.com/jonathan/transcript-archiver/internal/transcript"
	"github.com/jonathan/transcript-archiver/internal/types"
	"github.com/jonathan/transcript-archiver/internal/youtube"
)

const duplicateMessage = "Transcript already exists (duplicate)"

// Config selects the candidates of one run.
type Config struct {
	// ChannelQuery is a channel name, handle or ID. Ignored when VideoIDs is set.
	ChannelQuery string
	// VideoIDs is a comma-separated list of explicit video IDs.
	VideoIDs  string
	AfterDate *time.Time
	// Folder overrides the destination channel folder.
	Folder   string
	Delay    time.Duration
	MaxItems int
	APIKey   string
}

// ProgressEvent reports a state change during a run.
type ProgressEvent struct {
	RunID   string            `json:"run_id"`
	Status  types.RunStatus   `json:"status"`
	Message string            `json:"message"`
	Item    *types.ItemResult `json:"item,omitempty"`
}

// ProgressCallback is called when pipeline progress occurs
type ProgressCallback func(event ProgressEvent)

// Resolver maps a channel query to its ID, name and uploads.
type Resolver interface {
	ResolveChannel(ctx context.Context, query string) (string, error)
	ChannelTitle(ctx context.Context, channelID string) string
	ListUploads(ctx context.Context, channelID string, opts youtube.ListOptions) ([]types.ContentItem, error)
}

// Lister lists a channel's uploads.
type Lister interface {
	ListUploads(ctx context.Context, channelID string, opts youtube.ListOptions) ([]types.ContentItem, error)
}

// Fetcher retrieves one transcript.
type Fetcher interface {
	Fetch(ctx context.Context, videoID string) (*transcript.Result, error)
}

// KeyResolver picks the API key for a run.
type KeyResolver interface {
	Resolve(explicit string) (key, source string)
}

// ResolverFactory builds a Resolver authenticated with apiKey.
type ResolverFactory func(ctx context.Context, apiKey string) (Resolver, error)

// Deps are the collaborators of a Pipeline.
type Deps struct {
	NewResolver ResolverFactory
	// Lister replaces the resolver's upload listing when set.
	Lister  Lister
	Fetcher Fetcher
	Store   storage.Store
	Runs    *runs.Registry
	Keys    KeyResolver
	Logger  *slog.Logger

	// Sleep waits between items. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time

	OnProgress ProgressCallback
}

// Pipeline runs downloads sequentially, one network call at a time.
type Pipeline struct {
	deps   Deps
	logger *slog.Logger
}

// New validates deps and returns a Pipeline.
func New(deps Deps) (*Pipeline, error) {
	if deps.Fetcher == nil {
		return nil, errors.New("pipeline: fetcher is required")
	}
	if deps.Store == nil {
		return nil, errors.New("pipeline: store is required")
	}
	if deps.Runs == nil {
		deps.Runs = runs.NewRegistry()
	}
	if deps.Sleep == nil {
		deps.Sleep = sleepContext
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Pipeline{deps: deps, logger: logging.OrDiscard(deps.Logger).With("component", "pipeline")}, nil
}

// Runs returns the registry tracking this pipeline's runs.
func (p *Pipeline) Runs() *runs.Registry {
	return p.deps.Runs
}

// Start registers a run and executes it in the background, returning its ID immediately.
func (p *Pipeline) Start(cfg Config) string {
	id := p.deps.Runs.Create()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("pipeline run panicked", "run_id", id, "panic", r, "stack", string(debug.Stack()))
				p.fail(id, fmt.Errorf("internal error: %v", r))
			}
		}()
		_, _ = p.Run(context.Background(), id, cfg)
	}()
	return id
}

// Execute registers a run and executes it synchronously.
func (p *Pipeline) Execute(ctx context.Context, cfg Config) (string, *types.RunSummary, error) {
	id := p.deps.Runs.Create()
	summary, err := p.Run(ctx, id, cfg)
	return id, summary, err
}

// Run executes a registered run. Setup and resolution failures mark the run
// as error and are returned; per-item failures are recorded and never abort.
func (p *Pipeline) Run(ctx context.Context, runID string, cfg Config) (*types.RunSummary, error) {
	log := p.logger.With("run_id", runID)

	items, folder, err := p.candidates(ctx, runID, cfg)
	if err != nil {
		log.Error("run setup failed", "error", err)
		p.fail(runID, err)
		return nil, err
	}

	p.update(runID, func(rp *types.RunProgress) {
		rp.Status = types.RunDownloading
		rp.Total = len(items)
		rp.Folder = folder
	}, fmt.Sprintf("Found %d videos", len(items)), nil)
	log.Info("run started", "total", len(items), "folder", folder)

	delay := cfg.Delay
	if delay < 0 {
		delay = 0
	}

	for i, item := range items {
		res := p.processItem(ctx, folder, item)
		p.update(runID, func(rp *types.RunProgress) { rp.Record(res) },
			fmt.Sprintf("%s: %s", res.Status, item.Title), &res)

		if i == len(items)-1 {
			break
		}
		if err := p.deps.Sleep(ctx, delay); err != nil {
			log.Warn("run interrupted", "error", err)
			p.fail(runID, err)
			return p.summary(runID), err
		}
	}

	p.update(runID, func(rp *types.RunProgress) { rp.Status = types.RunCompleted }, "Run completed", nil)
	summary := p.summary(runID)
	log.Info("run completed",
		"success", summary.SuccessCount,
		"failed", summary.FailedCount,
		"duplicates", summary.DuplicateCount)
	return summary, nil
}

// candidates resolves the ordered item list and destination folder.
func (p *Pipeline) candidates(ctx context.Context, runID string, cfg Config) ([]types.ContentItem, string, error) {
	if ids := types.SplitVideoIDs(cfg.VideoIDs); len(ids) > 0 {
		items := make([]types.ContentItem, 0, len(ids))
		for _, id := range ids {
			items = append(items, types.ContentItem{ID: id, Title: types.PlaceholderTitle(id)})
		}
		folder := cfg.Folder
		if folder == "" {
			folder = types.DirectDownloadsFolder
		}
		return items, folder, nil
	}

	query := strings.TrimSpace(cfg.ChannelQuery)
	if query == "" {
		return nil, cfg.Folder, nil
	}

	p.update(runID, func(rp *types.RunProgress) { rp.Status = types.RunFetchingChannel },
		"Resolving channel "+query, nil)

	resolver, err := p.resolver(ctx, cfg.APIKey)
	if err != nil {
		return nil, "", err
	}

	channelID, err := resolver.ResolveChannel(ctx, query)
	if err != nil {
		return nil, "", err
	}
	name := resolver.ChannelTitle(ctx, channelID)
	if name == "" {
		name = query
	}

	var lister Lister = resolver
	if p.deps.Lister != nil {
		lister = p.deps.Lister
	}
	items, err := lister.ListUploads(ctx, channelID, youtube.ListOptions{After: cfg.AfterDate, Limit: cfg.MaxItems})
	if err != nil {
		return nil, "", err
	}
	for i := range items {
		items[i].ChannelID = channelID
		if items[i].ChannelName == "" {
			items[i].ChannelName = name
		}
	}

	folder := cfg.Folder
	if folder == "" {
		folder = name
	}
	return items, folder, nil
}

func (p *Pipeline) resolver(ctx context.Context, explicit string) (Resolver, error) {
	if p.deps.NewResolver == nil {
		return nil, types.NewError(types.KindConfiguration, "channel lookups are not configured", nil)
	}
	key := strings.TrimSpace(explicit)
	if p.deps.Keys != nil {
		key, _ = p.deps.Keys.Resolve(explicit)
	}
	if key == "" {
		return nil, types.NewError(types.KindConfiguration, "No API key provided", nil)
	}
	return p.deps.NewResolver(ctx, key)
}

// processItem probes, fetches and saves one item. It never returns an error;
// failures are captured in the result.
func (p *Pipeline) processItem(ctx context.Context, folder string, item types.ContentItem) types.ItemResult {
	res := types.ItemResult{VideoID: item.ID, Title: item.Title, PublishedAt: item.PublishedString()}
	log := p.logger.With("video_id", item.ID)

	exists, err := p.deps.Store.Exists(ctx, item.ID)
	if err != nil {
		log.Warn("existence check failed, treating as absent", "error", err)
	}
	if exists {
		return duplicate(res)
	}

	tr, err := p.deps.Fetcher.Fetch(ctx, item.ID)
	if err != nil {
		log.Info("transcript unavailable", "error", err)
		return failed(res, err)
	}

	saved, err := p.deps.Store.Save(ctx, storage.SaveRequest{
		Channel:    folder,
		VideoID:    item.ID,
		Title:      item.Title,
		Transcript: tr.Text,
		Metadata: types.TranscriptMetadata{
			TranscriptType: tr.Type,
			Duration:       tr.Duration,
			Language:       tr.Language,
			ChannelID:      item.ChannelID,
			PublishedAt:    item.PublishedString(),
		},
	})
	if err != nil {
		log.Warn("save failed", "error", err)
		if types.KindOf(err) == "" {
			err = types.NewError(types.KindStorageWrite, err.Error(), err)
		}
		return failed(res, err)
	}
	if saved.Duplicate {
		return duplicate(res)
	}

	res.Status = types.ItemSuccess
	res.Path = saved.Path
	res.URL = saved.URL
	return res
}

func duplicate(res types.ItemResult) types.ItemResult {
	res.Status = types.ItemDuplicate
	res.Kind = types.KindDuplicate
	res.Message = duplicateMessage
	return res
}

func failed(res types.ItemResult, err error) types.ItemResult {
	res.Status = types.ItemFailed
	res.Kind = types.KindOf(err)
	if res.Kind == "" {
		res.Kind = types.KindTranscriptFetchFailed
	}
	res.Message = types.MessageOf(err)
	return res
}

func (p *Pipeline) fail(runID string, err error) {
	msg := types.MessageOf(err)
	p.update(runID, func(rp *types.RunProgress) {
		rp.Status = types.RunError
		rp.Error = msg
	}, msg, nil)
}

func (p *Pipeline) update(runID string, fn func(*types.RunProgress), message string, item *types.ItemResult) {
	var status types.RunStatus
	p.deps.Runs.Update(runID, func(rp *types.RunProgress) {
		fn(rp)
		status = rp.Status
	})
	if p.deps.OnProgress != nil {
		p.deps.OnProgress(ProgressEvent{RunID: runID, Status: status, Message: message, Item: item})
	}
}

func (p *Pipeline) summary(runID string) *types.RunSummary {
	rp, _, ok := p.deps.Runs.Get(runID)
	if !ok {
		return &types.RunSummary{Results: []types.ItemResult{}}
	}
	return rp.Summary()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
