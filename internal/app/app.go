// Package app assembles the archiver's components from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonathan/transcript-archiver/internal/config"
	"github.com/jonathan/transcript-archiver/internal/fetch"
	"github.com/jonathan/transcript-archiver/internal/jobstore"
	"github.com/jonathan/transcript-archiver/internal/logging"
	"github.com/jonathan/transcript-archiver/internal/pipeline"
	"github.com/jonathan/transcript-archiver/internal/runs"
	"github.com/jonathan/transcript-archiver/internal/scheduler"
	"github.com/jonathan/transcript-archiver/internal/server"
	"github.com/jonathan/transcript-archiver/internal/storage"
	"github.com/jonathan/transcript-archiver/internal/transcript"
	"github.com/jonathan/transcript-archiver/internal/youtube"
)

// RunRetention is how long finished runs stay visible in the registry.
const RunRetention = 24 * time.Hour

// App holds the wired components of one process.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Store     storage.Store
	Keys      *config.KeyStore
	Runs      *runs.Registry
	Pipeline  *pipeline.Pipeline
	Scheduler *scheduler.Scheduler

	ownsStore bool
}

// Option customizes New.
type Option func(*options)

type options struct {
	logger      *slog.Logger
	store       storage.Store
	fetcher     pipeline.Fetcher
	newResolver pipeline.ResolverFactory
	now         func() time.Time
}

// WithLogger replaces the logger built from cfg.Logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithStore uses s instead of opening the configured backend. The caller keeps ownership.
func WithStore(s storage.Store) Option {
	return func(o *options) { o.store = s }
}

// WithFetcher replaces the watch-page transcript fetcher.
func WithFetcher(f pipeline.Fetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// WithResolverFactory replaces the YouTube Data API resolver.
func WithResolverFactory(f pipeline.ResolverFactory) Option {
	return func(o *options) { o.newResolver = f }
}

// WithClock sets the time source for the pipeline and scheduler.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New builds every component selected by cfg. The scheduler is created
// but not started; it is nil when cfg.Scheduler.Enabled is false.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.now == nil {
		o.now = time.Now
	}

	logger := o.logger
	if logger == nil {
		l, err := logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
		if err != nil {
			return nil, err
		}
		logger = l
	}

	a := &App{Config: cfg, Logger: logger, Store: o.store}
	if a.Store == nil {
		store, err := storage.Open(ctx, cfg.Storage, logger)
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		a.Store = store
		a.ownsStore = true
	}

	a.Keys = config.NewKeyStore(cfg.YouTube.APIKeyFile, cfg.YouTube.APIKey)
	a.Runs = runs.NewRegistry()

	deps := pipeline.Deps{
		NewResolver: o.newResolver,
		Fetcher:     o.fetcher,
		Store:       a.Store,
		Runs:        a.Runs,
		Keys:        a.Keys,
		Logger:      logger,
		Now:         o.now,
	}
	if deps.NewResolver == nil {
		deps.NewResolver = dataAPIResolver(logger)
	}
	if cfg.YouTube.Listing == config.ListingFeed {
		deps.Lister = youtube.NewFeedLister(&http.Client{Timeout: cfg.YouTube.RequestTimeout}, logger)
	}
	if deps.Fetcher == nil {
		deps.Fetcher = watchPageFetcher(cfg.YouTube, logger)
	}

	p, err := pipeline.New(deps)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Pipeline = p

	if cfg.Scheduler.Enabled {
		s, err := scheduler.New(ctx, jobstore.NewFileStore(cfg.Scheduler.JobsFile), p, scheduler.Options{
			Location:     cfg.Scheduler.Location(),
			CatchupDelay: cfg.Scheduler.CatchupDelay,
			Delay:        cfg.Download.Delay,
			Now:          o.now,
			Logger:       logger,
		})
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("create scheduler: %w", err)
		}
		a.Scheduler = s
	}

	logger.Debug("application assembled",
		"backend", cfg.Storage.Backend,
		"listing", cfg.YouTube.Listing,
		"scheduler", cfg.Scheduler.Enabled,
	)
	return a, nil
}

// Server builds the HTTP server over the app's components.
func (a *App) Server() (*server.Server, error) {
	return server.New(server.Deps{
		Config:    a.Config,
		Pipeline:  a.Pipeline,
		Store:     a.Store,
		Scheduler: a.Scheduler,
		Keys:      a.Keys,
		Logger:    a.Logger,
	})
}

// PruneRuns drops finished runs older than RunRetention every interval until ctx ends.
func (a *App) PruneRuns(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.Runs.Prune(RunRetention); n > 0 {
				a.Logger.Debug("pruned finished runs", "count", n)
			}
		}
	}
}

// Close stops the scheduler and releases the store if New opened it.
func (a *App) Close() error {
	var errs []error
	if a.Scheduler != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := a.Scheduler.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.ownsStore && a.Store != nil {
		if err := storage.Close(a.Store); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}
	return errors.Join(errs...)
}

func dataAPIResolver(logger *slog.Logger) pipeline.ResolverFactory {
	return func(ctx context.Context, apiKey string) (pipeline.Resolver, error) {
		c, err := youtube.NewClient(ctx, apiKey, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

func watchPageFetcher(cfg config.YouTubeConfig, logger *slog.Logger) *transcript.Fetcher {
	opts := fetch.DefaultOptions()
	if cfg.RequestTimeout > 0 {
		opts.Timeout = cfg.RequestTimeout
	}
	source := transcript.NewWatchPageSource(opts, cfg.UseBrowser, cfg.BrowserTimeout, logger)
	return transcript.NewFetcher(source, cfg.Language, logger)
}
