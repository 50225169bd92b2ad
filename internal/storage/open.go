package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/jonathan/transcript-archiver/internal/config"
	"github.com/jonathan/transcript-archiver/internal/db"
	"github.com/jonathan/transcript-archiver/internal/types"
)

// Open builds the store selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case config.BackendGitHub, "":
		return NewGitHubStore(GitHubConfig{
			Token:   cfg.GitHub.Token,
			Owner:   cfg.GitHub.Owner,
			Repo:    cfg.GitHub.Repo,
			Branch:  cfg.GitHub.Branch,
			BaseURL: cfg.GitHub.BaseURL,
		}, http.DefaultClient, logger)
	case config.BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, types.NewError(types.KindConfiguration, "DATABASE_URL is required for the postgres backend", nil)
		}
		database, err := db.Open(ctx, db.DriverPostgres, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return NewSQLStore(database, logger), nil
	case config.BackendSQLite:
		database, err := db.Open(ctx, db.DriverSQLite, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return NewSQLStore(database, logger), nil
	default:
		return nil, types.NewError(types.KindConfiguration, fmt.Sprintf("unknown storage backend %q", cfg.Backend), nil)
	}
}

// Close releases resources held by s, if any.
func Close(s Store) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
