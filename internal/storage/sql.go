package storage

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jonathan/transcript-archiver/internal/db"
	"github.com/jonathan/transcript-archiver/internal/logging"
	"github.com/jonathan/transcript-archiver/internal/types"
)

// SQLStore keeps records in a SQL table keyed by video ID.
type SQLStore struct {
	db     *db.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewSQLStore wraps an open database.
func NewSQLStore(database *db.DB, logger *slog.Logger) *SQLStore {
	return &SQLStore{db: database, logger: logging.OrDiscard(logger), now: time.Now}
}

// Close releases the underlying database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) Exists(ctx context.Context, videoID string) (bool, error) {
	return s.db.TranscriptExists(ctx, videoID)
}

// Save inserts the record. The primary key makes the duplicate check atomic.
func (s *SQLStore) Save(ctx context.Context, req SaveRequest) (*SaveResult, error) {
	if err := validateSave(req); err != nil {
		return nil, types.NewError(types.KindStorageWrite, err.Error(), nil)
	}

	exists, err := s.db.TranscriptExists(ctx, req.VideoID)
	if err != nil {
		return nil, writeError("existence check failed", err)
	}
	if exists {
		return &SaveResult{Duplicate: true}, nil
	}

	rec := BuildRecord(req, s.now())
	data, err := encodeRecord(rec)
	if err != nil {
		return nil, writeError("invalid record", err)
	}

	name := RecordName(req.VideoID, req.Title)
	row := &db.TranscriptRow{
		VideoID:      rec.VideoID,
		Channel:      rec.Channel,
		ChannelDir:   Sanitize(req.Channel),
		Name:         name,
		Path:         RecordPath(req.Channel, name),
		ChannelID:    rec.ChannelID,
		Title:        rec.Title,
		PublishedAt:  rec.PublishedAt,
		DownloadedAt: rec.DownloadedAt,
		Content:      string(data),
	}
	inserted, err := s.db.InsertTranscript(ctx, row)
	if err != nil {
		return nil, writeError("failed to write transcript", err)
	}
	if !inserted {
		return &SaveResult{Duplicate: true}, nil
	}

	s.logger.Info("transcript stored", "video_id", req.VideoID, "path", row.Path)
	return &SaveResult{Path: row.Path}, nil
}

func (s *SQLStore) Get(ctx context.Context, channel, name string) (*types.TranscriptRecord, error) {
	row, err := s.db.GetTranscript(ctx, Sanitize(channel), Sanitize(name))
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeRecord([]byte(row.Content))
}

func (s *SQLStore) List(ctx context.Context, channel string) ([]types.TranscriptSummary, error) {
	dir := ""
	if channel != "" {
		dir = Sanitize(channel)
	}
	rows, err := s.db.ListTranscripts(ctx, dir)
	if err != nil {
		return nil, err
	}
	out := make([]types.TranscriptSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, summaryFromRow(r))
	}
	return out, nil
}

func (s *SQLStore) ListChannels(ctx context.Context) ([]string, error) {
	return s.db.ListChannelDirs(ctx)
}

// ListAll returns every record with its header fields.
func (s *SQLStore) ListAll(ctx context.Context) ([]types.TranscriptDetail, error) {
	rows, err := s.db.ListTranscripts(ctx, "")
	if err != nil {
		return nil, err
	}
	out := make([]types.TranscriptDetail, 0, len(rows))
	for _, r := range rows {
		out = append(out, types.TranscriptDetail{
			TranscriptSummary: summaryFromRow(r),
			VideoID:           r.VideoID,
			ChannelID:         r.ChannelID,
			Title:             r.Title,
			ChannelName:       r.Channel,
			PublishedAt:       r.PublishedAt,
			DownloadedAt:      r.DownloadedAt,
		})
	}
	return out, nil
}

// Search matches titles and transcript text. Title matches rank first.
func (s *SQLStore) Search(ctx context.Context, query string) ([]types.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []types.SearchResult{}, nil
	}
	rows, err := s.db.SearchTranscripts(ctx, query, searchLimit)
	if err != nil {
		return nil, err
	}
	out := make([]types.SearchResult, 0, len(rows))
	for i, r := range rows {
		out = append(out, types.SearchResult{
			Name:    r.Name,
			Path:    r.Path,
			Channel: r.ChannelDir,
			Score:   positionScore(i, len(rows)),
		})
	}
	return out, nil
}

func (s *SQLStore) Stats(ctx context.Context) (*types.StorageStats, error) {
	channels, err := s.db.ListChannelDirs(ctx)
	if err != nil {
		return nil, err
	}
	total, err := s.db.CountTranscripts(ctx)
	if err != nil {
		return nil, err
	}
	if channels == nil {
		channels = []string{}
	}
	return &types.StorageStats{TotalChannels: len(channels), TotalTranscripts: total, Channels: channels}, nil
}

// Init re-applies the schema migrations.
func (s *SQLStore) Init(ctx context.Context) error {
	return s.db.Migrate(ctx)
}

func summaryFromRow(r db.TranscriptRow) types.TranscriptSummary {
	return types.TranscriptSummary{
		Name:    r.Name,
		Path:    r.Path,
		Channel: r.ChannelDir,
		Size:    len(r.Content),
	}
}
