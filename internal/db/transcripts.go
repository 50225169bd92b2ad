package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// ErrNotFound is returned when no row matches a lookup.
var ErrNotFound = errors.New("not found")

// TranscriptRow is one stored transcript. Content holds the serialized record.
type TranscriptRow struct {
	VideoID      string
	Channel      string
	ChannelDir   string
	Name         string
	Path         string
	ChannelID    string
	Title        string
	PublishedAt  string
	DownloadedAt string
	Content      string
}

var transcriptColumns = []string{
	"video_id", "channel", "channel_dir", "name", "path",
	"channel_id", "title", "published_at", "downloaded_at", "content",
}

func scanTranscript(row interface{ Scan(...any) error }) (*TranscriptRow, error) {
	var t TranscriptRow
	err := row.Scan(&t.VideoID, &t.Channel, &t.ChannelDir, &t.Name, &t.Path,
		&t.ChannelID, &t.Title, &t.PublishedAt, &t.DownloadedAt, &t.Content)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// InsertTranscript stores t unless a row with the same video ID exists.
// It reports whether the row was inserted.
func (db *DB) InsertTranscript(ctx context.Context, t *TranscriptRow) (bool, error) {
	query, args, err := db.builder.
		Insert("transcripts").
		Columns(transcriptColumns...).
		Values(t.VideoID, t.Channel, t.ChannelDir, t.Name, t.Path,
			t.ChannelID, t.Title, t.PublishedAt, t.DownloadedAt, t.Content).
		Suffix("ON CONFLICT (video_id) DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build insert: %w", err)
	}

	res, err := db.execResult(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to insert transcript: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// TranscriptExists reports whether a row for videoID exists.
func (db *DB) TranscriptExists(ctx context.Context, videoID string) (bool, error) {
	query, args, err := db.builder.
		Select("1").From("transcripts").
		Where(sq.Eq{"video_id": videoID}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists: %w", err)
	}

	var one int
	err = db.sql.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check transcript: %w", err)
	}
	return true, nil
}

// GetTranscript returns the row stored under channelDir with the given name.
func (db *DB) GetTranscript(ctx context.Context, channelDir, name string) (*TranscriptRow, error) {
	query, args, err := db.builder.
		Select(transcriptColumns...).From("transcripts").
		Where(sq.Eq{"channel_dir": channelDir, "name": name}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get: %w", err)
	}

	t, err := scanTranscript(db.sql.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transcript: %w", err)
	}
	return t, nil
}

// ListTranscripts returns rows ordered by path. An empty channelDir lists every channel.
func (db *DB) ListTranscripts(ctx context.Context, channelDir string) ([]TranscriptRow, error) {
	q := db.builder.Select(transcriptColumns...).From("transcripts").OrderBy("path")
	if channelDir != "" {
		q = q.Where(sq.Eq{"channel_dir": channelDir})
	}
	return db.queryTranscripts(ctx, q)
}

// SearchTranscripts returns rows whose title or transcript contains term,
// title matches first. At most limit rows are returned.
func (db *DB) SearchTranscripts(ctx context.Context, term string, limit uint64) ([]TranscriptRow, error) {
	pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
	q := db.builder.Select(transcriptColumns...).From("transcripts").
		Where(sq.Or{
			sq.Expr(`LOWER(title) LIKE ? ESCAPE '\'`, pattern),
			sq.Expr(`LOWER(content) LIKE ? ESCAPE '\'`, pattern),
		}).
		OrderByClause(`CASE WHEN LOWER(title) LIKE ? ESCAPE '\' THEN 0 ELSE 1 END`, pattern).
		OrderBy("path").
		Limit(limit)
	return db.queryTranscripts(ctx, q)
}

// ListChannelDirs returns the distinct channel directories in sorted order.
func (db *DB) ListChannelDirs(ctx context.Context) ([]string, error) {
	query, args, err := db.builder.
		Select("DISTINCT channel_dir").From("transcripts").
		OrderBy("channel_dir").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build channels: %w", err)
	}

	rows, err := db.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var dirs []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan channel: %w", err)
		}
		dirs = append(dirs, d)
	}
	return dirs, rows.Err()
}

// CountTranscripts returns the number of stored rows.
func (db *DB) CountTranscripts(ctx context.Context) (int, error) {
	query, args, err := db.builder.Select("COUNT(*)").From("transcripts").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	var n int
	if err := db.sql.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count transcripts: %w", err)
	}
	return n, nil
}

func (db *DB) queryTranscripts(ctx context.Context, q sq.SelectBuilder) ([]TranscriptRow, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := db.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcripts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []TranscriptRow
	for rows.Next() {
		t, err := scanTranscript(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transcript: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
