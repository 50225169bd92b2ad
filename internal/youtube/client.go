// Package youtube resolves channels and lists their uploads.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"github.com/jonathan/transcript-archiver/internal/logging"
	"github.com/jonathan/transcript-archiver/internal/types"
)

// pageSize is the maximum page size accepted by playlistItems.list.
const pageSize = 50

var channelIDPattern = regexp.MustCompile(`^UC[0-9A-Za-z_-]{22}$`)

// ListOptions bounds an upload listing.
type ListOptions struct {
	// After keeps only items published strictly after this instant.
	After *time.Time
	// Limit stops collection once this many items matched; zero means no limit.
	Limit int
}

// keep reports whether an item published at t passes the After filter.
func (o ListOptions) keep(t time.Time) bool {
	return o.After == nil || t.After(*o.After)
}

func (o ListOptions) full(n int) bool {
	return o.Limit > 0 && n >= o.Limit
}

// Client talks to the YouTube Data API.
type Client struct {
	svc    *yt.Service
	logger *slog.Logger
}

// NewClient builds a Data API client authenticated with apiKey.
// Extra options are appended, which lets tests point the client at a fake endpoint.
func NewClient(ctx context.Context, apiKey string, logger *slog.Logger, opts ...option.ClientOption) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, types.NewError(types.KindConfiguration, "No API key provided", nil)
	}
	all := append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := yt.NewService(ctx, all...)
	if err != nil {
		return nil, types.NewError(types.KindConfiguration, "failed to create YouTube client", err)
	}
	return &Client{svc: svc, logger: logging.OrDiscard(logger).With("component", "youtube")}, nil
}

// ResolveChannel maps a channel name, handle or ID to a channel ID.
// Searches take the first match without disambiguation.
func (c *Client) ResolveChannel(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if channelIDPattern.MatchString(query) {
		return query, nil
	}

	resp, err := c.svc.Search.List([]string{"snippet"}).
		Type("channel").
		Q(query).
		MaxResults(1).
		Context(ctx).
		Do()
	if err != nil {
		return "", upstreamError("channel search", err)
	}
	for _, item := range resp.Items {
		if item.Id != nil && item.Id.ChannelId != "" {
			c.logger.Debug("resolved channel", "query", query, "channel_id", item.Id.ChannelId)
			return item.Id.ChannelId, nil
		}
	}
	return "", types.NewError(types.KindChannelNotFound, fmt.Sprintf("No channel found for %q", query), nil)
}

// ChannelTitle returns the channel's display name, or "" if it cannot be read.
func (c *Client) ChannelTitle(ctx context.Context, channelID string) string {
	resp, err := c.svc.Channels.List([]string{"snippet"}).Id(channelID).Context(ctx).Do()
	if err != nil {
		c.logger.Warn("channel title lookup failed", "channel_id", channelID, "error", err)
		return ""
	}
	if len(resp.Items) == 0 || resp.Items[0].Snippet == nil {
		return ""
	}
	return resp.Items[0].Snippet.Title
}

// UploadsPlaylist returns the ID of the channel's uploads playlist.
func (c *Client) UploadsPlaylist(ctx context.Context, channelID string) (string, error) {
	resp, err := c.svc.Channels.List([]string{"contentDetails"}).Id(channelID).Context(ctx).Do()
	if err != nil {
		return "", upstreamError("channel details", err)
	}
	if len(resp.Items) == 0 || resp.Items[0].ContentDetails == nil || resp.Items[0].ContentDetails.RelatedPlaylists == nil {
		return "", types.NewError(types.KindUpstreamAPI, fmt.Sprintf("no channel details found for %s", channelID), nil)
	}
	uploads := resp.Items[0].ContentDetails.RelatedPlaylists.Uploads
	if uploads == "" {
		return "", types.NewError(types.KindUpstreamAPI, fmt.Sprintf("channel %s has no uploads playlist", channelID), nil)
	}
	return uploads, nil
}

// ListItems pages through a playlist in upstream order, applying the After
// filter, and stops requesting pages as soon as Limit items were collected.
func (c *Client) ListItems(ctx context.Context, playlistID string, opts ListOptions) ([]types.ContentItem, error) {
	var items []types.ContentItem
	pageToken := ""

	for {
		call := c.svc.PlaylistItems.List([]string{"snippet"}).
			PlaylistId(playlistID).
			MaxResults(pageSize).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, upstreamError("playlist listing", err)
		}

		for _, it := range resp.Items {
			s := it.Snippet
			if s == nil || s.ResourceId == nil || s.ResourceId.VideoId == "" {
				continue
			}
			published, err := time.Parse(time.RFC3339, s.PublishedAt)
			if err != nil {
				c.logger.Warn("unparseable publish time", "video_id", s.ResourceId.VideoId, "value", s.PublishedAt)
				if opts.After != nil {
					continue
				}
			}
			if !opts.keep(published) {
				continue
			}
			items = append(items, types.ContentItem{
				ID:          s.ResourceId.VideoId,
				Title:       s.Title,
				PublishedAt: published,
				ChannelName: s.ChannelTitle,
				ChannelID:   s.ChannelId,
			})
			if opts.full(len(items)) {
				return items, nil
			}
		}

		if resp.NextPageToken == "" {
			return items, nil
		}
		pageToken = resp.NextPageToken
	}
}

// ListUploads lists a channel's uploads through its uploads playlist.
func (c *Client) ListUploads(ctx context.Context, channelID string, opts ListOptions) ([]types.ContentItem, error) {
	playlistID, err := c.UploadsPlaylist(ctx, channelID)
	if err != nil {
		return nil, err
	}
	return c.ListItems(ctx, playlistID, opts)
}

func upstreamError(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		msg := gerr.Message
		if msg == "" {
			msg = strings.TrimSpace(gerr.Body)
		}
		return types.NewError(types.KindUpstreamAPI,
			types.Truncate(fmt.Sprintf("YouTube API error during %s (%d): %s", op, gerr.Code, msg), types.MaxDiagnosticLength), err)
	}
	return types.NewError(types.KindUpstreamAPI, fmt.Sprintf("YouTube API request failed during %s", op), err)
}
