package youtube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/jonathan/transcript-archiver/internal/logging"
	"github.com/jonathan/transcript-archiver/internal/types"
)

const defaultFeedBase = "https://www.youtube.com/feeds/videos.xml"

// FeedLister lists a channel's most recent uploads from its public Atom feed.
// The feed carries only the latest entries but costs no API quota.
type FeedLister struct {
	BaseURL string
	Client  *http.Client
	logger  *slog.Logger
}

// NewFeedLister returns a lister for the public feed endpoint.
func NewFeedLister(client *http.Client, logger *slog.Logger) *FeedLister {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &FeedLister{
		BaseURL: defaultFeedBase,
		Client:  client,
		logger:  logging.OrDiscard(logger).With("component", "youtube-feed"),
	}
}

// ListUploads returns feed entries newest-first with the same filter and
// limit semantics as the API listing.
func (f *FeedLister) ListUploads(ctx context.Context, channelID string, opts ListOptions) ([]types.ContentItem, error) {
	feedURL := f.BaseURL + "?channel_id=" + url.QueryEscape(channelID)

	parser := gofeed.NewParser()
	parser.Client = f.Client
	feed, err := parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		var herr gofeed.HTTPError
		if errors.As(err, &herr) {
			return nil, types.NewError(types.KindUpstreamAPI,
				fmt.Sprintf("channel feed returned %d %s", herr.StatusCode, herr.Status), err)
		}
		return nil, types.NewError(types.KindUpstreamAPI, "channel feed request failed", err)
	}

	var items []types.ContentItem
	for _, entry := range feed.Items {
		id := videoID(entry)
		if id == "" {
			continue
		}
		var published time.Time
		if entry.PublishedParsed != nil {
			published = *entry.PublishedParsed
		} else if opts.After != nil {
			continue
		}
		if !opts.keep(published) {
			continue
		}
		channelName := feed.Title
		if len(entry.Authors) > 0 && entry.Authors[0].Name != "" {
			channelName = entry.Authors[0].Name
		}
		items = append(items, types.ContentItem{
			ID:          id,
			Title:       entry.Title,
			PublishedAt: published,
			ChannelName: channelName,
			ChannelID:   channelID,
		})
		if opts.full(len(items)) {
			break
		}
	}

	f.logger.Debug("listed channel feed", "channel_id", channelID, "items", len(items))
	return items, nil
}

func videoID(item *gofeed.Item) string {
	if ext, ok := item.Extensions["yt"]; ok {
		if vals := ext["videoId"]; len(vals) > 0 && vals[0].Value != "" {
			return vals[0].Value
		}
	}
	return strings.TrimPrefix(item.GUID, "yt:video:")
}
