package youtube

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/transcript-archiver/internal/types"
)

const channelFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns:yt="http://www.youtube.com/xml/schemas/2015" xmlns:media="http://search.yahoo.com/mrss/" xmlns="http://www.w3.org/2005/Atom">
 <title>Feed Channel</title>
 <entry>
  <id>yt:video:new1</id>
  <yt:videoId>new1</yt:videoId>
  <yt:channelId>UCfeed</yt:channelId>
  <title>Newest</title>
  <author><name>Feed Channel</name></author>
  <published>2024-05-03T10:00:00+00:00</published>
 </entry>
 <entry>
  <id>yt:video:mid2</id>
  <yt:videoId>mid2</yt:videoId>
  <title>Middle</title>
  <published>2024-05-02T10:00:00+00:00</published>
 </entry>
 <entry>
  <id>yt:video:old3</id>
  <yt:videoId>old3</yt:videoId>
  <title>Oldest</title>
  <published>2024-05-01T10:00:00+00:00</published>
 </entry>
</feed>`

func newFeedServer(t *testing.T, status int) *FeedLister {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "UCfeed", r.URL.Query().Get("channel_id"))
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/atom+xml")
		_, _ = w.Write([]byte(channelFeed))
	}))
	t.Cleanup(srv.Close)

	l := NewFeedLister(srv.Client(), nil)
	l.BaseURL = srv.URL + "/feeds/videos.xml"
	return l
}

func TestFeedLister_ListUploads(t *testing.T) {
	l := newFeedServer(t, http.StatusOK)

	items, err := l.ListUploads(context.Background(), "UCfeed", ListOptions{})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "new1", items[0].ID)
	assert.Equal(t, "Newest", items[0].Title)
	assert.Equal(t, "Feed Channel", items[0].ChannelName)
	assert.Equal(t, "UCfeed", items[0].ChannelID)
	assert.Equal(t, "old3", items[2].ID)
}

func TestFeedLister_FilterAndLimit(t *testing.T) {
	l := newFeedServer(t, http.StatusOK)
	after := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)

	items, err := l.ListUploads(context.Background(), "UCfeed", ListOptions{After: &after})
	require.NoError(t, err)
	require.Len(t, items, 1, "boundary item is excluded")
	assert.Equal(t, "new1", items[0].ID)

	items, err = l.ListUploads(context.Background(), "UCfeed", ListOptions{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestFeedLister_HTTPError(t *testing.T) {
	l := newFeedServer(t, http.StatusNotFound)

	_, err := l.ListUploads(context.Background(), "UCfeed", ListOptions{})
	require.Error(t, err)
	assert.Equal(t, types.KindUpstreamAPI, types.KindOf(err))
}
