package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURL_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		assert.Equal(t, "en-US,en;q=0.9", r.Header.Get("Accept-Language"))
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><h1>Test</h1></body></html>"))
	}))
	defer server.Close()

	result, err := URL(context.Background(), server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, server.URL, result.URL)
	assert.Contains(t, result.Body, "<h1>Test</h1>")
	assert.Equal(t, http.StatusOK, result.StatusCode)
}

func TestURL_InvalidURL(t *testing.T) {
	_, err := URL(context.Background(), "not-a-valid-url", nil)
	require.Error(t, err)

	var fetchErr *Error
	assert.ErrorAs(t, err, &fetchErr)
	assert.Contains(t, err.Error(), "invalid URL")
}

func TestURL_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	result, err := URL(context.Background(), server.URL, nil)
	require.Error(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, http.StatusNotFound, result.StatusCode)

	var fetchErr *Error
	require.ErrorAs(t, err, &fetchErr)
	assert.Contains(t, err.Error(), "404")
	assert.False(t, fetchErr.TooManyRequests())
}

func TestURL_TooManyRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := URL(context.Background(), server.URL, nil)
	var fetchErr *Error
	require.ErrorAs(t, err, &fetchErr)
	assert.True(t, fetchErr.TooManyRequests())
	assert.Contains(t, err.Error(), "Too Many Requests")
}

func TestURL_CustomClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.Header.Get("X-Test")))
	}))
	defer server.Close()

	result, err := URL(context.Background(), server.URL, &Options{
		Client:  server.Client(),
		Headers: map[string]string{"X-Test": "yes"},
	})
	require.NoError(t, err)
	assert.Equal(t, "yes", result.Body)
}

func TestScriptsContaining(t *testing.T) {
	html := `<html><head>
		<script src="/player.js"></script>
		<script>var other = 1;</script>
		<script>var ytInitialPlayerResponse = {"a":1};</script>
	</head><body></body></html>`

	scripts, err := ScriptsContaining(html, "ytInitialPlayerResponse")
	require.NoError(t, err)
	require.Len(t, scripts, 1)
	assert.Contains(t, scripts[0], `{"a":1}`)

	none, err := ScriptsContaining(html, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestHasCaptcha(t *testing.T) {
	assert.True(t, HasCaptcha(`<html><body><div class="g-recaptcha"></div></body></html>`))
	assert.False(t, HasCaptcha(`<html><body><p>ok</p></body></html>`))
}
