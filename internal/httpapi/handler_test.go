package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KevinWangQQ/youtube-influencer-finder/internal/cache"
	"github.com/KevinWangQQ/youtube-influencer-finder/internal/credential"
	"github.com/KevinWangQQ/youtube-influencer-finder/internal/finder"
)

// stubSearcher returns a fixed result or error.
type stubSearcher struct {
	res *finder.Result
	err error
}

func (s stubSearcher) Search(context.Context, finder.SearchQuery) (*finder.Result, error) {
	return s.res, s.err
}

func newTestApp(t *testing.T, s Searcher) (*fiber.App, *credential.Pool) {
	t.Helper()
	pool := credential.NewPool([]credential.Credential{
		{ID: "a", Label: "primary", Key: "key-1", QuotaLimit: 10_000},
	})
	c := cache.New("", time.Minute, 16)
	t.Cleanup(c.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(s, pool, c, logger)
	return NewApp(h, logger, nil), pool
}

func postJSON(t *testing.T, app *fiber.App, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestSearchEndpoint(t *testing.T) {
	want := &finder.Result{
		Topic:   "fitness",
		Mode:    finder.ModeChannel,
		Keyword: "fitness",
		Channels: []finder.ChannelCandidate{
			{ChannelID: "ch-1", Title: "Fitness Pro", RelevanceScore: 88},
		},
	}
	app, _ := newTestApp(t, stubSearcher{res: want})

	resp := postJSON(t, app, "/api/search", finder.SearchQuery{Topic: "fitness"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got finder.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "fitness", got.Topic)
	require.Len(t, got.Channels, 1)
	assert.Equal(t, "ch-1", got.Channels[0].ChannelID)
}

func TestSearchEndpointCacheHeader(t *testing.T) {
	app, _ := newTestApp(t, stubSearcher{res: &finder.Result{Topic: "fitness", FromCache: true}})

	resp := postJSON(t, app, "/api/search", finder.SearchQuery{Topic: "fitness"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hit", resp.Header.Get("X-Cache"))
}

func TestSearchEndpointInvalidBody(t *testing.T) {
	app, _ := newTestApp(t, stubSearcher{res: &finder.Result{}})

	req := httptest.NewRequest(http.MethodPost, "/api/search", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSearchEndpointErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"empty topic", finder.ErrEmptyTopic, http.StatusBadRequest},
		{"dead pool", credential.ErrNoActiveCredential, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, _ := newTestApp(t, stubSearcher{err: tt.err})
			resp := postJSON(t, app, "/api/search", finder.SearchQuery{Topic: "x"})
			assert.Equal(t, tt.want, resp.StatusCode)

			var body ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.want, body.Code)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestCredentialsEndpoint(t *testing.T) {
	app, _ := newTestApp(t, stubSearcher{})

	req := httptest.NewRequest(http.MethodGet, "/api/credentials", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"id":"a"`)
	// Key material never leaves the process.
	assert.NotContains(t, string(data), "key-1")
}

func TestResetEndpoint(t *testing.T) {
	app, pool := newTestApp(t, stubSearcher{})
	pool.RecordUsage("a", 9_900) // exhausts the credential

	resp := postJSON(t, app, "/api/credentials/reset", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	creds := pool.Snapshot()
	require.Len(t, creds, 1)
	assert.Equal(t, credential.StatusActive, creds[0].Status)
	assert.Zero(t, creds[0].QuotaUsed)
}

func TestFlushCacheEndpoint(t *testing.T) {
	app, _ := newTestApp(t, stubSearcher{})

	resp := postJSON(t, app, "/api/cache/invalidate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, true, body["flushed"])
}

func TestHealthEndpoint(t *testing.T) {
	app, _ := newTestApp(t, stubSearcher{})

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
