package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/podrelay/internal/config"
	"github.com/pders01/podrelay/internal/feed"
	"github.com/pders01/podrelay/internal/podcast"
	"github.com/pders01/podrelay/internal/proxy"
	"github.com/pders01/podrelay/internal/search"
)

const seasonFeed = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Pit Wall</title>
<item><guid>c</guid><title>Abu Dhabi finale</title><pubDate>Sun, 08 Dec 2024 10:00:00 GMT</pubDate></item>
<item><guid>a</guid><title>Monaco recap</title><pubDate>Mon, 26 May 2025 10:00:00 GMT</pubDate>
  <description><![CDATA[<p>The <b>undercut</b> decided it</p>]]></description></item>
<item><guid>e</guid><title>Bahrain opener</title><pubDate>Sat, 02 Mar 2024 10:00:00 GMT</pubDate></item>
<item><guid>b</guid><title>Australia preview</title><pubDate>Sun, 16 Mar 2025 10:00:00 GMT</pubDate></item>
<item><guid>d</guid><title>Vegas night race</title><pubDate>Sun, 24 Nov 2024 10:00:00 GMT</pubDate></item>
</channel></rss>`

type testEnv struct {
	server *Server
	origin *httptest.Server
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			_, _ = w.Write([]byte("this is not a feed"))
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(seasonFeed))
	}))
	t.Cleanup(origin.Close)

	cfg := config.TestConfig()
	cfg.Proxy.DefaultFeedURL = origin.URL + "/rss"
	cfg.Server.Addr = "127.0.0.1:0"

	relay := proxy.New(cfg.Proxy)
	idx, err := search.NewIndex()
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	library := feed.NewLibrary(feed.NewRelaySource(relay), podcast.NewNormalizer(podcast.DefaultStats()), idx)
	return &testEnv{
		server: New(cfg, relay, library, idx, opts...),
		origin: origin,
	}
}

func (e *testEnv) do(method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

type gridBody struct {
	Title    string `json:"title"`
	Featured *struct {
		ID string `json:"id"`
	} `json:"featured"`
	Episodes []struct {
		ID string `json:"id"`
	} `json:"episodes"`
	Page       int      `json:"page"`
	TotalPages int      `json:"totalPages"`
	Total      int      `json:"total"`
	Seasons    []string `json:"seasons"`
}

func (g gridBody) ids() []string {
	out := []string{}
	for _, e := range g.Episodes {
		out = append(out, e.ID)
	}
	return out
}

func TestServer_RSS(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/rss")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/xml", rec.Header().Get("Content-Type"))
	assert.Equal(t, seasonFeed, rec.Body.String())

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "SAMEORIGIN", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "1000", rec.Header().Get("RateLimit-Limit"))
	assert.Equal(t, "999", rec.Header().Get("RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_RSSErrorsKeepHeaders(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/rss?url="+url.QueryEscape("https://evil.example.com/rss"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Host not allowed", strings.TrimSpace(rec.Body.String()))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = env.do(http.MethodGet, "/api/rss?url=not-a-url")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid URL", strings.TrimSpace(rec.Body.String()))
}

func TestServer_MethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodPost, "/api/rss")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_CORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/rss", nil)
	req.Header.Set("Origin", "https://podcast.example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	req.Header.Set("Access-Control-Request-Headers", "x-custom")
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "GET")
	assert.Equal(t, "x-custom", rec.Header().Get("Access-Control-Allow-Headers"))
	assert.Empty(t, rec.Body.String())
}

func TestServer_RateLimit(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	env := newTestEnv(t, WithRateLimiter(NewRateLimiter(2, time.Minute, clk.Now)))

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/healthz").Code)
	}

	rec := env.do(http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many requests from this IP, please try again later.", strings.TrimSpace(rec.Body.String()))
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("RateLimit-Remaining"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	// another client has its own window
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "198.51.100.7:4242"
	other := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(other, req)
	assert.Equal(t, http.StatusOK, other.Code)

	clk.Advance(time.Minute)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/healthz").Code)
}

func TestServer_RateLimitDisabled(t *testing.T) {
	env := newTestEnv(t, WithRateLimiter(nil))
	rec := env.do(http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("RateLimit-Limit"))
}

func TestServer_Episodes(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/episodes")
	require.Equal(t, http.StatusOK, rec.Code)

	var grid gridBody
	decode(t, rec, &grid)
	assert.Equal(t, "Pit Wall", grid.Title)
	require.NotNil(t, grid.Featured)
	assert.Equal(t, "a", grid.Featured.ID)
	assert.Equal(t, []string{"b", "c", "d"}, grid.ids())
	assert.Equal(t, 1, grid.Page)
	assert.Equal(t, 2, grid.TotalPages)
	assert.Equal(t, 5, grid.Total)
	assert.Equal(t, []string{"2025", "2024"}, grid.Seasons)

	rec = env.do(http.MethodGet, "/api/episodes?page=2")
	grid = gridBody{}
	decode(t, rec, &grid)
	assert.Equal(t, []string{"e"}, grid.ids())
	assert.Equal(t, 2, grid.Page)
}

func TestServer_EpisodesBySeason(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/episodes?season=2024&per_page=5")
	require.Equal(t, http.StatusOK, rec.Code)

	var grid gridBody
	decode(t, rec, &grid)
	require.NotNil(t, grid.Featured)
	assert.Equal(t, "c", grid.Featured.ID)
	assert.Equal(t, []string{"d", "e"}, grid.ids())
	assert.Equal(t, 1, grid.TotalPages)

	rec = env.do(http.MethodGet, "/api/episodes?season=1999")
	grid = gridBody{}
	decode(t, rec, &grid)
	assert.Nil(t, grid.Featured)
	assert.Empty(t, grid.Episodes)
}

func TestServer_Episode(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/episodes/b")
	require.Equal(t, http.StatusOK, rec.Code)
	var episode struct {
		ID     string `json:"id"`
		Title  string `json:"title"`
		Season string `json:"season"`
	}
	decode(t, rec, &episode)
	assert.Equal(t, "b", episode.ID)
	assert.Equal(t, "Australia preview", episode.Title)
	assert.Equal(t, "2025", episode.Season)

	rec = env.do(http.MethodGet, "/api/episodes/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body map[string]string
	decode(t, rec, &body)
	assert.Equal(t, "episode not found", body["error"])
}

func TestServer_Seasons(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/seasons")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string][]string
	decode(t, rec, &body)
	assert.Equal(t, []string{"2025", "2024"}, body["seasons"])
}

func TestServer_Search(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/search?q=undercut")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Query   string `json:"query"`
		Results []struct {
			Episode struct {
				ID string `json:"id"`
			} `json:"episode"`
			Snippet string `json:"snippet"`
		} `json:"results"`
	}
	decode(t, rec, &body)
	assert.Equal(t, "undercut", body.Query)
	require.Len(t, body.Results, 1)
	assert.Equal(t, "a", body.Results[0].Episode.ID)
	assert.Contains(t, body.Results[0].Snippet, "undercut")

	rec = env.do(http.MethodGet, "/api/search")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_CatalogErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name    string
		feedURL string
		status  int
		message string
	}{
		{"host not allowed", "https://evil.example.com/rss", http.StatusForbidden, "Host not allowed"},
		{"invalid url", "not-a-url", http.StatusBadRequest, "Invalid URL"},
		{"malformed feed", env.origin.URL + "/bad", http.StatusBadGateway, "Malformed feed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodGet, "/api/episodes?url="+url.QueryEscape(tt.feedURL))
			assert.Equal(t, tt.status, rec.Code)
			var body map[string]string
			decode(t, rec, &body)
			assert.Equal(t, tt.message, body["error"])
		})
	}
}

func TestServer_Health(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/episodes").Code)

	rec := env.do(http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	decode(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(1), body["cachedFeeds"])
	assert.Equal(t, float64(5), body["indexedEpisodes"])
}

func TestServer_ServeAndShutdown(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.server.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.server.Serve(ctx) }()

	resp, err := http.Get("http://" + env.server.Addr() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestIntParam(t *testing.T) {
	assert.Equal(t, 3, intParam("3", 1))
	assert.Equal(t, 1, intParam("", 1))
	assert.Equal(t, 1, intParam("-2", 1))
	assert.Equal(t, 1, intParam("two", 1))
}
