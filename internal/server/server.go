// Package server exposes the feed relay and the episode API over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pders01/podrelay/internal/config"
	"github.com/pders01/podrelay/internal/debuglog"
	"github.com/pders01/podrelay/internal/feed"
	"github.com/pders01/podrelay/internal/podcast"
	"github.com/pders01/podrelay/internal/proxy"
	"github.com/pders01/podrelay/internal/search"
)

const (
	maxPerPage         = 100
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

type Server struct {
	cfg      config.ServerConfig
	relay    *proxy.Relay
	library  *feed.Library
	searcher search.Searcher
	limiter  *RateLimiter

	handler  http.Handler
	listener net.Listener
	server   *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithRateLimiter replaces the limiter built from config. nil disables
// rate limiting.
func WithRateLimiter(l *RateLimiter) Option {
	return func(s *Server) {
		s.limiter = l
	}
}

// New wires the relay, the catalog library and the searcher into the HTTP
// handler chain. The rate limiter comes from cfg.RateLimit unless an option
// replaces it.
func New(cfg *config.Config, relay *proxy.Relay, library *feed.Library, searcher search.Searcher, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg.Server,
		relay:    relay,
		library:  library,
		searcher: searcher,
	}
	if cfg.RateLimit.Enabled {
		s.limiter = NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, nil)
	}
	for _, opt := range opts {
		opt(s)
	}

	s.handler = s.routes()
	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// routes wires the mux behind security headers, the rate limiter and CORS,
// in that order.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /api/rss", s.relay)
	mux.HandleFunc("GET /api/episodes", s.handleEpisodes)
	mux.HandleFunc("GET /api/episodes/{id}", s.handleEpisode)
	mux.HandleFunc("GET /api/seasons", s.handleSeasons)
	mux.HandleFunc("GET /api/search", s.handleSearch)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	var h http.Handler = withCORS(mux)
	if s.limiter != nil {
		h = s.limiter.Middleware(h)
	}
	h = withSecurityHeaders(h)
	return withAccessLog(h)
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// Listen binds the configured address. Serve calls it when needed.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	s.listener = ln
	return nil
}

// Addr is the bound address once listening, otherwise the configured one.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.cfg.Addr
	}
	return s.listener.Addr().String()
}

// Serve handles requests until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(s.listener)
	}()
	debuglog.Infof("Server running on http://%s", s.Addr())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	debuglog.Infof("Shutting down")
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

type episodesResponse struct {
	Title string `json:"title"`
	Image string `json:"image,omitempty"`
	podcast.GridPage
}

func (s *Server) handleEpisodes(w http.ResponseWriter, r *http.Request) {
	catalog, ok := s.catalog(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	page := intParam(q.Get("page"), 1)
	perPage := min(intParam(q.Get("per_page"), podcast.DefaultPerPage), maxPerPage)

	s.writeJSON(w, http.StatusOK, episodesResponse{
		Title:    catalog.Title,
		Image:    catalog.Image,
		GridPage: catalog.Grid(q.Get("season"), page, perPage),
	})
}

func (s *Server) handleEpisode(w http.ResponseWriter, r *http.Request) {
	catalog, ok := s.catalog(w, r)
	if !ok {
		return
	}
	episode, found := catalog.Find(r.PathValue("id"))
	if !found {
		s.writeError(w, http.StatusNotFound, "episode not found")
		return
	}
	s.writeJSON(w, http.StatusOK, episode)
}

func (s *Server) handleSeasons(w http.ResponseWriter, r *http.Request) {
	catalog, ok := s.catalog(w, r)
	if !ok {
		return
	}
	seasons := catalog.Seasons
	if seasons == nil {
		seasons = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"seasons": seasons})
}

type searchResponse struct {
	Query   string           `json:"query"`
	Results []*search.Result `json:"results"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		s.writeError(w, http.StatusBadRequest, "missing query")
		return
	}
	limit := min(intParam(q.Get("limit"), defaultSearchLimit), maxSearchLimit)

	// Loading the catalog brings the index up to date with the feed.
	if _, ok := s.catalog(w, r); !ok {
		return
	}
	results, err := s.searcher.Search(query, limit)
	if err != nil {
		debuglog.Errorf("Search %q failed: %v", query, err)
		s.writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	s.writeJSON(w, http.StatusOK, searchResponse{Query: query, Results: results})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"status":      "ok",
		"cachedFeeds": s.relay.Cache().Len(),
	}
	if stats, ok := s.searcher.(search.DebugStatser); ok {
		if n, err := stats.DocCount(); err == nil {
			payload["indexedEpisodes"] = n
		}
	}
	s.writeJSON(w, http.StatusOK, payload)
}

// catalog loads the feed named by the url query parameter, writing the
// error response itself on failure.
func (s *Server) catalog(w http.ResponseWriter, r *http.Request) (*podcast.Catalog, bool) {
	catalog, err := s.library.Catalog(r.Context(), r.URL.Query().Get("url"))
	if err != nil {
		status, message := proxy.StatusCode(err), proxy.PublicMessage(err)
		if errors.Is(err, podcast.ErrMalformedFeed) {
			status, message = http.StatusBadGateway, "Malformed feed"
		}
		debuglog.Warnf("Catalog request failed: %v", err)
		s.writeError(w, status, message)
		return nil, false
	}
	return catalog, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		debuglog.Errorf("Failed to encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// intParam parses a positive integer, falling back to def.
func intParam(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
