// Package proxy relays podcast feeds from allow-listed origins with a
// short-lived cache in front of them.
package proxy

import (
	"context"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pders01/podrelay/internal/cache"
	"github.com/pders01/podrelay/internal/config"
	"github.com/pders01/podrelay/internal/debuglog"
	"github.com/pders01/podrelay/internal/validation"
)

// Result is a feed body ready to serve.
type Result struct {
	URL       string
	Body      []byte
	FetchedAt time.Time
	Cached    bool
}

// Relay validates feed URLs, serves fresh cached bodies and fetches the
// origin on a miss. Concurrent misses for one URL share a single fetch.
type Relay struct {
	defaultURL string
	validator  *validation.FeedURLValidator
	cache      *cache.Cache
	fetcher    Getter
	inflight   singleflight.Group
}

// Option configures a Relay.
type Option func(*Relay)

// WithCache replaces the cache built from config.
func WithCache(c *cache.Cache) Option {
	return func(r *Relay) {
		r.cache = c
	}
}

// WithFetcher replaces the HTTP fetcher.
func WithFetcher(g Getter) Option {
	return func(r *Relay) {
		r.fetcher = g
	}
}

// New builds a relay over cfg with a fresh cache and HTTP fetcher unless
// options replace them.
func New(cfg config.ProxyConfig, opts ...Option) *Relay {
	validator := validation.NewFeedURLValidator(cfg.AllowedHosts)
	r := &Relay{
		defaultURL: cfg.DefaultFeedURL,
		validator:  validator,
		cache:      cache.New(cfg.CacheTTL, cfg.CacheSize),
		fetcher:    NewFetcher(cfg, validator),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DefaultURL is the feed served when a request names none.
func (r *Relay) DefaultURL() string {
	return r.defaultURL
}

// Cache exposes the relay's cache.
func (r *Relay) Cache() *cache.Cache {
	return r.cache
}

// Get resolves rawURL (empty means the default feed) and returns its body.
func (r *Relay) Get(ctx context.Context, rawURL string) (*Result, error) {
	target := strings.TrimSpace(rawURL)
	if target == "" {
		target = r.defaultURL
	}

	if _, err := r.validator.Validate(target); err != nil {
		debuglog.WithFields(map[string]interface{}{"url": target}).Warnf("Rejected feed URL: %v", err)
		return nil, err
	}

	if entry, ok := r.cache.Get(target); ok {
		debuglog.WithFields(map[string]interface{}{"url": target, "age": entry.Age(time.Now()).Round(time.Second)}).Infof("Serving from cache")
		return &Result{URL: target, Body: entry.Body, FetchedAt: entry.FetchedAt, Cached: true}, nil
	}

	v, err, shared := r.inflight.Do(target, func() (interface{}, error) {
		// A flight that finished between the miss above and this call has
		// already stored the body.
		if entry, ok := r.cache.Get(target); ok {
			return entry, nil
		}

		debuglog.Infof("Fetching RSS from: %s", target)
		body, err := r.fetcher.Get(context.WithoutCancel(ctx), target)
		if err != nil {
			return nil, err
		}
		return r.cache.Set(target, body), nil
	})
	if err != nil {
		debuglog.WithFields(map[string]interface{}{"url": target}).Errorf("Error fetching RSS: %v", err)
		return nil, err
	}

	entry := v.(cache.Entry)
	if shared {
		debuglog.Debugf("Shared in-flight fetch for %s", target)
	}
	return &Result{URL: target, Body: entry.Body, FetchedAt: entry.FetchedAt}, nil
}

// ServeHTTP handles GET /api/rss?url=.
func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	res, err := r.Get(req.Context(), req.URL.Query().Get("url"))
	if err != nil {
		http.Error(w, PublicMessage(err), StatusCode(err))
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	if res.Cached {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Body)
}
