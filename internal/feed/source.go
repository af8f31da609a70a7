package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pders01/podrelay/internal/config"
	"github.com/pders01/podrelay/internal/proxy"
)

// Source yields the raw bytes of a feed. An empty feedURL selects the
// relay's default feed.
type Source interface {
	Fetch(ctx context.Context, feedURL string) ([]byte, error)
}

// RelaySource reads feeds through an in-process relay, sharing its cache.
type RelaySource struct {
	relay *proxy.Relay
}

func NewRelaySource(relay *proxy.Relay) *RelaySource {
	return &RelaySource{relay: relay}
}

func (s *RelaySource) Fetch(ctx context.Context, feedURL string) ([]byte, error) {
	res, err := s.relay.Get(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	return res.Body, nil
}

// HTTPSource reads feeds from a running relay's /api/rss endpoint.
type HTTPSource struct {
	client    *http.Client
	endpoint  *url.URL
	userAgent string
}

// NewHTTPSource targets the relay at baseURL, e.g. http://localhost:3001.
func NewHTTPSource(baseURL string, cfg config.ProxyConfig) (*HTTPSource, error) {
	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parsing relay URL: %w", err)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("relay URL must be http(s) with a host: %q", baseURL)
	}

	return &HTTPSource{
		client:    &http.Client{Timeout: cfg.HTTPTimeout},
		endpoint:  base.JoinPath("api", "rss"),
		userAgent: cfg.UserAgent,
	}, nil
}

func (s *HTTPSource) Fetch(ctx context.Context, feedURL string) ([]byte, error) {
	target := *s.endpoint
	if feedURL != "" {
		target.RawQuery = url.Values{"url": {feedURL}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/xml, application/rss+xml, text/xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", proxy.ErrUpstreamFetch, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return body, nil
	case http.StatusBadRequest:
		return nil, proxy.ErrInvalidURL
	case http.StatusForbidden:
		return nil, proxy.ErrHostNotAllowed
	case http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: retry after %s", proxy.ErrRateLimited, retryAfter(resp))
	default:
		return nil, fmt.Errorf("%w: relay returned %d: %s",
			proxy.ErrUpstreamFetch, resp.StatusCode, strings.TrimSpace(string(body)))
	}
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds >= 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return 15 * time.Minute
}
