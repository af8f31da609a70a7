package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/pders01/podrelay/internal/config"
	"github.com/pders01/podrelay/internal/debuglog"
	"github.com/pders01/podrelay/internal/validation"
)

const maxRedirects = 10

// Getter retrieves a raw feed body.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Fetcher performs outbound feed requests.
type Fetcher struct {
	client    *http.Client
	userAgent string
	maxBody   int64
	retries   int
	backoff   time.Duration
}

// NewFetcher builds a fetcher from proxy settings. Redirects are followed only
// while they stay on allow-listed hosts.
func NewFetcher(cfg config.ProxyConfig, validator *validation.FeedURLValidator) *Fetcher {
	client := &http.Client{
		Timeout: cfg.HTTPTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return errors.New("stopped after 10 redirects")
			}
			if validator != nil && !validator.HostAllowed(req.URL.Hostname()) {
				return fmt.Errorf("redirect to %s: %w", req.URL.Hostname(), ErrHostNotAllowed)
			}
			return nil
		},
	}

	return &Fetcher{
		client:    client,
		userAgent: cfg.UserAgent,
		maxBody:   cfg.MaxBodyBytes,
		retries:   cfg.Retries,
		backoff:   cfg.RetryBackoff,
	}
}

// Get fetches url, retrying transport errors, 429 and 5xx responses with
// exponential backoff.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			wait := f.backoff << (attempt - 1)
			debuglog.Warnf("Retrying %s in %s: %v", url, wait, lastErr)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrUpstreamFetch, ctx.Err())
			case <-time.After(wait):
			}
		}

		body, retryable, err := f.get(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("%w: creating request: %v", ErrUpstreamFetch, err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, !errors.Is(err, ErrHostNotAllowed), fmt.Errorf("%w: %v", ErrUpstreamFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retryable, fmt.Errorf("%w: HTTP %d", ErrUpstreamFetch, resp.StatusCode)
	}

	reader := io.Reader(resp.Body)
	if f.maxBody > 0 {
		reader = io.LimitReader(resp.Body, f.maxBody+1)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, true, fmt.Errorf("%w: reading body: %v", ErrUpstreamFetch, err)
	}
	if f.maxBody > 0 && int64(len(body)) > f.maxBody {
		return nil, false, fmt.Errorf("%w: body exceeds %s", ErrUpstreamFetch, humanize.IBytes(uint64(f.maxBody)))
	}

	debuglog.Debugf("Fetched %s (%s)", url, humanize.Bytes(uint64(len(body))))
	return body, false, nil
}
