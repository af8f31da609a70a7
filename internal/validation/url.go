package validation

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	// ErrInvalidURL is returned when the input is not an absolute http(s) URL.
	ErrInvalidURL = errors.New("invalid URL")
	// ErrHostNotAllowed is returned when the hostname matches no allow-listed suffix.
	ErrHostNotAllowed = errors.New("host not allowed")
)

// FeedURLValidator checks that a feed URL is absolute and points at one of
// the allow-listed hosts, so the proxy cannot be used as an open relay.
type FeedURLValidator struct {
	// AllowedHosts are hostname suffixes. "anchor.fm" admits anchor.fm and
	// any subdomain of it.
	AllowedHosts []string
	// MaxLength is the maximum allowed URL length
	MaxLength int
}

// NewFeedURLValidator creates a validator for the given host suffixes.
func NewFeedURLValidator(allowedHosts []string) *FeedURLValidator {
	hosts := make([]string, 0, len(allowedHosts))
	for _, h := range allowedHosts {
		h = strings.Trim(strings.ToLower(strings.TrimSpace(h)), ".")
		if h != "" {
			hosts = append(hosts, h)
		}
	}
	return &FeedURLValidator{
		AllowedHosts: hosts,
		MaxLength:    2048,
	}
}

// Validate parses input and checks it against the allow-list. The returned
// URL is the parsed form of the input; callers key caches on input as given.
func (v *FeedURLValidator) Validate(input string) (*url.URL, error) {
	input = strings.TrimSpace(input)

	if input == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	if v.MaxLength > 0 && len(input) > v.MaxLength {
		return nil, fmt.Errorf("%w: longer than %d characters", ErrInvalidURL, v.MaxLength)
	}

	parsedURL, err := url.Parse(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme must be http or https", ErrInvalidURL)
	}

	hostname := strings.ToLower(parsedURL.Hostname())
	if hostname == "" {
		return nil, fmt.Errorf("%w: missing hostname", ErrInvalidURL)
	}

	if !v.HostAllowed(hostname) {
		return nil, fmt.Errorf("%w: %s", ErrHostNotAllowed, hostname)
	}

	return parsedURL, nil
}

// HostAllowed reports whether hostname equals an allow-listed suffix or is a
// subdomain of one. Matching stops at label boundaries, so "evilanchor.fm"
// does not pass for "anchor.fm".
func (v *FeedURLValidator) HostAllowed(hostname string) bool {
	hostname = strings.TrimSuffix(strings.ToLower(hostname), ".")
	for _, suffix := range v.AllowedHosts {
		if hostname == suffix || strings.HasSuffix(hostname, "."+suffix) {
			return true
		}
	}
	return false
}
