// Package hosts holds the built-in link resolvers.
package hosts

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pders01/podrelay/internal/plugins"
)

// AnchorPlugin expands anchor.fm show links (https://anchor.fm/s/<id>) to
// the show's RSS URL.
type AnchorPlugin struct{}

func NewAnchorPlugin() *AnchorPlugin {
	return &AnchorPlugin{}
}

func (p *AnchorPlugin) Name() string {
	return "anchor"
}

func (p *AnchorPlugin) CanHandle(rawURL string) bool {
	_, ok := anchorShowID(rawURL)
	return ok
}

func (p *AnchorPlugin) Priority() int {
	return 50
}

func (p *AnchorPlugin) Resolve(_ context.Context, rawURL string, _ *http.Client) (*plugins.FeedInfo, error) {
	id, ok := anchorShowID(rawURL)
	if !ok {
		return nil, fmt.Errorf("not an anchor.fm show link: %s", rawURL)
	}
	return &plugins.FeedInfo{
		OriginalURL: rawURL,
		FeedURL:     "https://anchor.fm/s/" + id + "/podcast/rss",
		Metadata: map[string]string{
			"plugin": "anchor",
			"show":   id,
		},
	}, nil
}

func anchorShowID(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host != "anchor.fm" {
		return "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] != "s" || parts[1] == "" {
		return "", false
	}
	// already a feed URL
	if len(parts) == 4 && parts[2] == "podcast" && parts[3] == "rss" {
		return "", false
	}
	return parts[1], true
}
