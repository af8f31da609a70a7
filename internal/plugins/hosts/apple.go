package hosts

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/pders01/podrelay/internal/plugins"
)

const appleLookupURL = "https://itunes.apple.com/lookup"

var appleIDPattern = regexp.MustCompile(`/id(\d+)`)

// ApplePlugin resolves Apple Podcasts show pages through the iTunes lookup
// API, which reports the feed URL the show publishes.
type ApplePlugin struct {
	lookupURL string
}

func NewApplePlugin() *ApplePlugin {
	return &ApplePlugin{lookupURL: appleLookupURL}
}

func (p *ApplePlugin) Name() string {
	return "apple"
}

func (p *ApplePlugin) CanHandle(rawURL string) bool {
	_, ok := appleShowID(rawURL)
	return ok
}

func (p *ApplePlugin) Priority() int {
	return 50
}

type lookupResponse struct {
	ResultCount int `json:"resultCount"`
	Results     []struct {
		CollectionName string `json:"collectionName"`
		FeedURL        string `json:"feedUrl"`
	} `json:"results"`
}

func (p *ApplePlugin) Resolve(ctx context.Context, rawURL string, client *http.Client) (*plugins.FeedInfo, error) {
	id, ok := appleShowID(rawURL)
	if !ok {
		return nil, fmt.Errorf("not an Apple Podcasts link: %s", rawURL)
	}

	q := url.Values{"id": {id}, "entity": {"podcast"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.lookupURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("looking up podcast %s: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("looking up podcast %s: HTTP %d", id, resp.StatusCode)
	}

	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding lookup response: %w", err)
	}
	for _, r := range body.Results {
		if r.FeedURL == "" {
			continue
		}
		return &plugins.FeedInfo{
			OriginalURL: rawURL,
			FeedURL:     r.FeedURL,
			Title:       r.CollectionName,
			Metadata: map[string]string{
				"plugin":     "apple",
				"collection": id,
			},
		}, nil
	}
	return nil, fmt.Errorf("podcast %s has no public feed", id)
}

func appleShowID(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	switch strings.ToLower(u.Hostname()) {
	case "podcasts.apple.com", "itunes.apple.com":
	default:
		return "", false
	}
	m := appleIDPattern.FindStringSubmatch(u.Path)
	if m == nil {
		return "", false
	}
	return m[1], true
}
