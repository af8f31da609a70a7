// Package podcast turns raw podcast feeds into ordered episode catalogs.
package podcast

import (
	"html"
	"regexp"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/microcosm-cc/bluemonday"
)

// Episode is one normalized feed item. Description and ContentEncoded keep
// their markup; use PlainDescription or DescriptionMarkdown for display.
type Episode struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	ContentEncoded  string    `json:"contentEncoded,omitempty"`
	PubDate         time.Time `json:"pubDate"`
	AudioURL        string    `json:"audioUrl"`
	Duration        string    `json:"duration"`
	DurationSeconds int       `json:"durationSeconds"`
	Image           string    `json:"image"`
	Season          string    `json:"season"`
	EpisodeNumber   string    `json:"episodeNumber,omitempty"`
	Explicit        bool      `json:"explicit"`
	Views           string    `json:"views"`
}

var (
	stripPolicy = bluemonday.StrictPolicy()
	blockBreak  = regexp.MustCompile(`(?i)</(p|div|li|h[1-6]|blockquote)>|<br\s*/?>`)
)

// Body is the richest markup available: content:encoded, else description.
func (e Episode) Body() string {
	if strings.TrimSpace(e.ContentEncoded) != "" {
		return e.ContentEncoded
	}
	return e.Description
}

// PlainDescription is the description with tags removed, entities decoded
// and whitespace collapsed.
func (e Episode) PlainDescription() string {
	return stripHTML(e.Description)
}

// DescriptionMarkdown converts Body to Markdown for terminal rendering.
func (e Episode) DescriptionMarkdown() (string, error) {
	md, err := htmltomarkdown.ConvertString(e.Body())
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(md), nil
}

// HasEpisodeNumber reports whether the feed carried an episode number.
func (e Episode) HasEpisodeNumber() bool {
	return e.EpisodeNumber != ""
}

func stripHTML(s string) string {
	text := html.UnescapeString(stripPolicy.Sanitize(blockBreak.ReplaceAllString(s, "$0 ")))
	return strings.Join(strings.Fields(text), " ")
}
