// Package plugins turns podcast links people actually share (directory
// pages, show pages) into the RSS URL the relay can fetch.
package plugins

import (
	"context"
	"net/http"
	"time"
)

// FeedInfo is what a plugin learned about a shared link.
type FeedInfo struct {
	// OriginalURL is the link as given.
	OriginalURL string
	// FeedURL is the RSS URL to relay.
	FeedURL string
	// Title is the show title when the plugin could find it.
	Title    string
	Metadata map[string]string
}

// Plugin resolves links for one podcast host or directory.
type Plugin interface {
	Name() string

	// CanHandle reports whether the plugin recognizes url.
	CanHandle(url string) bool

	// Resolve maps url to its RSS feed. It may query the host with client.
	Resolve(ctx context.Context, url string, client *http.Client) (*FeedInfo, error)

	// Priority breaks ties when several plugins match; higher wins.
	Priority() int
}

type Registry struct {
	plugins []Plugin
	client  *http.Client
}

func NewRegistry(timeout time.Duration) *Registry {
	return &Registry{
		plugins: make([]Plugin, 0),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (r *Registry) Register(plugin Plugin) {
	r.plugins = append(r.plugins, plugin)
}

// FindPlugin returns the highest priority plugin that can handle url, or nil.
func (r *Registry) FindPlugin(url string) Plugin {
	var bestPlugin Plugin
	highestPriority := -1

	for _, plugin := range r.plugins {
		if plugin.CanHandle(url) && plugin.Priority() > highestPriority {
			bestPlugin = plugin
			highestPriority = plugin.Priority()
		}
	}

	return bestPlugin
}

// Resolve passes url to the matching plugin. Links no plugin recognizes are
// assumed to already be feed URLs.
func (r *Registry) Resolve(ctx context.Context, url string) (*FeedInfo, error) {
	plugin := r.FindPlugin(url)
	if plugin == nil {
		return &FeedInfo{
			OriginalURL: url,
			FeedURL:     url,
			Metadata:    make(map[string]string),
		}, nil
	}

	return plugin.Resolve(ctx, url, r.client)
}

// ListPlugins returns a copy of the registered plugins.
func (r *Registry) ListPlugins() []Plugin {
	return append([]Plugin(nil), r.plugins...)
}
