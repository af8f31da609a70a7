package plugins

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockPlugin struct {
	name      string
	priority  int
	canHandle func(string) bool
	resolve   func(context.Context, string, *http.Client) (*FeedInfo, error)
}

func (p *mockPlugin) Name() string {
	return p.name
}

func (p *mockPlugin) CanHandle(url string) bool {
	if p.canHandle != nil {
		return p.canHandle(url)
	}
	return false
}

func (p *mockPlugin) Resolve(ctx context.Context, url string, client *http.Client) (*FeedInfo, error) {
	if p.resolve != nil {
		return p.resolve(ctx, url, client)
	}
	return &FeedInfo{OriginalURL: url, FeedURL: url + "/rss", Metadata: map[string]string{}}, nil
}

func (p *mockPlugin) Priority() int {
	return p.priority
}

func TestNewRegistry(t *testing.T) {
	registry := NewRegistry(5 * time.Second)

	assert.NotNil(t, registry)
	assert.Equal(t, 0, len(registry.plugins))
	assert.NotNil(t, registry.client)
}

func TestRegistry_Register(t *testing.T) {
	registry := NewRegistry(5 * time.Second)
	plugin := &mockPlugin{name: "test", priority: 50}

	registry.Register(plugin)

	assert.Equal(t, 1, len(registry.plugins))
	assert.Equal(t, plugin, registry.plugins[0])
}

func TestRegistry_FindPlugin(t *testing.T) {
	registry := NewRegistry(5 * time.Second)

	plugin1 := &mockPlugin{
		name:     "low-priority",
		priority: 10,
		canHandle: func(url string) bool {
			return url == "https://podcasts.example.com/show"
		},
	}

	plugin2 := &mockPlugin{
		name:     "high-priority",
		priority: 100,
		canHandle: func(url string) bool {
			return url == "https://podcasts.example.com/show"
		},
	}

	plugin3 := &mockPlugin{
		name:     "different-url",
		priority: 200,
		canHandle: func(url string) bool {
			return url == "https://anchor.fm/s/abc"
		},
	}

	registry.Register(plugin1)
	registry.Register(plugin2)
	registry.Register(plugin3)

	t.Run("finds highest priority plugin", func(t *testing.T) {
		result := registry.FindPlugin("https://podcasts.example.com/show")
		assert.Equal(t, plugin2, result)
	})

	t.Run("finds specific plugin", func(t *testing.T) {
		result := registry.FindPlugin("https://anchor.fm/s/abc")
		assert.Equal(t, plugin3, result)
	})

	t.Run("returns nil for no matching plugin", func(t *testing.T) {
		result := registry.FindPlugin("https://feeds.example.org/rss")
		assert.Nil(t, result)
	})
}

func TestRegistry_Resolve(t *testing.T) {
	t.Run("with matching plugin", func(t *testing.T) {
		registry := NewRegistry(5 * time.Second)
		registry.Register(&mockPlugin{
			name:     "directory",
			priority: 50,
			canHandle: func(url string) bool {
				return url == "https://podcasts.example.com/show"
			},
			resolve: func(_ context.Context, url string, client *http.Client) (*FeedInfo, error) {
				assert.NotNil(t, client)
				return &FeedInfo{
					OriginalURL: url,
					FeedURL:     "https://anchor.fm/s/59923dcc/podcast/rss",
					Title:       "Box Box Club",
					Metadata:    map[string]string{"plugin": "directory"},
				}, nil
			},
		})

		result, err := registry.Resolve(context.Background(), "https://podcasts.example.com/show")
		require.NoError(t, err)
		assert.Equal(t, "https://podcasts.example.com/show", result.OriginalURL)
		assert.Equal(t, "https://anchor.fm/s/59923dcc/podcast/rss", result.FeedURL)
		assert.Equal(t, "Box Box Club", result.Title)
		assert.Equal(t, "directory", result.Metadata["plugin"])
	})

	t.Run("without matching plugin", func(t *testing.T) {
		registry := NewRegistry(5 * time.Second)

		result, err := registry.Resolve(context.Background(), "https://feeds.example.org/rss")
		require.NoError(t, err)
		assert.Equal(t, "https://feeds.example.org/rss", result.OriginalURL)
		assert.Equal(t, "https://feeds.example.org/rss", result.FeedURL)
		assert.Empty(t, result.Title)
		assert.NotNil(t, result.Metadata)
	})
}

func TestRegistry_ListPlugins(t *testing.T) {
	registry := NewRegistry(5 * time.Second)

	plugin1 := &mockPlugin{name: "plugin1", priority: 10}
	plugin2 := &mockPlugin{name: "plugin2", priority: 20}
	registry.Register(plugin1)
	registry.Register(plugin2)

	plugins := registry.ListPlugins()
	assert.Len(t, plugins, 2)

	plugins[0] = nil
	assert.NotNil(t, registry.plugins[0], "ListPlugins returns a copy")
}
