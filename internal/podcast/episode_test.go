package podcast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEpisode_PlainDescription(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"paragraphs", "<p>Hello <b>world</b></p><p>Tyres &amp; strategy</p>", "Hello world Tyres & strategy"},
		{"line breaks", "Lap one<br/>Lap two", "Lap one Lap two"},
		{"script removed", "Safe<script>alert(1)</script> text", "Safe text"},
		{"plain text", "  just   text ", "just text"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Episode{Description: tt.html}
			assert.Equal(t, tt.want, e.PlainDescription())
		})
	}
}

func TestEpisode_Body(t *testing.T) {
	assert.Equal(t, "<p>full</p>", Episode{Description: "short", ContentEncoded: "<p>full</p>"}.Body())
	assert.Equal(t, "short", Episode{Description: "short", ContentEncoded: "  "}.Body())
}

func TestEpisode_DescriptionMarkdown(t *testing.T) {
	e := Episode{
		Description:    "ignored",
		ContentEncoded: `<h2>Notes</h2><p>Full <a href="https://example.com">show notes</a></p>`,
	}

	md, err := e.DescriptionMarkdown()
	require.NoError(t, err)
	assert.Contains(t, md, "## Notes")
	assert.Contains(t, md, "[show notes](https://example.com)")
}

func TestEpisode_HasEpisodeNumber(t *testing.T) {
	assert.True(t, Episode{EpisodeNumber: "3"}.HasEpisodeNumber())
	assert.False(t, Episode{}.HasEpisodeNumber())
}
