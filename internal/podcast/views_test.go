package podcast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestDateKey(t *testing.T) {
	tests := []struct {
		date time.Time
		want string
	}{
		{time.Date(2025, 9, 26, 0, 0, 0, 0, time.UTC), "9/26/25"},
		{time.Date(2025, 2, 9, 23, 59, 0, 0, time.UTC), "2/9/25"},
		{time.Date(2024, 12, 25, 12, 0, 0, 0, time.UTC), "12/25/24"},
		{time.Date(2005, 1, 1, 0, 0, 0, 0, time.UTC), "1/1/05"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, DateKey(tt.date))
	}
}

func TestFallbackViews(t *testing.T) {
	// e(101) + p(112) + -(45) + 1(49) = 307; 307*123 % 500 + 100
	assert.Equal(t, 361, FallbackViews("ep-1"))
	assert.Equal(t, 100, FallbackViews(""))

	// astral runes count as two UTF-16 code units
	assert.Equal(t, 451, FallbackViews("🏁")) // (0xD83C + 0xDFC1) * 123 % 500 + 100

	for i := 0; i < 3; i++ {
		assert.Equal(t, FallbackViews("https://anchor.fm/audio/ep-3.mp3"), FallbackViews("https://anchor.fm/audio/ep-3.mp3"))
	}
}

func TestViewCounter(t *testing.T) {
	stats, err := ParseStats([]byte(`
[episodes]
"9/26/25" = { streams = 204, spotify = 432 }
"1/1/25" = { streams = 0, spotify = 0 }
`))
	if err != nil {
		t.Fatal(err)
	}
	v := newViewCounter(stats, language.AmericanEnglish)

	assert.Equal(t, 636, v.Count("x", time.Date(2025, 9, 26, 8, 0, 0, 0, time.UTC)))
	assert.Equal(t, FallbackViews("x"), v.Count("x", time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)), "zero totals fall back")
	assert.Equal(t, FallbackViews("x"), v.Count("x", time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)))

	assert.Equal(t, "636", v.Format(636))
	assert.Equal(t, "1,234", v.Format(1234))
	assert.Equal(t, "1.234", newViewCounter(nil, language.German).Format(1234))
}
