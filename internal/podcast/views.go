package podcast

import (
	"fmt"
	"time"
	"unicode/utf16"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DateKey formats t as M/D/YY, the stats table key. Month and day carry no
// leading zero; the year is always two digits.
func DateKey(t time.Time) string {
	return fmt.Sprintf("%d/%d/%02d", int(t.Month()), t.Day(), t.Year()%100)
}

// FallbackViews derives a stable pseudo view count from an episode ID: the
// UTF-16 code units are summed, then scaled into [100, 600).
func FallbackViews(id string) int {
	sum := 0
	for _, unit := range utf16.Encode([]rune(id)) {
		sum += int(unit)
	}
	return sum*123%500 + 100
}

// viewCounter resolves and formats the views figure for an episode.
type viewCounter struct {
	stats   StatsSource
	printer *message.Printer
}

func newViewCounter(stats StatsSource, lang language.Tag) *viewCounter {
	return &viewCounter{
		stats:   stats,
		printer: message.NewPrinter(lang),
	}
}

// Count returns the table total for the publish date when one is recorded
// and positive, otherwise the fallback for id.
func (v *viewCounter) Count(id string, published time.Time) int {
	if v.stats != nil && !published.IsZero() {
		if stat, ok := v.stats.Lookup(DateKey(published)); ok && stat.Total() > 0 {
			return stat.Total()
		}
	}
	return FallbackViews(id)
}

// Format renders n with the locale's thousands separator.
func (v *viewCounter) Format(n int) string {
	return v.printer.Sprintf("%d", n)
}
