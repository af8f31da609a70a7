package podcast

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/text/language"

	"github.com/pders01/podrelay/internal/config"
)

// ErrMalformedFeed is returned when the feed body cannot be parsed.
var ErrMalformedFeed = errors.New("malformed feed")

const (
	untitled        = "Untitled"
	defaultDuration = "0"
)

// Normalizer converts raw feed bodies into catalogs. It holds no per-call
// state and is safe for concurrent use.
type Normalizer struct {
	location *time.Location
	views    *viewCounter
}

// NormalizerOption configures a Normalizer.
type NormalizerOption func(*Normalizer)

// WithLocation sets the zone used for seasons and stats date keys.
func WithLocation(loc *time.Location) NormalizerOption {
	return func(n *Normalizer) {
		if loc != nil {
			n.location = loc
		}
	}
}

// WithLanguage sets the locale used to format view counts.
func WithLanguage(tag language.Tag) NormalizerOption {
	return func(n *Normalizer) {
		n.views = newViewCounter(n.views.stats, tag)
	}
}

// NewNormalizer creates a normalizer backed by stats. Defaults are UTC and
// US English number formatting.
func NewNormalizer(stats StatsSource, opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{
		location: time.UTC,
		views:    newViewCounter(stats, language.AmericanEnglish),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// NewNormalizerFromConfig applies the [podcast] settings.
func NewNormalizerFromConfig(cfg config.PodcastConfig, stats StatsSource) (*Normalizer, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", cfg.Timezone, err)
	}
	tag, err := language.Parse(cfg.Language)
	if err != nil {
		return nil, fmt.Errorf("parsing language %q: %w", cfg.Language, err)
	}
	return NewNormalizer(stats, WithLocation(loc), WithLanguage(tag)), nil
}

// Normalize parses raw and returns its episodes newest first together with
// the season index. No partial result is returned on error.
func (n *Normalizer) Normalize(raw []byte) (*Catalog, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFeed, err)
	}

	channelImage := ""
	if feed.Image != nil {
		channelImage = strings.TrimSpace(feed.Image.URL)
	}

	images := imageExtractors(scanNamespaces(raw))
	episodes := make([]Episode, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		episodes = append(episodes, n.episode(item, images, channelImage))
	}

	sort.SliceStable(episodes, func(i, j int) bool {
		return episodes[i].PubDate.After(episodes[j].PubDate)
	})

	return &Catalog{
		Title:    strings.TrimSpace(feed.Title),
		Image:    channelImage,
		Episodes: episodes,
		Seasons:  Seasons(episodes),
	}, nil
}

func (n *Normalizer) episode(item *gofeed.Item, images []extractor, channelImage string) Episode {
	audioURL := enclosureURL(item)

	duration := strings.TrimSpace(itunesDuration(item))
	if duration == "" {
		duration = defaultDuration
	}

	var published time.Time
	season := ""
	if item.PublishedParsed != nil {
		published = item.PublishedParsed.In(n.location)
		season = strconv.Itoa(published.Year())
	}

	id := strings.TrimSpace(item.GUID)
	if id == "" {
		id = audioURL
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		title = untitled
	}

	image := firstNonEmpty(item, images...)
	if image == "" {
		image = channelImage
	}

	return Episode{
		ID:              id,
		Title:           title,
		Description:     item.Description,
		ContentEncoded:  item.Content,
		PubDate:         published,
		AudioURL:        audioURL,
		Duration:        duration,
		DurationSeconds: DurationSeconds(duration),
		Image:           image,
		Season:          season,
		EpisodeNumber:   itunesEpisode(item),
		Explicit:        itunesExplicit(item),
		Views:           n.views.Format(n.views.Count(id, published)),
	}
}
