package podcast

import (
	"sort"
	"strings"

	"github.com/samber/lo"
)

// DefaultPerPage is the grid page size below the featured episode.
const DefaultPerPage = 3

// Catalog is one normalization result. Episodes are newest first and
// Seasons are distinct years, most recent first.
type Catalog struct {
	Title    string    `json:"title"`
	Image    string    `json:"image,omitempty"`
	Episodes []Episode `json:"episodes"`
	Seasons  []string  `json:"seasons"`
}

// Seasons returns the distinct non-empty seasons of episodes in descending
// order.
func Seasons(episodes []Episode) []string {
	seasons := lo.Uniq(lo.FilterMap(episodes, func(e Episode, _ int) (string, bool) {
		return e.Season, e.Season != ""
	}))
	sort.Sort(sort.Reverse(sort.StringSlice(seasons)))
	return seasons
}

// Latest returns the newest episode.
func (c *Catalog) Latest() (Episode, bool) {
	if c == nil || len(c.Episodes) == 0 {
		return Episode{}, false
	}
	return c.Episodes[0], true
}

// Find looks an episode up by ID.
func (c *Catalog) Find(id string) (Episode, bool) {
	if c == nil {
		return Episode{}, false
	}
	return lo.Find(c.Episodes, func(e Episode) bool {
		return e.ID == id
	})
}

// Featured returns the episode with id, or the latest one when id is empty
// or unknown.
func (c *Catalog) Featured(id string) (Episode, bool) {
	if id != "" {
		if e, ok := c.Find(id); ok {
			return e, true
		}
	}
	return c.Latest()
}

// IsAllSeasons reports whether season selects every episode.
func IsAllSeasons(season string) bool {
	switch strings.ToLower(strings.TrimSpace(season)) {
	case "", "all":
		return true
	}
	return false
}

// BySeason filters episodes to one season, keeping order.
func (c *Catalog) BySeason(season string) []Episode {
	if c == nil {
		return nil
	}
	if IsAllSeasons(season) {
		return c.Episodes
	}
	season = strings.TrimSpace(season)
	return lo.Filter(c.Episodes, func(e Episode, _ int) bool {
		return e.Season == season
	})
}

// GridPage is the episodes view: the newest matching episode is featured
// and the rest are paged.
type GridPage struct {
	Season     string    `json:"season"`
	Featured   *Episode  `json:"featured"`
	Episodes   []Episode `json:"episodes"`
	Page       int       `json:"page"`
	PerPage    int       `json:"perPage"`
	TotalPages int       `json:"totalPages"`
	Total      int       `json:"total"`
	Pages      []int     `json:"pages"`
	Seasons    []string  `json:"seasons"`
}

// Grid builds one page of the episodes view. page is 1-based and clamped to
// the available range; perPage <= 0 means DefaultPerPage.
func (c *Catalog) Grid(season string, page, perPage int) GridPage {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}

	filtered := c.BySeason(season)
	grid := GridPage{
		Season:   strings.TrimSpace(season),
		Episodes: []Episode{},
		PerPage:  perPage,
		Total:    len(filtered),
		Page:     1,
		Pages:    []int{},
		Seasons:  []string{},
	}
	if c != nil && c.Seasons != nil {
		grid.Seasons = c.Seasons
	}
	if len(filtered) == 0 {
		return grid
	}

	featured := filtered[0]
	grid.Featured = &featured

	rest := filtered[1:]
	grid.TotalPages = (len(rest) + perPage - 1) / perPage
	if grid.TotalPages == 0 {
		return grid
	}

	grid.Page = min(max(page, 1), grid.TotalPages)
	start := (grid.Page - 1) * perPage
	end := min(start+perPage, len(rest))
	grid.Episodes = rest[start:end]
	grid.Pages = VisiblePages(grid.Page, grid.TotalPages)
	return grid
}

// VisiblePages lists page numbers for a pager, with 0 marking a gap. Up to
// seven pages are listed in full.
func VisiblePages(current, total int) []int {
	if total <= 0 {
		return []int{}
	}
	if total <= 7 {
		return lo.RangeFrom(1, total)
	}
	switch {
	case current <= 4:
		return []int{1, 2, 3, 4, 5, 0, total}
	case current >= total-3:
		return []int{1, 0, total - 4, total - 3, total - 2, total - 1, total}
	default:
		return []int{1, 0, current - 1, current, current + 1, 0, total}
	}
}
