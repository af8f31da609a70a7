// Package search indexes normalized episodes for full-text queries.
package search

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	bleveQuery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/pders01/podrelay/internal/podcast"
)

const snippetLength = 160

// Result is one matching episode.
type Result struct {
	Episode podcast.Episode `json:"episode"`
	Score   float64         `json:"score"`
	Snippet string          `json:"snippet,omitempty"`
}

// Index is an in-memory bleve index over the current catalog. Each update
// builds a fresh index and swaps it in, matching how catalogs are re-derived
// from scratch on every fetch.
type Index struct {
	mu       sync.RWMutex
	idx      bleve.Index
	episodes []podcast.Episode
}

// NewIndex creates an empty index.
func NewIndex() (*Index, error) {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("creating index: %w", err)
	}
	return &Index{idx: idx}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = standard.Name

	dm := bleve.NewDocumentMapping()

	title := bleve.NewTextFieldMapping()
	title.Analyzer = standard.Name
	title.Store = true
	title.IncludeTermVectors = true

	desc := bleve.NewTextFieldMapping()
	desc.Analyzer = standard.Name
	desc.Store = false

	content := bleve.NewTextFieldMapping()
	content.Analyzer = standard.Name
	content.Store = false

	season := bleve.NewTextFieldMapping()
	season.Analyzer = standard.Name
	season.Store = true

	dm.AddFieldMappingsAt("title", title)
	dm.AddFieldMappingsAt("description", desc)
	dm.AddFieldMappingsAt("content", content)
	dm.AddFieldMappingsAt("season", season)

	im.DefaultMapping = dm
	return im
}

// OnCatalogUpdated replaces the indexed episodes with the catalog's.
func (i *Index) OnCatalogUpdated(catalog *podcast.Catalog) error {
	if catalog == nil {
		return i.Replace(nil)
	}
	return i.Replace(catalog.Episodes)
}

// Replace rebuilds the index from episodes.
func (i *Index) Replace(episodes []podcast.Episode) error {
	next, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return fmt.Errorf("creating index: %w", err)
	}

	batch := next.NewBatch()
	for n, e := range episodes {
		if err := batch.Index(strconv.Itoa(n), map[string]any{
			"title":       e.Title,
			"description": e.PlainDescription(),
			"content":     stripMarkup(e.ContentEncoded),
			"season":      e.Season,
		}); err != nil {
			_ = next.Close()
			return fmt.Errorf("indexing episode %q: %w", e.ID, err)
		}
	}
	if err := next.Batch(batch); err != nil {
		_ = next.Close()
		return fmt.Errorf("indexing batch: %w", err)
	}

	kept := make([]podcast.Episode, len(episodes))
	copy(kept, episodes)

	i.mu.Lock()
	old := i.idx
	i.idx = next
	i.episodes = kept
	i.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	return nil
}

// Search runs query against titles, descriptions and show notes. Queries
// shorter than two characters return nothing.
func (i *Index) Search(query string, limit int) ([]*Result, error) {
	if len(strings.TrimSpace(query)) < 2 {
		return []*Result{}, nil
	}
	if limit <= 0 {
		limit = 10
	}

	tokens := tokenize(query)
	var qs []bleveQuery.Query
	for _, tok := range tokens {
		// title^4
		qt := bleve.NewMatchQuery(tok)
		qt.SetField("title")
		qt.SetBoost(4.0)
		qs = append(qs, qt)
		qtp := bleve.NewPrefixQuery(tok)
		qtp.SetField("title")
		qtp.SetBoost(3.5)
		qs = append(qs, qtp)
		// description^2
		qd := bleve.NewMatchQuery(tok)
		qd.SetField("description")
		qd.SetBoost(2.0)
		qs = append(qs, qd)
		qdp := bleve.NewPrefixQuery(tok)
		qdp.SetField("description")
		qdp.SetBoost(1.8)
		qs = append(qs, qdp)
		// content^1
		qc := bleve.NewMatchQuery(tok)
		qc.SetField("content")
		qc.SetBoost(1.0)
		qs = append(qs, qc)
		// season, exact
		qs2 := bleve.NewMatchQuery(tok)
		qs2.SetField("season")
		qs2.SetBoost(0.5)
		qs = append(qs, qs2)
	}
	if len(qs) == 0 {
		return []*Result{}, nil
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(qs...), limit, 0, false)
	res, err := i.idx.Search(req)
	if err != nil {
		return nil, err
	}

	out := make([]*Result, 0, len(res.Hits))
	for _, h := range res.Hits {
		n, err := strconv.Atoi(h.ID)
		if err != nil || n < 0 || n >= len(i.episodes) {
			continue
		}
		e := i.episodes[n]
		out = append(out, &Result{
			Episode: e,
			Score:   h.Score,
			Snippet: bestSnippet(e.PlainDescription(), tokens, snippetLength),
		})
	}
	return out, nil
}

// DocCount reports total documents in the index.
func (i *Index) DocCount() (int, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	n, err := i.idx.DocCount()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Close releases the index.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.idx.Close()
}

func stripMarkup(s string) string {
	return podcast.Episode{Description: s}.PlainDescription()
}
