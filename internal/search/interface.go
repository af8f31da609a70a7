package search

import "github.com/pders01/podrelay/internal/podcast"

// Searcher is the search API used by the HTTP server and the CLI.
type Searcher interface {
	Search(query string, limit int) ([]*Result, error)
}

// UpdateListener is notified when a fresh catalog has been normalized.
type UpdateListener interface {
	OnCatalogUpdated(catalog *podcast.Catalog) error
}

// DebugStatser provides lightweight stats for visibility/debugging.
type DebugStatser interface {
	DocCount() (int, error)
}
