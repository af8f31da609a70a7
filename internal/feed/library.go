// Package feed turns relayed feed bytes into podcast catalogs and keeps
// listeners such as the search index in step with them.
package feed

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"

	"github.com/pders01/podrelay/internal/debuglog"
	"github.com/pders01/podrelay/internal/podcast"
	"github.com/pders01/podrelay/internal/search"
)

const maxCatalogs = 32

type libraryEntry struct {
	digest  string
	catalog *podcast.Catalog
}

// Library normalizes feeds on demand. A catalog is reused while its source
// bytes are unchanged; returned catalogs are shared and must be treated as
// read-only.
type Library struct {
	source     Source
	normalizer *podcast.Normalizer
	listeners  []search.UpdateListener

	mu       sync.Mutex
	entries  map[string]*libraryEntry
	notified string
}

// NewLibrary creates a library that reads feeds from source and notifies
// listeners whenever a feed's catalog changes.
func NewLibrary(source Source, normalizer *podcast.Normalizer, listeners ...search.UpdateListener) *Library {
	return &Library{
		source:     source,
		normalizer: normalizer,
		listeners:  listeners,
		entries:    make(map[string]*libraryEntry),
	}
}

// Catalog fetches feedURL (empty for the default feed) and returns its
// normalized catalog.
func (l *Library) Catalog(ctx context.Context, feedURL string) (*podcast.Catalog, error) {
	body, err := l.source.Fetch(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("fetching feed: %w", err)
	}
	digest := generateDigest(body)

	l.mu.Lock()
	defer l.mu.Unlock()

	var catalog *podcast.Catalog
	if e, ok := l.entries[feedURL]; ok && e.digest == digest {
		catalog = e.catalog
	} else {
		catalog, err = l.normalizer.Normalize(body)
		if err != nil {
			return nil, err
		}
		if len(l.entries) >= maxCatalogs {
			l.entries = make(map[string]*libraryEntry)
		}
		l.entries[feedURL] = &libraryEntry{digest: digest, catalog: catalog}
		debuglog.WithFields(map[string]interface{}{
			"feed":     displayURL(feedURL),
			"episodes": len(catalog.Episodes),
		}).Debugf("Normalized catalog")
	}

	l.notify(feedURL+"@"+digest, catalog)
	return catalog, nil
}

// notify pushes catalog to listeners when it differs from the last one they
// saw. Listener errors are logged; the catalog itself is still valid.
func (l *Library) notify(key string, catalog *podcast.Catalog) {
	if key == l.notified {
		return
	}
	l.notified = key
	for _, listener := range l.listeners {
		if err := listener.OnCatalogUpdated(catalog); err != nil {
			debuglog.Warnf("Catalog listener failed: %v", err)
		}
	}
}

// Invalidate drops every cached catalog so the next call re-normalizes.
// Used when the stats table changes underneath.
func (l *Library) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make(map[string]*libraryEntry)
	l.notified = ""
}

// Preload warms the catalogs for feedURLs using a small worker pool.
func (l *Library) Preload(ctx context.Context, feedURLs ...string) error {
	if len(feedURLs) == 0 {
		return nil
	}

	const maxConcurrentPreload = 5
	urlChan := make(chan string, len(feedURLs))
	errChan := make(chan error, len(feedURLs))

	var wg sync.WaitGroup
	for i := 0; i < maxConcurrentPreload && i < len(feedURLs); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for u := range urlChan {
				if _, err := l.Catalog(ctx, u); err != nil {
					errChan <- fmt.Errorf("%s: %w", displayURL(u), err)
				}
			}
		}()
	}

	for _, u := range feedURLs {
		urlChan <- u
	}
	close(urlChan)

	wg.Wait()
	close(errChan)

	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func generateDigest(body []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(body))
}

func displayURL(feedURL string) string {
	if feedURL == "" {
		return "(default)"
	}
	return feedURL
}
