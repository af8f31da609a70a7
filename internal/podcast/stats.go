package podcast

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"

	"github.com/pders01/podrelay/internal/debuglog"
)

//go:embed stats.toml
var statsTOML []byte

// Stat holds listener counts for one publish date.
type Stat struct {
	Streams int `toml:"streams" json:"streams"`
	Spotify int `toml:"spotify" json:"spotify"`
}

// Total is the combined view count.
func (s Stat) Total() int {
	return s.Streams + s.Spotify
}

// StatsSource resolves a M/D/YY date key to listener counts.
type StatsSource interface {
	Lookup(key string) (Stat, bool)
}

type statsFile struct {
	Episodes map[string]Stat `toml:"episodes"`
}

// StatsTable is a read-only lookup keyed by M/D/YY.
type StatsTable struct {
	entries map[string]Stat
}

// ParseStats decodes a stats table from TOML.
func ParseStats(data []byte) (*StatsTable, error) {
	var f statsFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing stats table: %w", err)
	}
	if f.Episodes == nil {
		f.Episodes = map[string]Stat{}
	}
	return &StatsTable{entries: f.Episodes}, nil
}

// DefaultStats returns the built-in table.
func DefaultStats() *StatsTable {
	t, err := ParseStats(statsTOML)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *StatsTable) Lookup(key string) (Stat, bool) {
	if t == nil {
		return Stat{}, false
	}
	s, ok := t.entries[key]
	return s, ok
}

func (t *StatsTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Merge returns a new table with other's entries layered over t's.
func (t *StatsTable) Merge(other *StatsTable) *StatsTable {
	merged := make(map[string]Stat, t.Len()+other.Len())
	if t != nil {
		for k, v := range t.entries {
			merged[k] = v
		}
	}
	if other != nil {
		for k, v := range other.entries {
			merged[k] = v
		}
	}
	return &StatsTable{entries: merged}
}

// StatsStore serves the built-in table with an optional override file on top.
// Reloads swap the whole table, so lookups never see a partial merge.
type StatsStore struct {
	path    string
	current atomic.Pointer[StatsTable]

	mu    sync.Mutex
	hooks []func()
}

// LoadStats builds a store from the built-in table and, when path is set,
// the override file at path.
func LoadStats(path string) (*StatsStore, error) {
	s := &StatsStore{path: path}
	if path == "" {
		s.current.Store(DefaultStats())
		return s, nil
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *StatsStore) Lookup(key string) (Stat, bool) {
	return s.current.Load().Lookup(key)
}

// Len returns the number of entries in the active table.
func (s *StatsStore) Len() int {
	return s.current.Load().Len()
}

// Reload re-reads the override file. On error the active table is kept.
func (s *StatsStore) Reload() error {
	if s.path == "" {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("reading stats file: %w", err)
	}
	override, err := ParseStats(data)
	if err != nil {
		return err
	}
	s.current.Store(DefaultStats().Merge(override))

	s.mu.Lock()
	hooks := append([]func(){}, s.hooks...)
	s.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
	return nil
}

// OnReload registers fn to run after every successful reload.
func (s *StatsStore) OnReload(fn func()) {
	s.mu.Lock()
	s.hooks = append(s.hooks, fn)
	s.mu.Unlock()
}

// Watch reloads the override file whenever it changes, until ctx is done.
// The parent directory is watched so editors that replace the file on save
// are picked up.
func (s *StatsStore) Watch(ctx context.Context) error {
	if s.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	target := filepath.Clean(s.path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(target), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || !event.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			if err := s.Reload(); err != nil {
				debuglog.Warnf("Keeping previous stats table: %v", err)
				continue
			}
			debuglog.Infof("Reloaded stats table from %s (%d entries)", target, s.Len())
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			debuglog.Warnf("Stats watcher: %v", err)
		}
	}
}
