package modelcache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/tfmodel/tfmodel/internal/logging"
)

// indexFilename is the persisted index file inside the cache root.
const indexFilename = "index.json"

// Index is the URL→Entry mapping persisted alongside the cached models.
// It is loaded once at cache construction and rewritten in full, atomically,
// after every mutation. Safe for concurrent use.
type Index struct {
	mu      sync.RWMutex
	path    string
	entries map[string]Entry
}

// LoadIndex reads the index file under cacheRoot. A missing or unreadable
// file yields an empty index; corruption is logged, not fatal, so a damaged
// index degrades to a cold cache instead of blocking startup.
func LoadIndex(ctx context.Context, cacheRoot string) *Index {
	idx := &Index{
		path:    filepath.Join(cacheRoot, indexFilename),
		entries: make(map[string]Entry),
	}

	data, err := os.ReadFile(idx.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.FromContext(ctx).Warn().
				Str("component", "modelcache").
				Err(err).
				Str("path", idx.path).
				Msg("could not read cache index, starting empty")
		}
		return idx
	}

	if err := json.Unmarshal(data, &idx.entries); err != nil {
		logging.FromContext(ctx).Warn().
			Str("component", "modelcache").
			Err(err).
			Str("path", idx.path).
			Msg("cache index is corrupt, starting empty")
		idx.entries = make(map[string]Entry)
	}
	return idx
}

// Get returns the entry for url, if present.
func (i *Index) Get(url string) (Entry, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	entry, ok := i.entries[url]
	return entry, ok
}

// Put inserts or overwrites the entry for entry.Key and persists the index.
func (i *Index) Put(entry Entry) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.entries[entry.Key] = entry
	return i.save()
}

// Remove deletes the entry for url and persists the index. Removing an
// absent key is a no-op.
func (i *Index) Remove(url string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.entries[url]; !ok {
		return nil
	}
	delete(i.entries, url)
	return i.save()
}

// Entries returns all entries sorted by key.
func (i *Index) Entries() []Entry {
	i.mu.RLock()
	defer i.mu.RUnlock()

	entries := make([]Entry, 0, len(i.entries))
	for _, entry := range i.entries {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(a, b int) bool { return entries[a].Key < entries[b].Key })
	return entries
}

// Len returns the number of entries.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.entries)
}

// save writes the full index to disk via a temp file and rename, so readers
// never observe a partially written index. Callers must hold i.mu.
func (i *Index) save() error {
	data, err := json.MarshalIndent(i.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling cache index: %w", err)
	}

	tempPath := i.path + ".tmp"
	if writeErr := os.WriteFile(tempPath, append(data, '\n'), 0600); writeErr != nil {
		return fmt.Errorf("writing cache index: %w", writeErr)
	}
	if renameErr := os.Rename(tempPath, i.path); renameErr != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming cache index: %w", renameErr)
	}
	return nil
}
