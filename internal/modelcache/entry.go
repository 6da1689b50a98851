package modelcache

import (
	"path/filepath"
	"time"
)

// EntryState tracks whether an entry's cache directory holds every file its
// manifest references.
type EntryState string

const (
	// StatePending marks an entry whose index record was persisted before
	// all shard downloads finished. A pending entry found on lookup means a
	// previous fetch was interrupted and the directory may be incomplete.
	StatePending EntryState = "pending"

	// StateComplete marks an entry whose manifest and every referenced
	// shard were fully written.
	StateComplete EntryState = "complete"
)

// Entry is the persisted record of one cached model.
type Entry struct {
	// Key is the model manifest URL.
	Key string `json:"key"`

	// ContentHash is the URL hash naming the entry's cache directory.
	ContentHash string `json:"content_hash"`

	// LastModified is the remote's modification timestamp at the time of
	// the last fetch, stored verbatim for conditional re-checks.
	LastModified string `json:"last_modified"`

	// EntryFilename is the manifest file name inside the cache directory.
	EntryFilename string `json:"entry_filename"`

	// State records whether the entry's shard set is complete.
	State EntryState `json:"state"`

	// FetchedAt is when the last fetch started.
	FetchedAt time.Time `json:"fetched_at"`
}

// Dir returns the entry's cache directory under root.
func (e Entry) Dir(root string) string {
	return filepath.Join(root, e.ContentHash)
}

// EntryPath returns the full path of the entry's manifest file under root.
func (e Entry) EntryPath(root string) string {
	return filepath.Join(e.Dir(root), e.EntryFilename)
}
