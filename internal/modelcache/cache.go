package modelcache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/tfmodel/tfmodel/internal/fetch"
	"github.com/tfmodel/tfmodel/internal/logging"
	"github.com/tfmodel/tfmodel/internal/manifest"
)

// Cache error taxonomy.
var (
	// ErrUnsupportedManifest is returned when the remote manifest's content
	// type does not indicate the supported JSON web format.
	ErrUnsupportedManifest = errors.New("unsupported model manifest format")

	// ErrIncompleteEntry marks an index entry whose shard set never finished
	// downloading. Resolve recovers by re-fetching; the error surfaces only
	// when the re-fetch itself fails.
	ErrIncompleteEntry = errors.New("incomplete cache entry")
)

// Cache resolves model manifest URLs to local copies under a root directory.
// The cache exclusively owns its root and index file; no other component
// may write to either.
type Cache struct {
	root    string
	fetcher fetch.Fetcher
	index   *Index

	// group coalesces concurrent resolves of the same URL into one fetch.
	group singleflight.Group
}

// New creates a Cache rooted at root, creating the directory if needed, and
// loads the persisted index.
func New(ctx context.Context, root string, fetcher fetch.Fetcher) (*Cache, error) {
	if root == "" {
		return nil, errors.New("cache root cannot be empty")
	}
	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, fmt.Errorf("creating cache root: %w", err)
	}
	return &Cache{
		root:    root,
		fetcher: fetcher,
		index:   LoadIndex(ctx, root),
	}, nil
}

// Root returns the cache root directory.
func (c *Cache) Root() string {
	return c.root
}

// Entries returns the index entries sorted by URL.
func (c *Cache) Entries() []Entry {
	return c.index.Entries()
}

// Resolve returns a local path to the entry file of the model at url,
// downloading the manifest and its shards when the cache has no fresh copy.
//
// Concurrent calls for the same URL share a single fetch. Calls for
// different URLs proceed independently.
func (c *Cache) Resolve(ctx context.Context, url string) (string, error) {
	path, err, _ := c.group.Do(url, func() (interface{}, error) {
		return c.resolve(ctx, url)
	})
	if err != nil {
		return "", err
	}
	return path.(string), nil
}

func (c *Cache) resolve(ctx context.Context, url string) (string, error) {
	log := logging.FromContext(ctx)

	entry, ok := c.index.Get(url)
	if ok && entry.State == StateComplete {
		fresh, err := c.fetcher.Check(ctx, url, entry.LastModified)
		if err != nil {
			return "", err
		}
		if fresh {
			log.Debug().
				Str("component", "modelcache").
				Str("operation", "resolve").
				Str("url", url).
				Str("content_hash", entry.ContentHash).
				Msg("cache hit, remote unchanged")
			return entry.EntryPath(c.root), nil
		}
		log.Info().
			Str("component", "modelcache").
			Str("url", url).
			Msg("remote model changed, re-fetching")
	} else if ok {
		// A pending entry means a previous fetch never finished; its
		// directory may be missing shards. Never hand out that path.
		log.Warn().
			Str("component", "modelcache").
			Str("url", url).
			Str("content_hash", entry.ContentHash).
			Str("reason", ErrIncompleteEntry.Error()).
			Msg("discarding incomplete cache entry")
	}

	return c.fetchModel(ctx, url)
}

// fetchModel performs a full fetch: manifest, index record, then shards.
//
// The index entry is persisted in the pending state before any shard
// download starts, so an interrupted fetch still leaves a discoverable
// record; the entry is promoted to complete only after every shard landed.
func (c *Cache) fetchModel(ctx context.Context, url string) (string, error) {
	log := logging.FromContext(ctx)
	start := time.Now()

	res, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		return "", err
	}

	if !manifest.IsJSONContentType(res.ContentType) {
		return "", fmt.Errorf("%w: content-type %q for %s", ErrUnsupportedManifest, res.ContentType, url)
	}

	entry := Entry{
		Key:           url,
		ContentHash:   HashURL(url),
		LastModified:  res.LastModified,
		EntryFilename: manifest.EntryFilename,
		State:         StatePending,
		FetchedAt:     start,
	}
	if err := c.index.Put(entry); err != nil {
		return "", err
	}

	dir := entry.Dir(c.root)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("creating cache directory %s: %w", dir, err)
	}
	if err := os.WriteFile(entry.EntryPath(c.root), res.Body, 0600); err != nil {
		return "", fmt.Errorf("writing manifest file: %w", err)
	}

	m, err := manifest.Parse(res.Body)
	if err != nil {
		return "", err
	}
	if m.ConverterOlderThanMin() {
		log.Warn().
			Str("component", "modelcache").
			Str("url", url).
			Str("converted_by", m.ConvertedBy).
			Str("min_converter", manifest.MinConverterVersion).
			Msg("model was produced by an old converter release")
	}

	if err := c.fetchShards(ctx, url, dir, m.ShardPaths()); err != nil {
		return "", err
	}

	entry.State = StateComplete
	if err := c.index.Put(entry); err != nil {
		return "", err
	}

	log.Info().
		Str("component", "modelcache").
		Str("operation", "fetch_model").
		Str("url", url).
		Str("content_hash", entry.ContentHash).
		Int("shards", len(m.ShardPaths())).
		Dur("elapsed", time.Since(start)).
		Msg("model fetched")

	return entry.EntryPath(c.root), nil
}

// fetchShards downloads every shard concurrently and fails fast on the
// first error.
func (c *Cache) fetchShards(ctx context.Context, manifestURL, dir string, shards []string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, shard := range shards {
		shard := shard
		g.Go(func() error {
			shardURL, err := manifest.ResolveShardURL(manifestURL, shard)
			if err != nil {
				return err
			}
			res, err := c.fetcher.Fetch(ctx, shardURL)
			if err != nil {
				return fmt.Errorf("fetching shard %s: %w", shard, err)
			}
			if err := writeShard(dir, shard, res.Body); err != nil {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// writeShard writes a shard body under dir, creating intermediate
// directories for nested shard names. Shard names that would escape dir are
// rejected.
func writeShard(dir, shard string, body []byte) error {
	path := filepath.Join(dir, filepath.FromSlash(shard))
	if !strings.HasPrefix(path, filepath.Clean(dir)+string(os.PathSeparator)) {
		return fmt.Errorf("illegal shard path: %s", shard)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("creating shard directory: %w", err)
	}
	if err := os.WriteFile(path, body, 0600); err != nil {
		return fmt.Errorf("writing shard %s: %w", shard, err)
	}
	return nil
}

// Remove evicts the entry for url, deleting its cache directory and index
// record. Removing an unknown URL is a no-op.
func (c *Cache) Remove(ctx context.Context, url string) error {
	entry, ok := c.index.Get(url)
	if !ok {
		return nil
	}
	if err := os.RemoveAll(entry.Dir(c.root)); err != nil {
		return fmt.Errorf("removing cache directory: %w", err)
	}
	if err := c.index.Remove(url); err != nil {
		return err
	}
	logging.FromContext(ctx).Info().
		Str("component", "modelcache").
		Str("operation", "remove").
		Str("url", url).
		Msg("cache entry removed")
	return nil
}

// Clear evicts every entry.
func (c *Cache) Clear(ctx context.Context) error {
	for _, entry := range c.index.Entries() {
		if err := c.Remove(ctx, entry.Key); err != nil {
			return err
		}
	}
	return nil
}
