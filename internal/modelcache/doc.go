// Package modelcache maps model manifest URLs to locally cached copies of
// the model's files.
//
// A Cache owns a directory tree under its root plus a persisted index file.
// Resolve(url) returns a filesystem path to the model's entry file, fetching
// the manifest and its weight shards only when the cached copy is missing or
// the remote reports a newer modification time. Concurrent resolves of the
// same URL are coalesced into a single fetch.
package modelcache
