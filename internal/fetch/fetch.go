// Package fetch retrieves remote model resources over HTTP(S) or S3 and
// answers conditional freshness checks against the stored last-modified
// timestamp.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/tfmodel/tfmodel/internal/logging"
)

// ErrUnknownScheme is returned for model URLs whose scheme has no fetcher.
var ErrUnknownScheme = errors.New("unsupported URL scheme")

// Resource is the payload and metadata of one fetched remote resource.
type Resource struct {
	// Body is the full resource content.
	Body []byte

	// ContentType is the server-reported media type, possibly empty.
	ContentType string

	// LastModified is the server-reported modification timestamp, stored
	// verbatim. It is opaque to callers and only echoed back in Check.
	LastModified string
}

// Fetcher retrieves resources and probes their freshness.
type Fetcher interface {
	// Fetch downloads the resource at rawURL.
	Fetch(ctx context.Context, rawURL string) (*Resource, error)

	// Check reports whether the resource at rawURL is unchanged since
	// lastModified. A true result means the cached copy is still fresh.
	Check(ctx context.Context, rawURL, lastModified string) (bool, error)
}

// Dispatcher routes fetches to a scheme-specific Fetcher.
type Dispatcher struct {
	fetchers map[string]Fetcher
}

// NewDispatcher builds a Dispatcher over the given scheme→Fetcher mapping.
func NewDispatcher(fetchers map[string]Fetcher) *Dispatcher {
	return &Dispatcher{fetchers: fetchers}
}

// forURL selects the fetcher registered for rawURL's scheme.
func (d *Dispatcher) forURL(rawURL string) (Fetcher, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing URL %s: %w", rawURL, err)
	}
	f, ok := d.fetchers[u.Scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, u.Scheme)
	}
	return f, nil
}

// Fetch implements Fetcher.
func (d *Dispatcher) Fetch(ctx context.Context, rawURL string) (*Resource, error) {
	f, err := d.forURL(rawURL)
	if err != nil {
		return nil, err
	}
	return f.Fetch(ctx, rawURL)
}

// Check implements Fetcher.
func (d *Dispatcher) Check(ctx context.Context, rawURL, lastModified string) (bool, error) {
	f, err := d.forURL(rawURL)
	if err != nil {
		return false, err
	}
	return f.Check(ctx, rawURL, lastModified)
}

// HTTPFetcher fetches resources over HTTP(S).
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates an HTTPFetcher. A nil client uses http.DefaultClient.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{client: client}
}

// Fetch issues a GET request and returns the body plus the Content-Type and
// Last-Modified headers. Any non-2xx status is an error.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Resource, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", rawURL, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("fetching %s: unexpected status %s", rawURL, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body of %s: %w", rawURL, err)
	}

	return &Resource{
		Body:         body,
		ContentType:  resp.Header.Get("Content-Type"),
		LastModified: resp.Header.Get("Last-Modified"),
	}, nil
}

// Check issues a header-only request with If-Modified-Since set to
// lastModified. A 304 response confirms freshness; a 200 response (server
// either saw a change or ignores conditional semantics) means stale. Any
// other status is an error.
func (f *HTTPFetcher) Check(ctx context.Context, rawURL, lastModified string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return false, fmt.Errorf("building request for %s: %w", rawURL, err)
	}
	if lastModified != "" {
		req.Header.Set("If-Modified-Since", lastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("checking %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotModified:
		return true, nil
	case http.StatusOK:
		return false, nil
	default:
		logging.FromContext(ctx).Debug().
			Str("component", "fetch").
			Str("url", rawURL).
			Int("status", resp.StatusCode).
			Msg("conditional check returned unexpected status")
		return false, fmt.Errorf("checking %s: unexpected status %s", rawURL, resp.Status)
	}
}
