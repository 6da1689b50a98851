// Package manifest parses TensorFlow.js web-format model manifests
// (model.json) and resolves the shard files they reference.
package manifest

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/url"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// EntryFilename is the fixed name of the manifest file inside a cache
// directory. The web format always calls its entry file model.json.
const EntryFilename = "model.json"

// MinConverterVersion is the oldest tfjs-converter release known to produce
// manifests this package handles cleanly. Older manifests still load; the
// caller is expected to log a warning.
const MinConverterVersion = "1.7.0"

// Manifest is a parsed model.json.
type Manifest struct {
	// Format names the serialization layout, e.g. "graph-model" or
	// "layers-model".
	Format string `json:"format"`

	// GeneratedBy records the framework that produced the model.
	GeneratedBy string `json:"generatedBy"`

	// ConvertedBy records the tfjs-converter release, when present.
	ConvertedBy string `json:"convertedBy"`

	// ModelTopology is opaque to the cache; only the inference engine
	// interprets it.
	ModelTopology json.RawMessage `json:"modelTopology"`

	// WeightsManifest lists the weight shard groups.
	WeightsManifest []WeightsGroup `json:"weightsManifest"`
}

// WeightsGroup is one group of weight shards and their tensor specs.
type WeightsGroup struct {
	Paths   []string        `json:"paths"`
	Weights json.RawMessage `json:"weights"`
}

// Parse decodes a model.json body.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing model manifest: %w", err)
	}
	return &m, nil
}

// ShardPaths returns the union of all shard file names across weight groups,
// in declaration order, with duplicates removed.
func (m *Manifest) ShardPaths() []string {
	var paths []string
	seen := make(map[string]bool)
	for _, group := range m.WeightsManifest {
		for _, p := range group.Paths {
			if seen[p] {
				continue
			}
			seen[p] = true
			paths = append(paths, p)
		}
	}
	return paths
}

// ResolveShardURL resolves a shard's relative name against the directory of
// the manifest URL. Given manifest https://host/path/model.json and shard
// "a.bin", the result is https://host/path/a.bin.
func ResolveShardURL(manifestURL, shard string) (string, error) {
	base, err := url.Parse(manifestURL)
	if err != nil {
		return "", fmt.Errorf("parsing manifest URL %s: %w", manifestURL, err)
	}
	ref, err := url.Parse(shard)
	if err != nil {
		return "", fmt.Errorf("parsing shard path %s: %w", shard, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// IsJSONContentType reports whether a Content-Type header value indicates a
// JSON manifest.
func IsJSONContentType(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// converterVersionRe extracts a semver-looking token from a convertedBy
// string such as "TensorFlow.js Converter v3.18.0".
var converterVersionRe = regexp.MustCompile(`v?(\d+\.\d+\.\d+)`)

// ConverterVersion parses the converter release out of the manifest's
// ConvertedBy field. The second return is false when no version is present.
func (m *Manifest) ConverterVersion() (*semver.Version, bool) {
	match := converterVersionRe.FindStringSubmatch(m.ConvertedBy)
	if match == nil {
		return nil, false
	}
	v, err := semver.NewVersion(match[1])
	if err != nil {
		return nil, false
	}
	return v, true
}

// ConverterOlderThanMin reports whether the manifest declares a converter
// version older than MinConverterVersion. Manifests without a converter
// version report false.
func (m *Manifest) ConverterOlderThanMin() bool {
	v, ok := m.ConverterVersion()
	if !ok {
		return false
	}
	minVersion := semver.MustParse(MinConverterVersion)
	return v.LessThan(minVersion)
}
