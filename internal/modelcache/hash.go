package modelcache

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// HashURL derives the cache directory name for a model URL.
//
// The hash is a naming scheme, not an integrity check: it is a fast
// non-cryptographic digest of the URL string, stable across runs, with
// collisions between distinct URLs astronomically unlikely at expected
// cardinalities.
func HashURL(url string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(url))
}
