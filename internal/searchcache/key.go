// Package searchcache builds the stable lookup keys under which resolved
// search results are cached.
package searchcache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Key derives a deterministic cache key for a search of the given kind
// ("books", "authors", "series") from its query parts. Parts are trimmed and
// lower-cased before hashing so equivalent queries share an entry.
func Key(kind string, parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(strings.ToLower(strings.TrimSpace(p))))
	}
	return kind + "." + hex.EncodeToString(h.Sum(nil))
}
