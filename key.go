package memcached

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// maxKeyLength is the memcached limit on key length in bytes.
const maxKeyLength = 250

const hashedKeyMarker = "xx:"

// cleanKey drops characters memcached rejects in keys.
func cleanKey(key string) string {
	if strings.IndexFunc(key, invalidKeyRune) < 0 {
		return key
	}
	return strings.Map(func(r rune) rune {
		if invalidKeyRune(r) {
			return -1
		}
		return r
	}, key)
}

func invalidKeyRune(r rune) bool {
	return unicode.IsSpace(r) || unicode.IsControl(r)
}

// joinKey builds <prefix>:<name>:<rest>. When the result is over the
// memcached limit the last segment is replaced by "xx:" and its xxhash
// digest; if even that does not fit the whole key is hashed.
func joinKey(prefix, name string, rest ...string) string {
	parts := append([]string{prefix, name}, rest...)
	key := cleanKey(strings.Join(parts, ":"))
	if len(key) <= maxKeyLength {
		return key
	}
	last := len(parts) - 1
	head := cleanKey(strings.Join(parts[:last], ":")) + ":"
	digest := hashKey(cleanKey(parts[last]))
	if len(head)+len(hashedKeyMarker)+len(digest) <= maxKeyLength {
		return head + hashedKeyMarker + digest
	}
	return hashedKeyMarker + hashKey(key)
}

func hashKey(s string) string {
	return strconv.FormatUint(xxhash.Sum64String(s), 16)
}
