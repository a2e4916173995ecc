package revalcache

import (
	"strings"

	"github.com/unkn0wn-root/revalcache/internal/util"
)

// MaxIdentifierLength is the longest identifier kept verbatim in a key.
// Longer ones are replaced by HashMarker + xxhash64 of the whole identifier.
const MaxIdentifierLength = 200

// HashMarker prefixes hashed identifiers.
const HashMarker = "#h:"

// CacheKey builds the storage key for id under kind.
//
// A trailing slash is stripped unless id is the root "/". An id that
// already carries the kind prefix is normalized as its identifier, so
// feeding a key back through CacheKey is a no-op.
func CacheKey(kind Kind, id string) string {
	p := kind.prefix()
	id = normalizeID(strings.TrimPrefix(id, p))
	if len(id) > MaxIdentifierLength {
		id = HashMarker + util.Hash64(id)
	}
	return p + id
}

// CallKey is the key for an outbound call. Only replayable bodies are passed
// in as body; calls with streaming bodies share the key of a bodiless call.
func CallKey(method, url, body string) string {
	return CacheKey(KindCall, util.Signature(strings.ToUpper(method), url, body))
}

func normalizeID(id string) string {
	if len(id) <= 1 {
		return id
	}
	trimmed := strings.TrimRight(id, "/")
	if trimmed == "" {
		return "/"
	}
	return trimmed
}
