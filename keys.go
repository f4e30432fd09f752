package transcache

import (
	"fmt"
	"strings"

	"github.com/zeebo/xxh3"
)

// Key namespaces. A key always starts with exactly one of these, so hash
// keys and resource keys can never collide.
const (
	HashKeyPrefix     = "hash:"
	ResourceKeyPrefix = "res:"
)

// keyEscaper escapes the key delimiter inside key components. '%' is escaped
// first so an escaped ':' can't be confused with a literal "%3A".
var keyEscaper = strings.NewReplacer("%", "%25", ":", "%3A")

// HashText returns the 128-bit xxh3 digest of text as 32 hex characters.
// The digest only depends on the text bytes, so it is stable across
// processes, platforms and releases.
func HashText(text string) string {
	h := xxh3.HashString128(text)
	return fmt.Sprintf("%016x%016x", h.Hi, h.Lo)
}

// HashKey builds the content-addressed cache key for text in targetLang.
func HashKey(text, targetLang string) string {
	return HashKeyPrefix + HashText(text) + ":" + keyEscaper.Replace(targetLang)
}

// ResourceKey builds the cache key for one field of one resource in targetLang.
func ResourceKey(resourceType, resourceID, field, targetLang string) string {
	return ResourceKeyPrefix +
		keyEscaper.Replace(resourceType) + ":" +
		keyEscaper.Replace(resourceID) + ":" +
		keyEscaper.Replace(field) + ":" +
		keyEscaper.Replace(targetLang)
}

// HasResourceInfo reports whether all three resource parts are set.
// Partial info counts as no info and falls back to the hash key.
func HasResourceInfo(r ResourceInfo) bool {
	return r.Type != "" && r.ID != "" && r.Field != ""
}

// KeyFor returns the key a request maps to: the resource key when resource
// info is complete, the hash key otherwise. The same key is used for cache
// entries and for in-flight coalescing.
func KeyFor(text, targetLang string, r ResourceInfo) string {
	if HasResourceInfo(r) {
		return ResourceKey(r.Type, r.ID, r.Field, targetLang)
	}
	return HashKey(text, targetLang)
}
