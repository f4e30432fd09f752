package transcache

import (
	"strings"
	"testing"
)

func TestHashText(t *testing.T) {
	h := HashText("Hello World")

	if len(h) != 32 {
		t.Errorf("Expected 32 hex chars, got %d (%s)", len(h), h)
	}
	if strings.Trim(h, "0123456789abcdef") != "" {
		t.Errorf("Expected lowercase hex, got %s", h)
	}
	if HashText("Hello World") != h {
		t.Error("HashText should be deterministic")
	}
	if HashText("Hello World ") == h {
		t.Error("Different texts should hash differently")
	}
	if len(HashText("")) != 32 {
		t.Error("Empty text should still produce a full-width digest")
	}
}

func TestHashKey(t *testing.T) {
	key := HashKey("Hello", "es_ES")

	if !strings.HasPrefix(key, HashKeyPrefix) {
		t.Errorf("Expected %q prefix, got %s", HashKeyPrefix, key)
	}
	if !strings.HasSuffix(key, ":es_ES") {
		t.Errorf("Expected language suffix, got %s", key)
	}
	if HashKey("Hello", "es") == HashKey("Hello", "fr") {
		t.Error("Keys for different languages should differ")
	}
}

func TestResourceKey(t *testing.T) {
	tests := []struct {
		name                 string
		typ, id, field, lang string
		expected             string
	}{
		{"plain", "property", "123", "title", "he", "res:property:123:title:he"},
		{"colon in id", "page", "a:b", "body", "en", "res:page:a%3Ab:body:en"},
		{"percent", "page", "50%", "body", "en", "res:page:50%25:body:en"},
		{"escaped literal", "page", "a%3Ab", "body", "en", "res:page:a%253Ab:body:en"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResourceKey(tt.typ, tt.id, tt.field, tt.lang); got != tt.expected {
				t.Errorf("ResourceKey() = %q, want %q", got, tt.expected)
			}
		})
	}

	// Shifting a delimiter between components must not produce the same key.
	if ResourceKey("a:b", "c", "d", "en") == ResourceKey("a", "b:c", "d", "en") {
		t.Error("Escaping should keep component boundaries unambiguous")
	}
}

func TestKeyFor(t *testing.T) {
	full := ResourceInfo{Type: "property", ID: "1", Field: "title"}
	if got := KeyFor("Hello", "es", full); got != ResourceKey("property", "1", "title", "es") {
		t.Errorf("Expected resource key, got %s", got)
	}

	partial := ResourceInfo{Type: "property", ID: "1"}
	if got := KeyFor("Hello", "es", partial); got != HashKey("Hello", "es") {
		t.Errorf("Partial resource info should use the hash key, got %s", got)
	}

	if HasResourceInfo(partial) {
		t.Error("HasResourceInfo should be false for partial info")
	}
}
