package transcache

import "time"

// Source language and provider name stamped on manual override entries.
const (
	ManualSourceLanguage = "manual"
	ManualProvider       = "manual"
)

// ResourceInfo identifies the field of an application resource a text
// belongs to. It is only used when all three parts are set.
type ResourceInfo struct {
	Type  string // e.g. "property"
	ID    string // e.g. "123"
	Field string // e.g. "propertyType"
}

// CacheEntry is one resolved translation as persisted by a Store.
type CacheEntry struct {
	ID               string
	SourceText       string
	SourceLanguage   string
	TargetLanguage   string
	TranslatedText   string
	ResourceType     string
	ResourceID       string
	Field            string
	IsManualOverride bool
	Provider         string
	Model            string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	LastUsedAt       time.Time
}

// Resource returns the resource info stored on the entry.
func (e *CacheEntry) Resource() ResourceInfo {
	return ResourceInfo{Type: e.ResourceType, ID: e.ResourceID, Field: e.Field}
}

// Stats summarises the contents of a Store.
type Stats struct {
	TotalEntries    int            `json:"total_entries"`
	ByLanguage      map[string]int `json:"by_language"`
	ManualOverrides int            `json:"manual_overrides"`
}

// TranslateParams describes a single-text translation request.
type TranslateParams struct {
	Text     string
	To       string
	From     string // Optional; detected by the provider when empty
	Context  string // Optional disambiguation hint for the provider
	Resource ResourceInfo
}

// BatchParams describes a batch translation request. Batches never carry
// resource info: a resource key does not include the text, so every text in
// the batch would collide on it.
type BatchParams struct {
	Texts   []string
	To      string
	From    string
	Context string
}

// Result is the outcome of a translation request.
type Result struct {
	Text             string `json:"text"`
	From             string `json:"from,omitempty"`
	Cached           bool   `json:"cached"`
	IsManualOverride bool   `json:"is_manual_override,omitempty"`
}

// ManualOverride pins a translation for one resource field.
type ManualOverride struct {
	Text           string
	TranslatedText string
	To             string
	Resource       ResourceInfo
}

// ScopeKind selects which entries Invalidate removes.
type ScopeKind int

const (
	// ScopeResource removes every entry of one resource (type + id).
	ScopeResource ScopeKind = iota
	// ScopeLanguage removes every entry for one target language.
	ScopeLanguage
	// ScopeAll removes everything.
	ScopeAll
)

// Scope is an invalidation scope. Build one with ByResource, ByLanguage or All.
type Scope struct {
	Kind         ScopeKind
	ResourceType string
	ResourceID   string
	Language     string
}

// ByResource scopes invalidation to one resource.
func ByResource(resourceType, resourceID string) Scope {
	return Scope{Kind: ScopeResource, ResourceType: resourceType, ResourceID: resourceID}
}

// ByLanguage scopes invalidation to one target language.
func ByLanguage(lang string) Scope {
	return Scope{Kind: ScopeLanguage, Language: lang}
}

// All scopes invalidation to the whole store.
func All() Scope {
	return Scope{Kind: ScopeAll}
}

// TextNode represents a translatable unit extracted from structured content.
type TextNode struct {
	ID       string            // Position-based identifier
	Text     string            // Original text content (trimmed)
	Hash     string            // HashText of Text
	NodeType string            // Content type: "html_text"
	Context  string            // Disambiguation context for AI
	Metadata map[string]string // Additional info (parent tag, etc.)
}

// RTLLanguages contains language codes that use right-to-left text direction.
var RTLLanguages = map[string]bool{
	"ar": true, // Arabic
	"he": true, // Hebrew
	"fa": true, // Persian/Farsi
	"ur": true, // Urdu
	"ps": true, // Pashto
	"sd": true, // Sindhi
	"ug": true, // Uyghur
}

// IgnoredTags contains HTML tags whose content should not be translated.
var IgnoredTags = map[string]bool{
	"script":   true,
	"style":    true,
	"code":     true,
	"pre":      true,
	"textarea": true,
	"noscript": true,
}

// ProcessedContent is the result of translating structured content.
type ProcessedContent struct {
	Content         string // Translated content
	TranslatedCount int    // Nodes filled from a provider call; repeated texts share one call
	CachedCount     int    // Nodes served from cache or passed through unchanged
	TotalNodes      int    // Total translatable nodes found
}
