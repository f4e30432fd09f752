package cache

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-json"

	"github.com/ZaguanLabs/transcache"
)

// ExportVersion is written to every export and checked on import.
const ExportVersion = "2.0"

// ExportFormat represents the JSON structure for cache export/import.
type ExportFormat struct {
	Version    string            `json:"version"`
	ExportedAt string            `json:"exported_at"`
	Entries    []ExportEntry     `json:"entries"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// ExportEntry represents a single cache entry.
type ExportEntry struct {
	Key              string    `json:"key"`
	SourceText       string    `json:"source_text,omitempty"`
	SourceLanguage   string    `json:"source_language,omitempty"`
	TargetLanguage   string    `json:"target_language"`
	TranslatedText   string    `json:"translated_text"`
	ResourceType     string    `json:"resource_type,omitempty"`
	ResourceID       string    `json:"resource_id,omitempty"`
	Field            string    `json:"field,omitempty"`
	IsManualOverride bool      `json:"is_manual_override,omitempty"`
	Provider         string    `json:"provider,omitempty"`
	Model            string    `json:"model,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	LastUsedAt       time.Time `json:"last_used_at"`
}

func exportEntry(e transcache.CacheEntry) ExportEntry {
	return ExportEntry{
		Key:              e.ID,
		SourceText:       e.SourceText,
		SourceLanguage:   e.SourceLanguage,
		TargetLanguage:   e.TargetLanguage,
		TranslatedText:   e.TranslatedText,
		ResourceType:     e.ResourceType,
		ResourceID:       e.ResourceID,
		Field:            e.Field,
		IsManualOverride: e.IsManualOverride,
		Provider:         e.Provider,
		Model:            e.Model,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
		LastUsedAt:       e.LastUsedAt,
	}
}

func (e ExportEntry) entry() transcache.CacheEntry {
	return transcache.CacheEntry{
		ID:               e.Key,
		SourceText:       e.SourceText,
		SourceLanguage:   e.SourceLanguage,
		TargetLanguage:   e.TargetLanguage,
		TranslatedText:   e.TranslatedText,
		ResourceType:     e.ResourceType,
		ResourceID:       e.ResourceID,
		Field:            e.Field,
		IsManualOverride: e.IsManualOverride,
		Provider:         e.Provider,
		Model:            e.Model,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
		LastUsedAt:       e.LastUsedAt,
	}
}

// Exporter provides cache export functionality.
type Exporter struct {
	store Dumper
	now   func() time.Time
}

// NewExporter creates a new cache exporter.
func NewExporter(store Dumper) *Exporter {
	return &Exporter{store: store, now: time.Now}
}

// Export writes the store contents to a writer in JSON format.
func (e *Exporter) Export(ctx context.Context, w io.Writer, metadata map[string]string) error {
	entries, err := e.store.Entries(ctx)
	if err != nil {
		return fmt.Errorf("getting cache entries: %w", err)
	}

	export := ExportFormat{
		Version:    ExportVersion,
		ExportedAt: e.now().UTC().Format(time.RFC3339),
		Entries:    make([]ExportEntry, len(entries)),
		Metadata:   metadata,
	}
	for i, entry := range entries {
		export.Entries[i] = exportEntry(entry)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(export); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}

	return nil
}

// ExportToFile exports the store to a file.
// The path is provided by the caller and is intentionally user-controlled.
func (e *Exporter) ExportToFile(ctx context.Context, path string, metadata map[string]string) error {
	f, err := os.Create(path) // #nosec G304 - path is intentionally user-provided
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	return e.Export(ctx, f, metadata)
}

// Importer provides cache import functionality.
type Importer struct {
	store transcache.Store
}

// NewImporter creates a new cache importer.
func NewImporter(store transcache.Store) *Importer {
	return &Importer{store: store}
}

// Import reads cache entries from a reader and loads them into the store.
// Timestamps are kept when the store is a Restorer. Entries whose key does
// not match their content are counted as failed. Only resource entries keep
// the manual override flag.
func (i *Importer) Import(ctx context.Context, r io.Reader) (*ImportResult, error) {
	var export ExportFormat
	if err := json.NewDecoder(r).Decode(&export); err != nil {
		return nil, fmt.Errorf("decoding JSON: %w", err)
	}
	if export.Version != ExportVersion {
		return nil, fmt.Errorf("unsupported export version %q", export.Version)
	}

	result := &ImportResult{
		Version:  export.Version,
		Metadata: export.Metadata,
	}

	restorer, canRestore := i.store.(Restorer)
	for _, item := range export.Entries {
		entry := item.entry()
		if entry.ID != transcache.KeyFor(entry.SourceText, entry.TargetLanguage, entry.Resource()) {
			result.Failed++
			continue
		}
		if !transcache.HasResourceInfo(entry.Resource()) {
			entry.ResourceType, entry.ResourceID, entry.Field = "", "", ""
			entry.IsManualOverride = false
		}

		var err error
		if canRestore {
			err = restorer.Restore(ctx, entry)
		} else {
			err = i.store.Set(ctx, entry)
		}
		if err != nil {
			result.Failed++
			continue
		}
		result.Imported++
	}

	return result, nil
}

// ImportFromFile imports cache entries from a file.
// The path is provided by the caller and is intentionally user-controlled.
func (i *Importer) ImportFromFile(ctx context.Context, path string) (*ImportResult, error) {
	f, err := os.Open(path) // #nosec G304 - path is intentionally user-provided
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	return i.Import(ctx, f)
}

// ImportResult contains statistics about the import operation.
type ImportResult struct {
	Version  string
	Metadata map[string]string
	Imported int
	Failed   int
}
