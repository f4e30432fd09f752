package transcache_test

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ZaguanLabs/transcache"
	"github.com/ZaguanLabs/transcache/cache"
	"github.com/ZaguanLabs/transcache/processor"
	"github.com/ZaguanLabs/transcache/provider"
)

// Integration tests using all real components

func TestIntegration_BasicTranslation(t *testing.T) {
	p := provider.NewMockProvider()
	translator := transcache.NewTranslator(p,
		transcache.WithStore(cache.NewMemoryStore(time.Hour)),
		transcache.WithProcessor(processor.NewHTMLProcessor()),
	)
	defer translator.Wait()

	result, err := translator.ProcessHTML(context.Background(), `<div><p>Hello</p></div>`, "es_ES", "")
	if err != nil {
		t.Fatalf("ProcessHTML failed: %v", err)
	}

	if !strings.Contains(result.Content, "Hola") {
		t.Errorf("Expected 'Hola' in result, got: %s", result.Content)
	}
	if result.TranslatedCount != 1 {
		t.Errorf("Expected TranslatedCount 1, got %d", result.TranslatedCount)
	}
}

func TestIntegration_CacheHit(t *testing.T) {
	p := provider.NewMockProvider()
	store := cache.NewMemoryStore(time.Hour)
	translator := transcache.NewTranslator(p,
		transcache.WithStore(store),
		transcache.WithProcessor(processor.NewHTMLProcessor()),
	)

	html := `<p>Hello</p>`

	result1, err := translator.ProcessHTML(context.Background(), html, "es_ES", "")
	if err != nil {
		t.Fatalf("ProcessHTML failed: %v", err)
	}
	if result1.TranslatedCount != 1 || result1.CachedCount != 0 {
		t.Errorf("First call: expected 1 translated, 0 cached; got %d, %d",
			result1.TranslatedCount, result1.CachedCount)
	}

	// Writes are detached.
	translator.Wait()
	if store.Len() != 1 {
		t.Fatalf("Expected 1 stored entry, got %d", store.Len())
	}

	result2, _ := translator.ProcessHTML(context.Background(), html, "es_ES", "")
	if result2.TranslatedCount != 0 || result2.CachedCount != 1 {
		t.Errorf("Second call: expected 0 translated, 1 cached; got %d, %d",
			result2.TranslatedCount, result2.CachedCount)
	}

	if p.CallCount() != 1 {
		t.Errorf("Provider should be called once, was called %d times", p.CallCount())
	}
}

func TestIntegration_IgnoredTags(t *testing.T) {
	p := provider.NewMockProvider()
	translator := transcache.NewTranslator(p,
		transcache.WithProcessor(processor.NewHTMLProcessor()),
	)

	html := `<div>
		<p>Hello</p>
		<script>console.log("Hello");</script>
		<style>.hello { color: red; }</style>
		<code>Hello</code>
	</div>`

	result, err := translator.ProcessHTML(context.Background(), html, "es_ES", "")
	if err != nil {
		t.Fatalf("ProcessHTML failed: %v", err)
	}

	if result.TotalNodes != 1 {
		t.Errorf("Expected 1 translatable node, got %d", result.TotalNodes)
	}
	if !strings.Contains(result.Content, `console.log("Hello")`) {
		t.Error("Script content should not be translated")
	}
}

func TestIntegration_DataNoTranslate(t *testing.T) {
	p := provider.NewMockProvider()
	translator := transcache.NewTranslator(p,
		transcache.WithProcessor(processor.NewHTMLProcessor()),
	)

	html := `<div>
		<p data-no-translate>Hello</p>
		<p>World</p>
	</div>`

	result, err := translator.ProcessHTML(context.Background(), html, "es_ES", "")
	if err != nil {
		t.Fatalf("ProcessHTML failed: %v", err)
	}

	if result.TotalNodes != 1 {
		t.Errorf("Expected 1 translatable node, got %d", result.TotalNodes)
	}
	if !strings.Contains(result.Content, ">Hello<") {
		t.Error("data-no-translate content should not be translated")
	}
	if !strings.Contains(result.Content, "Mundo") {
		t.Error("World should be translated to Mundo")
	}
}

func TestIntegration_RTLLanguage(t *testing.T) {
	p := provider.NewMockProvider()
	p.SetTranslation("Hello", "مرحبا")
	translator := transcache.NewTranslator(p,
		transcache.WithProcessor(processor.NewHTMLProcessor()),
	)

	result, err := translator.ProcessHTML(context.Background(), `<html><body><p>Hello</p></body></html>`, "ar_SA", "")
	if err != nil {
		t.Fatalf("ProcessHTML failed: %v", err)
	}

	if !strings.Contains(result.Content, `dir="rtl"`) {
		t.Errorf("Expected dir='rtl' for Arabic, got: %s", result.Content)
	}
	if !strings.Contains(result.Content, `lang="ar-SA"`) {
		t.Errorf("Expected lang='ar-SA', got: %s", result.Content)
	}
}

func TestIntegration_Deduplication(t *testing.T) {
	p := provider.NewMockProvider()
	translator := transcache.NewTranslator(p,
		transcache.WithProcessor(processor.NewHTMLProcessor()),
	)

	result, err := translator.ProcessHTML(context.Background(),
		`<div><p>Hello</p><p>Hello</p><p>Hello</p></div>`, "es_ES", "")
	if err != nil {
		t.Fatalf("ProcessHTML failed: %v", err)
	}

	if p.CallsFor("Hello") != 1 {
		t.Errorf("Expected 1 provider call for the repeated text, got %d", p.CallsFor("Hello"))
	}
	if count := strings.Count(result.Content, "Hola"); count != 3 {
		t.Errorf("Expected 3 instances of 'Hola', got %d", count)
	}
	// Counts are per node, not per distinct text.
	if result.TotalNodes != 3 || result.TranslatedCount != 3 || result.CachedCount != 0 {
		t.Errorf("Expected 3 nodes all translated, got total=%d translated=%d cached=%d",
			result.TotalNodes, result.TranslatedCount, result.CachedCount)
	}
}

func TestIntegration_SourceEqualsTarget(t *testing.T) {
	p := provider.NewMockProvider()
	translator := transcache.NewTranslator(p,
		transcache.WithProcessor(processor.NewHTMLProcessor()),
	)

	result, err := translator.ProcessHTML(context.Background(), `<p>Hello</p>`, "en_US", "en-US")
	if err != nil {
		t.Fatalf("ProcessHTML failed: %v", err)
	}

	if result.TranslatedCount != 0 {
		t.Errorf("Expected 0 translations when source==target, got %d", result.TranslatedCount)
	}
	if !strings.Contains(result.Content, "Hello") {
		t.Errorf("Expected content unchanged, got: %s", result.Content)
	}
	if p.CallCount() != 0 {
		t.Errorf("Provider should not be called when source==target")
	}
}

func TestIntegration_DetectedSourceNotCached(t *testing.T) {
	p := provider.NewMockProvider()
	p.DetectedLanguage = "es"
	store := cache.NewMemoryStore(0)
	translator := transcache.NewTranslator(p, transcache.WithStore(store))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := translator.TranslateOne(ctx, transcache.TranslateParams{Text: "Hola", To: "es"})
		if err != nil {
			t.Fatalf("TranslateOne failed: %v", err)
		}
		if res.Text != "Hola" || res.From != "es" {
			t.Errorf("Expected the input back with detected source, got %+v", res)
		}
		translator.Wait()
	}

	if store.Len() != 0 {
		t.Errorf("Identity translations should not be stored, got %d entries", store.Len())
	}
	if p.CallCount() != 2 {
		t.Errorf("Expected a provider call per request, got %d", p.CallCount())
	}
}

func TestIntegration_EmptyContent(t *testing.T) {
	p := provider.NewMockProvider()
	translator := transcache.NewTranslator(p,
		transcache.WithProcessor(processor.NewHTMLProcessor()),
	)

	result, err := translator.ProcessHTML(context.Background(), `<div></div>`, "es_ES", "")
	if err != nil {
		t.Fatalf("ProcessHTML failed: %v", err)
	}

	if result.TotalNodes != 0 {
		t.Errorf("Expected 0 nodes for empty content, got %d", result.TotalNodes)
	}
	if p.CallCount() != 0 {
		t.Error("Provider should not be called for empty content")
	}
}

func TestIntegration_WhitespacePreserved(t *testing.T) {
	p := provider.NewMockProvider()
	translator := transcache.NewTranslator(p,
		transcache.WithProcessor(processor.NewHTMLProcessor()),
	)

	result, err := translator.ProcessHTML(context.Background(), `<p>  Hello  </p>`, "es_ES", "")
	if err != nil {
		t.Fatalf("ProcessHTML failed: %v", err)
	}

	if !strings.Contains(result.Content, "  Hola  ") {
		t.Errorf("Whitespace not preserved, got: %s", result.Content)
	}
}

func TestIntegration_ManualOverrideWins(t *testing.T) {
	p := provider.NewMockProvider()
	translator := transcache.NewTranslator(p, transcache.WithStore(cache.NewMemoryStore(time.Hour)))
	ctx := context.Background()

	resource := transcache.ResourceInfo{Type: "property", ID: "123", Field: "propertyType"}
	params := transcache.TranslateParams{Text: "flat", To: "he", Resource: resource}

	p.SetTranslation("flat", "שטוח")
	res, err := translator.TranslateOne(ctx, transcache.TranslateParams{Text: "flat", To: "he"})
	if err != nil {
		t.Fatalf("TranslateOne failed: %v", err)
	}
	if res.Text != "שטוח" || res.Cached {
		t.Errorf("Expected a fresh provider translation, got %+v", res)
	}
	translator.Wait()

	// Without a resource entry the lookup falls back to the hash entry.
	res, err = translator.TranslateOne(ctx, params)
	if err != nil {
		t.Fatalf("TranslateOne failed: %v", err)
	}
	if res.Text != "שטוח" || !res.Cached {
		t.Errorf("Expected the hash entry, got %+v", res)
	}
	translator.Wait()

	err = translator.SetManualOverride(ctx, transcache.ManualOverride{
		Text:           "flat",
		TranslatedText: "דירה",
		To:             "he",
		Resource:       resource,
	})
	if err != nil {
		t.Fatalf("SetManualOverride failed: %v", err)
	}

	res, err = translator.TranslateOne(ctx, params)
	if err != nil {
		t.Fatalf("TranslateOne failed: %v", err)
	}
	if res.Text != "דירה" || !res.Cached || !res.IsManualOverride {
		t.Errorf("Expected the override, got %+v", res)
	}

	// Requests without the resource still see the provider translation.
	res, err = translator.TranslateOne(ctx, transcache.TranslateParams{Text: "flat", To: "he"})
	if err != nil {
		t.Fatalf("TranslateOne failed: %v", err)
	}
	if res.Text != "שטוח" || !res.Cached || res.IsManualOverride {
		t.Errorf("Expected the hash entry, got %+v", res)
	}

	if p.CallCount() != 1 {
		t.Errorf("Expected 1 provider call, got %d", p.CallCount())
	}
}

func TestIntegration_ConcurrentCallersShareOneCall(t *testing.T) {
	p := provider.NewMockProvider()
	p.Delay = 50 * time.Millisecond
	translator := transcache.NewTranslator(p, transcache.WithStore(cache.NewMemoryStore(0)))
	defer translator.Wait()

	const callers = 20
	var (
		wg     sync.WaitGroup
		failed atomic.Int32
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := translator.TranslateOne(context.Background(), transcache.TranslateParams{Text: "Hello", To: "es"})
			if err != nil || res.Text != "Hola" {
				failed.Add(1)
			}
		}()
	}
	wg.Wait()

	if failed.Load() != 0 {
		t.Errorf("%d callers got a wrong result", failed.Load())
	}
	if p.CallCount() != 1 {
		t.Errorf("Expected 1 provider call for %d callers, got %d", callers, p.CallCount())
	}
	if translator.InFlight() != 0 {
		t.Errorf("Expected no in-flight keys, got %d", translator.InFlight())
	}
}

func TestIntegration_ExportImportWarmsCache(t *testing.T) {
	ctx := context.Background()

	warm := cache.NewMemoryStore(0)
	first := transcache.NewTranslator(provider.NewMockProvider(), transcache.WithStore(warm))
	if _, err := first.TranslateBatch(ctx, transcache.BatchParams{Texts: []string{"Hello", "World"}, To: "es"}); err != nil {
		t.Fatalf("TranslateBatch failed: %v", err)
	}
	first.Wait()

	var buf bytes.Buffer
	if err := cache.NewExporter(warm).Export(ctx, &buf, nil); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	cold := cache.NewMemoryStore(0)
	result, err := cache.NewImporter(cold).Import(ctx, &buf)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if result.Imported != 2 {
		t.Fatalf("Expected 2 imported entries, got %d", result.Imported)
	}

	p := provider.NewMockProvider()
	second := transcache.NewTranslator(p, transcache.WithStore(cold))
	defer second.Wait()
	results, err := second.TranslateBatch(ctx, transcache.BatchParams{Texts: []string{"Hello", "World"}, To: "es"})
	if err != nil {
		t.Fatalf("TranslateBatch failed: %v", err)
	}
	for _, r := range results {
		if !r.Cached {
			t.Errorf("Expected cached result, got %+v", r)
		}
	}
	if p.CallCount() != 0 {
		t.Errorf("Expected no provider calls, got %d", p.CallCount())
	}
}

func TestIntegration_RetryableProvider(t *testing.T) {
	inner := &failingMockProvider{failCount: 2}
	retryable := transcache.NewRetryableProvider(inner, transcache.RetryConfig{
		MaxRetries: 3,
		BaseDelay:  1, // 1 nanosecond for fast tests
		MaxDelay:   10,
	})

	translator := transcache.NewTranslator(retryable,
		transcache.WithProcessor(processor.NewHTMLProcessor()),
	)

	result, err := translator.ProcessHTML(context.Background(), `<p>Hello</p>`, "es_ES", "en")
	if err != nil {
		t.Fatalf("ProcessHTML failed after retries: %v", err)
	}

	if !strings.Contains(result.Content, "translated") {
		t.Errorf("Expected translated content, got: %s", result.Content)
	}
	if calls := inner.calls.Load(); calls != 3 {
		t.Errorf("Expected 3 calls (2 failures + 1 success), got %d", calls)
	}
}

// Helper: failing provider for retry tests
type failingMockProvider struct {
	failCount int32
	calls     atomic.Int32
}

func (p *failingMockProvider) Translate(ctx context.Context, req transcache.ProviderRequest) (*transcache.ProviderResponse, error) {
	if p.calls.Add(1) <= p.failCount {
		return nil, &transcache.ProviderError{Message: "temporary failure", Retryable: true}
	}
	return &transcache.ProviderResponse{Text: "translated", From: req.From}, nil
}

func (p *failingMockProvider) DetectLanguage(ctx context.Context, text string) (*transcache.Detection, error) {
	return &transcache.Detection{Language: "en", Confidence: 1}, nil
}

func (p *failingMockProvider) Name() string  { return "failing" }
func (p *failingMockProvider) Model() string { return "failing" }
