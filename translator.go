package transcache

import (
	"context"
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
)

// DefaultBatchConcurrency bounds how many distinct texts of one batch are
// translated at the same time.
const DefaultBatchConcurrency = 8

// Provider is the interface for AI translation backends.
type Provider interface {
	// Translate translates one text. When req.From is empty the provider
	// detects the source language and reports it in the response.
	Translate(ctx context.Context, req ProviderRequest) (*ProviderResponse, error)

	// DetectLanguage identifies the language of text.
	DetectLanguage(ctx context.Context, text string) (*Detection, error)

	// Name identifies the backend on cache entries (e.g. "openai").
	Name() string

	// Model identifies the backend model on cache entries; may be empty.
	Model() string
}

// ProviderRequest contains the parameters for a provider translation call.
type ProviderRequest struct {
	Text    string
	To      string
	From    string
	Context string
}

// ProviderResponse is a provider translation together with the source
// language it was translated from.
type ProviderResponse struct {
	Text string
	From string
}

// Detection is the outcome of language detection.
type Detection struct {
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
}

// ContentProcessor is the interface for content processing.
type ContentProcessor interface {
	Extract(content string) (interface{}, []TextNode, error)
	Apply(parsed interface{}, nodes []TextNode, translations map[string]string) (string, error)
	ContentType() string
}

// Translator is the translation orchestrator: it answers requests from the
// cache where possible and coalesces concurrent misses into one provider call
// per cache key.
type Translator struct {
	provider    Provider
	store       Store
	cache       *Cache
	inflight    *Group[*Result]
	logger      zerolog.Logger
	onError     ErrorHandler
	concurrency int
	processors  map[string]ContentProcessor
}

// TranslatorOption is a functional option for configuring the Translator.
type TranslatorOption func(*Translator)

// WithStore sets the cache store. Without one every request goes to the provider.
func WithStore(store Store) TranslatorOption {
	return func(t *Translator) {
		t.store = store
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) TranslatorOption {
	return func(t *Translator) {
		t.logger = logger
	}
}

// WithErrorHandler sets the hook that receives cache failures. The default
// logs them at warn level.
func WithErrorHandler(h ErrorHandler) TranslatorOption {
	return func(t *Translator) {
		t.onError = h
	}
}

// WithGroup sets the coalescing group. Each Translator gets its own by default.
func WithGroup(g *Group[*Result]) TranslatorOption {
	return func(t *Translator) {
		t.inflight = g
	}
}

// WithBatchConcurrency bounds the goroutines used by TranslateBatch.
func WithBatchConcurrency(n int) TranslatorOption {
	return func(t *Translator) {
		if n > 0 {
			t.concurrency = n
		}
	}
}

// WithProcessor registers a content processor.
func WithProcessor(processor ContentProcessor) TranslatorOption {
	return func(t *Translator) {
		t.processors[processor.ContentType()] = processor
	}
}

// NewTranslator creates a new Translator in front of provider.
func NewTranslator(provider Provider, opts ...TranslatorOption) *Translator {
	t := &Translator{
		provider:    provider,
		logger:      zerolog.Nop(),
		concurrency: DefaultBatchConcurrency,
		processors:  make(map[string]ContentProcessor),
	}

	for _, opt := range opts {
		opt(t)
	}

	if t.inflight == nil {
		t.inflight = NewGroup[*Result]()
	}
	if t.onError == nil {
		t.onError = t.logCacheError
	}
	if t.store != nil {
		t.cache = NewCache(t.store, t.onError)
	}

	return t
}

// TranslateOne translates a single text.
func (t *Translator) TranslateOne(ctx context.Context, p TranslateParams) (*Result, error) {
	if strings.TrimSpace(p.Text) == "" {
		return &Result{Text: p.Text, Cached: true}, nil
	}
	if p.To == "" {
		return nil, &InvalidParamsError{Field: "to", Message: "target language is required"}
	}
	if p.From != "" && SameLanguage(p.From, p.To) {
		return &Result{Text: p.Text, From: p.From, Cached: true}, nil
	}

	if t.cache != nil {
		if hit, ok := t.cache.Lookup(ctx, p); ok {
			if SameLanguage(hit.SourceLanguage, p.To) {
				return &Result{Text: p.Text, From: hit.SourceLanguage, Cached: true}, nil
			}
			return &Result{
				Text:             hit.TranslatedText,
				From:             hit.SourceLanguage,
				Cached:           true,
				IsManualOverride: hit.IsManualOverride,
			}, nil
		}
	}

	key := KeyFor(p.Text, p.To, p.Resource)
	res, shared, err := t.inflight.Do(ctx, key, func(ctx context.Context) (*Result, error) {
		return t.translateMiss(ctx, key, p)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		t.logger.Debug().Str("key", key).Msg("joined in-flight translation")
	}

	out := *res
	return &out, nil
}

// translateMiss calls the provider and schedules the cache write. It runs
// at most once per key at a time.
func (t *Translator) translateMiss(ctx context.Context, key string, p TranslateParams) (*Result, error) {
	resp, err := t.provider.Translate(ctx, ProviderRequest{
		Text:    p.Text,
		To:      p.To,
		From:    p.From,
		Context: p.Context,
	})
	if err != nil {
		t.logger.Error().Err(err).Str("key", key).Str("provider", t.provider.Name()).Msg("translation failed")
		return nil, asProviderError(err, "translation failed")
	}

	from := resp.From
	if from == "" {
		from = p.From
	}

	// Identity translations are never cached.
	if SameLanguage(from, p.To) {
		return &Result{Text: p.Text, From: from}, nil
	}

	if t.cache != nil {
		t.cache.WriteDetached(ctx, CacheEntry{
			SourceText:     p.Text,
			SourceLanguage: from,
			TargetLanguage: p.To,
			TranslatedText: resp.Text,
			ResourceType:   p.Resource.Type,
			ResourceID:     p.Resource.ID,
			Field:          p.Resource.Field,
			Provider:       t.provider.Name(),
			Model:          t.provider.Model(),
		})
	}

	return &Result{Text: resp.Text, From: from}, nil
}

// TranslateBatch translates every text of p. Byte-identical texts are
// translated once and the shared result is returned at each of their indices.
// The first failure cancels the rest of the batch and is returned.
func (t *Translator) TranslateBatch(ctx context.Context, p BatchParams) ([]Result, error) {
	results := make([]Result, len(p.Texts))
	if len(p.Texts) == 0 {
		return results, nil
	}

	indices := make(map[string][]int, len(p.Texts))
	unique := make([]string, 0, len(p.Texts))
	for i, text := range p.Texts {
		if _, seen := indices[text]; !seen {
			unique = append(unique, text)
		}
		indices[text] = append(indices[text], i)
	}

	workers := pool.New().
		WithMaxGoroutines(t.concurrency).
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()

	for _, text := range unique {
		workers.Go(func(ctx context.Context) error {
			res, err := t.TranslateOne(ctx, TranslateParams{
				Text:    text,
				To:      p.To,
				From:    p.From,
				Context: p.Context,
			})
			if err != nil {
				return err
			}
			for _, i := range indices[text] {
				results[i] = *res
			}
			return nil
		})
	}

	if err := workers.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

// SetManualOverride pins translatedText for one resource field. Resource
// info is mandatory.
func (t *Translator) SetManualOverride(ctx context.Context, o ManualOverride) error {
	if t.cache == nil {
		return ErrNoStore
	}
	return t.cache.SetManualOverride(ctx, o)
}

// ClearManualOverride removes the pinned translation of one resource field.
// Clearing a missing override is a no-op.
func (t *Translator) ClearManualOverride(ctx context.Context, r ResourceInfo, to string) error {
	if t.cache == nil {
		return ErrNoStore
	}
	return t.cache.ClearManualOverride(ctx, r, to)
}

// DetectLanguage identifies the language of text using the provider.
func (t *Translator) DetectLanguage(ctx context.Context, text string) (*Detection, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &InvalidParamsError{Field: "text", Message: "text is empty"}
	}
	d, err := t.provider.DetectLanguage(ctx, text)
	if err != nil {
		return nil, asProviderError(err, "language detection failed")
	}
	return d, nil
}

// Invalidate removes cached entries in scope and returns how many were removed.
func (t *Translator) Invalidate(ctx context.Context, scope Scope) (int, error) {
	if t.cache == nil {
		return 0, ErrNoStore
	}
	n, err := t.cache.Invalidate(ctx, scope)
	if err == nil {
		t.logger.Info().Int("removed", n).Int("scope", int(scope.Kind)).Msg("cache invalidated")
	}
	return n, err
}

// Stats returns cache statistics.
func (t *Translator) Stats(ctx context.Context) (Stats, error) {
	if t.cache == nil {
		return Stats{}, ErrNoStore
	}
	return t.cache.Stats(ctx)
}

// Wait blocks until detached cache writes and touches have finished.
// Call it before shutdown.
func (t *Translator) Wait() {
	if t.cache != nil {
		t.cache.Wait()
	}
}

// Cache returns the cache protocol, or nil without a store.
func (t *Translator) Cache() *Cache {
	return t.cache
}

// InFlight returns the number of provider calls currently in flight.
func (t *Translator) InFlight() int {
	return t.inflight.Pending()
}

// Process translates structured content of the given type to lang.
func (t *Translator) Process(ctx context.Context, content, contentType, to, from string) (*ProcessedContent, error) {
	processor, ok := t.processors[contentType]
	if !ok {
		return nil, &ProcessorError{
			Message:     "no processor registered for content type",
			ContentType: contentType,
		}
	}

	parsed, nodes, err := processor.Extract(content)
	if err != nil {
		return nil, err
	}

	if len(nodes) == 0 {
		return &ProcessedContent{Content: content}, nil
	}

	texts := make([]string, len(nodes))
	for i, node := range nodes {
		texts[i] = node.Text
	}

	results, err := t.TranslateBatch(ctx, BatchParams{Texts: texts, To: to, From: from})
	if err != nil {
		return nil, err
	}

	translations := make(map[string]string, len(nodes))
	cachedCount, translatedCount := 0, 0
	for i, node := range nodes {
		translations[node.Hash] = results[i].Text
		if results[i].Cached {
			cachedCount++
		} else {
			translatedCount++
		}
	}

	result, err := processor.Apply(parsed, nodes, translations)
	if err != nil {
		return nil, err
	}

	if contentType == "html" {
		result = setHTMLAttributes(result, to)
	}

	return &ProcessedContent{
		Content:         result,
		TranslatedCount: translatedCount,
		CachedCount:     cachedCount,
		TotalNodes:      len(nodes),
	}, nil
}

// ProcessHTML is a convenience method for processing HTML content.
func (t *Translator) ProcessHTML(ctx context.Context, html, to, from string) (*ProcessedContent, error) {
	return t.Process(ctx, html, "html", to, from)
}

// setHTMLAttributes sets lang and dir attributes on the <html> tag.
func setHTMLAttributes(html, lang string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}

	htmlTag := doc.Find("html")
	if htmlTag.Length() > 0 {
		htmlTag.SetAttr("lang", ToHTMLLang(lang))
		htmlTag.SetAttr("dir", GetDirection(lang))
	}

	result, err := doc.Html()
	if err != nil {
		return html
	}

	return result
}

func (t *Translator) logCacheError(op string, err error) {
	event := t.logger.Warn().Err(err).Str("op", op)
	var cerr *CacheError
	if errors.As(err, &cerr) && cerr.Key != "" {
		event = event.Str("key", cerr.Key)
	}
	event.Msg("cache operation failed")
}

func asProviderError(err error, msg string) error {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return err
	}
	return &ProviderError{Message: msg, Cause: err}
}
