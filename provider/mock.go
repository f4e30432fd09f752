package provider

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// MockProvider is a thread-safe mock provider for testing.
type MockProvider struct {
	mu           sync.Mutex
	translations map[string]string // Map of source text to translation
	perText      map[string]int
	lastRequest  *Request

	// Language reported when a request has no source language.
	DetectedLanguage string
	// Delay is applied to every Translate call.
	Delay time.Duration
	// Err, when set, is returned by every Translate call.
	Err error

	calls atomic.Int64
}

// NewMockProvider creates a new mock provider with default translations.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		translations: map[string]string{
			"Hello":                "Hola",
			"World":                "Mundo",
			"Hello World":          "Hola Mundo",
			"Welcome to our site.": "Bienvenido a nuestro sitio.",
		},
		perText:          make(map[string]int),
		DetectedLanguage: "en",
	}
}

// SetTranslation registers the translation returned for text.
func (m *MockProvider) SetTranslation(text, translation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.translations[text] = translation
}

// Translate returns mock translations. Unknown texts come back bracketed.
func (m *MockProvider) Translate(ctx context.Context, req Request) (*Response, error) {
	m.calls.Add(1)

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.perText[req.Text]++
	m.lastRequest = &req
	if m.Err != nil {
		return nil, m.Err
	}

	translation, ok := m.translations[req.Text]
	if !ok {
		translation = fmt.Sprintf("[%s]", req.Text)
	}

	from := req.From
	if from == "" {
		from = m.DetectedLanguage
	}
	return &Response{Text: translation, From: from}, nil
}

// DetectLanguage reports DetectedLanguage for any text.
func (m *MockProvider) DetectLanguage(ctx context.Context, text string) (*Detection, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return &Detection{Language: m.DetectedLanguage, Confidence: 1}, nil
}

// Name implements Provider.
func (m *MockProvider) Name() string { return "mock" }

// Model implements Provider.
func (m *MockProvider) Model() string { return "mock" }

// CallCount returns the number of Translate calls.
func (m *MockProvider) CallCount() int {
	return int(m.calls.Load())
}

// CallsFor returns how many Translate calls carried text.
func (m *MockProvider) CallsFor(text string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.perText[text]
}

// LastRequest returns the most recent Translate request, or nil.
func (m *MockProvider) LastRequest() *Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRequest
}

// Reset resets the call counters and last request.
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Store(0)
	m.perText = make(map[string]int)
	m.lastRequest = nil
}

// Verify MockProvider implements Provider
var _ Provider = (*MockProvider)(nil)
