package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/sashabaranov/go-openai"

	"github.com/ZaguanLabs/transcache"
)

// DefaultOpenAIModel is used when OpenAIConfig.Model is empty.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIProvider implements Provider using OpenAI's chat completion API in
// JSON mode.
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	temperature float32
}

// OpenAIConfig holds configuration for the OpenAI provider.
type OpenAIConfig struct {
	APIKey      string  // OpenAI API key
	Model       string  // Model to use (default: "gpt-4o-mini")
	Temperature float32 // Temperature for generation (default: 0.3)
	BaseURL     string  // Custom base URL (optional)
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	config.HTTPClient = &http.Client{Transport: userAgentTransport{base: http.DefaultTransport}}

	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.3
	}

	return &OpenAIProvider{
		client:      openai.NewClientWithConfig(config),
		model:       model,
		temperature: temperature,
	}
}

// userAgentTransport stamps outgoing requests with transcache's user agent.
type userAgentTransport struct {
	base http.RoundTripper
}

func (t userAgentTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("User-Agent", transcache.UserAgent())
	return t.base.RoundTrip(r)
}

// Name implements Provider.
func (p *OpenAIProvider) Name() string { return "openai" }

// Model implements Provider.
func (p *OpenAIProvider) Model() string { return p.model }

type translationReply struct {
	Translation      string `json:"translation"`
	DetectedLanguage string `json:"detected_language"`
}

// Translate translates one text. When req.From is empty the model is asked
// to report the source language as well.
func (p *OpenAIProvider) Translate(ctx context.Context, req Request) (*Response, error) {
	content, err := p.complete(ctx, p.buildTranslatePrompt(req), req.Text)
	if err != nil {
		return nil, err
	}

	reply, err := parseTranslation(content)
	if err != nil {
		return nil, err
	}

	from := req.From
	if from == "" {
		from = reply.DetectedLanguage
	}
	return &Response{Text: reply.Translation, From: from}, nil
}

// DetectLanguage identifies the language of text.
func (p *OpenAIProvider) DetectLanguage(ctx context.Context, text string) (*Detection, error) {
	content, err := p.complete(ctx, detectPrompt, text)
	if err != nil {
		return nil, err
	}
	return parseDetection(content)
}

func (p *OpenAIProvider) complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userMessage},
		},
		Temperature: p.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", &transcache.ProviderError{
			Message:   "OpenAI API call failed",
			Cause:     err,
			Retryable: isRetryableError(err),
		}
	}

	if len(resp.Choices) == 0 {
		return "", &transcache.ProviderError{
			Message:   "no response from OpenAI",
			Retryable: true,
		}
	}

	return resp.Choices[0].Message.Content, nil
}

func (p *OpenAIProvider) buildTranslatePrompt(req Request) string {
	targetName := transcache.GetLanguageName(req.To)

	var b strings.Builder
	fmt.Fprintf(&b, `# Role
You are an expert native translator. You translate content to %s with the fluency and nuance of a highly educated native speaker.

# Task
Translate the user message into idiomatic %s.`, targetName, targetName)

	if req.From != "" {
		fmt.Fprintf(&b, " The source language is %s.", transcache.GetLanguageName(req.From))
	} else {
		b.WriteString(" First identify the source language.")
	}

	if req.Context != "" {
		fmt.Fprintf(&b, "\n\n# Context\nThe text is used as: %s. Use this to disambiguate the translation and adapt the tone.", req.Context)
	}

	b.WriteString(`

# Style Guide
- **Natural Flow**: Avoid literal translations. Rephrase sentences to sound completely natural to a native speaker.
- **Idioms**: Never translate idioms literally.
- **HTML/Code Safety**: Do NOT translate HTML tags, attributes, URLs, email addresses, or content inside backticks.
- **Interpolation**: Do NOT translate variables or placeholders (e.g., {{name}}, {count}, %s, $1).
- **Formatting**: Preserve meaningful whitespace and use idiomatic punctuation for the target language.
- If the text is already in the target language, return it unchanged.

# Format
Return a valid JSON object: { "translation": "...", "detected_language": "<ISO 639-1 code of the source>" }
- Do NOT wrap in Markdown code blocks.`)

	return b.String()
}

const detectPrompt = `# Task
Identify the language of the user message.

# Format
Return a valid JSON object: { "language": "<ISO 639-1 code>", "confidence": <number between 0 and 1> }
- Do NOT wrap in Markdown code blocks.`

func parseTranslation(content string) (*translationReply, error) {
	var reply translationReply
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &reply); err != nil {
		return nil, &transcache.ProviderError{
			Message: "invalid response format from OpenAI",
			Cause:   err,
		}
	}
	if reply.Translation == "" {
		return nil, &transcache.ProviderError{Message: "empty translation from OpenAI"}
	}
	reply.DetectedLanguage = strings.TrimSpace(reply.DetectedLanguage)
	return &reply, nil
}

func parseDetection(content string) (*Detection, error) {
	var d Detection
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &d); err != nil {
		return nil, &transcache.ProviderError{
			Message: "invalid detection format from OpenAI",
			Cause:   err,
		}
	}
	if d.Language == "" {
		return nil, &transcache.ProviderError{Message: "no language detected"}
	}
	if d.Confidence < 0 {
		d.Confidence = 0
	} else if d.Confidence > 1 {
		d.Confidence = 1
	}
	return &d, nil
}

// stripCodeFence removes a ```json fence some models emit despite JSON mode.
func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	return strings.TrimSpace(strings.TrimSuffix(content, "```"))
}

func isRetryableError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}

	// Check for common retryable conditions
	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"rate limit",
		"timeout",
		"connection refused",
		"connection reset",
		"temporary",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// Verify OpenAIProvider implements Provider
var _ Provider = (*OpenAIProvider)(nil)
