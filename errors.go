package transcache

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Store.Get when no entry exists for an id.
var ErrNotFound = errors.New("cache entry not found")

// ProviderError indicates an AI provider failure (API error, rate limit,
// unparseable output, etc.).
type ProviderError struct {
	Message   string
	Cause     error
	Retryable bool // Whether the operation can be retried
}

func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("provider error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("provider error: %s", e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// CacheError indicates a Store operation failure. Op names the failing
// operation ("get", "set", "touch", "delete").
type CacheError struct {
	Op    string
	Key   string
	Cause error
}

func (e *CacheError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("cache error: %s %s: %v", e.Op, e.Key, e.Cause)
	}
	return fmt.Sprintf("cache error: %s: %v", e.Op, e.Cause)
}

func (e *CacheError) Unwrap() error {
	return e.Cause
}

// InvalidParamsError indicates a request that cannot be served as given,
// such as a manual override without complete resource info.
type InvalidParamsError struct {
	Field   string
	Message string
}

func (e *InvalidParamsError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid params: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("invalid params: %s", e.Message)
}

// ProcessorError indicates a content processing failure (parse error, etc.).
type ProcessorError struct {
	Message     string
	Cause       error
	ContentType string // The type of content that failed to process
}

func (e *ProcessorError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("processor error (%s): %s: %v", e.ContentType, e.Message, e.Cause)
	}
	return fmt.Sprintf("processor error (%s): %s", e.ContentType, e.Message)
}

func (e *ProcessorError) Unwrap() error {
	return e.Cause
}

// ErrNoStore is returned by operations that need a Store when the
// Translator was built without one.
var ErrNoStore = errors.New("no cache store configured")
