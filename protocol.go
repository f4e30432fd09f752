package transcache

import (
	"context"
	"errors"

	"github.com/sourcegraph/conc"
)

// Store operation names reported to the ErrorHandler.
const (
	OpGet    = "get"
	OpSet    = "set"
	OpTouch  = "touch"
	OpDelete = "delete"
	OpStats  = "stats"
)

// ErrorHandler receives cache failures that are not returned to the caller.
// err is always a *CacheError.
type ErrorHandler func(op string, err error)

// CacheResult is a resolved cache hit.
type CacheResult struct {
	TranslatedText   string
	SourceLanguage   string
	IsManualOverride bool
}

// Cache implements the lookup/write protocol over a Store.
type Cache struct {
	store   Store
	onError ErrorHandler
	tasks   conc.WaitGroup
}

// NewCache creates a Cache over store. A nil onError discards reports.
func NewCache(store Store, onError ErrorHandler) *Cache {
	if onError == nil {
		onError = func(string, error) {}
	}
	return &Cache{store: store, onError: onError}
}

// Store returns the underlying store.
func (c *Cache) Store() Store {
	return c.store
}

// Lookup resolves p against the store. With complete resource info the
// resource key is tried first; the hash key is always the fallback. Hits are
// touched in the background.
func (c *Cache) Lookup(ctx context.Context, p TranslateParams) (CacheResult, bool) {
	return c.resolve(ctx, p, true)
}

// Peek resolves p like Lookup but leaves last-used times alone.
func (c *Cache) Peek(ctx context.Context, p TranslateParams) (CacheResult, bool) {
	return c.resolve(ctx, p, false)
}

func (c *Cache) resolve(ctx context.Context, p TranslateParams, touch bool) (CacheResult, bool) {
	if HasResourceInfo(p.Resource) {
		key := ResourceKey(p.Resource.Type, p.Resource.ID, p.Resource.Field, p.To)
		if entry, ok := c.get(ctx, key); ok {
			if touch {
				c.touch(ctx, key)
			}
			return CacheResult{
				TranslatedText:   entry.TranslatedText,
				SourceLanguage:   entry.SourceLanguage,
				IsManualOverride: entry.IsManualOverride,
			}, true
		}
	}

	key := HashKey(p.Text, p.To)
	if entry, ok := c.get(ctx, key); ok {
		if touch {
			c.touch(ctx, key)
		}
		return CacheResult{
			TranslatedText: entry.TranslatedText,
			SourceLanguage: entry.SourceLanguage,
		}, true
	}

	return CacheResult{}, false
}

// Write upserts entry under the key its resource info selects. Failures are
// reported to the error handler and also returned.
func (c *Cache) Write(ctx context.Context, entry CacheEntry) error {
	entry.ID = KeyFor(entry.SourceText, entry.TargetLanguage, entry.Resource())
	if !HasResourceInfo(entry.Resource()) {
		// Partial resource info is dropped so the entry matches its key.
		entry.ResourceType, entry.ResourceID, entry.Field = "", "", ""
		entry.IsManualOverride = false
	}

	if err := c.store.Set(ctx, entry); err != nil {
		cerr := &CacheError{Op: OpSet, Key: entry.ID, Cause: err}
		c.onError(OpSet, cerr)
		return cerr
	}
	return nil
}

// WriteDetached runs Write in the background. The caller's cancellation does
// not abort the write. Use Wait to block until detached work has finished.
func (c *Cache) WriteDetached(ctx context.Context, entry CacheEntry) {
	ctx = context.WithoutCancel(ctx)
	c.tasks.Go(func() {
		_ = c.Write(ctx, entry) // reported by Write
	})
}

// SetManualOverride stores a translation pinned to one resource field.
func (c *Cache) SetManualOverride(ctx context.Context, o ManualOverride) error {
	if err := requireResource(o.Resource); err != nil {
		return err
	}
	if o.To == "" {
		return &InvalidParamsError{Field: "to", Message: "target language is required"}
	}

	return c.Write(ctx, CacheEntry{
		SourceText:       o.Text,
		SourceLanguage:   ManualSourceLanguage,
		TargetLanguage:   o.To,
		TranslatedText:   o.TranslatedText,
		ResourceType:     o.Resource.Type,
		ResourceID:       o.Resource.ID,
		Field:            o.Resource.Field,
		IsManualOverride: true,
		Provider:         ManualProvider,
	})
}

// ClearManualOverride deletes the entry of one resource field. Clearing an
// override that does not exist is a no-op.
func (c *Cache) ClearManualOverride(ctx context.Context, r ResourceInfo, to string) error {
	if err := requireResource(r); err != nil {
		return err
	}

	key := ResourceKey(r.Type, r.ID, r.Field, to)
	if err := c.store.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
		cerr := &CacheError{Op: OpDelete, Key: key, Cause: err}
		c.onError(OpDelete, cerr)
		return cerr
	}
	return nil
}

// Invalidate removes the entries selected by scope and returns how many
// were removed.
func (c *Cache) Invalidate(ctx context.Context, scope Scope) (int, error) {
	var (
		n   int
		err error
	)

	switch scope.Kind {
	case ScopeResource:
		if scope.ResourceType == "" || scope.ResourceID == "" {
			return 0, &InvalidParamsError{Field: "scope", Message: "resource type and id are required"}
		}
		n, err = c.store.DeleteByResource(ctx, scope.ResourceType, scope.ResourceID)
	case ScopeLanguage:
		if scope.Language == "" {
			return 0, &InvalidParamsError{Field: "scope", Message: "language is required"}
		}
		n, err = c.store.DeleteByLanguage(ctx, scope.Language)
	case ScopeAll:
		n, err = c.store.DeleteAll(ctx)
	default:
		return 0, &InvalidParamsError{Field: "scope", Message: "unknown scope kind"}
	}

	if err != nil {
		cerr := &CacheError{Op: OpDelete, Cause: err}
		c.onError(OpDelete, cerr)
		return 0, cerr
	}
	return n, nil
}

// Stats returns the store statistics.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	stats, err := c.store.Stats(ctx)
	if err != nil {
		return Stats{}, &CacheError{Op: OpStats, Cause: err}
	}
	if stats.ByLanguage == nil {
		stats.ByLanguage = map[string]int{}
	}
	return stats, nil
}

// Wait blocks until all detached writes and touches have finished.
func (c *Cache) Wait() {
	c.tasks.Wait()
}

func (c *Cache) get(ctx context.Context, key string) (*CacheEntry, bool) {
	entry, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.onError(OpGet, &CacheError{Op: OpGet, Key: key, Cause: err})
		}
		return nil, false
	}
	return entry, entry != nil
}

func (c *Cache) touch(ctx context.Context, key string) {
	ctx = context.WithoutCancel(ctx)
	c.tasks.Go(func() {
		if err := c.store.Touch(ctx, key); err != nil {
			c.onError(OpTouch, &CacheError{Op: OpTouch, Key: key, Cause: err})
		}
	})
}

func requireResource(r ResourceInfo) error {
	switch {
	case r.Type == "":
		return &InvalidParamsError{Field: "resourceType", Message: "resource info is required"}
	case r.ID == "":
		return &InvalidParamsError{Field: "resourceId", Message: "resource info is required"}
	case r.Field == "":
		return &InvalidParamsError{Field: "field", Message: "resource info is required"}
	}
	return nil
}
