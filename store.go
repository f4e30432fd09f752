package transcache

import "context"

// Store is the persistence adapter behind the cache protocol. All methods
// must be safe to call concurrently for distinct ids.
//
// Implementations live in the cache package (memory, Redis, Postgres).
type Store interface {
	// Get returns the entry stored under id, or ErrNotFound.
	Get(ctx context.Context, id string) (*CacheEntry, error)

	// Set upserts entry under entry.ID. The timestamp fields of entry are
	// ignored: the store sets CreatedAt on insert (and keeps it on update)
	// and refreshes UpdatedAt and LastUsedAt.
	Set(ctx context.Context, entry CacheEntry) error

	// Touch refreshes LastUsedAt. Touching a missing id is a no-op.
	Touch(ctx context.Context, id string) error

	// Delete removes id. Deleting a missing id is a no-op.
	Delete(ctx context.Context, id string) error

	// DeleteByResource removes every entry of one resource and returns the count.
	DeleteByResource(ctx context.Context, resourceType, resourceID string) (int, error)

	// DeleteByLanguage removes every entry for one target language.
	DeleteByLanguage(ctx context.Context, lang string) (int, error)

	// DeleteAll removes everything.
	DeleteAll(ctx context.Context) (int, error)

	// Stats summarises the store contents.
	Stats(ctx context.Context) (Stats, error)
}
