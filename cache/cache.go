// Package cache provides transcache.Store implementations: an in-process
// map, Redis and Postgres.
package cache

import (
	"context"
	"time"

	"github.com/ZaguanLabs/transcache"
)

// Dumper is implemented by stores that can list every entry they hold.
type Dumper interface {
	Entries(ctx context.Context) ([]transcache.CacheEntry, error)
}

// Restorer is implemented by stores that can write an entry with its
// timestamps intact. Import prefers it over Store.Set.
type Restorer interface {
	Restore(ctx context.Context, entry transcache.CacheEntry) error
}

// Option configures a store.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now for timestamps and expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

var (
	_ transcache.Store = (*MemoryStore)(nil)
	_ transcache.Store = (*RedisStore)(nil)
	_ transcache.Store = (*PostgresStore)(nil)

	_ Dumper   = (*MemoryStore)(nil)
	_ Dumper   = (*RedisStore)(nil)
	_ Dumper   = (*PostgresStore)(nil)
	_ Restorer = (*MemoryStore)(nil)
	_ Restorer = (*RedisStore)(nil)
	_ Restorer = (*PostgresStore)(nil)
)
