package transcache

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Group coalesces concurrent calls that share a key into one execution.
//
// A key moves from absent to pending when the first caller arrives and back
// to absent the moment its function returns; there is no resolved state.
// Every caller attached while the key is pending receives the same value or
// error. A Group is owned by one Translator; create a new one per instance.
type Group[T any] struct {
	sf      singleflight.Group
	pending atomic.Int64
}

// NewGroup returns an empty Group.
func NewGroup[T any]() *Group[T] {
	return &Group[T]{}
}

// Do runs fn once for key and shares its outcome with every caller that
// joins before it returns. shared reports whether the outcome was delivered
// to more than one caller.
//
// fn runs on a context that keeps ctx's values but not its cancellation, so
// a caller that gives up (ctx done) returns ctx.Err() without cancelling the
// call other waiters depend on. A caller whose ctx is already done never
// starts or joins a call. Errors are not retried; the key is released and
// the next caller starts a fresh call.
func (g *Group[T]) Do(ctx context.Context, key string, fn func(context.Context) (T, error)) (v T, shared bool, err error) {
	if err := ctx.Err(); err != nil {
		return v, false, err
	}

	detached := context.WithoutCancel(ctx)

	ch := g.sf.DoChan(key, func() (any, error) {
		g.pending.Add(1)
		defer g.pending.Add(-1)
		return fn(detached)
	})

	select {
	case <-ctx.Done():
		return v, false, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return v, r.Shared, r.Err
		}
		v, _ = r.Val.(T)
		return v, r.Shared, nil
	}
}

// Pending returns the number of keys with a call in flight.
func (g *Group[T]) Pending() int {
	return int(g.pending.Load())
}
