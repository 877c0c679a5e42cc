package batch

import (
	"context"
	"sync"
)

// Background tracks batch runs started outside any request lifecycle (HTTP
// triggers, cron). All runs share one context: cancelling it stops runs from
// starting new users, and Wait blocks until every in-flight user finishes, so
// shutdown can drain instead of killing runs mid-user.
type Background struct {
	ctx context.Context
	wg  sync.WaitGroup
}

// NewBackground creates a tracker whose runs live on ctx.
func NewBackground(ctx context.Context) *Background {
	return &Background{ctx: ctx}
}

// Go starts fn on the shared background context.
func (b *Background) Go(fn func(ctx context.Context)) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		fn(b.ctx)
	}()
}

// Wait blocks until every started fn has returned.
func (b *Background) Wait() {
	b.wg.Wait()
}
