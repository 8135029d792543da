package worker

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"
)

// FanOut calls fn for every item with at most limit calls in flight. A
// failing item does not cancel the others; all errors are joined.
func FanOut[T any](ctx context.Context, limit int, items []T, fn func(context.Context, T) error) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		item := item
		g.Go(func() error {
			if err := fn(ctx, item); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
