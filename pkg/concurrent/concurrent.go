// Package concurrent provides small helpers for bounded parallel work.
package concurrent

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ForEachN runs fn for every index in [0, n) with at most workers goroutines
// in flight. The first error cancels the context seen by the remaining
// calls; workers <= 0 means unbounded.
func ForEachN(ctx context.Context, n, workers int, fn func(ctx context.Context, i int) error) error {
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(ctx, i)
		})
	}
	return g.Wait()
}

// Map applies fn to every element of in with at most workers goroutines and
// returns the results in input order.
func Map[T, R any](ctx context.Context, in []T, workers int, fn func(ctx context.Context, v T) (R, error)) ([]R, error) {
	out := make([]R, len(in))
	err := ForEachN(ctx, len(in), workers, func(ctx context.Context, i int) error {
		r, err := fn(ctx, in[i])
		if err != nil {
			return err
		}
		out[i] = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
