package concurrent

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ForEach runs action for every item with at most limit goroutines in flight.
// A non-positive limit means no bound. The first error cancels the context passed
// to the remaining actions and is returned once all of them finish.
func ForEach[T any](ctx context.Context, items []T, limit int, action func(context.Context, T) error) error {
	group, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		group.SetLimit(limit)
	}

	for _, item := range items {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return action(ctx, item)
		})
	}

	return group.Wait()
}

// Map applies mapFn to every item in parallel and keeps the input order.
func Map[T any, R any](ctx context.Context, items []T, limit int, mapFn func(context.Context, T) (R, error)) ([]R, error) {
	out := make([]R, len(items))
	group, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		group.SetLimit(limit)
	}

	for idx, item := range items {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := mapFn(ctx, item)
			if err != nil {
				return err
			}
			out[idx] = r
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Flatten concatenates chunks in order.
func Flatten[T any](chunks [][]T) []T {
	n := 0
	for _, c := range chunks {
		n += len(c)
	}
	out := make([]T, 0, n)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}
