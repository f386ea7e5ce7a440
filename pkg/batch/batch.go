// Package batch runs one call per item concurrently and reports every
// outcome, never stopping at the first failure.
package batch

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Result is the outcome of fn for one item.
type Result[T any] struct {
	Item T
	Err  error
}

// Results holds one Result per input item, in input order.
type Results[T any] []Result[T]

func (rs Results[T]) Succeeded() []T {
	out := make([]T, 0, len(rs))
	for _, r := range rs {
		if r.Err == nil {
			out = append(out, r.Item)
		}
	}
	return out
}

func (rs Results[T]) Failed() Results[T] {
	var out Results[T]
	for _, r := range rs {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// Err joins every failure, annotated with its item. It is nil when all
// calls succeeded.
func (rs Results[T]) Err() error {
	var errs []error
	for _, r := range rs {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%v: %w", r.Item, r.Err))
		}
	}
	return errors.Join(errs...)
}

// Run calls fn for every item with at most limit calls in flight (no bound
// when limit <= 0) and returns once all of them have finished. Items whose
// call had not started when ctx was cancelled fail with ctx.Err().
func Run[T any](ctx context.Context, items []T, limit int, fn func(context.Context, T) error) Results[T] {
	results := make(Results[T], len(items))
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, item := range items {
		i, item := i, item
		results[i].Item = item
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			results[i].Err = fn(ctx, item)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
