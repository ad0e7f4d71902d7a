// Package batch drives collections of items through a unit-of-work function
// under bounded concurrency, preserving input order in the aggregated result.
package batch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lumigen/lumigen/internal/gate"
	"github.com/lumigen/lumigen/internal/resilience"
)

// Options configures one batch run. The zero value means: default
// concurrency, no throttle, no per-item retry, continue past item failures.
type Options struct {
	MaxConcurrency int
	Gate           *gate.Gate              // takes precedence over MaxConcurrency when set
	Throttle       *gate.Throttle          // optional minimum interval between item starts
	Retry          *resilience.RetryConfig // optional per-item retry policy
	StopOnError    bool                    // first failure short-circuits items not yet started
}

// Failure pairs an input item with the message of the error it produced.
type Failure[T any] struct {
	Item  T      `json:"item"`
	Error string `json:"error"`
}

// Result aggregates one batch run. Results holds successful values in input
// order with gaps removed.
type Result[T, R any] struct {
	Results   []R           `json:"results"`
	Failures  []Failure[T]  `json:"failures"`
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

const defaultConcurrency = 5

// ErrAborted marks items never started because an earlier failure stopped
// the batch under StopOnError.
var ErrAborted = errors.New("batch aborted")

// Process runs fn for every item concurrently under the configured gate.
// One item's failure never aborts the others unless StopOnError is set, and
// even then operations already started run to completion.
func Process[T, R any](ctx context.Context, items []T, fn func(context.Context, T) (R, error), opts Options) Result[T, R] {
	start := time.Now()
	res := Result[T, R]{Total: len(items)}
	if len(items) == 0 {
		res.Duration = time.Since(start)
		return res
	}

	g := opts.Gate
	if g == nil {
		limit := opts.MaxConcurrency
		if limit <= 0 {
			limit = defaultConcurrency
		}
		g = gate.New(limit)
	}

	values := make([]R, len(items))
	errs := make([]error, len(items))
	done := make([]bool, len(items))
	var aborted atomic.Bool

	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if aborted.Load() {
				errs[i] = ErrAborted
				return
			}
			err := g.Run(ctx, func() error {
				if aborted.Load() {
					return ErrAborted
				}
				if err := opts.Throttle.Wait(ctx); err != nil {
					return err
				}
				var v R
				var err error
				if opts.Retry != nil {
					v, err = resilience.Retry(ctx, *opts.Retry, func(ctx context.Context) (R, error) {
						return fn(ctx, item)
					})
				} else {
					v, err = fn(ctx, item)
				}
				if err != nil {
					return err
				}
				values[i] = v
				done[i] = true
				return nil
			})
			if err != nil {
				errs[i] = err
				if opts.StopOnError && !errors.Is(err, ErrAborted) {
					aborted.Store(true)
				}
			}
		}()
	}
	wg.Wait()

	// Compact in input order regardless of completion order.
	for i := range items {
		switch {
		case done[i]:
			res.Results = append(res.Results, values[i])
			res.Succeeded++
		case errs[i] != nil:
			res.Failures = append(res.Failures, Failure[T]{Item: items[i], Error: errs[i].Error()})
			res.Failed++
		}
	}
	res.Duration = time.Since(start)
	return res
}

// Map applies fn to every item concurrently; the first error aborts the call
// and cancels outstanding work.
func Map[T, R any](ctx context.Context, items []T, fn func(context.Context, T) (R, error), maxConcurrency int) ([]R, error) {
	if maxConcurrency <= 0 {
		maxConcurrency = defaultConcurrency
	}
	results := make([]R, len(items))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(maxConcurrency)
	for i, item := range items {
		eg.Go(func() error {
			v, err := fn(ctx, item)
			if err != nil {
				return err
			}
			results[i] = v
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Filter keeps the items for which pred returns true, preserving order.
// The first predicate error aborts the call.
func Filter[T any](ctx context.Context, items []T, pred func(context.Context, T) (bool, error), maxConcurrency int) ([]T, error) {
	keep, err := Map(ctx, items, pred, maxConcurrency)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(items))
	for i, ok := range keep {
		if ok {
			out = append(out, items[i])
		}
	}
	return out, nil
}

// Reduce folds items strictly sequentially.
func Reduce[T, A any](ctx context.Context, items []T, acc A, fn func(context.Context, A, T) (A, error)) (A, error) {
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return acc, err
		}
		var err error
		acc, err = fn(ctx, acc, item)
		if err != nil {
			return acc, err
		}
	}
	return acc, nil
}

// Chunked submits items in sequential groups of size for vendors that require
// grouped submission. Each chunk completes before the next starts.
func Chunked[T, R any](ctx context.Context, items []T, size int, fn func(context.Context, []T) ([]R, error)) ([]R, error) {
	if size < 1 {
		size = 1
	}
	var out []R
	for start := 0; start < len(items); start += size {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		end := min(start+size, len(items))
		part, err := fn(ctx, items[start:end])
		if err != nil {
			return out, err
		}
		out = append(out, part...)
	}
	return out, nil
}
