// Package stageexec runs one pipeline stage over a list of items with bounded
// concurrency. Results come back in input order; a failed item is dropped
// from the results and reported with its index.
package stageexec

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Func transforms one item. index is the item's position in the input.
type Func[I, O any] func(ctx context.Context, index int, item I) (O, error)

// Options configures a stage run
type Options struct {
	// Workers is the maximum number of transforms in flight (minimum 1)
	Workers int

	// ItemTimeout bounds each transform. Zero means no per-item timeout.
	ItemTimeout time.Duration
}

// ItemError reports a dropped item
type ItemError struct {
	Index int
	Err   error
}

func (e ItemError) Error() string {
	return fmt.Sprintf("item %d: %v", e.Index, e.Err)
}

func (e ItemError) Unwrap() error {
	return e.Err
}

// Result holds the output of one successful item
type Result[O any] struct {
	Index int
	Value O
}

// Outcome is the result of a stage run
type Outcome[O any] struct {
	// Results holds successful items in input order
	Results []Result[O]

	// Failures holds dropped items in input order
	Failures []ItemError
}

// Values returns the successful outputs in input order
func (o Outcome[O]) Values() []O {
	out := make([]O, len(o.Results))
	for i, r := range o.Results {
		out[i] = r.Value
	}
	return out
}

type slot[O any] struct {
	value O
	err   error
	done  bool
}

// Run applies fn to every item with at most opts.Workers calls in flight.
// A failing item never cancels its siblings. When ctx is cancelled no new
// items are started and the unstarted ones are reported with ctx's error.
func Run[I, O any](ctx context.Context, items []I, opts Options, fn Func[I, O]) Outcome[O] {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	slots := make([]slot[O], len(items))
	var mu sync.Mutex
	record := func(i int, v O, err error) {
		mu.Lock()
		slots[i] = slot[O]{value: v, err: err, done: true}
		mu.Unlock()
	}

	var eg errgroup.Group
	eg.SetLimit(workers)

	for i, item := range items {
		if ctx.Err() != nil {
			break
		}
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				var zero O
				record(i, zero, err)
				return nil
			}
			v, err := call(ctx, opts.ItemTimeout, i, item, fn)
			record(i, v, err)
			return nil
		})
	}
	_ = eg.Wait()

	var out Outcome[O]
	for i, s := range slots {
		switch {
		case !s.done:
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			out.Failures = append(out.Failures, ItemError{Index: i, Err: err})
		case s.err != nil:
			out.Failures = append(out.Failures, ItemError{Index: i, Err: s.err})
		default:
			out.Results = append(out.Results, Result[O]{Index: i, Value: s.value})
		}
	}
	return out
}

// call runs fn with the per-item timeout and turns a panic into an error
func call[I, O any](ctx context.Context, timeout time.Duration, i int, item I, fn Func[I, O]) (v O, err error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			var zero O
			v, err = zero, fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, i, item)
}
