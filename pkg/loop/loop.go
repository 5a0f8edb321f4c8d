// Package loop repeats a task until it breaks or its context is done.
package loop

import (
	"context"
	"fmt"
	"time"
)

// Next tells Start what to do after a run of a task.
//
// The zero value continues immediately.
type Next struct {
	stop  bool
	err   error
	sleep time.Duration
}

func (n Next) String() string {
	switch {
	case n.err != nil:
		return fmt.Sprintf("[break] with error: %v", n.err)
	case n.stop:
		return "[break] without error"
	default:
		return fmt.Sprintf("[continue] interval: %s", n.sleep)
	}
}

// Continue runs the task again after interval.
func Continue(interval time.Duration) Next {
	return Next{sleep: interval}
}

// Break ends the loop. err is returned from Start as it is, and may be nil.
func Break(err error) Next {
	return Next{stop: true, err: err}
}

// Task is a body of a loop.
//
// It receives the value returned by the previous run (or the initial value),
// and returns the value for the next run together with Next.
type Task[T any] func(context.Context, T) (T, Next)

// Start runs task in loop.
//
// Example: handle jobs until the queue is drained.
//
//	Start(ctx, 0, func(ctx context.Context, handled int) (int, Next) {
//		_, ok, err := queue.Pop(ctx, kinds, handler)
//		if err != nil {
//			return handled, Break(err)
//		}
//		if !ok {
//			return handled, Break(nil)
//		}
//		return handled + 1, Continue(0)
//	})
//
// # Args
//
// - ctx: when it is done, the loop breaks with ctx.Err().
//
// - init: the value passed to the first run of task.
//
// - task: the loop body.
//
// - options: options applied to each run.
//
// # Returns
//
// - T: the value task returned at last. It is returned also with non-nil error.
//
// - error: the error in Break(err), or ctx.Err().
func Start[T any](ctx context.Context, init T, task Task[T], options ...Option) (T, error) {
	if err := ctx.Err(); err != nil {
		return init, err
	}

	current := init
	for {
		v, next := runOnce(ctx, current, task, options)
		if next.stop {
			return v, next.err
		}
		current = v

		if err := sleep(ctx, next.sleep); err != nil {
			return current, err
		}
	}
}

func runOnce[T any](ctx context.Context, v T, task Task[T], options []Option) (T, Next) {
	r := &run{ctx: ctx, cleanup: func() {}}
	for _, opt := range options {
		opt(r)
	}
	defer r.cleanup()
	return task(r.ctx, v)
}

// sleep waits d, or returns ctx.Err() if ctx is done first.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// run is the environment of each run of a task.
type run struct {
	ctx     context.Context
	cleanup func()
}

type Option func(*run)

// WithTimeout bounds each run of the task by d.
func WithTimeout(d time.Duration) Option {
	return func(r *run) {
		ctx, cancel := context.WithTimeout(r.ctx, d)
		prev := r.cleanup
		r.ctx = ctx
		r.cleanup = func() {
			cancel()
			prev()
		}
	}
}
