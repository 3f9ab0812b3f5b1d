// Package async provides a small typed task handle for work that runs on its
// own goroutine and is awaited by a sequential caller.
//
// A Task never outlives the value it captured: inputs are passed by value into
// the task function, and the result is published exactly once.
package async

import (
	"context"
	"fmt"
)

// Task is the handle of a computation producing a T or an error.
type Task[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Go starts fn on a new goroutine. A panic inside fn fails the task instead of
// crashing the process.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Task[T] {
	t := &Task[T]{done: make(chan struct{})}
	go func() {
		defer close(t.done)
		defer func() {
			if r := recover(); r != nil {
				t.err = fmt.Errorf("task panicked: %v", r)
			}
		}()
		t.value, t.err = fn(ctx)
	}()
	return t
}

// Completed returns a task already resolved with value.
func Completed[T any](value T) *Task[T] {
	t := &Task[T]{done: make(chan struct{}), value: value}
	close(t.done)
	return t
}

// Failed returns a task already resolved with err.
func Failed[T any](err error) *Task[T] {
	t := &Task[T]{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

// Done is closed once the task has completed.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Await blocks until the task completes or ctx is done.
func (t *Task[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.value, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Then chains fn after t succeeds. A failure of t skips fn and fails the
// returned task with the same error.
func Then[T, U any](ctx context.Context, t *Task[T], fn func(context.Context, T) (U, error)) *Task[U] {
	return Go(ctx, func(ctx context.Context) (U, error) {
		value, err := t.Await(ctx)
		if err != nil {
			var zero U
			return zero, err
		}
		return fn(ctx, value)
	})
}

// Finally runs fn with the task outcome once it completes and returns a task
// with the same outcome. It is used to tie side effects such as span
// completion to the task lifecycle.
func Finally[T any](ctx context.Context, t *Task[T], fn func(T, error)) *Task[T] {
	return Go(ctx, func(ctx context.Context) (T, error) {
		<-t.done
		fn(t.value, t.err)
		return t.value, t.err
	})
}
