package bridge

import (
	"context"
	"sync"
)

// Future is the result of an operation running on its own goroutine. It
// resolves exactly once, with either a value or an error.
type Future[T any] struct {
	once sync.Once
	done chan struct{}
	val  T
	err  error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// resolve completes the future. Calls after the first are ignored.
func (f *Future[T]) resolve(v T, err error) {
	f.once.Do(func() {
		f.val, f.err = v, err
		close(f.done)
	})
}

// Go runs fn on a new goroutine and returns its future.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	f := newFuture[T]()
	go func() {
		v, err := fn(ctx)
		f.resolve(v, err)
	}()
	return f
}

// Await blocks until the future resolves.
func (f *Future[T]) Await() (T, error) {
	<-f.done
	return f.val, f.err
}

// Done is closed once the future has resolved.
func (f *Future[T]) Done() <-chan struct{} { return f.done }
