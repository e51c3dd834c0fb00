package bootstrap

import (
	"context"
	"sync"
)

// promise is a write-once value shared between one resolver and many
// waiters. It replaces ambient global futures: each Coordinator owns its
// promises and hands them to consumers explicitly.
type promise[T any] struct {
	done  chan struct{}
	once  sync.Once
	value T
	err   error
}

func newPromise[T any]() *promise[T] {
	return &promise[T]{done: make(chan struct{})}
}

// resolve settles the promise with a value. Later resolve/fail calls are
// no-ops; every waiter observes the first settlement.
func (p *promise[T]) resolve(value T) {
	p.once.Do(func() {
		p.value = value
		close(p.done)
	})
}

// fail settles the promise with an error.
func (p *promise[T]) fail(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}

// wait blocks until the promise settles or the context is cancelled.
func (p *promise[T]) wait(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.value, p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
