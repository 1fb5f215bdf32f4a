package messagepipeline

import (
	"context"
	"sync"
)

// Future is the outcome of a task run on a WorkerPool. It is completed exactly
// once; later completions are ignored.
type Future struct {
	ch   chan struct{}
	err  error
	once sync.Once
}

// NewFuture allocates an incomplete Future.
func NewFuture() *Future {
	return &Future{ch: make(chan struct{})}
}

// CompletedFuture returns a Future that is already completed with err.
func CompletedFuture(err error) *Future {
	f := NewFuture()
	f.Complete(err)
	return f
}

// Complete records err as the outcome and wakes all waiters.
func (f *Future) Complete(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.ch)
	})
}

// Done returns a channel that is closed once the Future is completed.
func (f *Future) Done() <-chan struct{} {
	return f.ch
}

// Wait blocks until the Future is completed or ctx is done. If ctx is done
// first, it returns ctx.Err().
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.ch:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Result returns the outcome and whether the Future has completed.
func (f *Future) Result() (done bool, err error) {
	select {
	case <-f.ch:
		return true, f.err
	default:
		return false, nil
	}
}
