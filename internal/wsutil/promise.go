package wsutil

import (
	"context"
	"fmt"
	"sync"
)

type PromiseErrSource uint8

const (
	FromUnknown PromiseErrSource = iota
	FromProducer
	FromContext
)

func (s PromiseErrSource) String() string {
	switch s {
	case FromProducer:
		return "producer"
	case FromContext:
		return "context"
	default:
		return "unknown"
	}
}

// PromiseError tells the awaiting side whether the producer failed or the
// wait itself was abandoned.
type PromiseError struct {
	Source PromiseErrSource
	Err    error
}

func (e *PromiseError) Error() string {
	return fmt.Sprintf("promise failed [%s]: %v", e.Source, e.Err)
}

func (e *PromiseError) Unwrap() error {
	return e.Err
}

// Promise is settled exactly once by a producer goroutine. Settling never
// blocks, so a producer outliving an abandoned Await does not leak.
type Promise[T any] interface {
	Resolve(v T)
	Reject(err error)
	Await(ctx context.Context) (T, error)
}

func NewPromise[T any]() Promise[T] {
	return &promiseImp[T]{
		resCh: make(chan T, 1),
		errCh: make(chan error, 1),
	}
}

type promiseImp[T any] struct {
	resCh chan T
	errCh chan error
	once  sync.Once
}

func (p *promiseImp[T]) Resolve(v T) {
	p.once.Do(func() {
		p.resCh <- v
	})
}

func (p *promiseImp[T]) Reject(err error) {
	p.once.Do(func() {
		p.errCh <- err
	})
}

func (p *promiseImp[T]) Await(ctx context.Context) (T, error) {
	var zero T
	select {
	case v := <-p.resCh:
		return v, nil
	case err := <-p.errCh:
		return zero, &PromiseError{Source: FromProducer, Err: err}
	case <-ctx.Done():
		return zero, &PromiseError{Source: FromContext, Err: ctx.Err()}
	}
}
