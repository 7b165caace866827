package rpc

import (
	"context"
	"sync"

	"github.com/vk/proxyforge/internal/model"
)

const defaultStreamBuffer = 16

// Result is the shaped outcome of a remote call. The concrete shape is
// determined entirely by the declared ReturnKind: Value for an
// already-resolved result, *Future for a single deferred result, *Stream for
// a cancellable sequence.
type Result interface {
	ResultKind() model.ReturnKind
}

// Value is an already-resolved result.
type Value struct {
	V any
}

// ResultKind implements Result.
func (Value) ResultKind() model.ReturnKind { return model.ReturnValue }

// Future is a single deferred result. It settles exactly once; settlement
// calls after the first are ignored. Futures are not cancellable at this
// layer.
type Future struct {
	mu      sync.Mutex
	done    chan struct{}
	settled bool
	v       any
	err     error
}

// NewFuture returns an unsettled future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// ResultKind implements Result.
func (*Future) ResultKind() model.ReturnKind { return model.ReturnFuture }

// Resolve settles the future with a value.
func (f *Future) Resolve(v any) { f.settle(v, nil) }

// Reject settles the future with an error.
func (f *Future) Reject(err error) { f.settle(nil, err) }

func (f *Future) settle(v any, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.settled {
		return
	}
	f.settled = true
	f.v = v
	f.err = err
	close(f.done)
}

// Done returns a channel closed when the future settles.
func (f *Future) Done() <-chan struct{} { return f.done }

// Await blocks until the future settles or ctx ends.
func (f *Future) Await(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.v, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// streamItem carries one element or the terminal error of a stream.
type streamItem struct {
	v   any
	err error
}

// Stream is a cancellable sequence of results. The producing context feeds
// it with Send/Fail/Close; the consumer drains it with Recv. Cancel forwards
// to the producer's cancellation hook exactly once, no matter how often it
// is called.
type Stream struct {
	ch         chan streamItem
	onCancel   func()
	cancelOnce sync.Once
	closeOnce  sync.Once
}

// NewStream returns a stream with the given element buffer. onCancel may be
// nil when the producer has nothing to tear down.
func NewStream(buffer int, onCancel func()) *Stream {
	return &Stream{
		ch:       make(chan streamItem, buffer),
		onCancel: onCancel,
	}
}

// ResultKind implements Result.
func (*Stream) ResultKind() model.ReturnKind { return model.ReturnStream }

// Send delivers one element. Producer side only.
func (s *Stream) Send(v any) { s.ch <- streamItem{v: v} }

// SendContext delivers one element unless ctx ends first. Producer side
// only.
func (s *Stream) SendContext(ctx context.Context, v any) error {
	select {
	case s.ch <- streamItem{v: v}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Fail terminates the stream with an error. Producer side only.
func (s *Stream) Fail(err error) {
	s.closeOnce.Do(func() {
		s.ch <- streamItem{err: err}
		close(s.ch)
	})
}

// Close terminates the stream normally. Producer side only.
func (s *Stream) Close() {
	s.closeOnce.Do(func() { close(s.ch) })
}

// Recv returns the next element. It returns ErrStreamClosed after the last
// element of a normally terminated stream, or the producer's failure error.
func (s *Stream) Recv(ctx context.Context) (any, error) {
	select {
	case item, ok := <-s.ch:
		if !ok {
			return nil, ErrStreamClosed
		}
		if item.err != nil {
			return nil, item.err
		}
		return item.v, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel forwards cancellation to the producer. Safe to call more than
// once; only the first call reaches the hook.
func (s *Stream) Cancel() {
	s.cancelOnce.Do(func() {
		if s.onCancel != nil {
			s.onCancel()
		}
	})
}
