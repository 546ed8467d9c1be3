// Package oneshot provides a single-use promise/future pair.
//
// The Sender resolves at most once; the Receiver observes at most one value.
// A Sender that is dropped without a value makes the Receiver fail with
// ErrDropped instead of blocking forever.
package oneshot

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var (
	// ErrDropped indicates the sender was dropped without delivering a value
	ErrDropped = errors.New("oneshot: sender dropped without a value")

	// ErrConsumed indicates the value was already received
	ErrConsumed = errors.New("oneshot: value already received")
)

// Sender is the producing half of a oneshot pair
type Sender[T any] struct {
	ch   chan T
	once sync.Once
}

// Receiver is the consuming half of a oneshot pair
type Receiver[T any] struct {
	ch       <-chan T
	received atomic.Bool
}

// New creates a connected Sender and Receiver
func New[T any]() (*Sender[T], *Receiver[T]) {
	ch := make(chan T, 1)
	return &Sender[T]{ch: ch}, &Receiver[T]{ch: ch}
}

// Send delivers v. It returns false if the sender was already resolved or dropped.
func (s *Sender[T]) Send(v T) bool {
	sent := false
	s.once.Do(func() {
		s.ch <- v
		close(s.ch)
		sent = true
	})
	return sent
}

// Drop resolves the sender without a value. It is a no-op after Send,
// so it is safe to defer.
func (s *Sender[T]) Drop() {
	s.once.Do(func() {
		close(s.ch)
	})
}

// Recv waits for the value. It returns ctx.Err() if ctx is done first,
// ErrDropped if the sender was dropped and ErrConsumed on a second call
// after a successful receive.
func (r *Receiver[T]) Recv(ctx context.Context) (T, error) {
	var zero T
	if r.received.Load() {
		return zero, ErrConsumed
	}

	select {
	case v, ok := <-r.ch:
		if !ok {
			return zero, ErrDropped
		}
		r.received.Store(true)
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
