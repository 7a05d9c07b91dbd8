// Package events provides a small typed publish/subscribe bus used to carry
// change requests between screens.
package events

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned when publishing to a bus that has been closed.
var ErrClosed = errors.New("bus closed")

type subscriber[T any] struct {
	ch       chan T
	done     chan struct{}
	inflight sync.WaitGroup
	once     sync.Once
}

// stop wakes pending senders, waits for them to leave, then closes ch.
func (s *subscriber[T]) stop() {
	s.once.Do(func() {
		close(s.done)
		s.inflight.Wait()
		close(s.ch)
	})
}

// Bus fans out values of a single type to every active subscriber.
type Bus[T any] struct {
	mu     sync.Mutex
	subs   map[int]*subscriber[T]
	nextID int
	closed bool
	done   chan struct{}
}

// NewBus returns an empty bus.
func NewBus[T any]() *Bus[T] {
	return &Bus[T]{subs: make(map[int]*subscriber[T]), done: make(chan struct{})}
}

// Subscribe registers a new subscriber. The returned cancel func removes the
// subscription and closes its channel; it is safe to call more than once.
func (b *Bus[T]) Subscribe(buffer int) (<-chan T, func()) {
	if buffer < 0 {
		buffer = 0
	}
	sub := &subscriber[T]{ch: make(chan T, buffer), done: make(chan struct{})}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.stop()
		return sub.ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	return sub.ch, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
		sub.stop()
	}
}

// Publish delivers v to every subscriber, blocking until each has buffer room,
// leaves, or ctx is done. No lock is held while waiting.
func (b *Bus[T]) Publish(ctx context.Context, v T) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	targets := make([]*subscriber[T], 0, len(b.subs))
	for _, sub := range b.subs {
		sub.inflight.Add(1)
		targets = append(targets, sub)
	}
	b.mu.Unlock()

	var err error
	for _, sub := range targets {
		if err == nil {
			err = b.send(ctx, sub, v)
		}
		sub.inflight.Done()
	}
	return err
}

func (b *Bus[T]) send(ctx context.Context, sub *subscriber[T], v T) error {
	select {
	case <-sub.done:
		return nil
	default:
	}
	select {
	case sub.ch <- v:
		return nil
	case <-sub.done:
		return nil
	case <-b.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes every subscriber channel. Pending and later publishes fail
// with ErrClosed.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.done)
	subs := b.subs
	b.subs = make(map[int]*subscriber[T])
	b.mu.Unlock()

	for _, sub := range subs {
		sub.stop()
	}
}

// Len reports the number of active subscribers.
func (b *Bus[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
