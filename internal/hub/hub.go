// internal/hub/hub.go

// Package hub implements an in-process publish/subscribe fan-out with a bounded
// backlog per subscriber. Publishing never blocks: a subscriber that falls more
// than the backlog behind loses its oldest pending events and is told how many
// it missed on its next receive.
package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrClosed is returned by Recv once the hub is closed and the subscriber has drained
// everything that was published before the close.
var ErrClosed = errors.New("hub: closed")

// LaggedError reports how many events a subscriber missed because it fell behind.
// The subscription stays usable after a LaggedError.
type LaggedError struct {
	Count uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("hub: subscriber lagged, %d events dropped", e.Count)
}

// Hub fans each published value out to every current subscriber.
type Hub[T any] struct {
	backlog int

	mu     sync.RWMutex
	subs   map[*Subscription[T]]struct{}
	closed bool
}

// New creates a hub whose subscribers each buffer up to backlog values.
func New[T any](backlog int) *Hub[T] {
	if backlog < 1 {
		backlog = 1
	}
	return &Hub[T]{
		backlog: backlog,
		subs:    make(map[*Subscription[T]]struct{}),
	}
}

// Subscribe returns a receiver that observes every value published after this call.
// Subscribing to a closed hub yields a subscription whose Recv returns ErrClosed.
func (h *Hub[T]) Subscribe() *Subscription[T] {
	sub := &Subscription[T]{
		hub:    h,
		limit:  h.backlog,
		notify: make(chan struct{}, 1),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		sub.closed = true
		return sub
	}
	h.subs[sub] = struct{}{}
	return sub
}

// Publish delivers v to all current subscribers and returns how many received it.
// Publishing to a closed hub is a no-op.
func (h *Hub[T]) Publish(v T) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return 0
	}
	for sub := range h.subs {
		sub.push(v)
	}
	return len(h.subs)
}

// Close ends every subscription. Subscribers still receive what was already queued.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := h.subs
	h.subs = make(map[*Subscription[T]]struct{})
	h.mu.Unlock()

	for sub := range subs {
		sub.shutdown()
	}
}

// Subscribers returns the current subscriber count.
func (h *Hub[T]) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub[T]) unsubscribe(sub *Subscription[T]) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
}

// Subscription is one independent reader of a Hub. A Subscription is meant to be
// consumed by a single goroutine.
type Subscription[T any] struct {
	hub   *Hub[T]
	limit int

	mu      sync.Mutex
	queue   []T
	dropped uint64
	closed  bool

	// notify holds at most one pending wakeup.
	notify chan struct{}
}

func (s *Subscription[T]) push(v T) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if len(s.queue) >= s.limit {
		// drop the oldest so the newest state always gets through
		var zero T
		s.queue[0] = zero
		s.queue = s.queue[1:]
		s.dropped++
	}
	s.queue = append(s.queue, v)
	s.mu.Unlock()
	s.wake()
}

func (s *Subscription[T]) shutdown() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wake()
}

func (s *Subscription[T]) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Recv blocks until the next value is available. It returns a *LaggedError when
// values were dropped since the previous call, ErrClosed when the hub is closed and
// drained, or ctx.Err() on cancellation.
func (s *Subscription[T]) Recv(ctx context.Context) (T, error) {
	var zero T
	for {
		s.mu.Lock()
		if s.dropped > 0 {
			n := s.dropped
			s.dropped = 0
			s.mu.Unlock()
			return zero, &LaggedError{Count: n}
		}
		if len(s.queue) > 0 {
			v := s.queue[0]
			s.queue[0] = zero
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return v, nil
		}
		if s.closed {
			s.mu.Unlock()
			return zero, ErrClosed
		}
		s.mu.Unlock()

		select {
		case <-s.notify:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// Close detaches the subscription from its hub and discards anything still queued.
func (s *Subscription[T]) Close() {
	s.hub.unsubscribe(s)
	s.mu.Lock()
	s.closed = true
	s.queue = nil
	s.dropped = 0
	s.mu.Unlock()
	s.wake()
}
