// Package notify holds the subscriber lists behind the On* methods of the
// bridge components.
package notify

import (
	"slices"
	"sync"
)

type subscriber[T any] struct {
	id uint64
	fn func(T)
}

// Set is a list of callbacks run in subscription order. The zero value is
// ready to use. Callbacks run outside the lock, so they may subscribe or
// unsubscribe.
type Set[T any] struct {
	mu   sync.Mutex
	next uint64
	subs []subscriber[T]
}

// Add subscribes fn. The returned func removes it and may be called more
// than once.
func (s *Set[T]) Add(fn func(T)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	s.subs = append(s.subs, subscriber[T]{id: id, fn: fn})
	return func() { s.remove(id) }
}

func (s *Set[T]) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.subs, func(sub subscriber[T]) bool { return sub.id == id })
	if i >= 0 {
		s.subs = slices.Delete(s.subs, i, i+1)
	}
}

// Len returns the number of live subscribers.
func (s *Set[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Snapshot returns the live callbacks in subscription order.
func (s *Set[T]) Snapshot() []func(T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]func(T), len(s.subs))
	for i, sub := range s.subs {
		out[i] = sub.fn
	}
	return out
}

// Emit calls every live callback with v.
func (s *Set[T]) Emit(v T) {
	for _, fn := range s.Snapshot() {
		fn(v)
	}
}
