package editor

import (
	"sync"

	"github.com/wippyai/editor-bridge/internal/notify"
)

// ChangeType classifies a collection change.
type ChangeType int

const (
	ChangeAdd ChangeType = iota
	ChangeUpdate
	ChangeRemove
	ChangeClear
	ChangeSet
)

// Change describes a modification to a Collection.
type Change[T any] struct {
	Type  ChangeType
	Index int
	Item  T
	Old   T
}

// Collection is an observable list. Listeners run after the change, outside
// the collection's lock, on the goroutine that made it.
type Collection[T any] struct {
	mu        sync.RWMutex
	items     []T
	listeners notify.Set[Change[T]]
}

// NewCollection creates a collection holding items.
func NewCollection[T any](items ...T) *Collection[T] {
	return &Collection[T]{items: append([]T(nil), items...)}
}

// Items returns a snapshot of the items.
func (c *Collection[T]) Items() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]T{}, c.items...)
}

// Len returns the number of items.
func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// At returns the item at index i, or the zero value if out of bounds.
func (c *Collection[T]) At(i int) T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i < 0 || i >= len(c.items) {
		var zero T
		return zero
	}
	return c.items[i]
}

// Set replaces all items.
func (c *Collection[T]) Set(items []T) {
	c.mu.Lock()
	c.items = append([]T(nil), items...)
	c.mu.Unlock()
	c.notify(Change[T]{Type: ChangeSet})
}

// Add appends item.
func (c *Collection[T]) Add(item T) {
	c.mu.Lock()
	idx := len(c.items)
	c.items = append(c.items, item)
	c.mu.Unlock()
	c.notify(Change[T]{Type: ChangeAdd, Index: idx, Item: item})
}

// Update replaces the item at index i.
func (c *Collection[T]) Update(i int, item T) {
	c.mu.Lock()
	if i < 0 || i >= len(c.items) {
		c.mu.Unlock()
		return
	}
	old := c.items[i]
	c.items[i] = item
	c.mu.Unlock()
	c.notify(Change[T]{Type: ChangeUpdate, Index: i, Item: item, Old: old})
}

// RemoveAt removes the item at index i.
func (c *Collection[T]) RemoveAt(i int) {
	c.mu.Lock()
	if i < 0 || i >= len(c.items) {
		c.mu.Unlock()
		return
	}
	old := c.items[i]
	c.items = append(c.items[:i], c.items[i+1:]...)
	c.mu.Unlock()
	c.notify(Change[T]{Type: ChangeRemove, Index: i, Old: old})
}

// Clear removes all items.
func (c *Collection[T]) Clear() {
	c.mu.Lock()
	c.items = nil
	c.mu.Unlock()
	c.notify(Change[T]{Type: ChangeClear})
}

// Subscribe adds a change listener and returns a function removing it.
func (c *Collection[T]) Subscribe(fn func(Change[T])) (unsubscribe func()) {
	return c.listeners.Add(fn)
}

func (c *Collection[T]) notify(change Change[T]) {
	c.listeners.Emit(change)
}
