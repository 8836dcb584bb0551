package handle

import (
	"errors"
	"sync"
)

var (
	ErrClosed = errors.New("handle table closed")
	ErrFull   = errors.New("handle table full")
)

// slots is the in-memory storage behind a Table: a slice of entries with a
// free list. Reusing a slot bumps its generation.
type slots struct {
	entries  []entry
	freeList []int
	mu       sync.RWMutex
	closed   bool
}

type entry struct {
	value any
	gen   uint32
	valid bool
}

func newSlots() *slots {
	return &slots{
		entries:  make([]entry, 0, 16),
		freeList: make([]int, 0, 8),
	}
}

func (s *slots) create(value any) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	if n := len(s.freeList); n > 0 {
		idx := s.freeList[n-1]
		s.freeList = s.freeList[:n-1]
		e := &s.entries[idx]
		e.value = value
		e.valid = true
		return makeHandle(idx, e.gen), nil
	}

	if len(s.entries) >= MaxLive {
		return 0, ErrFull
	}
	s.entries = append(s.entries, entry{value: value, valid: true})
	return makeHandle(len(s.entries)-1, 0), nil
}

// lookup returns the live entry for h. Callers hold s.mu.
func (s *slots) lookup(h Handle) *entry {
	idx := h.slot()
	if idx < 0 || idx >= len(s.entries) {
		return nil
	}
	e := &s.entries[idx]
	if !e.valid || e.gen&genMask != h.generation() {
		return nil
	}
	return e
}

func (s *slots) get(h Handle) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e := s.lookup(h)
	if e == nil {
		return nil, false
	}
	return e.value, true
}

func (s *slots) drop(h Handle) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.lookup(h)
	if e == nil {
		return nil, false
	}

	value := e.value
	e.value = nil
	e.valid = false
	e.gen++
	s.freeList = append(s.freeList, h.slot())
	return value, true
}

func (s *slots) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries) - len(s.freeList)
}

// snapshot copies the live entries so callbacks run without the lock.
func (s *slots) snapshot() ([]Handle, []any) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	handles := make([]Handle, 0, len(s.entries))
	values := make([]any, 0, len(s.entries))
	for i, e := range s.entries {
		if e.valid {
			handles = append(handles, makeHandle(i, e.gen))
			values = append(values, e.value)
		}
	}
	return handles, values
}

// close marks the storage closed and returns the values still held.
func (s *slots) close() []any {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var live []any
	for i := range s.entries {
		if s.entries[i].valid {
			live = append(live, s.entries[i].value)
		}
	}
	s.entries = nil
	s.freeList = nil
	return live
}
