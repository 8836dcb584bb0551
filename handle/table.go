package handle

import (
	"sync"

	"go.uber.org/zap"
)

// Table maps handles to registered values with lifecycle observers.
// It is safe for concurrent use.
type Table struct {
	store     *slots
	observers []Observer
	obsMu     sync.RWMutex
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		store: newSlots(),
	}
}

// Register stores value and returns its handle. It returns 0 when the
// table is closed or full.
func (t *Table) Register(value any) Handle {
	h, err := t.store.create(value)
	if err != nil {
		Logger().Warn("handle registration failed", zap.Error(err))
		return 0
	}

	t.notify(Event{Type: EventRegistered, Handle: h, Value: value})
	return h
}

// Lookup retrieves the value registered under h.
func (t *Table) Lookup(h Handle) (any, bool) {
	return t.store.get(h)
}

// Unregister removes h and returns the value it held. Unregistering an
// unknown or already removed handle reports false and has no effect.
func (t *Table) Unregister(h Handle) (any, bool) {
	value, ok := t.store.drop(h)
	if !ok {
		return nil, false
	}

	if d, ok := value.(Disposer); ok {
		d.Dispose()
	}

	t.notify(Event{Type: EventUnregistered, Handle: h, Value: value})
	return value, true
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// SubscribeFunc registers fn as an observer and returns a function that
// removes it.
func (t *Table) SubscribeFunc(fn func(Event)) (cancel func()) {
	o := &funcObserver{fn: fn}
	t.Subscribe(o)
	return func() { t.Unsubscribe(o) }
}

// Unsubscribe removes an observer.
func (t *Table) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Len returns the number of live handles.
func (t *Table) Len() int {
	return t.store.len()
}

// Each calls fn for every live handle until fn returns false.
func (t *Table) Each(fn func(Handle, any) bool) {
	handles, values := t.store.snapshot()
	for i, h := range handles {
		if !fn(h, values[i]) {
			return
		}
	}
}

// Clear unregisters every live handle.
func (t *Table) Clear() {
	handles, _ := t.store.snapshot()
	for _, h := range handles {
		t.Unregister(h)
	}
}

// Close disposes every remaining value and stops accepting registrations.
func (t *Table) Close() error {
	for _, v := range t.store.close() {
		if d, ok := v.(Disposer); ok {
			d.Dispose()
		}
	}
	return nil
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	observers := make([]Observer, len(t.observers))
	copy(observers, t.observers)
	t.obsMu.RUnlock()

	for _, o := range observers {
		o.OnHandleEvent(e)
	}
}
