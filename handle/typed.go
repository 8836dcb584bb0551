package handle

// Typed provides type-safe access to a Table whose values are all T.
type Typed[T any] struct {
	table *Table
}

// NewTyped wraps table. Values of other types registered directly on
// the table are invisible through the wrapper.
func NewTyped[T any](table *Table) *Typed[T] {
	return &Typed[T]{table: table}
}

// Table returns the underlying table.
func (t *Typed[T]) Table() *Table {
	return t.table
}

// Register adds value and returns its handle.
func (t *Typed[T]) Register(value T) Handle {
	return t.table.Register(value)
}

// Lookup retrieves the value registered under h.
func (t *Typed[T]) Lookup(h Handle) (T, bool) {
	var zero T
	v, ok := t.table.Lookup(h)
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// Unregister removes h and returns its value.
func (t *Typed[T]) Unregister(h Handle) (T, bool) {
	var zero T
	if _, ok := t.Lookup(h); !ok {
		return zero, false
	}
	v, ok := t.table.Unregister(h)
	if !ok {
		return zero, false
	}
	typed, _ := v.(T)
	return typed, true
}

// Len returns the number of live handles.
func (t *Typed[T]) Len() int {
	return t.table.Len()
}

// Each iterates over live values of type T.
func (t *Typed[T]) Each(fn func(Handle, T) bool) {
	t.table.Each(func(h Handle, v any) bool {
		typed, ok := v.(T)
		if !ok {
			return true
		}
		return fn(h, typed)
	})
}
