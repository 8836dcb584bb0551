package accessor

import (
	"strings"
	"sync"
)

// TypeRegistry resolves type names sent by the engine to constructors.
// Names are looked up exactly, then under each namespace of the search
// list in order, then by their unqualified suffix.
type TypeRegistry struct {
	mu         sync.RWMutex
	factories  map[string]func() any
	order      []string
	namespaces []string
}

// NewTypeRegistry creates an empty registry searching the given namespaces.
func NewTypeRegistry(namespaces ...string) *TypeRegistry {
	return &TypeRegistry{
		factories:  make(map[string]func() any),
		namespaces: append([]string(nil), namespaces...),
	}
}

// Register adds a constructor under its qualified name. The constructor
// must return a pointer suitable for JSON decoding.
func (r *TypeRegistry) Register(name string, factory func() any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; !exists {
		r.order = append(r.order, name)
	}
	r.factories[name] = factory
}

// RegisterType registers new(T) under name.
func RegisterType[T any](r *TypeRegistry, name string) {
	r.Register(name, func() any { return new(T) })
}

// AddNamespace appends ns to the search list.
func (r *TypeRegistry) AddNamespace(ns string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.namespaces {
		if existing == ns {
			return
		}
	}
	r.namespaces = append(r.namespaces, ns)
}

// Namespaces returns a copy of the search list.
func (r *TypeRegistry) Namespaces() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.namespaces...)
}

// Resolve finds the constructor for name.
func (r *TypeRegistry) Resolve(name string) (func() any, bool) {
	if name == "" {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if f, ok := r.factories[name]; ok {
		return f, true
	}
	for _, ns := range r.namespaces {
		if f, ok := r.factories[ns+"."+name]; ok {
			return f, true
		}
	}
	for _, qualified := range r.order {
		if i := strings.LastIndexByte(qualified, '.'); i >= 0 && qualified[i+1:] == name {
			return r.factories[qualified], true
		}
	}
	return nil, false
}
