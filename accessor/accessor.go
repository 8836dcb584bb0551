package accessor

import (
	"context"
	"sync"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/wippyai/editor-bridge/codec"
	"github.com/wippyai/editor-bridge/errors"
)

// Acceptor is implemented by native objects whose properties the bridge
// writes. BeginBridgeSet marks the object as being written by the bridge
// until release is called, letting its change handlers tell an engine echo
// apart from an application write.
type Acceptor interface {
	BeginBridgeSet() (release func())
}

// Dispatcher is the owning execution context of the native object.
type Dispatcher interface {
	Post(fn func()) bool
	Do(ctx context.Context, fn func(context.Context) error) error
}

// EventFunc is a native function the engine awaits. A nil result travels
// back to script as null.
type EventFunc func(ctx context.Context, params []string) (*string, error)

// Accessor exposes one native object's registered properties, actions and
// events by name. Registrations are explicit; nothing is discovered.
type Accessor struct {
	target Acceptor
	owner  Dispatcher
	types  *TypeRegistry
	logger *zap.Logger

	mu         sync.RWMutex
	properties map[string]Property
	actions    map[string]func()
	withParams map[string]func([]string)
	events     map[string]EventFunc
	disposed   bool
}

// Option configures an Accessor.
type Option func(*Accessor)

// WithTypes sets the registry used by SetValueWithType.
func WithTypes(types *TypeRegistry) Option {
	return func(a *Accessor) { a.types = types }
}

// WithLogger overrides the package logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Accessor) { a.logger = l }
}

// New creates an Accessor for target whose callbacks run on owner.
func New(target Acceptor, owner Dispatcher, opts ...Option) *Accessor {
	a := &Accessor{
		target:     target,
		owner:      owner,
		properties: make(map[string]Property),
		actions:    make(map[string]func()),
		withParams: make(map[string]func([]string)),
		events:     make(map[string]EventFunc),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.types == nil {
		a.types = NewTypeRegistry()
	}
	if a.logger == nil {
		a.logger = Logger()
	}
	return a
}

// Types returns the accessor's type registry.
func (a *Accessor) Types() *TypeRegistry {
	return a.types
}

// RegisterProperty exposes p under name, replacing any previous entry.
func (a *Accessor) RegisterProperty(name string, p Property) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.disposed {
		return
	}
	a.properties[name] = p
}

// RegisterAction exposes a zero-argument callback under name.
func (a *Accessor) RegisterAction(name string, fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.disposed {
		return
	}
	a.actions[name] = fn
}

// RegisterActionWithParameters exposes a callback taking string arguments.
func (a *Accessor) RegisterActionWithParameters(name string, fn func(params []string)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.disposed {
		return
	}
	a.withParams[name] = fn
}

// RegisterEvent exposes an awaited function under name.
func (a *Accessor) RegisterEvent(name string, fn EventFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.disposed {
		return
	}
	a.events[name] = fn
}

// Unregister removes every registration under name.
func (a *Accessor) Unregister(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.properties, name)
	delete(a.actions, name)
	delete(a.withParams, name)
	delete(a.events, name)
}

func (a *Accessor) property(name string) (Property, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	p, ok := a.properties[name]
	return p, ok
}

// GetValue returns the current value of the named property. A missing
// property or a failing getter yields (nil, false).
func (a *Accessor) GetValue(name string) (value any, ok bool) {
	p, found := a.property(name)
	if !found || p.Get == nil {
		a.logger.Debug("property not registered", zap.String("name", name))
		return nil, false
	}

	defer func() {
		if r := recover(); r != nil {
			a.logger.Warn("property getter panicked",
				zap.String("name", name),
				zap.Error(errors.Panic(errors.PhaseAccessor, name, r)))
			value, ok = nil, false
		}
	}()
	return p.Get(), true
}

// GetJSONValue returns the named property as JSON with null members
// omitted, or "{}" when the property is missing or cannot be encoded.
func (a *Accessor) GetJSONValue(name string) string {
	v, ok := a.GetValue(name)
	if !ok {
		return "{}"
	}
	data, err := codec.MarshalJSON(v)
	if err != nil {
		a.logger.Warn("property not encodable", zap.String("name", name), zap.Error(err))
		return "{}"
	}
	return data
}

// SetValue assigns value to the named property on the owning dispatcher
// and waits for the setter. An unknown or read-only property is a no-op.
func (a *Accessor) SetValue(ctx context.Context, name, value string) error {
	p, ok := a.writable(name)
	if !ok {
		return nil
	}
	return a.owner.Do(ctx, func(context.Context) error {
		return a.assign(name, p, value)
	})
}

// PostValue is SetValue without waiting. It reports whether the property
// exists and accepted the work item.
func (a *Accessor) PostValue(name, value string) bool {
	p, ok := a.writable(name)
	if !ok {
		return false
	}
	return a.owner.Post(func() {
		if err := a.assign(name, p, value); err != nil {
			a.logger.Warn("bridge set failed", zap.String("name", name), zap.Error(err))
		}
	})
}

// SetValueWithType decodes rawJSON as the type registered for typeName and
// assigns it to the named property. An unresolvable type is logged and
// nothing is assigned.
func (a *Accessor) SetValueWithType(ctx context.Context, name, rawJSON, typeName string) error {
	p, ok := a.writable(name)
	if !ok {
		return nil
	}
	factory, ok := a.types.Resolve(typeName)
	if !ok {
		a.logger.Debug("type not resolvable", zap.String("name", name), zap.Error(errors.TypeUnknown(typeName)))
		return nil
	}
	return a.owner.Do(ctx, func(context.Context) error {
		return a.assignTyped(name, p, rawJSON, factory)
	})
}

// PostValueWithType is SetValueWithType without waiting.
func (a *Accessor) PostValueWithType(name, rawJSON, typeName string) bool {
	p, ok := a.writable(name)
	if !ok {
		return false
	}
	factory, ok := a.types.Resolve(typeName)
	if !ok {
		a.logger.Debug("type not resolvable", zap.String("name", name), zap.Error(errors.TypeUnknown(typeName)))
		return false
	}
	return a.owner.Post(func() {
		if err := a.assignTyped(name, p, rawJSON, factory); err != nil {
			a.logger.Warn("bridge typed set failed", zap.String("name", name), zap.Error(err))
		}
	})
}

func (a *Accessor) writable(name string) (Property, bool) {
	p, ok := a.property(name)
	if !ok {
		a.logger.Debug("property not registered", zap.String("name", name))
		return p, false
	}
	if p.ReadOnly() {
		a.logger.Debug("property is read-only", zap.String("name", name))
		return p, false
	}
	return p, true
}

// assign runs the setter with the bridge-set mark held. The mark is
// released even when the setter panics.
func (a *Accessor) assign(name string, p Property, value any) (err error) {
	if a.target != nil {
		release := a.target.BeginBridgeSet()
		defer release()
	}
	defer func() {
		if r := recover(); r != nil {
			err = errors.Panic(errors.PhaseAccessor, name, r)
		}
	}()
	return p.Set(value)
}

func (a *Accessor) assignTyped(name string, p Property, rawJSON string, factory func() any) error {
	target := factory()
	if err := json.Unmarshal([]byte(rawJSON), target); err != nil {
		return errors.New(errors.PhaseAccessor, errors.KindDecode).
			Name(name).
			Detail("decode typed value").
			Cause(err).
			Build()
	}
	return a.assign(name, p, target)
}

// CallAction posts the named action to the owning dispatcher. It reports
// whether the action was found, not whether it completed.
func (a *Accessor) CallAction(name string) bool {
	a.mu.RLock()
	fn, ok := a.actions[name]
	a.mu.RUnlock()
	if !ok {
		a.logger.Debug("action not registered", zap.String("name", name))
		return false
	}
	return a.owner.Post(fn)
}

// CallActionWithParameters posts the named action with params.
func (a *Accessor) CallActionWithParameters(name string, params []string) bool {
	a.mu.RLock()
	fn, ok := a.withParams[name]
	a.mu.RUnlock()
	if !ok {
		a.logger.Debug("action with parameters not registered", zap.String("name", name))
		return false
	}
	args := append([]string(nil), params...)
	return a.owner.Post(func() { fn(args) })
}

// CallEvent runs the named event on the owning dispatcher and waits for its
// result. A missing event yields (nil, nil).
func (a *Accessor) CallEvent(ctx context.Context, name string, params []string) (*string, error) {
	a.mu.RLock()
	fn, ok := a.events[name]
	a.mu.RUnlock()
	if !ok {
		a.logger.Debug("event not registered", zap.String("name", name))
		return nil, nil
	}

	var result *string
	err := a.owner.Do(ctx, func(ctx context.Context) error {
		r, err := fn(ctx, params)
		result = r
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Dispose clears every registration. Later lookups report "not found".
// Dispose is idempotent.
func (a *Accessor) Dispose() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.disposed {
		return
	}
	a.disposed = true
	clear(a.properties)
	clear(a.actions)
	clear(a.withParams)
	clear(a.events)
}

// Disposed reports whether Dispose has run.
func (a *Accessor) Disposed() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.disposed
}
