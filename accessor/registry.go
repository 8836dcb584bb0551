package accessor

import (
	"context"
	"sync"

	"go.uber.org/zap"

	editorbridge "github.com/wippyai/editor-bridge"
	"github.com/wippyai/editor-bridge/codec"
	"github.com/wippyai/editor-bridge/errors"
	"github.com/wippyai/editor-bridge/handle"
)

var _ editorbridge.Bridge = (*Registry)(nil)

// Registry maps bridge handles to accessors. Script hosts address native
// objects through it by handle only; the registry never outlives an
// Unregister, so a disposed control is not kept reachable from script.
type Registry struct {
	accessors *handle.Typed[*Accessor]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{accessors: handle.NewTyped[*Accessor](handle.NewTable())}
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Default returns the process-wide registry.
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// Table exposes the backing handle table, mainly for observers.
func (r *Registry) Table() *handle.Table {
	return r.accessors.Table()
}

// Register adds a and returns its handle. The zero handle means the table
// was full or closed.
func (r *Registry) Register(a *Accessor) handle.Handle {
	h := r.accessors.Register(a)
	if h.Valid() {
		Logger().Debug("accessor registered", zap.Uint32("handle", uint32(h)))
	}
	return h
}

// Unregister disposes the accessor under h and invalidates the handle. It
// reports whether h was live; calling it again is harmless.
func (r *Registry) Unregister(h handle.Handle) bool {
	_, ok := r.accessors.Unregister(h)
	if ok {
		Logger().Debug("accessor unregistered", zap.Uint32("handle", uint32(h)))
	}
	return ok
}

// Dispose is Unregister without the result.
func (r *Registry) Dispose(h handle.Handle) {
	r.Unregister(h)
}

// Lookup returns the accessor under h.
func (r *Registry) Lookup(h handle.Handle) (*Accessor, bool) {
	return r.accessors.Lookup(h)
}

// Len returns the number of live accessors.
func (r *Registry) Len() int {
	return r.accessors.Len()
}

func (r *Registry) resolve(h handle.Handle, op string) (*Accessor, error) {
	a, ok := r.accessors.Lookup(h)
	if !ok {
		err := errors.StaleHandle(errors.PhaseAccessor, uint32(h), op)
		Logger().Warn("stale bridge handle", zap.Uint32("handle", uint32(h)), zap.String("op", op))
		return nil, err
	}
	return a, nil
}

// GetValue returns the named property value, or nil when it is missing.
func (r *Registry) GetValue(h handle.Handle, name string) (any, error) {
	a, err := r.resolve(h, "getValue")
	if err != nil {
		return nil, err
	}
	v, _ := a.GetValue(name)
	return v, nil
}

// GetJSONValue returns the named property as sanitized JSON.
func (r *Registry) GetJSONValue(h handle.Handle, name string) (string, error) {
	a, err := r.resolve(h, "getJsonValue")
	if err != nil {
		return "", err
	}
	return codec.Sanitize(a.GetJSONValue(name)), nil
}

// SetValue desanitizes a value written by the engine and schedules the
// assignment on the owning dispatcher. It does not wait: the engine may be
// blocked on the same call.
func (r *Registry) SetValue(_ context.Context, h handle.Handle, name, value string) error {
	a, err := r.resolve(h, "setValue")
	if err != nil {
		return err
	}
	a.PostValue(name, codec.Desanitize(value))
	return nil
}

// SetValueWithType decodes rawJSON as typeName and schedules the
// assignment. An unresolvable type is a logged no-op.
func (r *Registry) SetValueWithType(_ context.Context, h handle.Handle, name, rawJSON, typeName string) error {
	a, err := r.resolve(h, "setValueWithType")
	if err != nil {
		return err
	}
	a.PostValueWithType(name, codec.NormalizeInboundJSON(rawJSON), typeName)
	return nil
}

// CallAction posts the named action. The result reports whether it exists.
func (r *Registry) CallAction(h handle.Handle, name string) (bool, error) {
	a, err := r.resolve(h, "callAction")
	if err != nil {
		return false, err
	}
	return a.CallAction(name), nil
}

// CallActionWithParameters desanitizes params and posts the named action.
func (r *Registry) CallActionWithParameters(h handle.Handle, name string, params []string) (bool, error) {
	a, err := r.resolve(h, "callActionWithParameters")
	if err != nil {
		return false, err
	}
	return a.CallActionWithParameters(name, codec.DesanitizeAll(params)), nil
}

// CallEvent desanitizes params, awaits the named event and returns its
// result sanitized for transport. The script side desanitizes it before
// use, as it does for GetJSONValue.
func (r *Registry) CallEvent(ctx context.Context, h handle.Handle, name string, params []string) (*string, error) {
	a, err := r.resolve(h, "callEvent")
	if err != nil {
		return nil, err
	}
	result, err := a.CallEvent(ctx, name, codec.DesanitizeAll(params))
	if err != nil {
		return nil, err
	}
	return codec.SanitizeOptional(result), nil
}

// Close clears the accessor's registrations. The handle stays live until
// Unregister so late engine calls resolve to "not found".
func (r *Registry) Close(h handle.Handle) error {
	a, err := r.resolve(h, "close")
	if err != nil {
		return err
	}
	a.Dispose()
	return nil
}
