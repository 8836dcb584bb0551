package gojahost

import (
	"github.com/dop251/goja"
	"go.uber.org/zap"

	editorbridge "github.com/wippyai/editor-bridge"
)

// newElement builds the script-side element for handle. Its methods are
// the bridge entry points; a bridge error is thrown into the script.
func (h *Host) newElement(handle editorbridge.Handle, bridge editorbridge.Bridge) (*goja.Object, error) {
	vm := h.vm
	el := vm.NewObject()

	throw := func(err error) {
		panic(vm.NewGoError(err))
	}
	str := func(call goja.FunctionCall, i int) string {
		v := call.Argument(i)
		if goja.IsUndefined(v) || goja.IsNull(v) {
			return ""
		}
		return v.String()
	}
	rest := func(call goja.FunctionCall, from int) []string {
		var out []string
		for i := from; i < len(call.Arguments); i++ {
			v := call.Arguments[i]
			if goja.IsUndefined(v) || goja.IsNull(v) {
				continue
			}
			out = append(out, v.String())
		}
		return out
	}

	methods := map[string]func(goja.FunctionCall) goja.Value{
		"getValue": func(call goja.FunctionCall) goja.Value {
			v, err := bridge.GetValue(handle, str(call, 0))
			if err != nil {
				throw(err)
			}
			return vm.ToValue(v)
		},
		"getJsonValue": func(call goja.FunctionCall) goja.Value {
			v, err := bridge.GetJSONValue(handle, str(call, 0))
			if err != nil {
				throw(err)
			}
			return vm.ToValue(v)
		},
		"setValue": func(call goja.FunctionCall) goja.Value {
			if err := bridge.SetValue(h.ctx, handle, str(call, 0), str(call, 1)); err != nil {
				throw(err)
			}
			return goja.Undefined()
		},
		"setValueWithType": func(call goja.FunctionCall) goja.Value {
			if err := bridge.SetValueWithType(h.ctx, handle, str(call, 0), str(call, 1), str(call, 2)); err != nil {
				throw(err)
			}
			return goja.Undefined()
		},
		"callAction": func(call goja.FunctionCall) goja.Value {
			found, err := bridge.CallAction(handle, str(call, 0))
			if err != nil {
				throw(err)
			}
			return vm.ToValue(found)
		},
		"callActionWithParameters": func(call goja.FunctionCall) goja.Value {
			found, err := bridge.CallActionWithParameters(handle, str(call, 0), rest(call, 1))
			if err != nil {
				throw(err)
			}
			return vm.ToValue(found)
		},
		"callEvent": func(call goja.FunctionCall) goja.Value {
			return h.callEvent(bridge, handle, str(call, 0), rest(call, 1))
		},
		"close": func(goja.FunctionCall) goja.Value {
			if err := bridge.Close(handle); err != nil {
				throw(err)
			}
			return goja.Undefined()
		},
	}

	if err := el.Set("handle", uint32(handle)); err != nil {
		return nil, err
	}
	for name, fn := range methods {
		if err := el.Set(name, fn); err != nil {
			return nil, err
		}
	}
	return el, nil
}

// callEvent returns a promise for the event's result. The native call runs
// on its own goroutine so the engine stays responsive, and the promise is
// settled by a task on the host goroutine.
func (h *Host) callEvent(bridge editorbridge.Bridge, handle editorbridge.Handle, name string, params []string) goja.Value {
	promise, resolve, reject := h.vm.NewPromise()
	go func() {
		result, err := bridge.CallEvent(h.ctx, handle, name, params)
		settle := func() {
			switch {
			case err != nil:
				reject(h.vm.NewGoError(err))
			case result == nil:
				resolve(goja.Null())
			default:
				resolve(*result)
			}
		}
		if perr := h.post(h.ctx, settle); perr != nil {
			h.logger.Debug("event result dropped",
				zap.Uint32("handle", uint32(handle)),
				zap.String("event", name),
				zap.Error(perr))
		}
	}()
	return h.vm.ToValue(promise)
}
