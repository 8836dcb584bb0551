package gojahost

import (
	"context"
	_ "embed"
	stderrors "errors"
	"sync"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	editorbridge "github.com/wippyai/editor-bridge"
	"github.com/wippyai/editor-bridge/dispatch"
	"github.com/wippyai/editor-bridge/errors"
)

//go:embed prelude.js
var prelude string

const (
	preludeName  = "bridge-prelude.js"
	initFunction = "initEditor"
	disposeFunc  = "disposeEditor"
)

var _ editorbridge.ScriptHost = (*Host)(nil)

// Host runs an engine script in a goja runtime. The runtime is owned by
// one goroutine; every operation is a task on it.
type Host struct {
	logger *zap.Logger
	name   string

	vm        *goja.Runtime
	stringify goja.Callable
	elements  map[editorbridge.Handle]*goja.Object

	ctx    context.Context
	cancel context.CancelFunc
	tasks  chan func()
	done   chan struct{}

	closeOnce sync.Once
}

// Option configures a Host.
type Option func(*Host)

// WithLogger overrides the package logger.
func WithLogger(l *zap.Logger) Option {
	return func(h *Host) { h.logger = l }
}

// WithName names the host in log output.
func WithName(name string) Option {
	return func(h *Host) { h.name = name }
}

// New loads the bridge prelude and the engine script into a fresh runtime
// and starts the host goroutine.
func New(name, engineScript string, opts ...Option) (*Host, error) {
	h := &Host{
		name:     "goja",
		elements: make(map[editorbridge.Handle]*goja.Object),
		tasks:    make(chan func()),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = Logger()
	}
	h.logger = h.logger.With(zap.String("host", h.name))

	h.vm = goja.New()
	h.vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	if err := h.installConsole(); err != nil {
		return nil, err
	}
	for _, src := range []struct{ name, code string }{
		{preludeName, prelude},
		{name, engineScript},
	} {
		prg, err := goja.Compile(src.name, src.code, false)
		if err != nil {
			return nil, errors.Load(src.name, err)
		}
		if _, err := h.vm.RunProgram(prg); err != nil {
			return nil, errors.Load(src.name, err)
		}
	}

	stringify, ok := goja.AssertFunction(h.vm.Get("JSON").ToObject(h.vm).Get("stringify"))
	if !ok {
		return nil, errors.New(errors.PhaseLoad, errors.KindFatal).Detail("JSON.stringify unavailable").Build()
	}
	h.stringify = stringify

	h.ctx, h.cancel = context.WithCancel(context.Background())
	go h.loop()
	h.logger.Debug("engine loaded", zap.String("script", name))
	return h, nil
}

func (h *Host) installConsole() error {
	console := h.vm.NewObject()
	log := h.logger.Named("console")
	for name, write := range map[string]func(string, ...zap.Field){
		"log":   log.Debug,
		"debug": log.Debug,
		"info":  log.Info,
		"warn":  log.Warn,
		"error": log.Error,
	} {
		if err := console.Set(name, func(call goja.FunctionCall) goja.Value {
			args := make([]any, len(call.Arguments))
			for i, a := range call.Arguments {
				args[i] = a.String()
			}
			write("console", zap.Any("args", args))
			return goja.Undefined()
		}); err != nil {
			return errors.Load("console", err)
		}
	}
	return h.vm.Set("console", console)
}

func (h *Host) loop() {
	defer close(h.done)
	for {
		select {
		case task := <-h.tasks:
			h.runTask(task)
		case <-h.ctx.Done():
			return
		}
	}
}

func (h *Host) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			if errors.IsCritical(r) {
				panic(r)
			}
			h.logger.Error("host task panicked", zap.Error(errors.Panic(errors.PhaseHost, h.name, r)))
		}
	}()
	task()
}

// post hands task to the host goroutine.
func (h *Host) post(ctx context.Context, task func()) error {
	select {
	case h.tasks <- task:
		return nil
	case <-h.ctx.Done():
		return errors.Disposed(errors.PhaseHost, h.name)
	case <-ctx.Done():
		return errors.Transport(h.name, ctx.Err())
	}
}

type reply struct {
	result string
	err    error
}

// call runs fn on the host goroutine and waits until it calls done, which
// it may do later from another task.
func (h *Host) call(ctx context.Context, fn func(done func(string, error))) (string, error) {
	out := make(chan reply, 1)
	var once sync.Once
	done := func(result string, err error) {
		once.Do(func() { out <- reply{result, err} })
	}
	if err := h.post(ctx, func() { fn(done) }); err != nil {
		return "", err
	}

	select {
	case r := <-out:
		return r.result, r.err
	case <-ctx.Done():
		return "", errors.Transport(h.name, ctx.Err())
	case <-h.ctx.Done():
		select {
		case r := <-out:
			return r.result, r.err
		default:
			return "", errors.Disposed(errors.PhaseHost, h.name)
		}
	}
}

func (h *Host) do(ctx context.Context, fn func() error) error {
	_, err := h.call(ctx, func(done func(string, error)) {
		done("", fn())
	})
	return err
}

// Attach creates the element object for handle, bound to bridge.
func (h *Host) Attach(ctx context.Context, handle editorbridge.Handle, bridge editorbridge.Bridge) error {
	return h.do(ctx, func() error {
		if _, exists := h.elements[handle]; exists {
			return errors.New(errors.PhaseHost, errors.KindInvalidState).
				Handle(uint32(handle)).
				Detail("element already attached").
				Build()
		}
		el, err := h.newElement(handle, bridge)
		if err != nil {
			return err
		}
		h.elements[handle] = el
		h.logger.Debug("element attached", zap.Uint32("handle", uint32(handle)))
		return nil
	})
}

// Start calls the engine's initEditor with the element.
func (h *Host) Start(ctx context.Context, handle editorbridge.Handle) error {
	return h.do(ctx, func() error {
		el, err := h.element(handle, "start")
		if err != nil {
			return err
		}
		fn, ok := goja.AssertFunction(h.vm.Get(initFunction))
		if !ok {
			return errors.NotFound(errors.PhaseLoad, "engine function", initFunction)
		}
		if _, err := fn(goja.Undefined(), el); err != nil {
			return h.scriptError(initFunction, err)
		}
		return nil
	})
}

// Run evaluates script with the element in scope. A completion value that
// is a promise is awaited, unless the caller is a task on a dispatch queue:
// a pending promise may need that queue to settle, so it fails instead.
func (h *Host) Run(ctx context.Context, handle editorbridge.Handle, script string) (string, error) {
	return h.call(ctx, func(done func(string, error)) {
		el, err := h.element(handle, "run")
		if err != nil {
			done("", err)
			return
		}

		fired := make(chan struct{})
		stop := context.AfterFunc(ctx, func() {
			h.vm.Interrupt(ctx.Err())
			close(fired)
		})
		v, err := h.evalWith(el, script)
		if !stop() {
			<-fired
		}
		h.vm.ClearInterrupt()
		if err != nil {
			done("", h.scriptError("run", err))
			return
		}
		h.settle(v, dispatch.Current(ctx) != nil, done)
	})
}

func (h *Host) evalWith(el *goja.Object, script string) (goja.Value, error) {
	prev := h.vm.Get(editorbridge.ElementName)
	if err := h.vm.Set(editorbridge.ElementName, el); err != nil {
		return nil, err
	}
	defer func() {
		if prev == nil {
			_ = h.vm.GlobalObject().Delete(editorbridge.ElementName)
			return
		}
		_ = h.vm.Set(editorbridge.ElementName, prev)
	}()
	return h.vm.RunString(script)
}

// settle reports v, waiting for it first if it is a pending promise.
func (h *Host) settle(v goja.Value, onQueue bool, done func(string, error)) {
	p, ok := exportPromise(v)
	if !ok {
		done(h.encode(v))
		return
	}

	switch p.State() {
	case goja.PromiseStateFulfilled:
		done(h.encode(p.Result()))
		return
	case goja.PromiseStateRejected:
		done("", h.rejection(p.Result()))
		return
	}
	if onQueue {
		done("", errors.New(errors.PhaseHost, errors.KindInvalidState).
			Name("run").
			Detail("pending promise awaited from a dispatch queue task").
			Build())
		return
	}

	then, _ := goja.AssertFunction(v.ToObject(h.vm).Get("then"))
	onFulfilled := h.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		done(h.encode(call.Argument(0)))
		return goja.Undefined()
	})
	onRejected := h.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		done("", h.rejection(call.Argument(0)))
		return goja.Undefined()
	})
	if _, err := then(v, onFulfilled, onRejected); err != nil {
		done("", h.scriptError("then", err))
	}
}

func exportPromise(v goja.Value) (*goja.Promise, bool) {
	if v == nil {
		return nil, false
	}
	p, ok := v.Export().(*goja.Promise)
	return p, ok
}

// encode renders a completion value as JSON text, "" when there is none.
func (h *Host) encode(v goja.Value) (string, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return "", nil
	}
	out, err := h.stringify(goja.Undefined(), v)
	if err != nil {
		return "", h.scriptError("stringify", err)
	}
	if goja.IsUndefined(out) {
		return "", nil
	}
	return out.String(), nil
}

func (h *Host) rejection(reason goja.Value) error {
	msg := "promise rejected"
	if reason != nil && !goja.IsUndefined(reason) {
		msg = reason.String()
	}
	return errors.New(errors.PhaseHost, errors.KindScript).
		Detail("%s", msg).
		Build()
}

func (h *Host) scriptError(member string, err error) error {
	var interrupted *goja.InterruptedError
	if stderrors.As(err, &interrupted) {
		cause, _ := interrupted.Value().(error)
		if cause == nil {
			cause = err
		}
		return errors.Transport(member, cause)
	}
	var ex *goja.Exception
	if stderrors.As(err, &ex) {
		return errors.New(errors.PhaseHost, errors.KindScript).
			Name(member).
			Detail("%s", ex.Error()).
			Cause(err).
			Build()
	}
	return errors.Wrap(errors.PhaseHost, errors.KindScript, err, member)
}

// Detach calls the engine's disposeEditor, if defined, and drops the
// element.
func (h *Host) Detach(ctx context.Context, handle editorbridge.Handle) error {
	return h.do(ctx, func() error {
		el, ok := h.elements[handle]
		if !ok {
			return nil
		}
		delete(h.elements, handle)
		if fn, ok := goja.AssertFunction(h.vm.Get(disposeFunc)); ok {
			if _, err := fn(goja.Undefined(), el); err != nil {
				h.logger.Warn("engine dispose failed",
					zap.Uint32("handle", uint32(handle)),
					zap.Error(h.scriptError(disposeFunc, err)))
			}
		}
		h.logger.Debug("element detached", zap.Uint32("handle", uint32(handle)))
		return nil
	})
}

// Close stops the host goroutine. Pending and later calls fail with a
// disposed error. Close is idempotent.
func (h *Host) Close(ctx context.Context) error {
	h.closeOnce.Do(func() {
		h.cancel()
		h.vm.Interrupt(errors.Disposed(errors.PhaseHost, h.name))
	})
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Host) element(handle editorbridge.Handle, op string) (*goja.Object, error) {
	el, ok := h.elements[handle]
	if !ok {
		return nil, errors.StaleHandle(errors.PhaseHost, uint32(handle), op)
	}
	return el, nil
}
