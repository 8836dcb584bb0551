package wasmhost

import (
	"bytes"
	"context"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	editorbridge "github.com/wippyai/editor-bridge"
	"github.com/wippyai/editor-bridge/errors"
)

const (
	// HostModule is the import module name guests use for bridge calls.
	HostModule = "editor_bridge"

	guestName = "engine"

	exportEval          = "eval"
	exportAttach        = "attach"
	exportStart         = "start"
	exportDetach        = "detach"
	exportAsyncCallback = "async_callback"
	exportInitialize    = "_initialize"
)

var _ editorbridge.ScriptHost = (*Host)(nil)

// Host runs an editor engine compiled to a WASM reactor module. Guest
// calls are serialized by a single-slot lock; bridge requests made from
// inside a guest call are served on the calling goroutine.
type Host struct {
	logger *zap.Logger
	name   string
	cfg    Config

	runtime wazero.Runtime
	guest   *guest
	env     envelope
	lock    *semaphore.Weighted

	bmu     sync.RWMutex
	bridges map[editorbridge.Handle]editorbridge.Bridge

	ctx    context.Context
	cancel context.CancelFunc
	async  sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

// Config holds runtime limits for the guest.
type Config struct {
	// MemoryLimitPages caps guest memory in 64KiB pages. 0 keeps the
	// runtime default.
	MemoryLimitPages uint32

	// EnableWASI instantiates wasi_snapshot_preview1 before the guest.
	// Guest stdout and stderr go to the logger.
	EnableWASI bool

	// Envelope is the request and response encoding: EnvelopeJSON (the
	// default) or EnvelopeCBOR.
	Envelope string
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

// WithConfig sets runtime limits.
func WithConfig(cfg Config) Option {
	return func(h *Host) { h.cfg = cfg }
}

// New compiles and instantiates wasmBytes. The guest must export memory,
// malloc and eval; free, attach, start, detach and async_callback are
// optional. A reactor's _initialize export runs once after instantiation.
func New(ctx context.Context, wasmBytes []byte, opts ...Option) (*Host, error) {
	h := &Host{
		name:    "wasm",
		lock:    semaphore.NewWeighted(1),
		bridges: make(map[editorbridge.Handle]editorbridge.Bridge),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = Logger()
	}
	h.logger = h.logger.With(zap.String("host", h.name))

	env, err := newEnvelope(h.cfg.Envelope)
	if err != nil {
		return nil, err
	}
	h.env = env
	h.ctx, h.cancel = context.WithCancel(context.Background())

	runtimeCfg := wazero.NewRuntimeConfig()
	if h.cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(h.cfg.MemoryLimitPages)
	}
	h.runtime = wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	if err := h.instantiate(ctx, wasmBytes); err != nil {
		h.cancel()
		_ = h.runtime.Close(ctx)
		return nil, err
	}
	h.logger.Debug("engine module loaded", zap.Int("bytes", len(wasmBytes)))
	return h, nil
}

func (h *Host) instantiate(ctx context.Context, wasmBytes []byte) error {
	if h.cfg.EnableWASI {
		if _, err := wasi_snapshot_preview1.Instantiate(ctx, h.runtime); err != nil {
			return errors.Load("instantiate WASI", err)
		}
	}

	i32 := api.ValueTypeI32
	_, err := h.runtime.NewHostModuleBuilder(HostModule).
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.hostCall), []api.ValueType{i32, i32, i32}, nil).
		WithParameterNames("req_ptr", "req_len", "ret_ptr").
		Export("call").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.hostCallAsync), []api.ValueType{i32, i32, i32}, nil).
		WithParameterNames("req_ptr", "req_len", "id").
		Export("call_async").
		Instantiate(ctx)
	if err != nil {
		return errors.Load("instantiate host module", err)
	}

	compiled, err := h.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return errors.Load("compile engine module", err)
	}

	modCfg := wazero.NewModuleConfig().
		WithName(guestName).
		WithStartFunctions()
	if h.cfg.EnableWASI {
		modCfg = modCfg.
			WithStdout(&logWriter{log: h.logger.Named("stdout")}).
			WithStderr(&logWriter{log: h.logger.Named("stderr")})
	}
	mod, err := h.runtime.InstantiateModule(ctx, compiled, modCfg)
	if err != nil {
		return errors.Load("instantiate engine module", err)
	}
	if mod.ExportedFunction(exportEval) == nil {
		return errors.NotFound(errors.PhaseLoad, "export", exportEval)
	}
	h.guest, err = newGuest(mod)
	if err != nil {
		return err
	}

	if fn := mod.ExportedFunction(exportInitialize); fn != nil {
		if _, err := fn.Call(ctx); err != nil {
			return errors.Load(exportInitialize, err)
		}
	}
	return nil
}

// enter acquires the guest lock.
func (h *Host) enter(ctx context.Context) error {
	if h.ctx.Err() != nil {
		return errors.Disposed(errors.PhaseHost, h.name)
	}
	if err := h.lock.Acquire(ctx, 1); err != nil {
		return errors.Transport(h.name, err)
	}
	if h.ctx.Err() != nil {
		h.lock.Release(1)
		return errors.Disposed(errors.PhaseHost, h.name)
	}
	return nil
}

func (h *Host) leave() {
	h.lock.Release(1)
}

// callOptional calls an optional per-handle export.
func (h *Host) callOptional(ctx context.Context, name string, handle editorbridge.Handle) error {
	fn := h.guest.mod.ExportedFunction(name)
	if fn == nil {
		return nil
	}
	if _, err := fn.Call(ctx, uint64(handle)); err != nil {
		return errors.New(errors.PhaseHost, errors.KindScript).
			Handle(uint32(handle)).
			Name(name).
			Cause(err).
			Build()
	}
	return nil
}

func (h *Host) bridge(handle editorbridge.Handle, op string) (editorbridge.Bridge, error) {
	h.bmu.RLock()
	b, ok := h.bridges[handle]
	h.bmu.RUnlock()
	if !ok {
		return nil, errors.StaleHandle(errors.PhaseHost, uint32(handle), op)
	}
	return b, nil
}

// Attach binds handle to bridge and calls the guest's attach export.
func (h *Host) Attach(ctx context.Context, handle editorbridge.Handle, bridge editorbridge.Bridge) error {
	h.bmu.Lock()
	if _, exists := h.bridges[handle]; exists {
		h.bmu.Unlock()
		return errors.New(errors.PhaseHost, errors.KindInvalidState).
			Handle(uint32(handle)).
			Detail("element already attached").
			Build()
	}
	h.bridges[handle] = bridge
	h.bmu.Unlock()

	if err := h.enter(ctx); err != nil {
		h.drop(handle)
		return err
	}
	defer h.leave()
	if err := h.callOptional(ctx, exportAttach, handle); err != nil {
		h.drop(handle)
		return err
	}
	h.logger.Debug("element attached", zap.Uint32("handle", uint32(handle)))
	return nil
}

func (h *Host) drop(handle editorbridge.Handle) bool {
	h.bmu.Lock()
	defer h.bmu.Unlock()
	_, ok := h.bridges[handle]
	delete(h.bridges, handle)
	return ok
}

// Start calls the guest's start export. A guest without one begins its
// startup in attach.
func (h *Host) Start(ctx context.Context, handle editorbridge.Handle) error {
	if _, err := h.bridge(handle, "start"); err != nil {
		return err
	}
	if err := h.enter(ctx); err != nil {
		return err
	}
	defer h.leave()
	return h.callOptional(ctx, exportStart, handle)
}

// Run passes script to the guest's eval export and returns the JSON text of
// its completion value.
func (h *Host) Run(ctx context.Context, handle editorbridge.Handle, script string) (string, error) {
	if _, err := h.bridge(handle, "run"); err != nil {
		return "", err
	}
	if err := h.enter(ctx); err != nil {
		return "", err
	}
	defer h.leave()

	resp, err := h.eval(ctx, handle, script)
	if err != nil {
		return "", err
	}
	if !resp.OK {
		return "", errors.New(errors.PhaseHost, errors.KindScript).
			Handle(uint32(handle)).
			Name(exportEval).
			Detail("%s", resp.Error).
			Build()
	}
	if len(resp.Value) == 0 || bytes.Equal(resp.Value, []byte("null")) {
		return "", nil
	}
	return string(resp.Value), nil
}

func (h *Host) eval(ctx context.Context, handle editorbridge.Handle, script string) (response, error) {
	g := h.guest
	ptr, err := g.write(ctx, []byte(script))
	if err != nil {
		return response{}, err
	}
	defer g.free(ctx, ptr)

	stack := []uint64{uint64(handle), uint64(ptr), uint64(len(script))}
	if err := g.mod.ExportedFunction(exportEval).CallWithStack(ctx, stack); err != nil {
		return response{}, errors.New(errors.PhaseHost, errors.KindScript).
			Handle(uint32(handle)).
			Name(exportEval).
			Cause(err).
			Build()
	}

	rptr, rlen := packed(stack[0])
	if rlen == 0 {
		return response{OK: true}, nil
	}
	data, err := g.read(rptr, rlen)
	g.free(ctx, rptr)
	if err != nil {
		return response{}, err
	}
	var resp response
	if err := h.env.Unmarshal(data, &resp); err != nil {
		return response{}, errors.Wrap(errors.PhaseHost, errors.KindDecode, err, "eval result")
	}
	return resp, nil
}

// Detach calls the guest's detach export and unbinds handle.
func (h *Host) Detach(ctx context.Context, handle editorbridge.Handle) error {
	if !h.drop(handle) {
		return nil
	}
	if err := h.enter(ctx); err != nil {
		return err
	}
	defer h.leave()
	if err := h.callOptional(ctx, exportDetach, handle); err != nil {
		h.logger.Warn("engine detach failed", zap.Uint32("handle", uint32(handle)), zap.Error(err))
	}
	h.logger.Debug("element detached", zap.Uint32("handle", uint32(handle)))
	return nil
}

// Close waits for the running guest call and outstanding event callbacks,
// then closes the runtime. Close is idempotent.
func (h *Host) Close(ctx context.Context) error {
	h.closeOnce.Do(func() {
		h.cancel()
		if err := h.lock.Acquire(ctx, 1); err != nil {
			h.closeErr = err
			return
		}
		h.async.Wait()
		h.closeErr = h.runtime.Close(ctx)
	})
	return h.closeErr
}

// hostCall serves editor_bridge.call(req_ptr, req_len, ret_ptr). The
// response is written to guest memory and its pointer and length are
// stored as two little-endian u32 at ret_ptr.
func (h *Host) hostCall(ctx context.Context, mod api.Module, stack []uint64) {
	reqPtr, reqLen, retPtr := uint32(stack[0]), uint32(stack[1]), uint32(stack[2])

	var resp response
	if data, err := h.guest.read(reqPtr, reqLen); err != nil {
		resp = failed(err)
	} else if req, err := decodeRequest(h.env, data); err != nil {
		resp = failed(err)
	} else {
		resp = h.serve(ctx, req)
	}

	ptr, length := h.writeResponse(ctx, resp)
	mem := mod.Memory()
	if !mem.WriteUint32Le(retPtr, ptr) || !mem.WriteUint32Le(retPtr+4, length) {
		h.logger.Warn("bridge response pointer out of bounds", zap.Uint32("ret_ptr", retPtr))
	}
}

// hostCallAsync serves editor_bridge.call_async(req_ptr, req_len, id). The
// request is served on its own goroutine and the response is delivered
// through the guest's async_callback(id, ptr, len).
func (h *Host) hostCallAsync(ctx context.Context, _ api.Module, stack []uint64) {
	reqPtr, reqLen, id := uint32(stack[0]), uint32(stack[1]), uint32(stack[2])

	data, err := h.guest.read(reqPtr, reqLen)
	if err == nil {
		var req request
		req, err = decodeRequest(h.env, data)
		if err == nil {
			h.async.Add(1)
			go func() {
				defer h.async.Done()
				h.complete(id, h.serveEvent(h.ctx, req))
			}()
			return
		}
	}
	h.async.Add(1)
	go func() {
		defer h.async.Done()
		h.complete(id, failed(err))
	}()
}

func (h *Host) complete(id uint32, resp response) {
	if err := h.enter(h.ctx); err != nil {
		h.logger.Debug("async result dropped", zap.Uint32("id", id), zap.Error(err))
		return
	}
	defer h.leave()

	fn := h.guest.mod.ExportedFunction(exportAsyncCallback)
	if fn == nil {
		h.logger.Warn("guest has no async_callback export", zap.Uint32("id", id))
		return
	}
	ptr, length := h.writeResponse(h.ctx, resp)
	if _, err := fn.Call(h.ctx, uint64(id), uint64(ptr), uint64(length)); err != nil {
		h.logger.Warn("async_callback failed", zap.Uint32("id", id), zap.Error(err))
	}
}

func (h *Host) writeResponse(ctx context.Context, resp response) (ptr, length uint32) {
	data, err := h.env.Marshal(resp)
	if err != nil {
		data, _ = h.env.Marshal(failed(err))
	}
	ptr, err = h.guest.write(ctx, data)
	if err != nil {
		h.logger.Warn("bridge response not delivered", zap.Error(err))
		return 0, 0
	}
	return ptr, uint32(len(data))
}

// logWriter forwards guest output lines to a logger.
type logWriter struct {
	log *zap.Logger
}

func (w *logWriter) Write(p []byte) (int, error) {
	for _, line := range bytes.Split(bytes.TrimRight(p, "\n"), []byte("\n")) {
		if len(line) > 0 {
			w.log.Info(string(line))
		}
	}
	return len(p), nil
}
