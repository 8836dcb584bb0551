package wasmhost

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/editor-bridge/errors"
)

// Allocator export names, tried in order.
var (
	allocNames = []string{"malloc", "alloc"}
	freeNames  = []string{"free", "dealloc"}
)

// guest wraps the exports of an instantiated engine module. Calls are not
// synchronized; the Host serializes them.
type guest struct {
	mod      api.Module
	mem      api.Memory
	allocFn  api.Function
	freeFn   api.Function
	stackBuf []uint64
}

func newGuest(mod api.Module) (*guest, error) {
	g := &guest{mod: mod, mem: mod.Memory(), stackBuf: make([]uint64, 4)}
	if g.mem == nil {
		return nil, errors.NotFound(errors.PhaseLoad, "export", "memory")
	}
	g.allocFn = firstExport(mod, allocNames)
	if g.allocFn == nil {
		return nil, errors.NotFound(errors.PhaseLoad, "export", allocNames[0])
	}
	g.freeFn = firstExport(mod, freeNames)
	return g, nil
}

func firstExport(mod api.Module, names []string) api.Function {
	for _, name := range names {
		if fn := mod.ExportedFunction(name); fn != nil {
			return fn
		}
	}
	return nil
}

func (g *guest) alloc(ctx context.Context, size uint32) (uint32, error) {
	g.stackBuf[0] = uint64(size)
	if err := g.allocFn.CallWithStack(ctx, g.stackBuf[:1]); err != nil {
		return 0, errors.Wrap(errors.PhaseHost, errors.KindTransport, err, "malloc")
	}
	return uint32(g.stackBuf[0]), nil
}

func (g *guest) free(ctx context.Context, ptr uint32) {
	if g.freeFn == nil || ptr == 0 {
		return
	}
	g.stackBuf[0] = uint64(ptr)
	if err := g.freeFn.CallWithStack(ctx, g.stackBuf[:1]); err != nil {
		Logger().Debug("guest free failed", zap.Uint32("ptr", ptr), zap.Error(err))
	}
}

// write copies data into freshly allocated guest memory.
func (g *guest) write(ctx context.Context, data []byte) (ptr uint32, err error) {
	if len(data) == 0 {
		return 0, nil
	}
	ptr, err = g.alloc(ctx, uint32(len(data)))
	if err != nil {
		return 0, err
	}
	if !g.mem.Write(ptr, data) {
		g.free(ctx, ptr)
		return 0, outOfBounds("write", ptr, uint32(len(data)))
	}
	return ptr, nil
}

// read copies length bytes at ptr out of guest memory.
func (g *guest) read(ptr, length uint32) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}
	data, ok := g.mem.Read(ptr, length)
	if !ok {
		return nil, outOfBounds("read", ptr, length)
	}
	return append([]byte(nil), data...), nil
}

func outOfBounds(op string, ptr, length uint32) error {
	return errors.New(errors.PhaseHost, errors.KindInvalidInput).
		Detail("%s out of bounds: offset=%d, length=%d", op, ptr, length).
		Build()
}

// packed splits an eval result into pointer (high word) and length.
func packed(v uint64) (ptr, length uint32) {
	return uint32(v >> 32), uint32(v)
}
