package script

import (
	"context"
	stderrors "errors"
	"strings"

	"go.uber.org/zap"

	editorbridge "github.com/wippyai/editor-bridge"
	"github.com/wippyai/editor-bridge/codec"
	"github.com/wippyai/editor-bridge/errors"
	"github.com/wippyai/editor-bridge/internal/notify"
)

// Gate reports how far the engine has loaded.
type Gate interface {
	Ready() bool
	Attached() bool
}

// Channel sends script text for one control to its engine. Failures are
// never returned to the caller: the call yields an empty result and the
// cause is published to OnInternalException subscribers.
type Channel struct {
	host   editorbridge.ScriptHost
	handle editorbridge.Handle
	gate   Gate
	logger *zap.Logger

	observers notify.Set[error]
}

// Option configures a Channel.
type Option func(*Channel)

// WithLogger overrides the package logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Channel) { c.logger = l }
}

// New creates a Channel for the control registered under h.
func New(host editorbridge.ScriptHost, h editorbridge.Handle, gate Gate, opts ...Option) *Channel {
	c := &Channel{
		host:   host,
		handle: h,
		gate:   gate,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = Logger()
	}
	c.logger = c.logger.With(zap.Uint32("handle", uint32(h)))
	return c
}

// Handle returns the control handle the channel addresses.
func (c *Channel) Handle() editorbridge.Handle {
	return c.handle
}

// BuildInvocation renders method(element, args...); as script text.
func BuildInvocation(method string, args []any, serialize bool) (string, error) {
	literals, err := codec.ScriptLiterals(args, serialize)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(method)
	b.WriteByte('(')
	b.WriteString(editorbridge.ElementName)
	for _, lit := range literals {
		b.WriteByte(',')
		b.WriteString(lit)
	}
	b.WriteString(");")
	return b.String(), nil
}

// Invoke calls an engine method with serialized arguments and returns the
// JSON text of its result. It does nothing until the engine is Ready.
func (c *Channel) Invoke(ctx context.Context, method string, args ...any) string {
	return c.InvokeWith(ctx, method, true, args...)
}

// InvokeWith is Invoke with control over argument serialization.
func (c *Channel) InvokeWith(ctx context.Context, method string, serialize bool, args ...any) string {
	if !c.gate.Ready() {
		c.logger.Debug("invoke skipped, engine not ready", zap.String("method", method))
		return ""
	}

	stmt, err := BuildInvocation(method, args, serialize)
	if err != nil {
		c.publish(errors.New(errors.PhaseInvoke, errors.KindInvalidInput).
			Name(method).
			Detail("render arguments").
			Cause(err).
			Build())
		return ""
	}
	return c.exec(ctx, method, stmt)
}

// Run executes a script fragment with the element in scope. Unlike Invoke
// it only needs the engine attached, so it can serve queries made while
// the engine is still loading.
func (c *Channel) Run(ctx context.Context, script string) string {
	if !c.gate.Attached() {
		c.logger.Debug("run skipped, engine not attached")
		return ""
	}
	return c.exec(ctx, "run", script)
}

func (c *Channel) exec(ctx context.Context, member, stmt string) string {
	result, err := c.host.Run(ctx, c.handle, stmt)
	if err != nil {
		c.publish(classify(ctx, member, stmt, err))
		return ""
	}
	if strings.Contains(result, codec.InternalErrorMarker) {
		c.publish(errors.New(errors.PhaseInvoke, errors.KindScript).
			Name(member).
			Value(stmt).
			Detail("engine reported %s", result).
			Build())
		return ""
	}
	return result
}

// classify separates failures to reach the engine from failures inside it.
func classify(ctx context.Context, member, stmt string, err error) error {
	if ctx.Err() != nil {
		return errors.Transport(member, err)
	}
	var be *errors.Error
	if stderrors.As(err, &be) {
		switch be.Kind {
		case errors.KindTransport, errors.KindDisposed, errors.KindStaleHandle:
			return errors.Transport(member, err)
		}
	}
	return errors.ScriptFailed(member, stmt, err)
}

// OnInternalException subscribes fn to failures of this channel.
func (c *Channel) OnInternalException(fn func(error)) (unsubscribe func()) {
	return c.observers.Add(fn)
}

func (c *Channel) publish(err error) {
	c.logger.Error("internal exception", zap.Error(err))
	c.observers.Emit(err)
}

// InvokeAs is Invoke with the result decoded into T. Undecodable results
// are published and yield the zero value.
func InvokeAs[T any](ctx context.Context, c *Channel, method string, args ...any) T {
	return decode[T](c, method, c.Invoke(ctx, method, args...))
}

// RunAs is Run with the result decoded into T.
func RunAs[T any](ctx context.Context, c *Channel, script string) T {
	return decode[T](c, "run", c.Run(ctx, script))
}

func decode[T any](c *Channel, member, result string) T {
	out, err := codec.DecodeResult[T](result)
	if err != nil {
		c.publish(errors.New(errors.PhaseInvoke, errors.KindDecode).
			Name(member).
			Value(result).
			Cause(err).
			Build())
	}
	return out
}
