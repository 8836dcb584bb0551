package errors

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
)

// Phase indicates where in the bridge the error occurred
type Phase string

const (
	PhaseCodec    Phase = "codec"    // sanitize/desanitize, JSON payloads
	PhaseAccessor Phase = "accessor" // script-originated property and callback access
	PhaseInvoke   Phase = "invoke"   // native to script invocation
	PhaseReplay   Phase = "replay"   // pending property change replay
	PhaseDispatch Phase = "dispatch" // owning execution context
	PhaseHost     Phase = "host"     // script host attach/run
	PhaseConfig   Phase = "config"   // configuration loading
	PhaseLoad     Phase = "load"     // engine script/module loading
)

// Kind categorizes the error
type Kind string

const (
	KindStaleHandle  Kind = "stale_handle"
	KindNotFound     Kind = "not_found"
	KindTypeUnknown  Kind = "type_unknown"
	KindScript       Kind = "script"
	KindTransport    Kind = "transport"
	KindNotReady     Kind = "not_ready"
	KindInvalidState Kind = "invalid_state"
	KindInvalidInput Kind = "invalid_input"
	KindDisposed     Kind = "disposed"
	KindDecode       Kind = "decode"
	KindFatal        Kind = "fatal"
)

// Error is the structured error type used throughout the bridge
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Handle uint32
	Name   string
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Handle != 0 {
		b.WriteString(" handle=")
		b.WriteString(strconv.FormatUint(uint64(e.Handle), 10))
	}
	if e.Name != "" {
		b.WriteString(" name=")
		b.WriteString(e.Name)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Handle sets the bridge handle the error refers to
func (b *Builder) Handle(h uint32) *Builder {
	b.err.Handle = h
	return b
}

// Name sets the property, action or event name
func (b *Builder) Name(name string) *Builder {
	b.err.Name = name
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// StaleHandle reports a script-originated call against a handle with no live accessor.
func StaleHandle(phase Phase, handle uint32, op string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindStaleHandle,
		Handle: handle,
		Name:   op,
		Detail: "accessor not found for owner",
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Name:   name,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// TypeUnknown reports a type name that no registered namespace resolves.
func TypeUnknown(name string) *Error {
	return &Error{
		Phase:  PhaseAccessor,
		Kind:   KindTypeUnknown,
		Name:   name,
		Detail: fmt.Sprintf("type %q not registered", name),
	}
}

// ScriptFailed wraps a failure raised while the engine executed script text.
func ScriptFailed(member, script string, cause error) *Error {
	return &Error{
		Phase:  PhaseInvoke,
		Kind:   KindScript,
		Name:   member,
		Value:  script,
		Detail: "script execution failed",
		Cause:  cause,
	}
}

// Transport wraps a failure reaching the engine at all.
func Transport(member string, cause error) *Error {
	return &Error{
		Phase:  PhaseInvoke,
		Kind:   KindTransport,
		Name:   member,
		Detail: "engine unreachable",
		Cause:  cause,
	}
}

// InvalidState reports a readiness transition that is not allowed.
func InvalidState(phase Phase, from, to string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidState,
		Detail: fmt.Sprintf("cannot transition from %s to %s", from, to),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Disposed reports use of a component after it was closed.
func Disposed(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindDisposed,
		Detail: what + " is closed",
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Load creates a loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidInput,
		Detail: detail,
		Cause:  cause,
	}
}

// Panic converts a recovered panic value into an error.
func Panic(phase Phase, name string, v any) *Error {
	if err, ok := v.(error); ok {
		return &Error{Phase: phase, Kind: KindScript, Name: name, Detail: "panic", Cause: err, Value: v}
	}
	return &Error{Phase: phase, Kind: KindScript, Name: name, Detail: fmt.Sprintf("panic: %v", v), Value: v}
}

// IsCritical reports whether a recovered value is a fault that must not be
// swallowed: Go runtime errors and errors of KindFatal.
func IsCritical(v any) bool {
	switch x := v.(type) {
	case runtime.Error:
		return true
	case *Error:
		return x.Kind == KindFatal
	}
	return false
}
