package editorbridge

import (
	"context"

	"github.com/wippyai/editor-bridge/handle"
)

// Handle correlates a native control with its script-side proxy.
type Handle = handle.Handle

// Bridge is the native surface reachable from script. Every call names the
// control by handle; a handle with no live registration is an error, while
// an unknown property, action or event name is an ordinary negative result.
type Bridge interface {
	GetValue(h Handle, name string) (any, error)
	GetJSONValue(h Handle, name string) (string, error)
	SetValue(ctx context.Context, h Handle, name, value string) error
	SetValueWithType(ctx context.Context, h Handle, name, value, typeName string) error
	CallAction(h Handle, name string) (bool, error)
	CallActionWithParameters(h Handle, name string, params []string) (bool, error)
	CallEvent(ctx context.Context, h Handle, name string, params []string) (*string, error)
	Close(h Handle) error
}

// ScriptHost runs the editor engine in an execution context isolated from
// native code. Implementations exchange only strings with the engine.
type ScriptHost interface {
	// Attach creates the script-side element for h, wired to bridge.
	Attach(ctx context.Context, h Handle, bridge Bridge) error

	// Start begins the engine's startup sequence for h. The engine signals
	// completion by calling the "Loaded" action through the bridge.
	Start(ctx context.Context, h Handle) error

	// Run executes script with the element for h in scope and returns the
	// JSON text of its completion value ("" when there is none).
	// Run must not wait on native events from the control's own dispatch
	// queue: those events are served on that queue.
	Run(ctx context.Context, h Handle, script string) (string, error)

	// Detach removes the script-side element for h.
	Detach(ctx context.Context, h Handle) error

	// Close releases the engine.
	Close(ctx context.Context) error
}

// ElementName is the identifier under which the implicit context argument
// is visible to scripts sent through a ScriptHost.
const ElementName = "element"

// LoadedAction is the action the engine calls when its startup completes.
const LoadedAction = "Loaded"
