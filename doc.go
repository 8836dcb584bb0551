// Package editorbridge connects a native editor control to an editor engine
// that runs in an isolated script environment.
//
// The two sides share no memory. Native code drives the engine by sending
// script statements; the engine reaches back through a small Bridge surface
// keyed by handle. Every payload crosses as a string, sanitized so that
// structural characters survive being embedded in script text or JSON.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	editorbridge/        Root package with the Bridge and ScriptHost contracts
//	├── editor/          The native control: properties, lifecycle, methods
//	├── accessor/        Named properties, actions and events exposed to script
//	├── script/          Invocation statements sent to the engine
//	├── readiness/       Load state machine and the pre-load change queue
//	├── listener/        Keyboard, theme and debug log registries
//	├── dispatch/        Per-control owning goroutine
//	├── handle/          Generation-checked handle table
//	├── codec/           Sanitize/Desanitize and JSON helpers
//	├── host/gojahost/   ScriptHost on an embedded JavaScript runtime
//	├── host/wasmhost/   ScriptHost on a WebAssembly reactor module
//	├── engine/          Embedded headless engine
//	├── config/          YAML, TOML and JSONC configuration
//	├── errors/          Structured error types for debugging
//	└── internal/notify/ Ordered subscriber lists
//
// # Quick Start
//
// Attach a control to the headless engine:
//
//	h, err := gojahost.New(engine.HeadlessName, engine.Headless)
//	if err != nil {
//	    return err
//	}
//	defer h.Close(ctx)
//
//	ctrl := editor.New(h)
//	defer ctrl.Close(ctx)
//
//	ctrl.SetText("hello")          // queued until the engine loads
//	ctrl.SetCodeLanguage("python") // replayed before the text
//	if err := ctrl.Attach(ctx); err != nil {
//	    return err
//	}
//
// # Readiness
//
// A control moves through Unattached, Attaching, ScriptLoading, Ready and
// Detached. Until the engine calls the Loaded action, engine-directed
// changes are queued with a priority: options first, content second,
// decorations and markers last. The queue is drained in that order,
// first-in first-out within a priority, under the same lock that flips
// the state to Ready, so no change is lost or reordered around the switch.
//
// # Handles
//
// Script never holds a native reference. It names a control by Handle,
// which encodes a slot and a generation; a handle that outlived its
// control fails with a stale-handle error instead of reaching a newer
// control in the same slot. An unknown property, action or event on a
// live handle is an ordinary negative result.
//
// # Loopback
//
// Writes that arrive from the engine are applied with the control's
// bridge-set mark held. Property setters see the mark and raise the
// change notification without sending the value back to the engine.
package editorbridge
