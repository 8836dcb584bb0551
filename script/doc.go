// Package script is the native to engine half of the editor bridge.
//
// A Channel turns a method name and native arguments into one statement
// and runs it through the control's ScriptHost:
//
//	ch.Invoke(ctx, "updateContent", "hello")
//	// runs: updateContent(element,"hello");
//
// Every statement receives the control's script-side element as its first
// argument. Numbers render as literals, strings as quoted string literals
// and any other value as JSON with null members omitted.
//
// Invoke is for commands and runs only once the engine is Ready; earlier
// calls are skipped because queued property changes replay through the
// readiness gate. Run executes a raw fragment and needs only an attached
// engine, so the loading handshake itself can query focus and layout.
//
// Neither returns an error. A failed call yields an empty result and its
// cause is published to OnInternalException subscribers.
package script
