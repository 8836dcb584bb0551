// Package readiness gates engine-directed work on the load state of a
// control.
//
// A control moves through Unattached, Attaching, ScriptLoading and Ready,
// and drops to Detached when unloaded. Until it is Ready every property
// change that needs the engine is submitted to the Gate as a deferred
// Action tagged with a priority class and queued:
//
//	gate.Submit(ctx, readiness.PriorityContent, "Text", func(ctx context.Context) error {
//	    ...
//	})
//
// When the engine reports that it has loaded, CompleteLoad flips the state
// to Ready and takes the queue in the same critical section Submit uses,
// then replays it: options first, content next, decorations last, and in
// submission order within a class. Each replayed action is isolated; a
// failure is logged and reported to OnError observers without stopping
// the rest. Loaded observers run only after the replay, so a property set
// from a loaded handler executes immediately.
//
// After Ready, Submit starts actions at once through the Gate's executor
// and does not wait for them.
package readiness
