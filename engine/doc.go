// Package engine embeds editor engines that run inside a script host.
//
// Headless speaks the same element API as the browser engine but keeps its
// model in memory. Load it into a goja host to drive a control without a
// UI:
//
//	h, err := gojahost.New(engine.HeadlessName, engine.Headless)
//
// Scripts run against the engine can read its state with
// snapshot(element), which returns the text, language, options, theme and
// registered actions as one object.
package engine
