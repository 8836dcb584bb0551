// Package gojahost runs an editor engine script inside an embedded goja
// JavaScript runtime.
//
// The runtime is loaded with a small prelude of bridge helpers
// (sanitize, desanitize, getParentJsonValue, setParentValue,
// callParentEventAsync and friends) followed by the engine script. Each
// attached control gets an element object whose methods call back into the
// control's Bridge:
//
//	h, err := gojahost.New("headless.js", engine.Headless)
//	if err != nil {
//	    return err
//	}
//	defer h.Close(ctx)
//
//	ctrl := editor.New(h)
//	err = ctrl.Attach(ctx)
//
// goja runtimes are not safe for concurrent use, so a Host owns one
// goroutine and every operation, including the resolution of event
// promises, is a task on it. Run awaits a promise completion value; a
// script run from the control's own queue must therefore not await a
// native event for that control.
package gojahost
