// Package accessor exposes native objects to the editor engine by name.
//
// An Accessor holds explicit registration tables for one native object:
// properties (typed get/set closures), actions, actions with parameters
// and awaited events. Nothing is discovered by reflection; what is not
// registered does not exist for the engine.
//
//	acc := accessor.New(control, queue)
//	acc.RegisterProperty("Text", accessor.Prop(control.Text, control.setText))
//	acc.RegisterAction("Loaded", control.onLoaded)
//
//	h := accessor.Default().Register(acc)
//
// Setters and actions always run on the object's Dispatcher, never on the
// calling goroutine. While a setter runs the object's Acceptor mark is
// held, so its change handlers can recognise a write that came from the
// engine and avoid sending it straight back.
//
// # Registry
//
// Script hosts reach accessors through a Registry keyed by handle. Its
// methods are the engine-facing entry points: they decode the transport
// encoding of arguments and results, and they fail loudly with a
// stale-handle error when the handle is not live. A missing property,
// action or event on a live handle is an ordinary negative result.
//
// Registry.Close clears an accessor's registrations but keeps its handle,
// so late engine calls see "not found". Registry.Unregister also retires
// the handle.
package accessor
