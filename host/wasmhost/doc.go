// Package wasmhost runs an editor engine compiled to a WebAssembly reactor
// module under wazero.
//
// Only strings cross the boundary. The host writes script text into guest
// memory and calls
//
//	eval(handle i32, ptr i32, len i32) -> i64
//
// whose result packs the pointer (high word) and length of a JSON response
// {"ok":bool,"value":any,"error":string}. The guest reaches native code
// through two imports from the "editor_bridge" module:
//
//	call(req_ptr, req_len, ret_ptr)        // synchronous request
//	call_async(req_ptr, req_len, id)       // callEvent, answered later
//
// A request is {"op","handle","name","value","type","params"} where op is
// one of getValue, getJsonValue, setValue, setValueWithType, callAction,
// callActionWithParameters, callEvent or close. A synchronous response is
// written to memory allocated with the guest's malloc and its pointer and
// length are stored at ret_ptr. An asynchronous response is delivered to
// the guest's async_callback(id, ptr, len) export once the event handler
// on the control's queue has finished.
//
// Envelopes are JSON unless Config.Envelope selects EnvelopeCBOR, in which
// case requests and responses are deterministic CBOR maps with the same
// keys and the response value is a byte string holding JSON text.
//
// The optional exports attach, start and detach receive a handle. A guest
// without start is expected to begin loading when attached and to call the
// "Loaded" action through the bridge when ready.
package wasmhost
