// Package errors provides structured error types for the editor bridge.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the bridge handle, the property/action/event name and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseAccessor, errors.KindStaleHandle).
//		Handle(7).
//		Name("callAction").
//		Detail("accessor not found for owner").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.StaleHandle(errors.PhaseAccessor, 7, "callAction")
//	err := errors.ScriptFailed("updateContent", script, cause)
//
// All errors implement the standard error interface and support errors.Is/As.
// Is matches on Phase and Kind only, so a zero-detail sentinel works as a target:
//
//	errors.Is(err, &errors.Error{Phase: errors.PhaseAccessor, Kind: errors.KindStaleHandle})
package errors
