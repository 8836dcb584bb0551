// Package handle provides the handle table that correlates native objects
// with their script-side proxies.
//
// A script environment cannot hold a Go pointer. Each native object that is
// reachable from script is registered once and addressed by an opaque
// Handle from then on:
//
//	table := handle.NewTable()
//
//	h := table.Register(acc)        // at attach
//	v, ok := table.Lookup(h)        // on every script-originated call
//	table.Unregister(h)             // at detach or dispose
//
// Registration is explicit. The table never discovers objects on its own
// and drops its reference on Unregister, so it does not extend the
// lifetime of anything registered in it.
//
// # Generations
//
// Slots are reused after Unregister. Each reuse bumps the slot's
// generation, which is encoded in the handle, so a stale handle held by a
// script proxy fails Lookup instead of reaching the slot's new occupant.
//
// # Observers
//
// Subscribe (or SubscribeFunc) receives EventRegistered and
// EventUnregistered notifications. Observers run on the goroutine that
// performed the operation, outside the table's locks.
package handle
