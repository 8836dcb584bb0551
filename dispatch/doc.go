// Package dispatch provides the owning execution context of a native
// control.
//
// A Queue runs every submitted task on a single goroutine in submission
// order. Native callbacks invoked from script are never run on the calling
// goroutine; they are posted to the control's Queue instead:
//
//	q := dispatch.New(dispatch.WithName("editor-1"))
//	defer q.Stop()
//
//	q.Post(func() { ... })                      // fire and forget
//	err := q.Do(ctx, func(ctx context.Context) error {
//	    ...                                     // caller waits
//	    return nil
//	})
//
// Tasks receive a context marked with their queue. Calling Do with that
// context runs the function inline, so a task may synchronously call code
// that itself uses Do on the same queue.
//
// The pending list is unbounded, so Post never blocks, even from a task
// running on the same queue.
package dispatch
