// Package eventloop implements the per-component cooperative executor: a
// single work queue draining commands in arrival order on exactly one
// worker, so no two events for the same component ever run concurrently.
// Two behaviourally-identical implementations are provided: ThreadLoop,
// backed by a private worker goroutine, and DispatcherLoop, hosted on a
// shared external pump (for components that must run on one "main" thread).
package eventloop

import "time"

// Command is one unit of work enqueued on a loop.
type Command func()

// Loop is the common contract both implementations satisfy.
type Loop interface {
	// Queue enqueues cmd for execution, thread-safe from any caller. It
	// returns false if the loop has already been asked to stop, in which
	// case cmd is silently dropped.
	Queue(cmd Command) bool
	// Start begins draining the queue. The loop's onStart hook runs first,
	// before any queued command.
	Start()
	// Stop enqueues a termination marker: commands queued before Stop still
	// run, in order, then the loop's onStop hook runs and the loop exits.
	// Any Queue call after Stop is dropped.
	Stop()
	// Join waits up to timeout for the worker to finish; timeout <= 0 means
	// wait indefinitely. It returns true if the loop stopped in time.
	Join(timeout time.Duration) bool
	// Running reports whether the loop is currently draining its queue.
	Running() bool
}
