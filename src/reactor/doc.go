// Package reactor implements a single-threaded I/O readiness loop.
//
// Callers register jobs, one per (descriptor, Op) pair, and the Reactor runs
// them on its own goroutine when epoll reports the descriptor ready. A
// one-shot job is removed before it is invoked, so it may re-post itself from
// inside its own handler. Interest changes made while the loop is blocked are
// applied through an internal eventfd that wakes it up.
//
// Nothing in this package is safe for concurrent use; the only cross-goroutine
// entry point is SignalBridge, which forwards process signals onto the loop.
package reactor
