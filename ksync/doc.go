// Package ksync provides the synchronization primitives used beneath the
// kernel's scheduler.
//
// Nothing in this package may block on a scheduler: the capability core runs
// inside trap handlers, below the point where any kernel-level task switching
// exists. The only primitive offered is therefore a spin lock, and the only
// form of waiting is hart-local spinning.
//
// Locks are strictly non-reentrant. A hart that re-acquires a lock it already
// holds has deadlocked itself in a way the kernel cannot unwind, so the
// attempt panics immediately instead of spinning forever.
package ksync
