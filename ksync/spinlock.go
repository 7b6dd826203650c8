package ksync

import (
	"fmt"
	"runtime"
	"sync/atomic"
)

// HartID identifies one hardware execution context (core or hardware
// thread). Every operation that can take a lock carries the ID of the hart
// it runs on so that re-entry can be detected.
type HartID uint32

// SpinLock is a non-blocking mutual exclusion lock. The zero value is an
// unlocked lock.
//
// Acquisition spins until the lock is free; there is no queue and no
// fairness guarantee. The lock records its current owner so that a hart
// re-acquiring a lock it already holds is caught immediately.
type SpinLock struct {
	// owner holds the owning hart's ID biased by +1, so the zero value
	// means "unlocked".
	owner atomic.Int64
}

// TryLock attempts to acquire the lock once without spinning. It reports
// whether the lock was acquired.
//
// TryLock panics if owner already holds the lock.
func (l *SpinLock) TryLock(owner HartID) bool {
	tag := int64(owner) + 1
	if l.owner.Load() == tag {
		panic(fmt.Sprintf("ksync: hart %d tried to re-acquire a lock it already holds", owner))
	}
	return l.owner.CompareAndSwap(0, tag)
}

// Lock spins until the lock is acquired.
//
// Lock panics if owner already holds the lock: the kernel has no way to
// unwind the caller at that point, so this is a fatal programming error
// rather than a recoverable condition.
func (l *SpinLock) Lock(owner HartID) {
	tag := int64(owner) + 1
	for !l.owner.CompareAndSwap(0, tag) {
		if l.owner.Load() == tag {
			panic(fmt.Sprintf("ksync: hart %d tried to re-acquire a lock it already holds", owner))
		}
		spinWait()
	}
}

// Unlock releases the lock. It panics if the lock is not held by owner,
// which would indicate a corrupted locking discipline.
func (l *SpinLock) Unlock(owner HartID) {
	tag := int64(owner) + 1
	if !l.owner.CompareAndSwap(tag, 0) {
		panic(fmt.Sprintf("ksync: hart %d released a lock it does not hold", owner))
	}
}

// Holder returns the hart currently holding the lock, if any.
func (l *SpinLock) Holder() (HartID, bool) {
	tag := l.owner.Load()
	if tag == 0 {
		return 0, false
	}
	return HartID(tag - 1), true
}

// spinWait is the hart-local pause executed between acquisition attempts.
// On hosted builds harts are goroutines, so yielding keeps a contended
// lock live even on a single CPU.
func spinWait() {
	runtime.Gosched()
}
