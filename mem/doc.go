// Package mem models the kernel's physical memory range and the allocators
// that carve it into backing storage for kernel objects and capability
// slots.
//
// # Memory model
//
// The whole physical range managed by the kernel is represented by a
// PhysMemory, mapped once at startup. Allocators hand out Regions, which
// are contiguous sub-ranges addressed by PAddr. A Region never outlives the
// PhysMemory it was carved from.
//
// # Allocators
//
// Two allocators implement the Allocator interface:
//
//   - BumpAllocator: the baseline. Monotonic bump-pointer allocation; Free
//     is accounting-only and never returns memory to the pool. This is a
//     stated v1 limitation, not a bug.
//   - FreeAllocator: the documented upgrade. Size-class free lists layered
//     over bump growth, so freed chunks are actually reused.
//
// Both are safe to call concurrently from multiple harts; they are
// internally synchronized with a ksync.SpinLock. Exhaustion is always the
// recoverable ErrOutOfMemory, never fatal.
package mem
