package mem

import "github.com/halcyonos/capkit/ksync"

// Allocator carves Regions out of a fixed physical range.
//
// Implementations are internally synchronized and safe to call from
// multiple harts concurrently. Exhaustion is reported as ErrOutOfMemory and
// is always recoverable by the caller.
type Allocator interface {
	// Alloc carves a region of at least size bytes aligned to align (a
	// power of two). The returned region is zeroed.
	Alloc(owner ksync.HartID, size, align uint64) (Region, error)

	// Free returns a region to the allocator. Whether the memory actually
	// becomes available again is implementation-defined: the baseline
	// BumpAllocator only accounts for it.
	Free(owner ksync.HartID, r Region) error

	// Stats returns a snapshot of the allocator's accounting, taken under
	// the allocator's lock so the fields are mutually consistent.
	Stats(owner ksync.HartID) Stats
}

// Stats is a point-in-time snapshot of allocator accounting.
type Stats struct {
	// Total is the size of the managed range in bytes.
	Total uint64
	// Allocated is the number of bytes currently charged against the range.
	// The baseline BumpAllocator never returns freed bytes to this count.
	Allocated uint64
	// Freed is the number of bytes returned via Free, whether or not the
	// allocator can reuse them.
	Freed uint64
	// Allocations counts successful Alloc calls.
	Allocations uint64
}

// Remaining returns the bytes still available for allocation, ignoring
// reuse of freed chunks.
func (s Stats) Remaining() uint64 {
	return s.Total - s.Allocated
}
