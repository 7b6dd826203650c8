package mem

import "github.com/halcyonos/capkit/ksync"

// BumpAllocator is the baseline allocator: a monotonic bump pointer over a
// fixed Region.
//
// Key characteristics:
//   - O(1) allocation: pure pointer bump plus alignment padding
//   - zero memory overhead: no free lists, no indexes
//   - Free is accounting-only; freed chunks become dead space forever
//
// The missing reclamation is a stated v1 limitation. FreeAllocator is the
// documented upgrade for workloads that need reuse.
type BumpAllocator struct {
	lock ksync.SpinLock

	region Region
	// next is the offset of the first unallocated byte within region.
	next  uint64
	stats Stats
}

// NewBump creates a BumpAllocator over the given region.
func NewBump(region Region) *BumpAllocator {
	return &BumpAllocator{
		region: region,
		stats:  Stats{Total: region.Size},
	}
}

// Alloc carves a region of size bytes aligned to align.
func (ba *BumpAllocator) Alloc(owner ksync.HartID, size, align uint64) (Region, error) {
	if size == 0 {
		return Region{}, ErrZeroSize
	}
	if !isPowerOfTwo(align) {
		return Region{}, ErrBadAlign
	}

	ba.lock.Lock(owner)
	defer ba.lock.Unlock(owner)

	// Align the absolute address, not the offset: the region base itself
	// may not be aligned to the requested boundary.
	base := uint64(ba.region.Addr)
	start := alignUp(base+ba.next, align) - base
	if start > ba.region.Size || ba.region.Size-start < size {
		return Region{}, ErrOutOfMemory
	}

	r := ba.region.slice(start, size)
	clear(r.data)

	ba.next = start + size
	ba.stats.Allocated = ba.next
	ba.stats.Allocations++
	return r, nil
}

// Free accounts for the returned region but never reclaims it: the bump
// pointer only moves forward.
func (ba *BumpAllocator) Free(owner ksync.HartID, r Region) error {
	if !ba.owns(r) {
		return ErrBadRegion
	}

	ba.lock.Lock(owner)
	defer ba.lock.Unlock(owner)

	ba.stats.Freed += r.Size
	return nil
}

// Stats returns a snapshot of the allocator's accounting.
func (ba *BumpAllocator) Stats(owner ksync.HartID) Stats {
	ba.lock.Lock(owner)
	defer ba.lock.Unlock(owner)
	return ba.stats
}

func (ba *BumpAllocator) owns(r Region) bool {
	return !r.IsZero() && r.Addr >= ba.region.Addr && r.End() <= ba.region.End()
}

// Compile-time interface check
var _ Allocator = (*BumpAllocator)(nil)
