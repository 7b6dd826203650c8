package mem

import (
	"math/bits"

	"github.com/halcyonos/capkit/ksync"
)

const (
	// minClassShift is the smallest size class, 16 bytes.
	minClassShift = 4
	// maxClassShift is the largest size class, one page.
	maxClassShift = 12
	numClasses    = maxClassShift - minClassShift + 1
)

// FreeAllocator is the documented upgrade over BumpAllocator: power-of-two
// size-class free lists layered over bump growth, so freed chunks are
// actually reused.
//
// Chunks up to one page are rounded to their size class and recycled
// through per-class free lists. Larger chunks fall through to plain bump
// allocation and are not reused, matching the baseline behavior.
//
// Every class chunk is allocated at a class-size-aligned address, so a
// recycled chunk satisfies any alignment up to its class size without
// re-checking.
type FreeAllocator struct {
	lock ksync.SpinLock

	bump    *BumpAllocator
	classes [numClasses][]Region
	stats   Stats
}

// NewFree creates a FreeAllocator over the given region.
func NewFree(region Region) *FreeAllocator {
	return &FreeAllocator{
		bump:  NewBump(region),
		stats: Stats{Total: region.Size},
	}
}

// Alloc returns a region of at least size bytes aligned to align. Class
// sized requests may be rounded up to their class size.
func (fa *FreeAllocator) Alloc(owner ksync.HartID, size, align uint64) (Region, error) {
	if size == 0 {
		return Region{}, ErrZeroSize
	}
	if !isPowerOfTwo(align) {
		return Region{}, ErrBadAlign
	}

	fa.lock.Lock(owner)
	defer fa.lock.Unlock(owner)

	cls, clsSize, ok := classFor(size, align)
	if !ok {
		// Large allocation: bump directly, never recycled.
		r, err := fa.bump.Alloc(owner, size, align)
		if err != nil {
			return Region{}, err
		}
		fa.stats.Allocated += r.Size
		fa.stats.Allocations++
		return r, nil
	}

	if n := len(fa.classes[cls]); n > 0 {
		r := fa.classes[cls][n-1]
		fa.classes[cls] = fa.classes[cls][:n-1]
		clear(r.data)
		fa.stats.Allocated += r.Size
		fa.stats.Allocations++
		return r, nil
	}

	// Class list empty: grow via the bump layer, aligned to the class size
	// so the chunk stays reusable for any smaller alignment.
	r, err := fa.bump.Alloc(owner, clsSize, clsSize)
	if err != nil {
		return Region{}, err
	}
	fa.stats.Allocated += r.Size
	fa.stats.Allocations++
	return r, nil
}

// Free returns a region to its size-class free list. Regions larger than
// the biggest class are accounted for but not reused.
func (fa *FreeAllocator) Free(owner ksync.HartID, r Region) error {
	if !fa.bump.owns(r) {
		return ErrBadRegion
	}

	fa.lock.Lock(owner)
	defer fa.lock.Unlock(owner)

	fa.stats.Freed += r.Size
	fa.stats.Allocated -= r.Size

	if isPowerOfTwo(r.Size) {
		if cls, _, ok := classFor(r.Size, 1); ok && uint64(16)<<cls == r.Size {
			fa.classes[cls] = append(fa.classes[cls], r)
		}
	}
	return nil
}

// Stats returns a snapshot of the allocator's accounting.
func (fa *FreeAllocator) Stats(owner ksync.HartID) Stats {
	fa.lock.Lock(owner)
	defer fa.lock.Unlock(owner)
	return fa.stats
}

// classFor maps a (size, align) request to its size class. ok is false for
// requests larger than the biggest class.
func classFor(size, align uint64) (cls int, clsSize uint64, ok bool) {
	need := size
	if align > need {
		need = align
	}
	if need > 1<<maxClassShift {
		return 0, 0, false
	}
	shift := bits.Len64(need - 1)
	if shift < minClassShift {
		shift = minClassShift
	}
	return shift - minClassShift, 1 << shift, true
}

// Compile-time interface check
var _ Allocator = (*FreeAllocator)(nil)
