package mem

import "fmt"

// PAddr is a physical address within the modeled memory range.
type PAddr uint64

// Region is a contiguous chunk of physical memory carved out by an
// allocator. It does NOT own the backing storage; it only points into the
// PhysMemory it was carved from.
type Region struct {
	// Addr is the physical address of the first byte.
	Addr PAddr
	// Size is the length of the region in bytes.
	Size uint64

	data []byte
}

// Bytes returns the backing byte view of the region.
func (r Region) Bytes() []byte {
	return r.data
}

// End returns the physical address one past the last byte.
func (r Region) End() PAddr {
	return r.Addr + PAddr(r.Size)
}

// Contains reports whether addr falls inside the region.
func (r Region) Contains(addr PAddr) bool {
	return addr >= r.Addr && addr < r.End()
}

// IsZero reports whether the region is the zero Region.
func (r Region) IsZero() bool {
	return r.Size == 0 && r.data == nil
}

// slice carves a sub-region at the given offset. The caller must have
// validated bounds.
func (r Region) slice(off, size uint64) Region {
	return Region{
		Addr: r.Addr + PAddr(off),
		Size: size,
		data: r.data[off : off+size : off+size],
	}
}

func (r Region) String() string {
	return fmt.Sprintf("[%#x..%#x)", uint64(r.Addr), uint64(r.End()))
}

// alignUp rounds x up to the next multiple of align. align must be a power
// of two.
func alignUp(x, align uint64) uint64 {
	return (x + align - 1) &^ (align - 1)
}

// isPowerOfTwo reports whether a is a non-zero power of two.
func isPowerOfTwo(a uint64) bool {
	return a != 0 && a&(a-1) == 0
}
