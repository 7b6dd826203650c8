package caps

import (
	"github.com/halcyonos/capkit/ksync"
	"github.com/halcyonos/capkit/mem"
)

// Memory is a kernel object owning a range of physical memory together
// with the allocator that carves backing storage for objects derived from
// it. Deriving a Memory capability carves a sub-range out of the parent's
// allocator and gives the child its own allocator over that sub-range.
type Memory struct {
	region   mem.Region
	alloc    mem.Allocator
	released bool
}

// NewMemory creates a Memory object over region with the baseline bump
// allocator.
func NewMemory(region mem.Region) *Memory {
	return &Memory{region: region, alloc: mem.NewBump(region)}
}

// Tag identifies the object kind.
func (m *Memory) Tag() Tag { return TagMemory }

// Size returns the size of the owned range in bytes.
func (m *Memory) Size() uint64 { return m.region.Size }

// Base returns the physical address of the owned range.
func (m *Memory) Base() mem.PAddr { return m.region.Addr }

// Alloc carves backing storage out of the owned range.
func (m *Memory) Alloc(owner ksync.HartID, size, align uint64) (mem.Region, error) {
	if m.released {
		return mem.Region{}, ErrParentDestroyed
	}
	return m.alloc.Alloc(owner, size, align)
}

// Stats returns the owning allocator's accounting.
func (m *Memory) Stats(owner ksync.HartID) mem.Stats {
	if m.released {
		return mem.Stats{}
	}
	return m.alloc.Stats(owner)
}

// teardown releases the sub-allocator. The carved range is not returned to
// the parent's allocator: the baseline allocator is monotonic, so the bytes
// stay accounted to the parent until the whole kernel goes away.
func (m *Memory) teardown() error {
	m.released = true
	m.alloc = nil
	return nil
}
