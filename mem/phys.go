package mem

import "fmt"

// PageSize is the granularity at which the physical range is sized.
const PageSize = 4096

// PhysBase is the physical address at which the modeled range starts. RAM
// on the target begins at 2 GiB, below that sit MMIO windows.
const PhysBase PAddr = 0x8000_0000

// PhysMemory is the modeled physical memory range. It is mapped once at
// kernel startup and carved up by allocators; it is never grown or remapped
// afterwards.
type PhysMemory struct {
	data    []byte
	release func() error
}

// MapPhys maps a physical memory range of the given size, rounded up to a
// whole number of pages. On unix hosts the range is backed by an anonymous
// mapping; elsewhere it falls back to heap storage.
func MapPhys(size uint64) (*PhysMemory, error) {
	if size == 0 {
		return nil, ErrZeroSize
	}
	size = alignUp(size, PageSize)

	data, release, err := mapBacking(int(size))
	if err != nil {
		return nil, fmt.Errorf("mem: mapping physical range failed: %w", err)
	}
	return &PhysMemory{data: data, release: release}, nil
}

// Size returns the size of the range in bytes.
func (p *PhysMemory) Size() uint64 {
	return uint64(len(p.data))
}

// Region returns the whole range as a single Region starting at PhysBase.
func (p *PhysMemory) Region() Region {
	return Region{Addr: PhysBase, Size: p.Size(), data: p.data}
}

// Close releases the backing mapping. The PhysMemory and every Region
// carved from it must not be used afterwards.
func (p *PhysMemory) Close() error {
	if p.release == nil {
		return nil
	}
	release := p.release
	p.release = nil
	p.data = nil
	return release()
}
