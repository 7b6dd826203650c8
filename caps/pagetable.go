package caps

import "github.com/halcyonos/capkit/mem"

// PTEntries is the number of entries in one Sv39 page table level.
const PTEntries = 512

// PTEFlags are the permission and status bits of a page table entry.
type PTEFlags uint16

const (
	PTEValid PTEFlags = 1 << iota
	PTERead
	PTEWrite
	PTEExec
	PTEUser
	PTEGlobal
	PTEAccessed
	PTEDirty
)

// PTE is one modeled page table entry: the physical page it points at plus
// its flag bits. A non-leaf entry points at the next table level.
type PTE struct {
	PPN   mem.PAddr
	Flags PTEFlags
}

// IsValid reports whether the entry is present.
func (e PTE) IsValid() bool {
	return e.Flags&PTEValid != 0
}

// PageTable models one level of an Sv39 page table. The entries live in
// Go-visible form; the backing region stands in for the physical page the
// hardware would walk.
type PageTable struct {
	level   int
	backing mem.Region
	entries [PTEntries]PTE
}

// NewPageTable creates a page table of the given level (2 is the root on
// Sv39) over its backing page.
func NewPageTable(backing mem.Region, level int) *PageTable {
	return &PageTable{level: level, backing: backing}
}

// Tag identifies the object kind.
func (pt *PageTable) Tag() Tag { return TagPageTable }

// Level returns the table's level in the paging hierarchy.
func (pt *PageTable) Level() int { return pt.level }

// Entry returns entry idx.
func (pt *PageTable) Entry(idx int) PTE {
	if idx < 0 || idx >= PTEntries {
		panic("caps: page table index out of range")
	}
	return pt.entries[idx]
}

// Map fills entry idx. Returns ErrAlreadyMapped if the entry is valid.
func (pt *PageTable) Map(idx int, ppn mem.PAddr, flags PTEFlags) error {
	if idx < 0 || idx >= PTEntries {
		panic("caps: page table index out of range")
	}
	if pt.entries[idx].IsValid() {
		return ErrAlreadyMapped
	}
	pt.entries[idx] = PTE{PPN: ppn, Flags: flags | PTEValid}
	return nil
}

// Unmap clears entry idx. Unmapping an invalid entry is a no-op.
func (pt *PageTable) Unmap(idx int) {
	if idx < 0 || idx >= PTEntries {
		panic("caps: page table index out of range")
	}
	pt.entries[idx] = PTE{}
}

// teardown unmaps every entry. Descendant capabilities holding the mapped
// pages are already gone by the time this runs, so no entry can still be
// referenced.
func (pt *PageTable) teardown() error {
	for i := range pt.entries {
		pt.entries[i] = PTE{}
	}
	clear(pt.backing.Bytes())
	return nil
}
