package caps

// ASID is a hardware address space identifier.
type ASID uint16

// asidPool hands out ASIDs and takes them back when an address space dies.
// Callers hold the kernel lock; the pool has no lock of its own.
type asidPool struct {
	limit ASID
	next  ASID
	free  []ASID
}

func newASIDPool(limit ASID) *asidPool {
	// ASID 0 is reserved for the kernel's own mappings.
	return &asidPool{limit: limit, next: 1}
}

// alloc returns a fresh or recycled ASID. Exhaustion is recoverable.
func (p *asidPool) alloc() (ASID, error) {
	if n := len(p.free); n > 0 {
		a := p.free[n-1]
		p.free = p.free[:n-1]
		return a, nil
	}
	if p.next >= p.limit {
		return 0, ErrOutOfMemory
	}
	a := p.next
	p.next++
	return a, nil
}

// release returns an ASID to the pool for reuse.
func (p *asidPool) release(a ASID) {
	p.free = append(p.free, a)
}

// AddressSpace is a kernel object tying an ASID to the root of a page
// table hierarchy.
type AddressSpace struct {
	asid ASID
	pool *asidPool
	root *PageTable
}

// newAddressSpace creates an address space around the given root table,
// drawing an ASID from pool. Kernel.DeriveAddressSpace is the public path.
func newAddressSpace(pool *asidPool, root *PageTable) (*AddressSpace, error) {
	asid, err := pool.alloc()
	if err != nil {
		return nil, err
	}
	return &AddressSpace{asid: asid, pool: pool, root: root}, nil
}

// Tag identifies the object kind.
func (as *AddressSpace) Tag() Tag { return TagAddressSpace }

// ASID returns the address space identifier.
func (as *AddressSpace) ASID() ASID { return as.asid }

// Root returns the root page table.
func (as *AddressSpace) Root() *PageTable { return as.root }

// teardown returns the ASID to the pool so a future address space can use
// it; stale TLB entries tagged with it must be flushed before reuse, which
// the (out-of-scope) mapping layer does on next activation.
func (as *AddressSpace) teardown() error {
	as.pool.release(as.asid)
	as.root = nil
	return nil
}
