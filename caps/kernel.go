package caps

import (
	"fmt"

	"github.com/halcyonos/capkit/ksync"
	"github.com/halcyonos/capkit/mem"
)

const (
	// RootCSpaceBits sizes the boot CSpace at 2^6 = 64 slots.
	RootCSpaceBits = 6

	// Well-known root CSpace slots populated during initialization. Slot 0
	// stays empty so that a zero CAddr never resolves by accident.
	SlotRootCSpace     = 1
	SlotRootMemory     = 2
	SlotRootAddrSpace  = 3
	SlotBootTask       = 4
	SlotIrqControl     = 5
	firstDynamicSlot   = 8
	maxAddressSpaceIDs = 512

	// Storage charges for object kinds without an intrinsic size.
	endpointBytes     = 64
	notificationBytes = 32
	cslotBytes        = 16
)

// Kernel is the capability subsystem's explicit context: the one
// derivation tree, the boot allocator and the single lock serializing all
// structural mutation. It is created once at initialization and threaded
// through every syscall-handling call path instead of living in a global.
//
// Every mutating method takes the calling hart's ID and runs under one
// exclusive critical section for the whole logical operation; a syscall
// that mutates the tree runs to completion, non-preemptibly, once the
// section is entered. Read paths take the same lock: capability trees are
// small and operations short, so the coarse section buys consistency at
// negligible cost.
type Kernel struct {
	lock ksync.SpinLock

	phys    *mem.PhysMemory
	tree    *Tree
	asids   *asidPool
	nextTID uint32

	rootCSpaceNode NodeID
	rootMemNode    NodeID
	rootASNode     NodeID
	bootTaskNode   NodeID
	irqCtlNode     NodeID

	rootCSpace *CSpace
	rootMem    *Memory
}

// NewKernel maps a physical range of the given size and creates the
// boot-time root capabilities: the initial memory region, initial address
// space, boot task, root CSpace and the interrupt controller, all
// installed into the root CSpace at well-known slots.
func NewKernel(physBytes uint64) (*Kernel, error) {
	phys, err := mem.MapPhys(physBytes)
	if err != nil {
		return nil, err
	}

	k := &Kernel{
		phys:    phys,
		tree:    NewTree(),
		asids:   newASIDPool(maxAddressSpaceIDs),
		nextTID: 1,
	}
	if err := k.createRoots(); err != nil {
		_ = phys.Close()
		return nil, fmt.Errorf("caps: creating boot capabilities: %w", err)
	}
	return k, nil
}

// createRoots builds the boot forest. Runs before any other hart can see
// the kernel, so no locking.
func (k *Kernel) createRoots() error {
	const bootHart ksync.HartID = 0

	k.rootMem = NewMemory(k.phys.Region())
	k.rootMemNode = k.tree.InsertRoot(k.rootMem, RightsAll)

	k.rootCSpace = NewCSpace(k.tree, RootCSpaceBits)
	k.rootCSpaceNode = k.tree.InsertRoot(k.rootCSpace, RightsAll)

	ptBacking, err := k.rootMem.Alloc(bootHart, mem.PageSize, mem.PageSize)
	if err != nil {
		return err
	}
	rootAS, err := newAddressSpace(k.asids, NewPageTable(ptBacking, 2))
	if err != nil {
		return err
	}
	k.rootASNode = k.tree.InsertRoot(rootAS, RightsAll)

	frameBacking, err := k.rootMem.Alloc(bootHart, TrapFrameBytes, 8)
	if err != nil {
		return err
	}
	boot := NewTask(k.allocTID(), frameBacking)
	boot.AssignCSpace(k.rootCSpace)
	boot.AssignAddressSpace(rootAS)
	k.bootTaskNode = k.tree.InsertRoot(boot, RightsAll)

	k.irqCtlNode = k.tree.InsertRoot(NewIrqControl(), RightsAll)

	bootSlots := []struct {
		slot uint64
		node NodeID
	}{
		{SlotRootCSpace, k.rootCSpaceNode},
		{SlotRootMemory, k.rootMemNode},
		{SlotRootAddrSpace, k.rootASNode},
		{SlotBootTask, k.bootTaskNode},
		{SlotIrqControl, k.irqCtlNode},
	}
	for _, bs := range bootSlots {
		if err := k.rootCSpace.Install(bs.slot, bs.node); err != nil {
			return err
		}
	}
	k.mustCheck()
	return nil
}

// Close releases the physical mapping. All capability state is volatile;
// nothing persists across kernel startups.
func (k *Kernel) Close() error {
	return k.phys.Close()
}

// Boot-time root accessors.

// RootCSpace returns the node of the boot CSpace.
func (k *Kernel) RootCSpace() NodeID { return k.rootCSpaceNode }

// RootMemory returns the node of the initial memory region.
func (k *Kernel) RootMemory() NodeID { return k.rootMemNode }

// RootAddressSpace returns the node of the initial address space.
func (k *Kernel) RootAddressSpace() NodeID { return k.rootASNode }

// BootTask returns the node of the boot task.
func (k *Kernel) BootTask() NodeID { return k.bootTaskNode }

// IrqControl returns the node of the interrupt controller authority.
func (k *Kernel) IrqControl() NodeID { return k.irqCtlNode }

// Lookup resolves a capability address through the root CSpace, recursing
// into nested CSpaces while unconsumed address bits remain.
func (k *Kernel) Lookup(hart ksync.HartID, addr CAddr) (NodeID, error) {
	k.lock.Lock(hart)
	defer k.lock.Unlock(hart)
	return k.rootCSpace.Resolve(addr)
}

// Rights returns the rights of node n.
func (k *Kernel) Rights(hart ksync.HartID, n NodeID) (Rights, error) {
	k.lock.Lock(hart)
	defer k.lock.Unlock(hart)
	return k.tree.Rights(n)
}

// Tag returns the object kind of node n.
func (k *Kernel) Tag(hart ksync.HartID, n NodeID) (Tag, error) {
	k.lock.Lock(hart)
	defer k.lock.Unlock(hart)
	obj, err := k.tree.Object(n)
	if err != nil {
		return TagUninit, err
	}
	return obj.Tag(), nil
}

// Derive inserts obj as a new child capability of parent. Liveness of the
// parent is checked under the same held lock as the insertion, so a parent
// destroyed concurrently between lookup and mutation is always detected.
func (k *Kernel) Derive(hart ksync.HartID, parent NodeID, obj Object, rights Rights) (NodeID, error) {
	k.lock.Lock(hart)
	defer k.lock.Unlock(hart)
	id, err := k.tree.Derive(parent, obj, rights)
	if err != nil {
		return NoNode, err
	}
	k.mustCheck()
	return id, nil
}

// Copy creates a sibling of source sharing its kernel object, with rights
// narrowed to the requested set.
func (k *Kernel) Copy(hart ksync.HartID, source NodeID, rights Rights) (NodeID, error) {
	k.lock.Lock(hart)
	defer k.lock.Unlock(hart)
	id, err := k.tree.Copy(source, rights)
	if err != nil {
		return NoNode, err
	}
	k.mustCheck()
	return id, nil
}

// Revoke destroys every descendant of n, reclaiming all capabilities that
// were delegated outward while n itself stays valid.
func (k *Kernel) Revoke(hart ksync.HartID, n NodeID) error {
	k.lock.Lock(hart)
	defer k.lock.Unlock(hart)
	err := k.tree.Revoke(n)
	k.mustCheck()
	return err
}

// Destroy removes n and its entire subtree.
func (k *Kernel) Destroy(hart ksync.HartID, n NodeID) error {
	k.lock.Lock(hart)
	defer k.lock.Unlock(hart)
	err := k.tree.Destroy(n)
	k.mustCheck()
	return err
}

// Install places node n into the given slot of the CSpace referenced by
// cspace. Returns ErrInvalidCap if cspace does not reference a CSpace.
func (k *Kernel) Install(hart ksync.HartID, cspace NodeID, slot uint64, n NodeID) error {
	k.lock.Lock(hart)
	defer k.lock.Unlock(hart)
	cs, err := k.cspaceAt(cspace)
	if err != nil {
		return err
	}
	if err := cs.Install(slot, n); err != nil {
		return err
	}
	k.mustCheck()
	return nil
}

// Clear empties the given slot of the CSpace referenced by cspace.
func (k *Kernel) Clear(hart ksync.HartID, cspace NodeID, slot uint64) error {
	k.lock.Lock(hart)
	defer k.lock.Unlock(hart)
	cs, err := k.cspaceAt(cspace)
	if err != nil {
		return err
	}
	if err := cs.Clear(slot); err != nil {
		return err
	}
	k.mustCheck()
	return nil
}

// checkDerivable verifies under the held lock that parent is live and can
// grant rights. Typed derive helpers call it before charging any backing
// resource, so a rejected request leaves allocators and ID pools
// untouched.
func (k *Kernel) checkDerivable(parent NodeID, rights Rights) error {
	have, err := k.tree.Rights(parent)
	if err != nil {
		return err
	}
	if !have.Contains(rights) {
		return ErrInsufficientRights
	}
	return nil
}

// DeriveMemory carves size bytes out of the memory capability at parent
// and derives a child Memory capability owning the carved range.
func (k *Kernel) DeriveMemory(hart ksync.HartID, parent NodeID, size uint64, rights Rights) (NodeID, error) {
	k.lock.Lock(hart)
	defer k.lock.Unlock(hart)
	pm, err := k.memoryAt(parent)
	if err != nil {
		return NoNode, err
	}
	if err := k.checkDerivable(parent, rights); err != nil {
		return NoNode, err
	}
	region, err := pm.Alloc(hart, size, mem.PageSize)
	if err != nil {
		return NoNode, err
	}
	return k.deriveLocked(parent, NewMemory(region), rights)
}

// DerivePageTable allocates one page out of the memory capability at
// parent and derives a PageTable capability of the given level over it.
func (k *Kernel) DerivePageTable(hart ksync.HartID, parent NodeID, level int, rights Rights) (NodeID, error) {
	k.lock.Lock(hart)
	defer k.lock.Unlock(hart)
	pm, err := k.memoryAt(parent)
	if err != nil {
		return NoNode, err
	}
	if err := k.checkDerivable(parent, rights); err != nil {
		return NoNode, err
	}
	backing, err := pm.Alloc(hart, mem.PageSize, mem.PageSize)
	if err != nil {
		return NoNode, err
	}
	return k.deriveLocked(parent, NewPageTable(backing, level), rights)
}

// DeriveAddressSpace allocates a root page table out of the memory
// capability at parent and derives an AddressSpace capability with a fresh
// ASID.
func (k *Kernel) DeriveAddressSpace(hart ksync.HartID, parent NodeID, rights Rights) (NodeID, error) {
	k.lock.Lock(hart)
	defer k.lock.Unlock(hart)
	pm, err := k.memoryAt(parent)
	if err != nil {
		return NoNode, err
	}
	if err := k.checkDerivable(parent, rights); err != nil {
		return NoNode, err
	}
	backing, err := pm.Alloc(hart, mem.PageSize, mem.PageSize)
	if err != nil {
		return NoNode, err
	}
	as, err := newAddressSpace(k.asids, NewPageTable(backing, 2))
	if err != nil {
		return NoNode, err
	}
	id, err := k.deriveLocked(parent, as, rights)
	if err != nil {
		k.asids.release(as.asid)
		return NoNode, err
	}
	return id, nil
}

// DeriveCSpace allocates slot storage out of the memory capability at
// parent and derives a CSpace capability with 2^bits slots.
func (k *Kernel) DeriveCSpace(hart ksync.HartID, parent NodeID, bits uint, rights Rights) (NodeID, error) {
	k.lock.Lock(hart)
	defer k.lock.Unlock(hart)
	pm, err := k.memoryAt(parent)
	if err != nil {
		return NoNode, err
	}
	if err := k.checkDerivable(parent, rights); err != nil {
		return NoNode, err
	}
	backing, err := pm.Alloc(hart, uint64(cslotBytes)<<bits, 16)
	if err != nil {
		return NoNode, err
	}
	cs := NewCSpace(k.tree, bits)
	cs.backing = backing
	return k.deriveLocked(parent, cs, rights)
}

// DeriveEndpoint derives an IPC endpoint capability backed by the memory
// capability at parent.
func (k *Kernel) DeriveEndpoint(hart ksync.HartID, parent NodeID, rights Rights) (NodeID, error) {
	k.lock.Lock(hart)
	defer k.lock.Unlock(hart)
	pm, err := k.memoryAt(parent)
	if err != nil {
		return NoNode, err
	}
	if err := k.checkDerivable(parent, rights); err != nil {
		return NoNode, err
	}
	if _, err := pm.Alloc(hart, endpointBytes, 8); err != nil {
		return NoNode, err
	}
	return k.deriveLocked(parent, NewEndpoint(), rights)
}

// DeriveNotification derives a notification capability backed by the
// memory capability at parent.
func (k *Kernel) DeriveNotification(hart ksync.HartID, parent NodeID, rights Rights) (NodeID, error) {
	k.lock.Lock(hart)
	defer k.lock.Unlock(hart)
	pm, err := k.memoryAt(parent)
	if err != nil {
		return NoNode, err
	}
	if err := k.checkDerivable(parent, rights); err != nil {
		return NoNode, err
	}
	if _, err := pm.Alloc(hart, notificationBytes, 8); err != nil {
		return NoNode, err
	}
	return k.deriveLocked(parent, NewNotification(), rights)
}

// DeriveDeviceMemory derives a capability over an MMIO window from the
// memory capability at parent. The window lies outside RAM, so nothing is
// charged against the allocator.
func (k *Kernel) DeriveDeviceMemory(hart ksync.HartID, parent NodeID, base mem.PAddr, size uint64, rights Rights) (NodeID, error) {
	k.lock.Lock(hart)
	defer k.lock.Unlock(hart)
	if _, err := k.memoryAt(parent); err != nil {
		return NoNode, err
	}
	if err := k.checkDerivable(parent, rights); err != nil {
		return NoNode, err
	}
	return k.deriveLocked(parent, NewDeviceMemory(base, size), rights)
}

// DeriveIrq claims an interrupt line on the IrqControl capability at
// parent and derives an Irq capability over it. The claim is rolled back
// if the derivation itself fails.
func (k *Kernel) DeriveIrq(hart ksync.HartID, parent NodeID, line uint32, rights Rights) (NodeID, error) {
	k.lock.Lock(hart)
	defer k.lock.Unlock(hart)
	obj, err := k.tree.Object(parent)
	if err != nil {
		return NoNode, err
	}
	ic, ok := obj.(*IrqControl)
	if !ok {
		return NoNode, ErrInvalidCap
	}
	if err := k.checkDerivable(parent, rights); err != nil {
		return NoNode, err
	}
	if err := ic.Claim(line); err != nil {
		return NoNode, err
	}
	id, err := k.deriveLocked(parent, &Irq{control: ic, line: line}, rights)
	if err != nil {
		ic.release(line)
		return NoNode, err
	}
	return id, nil
}

// CreateTask derives a Task capability whose frame storage is charged
// against the memory capability at parent. CSpace and AddressSpace are
// assigned afterwards via TaskAssignCSpace/TaskAssignAddressSpace.
func (k *Kernel) CreateTask(hart ksync.HartID, parent NodeID, rights Rights) (NodeID, error) {
	k.lock.Lock(hart)
	defer k.lock.Unlock(hart)
	pm, err := k.memoryAt(parent)
	if err != nil {
		return NoNode, err
	}
	if err := k.checkDerivable(parent, rights); err != nil {
		return NoNode, err
	}
	backing, err := pm.Alloc(hart, TrapFrameBytes, 8)
	if err != nil {
		return NoNode, err
	}
	return k.deriveLocked(parent, NewTask(k.allocTID(), backing), rights)
}

// TaskAssignCSpace points the task at taskNode at the CSpace referenced by
// cspaceNode.
func (k *Kernel) TaskAssignCSpace(hart ksync.HartID, taskNode, cspaceNode NodeID) error {
	k.lock.Lock(hart)
	defer k.lock.Unlock(hart)
	task, err := k.taskAt(taskNode)
	if err != nil {
		return err
	}
	cs, err := k.cspaceAt(cspaceNode)
	if err != nil {
		return err
	}
	task.AssignCSpace(cs)
	return nil
}

// TaskAssignAddressSpace points the task at taskNode at the address space
// referenced by asNode.
func (k *Kernel) TaskAssignAddressSpace(hart ksync.HartID, taskNode, asNode NodeID) error {
	k.lock.Lock(hart)
	defer k.lock.Unlock(hart)
	task, err := k.taskAt(taskNode)
	if err != nil {
		return err
	}
	obj, err := k.tree.Object(asNode)
	if err != nil {
		return err
	}
	as, ok := obj.(*AddressSpace)
	if !ok {
		return ErrInvalidCap
	}
	task.AssignAddressSpace(as)
	return nil
}

// Check runs the full structural validation and returns the error instead
// of halting. Used by tests and the inspection CLI.
func (k *Kernel) Check(hart ksync.HartID) error {
	k.lock.Lock(hart)
	defer k.lock.Unlock(hart)
	return k.tree.Validate()
}

// deriveLocked performs the insert plus post-mutation check. Caller holds
// the lock.
func (k *Kernel) deriveLocked(parent NodeID, obj Object, rights Rights) (NodeID, error) {
	id, err := k.tree.Derive(parent, obj, rights)
	if err != nil {
		return NoNode, err
	}
	k.mustCheck()
	return id, nil
}

// mustCheck halts the kernel on a structural invariant violation. Any
// further mutation of an inconsistent forest could double-free a shared
// resource, so there is no recovery path.
func (k *Kernel) mustCheck() {
	if err := k.tree.Validate(); err != nil {
		panic("caps: derivation tree invariant violated: " + err.Error())
	}
}

func (k *Kernel) allocTID() uint32 {
	tid := k.nextTID
	k.nextTID++
	return tid
}

func (k *Kernel) memoryAt(n NodeID) (*Memory, error) {
	obj, err := k.tree.Object(n)
	if err != nil {
		return nil, err
	}
	m, ok := obj.(*Memory)
	if !ok {
		return nil, ErrInvalidCap
	}
	return m, nil
}

func (k *Kernel) cspaceAt(n NodeID) (*CSpace, error) {
	obj, err := k.tree.Object(n)
	if err != nil {
		return nil, err
	}
	cs, ok := obj.(*CSpace)
	if !ok {
		return nil, ErrInvalidCap
	}
	return cs, nil
}

func (k *Kernel) taskAt(n NodeID) (*Task, error) {
	obj, err := k.tree.Object(n)
	if err != nil {
		return nil, err
	}
	t, ok := obj.(*Task)
	if !ok {
		return nil, ErrInvalidCap
	}
	return t, nil
}
