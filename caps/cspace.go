package caps

import (
	"errors"

	"github.com/halcyonos/capkit/mem"
)

// CSlot is one entry of a CSpace's address table: either empty or holding a
// reference to a derivation node.
type CSlot struct {
	node NodeID
}

// IsEmpty reports whether the slot holds no capability.
func (s CSlot) IsEmpty() bool {
	return s.node == NoNode
}

// CSpace is a per-subject table mapping capability addresses to slots. A
// CSpace is itself a kernel object, so a CSpace capability can be installed
// inside another CSpace, forming a tree of addressable capability tables.
type CSpace struct {
	tree  *Tree
	bits  uint
	slots []CSlot

	// backing is the storage charged against the memory capability the
	// CSpace was derived from. Zero for the boot-time root CSpace.
	backing mem.Region
}

// NewCSpace creates a CSpace with 2^bits slots addressed through tree.
func NewCSpace(tree *Tree, bits uint) *CSpace {
	slots := make([]CSlot, 1<<bits)
	for i := range slots {
		slots[i].node = NoNode
	}
	return &CSpace{tree: tree, bits: bits, slots: slots}
}

// Tag identifies the object kind.
func (cs *CSpace) Tag() Tag { return TagCSpace }

// NumSlots returns the table size.
func (cs *CSpace) NumSlots() int { return len(cs.slots) }

// SlotBits returns the number of address bits one level of this CSpace
// consumes during nested resolution.
func (cs *CSpace) SlotBits() uint { return cs.bits }

// Lookup resolves addr as a flat index into this table.
//
// Returns ErrInvalidCAddr for an address outside the table and ErrSlotEmpty
// for an empty slot.
func (cs *CSpace) Lookup(addr CAddr) (NodeID, error) {
	idx := addr.Raw()
	if idx >= uint64(len(cs.slots)) {
		return NoNode, ErrInvalidCAddr
	}
	if cs.slots[idx].IsEmpty() {
		return NoNode, ErrSlotEmpty
	}
	return cs.slots[idx].node, nil
}

// Resolve resolves addr across nested CSpaces: each level consumes SlotBits
// address bits, and while unconsumed bits remain the addressed slot must
// hold a CSpace capability to recurse into. A level that consumes no bits
// cannot make progress, so unconsumed bits at a single-slot table return
// ErrInvalidCAddr.
func (cs *CSpace) Resolve(addr CAddr) (NodeID, error) {
	cur := cs
	for {
		idx, rest := addr.TakeBits(cur.bits)
		if cur.slots[idx].IsEmpty() {
			return NoNode, ErrSlotEmpty
		}
		n := cur.slots[idx].node
		if rest.Raw() == 0 {
			return n, nil
		}
		if cur.bits == 0 {
			// A zero-bit table consumes no address bits, so recursing from
			// it could never terminate.
			return NoNode, ErrInvalidCAddr
		}

		obj, err := cur.tree.Object(n)
		if err != nil {
			return NoNode, err
		}
		next, ok := obj.(*CSpace)
		if !ok {
			// Unconsumed bits but nothing to recurse into.
			return NoNode, ErrInvalidCAddr
		}
		cur = next
		addr = rest
	}
}

// Install places a reference to node n into the given slot.
//
// Returns ErrInvalidCAddr for an out-of-range slot, ErrParentDestroyed if n
// is no longer live and ErrSlotOccupied if the slot already holds a
// capability.
func (cs *CSpace) Install(slot uint64, n NodeID) error {
	if slot >= uint64(len(cs.slots)) {
		return ErrInvalidCAddr
	}
	if !cs.tree.IsLive(n) {
		return ErrParentDestroyed
	}
	if !cs.slots[slot].IsEmpty() {
		return ErrSlotOccupied
	}
	cs.slots[slot].node = n
	cs.tree.addSlotRef(n, slotRef{space: cs, index: int(slot)})
	return nil
}

// Clear empties the given slot. Clearing an already-empty slot is a no-op.
func (cs *CSpace) Clear(slot uint64) error {
	if slot >= uint64(len(cs.slots)) {
		return ErrInvalidCAddr
	}
	if cs.slots[slot].IsEmpty() {
		return nil
	}
	cs.tree.removeSlotRef(cs.slots[slot].node, slotRef{space: cs, index: int(slot)})
	cs.slots[slot].node = NoNode
	return nil
}

// teardown empties every occupied slot and drops the node back-references.
// The nodes themselves are not destroyed; they may be referenced from other
// CSpaces.
func (cs *CSpace) teardown() error {
	var errs []error
	for i := range cs.slots {
		if err := cs.Clear(uint64(i)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
