package caps

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCSpaceLookup(t *testing.T) {
	tr := NewTree()
	cs := NewCSpace(tr, 4)
	require.Equal(t, 16, cs.NumSlots())

	n := tr.InsertRoot(newProbe(nil), RightsAll)
	require.NoError(t, cs.Install(3, n))

	got, err := cs.Lookup(3)
	require.NoError(t, err)
	require.Equal(t, n, got)

	_, err = cs.Lookup(5)
	require.ErrorIs(t, err, ErrSlotEmpty)
	_, err = cs.Lookup(16)
	require.ErrorIs(t, err, ErrInvalidCAddr)
}

func TestCSpaceInstallErrors(t *testing.T) {
	tr := NewTree()
	cs := NewCSpace(tr, 2)
	n := tr.InsertRoot(newProbe(nil), RightsAll)

	require.NoError(t, cs.Install(0, n))
	require.ErrorIs(t, cs.Install(0, n), ErrSlotOccupied)
	require.ErrorIs(t, cs.Install(4, n), ErrInvalidCAddr)

	dead := tr.InsertRoot(newProbe(nil), RightsAll)
	require.NoError(t, tr.Destroy(dead))
	require.ErrorIs(t, cs.Install(1, dead), ErrParentDestroyed)
}

func TestCSpaceClear(t *testing.T) {
	tr := NewTree()
	cs := NewCSpace(tr, 2)
	n := tr.InsertRoot(newProbe(nil), RightsAll)

	require.NoError(t, cs.Install(1, n))
	require.NoError(t, cs.Clear(1))
	_, err := cs.Lookup(1)
	require.ErrorIs(t, err, ErrSlotEmpty)

	// Clearing a slot does not touch the node.
	require.True(t, tr.IsLive(n))
	require.NoError(t, cs.Clear(1), "clearing an empty slot")
	require.ErrorIs(t, cs.Clear(4), ErrInvalidCAddr)
	require.NoError(t, tr.Validate())
}

func TestDestroyClearsReferencingSlots(t *testing.T) {
	tr := NewTree()
	csA := NewCSpace(tr, 2)
	csB := NewCSpace(tr, 2)
	n := tr.InsertRoot(newProbe(nil), RightsAll)

	require.NoError(t, csA.Install(0, n))
	require.NoError(t, csB.Install(3, n))

	require.NoError(t, tr.Destroy(n))

	_, err := csA.Lookup(0)
	require.ErrorIs(t, err, ErrSlotEmpty)
	_, err = csB.Lookup(3)
	require.ErrorIs(t, err, ErrSlotEmpty)
	require.NoError(t, tr.Validate())
}

func TestNestedResolve(t *testing.T) {
	tr := NewTree()
	outer := NewCSpace(tr, 4)
	inner := NewCSpace(tr, 4)

	innerNode := tr.InsertRoot(inner, RightsAll)
	leaf := tr.InsertRoot(newProbe(nil), RightsAll)

	require.NoError(t, outer.Install(2, innerNode))
	require.NoError(t, inner.Install(7, leaf))

	// Low 4 bits address the outer slot, the next 4 the inner slot.
	addr := CAddr(7<<4 | 2)
	got, err := outer.Resolve(addr)
	require.NoError(t, err)
	require.Equal(t, leaf, got)

	// Unconsumed bits with a non-CSpace in the slot.
	require.NoError(t, outer.Install(3, leaf))
	_, err = outer.Resolve(CAddr(1<<4 | 3))
	require.ErrorIs(t, err, ErrInvalidCAddr)

	// No remaining bits resolves to the slot itself even if it holds a
	// CSpace.
	got, err = outer.Resolve(2)
	require.NoError(t, err)
	require.Equal(t, innerNode, got)
}

func TestResolveZeroBitCSpaceTerminates(t *testing.T) {
	tr := NewTree()
	cs := NewCSpace(tr, 0)
	require.Equal(t, 1, cs.NumSlots())

	// A single-slot CSpace holding itself: unconsumed address bits could
	// recurse here forever if a level were allowed to consume zero bits.
	n := tr.InsertRoot(cs, RightsAll)
	require.NoError(t, cs.Install(0, n))

	_, err := cs.Resolve(CAddr(1))
	require.ErrorIs(t, err, ErrInvalidCAddr)

	// A fully consumed address still resolves the slot itself.
	got, err := cs.Resolve(0)
	require.NoError(t, err)
	require.Equal(t, n, got)
}

func TestCSpaceTeardownDropsBackrefs(t *testing.T) {
	tr := NewTree()
	root := tr.InsertRoot(newProbe(nil), RightsAll)

	cs := NewCSpace(tr, 2)
	csNode, err := tr.Derive(root, cs, RightsAll)
	require.NoError(t, err)

	n, err := tr.Derive(root, newProbe(nil), RightsAll)
	require.NoError(t, err)
	require.NoError(t, cs.Install(1, n))

	// Destroying the CSpace clears its slots; the installed node survives.
	require.NoError(t, tr.Destroy(csNode))
	require.True(t, tr.IsLive(n))
	require.NoError(t, tr.Validate())

	// The node's backref list no longer mentions the dead CSpace, so a
	// later destroy of the node has nothing stale to write through.
	require.NoError(t, tr.Destroy(n))
	require.NoError(t, tr.Validate())
}
