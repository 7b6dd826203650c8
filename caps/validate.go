package caps

import "fmt"

// bitmap tracks visited node IDs during validation with one bit per arena
// entry.
type bitmap struct {
	bits []uint64
}

func newBitmap(size int) *bitmap {
	return &bitmap{bits: make([]uint64, (size+63)/64)}
}

func (b *bitmap) set(id NodeID) {
	b.bits[id/64] |= 1 << (uint(id) % 64)
}

func (b *bitmap) isSet(id NodeID) bool {
	return b.bits[id/64]&(1<<(uint(id)%64)) != 0
}

// Validate checks the structural invariants of the forest:
//
//  1. the parent/child/sibling graph is acyclic and every node has at most
//     one parent (link symmetry holds in both directions),
//  2. every node's rights are a subset of its parent's,
//  3. no destroyed node is referenced by a CSpace slot, and every occupied
//     slot is mirrored by a back-reference on the node,
//  4. destroyed nodes carry no links and no slot references.
//
// The kernel treats a Validate failure after a structural operation as
// fatal; tests and the inspection CLI call it directly to get the error.
func (t *Tree) Validate() error {
	visited := newBitmap(len(t.nodes))

	for id := range t.nodes {
		if !t.nodes[id].live || t.nodes[id].parent != NoNode {
			continue
		}
		if err := t.validateSubtree(NodeID(id), visited); err != nil {
			return err
		}
	}

	for id := range t.nodes {
		nd := &t.nodes[id]
		if nd.live {
			if !visited.isSet(NodeID(id)) {
				return fmt.Errorf("live node %d is not reachable from any root", id)
			}
			for _, sr := range nd.slots {
				if got := sr.space.slots[sr.index].node; got != NodeID(id) {
					return fmt.Errorf("node %d back-references slot %d which holds %d", id, sr.index, got)
				}
			}
			if cs, ok := nd.cap.Object().(*CSpace); ok {
				if err := t.validateCSpace(cs); err != nil {
					return err
				}
			}
		} else {
			if nd.firstChild != NoNode || nd.nextSib != NoNode || nd.prevSib != NoNode || nd.parent != NoNode {
				return fmt.Errorf("destroyed node %d still carries tree links", id)
			}
			if len(nd.slots) != 0 {
				return fmt.Errorf("destroyed node %d is still referenced by %d slots", id, len(nd.slots))
			}
		}
	}
	return nil
}

// validateSubtree walks one root's subtree iteratively, checking link
// symmetry, rights narrowing and acyclicity.
func (t *Tree) validateSubtree(root NodeID, visited *bitmap) error {
	stack := make([]NodeID, 0, initialStackCapacity)
	stack = append(stack, root)

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited.isSet(n) {
			return fmt.Errorf("node %d reached twice: cycle or duplicate parent", n)
		}
		visited.set(n)

		nd := &t.nodes[n]
		prev := NoNode
		for c := nd.firstChild; c != NoNode; c = t.nodes[c].nextSib {
			child := t.node(c)
			if child == nil {
				return fmt.Errorf("node %d links to out-of-range child %d", n, c)
			}
			if !child.live {
				return fmt.Errorf("node %d links to destroyed child %d", n, c)
			}
			if child.parent != n {
				return fmt.Errorf("child %d of node %d claims parent %d", c, n, child.parent)
			}
			if child.prevSib != prev {
				return fmt.Errorf("sibling links of node %d are asymmetric at child %d", n, c)
			}
			if !nd.cap.rights.Contains(child.cap.rights) {
				return fmt.Errorf("child %d rights %v exceed parent %d rights %v",
					c, child.cap.rights, n, nd.cap.rights)
			}
			prev = c
			stack = append(stack, c)
		}
	}
	return nil
}

// validateCSpace checks that every occupied slot references a live node
// that carries the matching back-reference.
func (t *Tree) validateCSpace(cs *CSpace) error {
	for i, slot := range cs.slots {
		if slot.node == NoNode {
			continue
		}
		nd := t.node(slot.node)
		if nd == nil || !nd.live {
			return fmt.Errorf("cspace slot %d references dead node %d", i, slot.node)
		}
		found := false
		for _, sr := range nd.slots {
			if sr.space == cs && sr.index == i {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("cspace slot %d references node %d without a back-reference", i, slot.node)
		}
	}
	return nil
}
