package caps

import "errors"

// Tree is the derivation forest: the authoritative record of which
// capability was derived from which. It owns rights narrowing on insertion
// and the cascading revoke/destroy semantics.
//
// The tree performs no locking of its own. All structural mutation happens
// under the kernel's single exclusive critical section; see Kernel.
type Tree struct {
	nodes []node
}

// NewTree creates an empty derivation forest.
func NewTree() *Tree {
	return &Tree{}
}

// InsertRoot creates a parentless node holding obj with the given rights.
// Roots are created only during kernel initialization.
func (t *Tree) InsertRoot(obj Object, rights Rights) NodeID {
	return t.newNode(Capability{
		rights: rights,
		ref:    &objectRef{obj: obj, refs: 1},
	}, NoNode)
}

// Derive creates a new node holding obj as a child of parent. The new
// object's backing storage has already been allocated by the caller; the
// tree only records lineage.
//
// Returns ErrParentDestroyed if parent is no longer live and
// ErrInsufficientRights if rights is not a subset of parent's rights.
func (t *Tree) Derive(parent NodeID, obj Object, rights Rights) (NodeID, error) {
	p := t.node(parent)
	if p == nil || !p.live {
		return NoNode, ErrParentDestroyed
	}
	if !p.cap.rights.Contains(rights) {
		return NoNode, ErrInsufficientRights
	}
	return t.newNode(Capability{
		rights: rights,
		ref:    &objectRef{obj: obj, refs: 1},
	}, parent), nil
}

// Copy creates a sibling of source referencing the same kernel object. The
// object's lifetime becomes the longest-lived of all its referencing
// capabilities.
//
// Returns ErrParentDestroyed if source is no longer live and
// ErrInsufficientRights if rights is not a subset of source's rights.
func (t *Tree) Copy(source NodeID, rights Rights) (NodeID, error) {
	s := t.node(source)
	if s == nil || !s.live {
		return NoNode, ErrParentDestroyed
	}
	if !s.cap.rights.Contains(rights) {
		return NoNode, ErrInsufficientRights
	}
	s.cap.ref.refs++
	return t.newNode(Capability{
		rights: rights,
		ref:    s.cap.ref,
	}, s.parent), nil
}

// Revoke destroys every descendant of n while keeping n itself valid with
// unchanged rights and object reference. Revoking a node with no children,
// or a node that is already destroyed, is a no-op.
func (t *Tree) Revoke(n NodeID) error {
	nd := t.node(n)
	if nd == nil || !nd.live {
		return nil
	}

	var errs []error
	for child := nd.firstChild; child != NoNode; {
		next := t.nodes[child].nextSib
		if err := t.destroySubtree(child); err != nil {
			errs = append(errs, err)
		}
		child = next
	}
	return errors.Join(errs...)
}

// Destroy removes n and its entire subtree from the tree, running each
// object's teardown hook in strict descendants-before-ancestors order.
// Destroying an already-destroyed node is a no-op.
func (t *Tree) Destroy(n NodeID) error {
	nd := t.node(n)
	if nd == nil || !nd.live {
		return nil
	}
	return t.destroySubtree(n)
}

// IsLive reports whether n names a node that is still part of the tree.
func (t *Tree) IsLive(n NodeID) bool {
	nd := t.node(n)
	return nd != nil && nd.live
}

// Rights returns the rights of node n.
func (t *Tree) Rights(n NodeID) (Rights, error) {
	nd := t.node(n)
	if nd == nil || !nd.live {
		return RightsNone, ErrParentDestroyed
	}
	return nd.cap.rights, nil
}

// Object returns the kernel object referenced by node n.
func (t *Tree) Object(n NodeID) (Object, error) {
	nd := t.node(n)
	if nd == nil || !nd.live {
		return nil, ErrParentDestroyed
	}
	return nd.cap.Object(), nil
}

// Parent returns the parent of n, or NoNode for roots.
func (t *Tree) Parent(n NodeID) (NodeID, error) {
	nd := t.node(n)
	if nd == nil || !nd.live {
		return NoNode, ErrParentDestroyed
	}
	return nd.parent, nil
}

// Children returns the IDs of n's direct children, newest first.
func (t *Tree) Children(n NodeID) []NodeID {
	nd := t.node(n)
	if nd == nil || !nd.live {
		return nil
	}
	var out []NodeID
	for c := nd.firstChild; c != NoNode; c = t.nodes[c].nextSib {
		out = append(out, c)
	}
	return out
}

// Roots returns the IDs of all live parentless nodes.
func (t *Tree) Roots() []NodeID {
	var out []NodeID
	for id := range t.nodes {
		if t.nodes[id].live && t.nodes[id].parent == NoNode {
			out = append(out, NodeID(id))
		}
	}
	return out
}

// NumLive returns the number of live nodes in the forest.
func (t *Tree) NumLive() int {
	n := 0
	for id := range t.nodes {
		if t.nodes[id].live {
			n++
		}
	}
	return n
}

// node returns the arena entry for id, or nil if id was never allocated.
func (t *Tree) node(id NodeID) *node {
	if id < 0 || int(id) >= len(t.nodes) {
		return nil
	}
	return &t.nodes[id]
}

// newNode appends a node to the arena and links it under parent (NoNode
// for roots). Child insertion prepends, which is O(1) with sibling links.
func (t *Tree) newNode(cap Capability, parent NodeID) NodeID {
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, node{
		parent:     parent,
		firstChild: NoNode,
		prevSib:    NoNode,
		nextSib:    NoNode,
		live:       true,
		cap:        cap,
	})
	if parent != NoNode {
		p := &t.nodes[parent]
		nd := &t.nodes[id]
		nd.nextSib = p.firstChild
		if p.firstChild != NoNode {
			t.nodes[p.firstChild].prevSib = id
		}
		p.firstChild = id
	}
	return id
}

// unlink removes n from its parent's child list without touching n's own
// subtree.
func (t *Tree) unlink(n NodeID) {
	nd := &t.nodes[n]
	if nd.prevSib != NoNode {
		t.nodes[nd.prevSib].nextSib = nd.nextSib
	} else if nd.parent != NoNode {
		t.nodes[nd.parent].firstChild = nd.nextSib
	}
	if nd.nextSib != NoNode {
		t.nodes[nd.nextSib].prevSib = nd.prevSib
	}
	nd.parent, nd.prevSib, nd.nextSib = NoNode, NoNode, NoNode
}

// destroySubtree tears down root and all of its descendants in post-order.
// A failing teardown hook is recorded but never stops the remaining hooks;
// the structure is always fully removed.
func (t *Tree) destroySubtree(root NodeID) error {
	order := t.postOrder(root)
	t.unlink(root)

	var errs []error
	for _, id := range order {
		nd := &t.nodes[id]

		// Slot occupancy must track node existence 1:1: clear every CSpace
		// slot referencing the node before it dies.
		for _, sr := range nd.slots {
			sr.space.slots[sr.index].node = NoNode
		}
		nd.slots = nil

		if err := t.releaseCap(&nd.cap); err != nil {
			errs = append(errs, err)
		}

		nd.live = false
		nd.parent, nd.firstChild, nd.prevSib, nd.nextSib = NoNode, NoNode, NoNode, NoNode
	}
	return errors.Join(errs...)
}

// releaseCap drops one reference to the capability's object and runs the
// teardown hook when the last reference dies.
func (t *Tree) releaseCap(c *Capability) error {
	ref := c.ref
	c.ref = nil
	if ref == nil {
		return nil
	}
	ref.refs--
	if ref.refs > 0 {
		return nil
	}
	return ref.obj.teardown()
}

// addSlotRef records that a CSpace slot now references n.
func (t *Tree) addSlotRef(n NodeID, sr slotRef) {
	t.nodes[n].slots = append(t.nodes[n].slots, sr)
}

// removeSlotRef drops the record of a CSpace slot referencing n.
func (t *Tree) removeSlotRef(n NodeID, sr slotRef) {
	nd := t.node(n)
	if nd == nil || !nd.live {
		return
	}
	for i, have := range nd.slots {
		if have.space == sr.space && have.index == sr.index {
			nd.slots = append(nd.slots[:i], nd.slots[i+1:]...)
			return
		}
	}
}
