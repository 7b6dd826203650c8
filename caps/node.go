package caps

// NodeID addresses a derivation node inside the tree's arena. IDs are
// stable for the life of the kernel and are never reused after destroy, so
// a stale handle is always detectably dead instead of aliasing a new node.
type NodeID int32

// NoNode is the "no link" sentinel used for absent parents, children and
// siblings.
const NoNode NodeID = -1

// Capability is a typed, rights-annotated reference to exactly one kernel
// object.
type Capability struct {
	rights Rights
	ref    *objectRef
}

// Rights returns the capability's permission set.
func (c Capability) Rights() Rights {
	return c.rights
}

// Object returns the referenced kernel object, or nil for a destroyed
// capability.
func (c Capability) Object() Object {
	if c.ref == nil {
		return nil
	}
	return c.ref.obj
}

// Tag returns the kind of the referenced object.
func (c Capability) Tag() Tag {
	if c.ref == nil {
		return TagUninit
	}
	return c.ref.obj.Tag()
}

// slotRef records one CSpace slot holding a reference to a node, so that
// destroying the node can clear every referencing slot.
type slotRef struct {
	space *CSpace
	index int
}

// node is one entry of the derivation forest arena. The sibling-linked
// representation gives O(1) insertion and removal at the cost of link
// following for traversal.
type node struct {
	parent     NodeID
	firstChild NodeID
	prevSib    NodeID
	nextSib    NodeID

	live  bool
	cap   Capability
	slots []slotRef
}
