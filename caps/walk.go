package caps

// initialStackCapacity pre-sizes traversal stacks. Capability trees are
// shallow, so 64 avoids reallocation in practice.
const initialStackCapacity = 64

// postOrder returns the IDs of root's subtree with every node after all of
// its descendants. The traversal is iterative with an explicit stack: a
// pre-order walk (parents first) whose output is reversed.
func (t *Tree) postOrder(root NodeID) []NodeID {
	order := make([]NodeID, 0, initialStackCapacity)
	stack := make([]NodeID, 0, initialStackCapacity)
	stack = append(stack, root)

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		order = append(order, n)
		for c := t.nodes[n].firstChild; c != NoNode; c = t.nodes[c].nextSib {
			stack = append(stack, c)
		}
	}

	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// WalkSubtree visits root and its descendants in pre-order, calling fn with
// each node's ID and depth relative to root. Returning false from fn stops
// the walk.
func (t *Tree) WalkSubtree(root NodeID, fn func(id NodeID, depth int) bool) {
	if !t.IsLive(root) {
		return
	}

	type frame struct {
		id    NodeID
		depth int
	}
	stack := make([]frame, 0, initialStackCapacity)
	stack = append(stack, frame{root, 0})

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(f.id, f.depth) {
			return
		}
		// Push children in reverse so they pop in the order Children
		// returns them.
		children := t.Children(f.id)
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, frame{children[i], f.depth + 1})
		}
	}
}
