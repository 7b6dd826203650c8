package caps

// Rights is the fixed-width permission bit set carried by every capability.
//
// Rights only ever narrow: a derived or copied capability's rights are a
// subset of its source's rights at the time of derivation, checked with a
// bitwise subset test.
type Rights uint32

const (
	// RightRead permits reading through the capability.
	RightRead Rights = 1 << iota
	// RightWrite permits mutation through the capability.
	RightWrite
	// RightExec permits mapping backing memory executable.
	RightExec
	// RightMap permits installing the object into page tables.
	RightMap
	// RightGrant permits handing the capability to another subject.
	RightGrant
)

// RightsAll is the full permission set held by boot-time roots.
const RightsAll = RightRead | RightWrite | RightExec | RightMap | RightGrant

// RightsNone is the empty permission set.
const RightsNone Rights = 0

// Contains reports whether every right in o is also in r.
func (r Rights) Contains(o Rights) bool {
	return r&o == o
}

// Intersect returns the rights present in both sets.
func (r Rights) Intersect(o Rights) Rights {
	return r & o
}

func (r Rights) String() string {
	buf := []byte("-----")
	if r&RightRead != 0 {
		buf[0] = 'r'
	}
	if r&RightWrite != 0 {
		buf[1] = 'w'
	}
	if r&RightExec != 0 {
		buf[2] = 'x'
	}
	if r&RightMap != 0 {
		buf[3] = 'm'
	}
	if r&RightGrant != 0 {
		buf[4] = 'g'
	}
	return string(buf)
}
