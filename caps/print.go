package caps

import (
	"fmt"
	"io"
	"strings"

	"github.com/halcyonos/capkit/ksync"
)

// NodeInfo is a point-in-time description of one derivation node, taken
// under the kernel lock so the fields are mutually consistent.
type NodeInfo struct {
	ID     NodeID
	Parent NodeID
	Depth  int
	Tag    Tag
	Rights Rights
	Refs   int
}

// Snapshot returns every live node in the forest in pre-order, roots
// first. The slice is a copy; it stays valid after the lock is released.
func (k *Kernel) Snapshot(hart ksync.HartID) []NodeInfo {
	k.lock.Lock(hart)
	defer k.lock.Unlock(hart)

	var out []NodeInfo
	for _, root := range k.tree.Roots() {
		k.tree.WalkSubtree(root, func(id NodeID, depth int) bool {
			n := &k.tree.nodes[id]
			out = append(out, NodeInfo{
				ID:     id,
				Parent: n.parent,
				Depth:  depth,
				Tag:    n.cap.ref.obj.Tag(),
				Rights: n.cap.rights,
				Refs:   int(n.cap.ref.refs),
			})
			return true
		})
	}
	return out
}

// KernelStats describes the kernel's resource usage for inspection
// tooling.
type KernelStats struct {
	LiveNodes  int
	PhysTotal  uint64
	PhysUsed   uint64
	ASIDsInUse int
}

// Stats returns current resource counters.
func (k *Kernel) Stats(hart ksync.HartID) KernelStats {
	k.lock.Lock(hart)
	defer k.lock.Unlock(hart)
	ms := k.rootMem.Stats(hart)
	return KernelStats{
		LiveNodes:  k.tree.NumLive(),
		PhysTotal:  ms.Total,
		PhysUsed:   ms.Allocated - ms.Freed,
		ASIDsInUse: int(k.asids.next-1) - len(k.asids.free),
	}
}

// RenderTree writes an indented listing of the derivation forest to w,
// one node per line with its kind, rights and object reference count.
func RenderTree(w io.Writer, infos []NodeInfo) {
	for _, in := range infos {
		indent := strings.Repeat("  ", in.Depth)
		fmt.Fprintf(w, "%s[%d] %s %s refs=%d\n", indent, in.ID, in.Tag, in.Rights, in.Refs)
	}
}
