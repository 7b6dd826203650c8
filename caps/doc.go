// Package caps implements the capability system at the core of the
// kernel's resource management: typed, rights-annotated references to
// kernel objects, the derivation forest recording which capability was
// derived from which, and the CSpace tables through which subjects address
// their capabilities.
//
// The central type is Kernel, the explicit context holding the one
// derivation Tree, the boot memory allocator and the single spin lock
// serializing every structural operation. All syscall-visible operations
// (derive, copy, revoke, destroy, install, lookup) go through Kernel
// methods; Tree and CSpace are exported for inspection and testing but
// perform no locking of their own.
//
// Authority only ever narrows: a derived or copied capability carries a
// subset of its source's rights. Revoking a capability destroys every
// capability transitively derived from it, which makes delegation safe to
// undo; destroying one removes its whole subtree, running each object's
// teardown hook exactly once when the last capability referencing it
// dies, descendants before ancestors.
package caps
