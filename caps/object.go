package caps

// Object is a kernel object referenced by capabilities: a memory range, a
// page table, an IPC endpoint and so on. The variant set is closed; the
// unexported teardown method keeps outside packages from adding kinds the
// destroy path does not know about.
//
// Copies of a capability share one Object. The teardown hook runs exactly
// once, when the last capability referencing the object is destroyed, and
// only after every descendant of that capability is gone, so hooks may
// assume no child still holds a live reference into the resource.
type Object interface {
	// Tag identifies the object's kind.
	Tag() Tag

	// teardown releases the object's backing resource. It must tolerate
	// being reached while sibling hooks have failed; returning an error
	// never stops the remaining teardowns.
	teardown() error
}

// objectRef counts the capabilities referencing one shared Object.
type objectRef struct {
	obj  Object
	refs int32
}
