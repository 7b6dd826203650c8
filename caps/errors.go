package caps

import (
	"errors"

	"github.com/halcyonos/capkit/mem"
)

// Errors returned to the calling subject through the syscall return path.
// All of them indicate a rejected request, never kernel corruption; a
// detected structural invariant violation panics instead (the kernel-halt
// analog), because continuing could double-free a shared resource.
var (
	// ErrInvalidCAddr indicates a capability address that does not resolve
	// to a slot.
	ErrInvalidCAddr = errors.New("caps: invalid capability address")

	// ErrSlotEmpty indicates a lookup of an empty capability slot.
	ErrSlotEmpty = errors.New("caps: capability slot is empty")

	// ErrSlotOccupied indicates an install into a slot that already holds a
	// capability, or a claim of an already-claimed resource.
	ErrSlotOccupied = errors.New("caps: capability slot is occupied")

	// ErrInsufficientRights indicates an attempt to derive or copy with
	// rights that are not a subset of the source capability's rights.
	ErrInsufficientRights = errors.New("caps: insufficient rights")

	// ErrParentDestroyed indicates an operation on a capability that has
	// been destroyed, typically concurrently between lookup and mutation.
	ErrParentDestroyed = errors.New("caps: capability has been destroyed")

	// ErrInvalidCap indicates a capability of the wrong kind for the
	// requested operation (for example deriving a page table from an
	// endpoint).
	ErrInvalidCap = errors.New("caps: capability has the wrong kind")

	// ErrAlreadyMapped indicates a page table entry that is already valid.
	ErrAlreadyMapped = errors.New("caps: entry is already mapped")

	// ErrBadIrqLine indicates an interrupt line outside the controller's
	// range.
	ErrBadIrqLine = errors.New("caps: irq line out of range")
)

// ErrOutOfMemory is the allocator's exhaustion error, re-exported so that
// syscall handlers can match the full taxonomy in one package. Always
// recoverable.
var ErrOutOfMemory = mem.ErrOutOfMemory
