package caps

import "fmt"

// CAddr is the opaque, fixed-width address of a capability slot within a
// CSpace.
//
// In the flat baseline a CAddr is a plain slot index. Across nested
// CSpaces it is consumed low-bits-first: each level takes as many bits as
// its slot count requires and recurses into the addressed CSpace with the
// remainder.
type CAddr uint64

// Raw returns the address as a plain integer.
func (a CAddr) Raw() uint64 {
	return uint64(a)
}

// TakeBits splits off the low nbits of the address and returns them
// together with the shifted remainder.
func (a CAddr) TakeBits(nbits uint) (uint64, CAddr) {
	mask := uint64(1)<<nbits - 1
	return uint64(a) & mask, a >> nbits
}

func (a CAddr) String() string {
	return fmt.Sprintf("caddr %#x", uint64(a))
}
