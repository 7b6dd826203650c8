package mem

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/halcyonos/capkit/ksync"
)

func testRegion(t *testing.T, size uint64) Region {
	t.Helper()
	p, err := MapPhys(size)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, p.Close()) })
	return p.Region()
}

func TestBump_AllocCarvesDisjointRegions(t *testing.T) {
	ba := NewBump(testRegion(t, 1<<16))

	a, err := ba.Alloc(0, 128, 8)
	require.NoError(t, err)
	b, err := ba.Alloc(0, 128, 8)
	require.NoError(t, err)

	require.EqualValues(t, 128, a.Size)
	require.GreaterOrEqual(t, uint64(b.Addr), uint64(a.End()))

	// Regions are zeroed and writable.
	for _, r := range []Region{a, b} {
		for _, by := range r.Bytes() {
			require.Zero(t, by)
		}
	}
	a.Bytes()[0] = 0xAA
	require.Zero(t, b.Bytes()[0])
}

func TestBump_Alignment(t *testing.T) {
	ba := NewBump(testRegion(t, 1<<16))

	_, err := ba.Alloc(0, 3, 8)
	require.NoError(t, err)

	r, err := ba.Alloc(0, 64, 4096)
	require.NoError(t, err)
	require.Zero(t, uint64(r.Addr)%4096)

	_, err = ba.Alloc(0, 8, 3)
	require.ErrorIs(t, err, ErrBadAlign)
	_, err = ba.Alloc(0, 0, 8)
	require.ErrorIs(t, err, ErrZeroSize)
}

func TestBump_OutOfMemoryIsRecoverable(t *testing.T) {
	ba := NewBump(testRegion(t, 8192))

	_, err := ba.Alloc(0, 8192, 1)
	require.NoError(t, err)

	_, err = ba.Alloc(0, 1, 1)
	require.ErrorIs(t, err, ErrOutOfMemory)

	// The allocator stays usable after a failed request.
	require.ErrorIs(t, func() error {
		_, e := ba.Alloc(0, 4096, 1)
		return e
	}(), ErrOutOfMemory)
}

func TestBump_FreeNeverReclaims(t *testing.T) {
	ba := NewBump(testRegion(t, 8192))

	r, err := ba.Alloc(0, 8192, 1)
	require.NoError(t, err)
	require.NoError(t, ba.Free(0, r))

	// Monotonic by design: the freed space is not handed out again.
	_, err = ba.Alloc(0, 1, 1)
	require.ErrorIs(t, err, ErrOutOfMemory)

	st := ba.Stats(0)
	require.EqualValues(t, 8192, st.Freed)
	require.EqualValues(t, 8192, st.Allocated)
}

func TestBump_RejectsForeignRegion(t *testing.T) {
	ba := NewBump(testRegion(t, 4096))
	other := testRegion(t, 4096)

	foreign, err := NewBump(other).Alloc(0, 64, 8)
	require.NoError(t, err)
	require.ErrorIs(t, ba.Free(0, foreign), ErrBadRegion)
}

func TestBump_StatsDuringConcurrentAllocs(t *testing.T) {
	const allocs = 512

	ba := NewBump(testRegion(t, 1<<20))

	var g errgroup.Group
	g.Go(func() error {
		for i := 0; i < allocs; i++ {
			if _, err := ba.Alloc(0, 64, 8); err != nil {
				return err
			}
		}
		return nil
	})
	g.Go(func() error {
		// Snapshots race with the allocating hart; each one must still be
		// internally consistent.
		for i := 0; i < allocs; i++ {
			if st := ba.Stats(1); st.Allocated > st.Total {
				return fmt.Errorf("torn stats snapshot: %+v", st)
			}
		}
		return nil
	})
	require.NoError(t, g.Wait())

	require.EqualValues(t, allocs, ba.Stats(0).Allocations)
}

func TestBump_ConcurrentAllocsAreDisjoint(t *testing.T) {
	const (
		harts     = 8
		perHart   = 64
		allocSize = 256
	)

	ba := NewBump(testRegion(t, harts*perHart*allocSize*2))

	results := make([][]Region, harts)
	var g errgroup.Group
	for hart := 0; hart < harts; hart++ {
		hart := hart
		g.Go(func() error {
			id := ksync.HartID(hart)
			for i := 0; i < perHart; i++ {
				r, err := ba.Alloc(id, allocSize, 8)
				if err != nil {
					return err
				}
				results[hart] = append(results[hart], r)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	seen := make(map[PAddr]bool)
	for _, rs := range results {
		require.Len(t, rs, perHart)
		for _, r := range rs {
			require.False(t, seen[r.Addr], "region %v handed out twice", r)
			seen[r.Addr] = true
		}
	}
	require.Len(t, seen, harts*perHart)
}
