package caps

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"github.com/halcyonos/capkit/ksync"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// TestConcurrentDerives runs one goroutine per hart, each deriving from
// its own memory capability. The kernel lock serializes the structural
// mutations; afterwards every hart's derivations must all be present and
// the forest consistent.
func TestConcurrentDerives(t *testing.T) {
	const (
		harts      = 8
		perHart    = 32
		regionSize = 256 << 10
	)
	k := newTestKernel(t)

	parents := make([]NodeID, harts)
	for h := range parents {
		id, err := k.DeriveMemory(testHart, k.RootMemory(), regionSize, RightsAll)
		require.NoError(t, err)
		parents[h] = id
	}

	var g errgroup.Group
	for h := 0; h < harts; h++ {
		hart := ksync.HartID(h)
		parent := parents[h]
		g.Go(func() error {
			for i := 0; i < perHart; i++ {
				if _, err := k.DeriveEndpoint(hart, parent, RightsAll); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for h := 0; h < harts; h++ {
		require.Len(t, k.tree.Children(parents[h]), perHart)
	}
	require.NoError(t, k.Check(testHart))
}

// TestConcurrentDeriveAndRevoke races derives against revokes of the same
// parent. Any interleaving is acceptable as long as every operation sees
// either a fully applied or not-yet-applied state, never a torn one.
func TestConcurrentDeriveAndRevoke(t *testing.T) {
	const rounds = 200
	k := newTestKernel(t)

	parent, err := k.DeriveMemory(testHart, k.RootMemory(), 4<<20, RightsAll)
	require.NoError(t, err)

	var g errgroup.Group
	g.Go(func() error {
		for i := 0; i < rounds; i++ {
			if _, err := k.DeriveNotification(1, parent, RightsAll); err != nil {
				return err
			}
		}
		return nil
	})
	g.Go(func() error {
		for i := 0; i < rounds; i++ {
			if err := k.Revoke(2, parent); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, g.Wait())

	require.True(t, k.tree.IsLive(parent))
	require.NoError(t, k.Check(testHart))
}
