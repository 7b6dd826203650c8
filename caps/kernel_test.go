package caps

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/halcyonos/capkit/ksync"
)

const testHart ksync.HartID = 0

func newTestKernel(t *testing.T) *Kernel {
	t.Helper()
	k, err := NewKernel(16 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, k.Close()) })
	return k
}

func TestBootRoots(t *testing.T) {
	k := newTestKernel(t)

	bootSlots := []struct {
		slot uint64
		want NodeID
	}{
		{SlotRootCSpace, k.RootCSpace()},
		{SlotRootMemory, k.RootMemory()},
		{SlotRootAddrSpace, k.RootAddressSpace()},
		{SlotBootTask, k.BootTask()},
		{SlotIrqControl, k.IrqControl()},
	}
	for _, bs := range bootSlots {
		got, err := k.Lookup(testHart, CAddr(bs.slot))
		require.NoError(t, err)
		require.Equal(t, bs.want, got)

		r, err := k.Rights(testHart, got)
		require.NoError(t, err)
		require.Equal(t, RightsAll, r)
	}

	// Slot 0 stays empty.
	_, err := k.Lookup(testHart, 0)
	require.ErrorIs(t, err, ErrSlotEmpty)

	require.NoError(t, k.Check(testHart))
}

func TestDeriveMemoryAndRevoke(t *testing.T) {
	k := newTestKernel(t)

	memNode, err := k.DeriveMemory(testHart, k.RootMemory(), 1<<20, RightsAll)
	require.NoError(t, err)

	pt1, err := k.DerivePageTable(testHart, memNode, 0, RightRead|RightWrite)
	require.NoError(t, err)
	pt2, err := k.DerivePageTable(testHart, memNode, 0, RightRead|RightWrite)
	require.NoError(t, err)

	require.NoError(t, k.Revoke(testHart, memNode))

	_, err = k.Rights(testHart, pt1)
	require.ErrorIs(t, err, ErrParentDestroyed)
	_, err = k.Rights(testHart, pt2)
	require.ErrorIs(t, err, ErrParentDestroyed)

	// The revoked memory capability itself stays usable.
	_, err = k.DerivePageTable(testHart, memNode, 0, RightRead)
	require.NoError(t, err)
	require.NoError(t, k.Check(testHart))
}

func TestDeriveRejectsWrongKind(t *testing.T) {
	k := newTestKernel(t)

	ep, err := k.DeriveEndpoint(testHart, k.RootMemory(), RightsAll)
	require.NoError(t, err)

	_, err = k.DeriveMemory(testHart, ep, 1<<20, RightsAll)
	require.ErrorIs(t, err, ErrInvalidCap)
	_, err = k.DeriveIrq(testHart, ep, 3, RightsAll)
	require.ErrorIs(t, err, ErrInvalidCap)
}

func TestRejectedDeriveChargesNothing(t *testing.T) {
	k := newTestKernel(t)

	parent, err := k.DeriveMemory(testHart, k.RootMemory(), 1<<20, RightRead)
	require.NoError(t, err)

	before := k.Stats(testHart)

	// More rejections than the ASID pool could absorb: if a rejected
	// derive leaked its ASID, valid derivations would start failing below.
	for i := 0; i < 600; i++ {
		_, err := k.DeriveAddressSpace(testHart, parent, RightsAll)
		require.ErrorIs(t, err, ErrInsufficientRights)
	}
	_, err = k.DerivePageTable(testHart, parent, 0, RightWrite)
	require.ErrorIs(t, err, ErrInsufficientRights)
	_, err = k.DeriveMemory(testHart, parent, 1<<16, RightsAll)
	require.ErrorIs(t, err, ErrInsufficientRights)

	// A rejected irq derive must not leave the line claimed.
	narrowed, err := k.Copy(testHart, k.IrqControl(), RightRead)
	require.NoError(t, err)
	_, err = k.DeriveIrq(testHart, narrowed, 11, RightsAll)
	require.ErrorIs(t, err, ErrInsufficientRights)
	_, err = k.DeriveIrq(testHart, k.IrqControl(), 11, RightsAll)
	require.NoError(t, err)

	after := k.Stats(testHart)
	require.Equal(t, before.ASIDsInUse, after.ASIDsInUse)

	// The parent's allocator was never charged for a rejected request.
	pm, err := k.tree.Object(parent)
	require.NoError(t, err)
	require.Zero(t, pm.(*Memory).Stats(testHart).Allocations)

	// Permitted derives still succeed afterwards.
	_, err = k.DeriveAddressSpace(testHart, parent, RightRead)
	require.NoError(t, err)
	require.NoError(t, k.Check(testHart))
}

func TestMemoryExhaustionIsRecoverable(t *testing.T) {
	k := newTestKernel(t)

	small, err := k.DeriveMemory(testHart, k.RootMemory(), 1<<12, RightsAll)
	require.NoError(t, err)

	// One page fits, a second does not.
	_, err = k.DerivePageTable(testHart, small, 0, RightsAll)
	require.NoError(t, err)
	_, err = k.DerivePageTable(testHart, small, 0, RightsAll)
	require.ErrorIs(t, err, ErrOutOfMemory)

	// The failure leaves the kernel fully usable.
	_, err = k.DeriveEndpoint(testHart, k.RootMemory(), RightsAll)
	require.NoError(t, err)
	require.NoError(t, k.Check(testHart))
}

func TestInstallAndClearThroughKernel(t *testing.T) {
	k := newTestKernel(t)

	csNode, err := k.DeriveCSpace(testHart, k.RootMemory(), 4, RightsAll)
	require.NoError(t, err)
	ep, err := k.DeriveEndpoint(testHart, k.RootMemory(), RightRead)
	require.NoError(t, err)

	require.NoError(t, k.Install(testHart, csNode, 9, ep))
	require.ErrorIs(t, k.Install(testHart, csNode, 9, ep), ErrSlotOccupied)

	// Nested resolution through the root CSpace once the child CSpace is
	// reachable from it.
	require.NoError(t, k.Install(testHart, k.RootCSpace(), firstDynamicSlot, csNode))
	got, err := k.Lookup(testHart, CAddr(9<<RootCSpaceBits|firstDynamicSlot))
	require.NoError(t, err)
	require.Equal(t, ep, got)

	require.NoError(t, k.Clear(testHart, csNode, 9))
	_, err = k.Lookup(testHart, CAddr(9<<RootCSpaceBits|firstDynamicSlot))
	require.ErrorIs(t, err, ErrSlotEmpty)

	require.ErrorIs(t, k.Install(testHart, ep, 0, csNode), ErrInvalidCap)
	require.NoError(t, k.Check(testHart))
}

func TestAddressSpaceASIDRecycling(t *testing.T) {
	k := newTestKernel(t)

	asNode, err := k.DeriveAddressSpace(testHart, k.RootMemory(), RightsAll)
	require.NoError(t, err)

	obj, err := k.tree.Object(asNode)
	require.NoError(t, err)
	firstASID := obj.(*AddressSpace).ASID()

	require.NoError(t, k.Destroy(testHart, asNode))

	asNode, err = k.DeriveAddressSpace(testHart, k.RootMemory(), RightsAll)
	require.NoError(t, err)
	obj, err = k.tree.Object(asNode)
	require.NoError(t, err)
	require.Equal(t, firstASID, obj.(*AddressSpace).ASID())
}

func TestIrqClaimAndTrigger(t *testing.T) {
	k := newTestKernel(t)

	irqNode, err := k.DeriveIrq(testHart, k.IrqControl(), 5, RightsAll)
	require.NoError(t, err)

	_, err = k.DeriveIrq(testHart, k.IrqControl(), 5, RightsAll)
	require.ErrorIs(t, err, ErrSlotOccupied)
	_, err = k.DeriveIrq(testHart, k.IrqControl(), IrqLines, RightsAll)
	require.ErrorIs(t, err, ErrBadIrqLine)

	notifNode, err := k.DeriveNotification(testHart, k.RootMemory(), RightsAll)
	require.NoError(t, err)

	irqObj, err := k.tree.Object(irqNode)
	require.NoError(t, err)
	notifObj, err := k.tree.Object(notifNode)
	require.NoError(t, err)
	irq := irqObj.(*Irq)
	notif := notifObj.(*Notification)

	irq.Bind(notif)
	irq.Trigger()
	require.Equal(t, uint64(1<<5), notif.Poll())

	// Destroying the Irq frees the line for a new claim.
	require.NoError(t, k.Destroy(testHart, irqNode))
	_, err = k.DeriveIrq(testHart, k.IrqControl(), 5, RightsAll)
	require.NoError(t, err)
	require.NoError(t, k.Check(testHart))
}

func TestTaskLifecycle(t *testing.T) {
	k := newTestKernel(t)

	taskNode, err := k.CreateTask(testHart, k.RootMemory(), RightsAll)
	require.NoError(t, err)
	csNode, err := k.DeriveCSpace(testHart, k.RootMemory(), 4, RightsAll)
	require.NoError(t, err)
	asNode, err := k.DeriveAddressSpace(testHart, k.RootMemory(), RightsAll)
	require.NoError(t, err)

	require.NoError(t, k.TaskAssignCSpace(testHart, taskNode, csNode))
	require.NoError(t, k.TaskAssignAddressSpace(testHart, taskNode, asNode))
	require.ErrorIs(t, k.TaskAssignCSpace(testHart, taskNode, asNode), ErrInvalidCap)

	taskObj, err := k.tree.Object(taskNode)
	require.NoError(t, err)
	task := taskObj.(*Task)
	require.Equal(t, TaskReady, task.State())
	require.NotNil(t, task.CSpace())
	require.NotNil(t, task.AddressSpace())

	bootObj, err := k.tree.Object(k.BootTask())
	require.NoError(t, err)
	boot := bootObj.(*Task)
	task.AwaitExit(boot)
	require.Equal(t, TaskBlocked, boot.State())

	require.NoError(t, k.Destroy(testHart, taskNode))
	require.Equal(t, TaskReady, boot.State())
	require.Equal(t, StatusCancelled, boot.Frame().Reg(RegA0))
}

func TestEndpointDestroyCancelsWaiters(t *testing.T) {
	k := newTestKernel(t)

	epNode, err := k.DeriveEndpoint(testHart, k.RootMemory(), RightsAll)
	require.NoError(t, err)
	taskNode, err := k.CreateTask(testHart, k.RootMemory(), RightsAll)
	require.NoError(t, err)

	epObj, err := k.tree.Object(epNode)
	require.NoError(t, err)
	taskObj, err := k.tree.Object(taskNode)
	require.NoError(t, err)
	ep := epObj.(*Endpoint)
	task := taskObj.(*Task)

	ep.BlockSender(task)
	require.Equal(t, TaskBlocked, task.State())

	require.NoError(t, k.Destroy(testHart, epNode))
	require.Equal(t, TaskReady, task.State())
	require.Equal(t, StatusCancelled, task.Frame().Reg(RegA0))
}

func TestSnapshotAndRender(t *testing.T) {
	k := newTestKernel(t)

	memNode, err := k.DeriveMemory(testHart, k.RootMemory(), 1<<20, RightsAll)
	require.NoError(t, err)
	_, err = k.DerivePageTable(testHart, memNode, 0, RightRead)
	require.NoError(t, err)

	infos := k.Snapshot(testHart)
	require.Len(t, infos, k.Stats(testHart).LiveNodes)

	var sb strings.Builder
	RenderTree(&sb, infos)
	out := sb.String()
	require.Contains(t, out, "memory")
	require.Contains(t, out, "pagetable")
	require.Contains(t, out, "r----")
}

func TestStats(t *testing.T) {
	k := newTestKernel(t)

	s := k.Stats(testHart)
	require.Equal(t, 5, s.LiveNodes)
	require.Equal(t, uint64(16<<20), s.PhysTotal)
	require.NotZero(t, s.PhysUsed, "boot page table and frame are charged")
	require.Equal(t, 1, s.ASIDsInUse)

	_, err := k.DeriveMemory(testHart, k.RootMemory(), 1<<20, RightsAll)
	require.NoError(t, err)
	require.Equal(t, 6, k.Stats(testHart).LiveNodes)
}
