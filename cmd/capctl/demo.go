package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/halcyonos/capkit/caps"
)

func init() {
	rootCmd.AddCommand(newDemoCmd())
}

func newDemoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Boot a kernel, build a sample capability forest and print it",
		Long: `The demo command boots a kernel, derives a small hierarchy the way an
init task would (a memory grant, a child task with its own CSpace and
address space, IPC objects and a claimed interrupt line), revokes the
grant and prints the forest before and after.

Example:
  capctl demo
  capctl demo --phys 16777216 -v`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo()
		},
	}
}

func runDemo() error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	const hart = 0

	logger.Info("booting kernel", zap.Uint64("phys_bytes", physSize))
	k, err := caps.NewKernel(physSize)
	if err != nil {
		return fmt.Errorf("booting kernel: %w", err)
	}
	defer k.Close()

	// A memory grant the way init would hand one to a child.
	grant, err := k.DeriveMemory(hart, k.RootMemory(), 4<<20, caps.RightsAll)
	if err != nil {
		return err
	}

	task, err := k.CreateTask(hart, grant, caps.RightsAll)
	if err != nil {
		return err
	}
	cspace, err := k.DeriveCSpace(hart, grant, 6, caps.RightsAll)
	if err != nil {
		return err
	}
	aspace, err := k.DeriveAddressSpace(hart, grant, caps.RightsAll)
	if err != nil {
		return err
	}
	if err := k.TaskAssignCSpace(hart, task, cspace); err != nil {
		return err
	}
	if err := k.TaskAssignAddressSpace(hart, task, aspace); err != nil {
		return err
	}

	ep, err := k.DeriveEndpoint(hart, grant, caps.RightRead|caps.RightWrite)
	if err != nil {
		return err
	}
	if _, err := k.Copy(hart, ep, caps.RightRead); err != nil {
		return err
	}
	if _, err := k.DeriveNotification(hart, grant, caps.RightsAll); err != nil {
		return err
	}
	if _, err := k.DeriveIrq(hart, k.IrqControl(), 9, caps.RightRead); err != nil {
		return err
	}

	fmt.Println("capability forest after setup:")
	caps.RenderTree(os.Stdout, k.Snapshot(hart))

	logger.Info("revoking the memory grant",
		zap.Int32("node", int32(grant)),
		zap.Int("live_before", k.Stats(hart).LiveNodes))
	if err := k.Revoke(hart, grant); err != nil {
		return err
	}
	logger.Info("revoked", zap.Int("live_after", k.Stats(hart).LiveNodes))

	fmt.Println("\ncapability forest after revoke:")
	caps.RenderTree(os.Stdout, k.Snapshot(hart))

	return k.Check(hart)
}
