package main

import (
	"fmt"
	"math/rand"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/halcyonos/capkit/caps"
)

var (
	fuzzSeed  int64
	fuzzSteps int
)

func init() {
	cmd := newFuzzCmd()
	cmd.Flags().Int64Var(&fuzzSeed, "seed", 1, "Random seed")
	cmd.Flags().IntVar(&fuzzSteps, "steps", 10000, "Number of operations to run")
	rootCmd.AddCommand(cmd)
}

func newFuzzCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fuzz",
		Short: "Run randomized operations against the derivation tree",
		Long: `The fuzz command boots a kernel and drives it with a seeded random mix
of derive, copy, revoke and destroy operations, validating all structural
invariants after every step. A violation halts the process.

Example:
  capctl fuzz --steps 100000
  capctl fuzz --seed 42 -v`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFuzz()
		},
	}
}

func runFuzz() error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	const hart = 0

	k, err := caps.NewKernel(physSize)
	if err != nil {
		return fmt.Errorf("booting kernel: %w", err)
	}
	defer k.Close()

	logger.Info("fuzzing", zap.Int64("seed", fuzzSeed), zap.Int("steps", fuzzSteps))
	rng := rand.New(rand.NewSource(fuzzSeed))

	memories := []caps.NodeID{k.RootMemory()}
	var others []caps.NodeID
	derives, failures := 0, 0

	for step := 0; step < fuzzSteps; step++ {
		switch rng.Intn(8) {
		case 0, 1:
			parent := memories[rng.Intn(len(memories))]
			id, err := k.DeriveMemory(hart, parent, 64<<10, caps.RightsAll)
			if err != nil {
				failures++
				continue
			}
			memories = append(memories, id)
			derives++
		case 2, 3:
			parent := memories[rng.Intn(len(memories))]
			id, err := k.DeriveEndpoint(hart, parent, caps.RightsAll)
			if err != nil {
				failures++
				continue
			}
			others = append(others, id)
			derives++
		case 4:
			parent := memories[rng.Intn(len(memories))]
			id, err := k.DeriveNotification(hart, parent, caps.RightRead)
			if err != nil {
				failures++
				continue
			}
			others = append(others, id)
			derives++
		case 5:
			if len(others) == 0 {
				continue
			}
			source := others[rng.Intn(len(others))]
			if id, err := k.Copy(hart, source, caps.RightRead); err == nil {
				others = append(others, id)
			}
		case 6:
			if len(others) == 0 {
				continue
			}
			if err := k.Destroy(hart, others[rng.Intn(len(others))]); err != nil {
				return fmt.Errorf("step %d: destroy: %w", step, err)
			}
		default:
			if len(memories) < 2 {
				continue
			}
			n := memories[rng.Intn(len(memories)-1)+1]
			if err := k.Revoke(hart, n); err != nil {
				return fmt.Errorf("step %d: revoke: %w", step, err)
			}
		}

		if verbose && step%1000 == 0 {
			logger.Debug("progress",
				zap.Int("step", step),
				zap.Int("live", k.Stats(hart).LiveNodes))
		}
	}

	stats := k.Stats(hart)
	logger.Info("fuzz run complete",
		zap.Int("derives", derives),
		zap.Int("rejected", failures),
		zap.Int("live_nodes", stats.LiveNodes),
		zap.Uint64("phys_used", stats.PhysUsed))

	return k.Check(hart)
}
