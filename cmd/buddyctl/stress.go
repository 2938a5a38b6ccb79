package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshuapare/buddykit/buddy"
	"github.com/joshuapare/buddykit/cmd/buddyctl/logger"
	"github.com/joshuapare/buddykit/internal/workload"
)

var (
	stressFlags   arenaFlags
	stressCfg     = workload.DefaultConfig()
	stressTimeout time.Duration
)

func init() {
	cmd := newStressCmd()
	stressFlags.register(cmd)
	cmd.Flags().IntVar(&stressCfg.Producers, "producers", stressCfg.Producers, "Producer goroutines")
	cmd.Flags().IntVar(&stressCfg.Consumers, "consumers", stressCfg.Consumers, "Consumer goroutines")
	cmd.Flags().IntVarP(&stressCfg.Requests, "requests", "n", stressCfg.Requests, "Total allocations")
	cmd.Flags().IntVar(&stressCfg.BufferSize, "buffer", stressCfg.BufferSize, "Bounded buffer capacity")
	cmd.Flags().IntVar(&stressCfg.MinSize, "min", stressCfg.MinSize, "Smallest request in bytes")
	cmd.Flags().IntVar(&stressCfg.MaxSize, "max", stressCfg.MaxSize, "Largest request in bytes")
	cmd.Flags().Int64Var(&stressCfg.Seed, "seed", stressCfg.Seed, "Random seed")
	cmd.Flags().DurationVar(&stressTimeout, "timeout", 0, "Stop after this long (0 = no limit)")
	rootCmd.AddCommand(cmd)
}

func newStressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Run concurrent producers and consumers against one arena",
		Long: `The stress command shares one locked allocator between producer and
consumer goroutines joined by a bounded buffer. Producers allocate and stamp
blocks, consumers verify the stamps and free them. Afterwards the allocator
invariants are checked and the arena must be empty again.

Example:
  buddyctl stress -l 1048576 --producers 8 --consumers 2 -n 100000
  buddyctl stress --max 4096 --timeout 10s --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStress(cmd.Context())
		},
	}
	return cmd
}

// StressReport is the outcome of a stress run.
type StressReport struct {
	workload.Result
	Config workload.Config `json:"config"`
	Stats  buddy.Stats     `json:"stats"`
}

func runStress(ctx context.Context) error {
	cfg, err := loadArenaConfig(&stressFlags)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	if stressTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, stressTimeout)
		defer cancel()
	}

	s, capacity, err := buddy.NewSync(cfg.BasicBlockSize, cfg.Length, allocatorOptions(cfg)...)
	if err != nil {
		return fmt.Errorf("failed to initialize arena: %w", err)
	}
	defer s.Release()
	printVerbose("Arena: %s bytes, %d producers, %d consumers\n",
		formatNumber(int64(capacity)), stressCfg.Producers, stressCfg.Consumers)

	wcfg := stressCfg
	wcfg.Logger = logger.L
	res, runErr := workload.Run(ctx, s, wcfg)
	if runErr != nil && ctx.Err() == nil {
		return fmt.Errorf("stress run failed: %w", runErr)
	}
	if err := s.Check(); err != nil {
		return fmt.Errorf("allocator check failed: %w", err)
	}
	report := StressReport{Result: res, Config: wcfg, Stats: s.Stats()}

	if jsonOut {
		if err := printJSON(report); err != nil {
			return err
		}
	} else {
		printInfo("Allocations:  %s\n", formatNumber(res.Allocations))
		printInfo("Frees:        %s\n", formatNumber(res.Frees))
		printInfo("OOM retries:  %s\n", formatNumber(res.OOMRetries))
		printInfo("Corruptions:  %s\n", formatNumber(res.Corruptions))
		printInfo("Duration:     %s\n", res.Duration.Round(time.Millisecond))
		if res.Duration > 0 {
			printInfo("Throughput:   %s ops/s\n",
				formatNumber(int64(float64(res.Allocations+res.Frees)/res.Duration.Seconds())))
		}
		printInfo("Splits:       %s\n", formatNumber(int64(report.Stats.Splits)))
		printInfo("Merges:       %s\n", formatNumber(int64(report.Stats.Merges)))
	}

	switch {
	case res.Corruptions > 0:
		return fmt.Errorf("%d blocks were overwritten while in flight", res.Corruptions)
	case report.Stats.BytesInUse != 0:
		return fmt.Errorf("%d bytes still allocated after the run", report.Stats.BytesInUse)
	case runErr != nil:
		printInfo("Stopped early: %v\n", runErr)
	}
	return nil
}
