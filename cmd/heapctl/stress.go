package main

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/joshuapare/heapkit/cmd/heapctl/logger"
	"github.com/joshuapare/heapkit/heap"
	"github.com/joshuapare/heapkit/heap/alloc"
)

var (
	stressOps     int
	stressSeed    int64
	stressMaxSize uint32
	stressVerify  bool
)

func init() {
	cmd := newStressCmd()
	addHeapFlags(cmd)
	cmd.Flags().IntVar(&stressOps, "ops", 10000, "Number of operations")
	cmd.Flags().Int64Var(&stressSeed, "seed", 1, "Random seed")
	cmd.Flags().Uint32Var(&stressMaxSize, "max-size", 4096, "Largest allocation request in bytes")
	cmd.Flags().BoolVar(&stressVerify, "verify", true, "Check heap invariants after every operation")
	rootCmd.AddCommand(cmd)
}

func newStressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Run a random allocation workload",
		Long: `The stress command runs a seeded random mix of allocations, releases,
and invalid releases (interior pointers, double releases), checking the heap
invariants after every operation.

Example:
  heapctl stress --ops 100000 --seed 7
  heapctl stress --strategy bump --max-pages 64 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStress()
		},
	}
	return cmd
}

type stressResult struct {
	Strategy  string      `json:"strategy"`
	Seed      int64       `json:"seed"`
	Ops       int         `json:"ops"`
	Allocs    int         `json:"allocs"`
	Frees     int         `json:"frees"`
	Invalid   int         `json:"invalid_frees"`
	Exhausted int         `json:"exhausted"`
	Live      int         `json:"live"`
	Elapsed   string      `json:"elapsed"`
	Usage     alloc.Usage `json:"usage"`
	Stats     alloc.Stats `json:"stats"`
}

func runStress() error {
	if stressOps <= 0 {
		return fmt.Errorf("--ops must be positive, got %d", stressOps)
	}
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.Close()

	bar := progressbar.NewOptions(stressOps,
		progressbar.OptionSetWriter(progressWriter()),
		progressbar.OptionSetDescription("stress"),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)

	res := stressResult{Strategy: s.strategy, Seed: stressSeed, Ops: stressOps}
	rng := rand.New(rand.NewSource(stressSeed))
	live := make(map[uint32]uint32)
	var ptrs []heap.Ptr
	start := time.Now()

	for i := range stressOps {
		switch op := rng.Intn(10); {
		case op < 5 || len(ptrs) == 0:
			size := uint32(rng.Int63n(int64(stressMaxSize) + 1))
			p, err := s.alloc.Alloc(size)
			if errors.Is(err, alloc.ErrGrowFail) || errors.Is(err, alloc.ErrTooLarge) {
				res.Exhausted++
				break
			}
			if err != nil {
				return fmt.Errorf("op %d: alloc %d: %w", i, size, err)
			}
			res.Allocs++
			live[p] = size
			ptrs = append(ptrs, p)

		case op < 9:
			k := rng.Intn(len(ptrs))
			p := ptrs[k]
			if err := s.alloc.Free(p); err != nil {
				return fmt.Errorf("op %d: free 0x%X: %w", i, p, err)
			}
			res.Frees++
			delete(live, p)
			ptrs[k] = ptrs[len(ptrs)-1]
			ptrs = ptrs[:len(ptrs)-1]

		default:
			// Interior pointer: never the payload of any block.
			p := ptrs[rng.Intn(len(ptrs))] + heap.Ptr(1+rng.Intn(alloc.HeaderSize-1))
			if err := s.alloc.Free(p); err != nil {
				return fmt.Errorf("op %d: free 0x%X: %w", i, p, err)
			}
			res.Invalid++
		}

		if stressVerify {
			if err := s.check(live); err != nil {
				logger.Error("invariant violated", "op", i, "seed", stressSeed, "error", err)
				return fmt.Errorf("op %d (seed %d): %w", i, stressSeed, err)
			}
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	res.Elapsed = time.Since(start).Round(time.Millisecond).String()
	res.Live = len(live)
	res.Stats = s.alloc.GetStats()
	if res.Usage, err = s.alloc.Usage(); err != nil {
		return err
	}
	logger.Info("stress finished", "ops", stressOps, "seed", stressSeed, "pages", res.Usage.Pages)

	if jsonOut {
		return printJSON(res)
	}

	printInfo("Strategy:        %s (seed %d)\n", res.Strategy, res.Seed)
	printInfo("Operations:      %d in %s\n", res.Ops, res.Elapsed)
	printInfo("Allocations:     %d (%d exhausted)\n", res.Allocs, res.Exhausted)
	printInfo("Releases:        %d (%d invalid)\n", res.Frees, res.Invalid)
	printInfo("Live at end:     %d\n", res.Live)
	printInfo("Pages:           %d\n", res.Usage.Pages)
	printInfo("Fragmentation:   %.1f%%\n", res.Usage.Fragmentation()*100)
	if stressVerify {
		printInfo("Invariants held after every operation\n")
	}
	if verbose && !quiet {
		return s.alloc.PrintStats(os.Stdout)
	}
	return nil
}
