package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/heapkit/cmd/heapctl/logger"
	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/internal/trace"
	"github.com/joshuapare/heapkit/internal/writer"
)

var (
	runVerify bool
	runDump   string
)

func init() {
	cmd := newRunCmd()
	addHeapFlags(cmd)
	cmd.Flags().BoolVar(&runVerify, "verify", false, "Check heap invariants after every operation")
	cmd.Flags().StringVar(&runDump, "dump", "", "Write the final address space to this file")
	rootCmd.AddCommand(cmd)
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <script>",
		Short: "Replay an allocation script",
		Long: `The run command replays an allocation script and prints each step,
the final block chain, and a usage summary.

Script lines:
  alloc NAME SIZE     allocate SIZE bytes and bind the pointer to NAME
  free NAME[+-OFF]    release NAME's pointer, optionally offset
  free @ADDR          release a raw address
  grow PAGES          grow the address space up front

Example:
  heapctl run workload.trace
  heapctl run workload.trace --verify --strategy bump
  heapctl run workload.trace --json
  heapctl run workload.trace --dump heap.img`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(args)
		},
	}
	return cmd
}

type stepResult struct {
	Index  int    `json:"index"`
	Line   int    `json:"line"`
	Op     string `json:"op"`
	Ptr    uint32 `json:"ptr"`
	Pages  uint32 `json:"pages"`
	Error  string `json:"error,omitempty"`
	Action string `json:"action"`
}

type runResult struct {
	Script   string        `json:"script"`
	Strategy string        `json:"strategy"`
	Steps    []stepResult  `json:"steps"`
	Blocks   []alloc.Block `json:"blocks"`
	Usage    alloc.Usage   `json:"usage"`
	Stats    alloc.Stats   `json:"stats"`
	Verified bool          `json:"verified"`
}

// replay parses the script at path and runs it in a new session. Each step
// is verified when verifyEach is set.
func replay(path string, verifyEach bool) (*session, *runResult, error) {
	ops, err := trace.ParseFile(path)
	if err != nil {
		return nil, nil, err
	}
	s, err := newSession()
	if err != nil {
		return nil, nil, err
	}

	res := &runResult{Script: path, Strategy: s.strategy, Verified: verifyEach}
	before := s.alloc.GetStats()
	r := trace.NewRunner(s.alloc)
	err = r.Run(context.Background(), ops, func(st trace.Step) error {
		after := s.alloc.GetStats()
		sr := stepResult{
			Index:  st.Index,
			Line:   st.Op.Line,
			Op:     st.Op.String(),
			Ptr:    st.Ptr,
			Pages:  st.Pages,
			Action: describe(st, before, after),
		}
		before = after
		if st.Err != nil {
			sr.Error = st.Err.Error()
			logger.Warn("operation failed", "line", st.Op.Line, "op", sr.Op, "error", st.Err)
		}
		res.Steps = append(res.Steps, sr)
		if verifyEach {
			if err := s.check(r.Live()); err != nil {
				return fmt.Errorf("line %d (%s): %w", st.Op.Line, sr.Op, err)
			}
		}
		// Keep the last operation's writes for display.
		if st.Index < len(ops)-1 {
			s.dirty.Reset()
		}
		return nil
	})
	if err != nil {
		_ = s.Close()
		return nil, nil, err
	}

	if res.Blocks, err = s.alloc.Blocks(); err != nil {
		_ = s.Close()
		return nil, nil, err
	}
	if res.Usage, err = s.alloc.Usage(); err != nil {
		_ = s.Close()
		return nil, nil, err
	}
	res.Stats = s.alloc.GetStats()
	return s, res, nil
}

// describe summarizes what the allocator did for one step by comparing
// counters before and after it.
func describe(st trace.Step, before, after alloc.Stats) string {
	if st.Err != nil {
		return "failed"
	}
	switch st.Op.Kind {
	case trace.OpFree:
		switch {
		case after.FreeIgnored > before.FreeIgnored:
			return "ignored"
		case after.FreeRepeat > before.FreeRepeat:
			return "already free"
		case after.MergeCount > before.MergeCount:
			return fmt.Sprintf("released, %d merged", after.MergeCount-before.MergeCount)
		}
		return "released"
	case trace.OpAlloc:
		if grew := after.GrowCalls - before.GrowCalls; grew > 0 {
			return fmt.Sprintf("grew %d page(s)", grew)
		}
		return "fit"
	case trace.OpGrow:
		return "grew"
	}
	return ""
}

func runRun(args []string) error {
	path := args[0]
	printVerbose("Replaying script: %s\n", path)

	s, res, err := replay(path, runVerify)
	if err != nil {
		return err
	}
	defer s.Close()

	if runDump != "" {
		if err := dumpImage(s, &writer.FileWriter{Path: runDump}); err != nil {
			return fmt.Errorf("dump %s: %w", runDump, err)
		}
		printVerbose("Wrote %d pages to %s\n", s.space.Pages(), runDump)
	}

	if jsonOut {
		return printJSON(res)
	}

	printInfo("%-5s  %-4s  %-24s  %-10s  %5s  %s\n", "Step", "Line", "Op", "Ptr", "Pages", "Result")
	for _, st := range res.Steps {
		result := st.Action
		if st.Error != "" {
			result = "error: " + st.Error
		}
		printInfo("%5d  %4d  %-24s  0x%08X  %5d  %s\n", st.Index, st.Line, st.Op, st.Ptr, st.Pages, result)
	}

	printInfo("\n%s", renderTable(res.Blocks, 0, nil))
	u := res.Usage
	printInfo("\n%d pages, %d blocks (%d used, %d free), %d bytes used, %d bytes free, largest free %d\n",
		u.Pages, u.Blocks, u.UsedBlocks, u.FreeBlocks, u.UsedBytes, u.FreeBytes, u.LargestFree)
	if runVerify {
		printInfo("Invariants held after all %d steps\n", len(res.Steps))
	}
	if verbose && !quiet {
		return s.alloc.PrintStats(os.Stdout)
	}
	return nil
}

// dumpImage hands the session's address space to sink as a heap image.
func dumpImage(s *session, sink writer.Sink) error {
	return sink.WriteImage(s.space.Bytes())
}
