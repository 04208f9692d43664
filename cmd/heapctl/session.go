package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/joshuapare/heapkit/cmd/heapctl/logger"
	"github.com/joshuapare/heapkit/heap"
	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/heap/dirty"
	"github.com/joshuapare/heapkit/heap/verify"
)

const (
	strategyFirstFit = "first-fit"
	strategyBump     = "bump"

	spaceSlice = "slice"
	spaceMmap  = "mmap"
)

var (
	heapMaxPages uint32
	heapStrategy string
	heapSpace    string
)

// addHeapFlags registers the flags that choose and size the allocator.
func addHeapFlags(cmd *cobra.Command) {
	cmd.Flags().Uint32Var(&heapMaxPages, "max-pages", 256, "Page limit for the address space (64 KiB pages)")
	cmd.Flags().StringVar(&heapStrategy, "strategy", strategyFirstFit, "Allocator: first-fit or bump")
	cmd.Flags().StringVar(&heapSpace, "space", spaceSlice, "Address space backend: slice or mmap")
}

// reporter is implemented by both allocators.
type reporter interface {
	alloc.Allocator
	Usage() (alloc.Usage, error)
	Blocks() ([]alloc.Block, error)
	PrintStats(w io.Writer) error
}

// session is one allocator over a fresh address space.
type session struct {
	strategy string
	alloc    reporter
	space    heap.Space
	dirty    *dirty.Tracker
	closeFn  func() error
}

func newSession() (*session, error) {
	s := &session{
		strategy: heapStrategy,
		dirty:    dirty.NewTracker(),
		closeFn:  func() error { return nil },
	}

	switch heapSpace {
	case spaceSlice:
		s.space = heap.NewSliceSpace(0, heapMaxPages)
	case spaceMmap:
		ms, err := heap.NewMmapSpace(heapMaxPages)
		if err != nil {
			return nil, fmt.Errorf("failed to reserve address space: %w", err)
		}
		s.space, s.closeFn = ms, ms.Close
	default:
		return nil, fmt.Errorf("unknown --space %q (want %s or %s)", heapSpace, spaceSlice, spaceMmap)
	}

	cfg := &alloc.Config{MaxPages: heapMaxPages, Logger: logger.L}
	switch heapStrategy {
	case strategyFirstFit:
		s.alloc = alloc.New(s.space, s.dirty, cfg)
	case strategyBump:
		s.alloc = alloc.NewBump(s.space, s.dirty, cfg)
	default:
		_ = s.closeFn()
		return nil, fmt.Errorf("unknown --strategy %q (want %s or %s)", heapStrategy, strategyFirstFit, strategyBump)
	}

	logger.Debug("session created", "strategy", heapStrategy, "space", heapSpace, "max_pages", heapMaxPages)
	return s, nil
}

func (s *session) Close() error { return s.closeFn() }

// check validates the chain and the live payloads. The bump allocator never
// coalesces, so only the first-fit chain is held to the coalescing invariant.
func (s *session) check(live map[uint32]uint32) error {
	head, ok := s.alloc.Head()
	if !ok {
		return nil
	}
	data := s.space.Bytes()
	if err := verify.ChainStructure(data, head); err != nil {
		return err
	}
	if s.strategy == strategyFirstFit {
		if err := verify.Coalesced(data, head); err != nil {
			return err
		}
	}
	return verify.Payloads(data, head, live)
}
