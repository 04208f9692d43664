package alloc

import (
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// PrintStats writes the operation counters and a summary of the chain to w.
// Numbers are grouped for readability.
func (c *chain) PrintStats(w io.Writer) error {
	u, err := c.Usage()
	if err != nil {
		return err
	}
	s := c.stats
	p := message.NewPrinter(language.English)

	p.Fprintf(w, "\n=== ALLOCATOR STATISTICS ===\n")
	p.Fprintf(w, "Grow calls:         %d (%d KB added, %d tail extends)\n",
		s.GrowCalls, s.GrowCalls*PageKB, s.TailExtends)
	p.Fprintf(w, "Alloc calls:        %d (fast: %d, slow: %d)\n",
		s.AllocCalls, s.AllocFastPath, s.AllocSlowPath)
	p.Fprintf(w, "Free calls:         %d (ignored: %d, repeat: %d)\n",
		s.FreeCalls, s.FreeIgnored, s.FreeRepeat)
	p.Fprintf(w, "Bytes allocated:    %d\n", s.BytesAllocated)
	p.Fprintf(w, "Bytes freed:        %d\n", s.BytesFreed)
	p.Fprintf(w, "Net allocated:      %d\n", s.BytesAllocated-s.BytesFreed)
	p.Fprintf(w, "Block splits:       %d\n", s.SplitCount)
	p.Fprintf(w, "Block merges:       %d\n", s.MergeCount)

	p.Fprintf(w, "\nChain:\n")
	p.Fprintf(w, "  Pages:            %d\n", u.Pages)
	p.Fprintf(w, "  Heap bytes:       %d\n", u.HeapBytes)
	p.Fprintf(w, "  Blocks:           %d (used: %d, free: %d)\n", u.Blocks, u.UsedBlocks, u.FreeBlocks)
	p.Fprintf(w, "  Used bytes:       %d\n", u.UsedBytes)
	p.Fprintf(w, "  Free bytes:       %d\n", u.FreeBytes)
	p.Fprintf(w, "  Largest free:     %d\n", u.LargestFree)
	if u.FreeBytes > 0 {
		p.Fprintf(w, "  Fragmentation:    %.1f%%\n", u.Fragmentation()*100)
	}
	_, err = p.Fprintf(w, "============================\n\n")
	return err
}
