// Package trace parses and replays allocator operation scripts.
//
// A script has one operation per line. Blank lines are skipped and '#'
// starts a comment:
//
//	alloc a 64        # bind a to a 64 byte allocation
//	alloc b 0x100     # sizes may be hex
//	free a            # release a's pointer
//	free a            # again: ignored by the allocator
//	free b+4          # pointer arithmetic: an interior pointer
//	free @0x8000      # a raw address
//	grow 2            # grow two pages up front
package trace

import (
	"fmt"

	"github.com/joshuapare/heapkit/heap"
)

// Kind identifies an operation.
type Kind int

const (
	OpAlloc Kind = iota
	OpFree
	OpGrow
)

func (k Kind) String() string {
	switch k {
	case OpAlloc:
		return "alloc"
	case OpFree:
		return "free"
	case OpGrow:
		return "grow"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Op is one parsed script line.
type Op struct {
	Line int // 1-based source line
	Kind Kind

	Name   string // Allocation name (alloc, and free by name)
	Size   uint32 // alloc: requested bytes
	Offset int64  // free by name: added to the named pointer

	Raw  bool     // free: Addr is a raw address rather than a name
	Addr heap.Ptr // free @ADDR

	Pages int // grow
}

func (o Op) String() string {
	switch o.Kind {
	case OpAlloc:
		return fmt.Sprintf("alloc %s %d", o.Name, o.Size)
	case OpFree:
		switch {
		case o.Raw:
			return fmt.Sprintf("free @0x%X", o.Addr)
		case o.Offset > 0:
			return fmt.Sprintf("free %s+%d", o.Name, o.Offset)
		case o.Offset < 0:
			return fmt.Sprintf("free %s%d", o.Name, o.Offset)
		}
		return "free " + o.Name
	case OpGrow:
		return fmt.Sprintf("grow %d", o.Pages)
	}
	return o.Kind.String()
}
